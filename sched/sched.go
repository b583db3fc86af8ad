// Package sched provides the cooperative timer scheduler driving span
// timeouts.
//
// Timers are kept in a linked list and only fire inside Run, which the host
// calls from its event loop.  The clock is pluggable so hosts and tests can
// supply time.
package sched

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidTimer indicates the timer parameters are unusable.
	ErrInvalidTimer = errors.New("invalid timer")
	// ErrNotFound indicates no live timer has the given id.
	ErrNotFound = errors.New("timer not found")
)

// ID identifies a live timer.  The zero ID is reserved and never assigned.
type ID uint64

// Owner tags a timer with the object it belongs to, so all timers of a call
// or span can be cancelled in one sweep when the object is destroyed.
type Owner struct {
	Kind string
	ID   uint32
}

// Option modifies a Sched created by New.
type Option func(*Sched)

// WithClock replaces the scheduler clock.  The default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sched) {
		s.now = now
	}
}

type timer struct {
	name     string
	id       ID
	deadline time.Time
	owner    Owner
	fn       func()
	next     *timer
	prev     *timer
}

// Sched is a timer scheduler.  All methods may be called from timer
// callbacks; Run restarts its scan after every fire so the list may be
// mutated freely underneath it.
type Sched struct {
	mu     sync.Mutex
	name   string
	now    func() time.Time
	currID ID
	head   *timer
	tail   *timer
}

// New creates a named scheduler.
func New(name string, opts ...Option) *Sched {
	s := &Sched{name: name, now: time.Now, currID: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timer arms a timer firing fn after delay, tagged with owner.
// The returned id is stable until the timer fires or is cancelled,
// and is never zero.
func (s *Sched) Timer(name string, delay time.Duration, owner Owner, fn func()) (ID, error) {
	if fn == nil || delay <= 0 {
		return 0, ErrInvalidTimer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &timer{
		name:     name,
		id:       s.currID,
		deadline: s.now().Add(delay),
		owner:    owner,
		fn:       fn,
	}
	s.currID++
	if s.currID == 0 {
		// id 0 is reserved
		s.currID++
	}
	if s.tail == nil {
		s.head = t
		s.tail = t
	} else {
		t.prev = s.tail
		s.tail.next = t
		s.tail = t
	}
	return t.id, nil
}

// Cancel removes the timer with the given id.  Cancelling the zero id is a
// no-op; cancelling an id that already fired returns ErrNotFound.
func (s *Sched) Cancel(id ID) error {
	if id == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := s.head; t != nil; t = t.next {
		if t.id == id {
			s.unlink(t)
			return nil
		}
	}
	return ErrNotFound
}

// CancelOwner removes all timers tagged with owner and reports how many
// were cancelled.
func (s *Sched) CancelOwner(owner Owner) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	t := s.head
	for t != nil {
		next := t.next
		if t.owner == owner {
			s.unlink(t)
			n++
		}
		t = next
	}
	return n
}

// Run fires all timers whose deadline has passed.  Each timer is removed
// before its callback runs, and the scan restarts after every fire since
// callbacks may arm or cancel timers.  Insertion order breaks deadline ties.
func (s *Sched) Run() {
	for {
		s.mu.Lock()
		now := s.now()
		var due *timer
		for t := s.head; t != nil; t = t.next {
			if !t.deadline.After(now) {
				due = t
				break
			}
		}
		if due == nil {
			s.mu.Unlock()
			return
		}
		s.unlink(due)
		s.mu.Unlock()
		due.fn()
	}
}

// NextIn returns the time until the earliest deadline.  It returns
// (0, true) when a timer is already due and (0, false) when no timers are
// armed.
func (s *Sched) NextIn() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		return 0, false
	}
	winner := s.head.deadline
	for t := s.head.next; t != nil; t = t.next {
		if t.deadline.Before(winner) {
			winner = t.deadline
		}
	}
	d := winner.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// Pending returns the number of armed timers.
func (s *Sched) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t := s.head; t != nil; t = t.next {
		n++
	}
	return n
}

func (s *Sched) unlink(t *timer) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		s.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		s.tail = t.prev
	}
	t.next = nil
	t.prev = nil
	t.id = 0
}
