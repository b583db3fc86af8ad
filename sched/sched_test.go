package sched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangoma/wat/sched"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newSched() (*sched.Sched, *fakeClock) {
	c := &fakeClock{now: time.Unix(1000, 0)}
	return sched.New("test", sched.WithClock(c.Now)), c
}

func TestTimer(t *testing.T) {
	s, c := newSched()
	fired := 0
	id, err := s.Timer("t1", 100*time.Millisecond, sched.Owner{}, func() { fired++ })
	require.Nil(t, err)
	assert.NotEqual(t, sched.ID(0), id)

	s.Run()
	assert.Equal(t, 0, fired)

	c.Advance(99 * time.Millisecond)
	s.Run()
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	s.Run()
	assert.Equal(t, 1, fired)

	// one-shot
	s.Run()
	assert.Equal(t, 1, fired)
}

func TestTimerInvalid(t *testing.T) {
	s, _ := newSched()
	_, err := s.Timer("t", 0, sched.Owner{}, func() {})
	assert.Equal(t, sched.ErrInvalidTimer, err)
	_, err = s.Timer("t", time.Second, sched.Owner{}, nil)
	assert.Equal(t, sched.ErrInvalidTimer, err)
}

func TestCancel(t *testing.T) {
	s, c := newSched()
	fired := false
	id, err := s.Timer("t1", 100*time.Millisecond, sched.Owner{}, func() { fired = true })
	require.Nil(t, err)

	require.Nil(t, s.Cancel(id))
	c.Advance(time.Second)
	s.Run()
	assert.False(t, fired)

	assert.Equal(t, sched.ErrNotFound, s.Cancel(id))
	assert.Nil(t, s.Cancel(0))
}

func TestCancelOwner(t *testing.T) {
	s, c := newSched()
	call := sched.Owner{Kind: "call", ID: 3}
	other := sched.Owner{Kind: "call", ID: 4}
	fired := 0
	s.Timer("clip_timeout", time.Second, call, func() { fired++ })
	s.Timer("progress_monitor", time.Second, call, func() { fired++ })
	s.Timer("progress_monitor", time.Second, other, func() { fired++ })

	assert.Equal(t, 2, s.CancelOwner(call))
	c.Advance(2 * time.Second)
	s.Run()
	assert.Equal(t, 1, fired)
}

func TestRunFiresAllExpired(t *testing.T) {
	s, c := newSched()
	var order []string
	s.Timer("a", 10*time.Millisecond, sched.Owner{}, func() { order = append(order, "a") })
	s.Timer("b", 10*time.Millisecond, sched.Owner{}, func() { order = append(order, "b") })
	s.Timer("c", 20*time.Millisecond, sched.Owner{}, func() { order = append(order, "c") })

	c.Advance(30 * time.Millisecond)
	s.Run()
	// all expired fire before Run returns; insertion order breaks ties.
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCallbackArmsTimer(t *testing.T) {
	s, c := newSched()
	var order []string
	s.Timer("outer", 10*time.Millisecond, sched.Owner{}, func() {
		order = append(order, "outer")
		s.Timer("inner", 5*time.Millisecond, sched.Owner{}, func() {
			order = append(order, "inner")
		})
	})

	c.Advance(10 * time.Millisecond)
	s.Run()
	assert.Equal(t, []string{"outer"}, order)

	c.Advance(5 * time.Millisecond)
	s.Run()
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestCallbackCancelsTimer(t *testing.T) {
	s, c := newSched()
	fired := 0
	var victim sched.ID
	s.Timer("killer", 10*time.Millisecond, sched.Owner{}, func() {
		s.Cancel(victim)
	})
	victim, _ = s.Timer("victim", 10*time.Millisecond, sched.Owner{}, func() { fired++ })

	c.Advance(10 * time.Millisecond)
	s.Run()
	assert.Equal(t, 0, fired)
}

func TestNextIn(t *testing.T) {
	s, c := newSched()
	_, ok := s.NextIn()
	assert.False(t, ok)

	s.Timer("far", time.Second, sched.Owner{}, func() {})
	s.Timer("near", 100*time.Millisecond, sched.Owner{}, func() {})

	d, ok := s.NextIn()
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, d)

	c.Advance(150 * time.Millisecond)
	d, ok = s.NextIn()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestIDsNotReused(t *testing.T) {
	s, c := newSched()
	seen := map[sched.ID]bool{}
	for i := 0; i < 100; i++ {
		id, err := s.Timer("t", time.Millisecond, sched.Owner{}, func() {})
		require.Nil(t, err)
		require.False(t, seen[id])
		require.NotEqual(t, sched.ID(0), id)
		seen[id] = true
	}
	c.Advance(time.Second)
	s.Run()
	assert.Equal(t, 0, s.Pending())
}
