// Package span implements the per-modem engine: the command scheduler and
// response router, the call and SMS state machines, the chip profiles and
// the cooperative run loop that ties them to the host event loop.
//
// One Engine multiplexes up to MaxSpans-1 modems, each a Span driven over
// an opaque byte stream through host callbacks.  The host owns I/O and
// time: it feeds received bytes to SpanProcessRead, calls SpanRun to turn
// the crank, and uses SpanScheduleNext to decide how long to sleep.
package span

import (
	"fmt"
	"time"
)

// Capacity limits.
const (
	// MaxSpans bounds span ids; id 0 is reserved as invalid.
	MaxSpans = 32
	// MaxCallsPerSpan bounds call ids; id 0 is reserved as invalid.
	MaxCallsPerSpan = 16
	// OutboundCallIDBase is the first call id the host may use for
	// outgoing calls.  Lower ids are reserved for incoming allocation.
	OutboundCallIDBase = 8

	eventQueueSize = 20
	cmdQueueSize   = 100
	smsQueueSize   = 16
	bufferSize     = 500
)

// ScheduleNone is returned by SpanScheduleNext when the span is idle with
// no pending deadline.
const ScheduleNone = time.Duration(-1)

// Config carries the per-span configuration.
type Config struct {
	ModuleType ModuleType

	// TimeoutCIDNum is how long to wait for a +CLIP after +CRING before
	// resynchronising with AT+CLCC.
	TimeoutCIDNum time.Duration
	// TimeoutCommand is the response timeout for ordinary commands.
	TimeoutCommand time.Duration
	// ProgressPollInterval is the AT+CLCC poll period for outgoing call
	// progress.
	ProgressPollInterval time.Duration
	// SignalPollInterval is the AT+CSQ poll period once the span is up.
	SignalPollInterval time.Duration
	// IncomingSMSEncoding is the transport encoding applied to received
	// SMS content that is not plain ASCII.
	IncomingSMSEncoding ContentEncoding

	DebugMask DebugMask
}

func (c *Config) setDefaults() {
	if c.TimeoutCIDNum == 0 {
		c.TimeoutCIDNum = 10 * time.Second
	}
	if c.TimeoutCommand == 0 {
		c.TimeoutCommand = 10 * time.Second
	}
	if c.ProgressPollInterval == 0 {
		c.ProgressPollInterval = 750 * time.Millisecond
	}
	if c.SignalPollInterval == 0 {
		c.SignalPollInterval = 10 * time.Second
	}
}

// Option modifies an Engine created by New.
type Option func(*Engine)

// WithClock replaces the engine clock used by span schedulers.
// The default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the spans and the host interface.  It is driven entirely by
// host calls; it starts no goroutines of its own.
type Engine struct {
	iface Interface
	now   func() time.Time
	spans [MaxSpans]*Span
}

// New creates an Engine with the host interface installed.
func New(iface Interface, opts ...Option) (*Engine, error) {
	if iface.SpanWrite == nil || iface.Log == nil {
		return nil, ErrInvalidArgument
	}
	e := &Engine{iface: iface, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) span(id uint8) *Span {
	if id == 0 || int(id) >= MaxSpans {
		return nil
	}
	return e.spans[id]
}

// SpanConfig configures span id for the given module type.  The span must
// not already be configured.
func (e *Engine) SpanConfig(id uint8, cfg Config) error {
	if id == 0 || int(id) >= MaxSpans {
		return ErrInvalidSpan
	}
	if e.spans[id] != nil {
		return ErrAlreadyConfigured
	}
	module, err := moduleFor(cfg.ModuleType)
	if err != nil {
		return err
	}
	cfg.setDefaults()
	s := &Span{
		id:     id,
		eng:    e,
		cfg:    cfg,
		module: module,
		state:  SpanStateDown,
	}
	e.spans[id] = s
	s.logf(LogDebug, "configured span for %s module", cfg.ModuleType)
	return nil
}

// SpanUnconfig releases span id.  The span must be configured and
// stopped.
func (e *Engine) SpanUnconfig(id uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if s.running {
		return ErrAlreadyRunning
	}
	e.spans[id] = nil
	return nil
}

// SpanStart brings up span id: allocates its runtime state, registers the
// notification handlers, and enqueues the chip profile and generic
// initialisation scripts.
func (e *Engine) SpanStart(id uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if s.running {
		return ErrAlreadyRunning
	}
	s.start()
	return nil
}

// SpanStop tears down span id.
func (e *Engine) SpanStop(id uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	s.stop()
	return nil
}

// SpanProcessRead feeds bytes read from the transport into the span's
// ring buffer.  It may be called concurrently with SpanRun.  On overflow
// the chunk is rejected and the host must discard it.
func (e *Engine) SpanProcessRead(id uint8, data []byte) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	return s.processRead(data)
}

// SpanRun performs one run tick for span id: drains host events, pumps
// the command queue, processes buffered response lines and fires expired
// timers.
func (e *Engine) SpanRun(id uint8) {
	s := e.span(id)
	if s == nil || !s.running {
		return
	}
	s.run()
}

// SpanScheduleNext reports how long the host may sleep before calling
// SpanRun again: 0 when work is already pending, the time to the next
// timer deadline otherwise, or ScheduleNone when the span is idle.
func (e *Engine) SpanScheduleNext(id uint8) time.Duration {
	s := e.span(id)
	if s == nil || !s.running {
		return ScheduleNone
	}
	return s.scheduleNext()
}

// SpanChipInfo returns the device inventory collected during bring-up.
func (e *Engine) SpanChipInfo(id uint8) (ChipInfo, error) {
	s := e.span(id)
	if s == nil {
		return ChipInfo{}, ErrNotConfigured
	}
	return s.chipInfo, nil
}

// SpanNetInfo returns the network registration snapshot.
func (e *Engine) SpanNetInfo(id uint8) (NetInfo, error) {
	s := e.span(id)
	if s == nil {
		return NetInfo{}, ErrNotConfigured
	}
	if !s.running {
		return NetInfo{}, ErrNotRunning
	}
	return s.netInfo, nil
}

// ConReq requests an outgoing call.  The call id must be in
// [OutboundCallIDBase, MaxCallsPerSpan); lower ids are reserved for
// incoming calls.
func (e *Engine) ConReq(id uint8, callID uint8, event *ConEvent) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	if callID < OutboundCallIDBase || callID >= MaxCallsPerSpan {
		s.logf(LogError, "[id:%d] invalid outbound call id", callID)
		return ErrInvalidArgument
	}
	if event == nil {
		return ErrInvalidArgument
	}
	return s.enqueueEvent(hostEvent{id: eventConReq, callID: callID, con: *event})
}

// ConCfm answers an incoming call previously reported through ConInd.
func (e *Engine) ConCfm(id uint8, callID uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	if callID == 0 {
		return ErrInvalidArgument
	}
	return s.enqueueEvent(hostEvent{id: eventConCfm, callID: callID})
}

// RelReq requests the release of a call.
func (e *Engine) RelReq(id uint8, callID uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	if callID == 0 {
		return ErrInvalidArgument
	}
	return s.enqueueEvent(hostEvent{id: eventRelReq, callID: callID})
}

// RelCfm acknowledges a remote release previously reported through
// RelInd.  The call record is destroyed.
func (e *Engine) RelCfm(id uint8, callID uint8) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	if callID == 0 {
		return ErrInvalidArgument
	}
	return s.enqueueEvent(hostEvent{id: eventRelCfm, callID: callID})
}

// SMSReq submits an SMS for transmission.  The outcome is always
// reported through SMSSts.
func (e *Engine) SMSReq(id uint8, smsID uint16, event *SMSEvent) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	if event == nil {
		return ErrInvalidArgument
	}
	return s.enqueueEvent(hostEvent{id: eventSMSReq, smsID: smsID, sms: *event})
}

func (e *Engine) logf(level LogLevel, format string, args ...interface{}) {
	if e.iface.Log != nil {
		e.iface.Log(level, fmt.Sprintf(format, args...))
	}
}

func (e *Engine) assert(msg string) {
	if e.iface.Assert != nil {
		e.iface.Assert(msg)
	}
}
