package span

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sangoma/wat/at"
	"github.com/sangoma/wat/buffer"
	"github.com/sangoma/wat/sched"
)

// Span is a single modem attached over one byte stream.  All fields are
// owned by the engine and touched only from host API calls and SpanRun;
// the ring buffer is the one object shared with the host reader thread.
type Span struct {
	id     uint8
	eng    *Engine
	cfg    Config
	module Module

	running bool
	state   SpanState
	sigUp   bool

	chipInfo ChipInfo
	netInfo  NetInfo
	clip     bool

	buf    *buffer.Ring
	sched  *sched.Sched
	events []hostEvent

	cmd      *command
	cmdQueue []*command

	notifys []*notify

	calls      [MaxCallsPerSpan]*Call
	lastCallID uint8

	smss        map[uint16]*SMS
	smsQueue    []*SMS
	outboundSMS *SMS
	textMode    bool

	holdTimer sched.ID
}

// ID returns the span id.
func (s *Span) ID() uint8 {
	return s.id
}

// State returns the lifecycle state.
func (s *Span) State() SpanState {
	return s.state
}

// SigUp reports whether signalling is currently up.
func (s *Span) SigUp() bool {
	return s.sigUp
}

func (s *Span) owner() sched.Owner {
	return sched.Owner{Kind: "span", ID: uint32(s.id)}
}

func (s *Span) start() {
	s.running = true
	s.buf = buffer.New(bufferSize)
	s.sched = sched.New("span_schedule", sched.WithClock(s.eng.now))
	s.events = nil
	s.cmd = nil
	s.cmdQueue = nil
	s.notifys = nil
	s.calls = [MaxCallsPerSpan]*Call{}
	s.lastCallID = 0
	s.smss = make(map[uint16]*SMS)
	s.smsQueue = nil
	s.outboundSMS = nil
	s.textMode = false
	s.holdTimer = 0
	s.chipInfo = ChipInfo{}
	s.netInfo = NetInfo{}
	s.sigUp = false

	s.logf(LogDebug, "starting span")
	s.setState(SpanStateInit)

	// longest prefix wins on dispatch, so +CMTI and +CMT can coexist
	s.registerNotify("+CRING", notifyCRING)
	// extended format reporting (AT+CRC) reports rings as +CRING;
	// +RING is registered too and ignored (a bare RING line never
	// reaches notify dispatch)
	s.registerNotify("+RING", notifyRING)
	s.registerNotify("+CLIP", notifyCLIP)
	s.registerNotify("+CREG", notifyCREG)
	s.registerNotify("+CMT", notifyCMT)
	s.registerNotify("+CMTI", notifyCMTI)

	if err := s.module.Start(s); err != nil {
		s.logf(LogError, "module start failed: %v", err)
	}
	if err := s.module.WaitSIM(s); err != nil {
		s.logf(LogError, "module SIM wait failed: %v", err)
	}

	s.enqueueCmd("ATX4", nil, nil)
	// numeric mobile equipment errors
	s.enqueueCmd("AT+CMEE=1", nil, nil)
	// extended format ring indications
	s.enqueueCmd("AT+CRC=1", nil, nil)
	s.enqueueCmd("AT+CGMM", rspCGMM, nil)
	s.enqueueCmd("AT+CGMI", rspCGMI, nil)
	s.enqueueCmd("AT+CGMR", rspCGMR, nil)
	s.enqueueCmd("AT+CGSN", rspCGSN, nil)
	s.enqueueCmd("AT+CIMI", rspCIMI, nil)
	s.enqueueCmd("AT+CLIP=1", rspCLIP, nil)
	s.enqueueCmd("AT+CNMI=2,1", rspCNMI, nil)
	s.enqueueCmd("AT+COPS=3,0", rspCOPS, nil)
	s.enqueueCmd("AT+CNUM", rspCNUM, nil)
	s.enqueueCmd("AT+CSCA?", rspCSCA, nil)
	s.enqueueCmd("AT+CSQ", rspCSQ, nil)
	// unsolicited registration reports, then the current status in case
	// the module is already registered
	s.enqueueCmd("AT+CREG=1", nil, nil)
	s.enqueueCmd("AT+CREG?", rspCREG, nil)
}

func (s *Span) stop() {
	if err := s.module.Shutdown(s); err != nil && errors.Cause(err) != ErrNotImplemented {
		s.logf(LogError, "module shutdown failed: %v", err)
	}
	s.setState(SpanStateShutdown)
	s.sched = nil
	s.buf = nil
	s.events = nil
	s.cmd = nil
	s.cmdQueue = nil
	s.notifys = nil
	s.calls = [MaxCallsPerSpan]*Call{}
	s.smss = nil
	s.smsQueue = nil
	s.outboundSMS = nil
	s.running = false
	s.state = SpanStateDown
}

func (s *Span) setState(state SpanState) {
	s.logf(LogDebug, "changing state from %s to %s", s.state, state)
	s.state = state
	if state == SpanStateReady {
		s.spanStatus(&SpanStatus{Type: StatusReady})
		s.armSignalPoll()
	}
}

func (s *Span) armSignalPoll() {
	s.sched.Timer("signal_poll", s.cfg.SignalPollInterval, s.owner(), func() {
		s.enqueueCmd("AT+CSQ", rspCSQ, nil)
		s.armSignalPoll()
	})
}

func (s *Span) processRead(data []byte) error {
	if s.cfg.DebugMask&DebugUARTRaw != 0 {
		s.logf(LogDebug, "[RX RAW] %s (len:%d)", at.FormatBytes(data), len(data))
	}
	if err := s.buf.Enqueue(data); err != nil {
		s.logf(LogError, "failed to buffer %d read bytes: %v", len(data), err)
		return err
	}
	return nil
}

func (s *Span) run() {
	s.runEvents()
	s.runSMSQueue()
	s.runCmds()
	s.sched.Run()
}

func (s *Span) scheduleNext() time.Duration {
	if s.cmd != nil || len(s.cmdQueue) > 0 || len(s.events) > 0 {
		return 0
	}
	if s.outboundSMS == nil && len(s.smsQueue) > 0 {
		return 0
	}
	d, ok := s.sched.NextIn()
	if !ok {
		return ScheduleNone
	}
	return d
}

// runCmds pumps the command queue and processes buffered responses.
// At most one command is ever in flight.
func (s *Span) runCmds() {
	if s.cmd == nil && len(s.cmdQueue) > 0 {
		cmd := s.cmdQueue[0]
		s.cmdQueue = s.cmdQueue[1:]
		s.cmd = cmd
		if s.cfg.DebugMask&DebugUARTDump != 0 {
			s.logf(LogDebug, "[TX AT] %s", cmd.text)
		}
		s.write([]byte(cmd.text + at.CRLF))
		if id, err := s.sched.Timer("cmd_timeout", cmd.timeout, s.owner(), func() {
			s.cmdTimeout(cmd)
		}); err == nil {
			cmd.timer = id
		}
	}
	s.processBuffer()
}

func (s *Span) cmdTimeout(cmd *command) {
	if s.cmd != cmd {
		return
	}
	s.logf(LogWarning, "command %q timed out", cmd.text)
	s.cmd = nil
	cmd.timer = 0
	if cmd.cb != nil {
		cmd.cb(s, nil, false, cmd.obj)
	}
}

func (s *Span) write(data []byte) {
	if s.cfg.DebugMask&DebugUARTRaw != 0 {
		s.logf(LogDebug, "[TX RAW] %s (len:%d)", at.FormatBytes(data), len(data))
	}
	n, err := s.eng.iface.SpanWrite(s.id, data)
	if err != nil {
		s.logf(LogError, "failed to write to span: %v", err)
		return
	}
	if n < len(data) {
		s.logf(LogError, "short write to span (%d of %d)", n, len(data))
	}
}

// processBuffer tokenizes the buffered window and walks the token list:
// terminators complete the in-flight command, registered prefixes are
// dispatched as notifications, and anything else either accumulates under
// the in-flight command or is reported as a parse anomaly.
func (s *Span) processBuffer() {
	if s.buf.Size() == 0 {
		return
	}
	window := make([]byte, s.buf.Capacity())
	n, err := s.buf.Peek(window)
	if err != nil {
		return
	}
	window = window[:n]
	if s.cfg.DebugMask&DebugUARTDump != 0 {
		s.logf(LogDebug, "[RX AT] %s (len:%d)", at.FormatBytes(window), n)
	}

	// an SMS waiting on the send prompt bypasses the tokenizer; the
	// prompt is not line terminated
	if s.outboundSMS != nil && s.outboundSMS.state == SMSStateSendHeader {
		if idx := bytes.IndexByte(window, at.Prompt); idx >= 0 {
			end := idx + 1
			for end < len(window) && window[end] == ' ' {
				end++
			}
			s.buf.Flush(end)
			s.smsSetState(s.outboundSMS, SMSStateSendBody)
			return
		}
	}

	tokens, ends, err := at.Tokenize(window)
	if err != nil {
		s.logf(LogError, "fatal parse error: %v; discarding %d bytes", err, n)
		s.buf.Reset()
		return
	}
	if len(tokens) == 0 {
		return
	}

	flushEnd := 0
	held := false
	var pending []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if success, ok := at.Final(tok); ok {
			if s.cmd != nil {
				s.handleResponse(append(pending, tok), success)
				pending = nil
				flushEnd = ends[i]
				continue
			}
			if !success {
				// a failure terminator with nothing in flight is a
				// remote hangup; reconcile with the call list
				s.logf(LogDebug, "got %q with no command in flight, querying call list", tok)
				s.enqueueCmd("AT+CLCC", rspCLCC, nil)
				flushEnd = ends[i]
				continue
			}
			if s.cfg.DebugMask&DebugATParse != 0 {
				s.logf(LogDebug, "stray terminator %q", tok)
			}
			flushEnd = ends[i]
			continue
		}
		if s.cmd != nil && len(pending) == 0 && i+1 < len(tokens) {
			if success, ok := at.Final(tokens[i+1]); ok {
				s.handleResponse([]string{tok, tokens[i+1]}, success)
				i++
				flushEnd = ends[i]
				continue
			}
		}
		if strings.HasPrefix(tok, "+") || strings.HasPrefix(tok, "#") {
			consumed, ok := s.dispatchNotify(tokens[i:])
			if ok {
				i += consumed - 1
				flushEnd = ends[i]
				continue
			}
			// could be the prefix of a multi-line response still
			// arriving
			if s.cmd != nil {
				pending = append(pending, tok)
				continue
			}
			held = true
			break
		}
		if s.cmd != nil {
			pending = append(pending, tok)
			continue
		}
		s.logf(LogDebug, "failed to parse AT data %q", tok)
		flushEnd = ends[i]
	}

	if flushEnd > 0 {
		s.buf.Flush(flushEnd)
		if s.holdTimer != 0 {
			s.sched.Cancel(s.holdTimer)
			s.holdTimer = 0
		}
		return
	}
	if held && s.holdTimer == 0 {
		// unknown notification with no command in flight; give any
		// continuation the command timeout to arrive before discarding
		if id, err := s.sched.Timer("parse_flush", s.cfg.TimeoutCommand, s.owner(), s.flushHeld); err == nil {
			s.holdTimer = id
		}
	}
}

func (s *Span) flushHeld() {
	s.holdTimer = 0
	window := make([]byte, s.buf.Capacity())
	n, err := s.buf.Peek(window)
	if err != nil {
		return
	}
	tokens, ends, err := at.Tokenize(window[:n])
	if err != nil || len(tokens) == 0 {
		s.buf.Reset()
		return
	}
	s.logf(LogDebug, "discarding unhandled data %q", tokens[0])
	s.buf.Flush(ends[0])
}

func (s *Span) handleResponse(tokens []string, success bool) {
	cmd := s.cmd
	if cmd == nil {
		s.assert("no command pending")
		return
	}
	if s.cfg.DebugMask&DebugATHandle != 0 {
		s.logf(LogDebug, "handling response for cmd %q (success:%t)", cmd.text, success)
	}
	s.cmd = nil
	if cmd.timer != 0 {
		s.sched.Cancel(cmd.timer)
		cmd.timer = 0
	}
	if cmd.cb != nil {
		cmd.cb(s, tokens, success, cmd.obj)
	}
}

func (s *Span) dispatchNotify(tokens []string) (int, bool) {
	var best *notify
	for _, nt := range s.notifys {
		if at.MatchPrefix(tokens[0], nt.prefix) {
			if best == nil || len(nt.prefix) > len(best.prefix) {
				best = nt
			}
		}
	}
	if best == nil {
		s.logf(LogDebug, "no handler for unsolicited notify %q", tokens[0])
		return 0, false
	}
	if s.cfg.DebugMask&DebugATHandle != 0 {
		s.logf(LogDebug, "handling notify for %q", tokens[0])
	}
	n := best.fn(s, tokens)
	if n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Span) registerNotify(prefix string, fn notifyFunc) {
	for _, nt := range s.notifys {
		if strings.EqualFold(nt.prefix, prefix) {
			s.logf(LogInfo, "already had a notifier for prefix %s", prefix)
			nt.fn = fn
			return
		}
	}
	s.notifys = append(s.notifys, &notify{prefix: prefix, fn: fn})
}

// updateNetStatus folds a +CREG registration state into the span and
// raises sigstatus transitions to the host.
func (s *Span) updateNetStatus(stat int) {
	if stat < int(NetNotRegistered) || stat > int(NetRegisteredRoaming) {
		s.logf(LogCrit, "invalid network status %d", stat)
		return
	}
	ns := NetStat(stat)
	if s.netInfo.Stat == ns {
		return
	}
	s.logf(LogNotice, "network status changed to %q", ns.String())
	if s.netInfo.Stat.Up() != ns.Up() {
		s.updateSigStatus(ns.Up())
	}
	s.netInfo.Stat = ns
}

func (s *Span) updateSigStatus(up bool) {
	status := "Down"
	if up {
		status = "Up"
	}
	s.logf(LogNotice, "signalling status changed to %s", status)
	s.sigUp = up
	s.spanStatus(&SpanStatus{Type: StatusSigStatus, SigStatus: up})
}

func (s *Span) spanStatus(status *SpanStatus) {
	if s.eng.iface.SpanStatus != nil {
		s.eng.iface.SpanStatus(s.id, status)
	}
}

func (s *Span) logf(level LogLevel, format string, args ...interface{}) {
	if s.eng.iface.LogSpan != nil {
		s.eng.iface.LogSpan(s.id, level, fmt.Sprintf(format, args...))
		return
	}
	s.eng.logf(level, "s%d: "+format, append([]interface{}{s.id}, args...)...)
}

func (s *Span) assert(msg string) {
	s.eng.assert(msg)
}

// decodeRSSI renders a +CSQ RSSI value for logs.
func decodeRSSI(rssi uint8) string {
	switch {
	case rssi == 0:
		return "(-113)dBm or less"
	case rssi == 31:
		return "(-51)dBm"
	case rssi == 99:
		return "not detectable"
	case rssi >= 2 && rssi <= 30:
		return fmt.Sprintf("(-%d)dBm", 113-2*int(rssi))
	case rssi == 1:
		return "(-111)dBm"
	}
	return "invalid"
}
