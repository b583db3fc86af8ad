package span

import (
	"github.com/sangoma/wat/sched"
)

// Call is one call leg on a span.  The record lives in the span's call
// array from allocation until the FSM reaches a terminal state.
type Call struct {
	id    uint8
	modID uint32 // id used by the module, learned from CLCC
	typ   CallType

	callingNum Number
	calledNum  Number

	state    CallState
	dir      Direction
	cause    Cause
	rcvdCLIP bool

	clipTimer sched.ID
}

func (c *Call) owner() sched.Owner {
	return sched.Owner{Kind: "call", ID: uint32(c.id)}
}

// callCreate allocates a call record.  A zero id picks the next free slot
// by linear scan from the last allocated id, wrapping and skipping zero.
func (s *Span) callCreate(id uint8) (*Call, error) {
	if id != 0 {
		if int(id) >= MaxCallsPerSpan {
			return nil, ErrInvalidArgument
		}
		if s.calls[id] != nil {
			return nil, ErrBusy
		}
	} else {
		cand := s.lastCallID
		for i := 0; i < MaxCallsPerSpan-1; i++ {
			cand++
			if cand >= MaxCallsPerSpan {
				cand = 1
			}
			if s.calls[cand] == nil {
				id = cand
				break
			}
		}
		if id == 0 {
			s.logf(LogCrit, "could not allocate a new call id")
			return nil, ErrQueueFull
		}
	}
	call := &Call{id: id, state: CallStateIdle}
	s.calls[id] = call
	s.lastCallID = id
	if s.cfg.DebugMask&DebugCallState != 0 {
		s.logf(LogDebug, "[id:%d] created new call", id)
	}
	return call, nil
}

// callDestroy clears the call's slot and cancels its timers in one step.
func (s *Span) callDestroy(call *Call) {
	if s.calls[call.id] != call {
		s.logf(LogCrit, "[id:%d] call to destroy not found in span", call.id)
	} else {
		s.calls[call.id] = nil
	}
	s.sched.CancelOwner(call.owner())
	if s.cfg.DebugMask&DebugCallState != 0 {
		s.logf(LogDebug, "[id:%d] destroyed call", call.id)
	}
}

// callList returns the occupied call slots in id order.
func (s *Span) callList() []*Call {
	var calls []*Call
	for id := 1; id < MaxCallsPerSpan; id++ {
		if s.calls[id] != nil {
			calls = append(calls, s.calls[id])
		}
	}
	return calls
}

func (s *Span) callByID(id uint8) *Call {
	if id == 0 || int(id) >= MaxCallsPerSpan {
		return nil
	}
	return s.calls[id]
}

func (s *Span) callByState(state CallState) *Call {
	for _, call := range s.callList() {
		if call.state == state {
			return call
		}
	}
	return nil
}

func (s *Span) armProgressPoll(call *Call) {
	s.sched.Timer("progress_monitor", s.cfg.ProgressPollInterval, call.owner(), func() {
		s.enqueueCmd("AT+CLCC", rspCLCC, nil)
	})
}

// callSetState drives the call state machine.  Entry effects follow the
// state: commands are enqueued, timers armed and host callbacks fired from
// here, so transitions are delivered in FSM order.
func (s *Span) callSetState(call *Call, state CallState) {
	if s.cfg.DebugMask&DebugCallState != 0 {
		s.logf(LogDebug, "[id:%d] state change from %s to %s", call.id, call.state, state)
	}
	call.state = state

	switch state {
	case CallStateDialing:
		if call.dir == DirectionIncoming {
			// a CLIP may or may not follow the CRING; resync from the
			// call list if it never arrives
			if id, err := s.sched.Timer("clip_timeout", s.cfg.TimeoutCIDNum, call.owner(), func() {
				call.clipTimer = 0
				s.enqueueCmd("AT+CLCC", rspCLCC, nil)
			}); err == nil {
				call.clipTimer = id
			}
			break
		}
		s.enqueueCmdT("ATD"+call.calledNum.Digits+";", rspATD, call, longCmdTimeout)
		s.armProgressPoll(call)

	case CallStateDialed:
		if call.clipTimer != 0 {
			s.sched.Cancel(call.clipTimer)
			call.clipTimer = 0
		}
		if call.dir == DirectionIncoming {
			event := &ConEvent{
				Type:       call.typ,
				Sub:        CallSubReal,
				CallingNum: call.callingNum,
			}
			if s.eng.iface.ConInd != nil {
				s.eng.iface.ConInd(s.id, call.id, event)
			}
		}

	case CallStateRinging:
		if s.eng.iface.ConSts != nil {
			s.eng.iface.ConSts(s.id, call.id, ConStatusRinging)
		}

	case CallStateAnswered:
		if call.dir == DirectionIncoming {
			s.enqueueCmdT("ATA", rspATA, call, longCmdTimeout)
			break
		}
		if s.eng.iface.ConSts != nil {
			s.eng.iface.ConSts(s.id, call.id, ConStatusAnswer)
		}
		s.callSetState(call, CallStateUp)

	case CallStateUp:
		// nothing to do

	case CallStateTerminating:
		if s.eng.iface.RelInd != nil {
			s.eng.iface.RelInd(s.id, call.id, &RelEvent{Cause: call.cause})
		}

	case CallStateTerminatingCmpl:
		s.callDestroy(call)

	case CallStateHangup:
		s.enqueueCmdT("ATH", rspATH, call, longCmdTimeout)

	case CallStateHangupCmpl:
		if s.eng.iface.RelCfm != nil {
			s.eng.iface.RelCfm(s.id, call.id)
		}
		s.callDestroy(call)

	default:
		s.logf(LogCrit, "unhandled call state change to %s", state)
	}
}
