package span

import (
	"strconv"
	"strings"
	"time"

	"github.com/sangoma/wat/at"
	"github.com/sangoma/wat/sched"
)

// longCmdTimeout covers call control commands (ATD, ATA, ATH), which can
// legitimately take far longer than queries.
const longCmdTimeout = 15 * time.Second

// responseFunc handles a completed command.  tokens holds the response
// body lines plus the terminator, or nil when the command timed out.
type responseFunc func(s *Span, tokens []string, success bool, obj interface{})

// notifyFunc handles an unsolicited notification.  tokens begins with the
// matched line and includes any following lines available in the window.
// It returns the number of tokens consumed, or 0 when the notification may
// be the prefix of a response that has not fully arrived.
type notifyFunc func(s *Span, tokens []string) int

type notify struct {
	prefix string
	fn     notifyFunc
}

type command struct {
	text    string
	cb      responseFunc
	obj     interface{}
	timeout time.Duration
	timer   sched.ID
}

// enqueueCmd queues a command with the span's default timeout.
func (s *Span) enqueueCmd(text string, cb responseFunc, obj interface{}) {
	s.enqueueCmdT(text, cb, obj, s.cfg.TimeoutCommand)
}

// enqueueCmdT queues a command with an explicit timeout.  Overflowing the
// command queue is a logic error in the engine, not a load condition.
func (s *Span) enqueueCmdT(text string, cb responseFunc, obj interface{}, timeout time.Duration) {
	if text == "" {
		s.logf(LogDebug, "refusing to enqueue empty command")
		return
	}
	if len(s.cmdQueue) >= cmdQueueSize {
		s.logf(LogCrit, "command queue full, dropping %q", text)
		s.assert("command queue overflow")
		return
	}
	if s.cfg.DebugMask&DebugATHandle != 0 {
		s.logf(LogDebug, "enqueued command %q", text)
	}
	s.cmdQueue = append(s.cmdQueue, &command{text: text, cb: cb, obj: obj, timeout: timeout})
}

// body returns the response body with the given info prefix stripped from
// its first line, e.g. "+CSQ: 15,99" -> "15,99".
func body(tokens []string, prefix string) string {
	if len(tokens) == 0 {
		return ""
	}
	return at.TrimInfoPrefix(tokens[0], prefix)
}

func rspCGMM(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain module model")
		return
	}
	s.chipInfo.Model = tokens[0]
}

func rspCGMI(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain module manufacturer")
		return
	}
	s.chipInfo.Manufacturer = tokens[0]
}

func rspCGMR(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain module revision identification")
		return
	}
	s.chipInfo.Revision = strings.TrimSpace(strings.TrimPrefix(tokens[0], "Revision:"))
}

func rspCGSN(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain module serial number")
		return
	}
	s.chipInfo.SerialNumber = tokens[0]
}

func rspCIMI(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain subscriber identity")
		return
	}
	s.chipInfo.IMSI = tokens[0]
}

func rspCLIP(s *Span, _ []string, success bool, _ interface{}) {
	if !success {
		s.clip = false
		s.logf(LogError, "failed to enable calling line presentation")
		return
	}
	s.clip = true
}

func rspCNMI(s *Span, _ []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to enable new message indications")
	}
}

func rspCOPS(s *Span, _ []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to set operator selection format")
	}
}

func rspCNUM(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain own number")
		return
	}
	// +CNUM: "TELEPHONE","+16473380980",145,7,4
	// a bare terminator means the SIM carries no subscriber number
	if len(tokens) < 2 {
		s.chipInfo.Subscriber = "Not available"
		return
	}
	fields := at.SplitEntry(body(tokens, "+CNUM"))
	if len(fields) >= 2 {
		s.chipInfo.Subscriber = fields[1]
		return
	}
	s.chipInfo.Subscriber = fields[0]
}

func rspCSCA(s *Span, tokens []string, success bool, _ interface{}) {
	if success && len(tokens) >= 2 {
		// +CSCA: "+12125551212",145
		fields := at.SplitEntry(body(tokens, "+CSCA"))
		if len(fields) >= 1 && fields[0] != "" {
			s.chipInfo.SMSC = Number{Digits: fields[0], Plan: NumberPlanISDN}
			if len(fields) >= 2 && fields[1] == "145" {
				s.chipInfo.SMSC.Type = NumberTypeInternational
			}
		}
	} else if !success {
		s.logf(LogError, "failed to obtain service centre address")
	}
	s.spanStatus(&SpanStatus{Type: StatusSIMInfoReady})
}

func rspCSQ(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to obtain signal strength")
		return
	}
	fields := at.SplitEntry(body(tokens, "+CSQ"))
	if len(fields) < 2 {
		s.logf(LogError, "failed to parse CSQ response %q", tokens[0])
		return
	}
	rssi, err1 := strconv.Atoi(fields[0])
	ber, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		s.logf(LogError, "failed to parse CSQ response %q", tokens[0])
		return
	}
	s.netInfo.RSSI = uint8(rssi)
	s.netInfo.BER = uint8(ber)
	s.logf(LogDebug, "signal strength %s (ber:%d)", decodeRSSI(uint8(rssi)), ber)
}

// rspCREG handles the AT+CREG? poll.  The unsolicited single-value form is
// handled by notifyCREG.
func rspCREG(s *Span, tokens []string, success bool, _ interface{}) {
	defer func() {
		// the registration query ends the bring-up sequence
		if s.state == SpanStateInit {
			s.setState(SpanStateReady)
		}
	}()
	if !success {
		s.logf(LogError, "failed to obtain network registration report")
		return
	}
	fields := at.SplitEntry(body(tokens, "+CREG"))
	switch len(fields) {
	case 4:
		// <mode>,<stat>,<lac>,<ci>
		if lac, err := strconv.ParseUint(fields[2], 16, 16); err == nil {
			s.netInfo.LAC = uint16(lac)
		}
		if ci, err := strconv.ParseUint(fields[3], 16, 16); err == nil {
			s.netInfo.CI = uint16(ci)
		}
		fallthrough
	case 2:
		// <mode>,<stat>
		stat, err := strconv.Atoi(fields[1])
		if err != nil {
			s.logf(LogError, "failed to parse CREG response %q", tokens[0])
			return
		}
		s.updateNetStatus(stat)
	default:
		s.logf(LogError, "failed to parse CREG response %q", tokens[0])
	}
}

func rspATA(s *Span, _ []string, success bool, obj interface{}) {
	call := obj.(*Call)
	if success {
		s.callSetState(call, CallStateUp)
		return
	}
	s.logf(LogInfo, "[id:%d] failed to answer call", call.id)
	s.enqueueCmd("AT+CLCC", rspCLCC, nil)
}

func rspATH(s *Span, _ []string, success bool, obj interface{}) {
	call := obj.(*Call)
	if success {
		s.callSetState(call, CallStateHangupCmpl)
		return
	}
	s.logf(LogError, "[id:%d] failed to hang up call", call.id)
	s.enqueueCmd("AT+CLCC", rspCLCC, nil)
}

func rspATD(s *Span, _ []string, success bool, obj interface{}) {
	call := obj.(*Call)
	if !success {
		s.logf(LogError, "[id:%d] failed to make outbound call", call.id)
		s.enqueueCmd("AT+CLCC", rspCLCC, nil)
	}
}

// clccEntry is one row of the call list.
type clccEntry struct {
	id   int
	dir  int
	stat int
}

// rspCLCC reconciles local call state against the modem's authoritative
// call list.
func rspCLCC(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "call list query failed")
		return
	}
	var entries []clccEntry
	for _, tok := range tokens {
		if !at.HasInfoPrefix(tok, "+CLCC") {
			continue
		}
		fields := at.SplitEntry(at.TrimInfoPrefix(tok, "+CLCC"))
		if len(fields) < 3 {
			s.logf(LogError, "failed to parse CLCC entry %q", tok)
			continue
		}
		id, err1 := strconv.Atoi(fields[0])
		dir, err2 := strconv.Atoi(fields[1])
		stat, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil || id <= 0 {
			s.logf(LogError, "failed to parse CLCC entry %q", tok)
			continue
		}
		s.logf(LogDebug, "CLCC entry (id:%d dir:%d stat:%d)", id, dir, stat)
		entries = append(entries, clccEntry{id: id, dir: dir, stat: stat})
	}

	for _, call := range s.callList() {
		matched := false
		switch call.state {
		case CallStateDialing:
			if call.dir == DirectionIncoming {
				for _, e := range entries {
					if e.stat == clccStatIncoming {
						call.modID = uint32(e.id)
						s.logf(LogDebug, "[id:%d] module call (modid:%d)", call.id, call.modID)
						s.callSetState(call, CallStateDialed)
						matched = true
					}
				}
				break
			}
			for _, e := range entries {
				switch e.stat {
				case clccStatDialing, clccStatAlerting:
					call.modID = uint32(e.id)
					s.logf(LogDebug, "[id:%d] module call (modid:%d)", call.id, call.modID)
					if e.stat == clccStatDialing {
						s.callSetState(call, CallStateDialed)
					} else {
						s.callSetState(call, CallStateRinging)
					}
					matched = true
					s.armProgressPoll(call)
				case clccStatActive:
					call.modID = uint32(e.id)
					s.callSetState(call, CallStateAnswered)
					matched = true
				}
			}
		case CallStateDialed:
			if call.dir == DirectionIncoming {
				// waiting on the host; nothing to reconcile
				for _, e := range entries {
					if e.stat == clccStatIncoming {
						matched = true
					}
				}
				break
			}
			for _, e := range entries {
				switch e.stat {
				case clccStatDialing:
					matched = true
					s.armProgressPoll(call)
				case clccStatAlerting:
					s.callSetState(call, CallStateRinging)
					matched = true
					s.armProgressPoll(call)
				case clccStatActive:
					s.callSetState(call, CallStateAnswered)
					matched = true
				}
			}
		case CallStateRinging:
			for _, e := range entries {
				switch e.stat {
				case clccStatAlerting:
					matched = true
					s.armProgressPoll(call)
				case clccStatActive:
					s.callSetState(call, CallStateAnswered)
					matched = true
				}
			}
		default:
			for _, e := range entries {
				if uint32(e.id) == call.modID {
					s.logf(LogDebug, "[id:%d] matched call in CLCC entry (modid:%d)", call.id, call.modID)
					matched = true
				}
			}
		}
		if !matched {
			if s.cfg.DebugMask&DebugCallState != 0 {
				s.logf(LogDebug, "[id:%d] no CLCC entry for call, hanging up", call.id)
			}
			s.callSetState(call, CallStateTerminating)
		}
	}
}

func notifyCRING(s *Span, tokens []string) int {
	payload := at.TrimInfoPrefix(tokens[0], "+CRING")
	s.logf(LogDebug, "incoming CRING %q", payload)

	// CRING repeats per ring burst; one incoming call at a time
	if s.callByState(CallStateDialing) != nil || s.callByState(CallStateDialed) != nil {
		return 1
	}

	call, err := s.callCreate(0)
	if err != nil {
		s.logf(LogCrit, "failed to create incoming call: %v", err)
		return 1
	}
	call.dir = DirectionIncoming
	call.typ = ParseCallType(payload)
	s.logf(LogDebug, "call type %s", call.typ)
	s.callSetState(call, CallStateDialing)
	return 1
}

func notifyRING(s *Span, tokens []string) int {
	s.logf(LogDebug, "ignoring bare RING %q", tokens[0])
	return 1
}

// notifyCLIP parses the calling line identification following a +CRING.
//
//	+CLIP: <number>,<type>,"",<alpha>,<CLI_validity>
func notifyCLIP(s *Span, tokens []string) int {
	payload := at.TrimInfoPrefix(tokens[0], "+CLIP")
	s.logf(LogDebug, "incoming CLIP %q", payload)

	if call := s.callByState(CallStateDialed); call != nil {
		if call.rcvdCLIP {
			// repeated CLIP; nothing to do
			return 1
		}
		s.logf(LogCrit, "received CLIP after CLIP timeout %s", s.cfg.TimeoutCIDNum)
		return 1
	}
	call := s.callByState(CallStateDialing)
	if call == nil {
		s.logf(LogCrit, "received CLIP without CRING")
		return 1
	}
	if call.rcvdCLIP {
		return 1
	}
	call.rcvdCLIP = true

	fields := at.SplitEntry(payload)
	if len(fields) < 1 || fields[0] == "" {
		s.logf(LogDebug, "calling number not available")
		s.callSetState(call, CallStateDialed)
		return 1
	}
	call.callingNum.Digits = fields[0]
	if len(fields) >= 2 {
		switch fields[1] {
		case "128":
			call.callingNum.Type = NumberTypeUnknown
			call.callingNum.Plan = NumberPlanUnknown
		case "129":
			call.callingNum.Type = NumberTypeUnknown
			call.callingNum.Plan = NumberPlanISDN
		case "145":
			call.callingNum.Type = NumberTypeInternational
			call.callingNum.Plan = NumberPlanISDN
		case "0":
			call.callingNum.Type = NumberTypeInvalid
			call.callingNum.Plan = NumberPlanInvalid
		default:
			s.logf(LogError, "invalid number type in CLIP %q", payload)
			call.callingNum.Type = NumberTypeInvalid
			call.callingNum.Plan = NumberPlanInvalid
		}
	}
	if len(fields) >= 5 {
		switch fields[len(fields)-1] {
		case "0":
			call.callingNum.Validity = NumberValidityValid
		case "1":
			call.callingNum.Validity = NumberValidityWithheld
		case "2":
			call.callingNum.Validity = NumberValidityUnavailable
		default:
			s.logf(LogError, "invalid number validity in CLIP %q", payload)
			call.callingNum.Validity = NumberValidityInvalid
		}
	}
	s.logf(LogDebug, "calling number %s type:%s plan:%s validity:%s",
		call.callingNum.Digits, call.callingNum.Type, call.callingNum.Plan,
		call.callingNum.Validity)

	s.callSetState(call, CallStateDialed)
	return 1
}

// notifyCREG handles the unsolicited single-value registration report.
// Multi-value entries are the body of an AT+CREG? response whose
// terminator may not have arrived yet, so the window is held back.
func notifyCREG(s *Span, tokens []string) int {
	fields := at.SplitEntry(at.TrimInfoPrefix(tokens[0], "+CREG"))
	if len(fields) != 1 {
		return 0
	}
	stat, err := strconv.Atoi(fields[0])
	if err != nil {
		s.logf(LogError, "failed to parse CREG report %q", tokens[0])
		return 1
	}
	s.updateNetStatus(stat)
	return 1
}
