package span

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/sangoma/wat/at"
	"github.com/sangoma/wat/pdu"
)

// SMS is one outbound short message working through the send pipeline.
type SMS struct {
	id    uint16
	dir   Direction
	event SMSEvent
	state SMSState

	// body is the rendered on-the-wire form: hex coded PDU octets in
	// PDU mode, the plain text in text mode.
	body   []byte
	pduLen int // TPDU octets, excluding the SMSC field

	failed bool
	cause  Cause
	errstr string
}

func (sms *SMS) fail(cause Cause, errstr string) {
	sms.failed = true
	sms.cause = cause
	sms.errstr = errstr
}

// smsReq enters a host submitted SMS into the pipeline.  Every request
// terminates in an SMSSts callback.
func (s *Span) smsReq(id uint16, event *SMSEvent) {
	if _, ok := s.smss[id]; ok {
		s.logf(LogError, "[sms:%d] sms id already in use", id)
		s.smsStatus(id, &SMSStatus{Success: false, Cause: CauseInvalid, Error: "sms id in use"})
		return
	}
	sms := &SMS{id: id, dir: DirectionOutgoing, event: *event}
	s.smss[id] = sms
	s.smsSetState(sms, SMSStateQueued)
}

// runSMSQueue advances the head of the SMS queue once the previous send
// has completed.
func (s *Span) runSMSQueue() {
	if s.outboundSMS != nil || len(s.smsQueue) == 0 {
		return
	}
	sms := s.smsQueue[0]
	s.smsQueue = s.smsQueue[1:]
	s.smsSetState(sms, SMSStateStart)
}

// smsSetState drives the SMS state machine.
func (s *Span) smsSetState(sms *SMS, state SMSState) {
	if s.cfg.DebugMask&DebugCallState != 0 {
		s.logf(LogDebug, "[sms:%d] state change from %s to %s", sms.id, sms.state, state)
	}
	sms.state = state

	switch state {
	case SMSStateQueued:
		if !s.sigUp {
			s.logf(LogWarning, "[sms:%d] cannot send SMS when network is down", sms.id)
			sms.fail(CauseNoNetwork, "")
			s.smsSetState(sms, SMSStateComplete)
			break
		}
		if err := s.smsRender(sms); err != nil {
			s.logf(LogError, "[sms:%d] failed to render SMS: %v", sms.id, err)
			sms.fail(CauseInvalid, err.Error())
			s.smsSetState(sms, SMSStateComplete)
			break
		}
		if len(s.smsQueue) >= smsQueueSize {
			s.logf(LogWarning, "[sms:%d] SMS queue full", sms.id)
			sms.fail(CauseQueueFull, "")
			s.smsSetState(sms, SMSStateComplete)
			break
		}
		s.smsQueue = append(s.smsQueue, sms)

	case SMSStateStart:
		s.outboundSMS = sms
		if sms.event.Type == SMSTypeText {
			// flip the module into text mode for this send
			s.enqueueCmd("AT+CMGF=1", rspCMGF, sms)
			break
		}
		s.smsSetState(sms, SMSStateSendHeader)

	case SMSStateSendHeader:
		if sms.event.Type == SMSTypePDU {
			s.enqueueCmdT(fmt.Sprintf("AT+CMGS=%d", sms.pduLen), rspCMGS, sms, longCmdTimeout)
			break
		}
		s.enqueueCmdT(fmt.Sprintf("AT+CMGS=%q", sms.event.To.Digits), rspCMGS, sms, longCmdTimeout)

	case SMSStateSendBody:
		if s.cfg.DebugMask&DebugSMSEncode != 0 {
			s.logf(LogDebug, "[sms:%d] sending body %s", sms.id, sms.body)
		}
		s.write(sms.body)
		s.smsSetState(sms, SMSStateSendTerminator)

	case SMSStateSendTerminator:
		s.write([]byte{at.CtrlZ, '\r', '\n'})

	case SMSStateComplete:
		if sms.event.Type == SMSTypeText {
			// restore PDU mode
			s.textMode = false
			s.enqueueCmd("AT+CMGF=0", nil, nil)
		}
		status := &SMSStatus{Success: !sms.failed}
		if sms.failed {
			status.Cause = sms.cause
			status.Error = sms.errstr
		}
		s.smsStatus(sms.id, status)
		delete(s.smss, sms.id)
		if s.outboundSMS == sms {
			s.outboundSMS = nil
		}
	}
}

// smsRender produces the on-the-wire body for the send: a hex coded PDU,
// or the bare text in text mode.
func (s *Span) smsRender(sms *SMS) error {
	raw, err := decodeContent(&sms.event.Content)
	if err != nil {
		return err
	}
	if sms.event.Type == SMSTypeText {
		sms.body = raw
		return nil
	}

	smsc := sms.event.PDU.SMSC
	if smsc.Digits == "" {
		if s.chipInfo.SMSC.Digits != "" {
			s.logf(LogDebug, "SMSC not specified, using %s", s.chipInfo.SMSC.Digits)
			smsc = s.chipInfo.SMSC
		}
	}
	submit := pdu.Submit{
		SMSC:       smsc.address(),
		MessageRef: sms.event.PDU.MessageRef,
		To:         sms.event.To.address(),
		PID:        sms.event.PDU.PID,
		DCS:        sms.event.PDU.DCS,
		VPF:        sms.event.PDU.VPF,
		VP:         sms.event.PDU.VP,
		Message:    string(raw),
	}
	if sms.event.PDU.UDH.Total > 1 {
		udh := sms.event.PDU.UDH
		submit.UDH = &udh
	}
	data, tpduLen, err := submit.Encode()
	if err != nil {
		return err
	}
	sms.body = []byte(hex.EncodeToString(data))
	sms.pduLen = tpduLen
	if s.cfg.DebugMask&DebugSMSEncode != 0 {
		s.logf(LogDebug, "[sms:%d] encoded PDU %s (tpdu len:%d)", sms.id, sms.body, tpduLen)
	}
	return nil
}

// decodeContent undoes the transport encoding of host supplied content.
func decodeContent(content *SMSContent) ([]byte, error) {
	switch content.Encoding {
	case ContentEncodingNone:
		return content.Data, nil
	case ContentEncodingBase64:
		return base64.StdEncoding.DecodeString(string(content.Data))
	case ContentEncodingHex:
		return hex.DecodeString(string(content.Data))
	}
	return nil, ErrInvalidArgument
}

func rspCMGF(s *Span, _ []string, success bool, obj interface{}) {
	sms := obj.(*SMS)
	if !success {
		s.logf(LogError, "[sms:%d] failed to set SMS mode", sms.id)
		sms.fail(CauseInvalid, "failed to set SMS mode")
		s.smsSetState(sms, SMSStateComplete)
		return
	}
	s.textMode = true
	s.smsSetState(sms, SMSStateSendHeader)
}

// rspCMGS completes the send: the +CMGS command stays in flight across
// the prompt, the body and the terminator, and finishes with the message
// reference line and OK.
func rspCMGS(s *Span, tokens []string, success bool, obj interface{}) {
	sms := obj.(*SMS)
	if !success {
		errstr := "timeout"
		if len(tokens) > 0 {
			errstr = tokens[len(tokens)-1]
		}
		s.logf(LogError, "[sms:%d] SMS send failed: %s", sms.id, errstr)
		sms.fail(CauseInvalid, errstr)
		s.smsSetState(sms, SMSStateComplete)
		return
	}
	for _, tok := range tokens {
		if at.HasInfoPrefix(tok, "+CMGS") {
			s.logf(LogDebug, "[sms:%d] sent with reference %s", sms.id, at.TrimInfoPrefix(tok, "+CMGS"))
		}
	}
	s.smsSetState(sms, SMSStateComplete)
}

func (s *Span) smsStatus(id uint16, status *SMSStatus) {
	if s.eng.iface.SMSSts != nil {
		s.eng.iface.SMSSts(s.id, id, status)
	}
}

// notifyCMT handles direct delivery of a received SMS.  The indication is
// two lines: the header and the text body or hex coded PDU.
func notifyCMT(s *Span, tokens []string) int {
	if len(tokens) < 2 {
		return 0
	}
	if s.textMode {
		// +CMT: "<from>",,"<scts>"
		fields := at.SplitEntry(at.TrimInfoPrefix(tokens[0], "+CMT"))
		event := SMSEvent{Type: SMSTypeText}
		if len(fields) >= 1 {
			event.From = numberFromDigits(fields[0])
		}
		if len(fields) >= 3 {
			event.SCTS = parseTextSCTS(s, fields[len(fields)-1])
		}
		event.Content = SMSContent{
			Data:     []byte(tokens[1]),
			Charset:  ContentCharsetASCII,
			Encoding: ContentEncodingNone,
		}
		s.smsDeliver(&event)
		return 2
	}
	s.deliverPDU(tokens[1])
	return 2
}

// notifyCMTI handles the stored-message indication by reading the message
// back out of storage.
func notifyCMTI(s *Span, tokens []string) int {
	fields := at.SplitEntry(at.TrimInfoPrefix(tokens[0], "+CMTI"))
	if len(fields) < 2 {
		s.logf(LogError, "failed to parse CMTI indication %q", tokens[0])
		return 1
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		s.logf(LogError, "failed to parse CMTI index %q", tokens[0])
		return 1
	}
	s.enqueueCmd("AT+CMGR="+fields[1], rspCMGR, fields[1])
	return 1
}

// rspCMGR delivers a message read from storage and deletes it.
func rspCMGR(s *Span, tokens []string, success bool, obj interface{}) {
	index := obj.(string)
	if !success {
		s.logf(LogError, "failed to read stored SMS %s", index)
		return
	}
	for i, tok := range tokens {
		if i == 0 && at.HasInfoPrefix(tok, "+CMGR") {
			continue
		}
		if _, final := at.Final(tok); final {
			break
		}
		s.deliverPDU(tok)
		break
	}
	s.enqueueCmd("AT+CMGD="+index, nil, nil)
}

// deliverPDU decodes a hex coded SMS-DELIVER and hands it to the host.
func (s *Span) deliverPDU(line string) {
	if s.cfg.DebugMask&DebugSMSDecode != 0 {
		s.logf(LogDebug, "decoding SMS PDU %q", line)
	}
	data, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		s.logf(LogError, "received PDU is not hex coded: %v", err)
		return
	}
	deliver, err := pdu.DecodeDeliver(data)
	if err != nil {
		s.logf(LogCrit, "failed to decode received PDU: %v", err)
		return
	}
	event := SMSEvent{
		Type: SMSTypePDU,
		From: numberFromAddress(deliver.From),
		SCTS: deliver.SCTS,
		PDU: SMSPDUInfo{
			SMSC: numberFromAddress(deliver.SMSC),
			PID:  deliver.PID,
			DCS:  deliver.DCS,
		},
	}
	if deliver.UDH != nil {
		event.PDU.UDH = *deliver.UDH
	}
	event.Content = s.encodeContent(deliver.Message)
	s.smsDeliver(&event)
}

// encodeContent prepares received message text for the host: plain ASCII
// travels bare, anything else is UTF-8 under the configured transport
// encoding.
func (s *Span) encodeContent(msg string) SMSContent {
	ascii := true
	for i := 0; i < len(msg); i++ {
		if msg[i] > 0x7f {
			ascii = false
			break
		}
	}
	if ascii {
		return SMSContent{
			Data:     []byte(msg),
			Charset:  ContentCharsetASCII,
			Encoding: ContentEncodingNone,
		}
	}
	content := SMSContent{Charset: ContentCharsetUTF8, Encoding: s.cfg.IncomingSMSEncoding}
	switch s.cfg.IncomingSMSEncoding {
	case ContentEncodingBase64:
		content.Data = []byte(base64.StdEncoding.EncodeToString([]byte(msg)))
	case ContentEncodingHex:
		content.Data = []byte(hex.EncodeToString([]byte(msg)))
	default:
		content.Data = []byte(msg)
	}
	return content
}

func (s *Span) smsDeliver(event *SMSEvent) {
	if s.cfg.DebugMask&DebugSMSDecode != 0 {
		s.logf(LogDebug, "received SMS from %s", event.From.Digits)
	}
	if s.eng.iface.SMSInd != nil {
		s.eng.iface.SMSInd(s.id, event)
	}
}

func numberFromDigits(digits string) Number {
	n := Number{Digits: digits, Plan: NumberPlanUnknown, Validity: NumberValidityValid}
	if strings.HasPrefix(digits, "+") {
		n.Type = NumberTypeInternational
		n.Plan = NumberPlanISDN
	}
	return n
}

// parseTextSCTS parses the text mode service centre timestamp, e.g.
// "11/11/23,14:42:17+00".
func parseTextSCTS(s *Span, text string) pdu.Timestamp {
	var ts pdu.Timestamp
	parts := strings.SplitN(text, ",", 2)
	if len(parts) != 2 {
		s.logf(LogError, "failed to parse SCTS %q", text)
		return ts
	}
	if _, err := fmt.Sscanf(parts[0], "%d/%d/%d", &ts.Year, &ts.Month, &ts.Day); err != nil {
		s.logf(LogError, "failed to parse date from SCTS %q", text)
	}
	if _, err := fmt.Sscanf(parts[1], "%d:%d:%d+%d", &ts.Hour, &ts.Minute, &ts.Second, &ts.TZ); err != nil {
		s.logf(LogError, "failed to parse time from SCTS %q", text)
	}
	return ts
}
