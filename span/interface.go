package span

import "github.com/sangoma/wat/pdu"

// Number is a phone number together with its addressing attributes.
type Number struct {
	Digits   string
	Type     NumberType
	Plan     NumberPlan
	Validity NumberValidity
}

// address maps a Number onto the PDU codec's address form.
func (n Number) address() pdu.Address {
	a := pdu.Address{Digits: n.Digits}
	switch n.Type {
	case NumberTypeInternational:
		a.TON = pdu.TONInternational
	case NumberTypeNational:
		a.TON = pdu.TONNational
	}
	if n.Plan == NumberPlanISDN {
		a.NPI = pdu.NPIISDN
	}
	return a
}

func numberFromAddress(a pdu.Address) Number {
	n := Number{Digits: a.Digits, Validity: NumberValidityValid}
	switch a.TON {
	case pdu.TONInternational:
		n.Type = NumberTypeInternational
	case pdu.TONNational:
		n.Type = NumberTypeNational
	}
	if a.NPI == pdu.NPIISDN {
		n.Plan = NumberPlanISDN
	}
	return n
}

// ConEvent describes a call being set up, in either direction.
type ConEvent struct {
	Type        CallType
	Sub         CallSub
	CalledNum   Number
	CallingNum  Number
	CallingName string
}

// RelEvent carries the cause of a call release.
type RelEvent struct {
	Cause Cause
}

// SpanStatus is a span level status notification.
type SpanStatus struct {
	Type      StatusType
	SigStatus bool // with StatusSigStatus: signalling up or down
	Alarm     AlarmType
}

// SMSContent is an SMS payload with its declared transport encoding and
// character set.
type SMSContent struct {
	Data     []byte
	Encoding ContentEncoding
	Charset  ContentCharset
}

// SMSPDUInfo carries the PDU level attributes of an SMS event.
type SMSPDUInfo struct {
	SMSC       Number
	MessageRef uint8
	PID        uint8
	DCS        pdu.DCS
	VPF        byte
	VP         byte
	UDH        pdu.UDH // Total > 1 requests concatenation
}

// SMSEvent is an SMS crossing the host boundary, in either direction.
type SMSEvent struct {
	Type    SMSType
	To      Number
	From    Number
	SCTS    pdu.Timestamp
	Content SMSContent
	PDU     SMSPDUInfo
}

// SMSStatus reports the final disposition of a submitted SMS.
type SMSStatus struct {
	Success bool
	Cause   Cause
	Error   string
}

// ChipInfo is the device inventory collected during bring-up.
type ChipInfo struct {
	Manufacturer string
	Model        string
	Revision     string
	SerialNumber string // IMEI
	IMSI         string
	Subscriber   string // MSISDN
	SMSC         Number
}

// NetInfo is the network registration snapshot.
type NetInfo struct {
	Stat NetStat
	LAC  uint16
	CI   uint16
	RSSI uint8
	BER  uint8
}

// Interface carries the host callbacks.  SpanWrite and Log are required;
// the rest may be nil and are then skipped.
//
// All callbacks are invoked synchronously from inside Engine.SpanRun (or
// the host API call that triggered them), so they may call back into the
// engine without additional locking.
type Interface struct {
	// SpanWrite hands bytes to the transport.  It must accept all bytes
	// or return an error.
	SpanWrite func(spanID uint8, data []byte) (int, error)

	// SpanStatus reports span level conditions: bring-up complete,
	// signalling status changes, SIM info availability and alarms.
	SpanStatus func(spanID uint8, status *SpanStatus)

	// ConInd reports an incoming call.
	ConInd func(spanID uint8, callID uint8, event *ConEvent)
	// ConSts reports outgoing call progress.
	ConSts func(spanID uint8, callID uint8, status ConStatusType)
	// RelInd reports a remote call release.
	RelInd func(spanID uint8, callID uint8, event *RelEvent)
	// RelCfm confirms a locally requested release.
	RelCfm func(spanID uint8, callID uint8)

	// SMSInd reports a received SMS.
	SMSInd func(spanID uint8, event *SMSEvent)
	// SMSSts reports the outcome of a submitted SMS.
	SMSSts func(spanID uint8, smsID uint16, status *SMSStatus)

	// Log and LogSpan receive library logs.
	Log     func(level LogLevel, msg string)
	LogSpan func(spanID uint8, level LogLevel, msg string)
	// Assert reports a broken internal invariant.  It may abort the
	// process.
	Assert func(msg string)
}
