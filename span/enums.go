package span

import "strings"

// LogLevel is the severity passed to the host Log callbacks.
type LogLevel int

// Log levels, most severe first.
const (
	LogCrit LogLevel = iota
	LogError
	LogWarning
	LogInfo
	LogNotice
	LogDebug
)

var logLevelNames = []string{"CRIT", "ERROR", "WARNING", "INFO", "NOTICE", "DEBUG"}

func (l LogLevel) String() string {
	if int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return "invalid"
}

// DebugMask selects debug log categories for a span.
type DebugMask uint32

// Debug mask bits.  They influence log verbosity only.
const (
	DebugUARTRaw DebugMask = 1 << iota
	DebugUARTDump
	DebugCallState
	DebugATParse
	DebugATHandle
	DebugSMSEncode
	DebugSMSDecode
)

// ModuleType selects the chip profile for a span.
type ModuleType int

// Supported chip profiles.
const (
	ModuleTelit ModuleType = iota
	ModuleMotorola
	ModuleInvalid
)

var moduleTypeNames = []string{"telit", "motorola", "invalid"}

func (m ModuleType) String() string {
	if int(m) < len(moduleTypeNames) {
		return moduleTypeNames[m]
	}
	return "invalid"
}

// ParseModuleType maps a profile name to its ModuleType.
func ParseModuleType(s string) ModuleType {
	for i, n := range moduleTypeNames {
		if strings.EqualFold(s, n) {
			return ModuleType(i)
		}
	}
	return ModuleInvalid
}

// SpanState is the lifecycle state of a span.
type SpanState int

// Span lifecycle states.
const (
	SpanStateDown SpanState = iota
	SpanStateInit
	SpanStateReady
	SpanStateShutdown
)

var spanStateNames = []string{"DOWN", "INIT", "READY", "SHUTDOWN"}

func (s SpanState) String() string {
	if int(s) < len(spanStateNames) {
		return spanStateNames[s]
	}
	return "invalid"
}

// NetStat is the network registration status reported by +CREG.
type NetStat int

// Registration states, in +CREG numbering.
const (
	NetNotRegistered NetStat = iota
	NetRegisteredHome
	NetNotRegisteredSearching
	NetRegistrationDenied
	NetUnknown
	NetRegisteredRoaming
	NetInvalid
)

var netStatNames = []string{
	"Not Registered",
	"Registered Home",
	"Not Registered, Searching",
	"Registration Denied",
	"Unknown",
	"Registered Roaming",
	"Invalid",
}

func (s NetStat) String() string {
	if int(s) < len(netStatNames) {
		return netStatNames[s]
	}
	return "Invalid"
}

// Up reports whether the registration state carries service.
func (s NetStat) Up() bool {
	return s == NetRegisteredHome || s == NetRegisteredRoaming
}

// CallState is the state of a call in the call engine.
type CallState int

// Call states.
const (
	CallStateIdle CallState = iota
	CallStateDialing
	CallStateDialed
	CallStateRinging
	CallStateAnswered
	CallStateUp
	CallStateTerminating
	CallStateTerminatingCmpl
	CallStateHangup
	CallStateHangupCmpl
)

var callStateNames = []string{
	"idle", "dialing", "dialed", "ringing", "answered",
	"up", "terminating", "terminating cmpl", "hangup", "hangup cmpl",
}

func (s CallState) String() string {
	if int(s) < len(callStateNames) {
		return callStateNames[s]
	}
	return "invalid"
}

// Direction of a call or SMS.
type Direction int

// Directions.
const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// CallType is the bearer type of a call.
type CallType int

// Call types, as announced by +CRING.
const (
	CallTypeVoice CallType = iota
	CallTypeData
	CallTypeFax
	CallTypeInvalid
)

var callTypeNames = []string{"voice", "data", "fax", "invalid"}

func (t CallType) String() string {
	if int(t) < len(callTypeNames) {
		return callTypeNames[t]
	}
	return "invalid"
}

// ParseCallType maps a +CRING payload to a call type.
func ParseCallType(s string) CallType {
	for i, n := range callTypeNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return CallType(i)
		}
	}
	return CallTypeInvalid
}

// CallSub distinguishes regular calls from supplementary service legs.
type CallSub int

// Call sub-types.
const (
	CallSubReal CallSub = iota
	CallSubCallwait
	CallSubThreeway
)

var callSubNames = []string{"real", "call waiting", "three-way"}

func (s CallSub) String() string {
	if int(s) < len(callSubNames) {
		return callSubNames[s]
	}
	return "invalid"
}

// NumberType is the type-of-number of an address.
type NumberType int

// Number types.
const (
	NumberTypeUnknown NumberType = iota
	NumberTypeInternational
	NumberTypeNational
	NumberTypeInvalid
)

var numberTypeNames = []string{"unknown", "international", "national", "invalid"}

func (t NumberType) String() string {
	if int(t) < len(numberTypeNames) {
		return numberTypeNames[t]
	}
	return "invalid"
}

// NumberPlan is the numbering plan of an address.
type NumberPlan int

// Number plans.
const (
	NumberPlanUnknown NumberPlan = iota
	NumberPlanISDN
	NumberPlanInvalid
)

var numberPlanNames = []string{"unknown", "ISDN", "invalid"}

func (p NumberPlan) String() string {
	if int(p) < len(numberPlanNames) {
		return numberPlanNames[p]
	}
	return "invalid"
}

// NumberValidity is the calling line presentation validity.
type NumberValidity int

// Number validity values, in +CLIP numbering.
const (
	NumberValidityValid NumberValidity = iota
	NumberValidityWithheld
	NumberValidityUnavailable
	NumberValidityInvalid
)

var numberValidityNames = []string{"valid", "withheld", "unavailable", "invalid"}

func (v NumberValidity) String() string {
	if int(v) < len(numberValidityNames) {
		return numberValidityNames[v]
	}
	return "invalid"
}

// SMSState is the state of an SMS in the send pipeline.
type SMSState int

// SMS send states.
const (
	SMSStateQueued SMSState = iota
	SMSStateStart
	SMSStateSendHeader
	SMSStateSendBody
	SMSStateSendTerminator
	SMSStateComplete
)

var smsStateNames = []string{
	"queued", "start", "send header", "send body", "send terminator", "complete",
}

func (s SMSState) String() string {
	if int(s) < len(smsStateNames) {
		return smsStateNames[s]
	}
	return "invalid"
}

// SMSType selects the send protocol for an SMS.
type SMSType int

// SMS send protocols.
const (
	SMSTypePDU SMSType = iota
	SMSTypeText
)

func (t SMSType) String() string {
	if t == SMSTypeText {
		return "txt"
	}
	return "pdu"
}

// Cause is the disposition reported for completed calls and SMSes.
type Cause int

// Causes.
const (
	CauseNormal Cause = iota
	CauseNoNetwork
	CauseQueueFull
	CauseInvalid
)

var causeNames = []string{"normal", "no network", "queue full", "invalid"}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return "invalid"
}

// ContentEncoding is the transport encoding of SMS payload bytes handed to
// or from the host.
type ContentEncoding int

// Content encodings.
const (
	ContentEncodingNone ContentEncoding = iota
	ContentEncodingBase64
	ContentEncodingHex
)

// ContentCharset is the character set of SMS payload bytes.
type ContentCharset int

// Content charsets.
const (
	ContentCharsetASCII ContentCharset = iota
	ContentCharsetUTF8
)

// StatusType tags a SpanStatus notification.
type StatusType int

// Span status notification types.
const (
	StatusReady StatusType = iota
	StatusSigStatus
	StatusSIMInfoReady
	StatusAlarm
)

// AlarmType identifies a raised alarm.
type AlarmType int

// Alarms.
const (
	AlarmNoSignal AlarmType = iota
	AlarmNoSIM
)

// ConStatusType tags a call progress report.
type ConStatusType int

// Call progress reports.
const (
	ConStatusRinging ConStatusType = iota
	ConStatusAnswer
)

// clcc call states as reported in the third CLCC field.
const (
	clccStatActive   = 0
	clccStatHeld     = 1
	clccStatDialing  = 2
	clccStatAlerting = 3
	clccStatIncoming = 4
	clccStatWaiting  = 5
)
