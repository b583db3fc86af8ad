package span

import (
	"fmt"

	"github.com/sangoma/wat/at"
)

// telitModule is the profile for Telit GSM modules.
type telitModule struct{}

func (telitModule) Name() string {
	return "telit"
}

func (telitModule) Start(s *Span) error {
	s.logf(LogDebug, "starting Telit module")

	// section 2.1 of the Telit AT commands reference guide recommends
	// these options be enabled
	s.enqueueCmd("AT#SELINT=2", logFail("set interface type"), nil)
	s.enqueueCmd("AT#SMSMODE=1", logFail("set sms mode"), nil)

	// AT#REGMODE=1 makes CREG behaviour more formal (reference guide,
	// page 105)
	s.enqueueCmd("AT#REGMODE=1", nil, nil)
	s.enqueueCmd("AT#DVI=1,1,0", logFail("enable digital voice interface"), nil)

	// echo cancellation
	s.enqueueCmd("AT#SHFEC=1", nil, nil)
	s.enqueueCmd("AT#SHSEC=1", nil, nil)

	// sidetone sounds like echo on calls with long delay (e.g. SIP)
	s.enqueueCmd("AT#SHSSD=0", logFail("disable sidetone"), nil)

	// format 1 is text, mode 2 reports only the codec in use
	s.enqueueCmd("AT#CODECINFO=1,2", logFail("enable codec notifications"), nil)
	s.registerNotify("#CODECINFO", notifyCodecInfo)

	return nil
}

func (telitModule) Restart(s *Span) error {
	s.logf(LogDebug, "restarting Telit module")
	return ErrNotImplemented
}

func (telitModule) Shutdown(s *Span) error {
	s.logf(LogDebug, "stopping Telit module")
	return ErrNotImplemented
}

func (telitModule) SetCodec(s *Span, mask Codec) error {
	s.enqueueCmd(fmt.Sprintf("AT#CODEC=%d", mask), logFail("set codec preference"), nil)
	return nil
}

func (telitModule) WaitSIM(s *Span) error {
	return nil
}

func notifyCodecInfo(s *Span, tokens []string) int {
	s.logf(LogDebug, "codec in use: %s", at.TrimInfoPrefix(tokens[0], "#CODECINFO"))
	return 1
}
