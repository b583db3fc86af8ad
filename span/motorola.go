package span

// motorolaModule is the profile for Motorola GSM modules, as found on
// quad-module boards like the Junghanns QuadGSM.
type motorolaModule struct{}

func (motorolaModule) Name() string {
	return "motorola"
}

func (motorolaModule) Start(s *Span) error {
	s.logf(LogDebug, "starting Motorola module")

	// route incoming SMS directly to the terminal
	s.enqueueCmd("AT+CNMI=0,2,2", rspCNMI, nil)
	return nil
}

func (motorolaModule) Restart(s *Span) error {
	s.logf(LogDebug, "restarting Motorola module")
	return ErrNotImplemented
}

func (motorolaModule) Shutdown(s *Span) error {
	s.logf(LogDebug, "stopping Motorola module")
	return ErrNotImplemented
}

func (motorolaModule) SetCodec(s *Span, _ Codec) error {
	// the AT+MVC command the docs suggest is not recognised by the
	// QuadGSM, so codec preferences stay at the module default
	s.logf(LogDebug, "setting codec preferences unsupported")
	return nil
}

func (motorolaModule) WaitSIM(s *Span) error {
	s.logf(LogInfo, "waiting for SIM access...")

	s.enqueueCmd("AT+CMEE=2", nil, nil)
	s.enqueueCmd("AT+MADIGITAL=1", nil, nil)

	// the dev guide states CPIN is necessary for full operation
	s.enqueueCmd("AT+CPIN?", rspCPIN, nil)
	s.enqueueCmd("AT+CPIN=\"0000\"", nil, nil)
	return nil
}

func rspCPIN(s *Span, tokens []string, success bool, _ interface{}) {
	if !success {
		s.logf(LogError, "failed to query SIM PIN state")
		return
	}
	if len(tokens) > 0 {
		s.logf(LogDebug, "SIM PIN state %q", tokens[0])
	}
}
