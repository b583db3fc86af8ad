package span

// Codec is a bitmask of preferred voice codecs passed to the chip
// profile.
type Codec uint32

// Codec preferences.
const (
	CodecFR Codec = 1 << iota
	CodecEFR
	CodecHR
	CodecAMR
)

// Module is a chip profile: the commands and quirks specific to one
// vendor's AT implementation.  Profiles enqueue their commands on the
// span like any other caller.
type Module interface {
	// Start enqueues the profile specific initialisation, before the
	// generic bring-up script.
	Start(s *Span) error
	// Restart re-initialises the chip.
	Restart(s *Span) error
	// Shutdown quiesces the chip before the span stops.
	Shutdown(s *Span) error
	// SetCodec applies a codec preference mask.
	SetCodec(s *Span, mask Codec) error
	// WaitSIM performs whatever the chip needs before the SIM is usable.
	WaitSIM(s *Span) error
	// Name is the human name of the profile.
	Name() string
}

// moduleFor selects the profile for a configured module type.
func moduleFor(t ModuleType) (Module, error) {
	switch t {
	case ModuleTelit:
		return telitModule{}, nil
	case ModuleMotorola:
		return motorolaModule{}, nil
	}
	return nil, ErrInvalidArgument
}

// SpanSetCodec applies a codec preference mask through the span's chip
// profile.
func (e *Engine) SpanSetCodec(id uint8, mask Codec) error {
	s := e.span(id)
	if s == nil {
		return ErrNotConfigured
	}
	if !s.running {
		return ErrNotRunning
	}
	return s.module.SetCodec(s, mask)
}

// logFail is a response handler that only reports failure.
func logFail(what string) responseFunc {
	return func(s *Span, _ []string, success bool, _ interface{}) {
		if !success {
			s.logf(LogError, "failed to %s", what)
		}
	}
}
