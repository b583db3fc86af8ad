package span

import "github.com/pkg/errors"

var (
	// ErrInvalidSpan indicates a span id outside 1..MaxSpans-1 passed to
	// SpanConfig.
	ErrInvalidSpan = errors.New("invalid span")
	// ErrInvalidArgument indicates an argument outside its legal range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyConfigured indicates the span is already configured.
	ErrAlreadyConfigured = errors.New("span already configured")
	// ErrNotConfigured indicates the span has not been configured.
	ErrNotConfigured = errors.New("span not configured")
	// ErrAlreadyRunning indicates the span was already started.
	ErrAlreadyRunning = errors.New("span already started")
	// ErrNotRunning indicates the span has not been started.
	ErrNotRunning = errors.New("span not started")
	// ErrQueueFull indicates a bounded queue rejected an entry.
	ErrQueueFull = errors.New("queue full")
	// ErrBusy indicates the requested id is already in use.
	ErrBusy = errors.New("busy")
	// ErrTimeout indicates a command expired without a terminator.
	ErrTimeout = errors.New("timeout")
	// ErrNotImplemented indicates an operation the chip profile does not
	// support.
	ErrNotImplemented = errors.New("not implemented")
)
