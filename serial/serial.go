// Package serial provides the serial port, an io.ReadWriteCloser, that
// connects the reference harnesses to a physical modem.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Config is the set of options applied when opening the port.
type Config struct {
	port    string
	baud    int
	timeout time.Duration
}

// Option modifies the Config used to open the port.
type Option func(*Config)

// WithPort sets the device path, e.g. /dev/ttyUSB0.
func WithPort(port string) Option {
	return func(c *Config) {
		c.port = port
	}
}

// WithBaud sets the baud rate.
func WithBaud(baud int) Option {
	return func(c *Config) {
		c.baud = baud
	}
}

// WithReadTimeout bounds blocking reads so a polling host can interleave
// timer work.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.timeout = timeout
	}
}

// New opens the serial port.  It is currently a simple wrapper around
// tarm serial.
func New(opts ...Option) (*serial.Port, error) {
	c := Config{port: "/dev/ttyUSB0", baud: 115200}
	for _, opt := range opts {
		opt(&c)
	}
	return serial.OpenPort(&serial.Config{
		Name:        c.port,
		Baud:        c.baud,
		ReadTimeout: c.timeout,
	})
}
