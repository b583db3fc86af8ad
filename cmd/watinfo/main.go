// watinfo brings up a span on a serial attached modem and reports the
// device inventory and network registration snapshot.
//
// This serves as an example of how to drive the engine from a host event
// loop, as well as providing information which may be useful for
// debugging.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sangoma/wat/serial"
	"github.com/sangoma/wat/span"
	"github.com/sangoma/wat/trace"
)

var version = "undefined"

func main() {
	dev := flag.String("dev", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("baud", 115200, "baud rate")
	module := flag.String("module", "telit", "chip profile (telit, motorola)")
	timeout := flag.Duration("timeout", 30*time.Second, "time to wait for bring-up")
	verbose := flag.Bool("v", false, "log raw modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))

	m, err := serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	if err != nil {
		logger.Error("open failed", "err", err)
		os.Exit(1)
	}
	defer m.Close()
	var mio io.ReadWriter = m
	if *verbose {
		mio = trace.New(m)
	}

	moduleType := span.ParseModuleType(*module)
	if moduleType == span.ModuleInvalid {
		logger.Error("unknown module type", "module", *module)
		os.Exit(1)
	}

	host := newHost(logger, mio)
	eng, err := span.New(host.iface(), span.WithClock(time.Now))
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}
	host.eng = eng

	if err = eng.SpanConfig(1, span.Config{ModuleType: moduleType}); err != nil {
		logger.Error("config failed", "err", err)
		os.Exit(1)
	}
	if err = eng.SpanStart(1); err != nil {
		logger.Error("start failed", "err", err)
		os.Exit(1)
	}
	host.startReader()

	deadline := time.After(*timeout)
	for !host.isReady() {
		if !host.turn(deadline) {
			logger.Error("modem did not come up")
			os.Exit(1)
		}
	}

	info, _ := eng.SpanChipInfo(1)
	net, _ := eng.SpanNetInfo(1)
	fmt.Printf("Manufacturer: %s\n", info.Manufacturer)
	fmt.Printf("Model:        %s\n", info.Model)
	fmt.Printf("Revision:     %s\n", info.Revision)
	fmt.Printf("IMEI:         %s\n", info.SerialNumber)
	fmt.Printf("IMSI:         %s\n", info.IMSI)
	fmt.Printf("Subscriber:   %s\n", info.Subscriber)
	fmt.Printf("SMSC:         %s\n", info.SMSC.Digits)
	fmt.Printf("Network:      %s (rssi:%d ber:%d lac:%d ci:%d)\n",
		net.Stat, net.RSSI, net.BER, net.LAC, net.CI)
}

// host adapts the engine callbacks onto slog and pumps transport reads.
type host struct {
	logger *slog.Logger
	port   io.ReadWriter
	eng    *span.Engine
	wake   chan struct{}
	ready  bool
}

func newHost(logger *slog.Logger, port io.ReadWriter) *host {
	return &host{logger: logger, port: port, wake: make(chan struct{}, 1)}
}

func (h *host) iface() span.Interface {
	return span.Interface{
		SpanWrite: func(_ uint8, data []byte) (int, error) {
			return h.port.Write(data)
		},
		SpanStatus: func(_ uint8, status *span.SpanStatus) {
			switch status.Type {
			case span.StatusReady:
				h.ready = true
			case span.StatusSigStatus:
				h.logger.Info("sigstatus", "up", status.SigStatus)
			}
		},
		Log: func(level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg)
		},
		LogSpan: func(id uint8, level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg, "span", id)
		},
		Assert: func(msg string) {
			h.logger.Error("assert", "msg", msg)
			panic(msg)
		},
	}
}

func (h *host) isReady() bool {
	return h.ready
}

// startReader pumps transport bytes into the engine from its own
// goroutine; the ring buffer serialises against the run loop.
func (h *host) startReader() {
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := h.port.Read(buf)
			if n > 0 {
				h.eng.SpanProcessRead(1, buf[:n])
				select {
				case h.wake <- struct{}{}:
				default:
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

// turn performs one host loop iteration, sleeping per SpanScheduleNext.
// It reports false once the deadline fires.
func (h *host) turn(deadline <-chan time.Time) bool {
	h.eng.SpanRun(1)
	next := h.eng.SpanScheduleNext(1)
	if next == 0 {
		return true
	}
	var timer <-chan time.Time
	if next > 0 {
		timer = time.After(next)
	}
	select {
	case <-h.wake:
	case <-timer:
	case <-deadline:
		return false
	}
	return true
}

func slogLevel(level span.LogLevel) slog.Level {
	switch level {
	case span.LogCrit, span.LogError:
		return slog.LevelError
	case span.LogWarning:
		return slog.LevelWarn
	case span.LogDebug:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
