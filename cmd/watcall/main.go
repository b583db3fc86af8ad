// watcall is a reference voice call harness: it brings up a span, places
// or answers a call, and releases it after a hold time.
//
//	watcall -dev /dev/ttyUSB0 -make_call 5551212 -hold 10s
//	watcall -dev /dev/ttyUSB0 -answer
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

const (
	spanID         = 1
	outboundCallID = span.OutboundCallIDBase
)

func main() {
	dev := flag.String("dev", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("baud", 115200, "baud rate")
	module := flag.String("module", "telit", "chip profile (telit, motorola)")
	makeCall := flag.String("make_call", "", "number to dial")
	answer := flag.Bool("answer", false, "answer the next incoming call")
	hold := flag.Duration("hold", 10*time.Second, "time to hold the call up before hanging up")
	verbose := flag.Bool("v", false, "log raw modem interactions")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	if *makeCall == "" && !*answer {
		logger.Error("nothing to do; pass -make_call or -answer")
		os.Exit(1)
	}

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

	h := &callHost{logger: logger, port: mio, wake: make(chan struct{}, 1)}
	eng, err := span.New(h.iface())
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}
	h.eng = eng

	moduleType := span.ParseModuleType(*module)
	if err = eng.SpanConfig(spanID, span.Config{ModuleType: moduleType}); err != nil {
		logger.Error("config failed", "err", err)
		os.Exit(1)
	}
	if err = eng.SpanStart(spanID); err != nil {
		logger.Error("start failed", "err", err)
		os.Exit(1)
	}
	h.startReader()

	deadline := time.After(time.Minute)
	for !h.ready {
		if !h.turn(deadline) {
			logger.Error("modem did not come up")
			os.Exit(1)
		}
	}

	if *makeCall != "" {
		err = eng.ConReq(spanID, outboundCallID, &span.ConEvent{
			Type:      span.CallTypeVoice,
			Sub:       span.CallSubReal,
			CalledNum: span.Number{Digits: *makeCall},
		})
		if err != nil {
			logger.Error("call request failed", "err", err)
			os.Exit(1)
		}
	}

	var hangupAt <-chan time.Time
	done := time.After(5 * time.Minute)
	for !h.released {
		if h.up && hangupAt == nil {
			hangupAt = time.After(*hold)
		}
		select {
		case <-hangupAt:
			hangupAt = nil
			h.up = false
			if err := eng.RelReq(spanID, h.callID); err != nil {
				logger.Error("release failed", "err", err)
			}
		default:
		}
		if !h.turn(done) {
			logger.Error("timed out waiting for call to finish")
			os.Exit(1)
		}
	}
	fmt.Println("call finished")
}

type callHost struct {
	logger *slog.Logger
	port   io.ReadWriter
	eng    *span.Engine
	wake   chan struct{}

	ready    bool
	callID   uint8
	up       bool
	released bool
}

func (h *callHost) iface() span.Interface {
	return span.Interface{
		SpanWrite: func(_ uint8, data []byte) (int, error) {
			return h.port.Write(data)
		},
		SpanStatus: func(_ uint8, status *span.SpanStatus) {
			if status.Type == span.StatusReady {
				h.ready = true
			}
		},
		ConInd: func(_ uint8, callID uint8, event *span.ConEvent) {
			h.logger.Info("incoming call", "id", callID, "from", event.CallingNum.Digits)
			h.callID = callID
			if err := h.eng.ConCfm(spanID, callID); err != nil {
				h.logger.Error("answer failed", "err", err)
			}
			h.up = true
		},
		ConSts: func(_ uint8, callID uint8, status span.ConStatusType) {
			h.callID = callID
			switch status {
			case span.ConStatusRinging:
				h.logger.Info("ringing", "id", callID)
			case span.ConStatusAnswer:
				h.logger.Info("answered", "id", callID)
				h.up = true
			}
		},
		RelInd: func(_ uint8, callID uint8, event *span.RelEvent) {
			h.logger.Info("remote release", "id", callID, "cause", event.Cause)
			h.eng.RelCfm(spanID, callID)
			h.released = true
		},
		RelCfm: func(_ uint8, callID uint8) {
			h.logger.Info("release confirmed", "id", callID)
			h.released = true
		},
		Log: func(level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg)
		},
		LogSpan: func(id uint8, level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg, "span", id)
		},
	}
}

func (h *callHost) startReader() {
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := h.port.Read(buf)
			if n > 0 {
				h.eng.SpanProcessRead(spanID, buf[:n])
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

func (h *callHost) turn(deadline <-chan time.Time) bool {
	h.eng.SpanRun(spanID)
	next := h.eng.SpanScheduleNext(spanID)
	if next == 0 {
		return true
	}
	var timer <-chan time.Time
	if next > 0 {
		timer = time.After(next)
	} else {
		// poll anyway so host side state changes are noticed
		timer = time.After(100 * time.Millisecond)
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
