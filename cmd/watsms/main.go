// watsms is a reference SMS harness: it sends a message through a serial
// attached modem, or waits for incoming messages and prints them.
//
//	watsms -dev /dev/ttyUSB0 -to +14165551212 -message "hello"
//	watsms -dev /dev/ttyUSB0 -wait 2m
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

const spanID = 1

func main() {
	dev := flag.String("dev", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("baud", 115200, "baud rate")
	module := flag.String("module", "telit", "chip profile (telit, motorola)")
	to := flag.String("to", "", "number to send the message to")
	message := flag.String("message", "", "message content")
	text := flag.Bool("text", false, "send in text mode rather than PDU mode")
	wait := flag.Duration("wait", 0, "wait this long for incoming messages")
	verbose := flag.Bool("v", false, "log raw modem interactions")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	if *to == "" && *wait == 0 {
		logger.Error("nothing to do; pass -to/-message or -wait")
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

	h := &smsHost{logger: logger, port: mio, wake: make(chan struct{}, 1)}
	eng, err := span.New(h.iface())
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}
	h.eng = eng

	if err = eng.SpanConfig(spanID, span.Config{
		ModuleType:          span.ParseModuleType(*module),
		IncomingSMSEncoding: span.ContentEncodingBase64,
	}); err != nil {
		logger.Error("config failed", "err", err)
		os.Exit(1)
	}
	if err = eng.SpanStart(spanID); err != nil {
		logger.Error("start failed", "err", err)
		os.Exit(1)
	}
	h.startReader()

	deadline := time.After(time.Minute)
	for !h.ready || !h.sigUp {
		if !h.turn(deadline) {
			logger.Error("modem did not register")
			os.Exit(1)
		}
	}

	if *to != "" {
		event := &span.SMSEvent{
			To:      span.Number{Digits: *to},
			Content: span.SMSContent{Data: []byte(*message)},
		}
		if *text {
			event.Type = span.SMSTypeText
		}
		if err = eng.SMSReq(spanID, 1, event); err != nil {
			logger.Error("sms request failed", "err", err)
			os.Exit(1)
		}
		sendDeadline := time.After(2 * time.Minute)
		for h.status == nil {
			if !h.turn(sendDeadline) {
				logger.Error("timed out waiting for send status")
				os.Exit(1)
			}
		}
		if !h.status.Success {
			logger.Error("send failed", "cause", h.status.Cause, "detail", h.status.Error)
			os.Exit(1)
		}
		fmt.Println("message sent")
	}

	if *wait > 0 {
		waitDeadline := time.After(*wait)
		for h.turn(waitDeadline) {
		}
	}
}

type smsHost struct {
	logger *slog.Logger
	port   io.ReadWriter
	eng    *span.Engine
	wake   chan struct{}

	ready  bool
	sigUp  bool
	status *span.SMSStatus
}

func (h *smsHost) iface() span.Interface {
	return span.Interface{
		SpanWrite: func(_ uint8, data []byte) (int, error) {
			return h.port.Write(data)
		},
		SpanStatus: func(_ uint8, status *span.SpanStatus) {
			switch status.Type {
			case span.StatusReady:
				h.ready = true
			case span.StatusSigStatus:
				h.sigUp = status.SigStatus
			}
		},
		SMSInd: func(_ uint8, event *span.SMSEvent) {
			fmt.Printf("from %s (%d/%d): %s\n",
				event.From.Digits, event.PDU.UDH.Seq, event.PDU.UDH.Total,
				event.Content.Data)
		},
		SMSSts: func(_ uint8, _ uint16, status *span.SMSStatus) {
			st := *status
			h.status = &st
		},
		Log: func(level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg)
		},
		LogSpan: func(id uint8, level span.LogLevel, msg string) {
			h.logger.Log(nil, slogLevel(level), msg, "span", id)
		},
	}
}

func (h *smsHost) startReader() {
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

func (h *smsHost) turn(deadline <-chan time.Time) bool {
	h.eng.SpanRun(spanID)
	next := h.eng.SpanScheduleNext(spanID)
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
