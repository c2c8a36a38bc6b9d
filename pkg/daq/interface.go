package daq

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// Device defines the interface for measurement boards (real or mocked).
type Device interface {
	Connect() error
	Close() error
	// Send writes one command and waits for the board's reply. A board
	// side failure is reported in the reply, not as an error.
	Send(ctx context.Context, cmd protocol.Command) (protocol.Reply, error)
	// Readings delivers data lines of the running measurement. The channel is
	// closed when the device is closed.
	Readings() <-chan protocol.Reading
	IsConnected() bool
}

// Open connects to the board configured in cfg, or to a mocked board when
// mock is set.
func Open(cfg *config.Config, mock bool, logger logrus.FieldLogger) (Device, error) {
	var dev Device
	if mock {
		dev = NewMock(&cfg.Mock, logger)
	} else {
		s := New(cfg.Serial.Port, cfg.Serial.BaudRate, DefaultBufferSize, logger)
		s.ReplyTimeout = cfg.Serial.ReplyTimeout
		dev = s
	}

	if err := dev.Connect(); err != nil {
		return nil, err
	}
	return dev, nil
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// diagWriter logs every line written to it as a board diagnostic.
type diagWriter struct {
	log logrus.FieldLogger
}

func (w diagWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		logDiagnostic(w.log, line)
	}
	return len(p), nil
}

func logDiagnostic(log logrus.FieldLogger, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	log.WithField("line", line).Info("Board diagnostic")
}
