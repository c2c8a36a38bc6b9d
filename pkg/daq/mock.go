package daq

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/pmscollect/pkg/adc"
	"github.com/itohio/pmscollect/pkg/board"
	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/protocol"
)

const (
	MockBoardName    = "PMS-Mock"
	MockBoardVersion = "1.4"
	MockChannels     = 3
)

// Mock simulates a measurement board for testing and development. Commands
// are executed by an in-process board.Board and readings follow a sine wave
// with noise, quantized like the board's ADC.
type Mock struct {
	cfg *config.MockConfig
	log logrus.FieldLogger

	board     *board.Board
	readings  chan protocol.Reading
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	runCancel context.CancelFunc
	connected bool
	closed    bool

	startTime time.Time
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig, logger logrus.FieldLogger) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.WithField("device", "mock")

	return &Mock{
		cfg:      cfg,
		log:      log,
		board:    board.New(MockBoardName, MockBoardVersion, MockChannels, diagWriter{log: log}),
		readings: make(chan protocol.Reading, DefaultBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	if m.closed {
		return fmt.Errorf("device closed")
	}

	m.connected = true
	m.startTime = time.Now()

	return nil
}

// Close stops the mocked device and closes the readings channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()
	close(m.readings)

	return nil
}

// Readings returns the channel for reading data lines.
func (m *Mock) Readings() <-chan protocol.Reading {
	return m.readings
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Send executes the command on the simulated board.
func (m *Mock) Send(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Reply{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return protocol.Reply{}, ErrNotConnected
	}

	reply := m.board.Handle(cmd)
	m.log.WithFields(logrus.Fields{
		"command": cmd.String(),
		"reply":   reply.String(),
	}).Debug("Handled")

	switch {
	case cmd.Op == protocol.OpStart && reply.OK:
		m.stopRun()
		_, ch := m.board.Selected()
		runCtx, cancel := context.WithCancel(m.ctx)
		m.runCancel = cancel
		m.wg.Add(1)
		go m.generateReadings(runCtx, ch.Interval())
	case cmd.Op == protocol.OpStop:
		m.stopRun()
	}

	return reply, nil
}

// stopRun cancels the current generator. Must be called with mu held.
func (m *Mock) stopRun() {
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
}

// generateReadings records one sample per interval until the board finishes
// the run or the run is cancelled.
func (m *Mock) generateReadings(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			if ctx.Err() != nil {
				m.mu.Unlock()
				return
			}
			r, done, ok := m.board.Record(m.signal(now))
			m.mu.Unlock()
			if !ok {
				return
			}

			select {
			case m.readings <- r:
			case <-ctx.Done():
				return
			}

			if done {
				return
			}
		}
	}
}

// signal returns the simulated ADC value in volts at time now.
func (m *Mock) signal(now time.Time) float64 {
	elapsed := now.Sub(m.startTime).Seconds()

	v := m.cfg.Offset
	if m.cfg.Period > 0 {
		v += m.cfg.Amplitude * math.Sin(2*math.Pi*elapsed/m.cfg.Period.Seconds())
	}
	v += m.cfg.NoiseLevel * (rand.Float64()*2 - 1)

	bits := m.cfg.ResolutionBits
	vref := float32(m.cfg.VRef)
	raw := adc.FromVolts(float32(v), bits, vref)
	return float64(adc.ToVolts(raw, bits, vref))
}
