package daq

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/itohio/pmscollect/pkg/protocol"
)

const (
	// DefaultBaudRate is the baud rate the board firmware configures.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
	// DefaultReplyTimeout bounds how long Send waits for a reply when the
	// caller's context has no deadline.
	DefaultReplyTimeout = 2 * time.Second
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to a measurement board over a serial port.
type Serial struct {
	// ReplyTimeout is applied to Send calls without a deadline.
	ReplyTimeout time.Duration

	port     string
	baudRate int
	bufSize  int
	log      logrus.FieldLogger
	open     func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

	conn      io.ReadWriteCloser
	readings  chan protocol.Reading
	replies   chan protocol.Reply
	done      chan struct{}
	mu        sync.RWMutex
	sendMu    sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	closed    bool
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int, logger logrus.FieldLogger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		ReplyTimeout: DefaultReplyTimeout,
		port:         port,
		baudRate:     baudRate,
		bufSize:      bufSize,
		log:          logger.WithField("port", port),
		open:         openSerial,
		readings:     make(chan protocol.Reading, bufSize),
		replies:      make(chan protocol.Reply, 1),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func openSerial(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name // Use name as description if we can't get more info
		if d.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", d.Name, d.VID, d.PID, strings.TrimSpace(d.Product))
		}
		result = append(result, Port{
			Name:        d.Name,
			Description: desc,
		})
	}

	return result, nil
}

// Connect connects to the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}
	if d.closed {
		return fmt.Errorf("device closed")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	conn, err := d.open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = conn
	d.connected = true

	go d.readLines()

	d.log.WithField("baud_rate", d.baudRate).Debug("Connected")
	return nil
}

// Close closes the connection and stops reading. The readings channel is
// closed once the reader has exited, or right away when the device never
// connected.
func (d *Serial) Close() error {
	d.mu.Lock()

	if !d.connected {
		if !d.closed {
			d.closed = true
			d.cancel()
			close(d.readings)
		}
		d.mu.Unlock()
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.log.WithError(err).Warn("Error closing serial port")
		}
	}

	d.connected = false
	d.closed = true
	d.mu.Unlock()

	<-d.done
	return nil
}

// Readings returns the channel for reading data lines.
func (d *Serial) Readings() <-chan protocol.Reading {
	return d.readings
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Send writes a command line and waits for the board's reply.
// Commands are serialized; replies are matched to commands in order.
func (d *Serial) Send(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.RLock()
	conn, connected := d.conn, d.connected
	d.mu.RUnlock()
	if !connected {
		return protocol.Reply{}, ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok && d.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ReplyTimeout)
		defer cancel()
	}

	// Drop replies nobody waited for.
	for drained := false; !drained; {
		select {
		case r := <-d.replies:
			d.log.WithField("reply", r.String()).Warn("Discarding unexpected reply")
		default:
			drained = true
		}
	}

	line := cmd.String()
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return protocol.Reply{}, fmt.Errorf("failed to send %q: %w", line, err)
	}
	d.log.WithField("command", line).Debug("Sent")

	select {
	case r := <-d.replies:
		return r, nil
	case <-ctx.Done():
		return protocol.Reply{}, fmt.Errorf("waiting for reply to %q: %w", line, ctx.Err())
	case <-d.done:
		return protocol.Reply{}, fmt.Errorf("waiting for reply to %q: %w", line, ErrNotConnected)
	}
}

// readLines reads lines from the serial port and routes them to the readings
// or replies channel.
func (d *Serial) readLines() {
	defer close(d.done)
	defer close(d.readings)

	scanner := bufio.NewScanner(d.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.route(line)

		if d.ctx.Err() != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil && !errors.Is(err, io.EOF) {
		d.log.WithError(err).Error("Error reading from serial port")
	}
}

func (d *Serial) route(line string) {
	switch {
	case protocol.IsReading(line):
		r, err := protocol.ParseReading(line)
		if err != nil {
			d.log.WithError(err).WithField("line", line).Warn("Failed to parse reading")
			return
		}
		// Send reading to channel (non-blocking)
		select {
		case d.readings <- r:
		default:
			d.log.WithField("index", r.Index).Warn("Readings channel full, dropping reading")
		}
	case strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "ERR"):
		r, err := protocol.ParseReply(line)
		if err != nil {
			d.log.WithError(err).WithField("line", line).Warn("Failed to parse reply")
			return
		}
		select {
		case d.replies <- r:
		default:
			d.log.WithField("reply", line).Warn("Reply not consumed, dropping")
		}
	default:
		logDiagnostic(d.log, line)
	}
}
