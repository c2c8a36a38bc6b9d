package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/pmscollect/pkg/channel"
	"github.com/itohio/pmscollect/pkg/daq"
	"github.com/itohio/pmscollect/pkg/protocol"
)

// stopTimeout bounds the STOP sent after a run is cancelled.
const stopTimeout = 2 * time.Second

var ErrDeviceClosed = errors.New("device closed during measurement")

// Point is one collected sample placed on the time axis of its run.
type Point struct {
	Index   int
	Seconds float64 // Index * interval
	Value   float64
}

// Collector configures board channels and gathers measurement runs.
type Collector struct {
	dev daq.Device
	log logrus.FieldLogger

	callbacks []func(Point)
	cbMu      sync.RWMutex
}

// New creates a collector for the device.
func New(dev daq.Device, logger logrus.FieldLogger) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		dev: dev,
		log: logger,
	}
}

// OnPoint registers a callback invoked for every collected point.
func (c *Collector) OnPoint(fn func(Point)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Board queries the board identification.
func (c *Collector) Board(ctx context.Context) (protocol.BoardInfo, error) {
	reply, err := c.exec(ctx, protocol.GetBoard())
	if err != nil {
		return protocol.BoardInfo{}, err
	}
	return protocol.ParseBoardInfo(reply.Text)
}

// Diagnose asks the board to dump the diagnostics of channel idx.
func (c *Collector) Diagnose(ctx context.Context, idx int) error {
	if _, err := c.exec(ctx, protocol.SetChannel(idx)); err != nil {
		return err
	}
	_, err := c.exec(ctx, protocol.GetAll())
	return err
}

// Configure selects channel idx on the board and uploads the settings of ch.
func (c *Collector) Configure(ctx context.Context, idx int, ch *channel.Channel) error {
	cmds := []protocol.Command{
		protocol.SetChannel(idx),
		protocol.SetSamples(ch.SamplesToTake()),
		protocol.SetInterval(ch.SampleInterval()),
		protocol.SetUnits(ch.Units()),
		protocol.SetMode(int(ch.Mode())),
	}
	for _, cmd := range cmds {
		if _, err := c.exec(ctx, cmd); err != nil {
			return err
		}
	}

	c.log.WithFields(logrus.Fields{
		"channel":     idx,
		"samples":     ch.SamplesToTake(),
		"interval_ms": ch.SampleInterval(),
		"units":       ch.Units(),
		"mode":        ch.Mode().String(),
	}).Info("Channel configured")
	return nil
}

// Run configures channel idx, starts a measurement and gathers exactly
// ch.SamplesToTake() points. When ctx is cancelled first the board is told to
// stop and the points gathered so far are returned with the context error.
func (c *Collector) Run(ctx context.Context, idx int, ch *channel.Channel) ([]Point, error) {
	if err := ch.Validate(); err != nil {
		return nil, fmt.Errorf("channel %d: %w", idx, err)
	}
	if err := c.Configure(ctx, idx, ch); err != nil {
		return nil, err
	}

	c.drainReadings()

	if _, err := c.exec(ctx, protocol.Start()); err != nil {
		return nil, err
	}

	want := ch.SamplesToTake()
	interval := ch.SampleInterval()
	points := make([]Point, 0, want)
	log := c.log.WithField("channel", idx)

	for len(points) < want {
		select {
		case r, ok := <-c.dev.Readings():
			if !ok {
				return points, ErrDeviceClosed
			}
			if r.Index != len(points) {
				log.WithFields(logrus.Fields{
					"expected": len(points),
					"got":      r.Index,
				}).Warn("Reading out of sequence")
			}
			p := toPoint(r, interval)
			points = append(points, p)
			c.notify(p)
			log.WithFields(logrus.Fields{
				"index": p.Index,
				"value": p.Value,
			}).Debug("Reading")
		case <-ctx.Done():
			c.stop()
			return points, ctx.Err()
		}
	}

	log.WithField("points", len(points)).Info("Measurement complete")
	return points, nil
}

func toPoint(r protocol.Reading, intervalMs uint32) Point {
	return Point{
		Index:   r.Index,
		Seconds: float64(r.Index) * float64(intervalMs) / 1000,
		Value:   r.Value,
	}
}

func (c *Collector) notify(p Point) {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	for _, fn := range c.callbacks {
		fn(p)
	}
}

// drainReadings drops readings left over from an earlier run.
func (c *Collector) drainReadings() {
	for {
		select {
		case _, ok := <-c.dev.Readings():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (c *Collector) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if _, err := c.exec(ctx, protocol.Stop()); err != nil {
		c.log.WithError(err).Warn("Failed to stop measurement")
	}
}

// exec sends a command and turns ERR replies into errors.
func (c *Collector) exec(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	reply, err := c.dev.Send(ctx, cmd)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("%s: %w", cmd, err)
	}
	if err := reply.Err(); err != nil {
		return reply, fmt.Errorf("%s: %w", cmd, err)
	}
	return reply, nil
}
