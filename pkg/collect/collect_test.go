package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/pmscollect/pkg/channel"
	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/daq"
	"github.com/itohio/pmscollect/pkg/protocol"
)

// scriptedDevice records commands and replies OK unless told otherwise.
type scriptedDevice struct {
	sent     []protocol.Command
	fail     map[protocol.Op]string
	sendErr  error
	readings chan protocol.Reading
}

func newScriptedDevice() *scriptedDevice {
	return &scriptedDevice{
		fail:     map[protocol.Op]string{},
		readings: make(chan protocol.Reading, 10),
	}
}

func (d *scriptedDevice) Connect() error { return nil }
func (d *scriptedDevice) Close() error { return nil }
func (d *scriptedDevice) IsConnected() bool { return true }
func (d *scriptedDevice) Readings() <-chan protocol.Reading { return d.readings }

func (d *scriptedDevice) Send(_ context.Context, cmd protocol.Command) (protocol.Reply, error) {
	d.sent = append(d.sent, cmd)
	if d.sendErr != nil {
		return protocol.Reply{}, d.sendErr
	}
	if msg, ok := d.fail[cmd.Op]; ok {
		return protocol.Fail("%s", msg), nil
	}
	if cmd.Op == protocol.OpGetBoard {
		return protocol.OK("BOARD PMS 1.4 3"), nil
	}
	return protocol.OK(cmd.String()), nil
}

var _ daq.Device = (*scriptedDevice)(nil)

func newChannel(t *testing.T, samples int, interval uint32, units string) *channel.Channel {
	t.Helper()
	ch := channel.New()
	ch.SetSamplesToTake(samples)
	ch.SetSampleInterval(interval)
	require.NoError(t, ch.SetUnits(units))
	return ch
}

func TestConfigure_SendsChannelSettings(t *testing.T) {
	dev := newScriptedDevice()
	logger, _ := test.NewNullLogger()
	c := New(dev, logger)

	require.NoError(t, c.Configure(context.Background(), 1, newChannel(t, 10, 100, "mm")))

	assert.Equal(t, []protocol.Command{
		protocol.SetChannel(1),
		protocol.SetSamples(10),
		protocol.SetInterval(100),
		protocol.SetUnits("mm"),
		protocol.SetMode(int(channel.ModeCal)),
	}, dev.sent)
}

func TestConfigure_BoardError(t *testing.T) {
	dev := newScriptedDevice()
	dev.fail[protocol.OpSetChannel] = "channel 7 out of range [0, 3)"
	c := New(dev, nil)

	err := c.Configure(context.Background(), 7, channel.New())
	assert.ErrorContains(t, err, "SET CHAN 7")
	assert.ErrorContains(t, err, "out of range")
	assert.Len(t, dev.sent, 1)
}

func TestConfigure_TransportError(t *testing.T) {
	dev := newScriptedDevice()
	dev.sendErr = daq.ErrNotConnected
	c := New(dev, nil)

	err := c.Configure(context.Background(), 0, channel.New())
	assert.ErrorIs(t, err, daq.ErrNotConnected)
}

func TestRun_RejectsInvalidChannel(t *testing.T) {
	dev := newScriptedDevice()
	c := New(dev, nil)

	_, err := c.Run(context.Background(), 0, newChannel(t, 0, 100, ""))
	assert.ErrorIs(t, err, channel.ErrInvalidRange)
	assert.Empty(t, dev.sent)
}

func TestRun_CollectsPoints(t *testing.T) {
	dev := newScriptedDevice()
	logger, _ := test.NewNullLogger()
	c := New(dev, logger)

	// Stale reading from a previous run is dropped.
	dev.readings <- protocol.Reading{Index: 9, Value: -1}

	var seen []Point
	c.OnPoint(func(p Point) { seen = append(seen, p) })

	go func() {
		// Wait until START has been sent before producing readings.
		time.Sleep(10 * time.Millisecond)
		for i := 0; i < 3; i++ {
			dev.readings <- protocol.Reading{Index: i, Value: float64(i) + 0.5}
		}
	}()

	points, err := c.Run(context.Background(), 0, newChannel(t, 3, 250, "V"))
	require.NoError(t, err)

	assert.Equal(t, []Point{
		{Index: 0, Seconds: 0, Value: 0.5},
		{Index: 1, Seconds: 0.25, Value: 1.5},
		{Index: 2, Seconds: 0.5, Value: 2.5},
	}, points)
	assert.Equal(t, points, seen)
	assert.Equal(t, protocol.Start(), dev.sent[len(dev.sent)-1])
}

func TestRun_StartRejected(t *testing.T) {
	dev := newScriptedDevice()
	dev.fail[protocol.OpStart] = "measurement in progress"
	c := New(dev, nil)

	points, err := c.Run(context.Background(), 0, channel.New())
	assert.Error(t, err)
	assert.Nil(t, points)
}

func TestRun_CancelSendsStop(t *testing.T) {
	dev := newScriptedDevice()
	logger, _ := test.NewNullLogger()
	c := New(dev, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	points, err := c.Run(ctx, 0, newChannel(t, 5, 1000, ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, points)
	assert.Equal(t, protocol.Stop(), dev.sent[len(dev.sent)-1])
}

func TestRun_DeviceClosed(t *testing.T) {
	dev := newScriptedDevice()
	c := New(dev, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		dev.readings <- protocol.Reading{Index: 0, Value: 1}
		close(dev.readings)
	}()

	points, err := c.Run(context.Background(), 0, newChannel(t, 3, 100, ""))
	assert.True(t, errors.Is(err, ErrDeviceClosed))
	assert.Len(t, points, 1)
}

func TestBoard(t *testing.T) {
	c := New(newScriptedDevice(), nil)

	info, err := c.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.BoardInfo{Name: "PMS", Version: "1.4", Channels: 3}, info)
}

func TestDiagnose(t *testing.T) {
	dev := newScriptedDevice()
	c := New(dev, nil)

	require.NoError(t, c.Diagnose(context.Background(), 2))
	assert.Equal(t, []protocol.Command{protocol.SetChannel(2), protocol.GetAll()}, dev.sent)
}

func TestRun_WithMockDevice(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.Default().Mock
	dev := daq.NewMock(&cfg, logger)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	c := New(dev, logger)
	ch := newChannel(t, 8, 2, "V")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	points, err := c.Run(ctx, 0, ch)
	require.NoError(t, err)
	require.Len(t, points, 8)
	for i, p := range points {
		assert.Equal(t, i, p.Index)
		assert.InDelta(t, float64(i)*0.002, p.Seconds, 1e-9)
	}

	// A second run on another channel works on the same device.
	points, err = c.Run(ctx, 1, newChannel(t, 2, 1, "mm"))
	require.NoError(t, err)
	assert.Len(t, points, 2)
}
