package daq

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/itohio/pmscollect/pkg/board"
	"github.com/itohio/pmscollect/pkg/protocol"
)

// fakeFirmware answers commands on conn the way the board firmware does:
// one reply per command, then n data lines after a successful START.
func fakeFirmware(t *testing.T, conn net.Conn, b *board.Board) {
	t.Helper()

	go func() {
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			cmd, err := protocol.ParseCommand(scanner.Text())
			var reply protocol.Reply
			if err != nil {
				reply = protocol.Fail("%v", err)
			} else {
				reply = b.Handle(cmd)
			}
			if _, err := fmt.Fprintln(conn, reply.String()); err != nil {
				return
			}

			for b.Running() {
				r, _, _ := b.Record(float64(b.Info().Channels))
				if _, err := fmt.Fprintln(conn, r.String()); err != nil {
					return
				}
			}
		}
	}()
}

func newPipedSerial(t *testing.T, diag io.Writer) (*Serial, *board.Board) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	host, dev := net.Pipe()
	b := board.New("PMS", "1.4", 3, diag)
	fakeFirmware(t, dev, b)

	d := New("/dev/test", 0, 0, logger)
	d.open = func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/test", name)
		assert.Equal(t, DefaultBaudRate, mode.BaudRate)
		return host, nil
	}
	require.NoError(t, d.Connect())
	t.Cleanup(func() { d.Close() })

	return d, b
}

func TestSerial_NotConnected(t *testing.T) {
	d := New("/dev/none", 0, 0, nil)
	assert.False(t, d.IsConnected())

	_, err := d.Send(context.Background(), protocol.Start())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestSerial_CloseWithoutConnect(t *testing.T) {
	d := New("/dev/none", 0, 0, nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	select {
	case _, ok := <-d.Readings():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("readings not closed")
	}

	assert.Error(t, d.Connect())
}

func TestSerial_UnitsLabelSurvivesWire(t *testing.T) {
	for _, label := range []string{"", "V", " V", "a ", " ", "m s"} {
		t.Run(label, func(t *testing.T) {
			d, b := newPipedSerial(t, nil)

			reply, err := d.Send(context.Background(), protocol.SetUnits(label))
			require.NoError(t, err)
			require.True(t, reply.OK, reply.Text)

			_, ch := b.Selected()
			assert.Equal(t, label, ch.Units())
		})
	}
}

func TestSerial_OpenError(t *testing.T) {
	d := New("/dev/none", 0, 0, nil)
	d.open = func(string, *serial.Mode) (io.ReadWriteCloser, error) {
		return nil, fmt.Errorf("no such device")
	}

	err := d.Connect()
	assert.ErrorContains(t, err, "/dev/none")
	assert.False(t, d.IsConnected())
}

func TestSerial_SendReceivesReply(t *testing.T) {
	d, _ := newPipedSerial(t, nil)
	assert.True(t, d.IsConnected())
	assert.ErrorIs(t, d.Connect(), ErrAlreadyConnected)

	reply, err := d.Send(context.Background(), protocol.SetChannel(1))
	require.NoError(t, err)
	assert.Equal(t, protocol.OK("SET CHAN 1"), reply)

	reply, err = d.Send(context.Background(), protocol.SetUnits("volt"))
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Error(t, reply.Err())

	reply, err = d.Send(context.Background(), protocol.GetBoard())
	require.NoError(t, err)
	info, err := protocol.ParseBoardInfo(reply.Text)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Channels)
}

func TestSerial_Readings(t *testing.T) {
	d, _ := newPipedSerial(t, nil)
	ctx := context.Background()

	for _, cmd := range []protocol.Command{protocol.SetSamples(4), protocol.Start()} {
		reply, err := d.Send(ctx, cmd)
		require.NoError(t, err)
		require.True(t, reply.OK, reply.Text)
	}

	for i := 0; i < 4; i++ {
		select {
		case r := <-d.Readings():
			assert.Equal(t, protocol.Reading{Index: i, Value: 3}, r)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for reading %d", i)
		}
	}
}

func TestSerial_ReplyTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	host, dev := net.Pipe()
	defer dev.Close()

	// Board that reads but never answers.
	go io.Copy(io.Discard, dev)

	d := New("/dev/test", 0, 0, logger)
	d.ReplyTimeout = 20 * time.Millisecond
	d.open = func(string, *serial.Mode) (io.ReadWriteCloser, error) { return host, nil }
	require.NoError(t, d.Connect())
	defer d.Close()

	_, err := d.Send(context.Background(), protocol.Stop())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerial_CloseClosesReadings(t *testing.T) {
	d, _ := newPipedSerial(t, nil)
	require.NoError(t, d.Close())
	assert.False(t, d.IsConnected())

	_, ok := <-d.Readings()
	assert.False(t, ok)

	_, err := d.Send(context.Background(), protocol.Stop())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestSerial_RouteDiagnosticsAndGarbage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := New("/dev/test", 0, 0, logger)

	d.route("DBG SampleInterval = 500")
	d.route("DATA x 1")
	d.route("OK SET CHAN 0")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "DBG SampleInterval = 500", entries[0].Data["line"])
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)

	select {
	case r := <-d.replies:
		assert.Equal(t, protocol.OK("SET CHAN 0"), r)
	default:
		t.Fatal("reply not routed")
	}
}

func TestSerial_RouteDropsWhenFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := New("/dev/test", 0, 1, logger)

	d.route("DATA 0 1")
	d.route("DATA 1 1")

	assert.Len(t, d.readings, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Readings channel full, dropping reading", hook.LastEntry().Message)
}
