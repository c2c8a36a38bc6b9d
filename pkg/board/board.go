package board

import (
	"errors"
	"io"

	"github.com/itohio/pmscollect/pkg/channel"
	"github.com/itohio/pmscollect/pkg/protocol"
)

var ErrBusy = errors.New("measurement in progress")

// Board owns a fixed bank of channels and executes protocol commands
// against the selected one.
//
// Board is not safe for concurrent use.
type Board struct {
	info     protocol.BoardInfo
	channels []*channel.Channel
	selected int
	diag     io.Writer

	running bool
	taken   int
}

// New creates a board with n channels at default settings.
// Diagnostics requested with GET ALL are written to diag (io.Discard when nil).
func New(name, version string, n int, diag io.Writer) *Board {
	if n < 1 {
		n = 1
	}
	if diag == nil {
		diag = io.Discard
	}

	channels := make([]*channel.Channel, n)
	for i := range channels {
		channels[i] = channel.New()
	}

	return &Board{
		info:     protocol.BoardInfo{Name: name, Version: version, Channels: n},
		channels: channels,
		diag:     diag,
	}
}

// Info returns the board identification.
func (b *Board) Info() protocol.BoardInfo {
	return b.info
}

// Running reports whether a measurement run is in progress.
func (b *Board) Running() bool {
	return b.running
}

// Selected returns the selected channel index and a copy of its settings.
func (b *Board) Selected() (int, channel.Channel) {
	return b.selected, *b.channels[b.selected]
}

// Handle executes a command and returns the reply line to send back.
func (b *Board) Handle(cmd protocol.Command) protocol.Reply {
	ch := b.channels[b.selected]

	switch cmd.Op {
	case protocol.OpSetChannel, protocol.OpSetSamples, protocol.OpSetInterval,
		protocol.OpSetUnits, protocol.OpSetMode, protocol.OpStart:
		if b.running {
			return protocol.Fail("%v", ErrBusy)
		}
	}

	switch cmd.Op {
	case protocol.OpSetChannel:
		if cmd.Value < 0 || cmd.Value >= int64(len(b.channels)) {
			return protocol.Fail("channel %d out of range [0, %d)", cmd.Value, len(b.channels))
		}
		b.selected = int(cmd.Value)
	case protocol.OpSetSamples:
		ch.SetSamplesToTake(int(cmd.Value))
	case protocol.OpSetInterval:
		ch.SetSampleInterval(uint32(cmd.Value))
	case protocol.OpSetUnits:
		if err := ch.SetUnits(cmd.Text); err != nil {
			return protocol.Fail("%v", err)
		}
	case protocol.OpSetMode:
		ch.SetMode(channel.Mode(cmd.Value))
	case protocol.OpStart:
		if err := ch.Validate(); err != nil {
			return protocol.Fail("%v", err)
		}
		b.running = true
		b.taken = 0
	case protocol.OpStop:
		b.running = false
	case protocol.OpGetBoard:
		return protocol.OK(b.info.String())
	case protocol.OpGetAll:
		if err := ch.Dump(b.diag); err != nil {
			return protocol.Fail("diagnostics: %v", err)
		}
	default:
		return protocol.Fail("unsupported command %v", cmd.Op)
	}

	return protocol.OK(cmd.String())
}

// Record stores the next sample of the running measurement and returns the
// data line for it. done is true once the selected channel has taken all of
// its samples; the run then stops. ok is false when no run is in progress.
func (b *Board) Record(value float64) (r protocol.Reading, done bool, ok bool) {
	if !b.running {
		return protocol.Reading{}, false, false
	}

	r = protocol.Reading{Index: b.taken, Value: value}
	b.taken++
	if b.taken >= b.channels[b.selected].SamplesToTake() {
		b.running = false
		done = true
	}
	return r, done, true
}
