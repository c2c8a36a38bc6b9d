package channel

import (
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultSampleInterval is the time between samples in milliseconds.
	DefaultSampleInterval = 250
	// DefaultSamplesToTake is the number of samples taken per measurement.
	DefaultSamplesToTake = 20
	// UnitsCapacity is the maximum length of a units label.
	UnitsCapacity = 3
)

var (
	ErrUnitsTooLong = errors.New("units label too long")
	ErrUnitsInvalid = errors.New("units label contains non-printable characters")
	ErrInvalidRange = errors.New("value out of range")
)

// Mode selects how a channel collects samples.
type Mode int

const (
	// ModeCal is the calibration mode, the default for new channels.
	ModeCal Mode = iota
)

func (m Mode) String() string {
	switch m {
	case ModeCal:
		return "cal"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Channel holds the acquisition parameters of one measurement channel.
//
// A Channel is owned by exactly one acquisition context and is not safe for
// concurrent use.
type Channel struct {
	sampleInterval uint32 // ms
	samplesToTake  int
	units          [UnitsCapacity]byte
	unitsLen       uint8
	mode           Mode
}

// New returns a channel with default settings.
func New() *Channel {
	return &Channel{
		sampleInterval: DefaultSampleInterval,
		samplesToTake:  DefaultSamplesToTake,
		mode:           ModeCal,
	}
}

// SampleInterval returns the time between samples in milliseconds.
func (c *Channel) SampleInterval() uint32 {
	return c.sampleInterval
}

// SetSampleInterval sets the time between samples in milliseconds.
func (c *Channel) SetSampleInterval(ms uint32) {
	c.sampleInterval = ms
}

// Interval returns the sample interval as a duration.
func (c *Channel) Interval() time.Duration {
	return time.Duration(c.sampleInterval) * time.Millisecond
}

func (c *Channel) SamplesToTake() int {
	return c.samplesToTake
}

func (c *Channel) SetSamplesToTake(n int) {
	c.samplesToTake = n
}

// Units returns a copy of the units label.
func (c *Channel) Units() string {
	return string(c.units[:c.unitsLen])
}

// SetUnits replaces the units label. Labels longer than UnitsCapacity or
// containing non-printable ASCII are rejected and the current label is kept.
func (c *Channel) SetUnits(units string) error {
	if len(units) > UnitsCapacity {
		return fmt.Errorf("%w: %q has %d characters (max %d)", ErrUnitsTooLong, units, len(units), UnitsCapacity)
	}
	for i := 0; i < len(units); i++ {
		if units[i] < 0x20 || units[i] > 0x7e {
			return fmt.Errorf("%w: %q", ErrUnitsInvalid, units)
		}
	}

	c.units = [UnitsCapacity]byte{}
	c.unitsLen = uint8(copy(c.units[:], units))
	return nil
}

func (c *Channel) Mode() Mode {
	return c.mode
}

func (c *Channel) SetMode(m Mode) {
	c.mode = m
}

// Validate reports whether the channel can be used for a measurement run.
func (c *Channel) Validate() error {
	if c.sampleInterval == 0 {
		return fmt.Errorf("%w: sample interval must be positive", ErrInvalidRange)
	}
	if c.samplesToTake <= 0 {
		return fmt.Errorf("%w: samples to take must be positive, got %d", ErrInvalidRange, c.samplesToTake)
	}
	return nil
}

// Dump writes the diagnostic line for the channel to w.
// Format: "DBG SampleInterval = <ms>\n"
func (c *Channel) Dump(w io.Writer) error {
	_, err := fmt.Fprintf(w, "DBG SampleInterval = %d\n", c.sampleInterval)
	return err
}
