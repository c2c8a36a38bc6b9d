// Package adc converts between raw ADC counts and volts.
//
// float32 is used throughout since the same code runs on the board.
package adc

import "github.com/chewxy/math32"

const (
	// DefaultResolution is the ADC resolution in bits.
	DefaultResolution = 12
	// DefaultVRef is the ADC reference voltage.
	DefaultVRef float32 = 3.3
)

// Max returns the largest count of an ADC with the given resolution.
func Max(bits int) uint16 {
	if bits <= 0 || bits > 16 {
		bits = DefaultResolution
	}
	return uint16((uint32(1) << bits) - 1)
}

// ToVolts converts a raw count to volts, rounded to the nearest millivolt.
// Counts above the resolution are clamped.
func ToVolts(raw uint16, bits int, vref float32) float32 {
	top := Max(bits)
	if raw > top {
		raw = top
	}
	v := float32(raw) / float32(top) * vref
	return math32.Round(v*1000) / 1000
}

// FromVolts converts volts to the nearest raw count, clamped to [0, Max(bits)].
func FromVolts(v float32, bits int, vref float32) uint16 {
	if vref <= 0 || math32.IsNaN(v) {
		return 0
	}
	top := Max(bits)
	count := math32.Round(v / vref * float32(top))
	if count < 0 {
		return 0
	}
	if count > float32(top) {
		return top
	}
	return uint16(count)
}
