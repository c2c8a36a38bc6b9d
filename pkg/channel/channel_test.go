package channel

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New()

	assert.Equal(t, uint32(250), c.SampleInterval())
	assert.Equal(t, 20, c.SamplesToTake())
	assert.Equal(t, ModeCal, c.Mode())
	assert.Equal(t, "", c.Units())
	assert.Equal(t, 250*time.Millisecond, c.Interval())
}

func TestSampleInterval_RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 250, 500, 60000, math.MaxUint32} {
		c := New()
		c.SetSampleInterval(v)
		assert.Equal(t, v, c.SampleInterval())
	}
}

func TestSamplesToTake_RoundTrip(t *testing.T) {
	for _, v := range []int{math.MinInt, -1, 0, 1, 20, 1000, math.MaxInt} {
		c := New()
		c.SetSamplesToTake(v)
		assert.Equal(t, v, c.SamplesToTake())
	}
}

func TestMode_RoundTrip(t *testing.T) {
	for _, v := range []Mode{ModeCal, 1, 2, -7, Mode(math.MaxInt)} {
		c := New()
		c.SetMode(v)
		assert.Equal(t, v, c.Mode())
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "cal", ModeCal.String())
	assert.Equal(t, "mode(3)", Mode(3).String())
}

func TestSetUnits(t *testing.T) {
	tests := []struct {
		name    string
		units   string
		want    string
		wantErr error
	}{
		{name: "empty", units: "", want: ""},
		{name: "one char", units: "V", want: "V"},
		{name: "two chars", units: "mm", want: "mm"},
		{name: "full capacity", units: "ppm", want: "ppm"},
		{name: "too long", units: "volt", want: "ppm", wantErr: ErrUnitsTooLong},
		{name: "much too long", units: strings.Repeat("x", 64), want: "ppm", wantErr: ErrUnitsTooLong},
		{name: "non-printable", units: "a\nb", want: "ppm", wantErr: ErrUnitsInvalid},
		{name: "non-ascii", units: "µ", want: "ppm", wantErr: ErrUnitsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			require.NoError(t, c.SetUnits("ppm"))

			err := c.SetUnits(tt.units)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, c.Units())
		})
	}
}

func TestSetUnits_ShorterClearsPrevious(t *testing.T) {
	c := New()
	require.NoError(t, c.SetUnits("ppm"))
	require.NoError(t, c.SetUnits("V"))
	assert.Equal(t, "V", c.Units())
}

func TestUnits_ReturnsCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.SetUnits("ppm"))

	u := []byte(c.Units())
	u[0] = 'X'

	assert.Equal(t, "ppm", c.Units())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		interval uint32
		samples  int
		wantErr  bool
	}{
		{name: "defaults", interval: 250, samples: 20},
		{name: "zero interval", interval: 0, samples: 20, wantErr: true},
		{name: "zero samples", interval: 250, samples: 0, wantErr: true},
		{name: "negative samples", interval: 250, samples: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.SetSampleInterval(tt.interval)
			c.SetSamplesToTake(tt.samples)

			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDump(t *testing.T) {
	c := New()
	c.SetSampleInterval(500)
	require.NoError(t, c.SetUnits("ppm"))

	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf))

	assert.Equal(t, "DBG SampleInterval = 500\n", buf.String())
	assert.Contains(t, buf.String(), "500")
}

func TestChannels_AreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.SetSampleInterval(10)
	require.NoError(t, a.SetUnits("V"))

	assert.Equal(t, uint32(DefaultSampleInterval), b.SampleInterval())
	assert.Equal(t, "", b.Units())

	copied := *a
	copied.SetSampleInterval(99)
	assert.Equal(t, uint32(10), a.SampleInterval())
}
