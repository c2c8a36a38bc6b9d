package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const readingTag = "DATA"

// Reading is one sample reported by the board during a run.
type Reading struct {
	Index int // 0-based position within the run
	Value float64
}

// String encodes the reading without the line terminator.
// Format: DATA <index> <value>
func (r Reading) String() string {
	return readingTag + " " + strconv.Itoa(r.Index) + " " + strconv.FormatFloat(r.Value, 'g', -1, 64)
}

// IsReading reports whether the line is a data line rather than a reply.
func IsReading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), readingTag+" ")
}

// ParseReading decodes a data line.
func ParseReading(line string) (Reading, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != readingTag {
		return Reading{}, fmt.Errorf("%w: expected %q, got %q", ErrMalformed, "DATA <index> <value>", line)
	}

	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return Reading{}, fmt.Errorf("%w: invalid index: %v", ErrMalformed, err)
	}
	if index < 0 {
		return Reading{}, fmt.Errorf("%w: negative index %d", ErrMalformed, index)
	}

	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: invalid value: %v", ErrMalformed, err)
	}

	return Reading{Index: index, Value: value}, nil
}
