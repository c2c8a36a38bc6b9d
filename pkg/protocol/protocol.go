package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformed      = errors.New("malformed line")
)

// Op identifies a host to board command.
type Op int

const (
	OpSetChannel Op = iota + 1
	OpSetSamples
	OpSetInterval
	OpSetUnits
	OpSetMode
	OpStart
	OpStop
	OpGetBoard
	OpGetAll
)

var opNames = map[Op]string{
	OpSetChannel:  "SET CHAN",
	OpSetSamples:  "SET SAMPLES",
	OpSetInterval: "SET INTERVAL",
	OpSetUnits:    "SET UNITS",
	OpSetMode:     "SET MODE",
	OpStart:       "START",
	OpStop:        "STOP",
	OpGetBoard:    "GET BOARD",
	OpGetAll:      "GET ALL",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is a single host to board command line.
// Value carries the numeric argument of SET CHAN, SET SAMPLES, SET INTERVAL
// and SET MODE; Text carries the SET UNITS label.
type Command struct {
	Op    Op
	Value int64
	Text  string
}

func SetChannel(n int) Command { return Command{Op: OpSetChannel, Value: int64(n)} }
func SetSamples(n int) Command { return Command{Op: OpSetSamples, Value: int64(n)} }
func SetInterval(ms uint32) Command { return Command{Op: OpSetInterval, Value: int64(ms)} }
func SetUnits(units string) Command { return Command{Op: OpSetUnits, Text: units} }
func SetMode(mode int) Command { return Command{Op: OpSetMode, Value: int64(mode)} }
func Start() Command { return Command{Op: OpStart} }
func Stop() Command { return Command{Op: OpStop} }
func GetBoard() Command { return Command{Op: OpGetBoard} }
func GetAll() Command { return Command{Op: OpGetAll} }

// String encodes the command without the line terminator.
func (c Command) String() string {
	switch c.Op {
	case OpSetChannel, OpSetSamples, OpSetInterval, OpSetMode:
		return c.Op.String() + " " + strconv.FormatInt(c.Value, 10)
	case OpSetUnits:
		if c.Text == "" {
			return c.Op.String()
		}
		return c.Op.String() + " " + c.Text
	default:
		return c.Op.String()
	}
}

// ParseCommand decodes a command line. Keywords are case-insensitive.
// The SET UNITS label is everything after the separator following UNITS,
// spaces included, so any label String encodes decodes unchanged.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if label, ok := unitsLabel(line); ok {
		return SetUnits(label), nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrMalformed)
	}

	verb := strings.ToUpper(fields[0])
	switch verb {
	case "START", "STOP":
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrMalformed, verb)
		}
		if verb == "START" {
			return Start(), nil
		}
		return Stop(), nil
	case "GET":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: GET expects one argument", ErrMalformed)
		}
		switch strings.ToUpper(fields[1]) {
		case "BOARD":
			return GetBoard(), nil
		case "ALL":
			return GetAll(), nil
		}
		return Command{}, fmt.Errorf("%w: GET %s", ErrUnknownCommand, fields[1])
	case "SET":
		return parseSet(fields[1:])
	}

	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
}

func parseSet(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("%w: SET without parameter", ErrMalformed)
	}

	var op Op
	switch strings.ToUpper(args[0]) {
	case "CHAN":
		op = OpSetChannel
	case "SAMPLES":
		op = OpSetSamples
	case "INTERVAL":
		op = OpSetInterval
	case "MODE":
		op = OpSetMode
	default:
		return Command{}, fmt.Errorf("%w: SET %s", ErrUnknownCommand, args[0])
	}

	if len(args) != 2 {
		return Command{}, fmt.Errorf("%w: %s expects one value", ErrMalformed, op)
	}
	// Channel, samples and mode end up in an int, which is 32 bits wide on
	// the board.
	bitSize := strconv.IntSize
	if op == OpSetInterval {
		bitSize = 64
	}
	value, err := strconv.ParseInt(args[1], 10, bitSize)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s value %q: %v", ErrMalformed, op, args[1], err)
	}
	if op == OpSetInterval && (value < 0 || value > 0xFFFFFFFF) {
		return Command{}, fmt.Errorf("%w: interval %d out of range", ErrMalformed, value)
	}

	return Command{Op: op, Value: value}, nil
}

// unitsLabel reports whether line is a SET UNITS command and returns its
// label verbatim. An empty label clears the units.
func unitsLabel(line string) (string, bool) {
	rest, ok := cutKeyword(strings.TrimLeft(line, " \t"), "SET")
	if !ok {
		return "", false
	}
	rest, ok = cutKeyword(strings.TrimLeft(rest, " \t"), "UNITS")
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	return rest[1:], true
}

// cutKeyword strips kw from the front of s when it is followed by a blank or
// the end of s.
func cutKeyword(s, kw string) (string, bool) {
	if len(s) < len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return "", false
	}
	rest := s[len(kw):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return rest, true
}

// Reply is the single line a board answers to every command.
type Reply struct {
	OK   bool
	Text string
}

// OK builds a success reply.
func OK(text string) Reply { return Reply{OK: true, Text: text} }

// Fail builds an error reply.
func Fail(format string, args ...any) Reply {
	return Reply{OK: false, Text: fmt.Sprintf(format, args...)}
}

func (r Reply) String() string {
	if r.OK {
		if r.Text == "" {
			return "OK"
		}
		return "OK " + r.Text
	}
	return "ERR " + r.Text
}

// Err returns nil for OK replies and an error carrying the board message
// otherwise.
func (r Reply) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("board error: %s", r.Text)
}

// ParseReply decodes an "OK ..." or "ERR ..." line.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimSpace(line)
	head, rest, _ := strings.Cut(line, " ")
	switch head {
	case "OK":
		return OK(rest), nil
	case "ERR":
		return Reply{OK: false, Text: rest}, nil
	}
	return Reply{}, fmt.Errorf("%w: not a reply: %q", ErrMalformed, line)
}

// BoardInfo is the payload of the GET BOARD reply.
type BoardInfo struct {
	Name     string
	Version  string
	Channels int
}

func (b BoardInfo) String() string {
	return fmt.Sprintf("BOARD %s %s %d", b.Name, b.Version, b.Channels)
}

// ParseBoardInfo decodes the text of a GET BOARD reply.
func ParseBoardInfo(text string) (BoardInfo, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 || fields[0] != "BOARD" {
		return BoardInfo{}, fmt.Errorf("%w: board info %q", ErrMalformed, text)
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil {
		return BoardInfo{}, fmt.Errorf("%w: channel count %q: %v", ErrMalformed, fields[3], err)
	}
	return BoardInfo{Name: fields[1], Version: fields[2], Channels: n}, nil
}
