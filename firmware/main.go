//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/pmscollect/pkg/adc"
	"github.com/itohio/pmscollect/pkg/board"
	"github.com/itohio/pmscollect/pkg/protocol"
)

var (
	uart = machine.UART0
	adcs [len(channelPins)]machine.ADC

	pms *board.Board

	// Timing
	lastSample time.Time

	// Serial buffer for reading lines
	lineBuffer   [LINE_BUFFER_SIZE]byte
	linePos      int
	lineOverflow bool
)

func main() {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}

	// Configure ADC pins
	machine.InitADC()
	for i, pin := range channelPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// GET ALL diagnostics go straight to the host.
	pms = board.New(BOARD_NAME, BOARD_VERSION, len(channelPins), uart)

	// Main loop
	for {
		processSerial()

		if pms.Running() {
			sample(time.Now())
		}

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(100 * time.Microsecond)
	}
}

// sample reads the selected channel once its interval has elapsed.
func sample(now time.Time) {
	idx, ch := pms.Selected()
	if now.Sub(lastSample) < ch.Interval() {
		return
	}
	lastSample = now

	// machine.ADC.Get returns a 16-bit scaled value regardless of resolution.
	raw := adcs[idx].Get() >> (16 - ADC_RESOLUTION)
	volts := adc.ToVolts(raw, ADC_RESOLUTION, float32(ADC_REFERENCE_MV)/1000)

	r, _, ok := pms.Record(float64(volts))
	if ok {
		writeLine(r.String())
	}
}

func processSerial() {
	// Read available bytes from serial
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if linePos > 0 && !lineOverflow {
				handleLine(string(lineBuffer[:linePos]))
			} else if lineOverflow {
				writeLine(protocol.Fail("line too long").String())
			}
			// Reset buffer regardless of length
			linePos = 0
			lineOverflow = false
			continue
		}

		if linePos < len(lineBuffer) {
			lineBuffer[linePos] = data
			linePos++
		} else {
			lineOverflow = true
		}
	}
}

func handleLine(line string) {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		writeLine(protocol.Fail("%v", err).String())
		return
	}

	reply := pms.Handle(cmd)
	if cmd.Op == protocol.OpStart && reply.OK {
		// First sample is taken immediately.
		lastSample = time.Time{}
	}
	writeLine(reply.String())
}

func writeLine(s string) {
	uart.Write([]byte(s))
	uart.Write([]byte{'\n'})
}
