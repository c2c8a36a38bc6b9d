//go:build tinygo

package main

import "machine"

const (
	BOARD_NAME    = "PMS-Collector"
	BOARD_VERSION = "1.4"

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Serial configuration
	// Longest line is a data line: "DATA 65535 3.3\n", well below 115200 baud
	// even at 1ms sample interval.
	UART_BAUD_RATE = 115200

	// Longest accepted command line
	LINE_BUFFER_SIZE = 32
)

// Channel input pins, indexed by board channel:
// 0 voltage, 1 ultrasound distance sensor, 2 IR sensor
var channelPins = [...]machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
}
