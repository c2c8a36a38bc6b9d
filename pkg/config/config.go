package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/pmscollect/pkg/channel"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig    `yaml:"serial"`
	Channels []ChannelConfig `yaml:"channels"`
	Output   OutputConfig    `yaml:"output"`
	Log      LogConfig       `yaml:"log"`
	Mock     MockConfig      `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"` // How long to wait for the board to answer a command
}

// ChannelConfig describes one board channel. Zero values fall back to the
// channel defaults.
type ChannelConfig struct {
	Name       string `yaml:"name"`
	Units      string `yaml:"units"`
	IntervalMs uint32 `yaml:"interval_ms"`
	Samples    int    `yaml:"samples"`
	Mode       int    `yaml:"mode"`
}

// OutputConfig contains where recorded runs are stored.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"` // logrus level name
}

// MockConfig contains mock board configuration.
type MockConfig struct {
	Offset         float64       `yaml:"offset"`          // Signal offset (V)
	Amplitude      float64       `yaml:"amplitude"`       // Sine amplitude (V)
	Period         time.Duration `yaml:"period"`          // Sine period
	NoiseLevel     float64       `yaml:"noise_level"`     // Noise level (V)
	VRef           float64       `yaml:"vref"`            // ADC reference (V)
	ResolutionBits int           `yaml:"resolution_bits"` // ADC resolution
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "COM4", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate:     115200,
			ReplyTimeout: 2 * time.Second,
		},
		Channels: []ChannelConfig{
			{Name: "Voltage", Units: "V"},
			{Name: "Ultrasound", Units: "mm"},
			{Name: "IR"},
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Offset:         1.65,
			Amplitude:      1.0,
			Period:         5 * time.Second,
			NoiseLevel:     0.01,
			VRef:           3.3,
			ResolutionBits: 12,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that every configured channel can be built.
func (c *Config) Validate() error {
	for i, ch := range c.Channels {
		if _, err := ch.Channel(); err != nil {
			return fmt.Errorf("channel %d (%s): %w", i, ch.Name, err)
		}
	}
	return nil
}

// Channel builds a channel from the configuration.
func (cc ChannelConfig) Channel() (*channel.Channel, error) {
	ch := channel.New()
	if cc.IntervalMs != 0 {
		ch.SetSampleInterval(cc.IntervalMs)
	}
	if cc.Samples != 0 {
		ch.SetSamplesToTake(cc.Samples)
	}
	ch.SetMode(channel.Mode(cc.Mode))

	if err := ch.SetUnits(cc.Units); err != nil {
		return nil, err
	}
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	return ch, nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReplyTimeout == 0 {
		c.Serial.ReplyTimeout = def.Serial.ReplyTimeout
	}

	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
	if c.Mock.VRef == 0 {
		c.Mock.VRef = def.Mock.VRef
	}
	if c.Mock.ResolutionBits == 0 {
		c.Mock.ResolutionBits = def.Mock.ResolutionBits
	}
}
