package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/daq"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type options struct {
	configPath string
	port       string
	mock       bool
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pmscollect",
		Short: "Physics Measurement System collector",
		Long: `Configures the channels of a PMS measurement board over a serial line,
runs measurements and stores the collected samples as CSV.

Example usage:
  pmscollect run --port /dev/ttyACM0 --channel 1 --samples 10 --interval 100
  pmscollect run --mock --samples 20`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&opts.port, "port", "p", "", "Serial port override (e.g., COM4 or /dev/ttyACM0)")
	rootCmd.PersistentFlags().BoolVar(&opts.mock, "mock", false, "Use mocked board instead of serial port")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newChannelsCmd(opts),
		newPortsCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// load reads the configuration and builds the logger writing to out.
func (o *options) load(out io.Writer) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override serial port if provided via command line
	if o.port != "" {
		cfg.Serial.Port = o.port
	}

	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	if o.verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return cfg, logger, nil
}

// openDevice connects to the configured board or the mock.
func (o *options) openDevice(cfg *config.Config, logger *logrus.Logger) (daq.Device, error) {
	return daq.Open(cfg, o.mock, logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pmscollect\n")
			fmt.Fprintf(out, "Version: %s\n", Version)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}
