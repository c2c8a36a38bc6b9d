package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/pmscollect/pkg/config"
	"github.com/itohio/pmscollect/pkg/daq"
	"github.com/itohio/pmscollect/pkg/gui"
)

func main() {
	var (
		configPath string
		port       string
		mock       bool
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:          "pmsgui",
		Short:        "Physics Measurement System desktop application",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if port != "" {
				cfg.Serial.Port = port
			}

			logger := logrus.New()
			level, err := logrus.ParseLevel(cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
			}
			if verbose {
				level = logrus.DebugLevel
			}
			logger.SetLevel(level)

			dev, err := daq.Open(cfg, mock, logger)
			if err != nil {
				return err
			}
			defer dev.Close()

			application := app.NewWithID("com.itohio.pmscollect")
			window := application.NewWindow("Physics Measurement System")
			window.Resize(fyne.NewSize(1200, 800))
			window.CenterOnScreen()

			ui := gui.New(window, cfg, dev, logger)
			window.SetOnClosed(func() {
				ui.Stop()
				ui.Wait()
			})

			window.ShowAndRun()
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Serial port override (e.g., COM4 or /dev/ttyACM0)")
	rootCmd.Flags().BoolVar(&mock, "mock", false, "Use mocked board instead of serial port")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
