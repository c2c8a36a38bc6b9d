package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/pmscollect/pkg/collect"
	"github.com/itohio/pmscollect/pkg/record"
)

type runOptions struct {
	channel  int
	samples  int
	interval uint32
	outDir   string
	noSave   bool
}

func newRunCmd(opts *options) *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one measurement and save it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasurement(cmd, opts, ro)
		},
	}

	cmd.Flags().IntVar(&ro.channel, "channel", 0, "Board channel index")
	cmd.Flags().IntVarP(&ro.samples, "samples", "n", 0, "Samples to take (overrides config)")
	cmd.Flags().Uint32VarP(&ro.interval, "interval", "i", 0, "Sample interval in ms (overrides config)")
	cmd.Flags().StringVarP(&ro.outDir, "out", "o", "", "Output directory (overrides config)")
	cmd.Flags().BoolVar(&ro.noSave, "no-save", false, "Do not write a CSV file")

	return cmd
}

func runMeasurement(cmd *cobra.Command, opts *options, ro runOptions) error {
	cfg, logger, err := opts.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if ro.channel < 0 || ro.channel >= len(cfg.Channels) {
		return fmt.Errorf("channel %d not configured (have %d)", ro.channel, len(cfg.Channels))
	}
	chCfg := cfg.Channels[ro.channel]

	ch, err := chCfg.Channel()
	if err != nil {
		return fmt.Errorf("channel %d (%s): %w", ro.channel, chCfg.Name, err)
	}
	if ro.samples != 0 {
		ch.SetSamplesToTake(ro.samples)
	}
	if ro.interval != 0 {
		ch.SetSampleInterval(ro.interval)
	}

	dev, err := opts.openDevice(cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := collect.New(dev, logger)

	if info, err := collector.Board(ctx); err != nil {
		logger.WithError(err).Warn("Board did not identify itself")
	} else {
		logger.WithFields(logrus.Fields{
			"board":    info.Name,
			"version":  info.Version,
			"channels": info.Channels,
		}).Info("Connected to board")
	}

	out := cmd.OutOrStdout()
	collector.OnPoint(func(p collect.Point) {
		fmt.Fprintf(out, "%d: %g\n", p.Index+1, p.Value)
	})

	started := time.Now()
	points, err := collector.Run(ctx, ro.channel, ch)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("measurement failed: %w", err)
	}
	if err != nil {
		logger.WithField("points", len(points)).Warn("Measurement interrupted")
	}

	if ro.noSave || len(points) == 0 {
		return nil
	}

	dir := cfg.Output.Dir
	if ro.outDir != "" {
		dir = ro.outDir
	}
	path, err := record.Save(dir, started, ch.Units(), points)
	if err != nil {
		return err
	}
	logger.WithField("path", path).Info("Saved measurement")

	return nil
}
