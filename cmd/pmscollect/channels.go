package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/pmscollect/pkg/collect"
	"github.com/itohio/pmscollect/pkg/daq"
)

func newChannelsCmd(opts *options) *cobra.Command {
	var fromBoard bool

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Show the configured channels and their diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, cc := range cfg.Channels {
				ch, err := cc.Channel()
				if err != nil {
					return fmt.Errorf("channel %d (%s): %w", i, cc.Name, err)
				}
				fmt.Fprintf(out, "[%d] %s units=%q samples=%d mode=%s\n", i, cc.Name, ch.Units(), ch.SamplesToTake(), ch.Mode())
				if err := ch.Dump(out); err != nil {
					return err
				}
			}

			if !fromBoard {
				return nil
			}

			dev, err := opts.openDevice(cfg, logger)
			if err != nil {
				return err
			}
			defer dev.Close()

			collector := collect.New(dev, logger)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			for i := range cfg.Channels {
				if err := collector.Diagnose(ctx, i); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromBoard, "board", false, "Also ask the board to dump its channel diagnostics")

	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := daq.Ports()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintf(out, "%s\t%s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}
