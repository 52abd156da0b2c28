package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zerotouch/cardiag/discovery"
)

// print writes v as JSON or YAML, or calls text for the default output.
func (a *app) print(w io.Writer, v any, text func(io.Writer)) error {
	switch a.config.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

func printDevices(w io.Writer, devices []discovery.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "no adapters found")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%-20s %s\n", d.Address, d.Name)
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List paired and attached adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := a.registry().Paired(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), devices, func(w io.Writer) {
				printDevices(w, devices)
			})
		},
	}
}

func newScanBar(window time.Duration) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		int(window/(100*time.Millisecond)),
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription("[cyan]scanning[reset]"),
		progressbar.OptionClearOnFinish(),
	)
}

func (a *app) scanCmd() *cobra.Command {
	var window time.Duration

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover adapters for a while",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("window") {
				window = a.config.ScanWindow
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			bar := newScanBar(window)
			stop := make(chan struct{})
			defer close(stop)
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						bar.Add(1)
					}
				}
			}()

			var devices []discovery.Device
			for d, err := range discovery.Scan(ctx, a.registry(), window) {
				if err != nil {
					bar.Clear()
					return err
				}
				a.logger.Debug("Adapter found", "device", d)
				devices = append(devices, d)
				if a.config.Output == "text" {
					bar.Clear()
					fmt.Fprintf(out, "%-20s %s\n", d.Address, d.Name)
				}
			}
			bar.Finish()

			if a.config.Output == "text" {
				if len(devices) == 0 {
					fmt.Fprintln(out, "no adapters found")
				}
				return nil
			}
			return a.print(out, devices, nil)
		},
	}
	scanCmd.Flags().DurationVarP(&window, "window", "w", discovery.DefaultScanWindow, "how long to scan")
	return scanCmd
}

func (a *app) pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair ADDRESS",
		Short: "Pair with an adapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.registry().Pair(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result := struct {
				Address string `json:"address" yaml:"address"`
				Paired  bool   `json:"paired" yaml:"paired"`
			}{args[0], ok}
			return a.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintln(w, green("paired"), args[0])
			})
		},
	}
}
