package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	flagConfig    = "config"
	flagTransport = "transport"
	flagAddress   = "address"
	flagBaudRate  = "baud-rate"
	flagTimeout   = "timeout"
	flagRetries   = "retries"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagOutput    = "output"
)

// app is shared by every command once the root command has loaded the
// configuration.
type app struct {
	config *Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "cardiag",
		Short:        "Talk to ELM327 OBD-II adapters",
		Long:         "cardiag connects to an ELM327 adapter over serial, TCP or BLE and exchanges AT and OBD commands with it.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString(flagConfig)
			config, err := LoadConfig(WithDefaults(), WithFile(path), WithEnv(), WithFlags(cmd.Flags()))
			if err != nil {
				return err
			}
			a.config = config
			a.logger = newLogger(cmd.ErrOrStderr(), config.LogLevel, config.LogFormat)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagConfig, "c", "", "YAML configuration file")
	pf.StringP(flagTransport, "t", "serial", "adapter transport (serial, tcp, ble)")
	pf.StringP(flagAddress, "a", "", "adapter address: port name, host:port or MAC")
	pf.IntP(flagBaudRate, "b", 38400, "baud rate for serial adapters")
	pf.Duration(flagTimeout, 0, "per-command timeout (default 1.5s)")
	pf.Uint(flagRetries, 3, "connection attempts")
	pf.String(flagLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(flagLogFormat, "text", "log format (text, json)")
	pf.StringP(flagOutput, "o", "text", "output format (text, json, yaml)")

	rootCmd.AddCommand(
		a.sendCmd(),
		a.pingCmd(),
		a.readCmd(),
		a.shellCmd(),
		a.listCmd(),
		a.scanCmd(),
		a.pairCmd(),
	)
	return rootCmd
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
