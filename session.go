package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/zerotouch/cardiag/discovery"
	"github.com/zerotouch/cardiag/elm"
	"github.com/zerotouch/cardiag/obd"
	"github.com/zerotouch/cardiag/pid"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
)

func (a *app) dialer() (obd.Dialer, error) {
	switch a.config.Transport {
	case "serial":
		return obd.SerialDialer{BaudRate: a.config.BaudRate}, nil
	case "tcp":
		return obd.TCPDialer{DialTimeout: 5 * time.Second}, nil
	case "ble":
		return bleDialer()
	default:
		return nil, fmt.Errorf("transport %q: %w", a.config.Transport, obd.ErrUnsupportedTransport)
	}
}

// chooseAddress asks the user to pick one of the known adapters when no
// address was configured.
func (a *app) chooseAddress(ctx context.Context) (string, error) {
	if a.config.Address != "" {
		return a.config.Address, nil
	}
	if a.config.Transport == "tcp" {
		return "", fmt.Errorf("tcp needs --%s host[:port]: %w", flagAddress, obd.ErrInvalidArgs)
	}

	devices, err := a.registry().Paired(ctx)
	if err != nil {
		return "", fmt.Errorf("list adapters: %w", err)
	}
	switch len(devices) {
	case 0:
		return "", fmt.Errorf("no adapter found, pass --%s: %w", flagAddress, obd.ErrInvalidArgs)
	case 1:
		a.logger.Info("Using the only adapter found", "device", devices[0])
		return devices[0].Address, nil
	}

	prompt := promptui.Select{
		Label:    "Adapter",
		HideHelp: true,
		Items:    devices,
		Templates: &promptui.SelectTemplates{
			Active:   "▸ {{ .Name | cyan }} ({{ .Address }})",
			Inactive: "  {{ .Name }} ({{ .Address }})",
			Selected: "Adapter: {{ .Address }}",
		},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return devices[i].Address, nil
}

// connect opens a connection, retrying transport failures with backoff.
// The caller owns the returned Conn.
func (a *app) connect(ctx context.Context) (*obd.Conn, error) {
	dialer, err := a.dialer()
	if err != nil {
		return nil, err
	}
	address, err := a.chooseAddress(ctx)
	if err != nil {
		return nil, err
	}

	config, err := obd.NewConfigBuilder().
		WithDialer(dialer).
		WithTimeout(a.config.Timeout).
		WithLogger(a.logger.With("component", "obd")).
		Build()
	if err != nil {
		return nil, err
	}
	conn, err := obd.New(config)
	if err != nil {
		return nil, err
	}

	err = retry.Do(func() error {
		return conn.Connect(ctx, address)
	},
		retry.Context(ctx),
		retry.Attempts(a.config.Retries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, obd.ErrIO)
		}),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("Connect failed, retrying", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// withConn connects, runs fn and disconnects.
func (a *app) withConn(ctx context.Context, fn func(*obd.Conn) error) error {
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			a.logger.Error("Failed to disconnect", "error", err)
		}
	}()
	return fn(conn)
}

type exchange struct {
	Command  string `json:"command" yaml:"command"`
	Response string `json:"response" yaml:"response"`
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send COMMAND...",
		Short: "Send AT or OBD commands and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withConn(cmd.Context(), func(conn *obd.Conn) error {
				exchanges := make([]exchange, 0, len(args))
				for _, c := range args {
					resp, err := conn.SendCommand(cmd.Context(), c)
					if err != nil {
						return err
					}
					exchanges = append(exchanges, exchange{Command: c, Response: resp})
				}
				return a.print(cmd.OutOrStdout(), exchanges, func(w io.Writer) {
					for _, e := range exchanges {
						fmt.Fprintf(w, "%s\n%s\n", yellow("> %s", e.Command), formatResponse(e.Response))
					}
				})
			})
		},
	}
}

func (a *app) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the adapter reaches the vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withConn(cmd.Context(), func(conn *obd.Conn) error {
				result, err := conn.Ping(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), result, func(w io.Writer) {
					if result.Healthy {
						fmt.Fprintln(w, green("healthy"), result.Response)
					} else {
						fmt.Fprintln(w, red("unhealthy"), "no reply to", elm.CmdSupportedPIDs)
					}
				})
			})
		},
	}
}

func (a *app) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read PID...",
		Short: "Read live data (rpm, speed, coolant, ... or a hex PID; 'supported' lists PIDs)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withConn(ctx, func(conn *obd.Conn) error {
				if len(args) == 1 && args[0] == "supported" {
					resp, err := conn.SendCommand(ctx, elm.CmdSupportedPIDs)
					if err != nil {
						return err
					}
					pids, err := pid.Supported(resp)
					if err != nil {
						return err
					}
					names := make([]string, len(pids))
					for i, p := range pids {
						names[i] = fmt.Sprintf("%02X", p)
					}
					return a.print(cmd.OutOrStdout(), names, func(w io.Writer) {
						fmt.Fprintln(w, strings.Join(names, " "))
					})
				}

				values := make([]pid.Value, 0, len(args))
				for _, arg := range args {
					def, ok := pid.Lookup(arg)
					if !ok {
						return fmt.Errorf("unknown PID %q: %w", arg, obd.ErrInvalidArgs)
					}
					v, err := pid.Read(ctx, conn, def)
					if err != nil {
						return err
					}
					values = append(values, v)
				}
				return a.print(cmd.OutOrStdout(), values, func(w io.Writer) {
					for _, v := range values {
						fmt.Fprintf(w, "%-10s %s\n", v.Name, v)
					}
				})
			})
		},
	}
}

// shellInput returns a function yielding one line of shell input per call
// and io.EOF at the end. Terminals get a prompt; piped input is read line by
// line.
func shellInput(in io.Reader, label string) func() (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		prompt := promptui.Prompt{Label: label}
		return func() (string, error) {
			line, err := prompt.Run()
			if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) {
				return "", io.EOF
			}
			return line, err
		}
	}

	scanner := bufio.NewScanner(in)
	return func() (string, error) {
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
}

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive terminal to the adapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withConn(ctx, func(conn *obd.Conn) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Connected to %s, type exit to quit\n", conn.Address())
				next := shellInput(cmd.InOrStdin(), conn.Address())
				for {
					line, err := next()
					if errors.Is(err, io.EOF) {
						return nil
					}
					if err != nil {
						return err
					}
					line = strings.TrimSpace(line)
					switch strings.ToLower(line) {
					case "":
						continue
					case "exit", "quit":
						return nil
					}

					resp, err := conn.SendCommand(ctx, line)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, formatResponse(resp))
				}
			})
		},
	}
}

// formatResponse puts each reply line on its own terminal line and colors
// errors.
func formatResponse(resp string) string {
	lines := elm.Lines(resp)
	if len(lines) == 0 {
		return red("(no reply)")
	}
	for i, line := range lines {
		switch elm.Classify(line) {
		case elm.TypeError, elm.TypeNoData:
			lines[i] = red("%s", line)
		case elm.TypeOK, elm.TypeIdentity:
			lines[i] = green("%s", line)
		}
	}
	return strings.Join(lines, "\n")
}

func (a *app) registry() discovery.Registry {
	reg := discovery.Multi{
		Registries: []discovery.Registry{&discovery.SerialRegistry{}},
		Logger:     a.logger.With("component", "discovery"),
	}
	if len(a.config.Devices) > 0 {
		reg.Registries = append(reg.Registries, &discovery.StaticRegistry{Devices: a.config.Devices})
	}
	if ble := bleRegistry(); ble != nil {
		reg.Registries = append(reg.Registries, ble)
	}
	return reg
}
