package obd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zerotouch/cardiag/elm"
)

// State is the lifecycle state of a Conn.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Conn is a connection to a single ELM327 adapter. It owns the transport
// exclusively and serializes every command through one worker goroutine, so
// commands issued from several goroutines queue instead of interleaving
// their reads.
//
// A Conn starts idle. Connect dials the adapter and runs the initialization
// sequence; Disconnect closes it again. There is no automatic reconnection:
// after Disconnect, or after a transport failure, call Connect again.
type Conn struct {
	config Config
	logger *slog.Logger

	// lifecycle serializes Connect and Disconnect
	lifecycle sync.Mutex

	// mu guards the fields below
	mu      sync.Mutex
	state   State
	address string
	// commands queues requests for the worker; nil unless ready
	commands chan *commandRequest
	// done is closed when the worker exits
	done chan struct{}
}

type requestKind int

const (
	requestCommand requestKind = iota
	requestClose
)

// commandRequest represents a unit of work for the worker.
type commandRequest struct {
	kind     requestKind
	cmd      string
	timeout  time.Duration
	respChan chan commandResponse
}

// commandResponse contains the result of a request.
type commandResponse struct {
	response string
	err      error
}

// PingResult reports the outcome of a liveness probe.
type PingResult struct {
	Healthy  bool   `json:"healthy" yaml:"healthy"`
	Response string `json:"response" yaml:"response"`
}

// New creates an idle Conn with the given configuration.
func New(config Config) (*Conn, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()
	return &Conn{
		config: config,
		logger: config.logger,
	}, nil
}

// Connect dials address and prepares the adapter: reset, echo off,
// linefeeds off, spaces off and automatic protocol selection, in that order,
// each awaited before the next is sent.
//
// The replies to the initialization commands are logged but not validated.
// A transport failure during initialization closes the transport and is
// returned wrapped in ErrIO.
func (c *Conn) Connect(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("missing adapter address: %w", ErrInvalidArgs)
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	transport, err := c.dial(ctx, address)
	if err != nil {
		c.setState(StateIdle)
		return err
	}

	if err := c.init(transport); err != nil {
		transport.Close()
		c.setState(StateIdle)
		return fmt.Errorf("initialize adapter: %w", err)
	}

	commands := make(chan *commandRequest)
	done := make(chan struct{})

	c.mu.Lock()
	c.state = StateReady
	c.address = address
	c.commands = commands
	c.done = done
	c.mu.Unlock()

	go c.loop(transport, commands, done)

	c.logger.Info("Adapter connected", "address", address)
	return nil
}

func (c *Conn) dial(ctx context.Context, address string) (Transport, error) {
	c.logger.Debug("Dialing adapter", "address", address)
	transport, err := c.config.dialer.Dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if transport == nil {
		return nil, fmt.Errorf("dial %s: no transport returned: %w", address, ErrIO)
	}
	return transport, nil
}

// init sends the fixed initialization sequence directly on the transport,
// before the worker takes ownership of it.
func (c *Conn) init(t Transport) error {
	for _, cmd := range elm.InitSequence {
		resp, err := c.config.execute(t, cmd, c.config.timeout)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		c.logger.Debug("Initialization command", "command", cmd, "response", resp)
	}
	return nil
}

// loop is the worker that owns the transport while the Conn is ready. It is
// the only goroutine that reads from or writes to the transport. It exits
// after a close request or an I/O failure, tearing the connection down.
func (c *Conn) loop(t Transport, commands <-chan *commandRequest, done chan struct{}) {
	defer close(done)

	for req := range commands {
		switch req.kind {
		case requestClose:
			err := t.Close()
			c.teardown()
			if err != nil {
				err = ioError("close transport", err)
			}
			req.respChan <- commandResponse{err: err}
			return

		case requestCommand:
			resp, err := c.config.execute(t, req.cmd, req.timeout)
			if errors.Is(err, ErrIO) {
				c.logger.Warn("Transport failed, closing connection", "command", req.cmd, "error", err)
				t.Close()
				c.teardown()
				req.respChan <- commandResponse{err: err}
				return
			}
			req.respChan <- commandResponse{response: resp, err: err}
		}
	}
}

func (c *Conn) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.address = ""
	c.commands = nil
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// submit hands req to the worker and waits for the result. Cancelling ctx
// abandons a request that is still queued; a request already picked up by
// the worker runs to completion.
func (c *Conn) submit(ctx context.Context, req *commandRequest) (commandResponse, error) {
	c.mu.Lock()
	commands, done := c.commands, c.done
	c.mu.Unlock()

	if commands == nil {
		return commandResponse{}, ErrNotConnected
	}

	select {
	case commands <- req:
	case <-done:
		return commandResponse{}, ErrNotConnected
	case <-ctx.Done():
		return commandResponse{}, fmt.Errorf("command %q not sent: %w", req.cmd, ctx.Err())
	}

	return <-req.respChan, nil
}

// Execute sends cmd and returns the adapter's reply, waiting at most timeout
// for the ready prompt (DefaultTimeout or the configured timeout when
// timeout is zero). A reply that does not arrive in time yields the partial,
// possibly empty, text and no error.
func (c *Conn) Execute(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = c.config.timeout
	}
	req := &commandRequest{
		kind:     requestCommand,
		cmd:      cmd,
		timeout:  timeout,
		respChan: make(chan commandResponse, 1),
	}
	resp, err := c.submit(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.response, resp.err
}

// SendCommand sends cmd with the configured timeout.
func (c *Conn) SendCommand(ctx context.Context, cmd string) (string, error) {
	return c.Execute(ctx, cmd, c.config.timeout)
}

// Ping requests the supported PIDs (0100) as a lightweight liveness probe.
// The adapter is healthy when the reply is not empty.
func (c *Conn) Ping(ctx context.Context) (PingResult, error) {
	resp, err := c.SendCommand(ctx, elm.CmdSupportedPIDs)
	if err != nil {
		return PingResult{}, err
	}
	return PingResult{Healthy: resp != "", Response: resp}, nil
}

// Disconnect closes the transport. It waits for an in-flight command to
// finish first. Disconnecting an idle Conn is a no-op and returns nil.
func (c *Conn) Disconnect() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	req := &commandRequest{
		kind:     requestClose,
		respChan: make(chan commandResponse, 1),
	}
	resp, err := c.submit(context.Background(), req)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	if err != nil {
		return err
	}
	if resp.err != nil {
		return resp.err
	}
	c.logger.Info("Adapter disconnected")
	return nil
}

// IsConnected reports whether the Conn is ready for commands. It performs
// no I/O.
func (c *Conn) IsConnected() bool {
	return c.State() == StateReady
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Address returns the address of the connected adapter, or "" when idle.
func (c *Conn) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Conn) LogValue() slog.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slog.GroupValue(
		slog.String("state", c.state.String()),
		slog.String("address", c.address),
	)
}
