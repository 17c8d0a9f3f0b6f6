package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// Stdio implements Transport over a subprocess's stdin/stdout, framing
// messages as newline-delimited JSON. Stderr is drained as free-form
// text and never parsed as protocol data.
type Stdio struct {
	command string
	args    []string
	env     []string
	dir     string
	logger  *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	writer    *bufio.Writer
	connected bool

	onMessage func(*mcp.Message, *Extra)
	onError   func(error)
	onClose   func()

	done chan struct{}
}

// StdioConfig configures a subprocess-backed stdio transport.
type StdioConfig struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
	Logger  *slog.Logger
}

func NewStdio(cfg StdioConfig) *Stdio {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stdio{
		command: cfg.Command,
		args:    cfg.Args,
		env:     cfg.Env,
		dir:     cfg.Dir,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (t *Stdio) SetHandlers(onMessage func(*mcp.Message, *Extra), onError func(error), onClose func()) {
	t.onMessage = onMessage
	t.onError = onError
	t.onClose = onClose
}

func (t *Stdio) SessionID() string { return "" }

func (t *Stdio) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return mcp.NewTransportError("already connected", nil)
	}

	t.cmd = exec.Command(t.command, t.args...)
	if len(t.env) > 0 {
		t.cmd.Env = t.env
	}
	if t.dir != "" {
		t.cmd.Dir = t.dir
	}

	var err error
	if t.stdin, err = t.cmd.StdinPipe(); err != nil {
		t.mu.Unlock()
		return mcp.NewTransportError("failed to create stdin pipe", err)
	}
	if t.stdout, err = t.cmd.StdoutPipe(); err != nil {
		t.mu.Unlock()
		return mcp.NewTransportError("failed to create stdout pipe", err)
	}
	if t.stderr, err = t.cmd.StderrPipe(); err != nil {
		t.mu.Unlock()
		return mcp.NewTransportError("failed to create stderr pipe", err)
	}

	if err := t.cmd.Start(); err != nil {
		t.mu.Unlock()
		return mcp.NewTransportError("failed to start command", err)
	}

	t.writer = bufio.NewWriter(t.stdin)
	t.connected = true
	t.mu.Unlock()

	go t.readLoop()
	go t.logStderr()

	return nil
}

func (t *Stdio) readLoop() {
	scanner := bufio.NewScanner(t.stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg mcp.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			// Malformed line: surface the error without closing the channel.
			if t.onError != nil {
				t.onError(fmt.Errorf("mcp stdio: malformed message: %w", err))
			}
			continue
		}
		if t.onMessage != nil {
			t.onMessage(&msg, &Extra{})
		}
	}

	if err := scanner.Err(); err != nil && t.onError != nil {
		t.onError(fmt.Errorf("mcp stdio: read error: %w", err))
	}

	close(t.done)
	if t.onClose != nil {
		t.onClose()
	}
}

func (t *Stdio) logStderr() {
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		t.logger.Debug("mcp stdio stderr", "line", scanner.Text())
	}
}

func (t *Stdio) Send(ctx context.Context, msg *mcp.Message, _ *SendOptions) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return mcp.NewTransportError("failed to marshal message", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return mcp.NewTransportError("not connected", nil)
	}

	if _, err := t.writer.Write(data); err != nil {
		return mcp.NewTransportError("failed to write message", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return mcp.NewTransportError("failed to write newline", err)
	}
	if err := t.writer.Flush(); err != nil {
		return mcp.NewTransportError("failed to flush", err)
	}
	return nil
}

// Close terminates the subprocess and releases pipes. It is safe to
// call concurrently with Start's background goroutines.
func (t *Stdio) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.stdout != nil {
		t.stdout.Close()
	}
	if t.stderr != nil {
		t.stderr.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Kill()
		t.cmd.Wait()
	}
	return nil
}
