// Package sshexec runs a single shell command on a single remote host
// over SSH, streaming output as it arrives. One invocation means one
// connection; callers that need fan-out sit above this package.
package sshexec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"

	"fleetd/internal/events"
	"fleetd/internal/fleet"
)

const (
	defaultConnectTimeout    = 30 * time.Second
	defaultKeepaliveInterval = 10 * time.Second

	chunkSize = 4096
)

// Executor opens SSH sessions and runs commands. It is stateless
// across invocations and safe for concurrent use.
type Executor struct {
	connectTimeout    time.Duration
	keepaliveInterval time.Duration
	broadcaster       events.Broadcaster
	logger            *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.connectTimeout = d
		}
	}
}

// WithKeepaliveInterval sets the liveness probe period for established
// connections.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.keepaliveInterval = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Executor emitting progress to the given broadcaster.
// Pass events.Nop{} when no observers exist.
func New(b events.Broadcaster, opts ...Option) *Executor {
	if b == nil {
		b = events.Nop{}
	}
	e := &Executor{
		connectTimeout:    defaultConnectTimeout,
		keepaliveInterval: defaultKeepaliveInterval,
		broadcaster:       b,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes command on the target host and returns exactly one
// Result. Errors are folded into the Result: transport failures and
// non-zero exits both come back as StatusError with distinguishing
// message text, never as a panic or a missing entry.
func (e *Executor) Run(ctx context.Context, target fleet.Resolved, command string) fleet.Result {
	result := fleet.Result{
		HostID:    target.HostID,
		HostName:  target.Name,
		ExitCode:  -1,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		result.CompletedAt = time.Now().UTC()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
	}()

	client, err := dial(ctx, target, e.connectTimeout)
	if err != nil {
		result.Status = fleet.StatusError
		result.Error = wrapConnectError(target.Name, err).Error()
		return result
	}
	defer client.Close()

	stop := make(chan struct{})
	defer close(stop)
	go keepalive(client, e.keepaliveInterval, stop)

	finalCommand := command
	if target.SudoPassword != "" {
		finalCommand = wrapSudo(command, target.SudoPassword)
	}

	stdout, stderr, exitCode, err := e.stream(ctx, client, target, finalCommand)

	stdout = stripSudoPrompt(redactSecret(stdout, target.SudoPassword))
	stderr = stripSudoPrompt(redactSecret(stderr, target.SudoPassword))

	result.Output = string(stdout)
	result.Stderr = string(stderr)
	result.ExitCode = exitCode

	switch {
	case err != nil:
		result.Status = fleet.StatusError
		result.Error = fmt.Sprintf("execution failed: %v", err)
	case exitCode != 0:
		result.Status = fleet.StatusError
		detail := string(stderr)
		if detail == "" {
			detail = string(stdout)
		}
		result.Error = fmt.Sprintf("command exited with code %d: %s", exitCode, detail)
	default:
		result.Status = fleet.StatusSuccess
	}
	return result
}

// stream starts the command and reads stdout/stderr incrementally,
// emitting each chunk to the broadcaster while also accumulating the
// full buffers for the final result.
func (e *Executor) stream(ctx context.Context, client *ssh.Client, target fleet.Resolved, command string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := session.Start(command); err != nil {
		return nil, nil, -1, fmt.Errorf("start command: %w", err)
	}

	var outBuf, errBuf safeBuffer
	done := make(chan struct{}, 2)

	go e.readChunks(stdoutPipe, &outBuf, target, events.KindOutput, done)
	go e.readChunks(stderrPipe, &errBuf, target, events.KindError, done)

	waitCh := make(chan error, 1)
	go func() { waitCh <- session.Wait() }()

	var runErr error
	select {
	case <-ctx.Done():
		// Closing the client tears down the session and unblocks the
		// pipe readers.
		client.Close()
		<-done
		<-done
		return outBuf.Bytes(), errBuf.Bytes(), -1, ctx.Err()
	case runErr = <-waitCh:
	}

	<-done
	<-done

	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return outBuf.Bytes(), errBuf.Bytes(), -1, runErr
	}
	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// readChunks copies from an output pipe into buf, emitting each chunk
// as a progress event. Emission is best-effort; the broadcaster cannot
// fail the execution.
func (e *Executor) readChunks(r io.Reader, buf *safeBuffer, target fleet.Resolved, kind events.Kind, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			b := chunk[:n]
			buf.Write(b)
			clean := stripSudoPrompt(redactSecret(b, target.SudoPassword))
			if len(clean) > 0 {
				e.broadcaster.Emit(events.Event{
					Kind:     kind,
					HostName: target.Name,
					Data:     string(clean),
					At:       time.Now(),
				})
			}
		}
		if err != nil {
			return
		}
	}
}

// TestConnection dials the target and immediately closes, verifying
// reachability and credentials without running a command. It uses a
// shorter timeout than command execution.
func (e *Executor) TestConnection(ctx context.Context, target fleet.Resolved) error {
	timeout := e.connectTimeout
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	client, err := dial(ctx, target, timeout)
	if err != nil {
		return wrapConnectError(target.Name, err)
	}
	return client.Close()
}
