package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// killGrace is how long a terminated child gets before SIGKILL.
	killGrace = 5 * time.Second

	// maxLineBytes bounds a single response line from a provider.
	maxLineBytes = 4 * 1024 * 1024
)

var (
	errNoResponse      = errors.New("no response")
	errResponseTimeout = errors.New("timeout waiting for response")
)

// subprocessConn owns one provider child process and its line-delimited
// JSON-RPC channel. The mutex serializes request/response pairs: exactly one
// line goes out, exactly one line is awaited, in order.
type subprocessConn struct {
	name  string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu     sync.Mutex
	nextID int64
}

// startSubprocess spawns the provider command with the process environment
// plus the configured overrides, and begins pumping its stdout.
func startSubprocess(cfg ProviderConfig) (*subprocessConn, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...) // #nosec G204 -- command comes from operator config
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	conn := &subprocessConn{
		name:  cfg.Name,
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 16),
	}
	go conn.pump(stdout)
	go logStderr(cfg.Name, stderr)
	return conn, nil
}

// pump moves stdout lines into the channel until the child closes its end.
// Closing the channel is how waiting requests learn the process is gone.
func (sc *subprocessConn) pump(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		sc.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		log.Printf("[mcp] %s stdout: %v", sc.name, err)
	}
	close(sc.lines)
}

func logStderr(name string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		log.Printf("[mcp] %s stderr: %s", name, scanner.Text())
	}
}

// request writes one JSON-RPC line and awaits one response line. IDs increment
// per request; the first request on a fresh connection carries id 1.
func (sc *subprocessConn) request(ctx context.Context, method string, params any, timeout time.Duration) ([]byte, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.nextID++
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      sc.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// Responses abandoned by earlier timeouts would otherwise be read as
	// the answer to this request.
stale:
	for {
		select {
		case _, ok := <-sc.lines:
			if !ok {
				return nil, errNoResponse
			}
		default:
			break stale
		}
	}

	if _, err := sc.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line, ok := <-sc.lines:
		if !ok {
			return nil, errNoResponse
		}
		return []byte(line), nil
	case <-timer.C:
		return nil, errResponseTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shutdown terminates the child, escalating to a kill after the grace period.
func (sc *subprocessConn) shutdown() {
	_ = sc.stdin.Close()
	if sc.cmd.Process != nil {
		if err := sc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = sc.cmd.Process.Kill()
		}
	}

	// Keep the pump draining so it can observe EOF and exit.
	go func() {
		for range sc.lines {
		}
	}()

	done := make(chan struct{})
	go func() {
		_ = sc.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(killGrace):
		if sc.cmd.Process != nil {
			_ = sc.cmd.Process.Kill()
		}
		<-done
	}
}
