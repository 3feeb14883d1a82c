package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long Close waits for output pipes after a kill.
const waitDelay = 2 * time.Second

// ProcessSource reads frames from the stdout of an external pose estimator.
// The process must write one JSON frame per line.
type ProcessSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	frames *JSONLSource

	mu     sync.Mutex
	closed bool
}

// StartProcess starts name with args and returns a source reading its
// output. The process is killed when ctx ends or Close is called.
func StartProcess(ctx context.Context, name string, args ...string) (*ProcessSource, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pose estimator: %w", err)
	}

	return &ProcessSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		frames: NewJSONL(struct{ io.Reader }{stdout}),
	}, nil
}

// Next returns the next frame the process printed. It returns
// ErrEndOfStream once the process exits cleanly.
func (p *ProcessSource) Next(ctx context.Context) (Frame, error) {
	f, err := p.frames.Next(ctx)
	if !errors.Is(err, ErrEndOfStream) {
		return f, err
	}
	if werr := p.wait(); werr != nil {
		return Frame{}, werr
	}
	return Frame{}, ErrEndOfStream
}

// wait reaps the process once its output is exhausted.
func (p *ProcessSource) wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.cmd.Wait(); err != nil {
		if msg := bytes.TrimSpace(p.stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("pose estimator failed: %w, stderr: %s", err, msg)
		}
		return fmt.Errorf("pose estimator failed: %w", err)
	}
	return nil
}

// Close stops the process if it is still running.
func (p *ProcessSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	p.stdout.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
	return nil
}
