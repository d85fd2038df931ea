package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
)

const (
	// WorkerCommand is the hidden subcommand that runs one provider call.
	WorkerCommand = "fetch-worker"

	defaultKillGrace  = 5 * time.Second
	maxWorkerOutBytes = 4 * 1024 * 1024
)

// FetchRequest is everything a worker needs to run one provider call.
type FetchRequest struct {
	Provider    string             `json:"provider"`
	Profile     string             `json:"profile"`
	Credentials source.Credentials `json:"credentials"`
	Proxy       string             `json:"proxy,omitempty"`
}

// Executor runs one provider call and returns within timeout plus a short grace.
type Executor interface {
	Execute(ctx context.Context, req FetchRequest, timeout time.Duration) (source.Post, error)
}

// ProviderFactory builds a provider by name; source.New in production.
type ProviderFactory func(name string, creds source.Credentials, opts source.Options) (source.Provider, error)

// ProcessExecutor runs the provider call in a child process started from the
// current binary. At the deadline the child is killed.
type ProcessExecutor struct {
	// Path defaults to os.Executable().
	Path string
	// Args default to []string{WorkerCommand}.
	Args []string
	// Env is appended to the parent environment.
	Env []string
	// Grace bounds how long Wait may block after the kill; <=0 means 5s.
	Grace     time.Duration
	LogPrefix string
}

func (e *ProcessExecutor) Execute(ctx context.Context, req FetchRequest, timeout time.Duration) (source.Post, error) {
	path := e.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return source.Post{}, &ExecutionError{Provider: req.Provider, ExitCode: -1, Err: err}
		}
		path = exe
	}
	args := e.Args
	if len(args) == 0 {
		args = []string{WorkerCommand}
	}
	grace := e.Grace
	if grace <= 0 {
		grace = defaultKillGrace
	}

	input, err := json.Marshal(req)
	if err != nil {
		return source.Post{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout limitedBuffer
	stdout.limit = maxWorkerOutBytes
	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.WaitDelay = grace

	started := time.Now()
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return source.Post{}, ctx.Err()
	}
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	// A worker that exited cleanly just before the deadline still counts.
	if runErr == nil || !timedOut {
		if res, ok := parseWorkerOutput(stdout.Bytes()); ok {
			return res.unpack(req.Provider)
		}
	}
	if timedOut {
		log.Printf("%s provider=%s killed after %s", e.LogPrefix, req.Provider, time.Since(started).Round(time.Millisecond))
		return source.Post{}, &TimeoutError{Provider: req.Provider, Timeout: timeout}
	}

	exitErr := &ExecutionError{Provider: req.Provider, ExitCode: -1, Err: runErr}
	if cmd.ProcessState != nil {
		exitErr.ExitCode = cmd.ProcessState.ExitCode()
		exitErr.State = cmd.ProcessState.String()
	}
	return source.Post{}, exitErr
}

// InProcessExecutor runs the provider call on its own goroutine. The caller is
// released at the deadline; a provider that ignores cancellation keeps its
// goroutine until it returns, so ProcessExecutor is the default.
type InProcessExecutor struct {
	Factory ProviderFactory
	Options source.Options
}

type execOutcome struct {
	post source.Post
	err  error
}

func (e *InProcessExecutor) Execute(ctx context.Context, req FetchRequest, timeout time.Duration) (source.Post, error) {
	factory := e.Factory
	if factory == nil {
		factory = source.New
	}
	opts := e.Options
	if opts.Proxy == "" {
		opts.Proxy = req.Proxy
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{err: &ExecutionError{Provider: req.Provider, ExitCode: -1, State: "panic", Err: fmt.Errorf("%v", r)}}
			}
		}()
		p, err := factory(req.Provider, req.Credentials, opts)
		if err != nil {
			done <- execOutcome{err: err}
			return
		}
		post, err := p.FetchLatest(runCtx, req.Profile)
		done <- execOutcome{post: post, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.post, out.err
	case <-timer.C:
		return source.Post{}, &TimeoutError{Provider: req.Provider, Timeout: timeout}
	case <-ctx.Done():
		return source.Post{}, ctx.Err()
	}
}

// limitedBuffer keeps at most limit bytes and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte { return b.buf.Bytes() }

var _ io.Writer = (*limitedBuffer)(nil)
