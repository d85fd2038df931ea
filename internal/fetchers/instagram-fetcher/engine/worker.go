package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
)

const (
	errKindAuth     = "auth"
	errKindUpstream = "upstream"
)

// workerResult is the single JSON line a worker writes to stdout.
type workerResult struct {
	Post  *source.Post `json:"post,omitempty"`
	Error *workerError `json:"error,omitempty"`
}

type workerError struct {
	Kind       string `json:"kind"`
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

// RunFetchWorker reads one FetchRequest from in, runs the provider and writes
// one workerResult line to out. Provider failures travel in the result; the
// returned error only reports a broken protocol.
func RunFetchWorker(ctx context.Context, in io.Reader, out io.Writer, factory ProviderFactory, logPrefix string) error {
	if factory == nil {
		factory = source.New
	}

	var req FetchRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode fetch request: %w", err)
	}
	log.Printf("%s provider=%s profile=%s worker started", logPrefix, req.Provider, req.Profile)

	var res workerResult
	p, err := factory(req.Provider, req.Credentials, source.Options{Proxy: req.Proxy})
	if err == nil {
		var post source.Post
		post, err = p.FetchLatest(ctx, req.Profile)
		if err == nil {
			res.Post = &post
		}
	}
	if err != nil {
		res.Error = packError(req.Provider, err)
	}

	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode fetch result: %w", err)
	}
	line = append(line, '\n')
	_, err = out.Write(line)
	return err
}

func packError(provider string, err error) *workerError {
	var authErr *source.AuthError
	if errors.As(err, &authErr) {
		return &workerError{Kind: errKindAuth, Provider: authErr.Provider, Message: authErr.Reason}
	}
	we := &workerError{Kind: errKindUpstream, Provider: provider, Message: err.Error()}
	var upErr *source.UpstreamError
	if errors.As(err, &upErr) {
		we.Provider = upErr.Provider
		we.StatusCode = upErr.StatusCode
		we.Message = upErr.Reason
		if upErr.Err != nil {
			we.Message += ": " + upErr.Err.Error()
		}
	}
	return we
}

func (r workerResult) unpack(provider string) (source.Post, error) {
	if r.Error != nil {
		name := r.Error.Provider
		if name == "" {
			name = provider
		}
		if r.Error.Kind == errKindAuth {
			return source.Post{}, &source.AuthError{Provider: name, Reason: r.Error.Message}
		}
		return source.Post{}, &source.UpstreamError{Provider: name, StatusCode: r.Error.StatusCode, Reason: r.Error.Message}
	}
	if r.Post == nil || r.Post.ID == "" {
		return source.Post{}, &source.UpstreamError{Provider: provider, Reason: "worker returned an empty post"}
	}
	return *r.Post, nil
}

// parseWorkerOutput returns the last stdout line that decodes as a result.
func parseWorkerOutput(b []byte) (workerResult, bool) {
	var (
		found workerResult
		ok    bool
	)
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), maxWorkerOutBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var res workerResult
		if err := json.Unmarshal(line, &res); err != nil {
			continue
		}
		if res.Post == nil && res.Error == nil {
			continue
		}
		found, ok = res, true
	}
	return found, ok
}
