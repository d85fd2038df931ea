package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts    = 3
	defaultRateLimitWait  = 2 * time.Second
	defaultServerBackoff  = 1500 * time.Millisecond
	defaultRequestTimeout = 60 * time.Second
)

type ClientOptions struct {
	HTTPClient *http.Client
	// MaxAttempts bounds total attempts including the first; <=0 means 3.
	MaxAttempts int
	// ServerBackoff is multiplied by the attempt number after a 5xx.
	ServerBackoff time.Duration
	// RateLimitFallback is used after a 429 that carries no retry hint.
	RateLimitFallback time.Duration
	// Limiter paces outgoing requests; nil means one request per second with a burst of 2.
	Limiter   *rate.Limiter
	LogPrefix string
	// Sleep is replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client executes a single Discord webhook.
type Client struct {
	webhookURL    string
	httpClient    *http.Client
	maxAttempts   int
	serverBackoff time.Duration
	rateFallback  time.Duration
	limiter       *rate.Limiter
	logPrefix     string
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewClient(webhookURL string, opts ClientOptions) *Client {
	c := &Client{
		webhookURL:    strings.TrimSpace(webhookURL),
		httpClient:    opts.HTTPClient,
		maxAttempts:   opts.MaxAttempts,
		serverBackoff: opts.ServerBackoff,
		rateFallback:  opts.RateLimitFallback,
		limiter:       opts.Limiter,
		logPrefix:     opts.LogPrefix,
		sleep:         opts.Sleep,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.serverBackoff <= 0 {
		c.serverBackoff = defaultServerBackoff
	}
	if c.rateFallback <= 0 {
		c.rateFallback = defaultRateLimitWait
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(time.Second), 2)
	}
	if c.logPrefix == "" {
		c.logPrefix = "[discord]"
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

// Execute posts msg with files attached. Files are reopened for every attempt.
// 429 and 5xx responses are retried; any other non-2xx status and transport
// errors fail immediately with *DeliveryError.
func (c *Client) Execute(ctx context.Context, msg Message, files []File) error {
	if c.webhookURL == "" {
		return fmt.Errorf("discord webhook url is empty")
	}
	if len(files) > 0 {
		msg.Attachments = make([]Attachment, 0, len(files))
		for i, f := range files {
			msg.Attachments = append(msg.Attachments, Attachment{ID: i, Filename: f.Name})
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var last *DeliveryError
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		status, body, header, err := c.send(ctx, payload, files)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var fe *fileError
			if errors.As(err, &fe) {
				return fe.err
			}
			return &DeliveryError{Attempts: attempt, Err: err}
		}
		if status >= 200 && status < 300 {
			return nil
		}

		last = &DeliveryError{StatusCode: status, Body: truncateBody(body), Attempts: attempt}
		var wait time.Duration
		switch {
		case status == http.StatusTooManyRequests:
			wait = retryAfter(header, body, c.rateFallback)
		case status >= 500:
			wait = c.serverBackoff * time.Duration(attempt)
		default:
			return last
		}
		if attempt == c.maxAttempts {
			break
		}
		log.Printf("%s webhook retry status=%d attempt=%d wait=%s", c.logPrefix, status, attempt, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return last
}

type fileError struct{ err error }

func (e *fileError) Error() string { return e.err.Error() }

func (c *Client) send(ctx context.Context, payload []byte, files []File) (int, []byte, http.Header, error) {
	var (
		body        io.Reader
		contentType string
		writeErrCh  chan error
	)
	if len(files) == 0 {
		body = bytes.NewReader(payload)
		contentType = "application/json"
	} else {
		// Open up front so a missing file is reported as such, not as a transport error.
		handles := make([]*os.File, 0, len(files))
		closeAll := func() {
			for _, h := range handles {
				_ = h.Close()
			}
		}
		for _, f := range files {
			h, err := os.Open(f.Path)
			if err != nil {
				closeAll()
				return 0, nil, nil, &fileError{err: fmt.Errorf("open attachment: %w", err)}
			}
			handles = append(handles, h)
		}

		pr, pw := io.Pipe()
		writer := multipart.NewWriter(pw)
		contentType = writer.FormDataContentType()
		body = pr
		writeErrCh = make(chan error, 1)
		go func() {
			defer close(writeErrCh)
			defer closeAll()
			err := writeMultipart(writer, payload, files, handles)
			if err == nil {
				err = writer.Close()
			}
			if err != nil {
				_ = pw.CloseWithError(err)
				writeErrCh <- err
				return
			}
			_ = pw.Close()
		}()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, body)
	if err != nil {
		if pc, ok := body.(io.Closer); ok {
			_ = pc.Close()
		}
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if pc, ok := body.(*io.PipeReader); ok {
			_ = pc.CloseWithError(err)
		}
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if writeErrCh != nil {
		if pc, ok := body.(*io.PipeReader); ok {
			// The server may answer before reading the whole body.
			_ = pc.Close()
		}
		if werr := <-writeErrCh; werr != nil && !errors.Is(werr, io.ErrClosedPipe) && resp.StatusCode < 300 {
			return 0, nil, nil, werr
		}
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

func writeMultipart(w *multipart.Writer, payload []byte, files []File, handles []*os.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="payload_json"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}

	for i, f := range files {
		ct := strings.TrimSpace(f.ContentType)
		if ct == "" {
			ct = "application/octet-stream"
		}
		fh := make(textproto.MIMEHeader)
		fh.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename=%q`, i, f.Name))
		fh.Set("Content-Type", ct)
		part, err := w.CreatePart(fh)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, handles[i]); err != nil {
			return err
		}
	}
	return nil
}

// retryAfter prefers the Retry-After header, then the JSON retry_after field.
func retryAfter(header http.Header, body []byte, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var parsed struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.RetryAfter != nil && *parsed.RetryAfter >= 0 {
		return time.Duration(*parsed.RetryAfter * float64(time.Second))
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
