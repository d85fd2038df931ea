package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
)

// Chain tries providers in priority order until one returns a post.
type Chain struct {
	Order       []string
	Credentials source.Credentials
	Proxy       string
	Executor    Executor
	Timeout     time.Duration
	LogPrefix   string
}

// FetchLatest returns the first successful post. Providers that cannot run
// with the configured credentials are skipped without an attempt.
func (c *Chain) FetchLatest(ctx context.Context, profile string) (source.Post, error) {
	attempts := make([]Attempt, 0, len(c.Order))
	for _, name := range c.Order {
		if err := source.Available(name, c.Credentials); err != nil {
			log.Printf("%s provider=%s skipped reason=%q", c.LogPrefix, name, err.Error())
			attempts = append(attempts, Attempt{Provider: name, Skipped: true, Err: err})
			continue
		}

		log.Printf("%s provider=%s trying timeout=%s", c.LogPrefix, name, c.Timeout)
		started := time.Now()
		post, err := c.Executor.Execute(ctx, FetchRequest{
			Provider:    name,
			Profile:     profile,
			Credentials: c.Credentials,
			Proxy:       c.Proxy,
		}, c.Timeout)
		if err == nil {
			log.Printf("%s provider=%s ok id=%s media=%d elapsed=%s", c.LogPrefix, name, post.ID, len(post.Media), time.Since(started).Round(time.Millisecond))
			return post, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return source.Post{}, ctxErr
		}

		logAttemptFailure(c.LogPrefix, name, err)
		var authErr *source.AuthError
		attempts = append(attempts, Attempt{Provider: name, Skipped: errors.As(err, &authErr), Err: err})
	}
	return source.Post{}, &AllProvidersFailedError{Attempts: attempts}
}

func logAttemptFailure(logPrefix, name string, err error) {
	var (
		upErr   *source.UpstreamError
		authErr *source.AuthError
		tErr    *TimeoutError
		xErr    *ExecutionError
	)
	switch {
	case errors.As(err, &authErr):
		log.Printf("%s provider=%s failed kind=auth reason=%q", logPrefix, name, authErr.Reason)
	case errors.As(err, &upErr):
		log.Printf("%s provider=%s failed kind=upstream status=%d reason=%q", logPrefix, name, upErr.StatusCode, upErr.Error())
	case errors.As(err, &tErr):
		log.Printf("%s provider=%s failed kind=timeout timeout=%s", logPrefix, name, tErr.Timeout)
	case errors.As(err, &xErr):
		log.Printf("%s provider=%s failed kind=execution exit_code=%d state=%q", logPrefix, name, xErr.ExitCode, xErr.State)
	default:
		log.Printf("%s provider=%s failed err=%v", logPrefix, name, err)
	}
}
