package source

// INSTAGRAM_FETCHER_INTEGRATION=1 \
// INSTAGRAM_FETCHER_TEST_USERNAME=hashtagutd \
// go test ./internal/fetchers/instagram-fetcher/source -run TestInstagramSourcesIntegration -v

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestInstagramSourcesIntegration(t *testing.T) {
	if os.Getenv("INSTAGRAM_FETCHER_INTEGRATION") != "1" {
		t.Skip("set INSTAGRAM_FETCHER_INTEGRATION=1 to run real network integration tests")
	}

	username := strings.TrimSpace(os.Getenv("INSTAGRAM_FETCHER_TEST_USERNAME"))
	if username == "" {
		username = "hashtagutd"
	}
	creds := Credentials{
		ApifyToken:      os.Getenv("APIFY_API_TOKEN"),
		ApifyActor:      os.Getenv("APIFY_ACTOR"),
		SessionID:       os.Getenv("INSTAGRAM_SESSION_ID"),
		FlareSolverrURL: os.Getenv("FLARESOLVERR_URL"),
		RSSFeedURL:      os.Getenv("RSS_FEED_URL"),
	}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, creds, Options{Proxy: os.Getenv("FETCH_PROXY")})
			var authErr *AuthError
			if errors.As(err, &authErr) {
				t.Skipf("provider unavailable: %v", err)
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
			defer cancel()

			post, err := p.FetchLatest(ctx, username)
			if err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			if strings.TrimSpace(post.ID) == "" {
				t.Fatalf("post missing id")
			}
			t.Logf("id=%s permalink=%s media=%d", post.ID, post.Permalink, len(post.Media))
		})
	}
}
