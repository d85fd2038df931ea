package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/x/httpx"
)

const (
	ProviderApify  = "apify"
	ProviderWeb    = "web"
	ProviderPicuki = "picuki"
	ProviderImginn = "imginn"
	ProviderRSS    = "rss"

	DefaultApifyActor = "apify/instagram-scraper"

	maxResponseBytes = 8 * 1024 * 1024
)

var aliases = map[string]string{
	"instaloader": ProviderWeb,
	"picuki-site": ProviderPicuki,
}

// Provider fetches the latest post of a profile. Implementations never retry.
type Provider interface {
	Name() string
	FetchLatest(ctx context.Context, profile string) (Post, error)
}

// Credentials carries per-provider secrets and endpoints.
type Credentials struct {
	ApifyToken      string `json:"apify_token,omitempty"`
	ApifyActor      string `json:"apify_actor,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	FlareSolverrURL string `json:"flaresolverr_url,omitempty"`
	RSSFeedURL      string `json:"rss_feed_url,omitempty"`
}

type Options struct {
	HTTPClient *http.Client
	// Proxy is used when HTTPClient is nil; empty means direct.
	Proxy     string
	UserAgent string
	Now       func() time.Time
}

func (o Options) withDefaults() (Options, error) {
	if o.HTTPClient == nil {
		client, err := httpx.NewClient(httpx.ClientOptions{
			Timeout:   30 * time.Second,
			Proxy:     o.Proxy,
			CookieJar: true,
		})
		if err != nil {
			return o, err
		}
		o.HTTPClient = client
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = httpx.RandomBrowserUserAgent()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// Names lists the canonical provider names.
func Names() []string {
	names := []string{ProviderApify, ProviderWeb, ProviderPicuki, ProviderImginn, ProviderRSS}
	sort.Strings(names)
	return names
}

// Canonical resolves aliases. ok is false for unknown names.
func Canonical(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	switch n {
	case ProviderApify, ProviderWeb, ProviderPicuki, ProviderImginn, ProviderRSS:
		return n, true
	default:
		return "", false
	}
}

// Available reports why a provider cannot be attempted with creds, as an
// *AuthError, or nil when it can.
func Available(name string, creds Credentials) error {
	n, ok := Canonical(name)
	if !ok {
		return fmt.Errorf("unknown provider %q", name)
	}
	switch n {
	case ProviderApify:
		if strings.TrimSpace(creds.ApifyToken) == "" {
			return authErr(n, "APIFY_API_TOKEN is not set")
		}
	case ProviderImginn:
		if strings.TrimSpace(creds.FlareSolverrURL) == "" {
			return authErr(n, "FLARESOLVERR_URL is not set")
		}
	case ProviderRSS:
		if strings.TrimSpace(creds.RSSFeedURL) == "" {
			return authErr(n, "RSS_FEED_URL is not set")
		}
	}
	return nil
}

// New builds the named provider.
func New(name string, creds Credentials, opts Options) (Provider, error) {
	if err := Available(name, creds); err != nil {
		return nil, err
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	n, _ := Canonical(name)
	switch n {
	case ProviderApify:
		return newApifySource(creds, opts), nil
	case ProviderWeb:
		return newWebSource(creds, opts), nil
	case ProviderPicuki:
		return newPicukiSource(opts), nil
	case ProviderImginn:
		return newImginnSource(creds, opts), nil
	default:
		return newRSSSource(creds, opts), nil
	}
}

// readBody reads a bounded response body and maps non-2xx statuses to errors.
// 401/403 become AuthError when authStatus is set.
func readBody(provider string, resp *http.Response, authStatus bool) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, upstreamErr(provider, resp.StatusCode, err, "read response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	if authStatus && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return nil, authErr(provider, "rejected credential (status=%d)", resp.StatusCode)
	}
	return nil, upstreamErr(provider, resp.StatusCode, nil, "unexpected status body=%s", snippet(body))
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
