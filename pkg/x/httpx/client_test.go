package httpx

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestNewClient_DefaultIsDirect(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:9")

	c, err := NewClient(ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.Proxy != nil {
		t.Fatalf("expected nil proxy func by default")
	}
	if c.Timeout != 15*time.Second {
		t.Fatalf("unexpected default timeout: %v", c.Timeout)
	}
	if c.Jar != nil {
		t.Fatalf("expected no cookie jar")
	}
}

func TestNewClient_FixedProxyAndJar(t *testing.T) {
	t.Parallel()

	c, err := NewClient(ClientOptions{Timeout: time.Second, Proxy: "127.0.0.1:7890", CookieJar: true})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	tr := c.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "https://www.instagram.com/", nil)
	u, err := tr.Proxy(req)
	if err != nil || u == nil || u.Host != "127.0.0.1:7890" {
		t.Fatalf("unexpected proxy: u=%v err=%v", u, err)
	}

	if c.Jar == nil {
		t.Fatalf("expected cookie jar")
	}
	target, _ := url.Parse("https://www.instagram.com/")
	c.Jar.SetCookies(target, []*http.Cookie{{Name: "csrftoken", Value: "x", Domain: ".instagram.com", Path: "/"}})
	sub, _ := url.Parse("https://i.instagram.com/api/")
	if got := c.Jar.Cookies(sub); len(got) != 1 {
		t.Fatalf("expected cookie shared with subdomain, got %v", got)
	}
}

func TestNewClient_InvalidProxy(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{Proxy: "ftp://127.0.0.1:21"}); err == nil {
		t.Fatalf("expected error for unsupported proxy scheme")
	}
}

func TestRandomBrowserUserAgent(t *testing.T) {
	t.Parallel()

	if ua := RandomBrowserUserAgent(); ua == "" {
		t.Fatalf("expected non-empty user agent")
	}
}
