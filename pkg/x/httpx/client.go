package httpx

import (
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

type ClientOptions struct {
	Timeout time.Duration

	// Proxy accepts the values understood by ProxyFuncFromString.
	// Empty means direct, even if HTTP_PROXY / HTTPS_PROXY is set.
	Proxy string

	// CookieJar enables a public-suffix aware cookie jar (required by some scrapers).
	CookieJar bool

	// Transport allows providing a pre-configured transport.
	// When nil, it clones http.DefaultTransport.
	Transport *http.Transport
}

func NewClient(opts ClientOptions) (*http.Client, error) {
	var transport *http.Transport
	if opts.Transport != nil {
		transport = opts.Transport.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	proxyFunc, err := ProxyFuncFromString(strings.TrimSpace(opts.Proxy))
	if err != nil {
		return nil, err
	}
	transport.Proxy = proxyFunc

	var jar http.CookieJar
	if opts.CookieJar {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}, nil
}
