package runtime

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateHTTPURL reports whether raw is an absolute http(s) URL with a host.
// Error messages never echo the URL: webhook URLs embed their secret token.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u == nil {
		return fmt.Errorf("invalid url")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("url must be http/https, got scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return fmt.Errorf("url missing host")
	}
	return nil
}
