package source

import "fmt"

// AuthError means the provider cannot be used: a credential or endpoint is
// missing, or the upstream rejected it. The chain skips to the next provider.
type AuthError struct {
	Provider string
	Reason   string
}

func (e *AuthError) Error() string {
	if e == nil {
		return "auth error"
	}
	return fmt.Sprintf("%s: auth: %s", e.Provider, e.Reason)
}

// UpstreamError covers network failures, bad statuses, empty results and
// malformed responses. StatusCode is 0 when no response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	msg := e.Provider + ": " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func authErr(provider, format string, args ...any) error {
	return &AuthError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}

func upstreamErr(provider string, status int, err error, format string, args ...any) error {
	return &UpstreamError{Provider: provider, StatusCode: status, Reason: fmt.Sprintf(format, args...), Err: err}
}
