package discord

import (
	"fmt"
	"strings"
)

const maxErrorBody = 500

// DeliveryError is returned when the webhook did not accept the message.
// StatusCode is 0 when no HTTP response was received.
type DeliveryError struct {
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "discord delivery error"
	}
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("discord webhook failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("discord webhook failed after %d attempt(s): status=%d body=%s", e.Attempts, e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
