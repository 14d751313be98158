// Package oracle wraps the external classification service behind a small
// Gateway interface. Two implementations exist: ChatGateway talks to a
// DeepSeek-compatible chat-completions HTTP endpoint, VertexGateway talks to
// Vertex AI Gemini. Callers receive the raw answer text of the first choice
// and a typed error when the service misbehaves.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single chat message sent to the classification service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response format hints accepted by the chat-completions endpoint.
const (
	FormatText = "text"
	FormatJSON = "json_object"
)

// Request describes one classification call. Zero-valued sampling fields
// fall back to the gateway's configured defaults.
type Request struct {
	Messages         []Message
	ResponseFormat   string
	Temperature      float64
	TopP             float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// Gateway issues a single classification call and returns the raw answer
// text. Implementations perform no storage access; the call is write-free
// on the service side, which is what makes bounded retries safe.
type Gateway interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// ErrorKind partitions gateway failures for the caller.
type ErrorKind int

const (
	// KindNetwork covers connect/read timeouts, DNS failures and
	// connection resets. Retried up to the configured bound.
	KindNetwork ErrorKind = iota + 1
	// KindMalformed means the service responded, but not in the expected
	// shape: unparseable body or a missing/empty answer field.
	KindMalformed
	// KindUpstream means the service explicitly rejected the request
	// (4xx) or kept failing server-side until retries were exhausted.
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed-response"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by gateways. retryable marks
// transient server-side failures (5xx, 429); network failures are always
// retryable, malformed responses and 4xx rejections never are.
type Error struct {
	Kind ErrorKind
	Err  error

	retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or 0 when err did not originate
// from a gateway.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}

func isRetryable(err error) bool {
	var oe *Error
	if !errors.As(err, &oe) {
		return false
	}
	return oe.Kind == KindNetwork || oe.retryable
}
