package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Sampling defaults match the values the clustering prompt was tuned with.
const (
	defaultModel            = "deepseek-chat"
	defaultMaxTokens        = 8192
	defaultTemperature      = 0.3
	defaultTopP             = 0.9
	defaultFrequencyPenalty = 0.2
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 300 * time.Second
	defaultMaxRetries     = 3
	defaultBaseBackoff    = 1 * time.Second
)

// ChatConfig holds all configuration for the chat-completions gateway.
// There is no process-wide client state; every value lives here.
type ChatConfig struct {
	URL    string
	APIKey string
	Model  string

	// ConnectTimeout bounds dialing; ReadTimeout bounds the whole
	// request including the body, which can take minutes to arrive.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	MaxRetries  int
	BaseBackoff time.Duration

	// RequestsPerSecond throttles outgoing calls when > 0.
	RequestsPerSecond float64
	Burst             int
}

// ChatGateway calls a DeepSeek-compatible chat-completions endpoint.
type ChatGateway struct {
	config     ChatConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Wire format of the chat-completions endpoint.
type chatRequest struct {
	Model            string         `json:"model"`
	Messages         []Message      `json:"messages"`
	Temperature      float64        `json:"temperature"`
	MaxTokens        int            `json:"max_tokens"`
	TopP             float64        `json:"top_p"`
	PresencePenalty  float64        `json:"presence_penalty"`
	FrequencyPenalty float64        `json:"frequency_penalty"`
	ResponseFormat   responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewChatGateway creates a gateway for the configured endpoint. URL and
// API key are required; everything else has a sensible default.
func NewChatGateway(config ChatConfig) (*ChatGateway, error) {
	if config.URL == "" || config.APIKey == "" {
		return nil, fmt.Errorf("NewChatGateway: URL and APIKey must be set")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaultReadTimeout
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("NewChatGateway: MaxRetries cannot be negative")
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = defaultBaseBackoff
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &ChatGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: config.ReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: config.ConnectTimeout,
				}).DialContext,
			},
		},
		limiter: limiter,
	}, nil
}

// Classify sends one chat-completions request and returns the answer text
// of the first choice. Network failures and 5xx responses are retried with
// exponential backoff; the call is safe to retry because the endpoint is
// write-free. 4xx responses and malformed bodies fail immediately.
func (g *ChatGateway) Classify(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &Error{Kind: KindNetwork, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}
	}

	payload := g.buildPayload(req)

	var lastErr error
	backoff := g.config.BaseBackoff
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn(
				"Oracle call failed, will retry.",
				"attempt", attempt,
				"maxRetries", g.config.MaxRetries,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return "", &Error{Kind: KindNetwork, Err: ctx.Err()}
			}
		}

		answer, err := g.doRequest(ctx, payload)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	kind := KindUpstream
	if KindOf(lastErr) == KindNetwork {
		kind = KindNetwork
	}
	return "", &Error{Kind: kind, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (g *ChatGateway) buildPayload(req Request) chatRequest {
	payload := chatRequest{
		Model:            g.config.Model,
		Messages:         req.Messages,
		Temperature:      defaultTemperature,
		MaxTokens:        defaultMaxTokens,
		TopP:             defaultTopP,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: defaultFrequencyPenalty,
		ResponseFormat:   responseFormat{Type: FormatText},
	}
	if req.Temperature > 0 {
		payload.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if req.TopP > 0 {
		payload.TopP = req.TopP
	}
	if req.FrequencyPenalty > 0 {
		payload.FrequencyPenalty = req.FrequencyPenalty
	}
	if req.ResponseFormat != "" {
		payload.ResponseFormat = responseFormat{Type: req.ResponseFormat}
	}
	return payload
}

func (g *ChatGateway) doRequest(ctx context.Context, payload chatRequest) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	// The body may arrive in many chunks over a long time; read it all
	// before touching the status-specific paths.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &Error{
			Kind:      KindUpstream,
			Err:       fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(string(body))),
			retryable: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		var errBody chatErrorBody
		if jsonErr := json.Unmarshal(body, &errBody); jsonErr == nil && errBody.Error.Message != "" {
			return "", &Error{Kind: KindUpstream, Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, errBody.Error.Message)}
		}
		return "", &Error{Kind: KindUpstream, Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(string(body)))}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("failed to parse response body: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("response missing choices")}
	}

	answer := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if answer == "" {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("response contained an empty answer")}
	}
	return answer, nil
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
