// Package email implements the transactional email provider client.
//
// The provider exposes a Resend-style HTTP API: POST {base}/emails with a
// bearer key and a JSON body carrying recipient, subject, HTML and freeform
// tags; it responds with a provider-assigned message id.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/elecmate/winback-service/internal/logger"
)

// Tag is a freeform key/value pair attached to a send for provider-side
// filtering and analytics.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Tags    []Tag
}

// Sender is the interface the dispatch service depends on.
type Sender interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// Client sends email through the provider HTTP API. Outbound calls go through
// a rate limiter at the provider's throughput ceiling and a circuit breaker
// so a dead provider fails fast instead of timing out per call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	limiter    *RateLimiter
	breaker    *gobreaker.CircuitBreaker[string]
	log        *logger.Logger
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey, from string, log *logger.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "email-provider",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		from:       from,
		limiter:    DefaultRateLimiter(),
		breaker:    cb,
		log:        log,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Tags    []Tag    `json:"tags,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Send delivers one message and returns the provider message id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for send slot: %w", err)
	}

	id, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, msg)
	})
	if err != nil {
		return "", err
	}

	c.log.Info().
		Str("to", msg.To).
		Str("message_id", id).
		Msg("email sent")

	return id, nil
}

func (c *Client) post(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Tags:    msg.Tags,
	})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			c.limiter.SetRetryAfter(secs)
		}
		return "", fmt.Errorf("provider rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("provider error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("provider error (%d)", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}

	return result.ID, nil
}
