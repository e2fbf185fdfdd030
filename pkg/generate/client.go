// Package generate turns a free-text system description into a design
// document by prompting a generative language model.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultEndpoint is the generateContent base URL; the model name is
// appended.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// BreakerOptions configures the circuit breaker around upstream calls.
type BreakerOptions struct {
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open-state duration before half-open
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // requests needed before the ratio counts
}

// Options configures a Client.
type Options struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration

	Breaker    BreakerOptions
	HTTPClient *http.Client
}

// DefaultOptions returns options for the public endpoint.
func DefaultOptions() Options {
	return Options{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  90 * time.Second,
		Breaker: BreakerOptions{
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      3,
		},
	}
}

// Client calls the generateContent endpoint. It is safe for concurrent
// use.
type Client struct {
	opts    Options
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a client. A nil logger disables logging.
func NewClient(opts Options, logger *zap.Logger) *Client {
	d := DefaultOptions()
	if opts.Endpoint == "" {
		opts.Endpoint = d.Endpoint
	}
	if opts.Model == "" {
		opts.Model = d.Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.Breaker == (BreakerOptions{}) {
		opts.Breaker = d.Breaker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{opts: opts, http: hc, logger: logger.Named("generate")}
	b := opts.Breaker
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generate",
		MaxRequests: b.MaxRequests,
		Interval:    b.Interval,
		Timeout:     b.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) url() string {
	u := strings.TrimRight(c.opts.Endpoint, "/") + "/" + c.opts.Model + ":generateContent"
	if c.opts.APIKey != "" {
		u += "?key=" + url.QueryEscape(c.opts.APIKey)
	}
	return u
}

// Complete sends one prompt and returns the generated text. Requests are
// refused with gobreaker.ErrOpenState while the breaker is open.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqID := uuid.NewString()
	start := time.Now()

	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, prompt)
	})
	if err != nil {
		c.logger.Warn("Generation call failed",
			zap.String("requestID", reqID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	text := out.(string)
	c.logger.Debug("Generation call completed",
		zap.String("requestID", reqID),
		zap.Int("chars", len(text)),
		zap.Duration("duration", time.Since(start)))
	return text, nil
}

func (c *Client) do(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var er errorResponse
		msg := "unknown API error"
		if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return "", ErrEmpty
	}
	cand := gr.Candidates[0]
	if len(cand.Content.Parts) == 0 || cand.Content.Parts[0].Text == "" {
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			return "", fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason)
		}
		return "", ErrEmpty
	}
	return cand.Content.Parts[0].Text, nil
}

// StripFences removes markdown code fences around generated JSON.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
