// Package aiproxy talks to the AI helper endpoint: a JSON-over-HTTP proxy
// that explains, quizzes on, relates, analyzes and translates book pages.
package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// Action is the operation the proxy is asked to perform.
type Action string

const (
	ActionExplain       Action = "explain"
	ActionQuiz          Action = "quiz"
	ActionRelate        Action = "relate"
	ActionAnalyze       Action = "analyze"
	ActionTranslatePage Action = "translatePage"
	ActionTranslateText Action = "translateText"
)

// ParseAction accepts the proxy action names plus the viewer's button keys
// analyze_page and translate_page.
func ParseAction(s string) (Action, error) {
	switch s {
	case "explain", "quiz", "relate", "analyze", "translatePage", "translateText":
		return Action(s), nil
	case "analyze_page":
		return ActionAnalyze, nil
	case "translate_page":
		return ActionTranslatePage, nil
	}
	return "", fmt.Errorf("unknown AI action %q", s)
}

var (
	// ErrNoProxyURL is returned when no proxy endpoint is configured.
	ErrNoProxyURL = errors.New("AI proxy URL not configured")
	// ErrRetriesExhausted is returned when every attempt hit a retryable status.
	ErrRetriesExhausted = errors.New("AI proxy retries exhausted")
)

// TransportError is a failure to reach the proxy or read its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "contacting AI proxy: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx proxy response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("proxy HTTP %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// Request is the JSON body sent to the proxy.
type Request struct {
	Action   Action `json:"action"`
	Page     int    `json:"page,omitempty"`
	Language string `json:"language,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Client posts requests to the proxy, retrying 429 and 503 responses with
// linear backoff: the wait before retry n is n times the base delay.
// Transport failures share the same retry budget at half the delay.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
	recorder   Recorder

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client from AI configuration. recorder may be nil.
func NewClient(ai config.AIConfig, recorder Recorder, log zerolog.Logger) *Client {
	timeout := time.Duration(ai.TimeoutSeconds) * time.Second
	return &Client{
		url:        ai.ProxyURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: ai.MaxRetries,
		backoff:    time.Duration(ai.RetryBackoffMS) * time.Millisecond,
		log:        log.With().Str("component", "aiproxy").Logger(),
		recorder:   recorder,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result is a parsed proxy reply.
type Result struct {
	Text string
	// Keyed is false when no known reply field was present and Text is
	// the raw body.
	Keyed    bool
	Attempts int
}

// Do sends req and returns the extracted reply text.
func (c *Client) Do(ctx context.Context, req Request) (Result, error) {
	res, err := c.do(ctx, req)
	if c.recorder != nil {
		rec := Record{Action: req.Action, Page: req.Page, Attempts: res.Attempts}
		if err != nil {
			rec.Err = err.Error()
		}
		if rerr := c.recorder.Record(ctx, rec); rerr != nil {
			c.log.Warn().Err(rerr).Msg("recording AI request failed")
		}
	}
	return res, err
}

func (c *Client) do(ctx context.Context, req Request) (Result, error) {
	if c.url == "" {
		return Result{}, ErrNoProxyURL
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encoding request: %w", err)
	}

	var (
		res     Result
		lastErr error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.backoff
			var netErr *TransportError
			if errors.As(lastErr, &netErr) {
				wait /= 2
			}
			c.log.Info().Err(lastErr).Str("action", string(req.Action)).Int("retry", attempt).Dur("wait", wait).Msg("retrying AI proxy")
			if err := c.sleep(ctx, wait); err != nil {
				return res, err
			}
		}
		res.Attempts++

		data, err := c.post(ctx, body)
		if err != nil {
			if !retryable(ctx, err) {
				return res, err
			}
			lastErr = err
			continue
		}
		res.Text, res.Keyed, err = extractReply(data)
		return res, err
	}
	return res, fmt.Errorf("after %d attempts: %w: %w", res.Attempts, ErrRetriesExhausted, lastErr)
}

// retryable reports whether a failed attempt may be repeated: 429 and 503
// responses, and transport failures while ctx is still live.
func retryable(ctx context.Context, err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr *TransportError
	return errors.As(err, &netErr) && ctx.Err() == nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}
