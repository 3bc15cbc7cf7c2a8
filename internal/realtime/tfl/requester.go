package tfl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetries     = 3
	defaultBackoff     = 2 * time.Second
	defaultHTTPTimeout = 10 * time.Second
	defaultJitterMin   = 50 * time.Millisecond
	defaultJitterMax   = 200 * time.Millisecond

	// maxErrorBody caps how much of a failed response is kept for the error message
	maxErrorBody = 512
)

var (
	// ErrRetriesExhausted is returned when every attempt of a request failed
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRateLimited marks an attempt rejected with HTTP 429
	ErrRateLimited = errors.New("rate limited by server")
)

// StatusError is a non-2xx response other than 429
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Body)
}

// RequesterOption configures a Requester
type RequesterOption func(*Requester)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) RequesterOption {
	return func(r *Requester) { r.client = hc }
}

// WithRetries sets the total number of attempts per request
func WithRetries(n int) RequesterOption {
	return func(r *Requester) {
		if n >= 1 {
			r.retries = n
		}
	}
}

// WithBackoff sets the base backoff. Attempt n waits n*backoff after a failure,
// and a 429 without Retry-After waits backoff.
func WithBackoff(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithJitter sets the random pause taken before each attempt
func WithJitter(min, max time.Duration) RequesterOption {
	return func(r *Requester) {
		if min < 0 || max < min {
			return
		}
		r.jitterMin, r.jitterMax = min, max
	}
}

// Requester performs rate-limited GETs with jitter, bounded retry and
// server-directed backoff on 429 responses.
type Requester struct {
	client    *http.Client
	limiter   *RateLimiter
	retries   int
	backoff   time.Duration
	jitterMin time.Duration
	jitterMax time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRequester creates a Requester that takes one limiter admission per attempt
func NewRequester(limiter *RateLimiter, opts ...RequesterOption) *Requester {
	r := &Requester{
		client:    &http.Client{Timeout: defaultHTTPTimeout},
		limiter:   limiter,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
		jitterMin: defaultJitterMin,
		jitterMax: defaultJitterMax,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetJSON fetches url and returns the raw JSON body of the first successful attempt.
// The body is checked to be well-formed JSON but its shape is not validated.
// When every attempt fails the error wraps ErrRetriesExhausted and the last failure.
func (r *Requester) GetJSON(ctx context.Context, url string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= r.retries; attempt++ {
		body, retryAfter, err := r.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Don't retry once the caller has given up
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt == r.retries {
			break
		}

		var wait time.Duration
		if errors.Is(err, ErrRateLimited) {
			wait = retryAfter
			log.Printf("TfL: rate limit hit for %s, retrying after %v", url, wait)
		} else {
			wait = r.backoff * time.Duration(attempt)
			log.Printf("TfL: attempt %d/%d failed for %s: %v", attempt, r.retries, url, err)
		}

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	log.Printf("TfL: giving up on %s after %d attempts: %v", url, r.retries, lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.retries, lastErr)
}

// attempt performs a single admission + jitter + GET. On a 429 it also
// returns how long the server asked us to wait.
func (r *Requester) attempt(ctx context.Context, url string) (json.RawMessage, time.Duration, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	if err := r.sleep(ctx, r.jitter()); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, r.retryAfter(resp.Header.Get("Retry-After")), ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, 0, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, 0, fmt.Errorf("response is not valid JSON (%d bytes)", len(body))
	}

	return json.RawMessage(body), 0, nil
}

// retryAfter interprets a Retry-After header given in whole seconds,
// falling back to the configured backoff when absent or malformed.
func (r *Requester) retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return r.backoff
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return r.backoff
	}
	return time.Duration(secs) * time.Second
}

func (r *Requester) jitter() time.Duration {
	span := r.jitterMax - r.jitterMin
	if span <= 0 {
		return r.jitterMin
	}
	return r.jitterMin + rand.N(span+1)
}
