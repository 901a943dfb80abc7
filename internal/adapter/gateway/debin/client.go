// Package debin talks to the external debit-request provider. The provider
// pulls funds from the user's external account and answers with a plain
// success/message verdict; crediting the wallet happens elsewhere, strictly
// after a successful verdict.
package debin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.DebitGateway over HTTP.
//
// Transport-level retry lives here, not in the ledger: the ledger treats
// any error from RequestDebit as "unavailable" and mutates nothing, so a
// caller may safely re-issue the whole operation. Explicit declines
// (success=false) are never retried.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewClient creates a debit gateway client. timeout bounds each attempt.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// NewClientWithHTTP creates a client with a caller-supplied HTTP client
// (used by tests).
func NewClientWithHTTP(baseURL string, httpClient HTTPClient, maxRetries int, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    time.Millisecond,
		log:        log,
	}
}

type debitRequest struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// RequestDebit posts {email, amount} to the provider's /debin endpoint.
// Returns the provider's verdict, or an error when no verdict could be
// obtained. Only transport errors and 5xx responses are retried; an
// undecodable non-5xx answer is final.
func (c *Client) RequestDebit(ctx context.Context, email string, amount int64) (*ports.DebitResult, error) {
	body, err := json.Marshal(debitRequest{Email: email, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("marshal debit request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
			c.log.Warn().
				Int("attempt", attempt).
				Str("email", email).
				Msg("retrying debit gateway call")
		}

		result, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Context cancellation is the caller's decision; stop immediately.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, fmt.Errorf("debit gateway gave no usable verdict: %w", err)
		}
	}

	return nil, fmt.Errorf("debit gateway unreachable after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doRequest performs one attempt. The second return value says whether the
// failure is worth another attempt.
func (c *Client) doRequest(ctx context.Context, body []byte) (*ports.DebitResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/debin", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build debit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("debit gateway call: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, true, fmt.Errorf("read debit response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("debit gateway status %d", resp.StatusCode)
	}

	result := &ports.DebitResult{}
	if err := json.Unmarshal(payload, result); err != nil {
		return nil, false, fmt.Errorf("decode debit response (status %d): %w", resp.StatusCode, err)
	}
	return result, false, nil
}
