// Package github provides the GitHub REST client used to enumerate a user's
// issues and fetch pull request detail.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

const defaultBaseURL = "https://api.github.com"

// Retry constants for API calls.
const (
	maxRetryAttempts  = 5
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
	defaultTimeout    = 30 * time.Second
)

// Client is an authenticated GitHub API client. It is safe for concurrent
// use.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a client authenticated with a personal access token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      token,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// drainAndCloseBody drains and closes an HTTP response body to prevent
// resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// doRequest makes an HTTP request to the GitHub API with retry on rate
// limits and server errors.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body any) (*http.Response, error) {
	slog.Debug("HTTP request", "component", "http", "method", method, "url", apiURL)

	var resp *http.Response
	err := retryWithBackoff(ctx, fmt.Sprintf("%s %s", method, apiURL), func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "token "+c.token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // closed by caller or drained below
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if localResp.StatusCode == http.StatusTooManyRequests {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Rate limited - will retry with backoff", "method", method, "url", apiURL, "status", 429)
			return fmt.Errorf("http %d: rate limited", localResp.StatusCode)
		}

		if localResp.StatusCode >= http.StatusInternalServerError && localResp.StatusCode < 600 {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Server error - will retry with backoff", "method", method, "url", apiURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// retryWithBackoff executes a function with exponential backoff and jitter.
func retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(maxRetryAttempts)),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "operation", operation, "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "connection refused") ||
				strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "EOF")
		}),
	)
}

// CurrentUser fetches the identity the client's token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return model.User{}, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return model.User{}, fmt.Errorf("failed to get current user (status %d)", resp.StatusCode)
	}

	var data userJSON
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return model.User{}, fmt.Errorf("failed to decode user: %w", err)
	}
	return data.toModel(), nil
}

// userJSON is the wire shape of a GitHub user.
type userJSON struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

func (u userJSON) toModel() model.User {
	return model.User{
		Login:      u.Login,
		ID:         u.ID,
		AvatarURL:  u.AvatarURL,
		ProfileURL: u.HTMLURL,
	}
}
