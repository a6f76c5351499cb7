// Package wormholescan is a small client for the Wormholescan REST API: signed
// VAA lookup and cross-chain operation status.
package wormholescan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/wait"
)

const (
	// DefaultBaseURL is the testnet API endpoint.
	DefaultBaseURL = "https://api.testnet.wormscan.io"
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is how many times a failed request is retried.
	DefaultRetries = 3
)

// ErrVAANotFound is returned while the guardians have not yet signed a VAA.
var ErrVAANotFound = errors.New("wormholescan: signed VAA not found")

// Client talks to the Wormholescan API.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	// pollClient makes single attempts; WaitSignedVAA owns the retry loop.
	pollClient *retryablehttp.Client
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithRetries sets how many times transport errors and 5xx responses are retried.
func WithRetries(n int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = n
		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}
		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithLogger sets the logger. Request retries are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new API client.
func NewClient(opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.HTTPClient.Timeout = DefaultTimeout
	hc.RetryMax = DefaultRetries

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: hc,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Logger = retryablehttp.LeveledLogger(c.logger)

	poll := retryablehttp.NewClient()
	poll.HTTPClient = c.httpClient.HTTPClient
	poll.Logger = c.httpClient.Logger
	poll.RetryMax = 0
	c.pollClient = poll
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wormholescan: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if this is a 404 error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.getWith(ctx, c.httpClient, path, query, result)
}

func (c *Client) getWith(ctx context.Context, hc *retryablehttp.Client, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", borrowlend.ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", borrowlend.ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var msg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &msg) == nil {
			if msg.Message != "" {
				apiErr.Message = msg.Message
			} else if msg.Error != "" {
				apiErr.Message = msg.Error
			}
		}
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// SignedVAA fetches the signed VAA bytes for (chain, emitter, sequence).
// It returns ErrVAANotFound while the VAA is not yet available.
func (c *Client) SignedVAA(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64) ([]byte, error) {
	return c.signedVAA(ctx, c.httpClient, chain, emitter, sequence)
}

func (c *Client) signedVAA(ctx context.Context, hc *retryablehttp.Client, chain vaa.ChainID, emitter vaa.Address, sequence uint64) ([]byte, error) {
	path := fmt.Sprintf("/v1/signed_vaa/%d/%s/%d", uint16(chain), emitter.String(), sequence)

	var resp struct {
		VAABytes string `json:"vaaBytes"`
	}
	if err := c.getWith(ctx, hc, path, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, fmt.Errorf("%w: %s", ErrVAANotFound, path)
		}
		return nil, err
	}
	if resp.VAABytes == "" {
		return nil, fmt.Errorf("%w: %s", ErrVAANotFound, path)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.VAABytes)
	if err != nil {
		return nil, fmt.Errorf("decode vaaBytes: %w", err)
	}
	return raw, nil
}

// WaitSignedVAA polls for the signed VAA under policy until it is available.
// Not-found responses and network errors are retried by the policy; each
// attempt is a single HTTP request. When the policy is exhausted the error
// wraps wait.ErrTimeout and the last cause.
func (c *Client) WaitSignedVAA(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64, policy wait.Policy) ([]byte, error) {
	var raw []byte
	err := wait.Until(ctx, policy, func(ctx context.Context) (bool, error) {
		b, err := c.signedVAA(ctx, c.pollClient, chain, emitter, sequence)
		switch {
		case err == nil:
			raw = b
			return true, nil
		case errors.Is(err, ErrVAANotFound):
			c.logger.Debug("signed VAA not available yet",
				slog.String("chain", chain.String()),
				slog.Uint64("sequence", sequence),
			)
			return false, err
		case errors.Is(err, borrowlend.ErrNetwork):
			return false, err
		default:
			return false, wait.Permanent(err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("fetch signed VAA %d/%s/%d: %w", uint16(chain), emitter.String(), sequence, err)
	}
	return raw, nil
}
