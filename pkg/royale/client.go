package royale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/retry"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/types"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"go.uber.org/zap"
)

// maxRetryAfter caps the server-directed wait from a Retry-After header so a
// hostile or misconfigured upstream cannot stall a cycle.
const maxRetryAfter = 5 * time.Second

// Client is a typed Clash Royale API client with a token-bucket rate limit
// and centralized bounded retry. All responses are decoded into tracker
// types at this boundary; raw payloads never travel further in.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger

	retryCfg retry.Config

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time
}

// Opts is the set of options for a new Client.
type Opts struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RPS        int
	Burst      int
	Retry      retry.Config
	HTTPClient *http.Client
}

// OptsFromEnv reads the upstream API connection settings from the environment.
func OptsFromEnv() Opts {
	return Opts{
		BaseURL: utils.Env("CR_API_BASE_URL", "https://api.clashroyale.com/v1"),
		Token:   utils.Env("CR_API_TOKEN", ""),
	}
}

// NewClient creates a new Client with the given options, filling defaults.
func NewClient(logger *zap.Logger, o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.Retry.MaxRetries <= 0 {
		o.Retry = retry.Config{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     maxRetryAfter,
			Multiplier:   2.0,
		}
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &Client{
		baseURL:     o.BaseURL,
		token:       o.Token,
		client:      client,
		logger:      logger,
		retryCfg:    o.Retry,
		maxTokens:   int64(o.Burst),
		refillEvery: time.Second / time.Duration(o.RPS),
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// refill refills the token-bucket with new tokens if necessary.
func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

// acquire acquires a token from the token-bucket, blocking if necessary.
func (c *Client) acquire() {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

// getJSON fetches path relative to the base URL and decodes the body into
// out. Retry policy is centralized: the FetchError built for each failure
// decides retryability and may carry a server-directed delay, and the shared
// backoff loop honors both.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return retry.WithBackoff(ctx, c.retryCfg, c.logger, "GET "+path, func() error {
		return c.doOnce(ctx, path, out)
	})
}

// doOnce performs a single attempt and classifies any failure.
func (c *Client) doOnce(ctx context.Context, path string, out any) error {
	c.acquire()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &types.FetchError{Kind: types.FetchNetwork, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// decoded below

	case http.StatusNotFound:
		_ = utils.DrainAndClose(resp.Body)
		return &types.FetchError{Kind: types.FetchNotFound, Status: resp.StatusCode, Err: errors.New("resource not found")}

	case http.StatusUnauthorized, http.StatusForbidden:
		_ = utils.DrainAndClose(resp.Body)
		return &types.FetchError{Kind: types.FetchUnauthorized, Status: resp.StatusCode, Err: errors.New("access denied, check the API token")}

	case http.StatusTooManyRequests:
		ra := parseRetryAfter(resp.Header.Get("Retry-After"))
		_ = utils.DrainAndClose(resp.Body)
		return &types.FetchError{Kind: types.FetchRateLimited, Status: resp.StatusCode, RetryAfter: ra, Err: errors.New("rate limit exceeded")}

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		_ = utils.DrainAndClose(resp.Body)
		return &types.FetchError{Kind: types.FetchNetwork, Status: resp.StatusCode, Err: fmt.Errorf("upstream unavailable (http %d)", resp.StatusCode)}

	default:
		_ = utils.DrainAndClose(resp.Body)
		return &types.FetchError{Kind: types.FetchUpstream, Status: resp.StatusCode, Err: fmt.Errorf("unexpected http %d", resp.StatusCode)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			_ = utils.DrainAndClose(resp.Body)
			return &types.FetchError{Kind: types.FetchNetwork, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return utils.DrainAndClose(resp.Body)
}

// parseRetryAfter reads a Retry-After value in seconds, clamped to
// [0, maxRetryAfter]. Unparseable or absent values yield zero, which the
// retry loop treats as no directive.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(h, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs * float64(time.Second))
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
