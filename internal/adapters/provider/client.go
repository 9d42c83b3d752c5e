// internal/adapters/provider/client.go
package provider

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"propsearch/internal/adapters/observability"
	"propsearch/internal/domain"
)

var (
	ErrNotFound     = errors.New("provider: not found")
	ErrUnauthorized = errors.New("provider: unauthorized")
	ErrForbidden    = errors.New("provider: forbidden")
	ErrRateLimited  = errors.New("provider: rate limited")
	ErrNoAPIKey     = errors.New("provider: API key is required")
)

type Options struct {
	Name          string        // label for metrics and RawResult.Provider
	RPS           int           // client-side rate limit
	Attempts      int           // per request; 1 means no retry
	Backoff       time.Duration // first retry delay, doubled per attempt; default 200ms
	Timeout       time.Duration // per search sub-query
	ScrapeTimeout time.Duration // per page fetch
	HTTPClient    *http.Client
}

type Client struct {
	name          string
	base          string
	key           string
	hc            *http.Client
	rl            *rate.Limiter
	attempts      int
	backoffBase   time.Duration
	timeout       time.Duration
	scrapeTimeout time.Duration
}

func New(base, key string, opt Options) (*Client, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}
	if opt.RPS <= 0 {
		opt.RPS = 5
	}
	if opt.Attempts <= 0 {
		opt.Attempts = 1
	}
	if opt.Backoff <= 0 {
		opt.Backoff = 200 * time.Millisecond
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.ScrapeTimeout <= 0 {
		opt.ScrapeTimeout = 8 * time.Second
	}
	if opt.Name == "" {
		opt.Name = "search"
	}
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		name:          opt.Name,
		base:          strings.TrimRight(base, "/"),
		key:           key,
		hc:            hc,
		rl:            rate.NewLimiter(rate.Limit(opt.RPS), opt.RPS),
		attempts:      opt.Attempts,
		backoffBase:   opt.Backoff,
		timeout:       opt.Timeout,
		scrapeTimeout: opt.ScrapeTimeout,
	}, nil
}

// ---- Public API ----

type searchBody struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl"`
	HL  string `json:"hl"`
}

// Search runs a single query.
func (c *Client) Search(ctx context.Context, q string, num int) ([]domain.RawResult, error) {
	body, err := json.Marshal(searchBody{Q: q, Num: num, GL: "cl", HL: "es"})
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := c.do(ctx, http.MethodPost, c.base+"/search", body, &payload); err != nil {
		return nil, err
	}
	res := mapResults(payload, c.name)
	if num > 0 && len(res) > num {
		res = res[:num]
	}
	return res, nil
}

// SearchMany dispatches every query concurrently, each under its own
// timeout. Results are merged only after all sub-queries finish; a failed
// sub-query contributes nothing and is reported in the error slice.
func (c *Client) SearchMany(ctx context.Context, queries []string, num int) ([]domain.RawResult, []domain.QueryError) {
	results := make([][]domain.RawResult, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			results[i], errs[i] = c.Search(qctx, q, num)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []domain.RawResult
		failed []domain.QueryError
		seen   = map[string]bool{}
	)
	for i, q := range queries {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("provider", c.name).Str("query", q).Msg("search sub-query failed")
			failed = append(failed, domain.QueryError{Query: q, Err: errs[i]})
			continue
		}
		for _, r := range results[i] {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			out = append(out, r)
		}
	}
	return out, failed
}

// ---- Internals ----

// do performs one request with client-side rate limiting and JSON decode
// into out. With more than one attempt configured it retries 429 and
// transient 5xx, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		last := i == c.attempts-1
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-KEY", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "propsearch/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(c.name, "search", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if !last && c.retryWait(ctx, i, 0, "transport") {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal(c.name, "search", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			hint := retryAfter(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = ErrRateLimited
			}
			if !last && c.retryWait(ctx, i, hint, strconv.Itoa(resp.StatusCode)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// maxRetryWait caps a server-sent Retry-After so one slow provider cannot
// hold a sub-query past the orchestrator's budget.
const maxRetryWait = 5 * time.Second

// retryWait sleeps before attempt i+1, preferring the server hint over the
// client's own backoff, and counts the retry under this provider's label.
// It reports false when ctx ends first.
func (c *Client) retryWait(ctx context.Context, i int, hint time.Duration, reason string) bool {
	d := hint
	if d <= 0 {
		d = c.backoff(i)
	}
	if d > maxRetryWait {
		d = maxRetryWait
	}
	observability.ObserveRetry(c.name, reason)
	log.Debug().Str("provider", c.name).Str("reason", reason).Int("attempt", i+1).
		Dur("wait", d).Msg("retrying search request")

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from c.backoffBase per attempt with up to +50% jitter.
func (c *Client) backoff(i int) time.Duration {
	base := time.Duration(1<<i) * c.backoffBase
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
