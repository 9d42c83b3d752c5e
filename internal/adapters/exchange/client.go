// Package exchange fetches the current UF value in CLP.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"propsearch/internal/adapters/observability"
)

var ErrNoRate = errors.New("exchange: no rate available")

const defaultTTL = time.Hour

// Client reads a mindicador-style series ({"serie":[{"valor":39000.5}]})
// and memoizes the latest value.
type Client struct {
	url string
	hc  *http.Client
	ttl time.Duration
	now func() time.Time

	inflight singleflight.Group
	mu       sync.Mutex
	rate     float64
	fetched  time.Time
}

func New(url string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{url: url, hc: hc, ttl: defaultTTL, now: time.Now}
}

// CurrentRate returns CLP per UF. Concurrent callers on a stale memo share
// one upstream fetch; each caller still honours its own ctx while waiting.
func (c *Client) CurrentRate(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if c.rate > 0 && c.now().Sub(c.fetched) < c.ttl {
		r := c.rate
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()
	if c.url == "" {
		return 0, ErrNoRate
	}

	ch := c.inflight.DoChan("uf", func() (any, error) {
		// detached: one caller giving up must not fail the others
		r, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.rate, c.fetched = r, c.now()
		c.mu.Unlock()
		return r, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("exchange", "uf", 0, time.Since(start))
		return 0, fmt.Errorf("%w: %v", ErrNoRate, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("exchange", "uf", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrNoRate, resp.StatusCode)
	}
	var payload struct {
		Serie []struct {
			Valor float64 `json:"valor"`
		} `json:"serie"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrNoRate, err)
	}
	if len(payload.Serie) == 0 || payload.Serie[0].Valor <= 0 {
		return 0, ErrNoRate
	}
	return payload.Serie[0].Valor, nil
}
