// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of Generate. Exactly one of Text (OK) or Err (absent)
// is meaningful; callers must check OK.
type Result struct {
	Text     string
	OK       bool
	Attempts int
	Err      error // last failure when absent
}

// Ok wraps a successful completion.
func Ok(text string) Result { return Result{Text: text, OK: true} }

// Absent records that no completion was produced.
func Absent(err error) Result { return Result{Err: err} }

// Client wraps one backend with retry, rate limiting and metrics.
type Client struct {
	cfg     Config
	backend Backend
	limiter *rate.Limiter
	logger  *slog.Logger

	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// New validates cfg and builds the backend it names. Unknown providers and
// missing credentials fail here, never at call time. Empty API keys are
// filled from the provider's environment variable.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	kind, err := ParseKind(cfg.Provider)
	if err != nil {
		return nil, err
	}
	cfg.Provider = string(kind)
	if cfg.APIKey == "" {
		cfg.APIKey = envAPIKey(kind)
	}
	cfg = cfg.withDefaults()

	backend, err := newBackend(kind, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, backend, logger), nil
}

// NewWithBackend wraps an already-constructed backend.
func NewWithBackend(cfg Config, backend Backend, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		backend: backend,
		logger:  logger,

		callTimeout: cfg.Timeout(),
		sleep:       sleepCtx,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}
	return c
}

// Name returns the backend kind.
func (c *Client) Name() string { return c.backend.Name() }

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.ModelID }

// Generate asks the backend for a completion, retrying every failure up to
// MaxAttempts times with randomized exponential backoff. It never returns an
// error or panics: exhaustion, cancellation and backend panics all yield an
// absent Result.
func (c *Client) Generate(ctx context.Context, prompt, system string) Result {
	name := c.backend.Name()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff(attempt - 1)
			recordRetry(name)
			c.logger.Warn("llm.generate.retry",
				"backend", name,
				"attempt", attempt,
				"sleep_ms", wait.Milliseconds(),
				"err", lastErr,
			)
			if err := c.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = fmt.Errorf("rate limit wait: %w", err)
				break
			}
		}

		attempts = attempt
		start := time.Now()
		text, err := c.call(ctx, prompt, system)
		recordAttempt(name, time.Since(start), err)
		if err == nil {
			r := Ok(text)
			r.Attempts = attempts
			return r
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	recordAbsent(name)
	c.logger.Error("llm.generate.absent", "backend", name, "attempts", attempts, "err", lastErr)
	r := Absent(lastErr)
	r.Attempts = attempts
	return r
}

// call runs one backend request under the per-call timeout. A panic inside
// the backend is converted into an error.
func (c *Client) call(ctx context.Context, prompt, system string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s backend panic: %v", c.backend.Name(), r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	text, err = c.backend.Complete(callCtx, prompt, system)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// backoff returns a wait drawn uniformly from [MinBackoff, ceil] where ceil
// is MinBackoff*2^retry clamped to MaxBackoff.
func (c *Client) backoff(retry int) time.Duration {
	lo := c.cfg.MinBackoff
	hi := c.cfg.MaxBackoff
	ceil := lo
	for i := 0; i < retry && ceil < hi; i++ {
		ceil *= 2
	}
	if ceil > hi {
		ceil = hi
	}
	if ceil <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(ceil-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
