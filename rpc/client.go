// Package rpc is the resilient outbound client every agent uses. Each call
// runs under a hard timeout and is retried with capped exponential backoff;
// non-retryable failures (protocol violations, authorization errors) fail
// immediately. Every attempt is observable.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
)

// Policy holds the retry discipline. Injectable rather than constant; the
// defaults follow the configured time-unit of one second.
type Policy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
		BackoffCap:  30 * time.Second,
	}
}

// Failure classifies a failed call. Retryable failures were retried up to
// the policy limit before being returned.
type Failure struct {
	Code     protocol.ErrorCode
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("rpc failure %s after %d attempt(s): %v", f.Code, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error   { return f.Err }
func (f *Failure) Retryable() bool { return f.Code.Retryable() }

// Observer sees every attempt, success or failure, for logging and metrics.
// delay is the backoff that will precede the next attempt (zero on the
// last one).
type Observer func(target string, msgType protocol.MessageType, attempt int, delay time.Duration, err error)

type Client struct {
	hc      *http.Client
	policy  Policy
	logger  *slog.Logger
	observe Observer
}

type Option func(*Client)

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func NewClient(policy Policy, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{},
		policy: policy,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts the envelope to target under the given per-attempt timeout.
// It returns the decoded response, or a *Failure once the attempt budget is
// exhausted or a non-retryable failure occurs. Concurrent calls never
// serialize behind each other; the client is safe for concurrent use.
func (c *Client) Call(ctx context.Context, target string, env protocol.Envelope, timeout time.Duration) (*protocol.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, &Failure{Code: protocol.CodeParse, Attempts: 0, Err: err}
	}

	var last *Failure
	for attempt := 0; ; attempt++ {
		resp, failure := c.attempt(ctx, target, body, timeout)
		if failure == nil {
			c.emit(target, env.MessageType, attempt, 0, nil)
			return resp, nil
		}
		last = failure
		last.Attempts = attempt + 1

		if !failure.Retryable() || attempt >= c.policy.MaxRetries {
			c.emit(target, env.MessageType, attempt, 0, failure)
			return nil, last
		}

		delay := c.backoff(attempt)
		c.emit(target, env.MessageType, attempt, delay, failure)
		select {
		case <-ctx.Done():
			last.Err = errors.Join(last.Err, ctx.Err())
			return nil, last
		case <-time.After(delay):
		}
	}
}

func (c *Client) attempt(ctx context.Context, target string, body []byte, timeout time.Duration) (*protocol.Response, *Failure) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Code: protocol.CodeConnection, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.hc.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, &Failure{Code: protocol.CodeTimeout, Err: err}
		}
		return nil, &Failure{Code: protocol.CodeConnection, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &Failure{Code: protocol.CodeUnavailable, Err: fmt.Errorf("peer returned %s", httpResp.Status)}
	}

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &Failure{Code: protocol.CodeParse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if perr := resp.Err(); perr != nil {
		return nil, &Failure{Code: perr.Code, Err: perr}
	}
	return &resp, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.policy.BackoffBase << uint(attempt)
	if c.policy.BackoffCap > 0 && d > c.policy.BackoffCap {
		d = c.policy.BackoffCap
	}
	return d
}

func (c *Client) emit(target string, msgType protocol.MessageType, attempt int, delay time.Duration, err error) {
	if err != nil {
		c.logger.Debug("rpc attempt failed",
			slog.String("target", target),
			slog.String("type", string(msgType)),
			slog.Int("attempt", attempt),
			slog.Duration("next_backoff", delay),
			slog.Any("error", err))
	}
	if c.observe != nil {
		c.observe(target, msgType, attempt, delay, err)
	}
}
