package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
)

// BreakerOpenCause is the error message recorded when delivery is skipped
// because the circuit breaker is open. It shows up verbatim in the retry
// ledger so open-breaker failures stay distinguishable.
const BreakerOpenCause = "circuit breaker open, delivery skipped"

const maxErrorBody = 512

// Outcome is the result of one delivery for one record. Failures are data,
// not errors: the engine branches on this value.
type Outcome struct {
	Delivered   bool
	StatusCode  int    // last HTTP status, 0 on transport error
	Cause       string // empty when Delivered
	BreakerOpen bool
}

type Options struct {
	Endpoint         string
	HealthURL        string
	Timeout          time.Duration // per-request; default 30s
	MaxRetries       int           // in-call retries; default 3
	BackoffBase      time.Duration // default 200ms
	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

// Client delivers serialized records to the central inventory service under
// a bounded retry/backoff policy behind a circuit breaker.
type Client struct {
	endpoint    string
	healthURL   string
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	br          *Breaker
}

func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 200 * time.Millisecond
	}

	return &Client{
		endpoint:    o.Endpoint,
		healthURL:   o.HealthURL,
		client:      &http.Client{Timeout: o.Timeout},
		maxRetries:  o.MaxRetries,
		backoffBase: o.BackoffBase,
		br:          NewBreaker(o.BreakerThreshold, o.BreakerOpenFor),
	}
}

// Deliver posts one payload. Up to maxRetries attempts are made in-call with
// exponential backoff; the breaker sees the call as a whole, one success or
// one failure, so a fully exhausted call counts once toward its threshold.
func (c *Client) Deliver(ctx context.Context, p model.SyncPayload) Outcome {
	if !c.br.Allow() {
		return Outcome{Cause: BreakerOpenCause, BreakerOpen: true}
	}

	var last Outcome
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, c.backoff(attempt-1)) {
				c.br.release()
				last.Cause = "delivery aborted: " + ctx.Err().Error()
				return last
			}
		}

		status, cause := c.post(ctx, p)
		if status/100 == 2 {
			c.br.OnSuccess()
			return Outcome{Delivered: true, StatusCode: status}
		}
		last = Outcome{StatusCode: status, Cause: cause}

		if ctx.Err() != nil {
			c.br.release()
			return last
		}
	}

	c.br.OnFailure()
	return last
}

// Probe checks the remote health endpoint. It never feeds the breaker: a
// failing probe must not trip it, and a passing one must not reset it.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("health endpoint status=%d", res.StatusCode)
	}
	return nil
}

// BreakerOpen reports current breaker state for diagnostics.
func (c *Client) BreakerOpen() bool { return c.br.Open() }

// post performs a single POST. Returns (status, "") on any HTTP response and
// (0, cause) on transport errors.
func (c *Client) post(ctx context.Context, p model.SyncPayload) (int, string) {
	b, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Sprintf("marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer res.Body.Close()

	if res.StatusCode/100 == 2 {
		return res.StatusCode, ""
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return res.StatusCode, fmt.Sprintf("endpoint status=%d body=%s", res.StatusCode, bytes.TrimSpace(body))
}

// backoff returns base * 2^attempt with +-half-base jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffBase << uint(attempt)
	j := time.Duration(rand.Int63n(int64(c.backoffBase))) - c.backoffBase/2
	if d+j <= 0 {
		return d
	}
	return d + j
}

// sleep waits d or until ctx is cancelled. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
