package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/transport"
)

const (
	defaultUserAgent       = "go-leads/1"
	responseSnippetLimit   = 200
	maxTargetResponseBytes = int64(1 << 20)
	deliveredMessage       = "Webhook delivered successfully"
)

// Transport is the outbound HTTP seam; transport.RESTAdapter satisfies it.
type Transport interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

type Dispatcher struct {
	Transport Transport
	Timeout   time.Duration
	Retry     RetryPolicy
	UserAgent string
	Sleep     func(ctx context.Context, delay time.Duration) error
	Now       func() time.Time
}

type Option func(*Dispatcher)

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.Timeout = timeout
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) {
		d.Retry = policy
	}
}

func WithUserAgent(userAgent string) Option {
	return func(d *Dispatcher) {
		if strings.TrimSpace(userAgent) != "" {
			d.UserAgent = strings.TrimSpace(userAgent)
		}
	}
}

func WithSleep(sleep func(ctx context.Context, delay time.Duration) error) Option {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.Sleep = sleep
		}
	}
}

func NewDispatcher(outbound Transport, opts ...Option) *Dispatcher {
	if outbound == nil {
		outbound = transport.NewRESTAdapter(nil)
	}
	d := &Dispatcher{
		Transport: outbound,
		Timeout:   time.Duration(core.DefaultDispatchTimeoutSeconds) * time.Second,
		Retry: RetryPolicy{
			MaxRetries: core.DefaultDispatchMaxRetries,
			Initial:    time.Duration(core.DefaultDispatchInitialBackoffMS) * time.Millisecond,
			Max:        time.Duration(core.DefaultDispatchMaxBackoffMS) * time.Millisecond,
		},
		UserAgent: defaultUserAgent,
		Sleep:     sleepContext,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// FactoryFromConfig builds a dispatcher over the default REST adapter from the
// resolved service config.
func FactoryFromConfig(cfg core.Config) (core.Dispatcher, error) {
	return NewDispatcher(
		transport.NewRESTAdapter(nil),
		WithTimeout(cfg.Dispatch.Timeout()),
		WithRetryPolicy(RetryPolicy{
			MaxRetries: cfg.Dispatch.MaxRetries,
			Initial:    cfg.Dispatch.InitialBackoff(),
			Max:        cfg.Dispatch.MaxBackoff(),
		}),
		WithUserAgent(cfg.Dispatch.UserAgent),
	), nil
}

// Dispatch delivers event to every target concurrently. Outcomes keep the
// order of targets; one target never waits on another.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.DeliveryEvent, targets []core.DeliveryTarget) []core.DeliveryOutcome {
	outcomes := make([]core.DeliveryOutcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target core.DeliveryTarget) {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, event, target, d.Retry.MaxAttempts())
		}(i, target)
	}
	wg.Wait()
	return outcomes
}

// DispatchTest performs a single attempt with no retries.
func (d *Dispatcher) DispatchTest(ctx context.Context, event core.DeliveryEvent, target core.DeliveryTarget) core.DeliveryOutcome {
	return d.deliver(ctx, event, target, 1)
}

type attemptResult struct {
	success    bool
	retryable  bool
	statusCode int
	message    string
	retryAfter time.Duration
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	event core.DeliveryEvent,
	target core.DeliveryTarget,
	maxAttempts int,
) core.DeliveryOutcome {
	outcome := core.DeliveryOutcome{Target: target}
	if d == nil || d.Transport == nil {
		outcome.Message = "delivery: transport is not configured"
		return outcome
	}
	payload, err := Format(target.Kind, event)
	if err != nil {
		outcome.Message = err.Error()
		return outcome
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result := d.attempt(ctx, target, payload)
		outcome.Attempts = attempt
		outcome.StatusCode = result.statusCode
		outcome.Message = result.message
		if result.success {
			outcome.Success = true
			return outcome
		}
		if !result.retryable || attempt == maxAttempts {
			return outcome
		}
		delay := d.Retry.NextDelay(attempt)
		if result.statusCode == http.StatusTooManyRequests {
			delay = d.Retry.clampRetryAfter(result.retryAfter, delay)
		}
		if err := d.sleep(ctx, delay); err != nil {
			outcome.Message = fmt.Sprintf("%s; retry aborted: %v", result.message, err)
			return outcome
		}
	}
	return outcome
}

func (d *Dispatcher) attempt(ctx context.Context, target core.DeliveryTarget, payload []byte) attemptResult {
	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   d.userAgent(),
	}
	if target.Kind == core.TargetKindGeneric && strings.TrimSpace(target.Secret) != "" {
		headers[SignatureHeader] = Sign(target.Secret, payload)
	}

	res, err := d.Transport.Do(ctx, transport.Request{
		Method:               http.MethodPost,
		URL:                  target.Destination,
		Headers:              headers,
		Body:                 payload,
		Timeout:              d.Timeout,
		MaxResponseBodyBytes: maxTargetResponseBytes,
	})
	if err != nil {
		message := err.Error()
		if transport.IsTimeout(err) {
			message = fmt.Sprintf("timed out after %s", d.Timeout)
		}
		return attemptResult{
			retryable: !transport.IsInputError(err),
			message:   message,
		}
	}
	if res.Success() {
		return attemptResult{success: true, statusCode: res.StatusCode, message: deliveredMessage}
	}
	return attemptResult{
		retryable:  isRetryableStatus(res.StatusCode),
		statusCode: res.StatusCode,
		message:    statusMessage(res),
		retryAfter: parseRetryAfter(res.Header("Retry-After"), d.now()),
	}
}

func (d *Dispatcher) userAgent() string {
	if strings.TrimSpace(d.UserAgent) == "" {
		return defaultUserAgent
	}
	return d.UserAgent
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, delay)
	}
	return sleepContext(ctx, delay)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func statusMessage(res transport.Response) string {
	snippet := strings.TrimSpace(string(res.Body))
	if len(snippet) > responseSnippetLimit {
		snippet = snippet[:responseSnippetLimit] + "..."
	}
	if snippet == "" {
		return fmt.Sprintf("HTTP %d", res.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", res.StatusCode, snippet)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ core.Dispatcher = (*Dispatcher)(nil)
