package delivery

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy bounds retries of one target. MaxRetries counts additional
// attempts after the first one.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// NextDelay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 5 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// clampRetryAfter honors a server-provided delay without exceeding Max.
func (p RetryPolicy) clampRetryAfter(delay time.Duration, fallback time.Duration) time.Duration {
	if delay <= 0 {
		return fallback
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 5 * time.Second
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(raw); err == nil {
		if delay := at.Sub(now); delay > 0 {
			return delay
		}
	}
	return 0
}
