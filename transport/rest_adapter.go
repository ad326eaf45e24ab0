package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultClientTimeout       = 30 * time.Second
	defaultResponseLimit int64 = 10 << 20
	defaultRequestMethod       = http.MethodGet
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one outbound call. Timeout bounds the whole exchange,
// including reading the body. Once the status line has arrived the call
// counts as answered: an oversized or interrupted body is cut short and
// flagged on the Response instead of failing the call.
type Request struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	// Truncated is set when the body exceeded the limit or stopped early.
	Truncated  bool
}

// Header returns a response header by canonical name.
func (r Response) Header(name string) string {
	return r.Headers[http.CanonicalHeaderKey(name)]
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RESTAdapter performs webhook deliveries and reference provider lookups.
// Every failure it returns is a *goerrors.Error so callers can tell
// request mistakes from remote trouble.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultResponseLimit,
	}
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, internalError("transport: rest adapter requires an http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return Response{}, err
	}

	started := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, remoteFailure(ctx, err, httpReq.Method, req.Timeout)
	}
	defer httpRes.Body.Close()

	body, truncated := readLimited(httpRes.Body, a.responseLimit(req))
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    joinHeaders(httpRes.Header),
		Body:       body,
		Duration:   time.Since(started),
		Truncated:  truncated,
	}, nil
}

func (a *RESTAdapter) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil {
		return nil, inputError(err, "transport: invalid request url")
	}
	if !target.IsAbs() || target.Host == "" {
		return nil, inputError(nil, "transport: request url must be absolute")
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = defaultRequestMethod
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, inputError(err, "transport: create http request")
	}

	// Per-request headers win over adapter defaults.
	for _, headers := range []map[string]string{a.DefaultHeaders, req.Headers} {
		for key, value := range headers {
			if key = strings.TrimSpace(key); key != "" {
				httpReq.Header.Set(key, strings.TrimSpace(value))
			}
		}
	}
	return httpReq, nil
}

func (a *RESTAdapter) responseLimit(req Request) int64 {
	switch {
	case req.MaxResponseBodyBytes > 0:
		return req.MaxResponseBodyBytes
	case a.MaxResponseBodyBytes > 0:
		return a.MaxResponseBodyBytes
	default:
		return defaultResponseLimit
	}
}

func readLimited(body io.Reader, limit int64) ([]byte, bool) {
	payload, err := io.ReadAll(io.LimitReader(body, limit+1))
	if int64(len(payload)) > limit {
		return payload[:limit], true
	}
	return payload, err != nil
}

func remoteFailure(ctx context.Context, err error, method string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return externalError(err, fmt.Sprintf("transport: request timed out after %s", timeout), http.StatusGatewayTimeout, map[string]any{
			"method":           method,
			timeoutMetadataKey: true,
		})
	}
	return externalError(err, "transport: execute http request", http.StatusBadGateway, map[string]any{
		"method": method,
	})
}

func joinHeaders(headers http.Header) map[string]string {
	joined := make(map[string]string, len(headers))
	for key, values := range headers {
		joined[key] = strings.Join(values, ",")
	}
	return joined
}
