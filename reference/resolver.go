package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/transport"
)

// Transport is the outbound HTTP seam; transport.RESTAdapter satisfies it.
type Transport interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

type Resolver struct {
	Providers        []string
	Transport        Transport
	Timeout          time.Duration
	MaxResponseBytes int64
}

func NewResolver(outbound Transport, providers []string, timeout time.Duration) *Resolver {
	if outbound == nil {
		outbound = transport.NewRESTAdapter(nil)
	}
	if len(providers) == 0 {
		providers = core.DefaultReferenceProviders
	}
	if timeout <= 0 {
		timeout = time.Duration(core.DefaultReferenceTimeoutSeconds) * time.Second
	}
	return &Resolver{
		Providers:        normalizeProviders(providers),
		Transport:        outbound,
		Timeout:          timeout,
		MaxResponseBytes: core.DefaultReferenceMaxResponseSize,
	}
}

func FactoryFromConfig(cfg core.Config) (core.ReferenceResolver, error) {
	resolver := NewResolver(transport.NewRESTAdapter(nil), cfg.Reference.Providers, cfg.Reference.Timeout())
	if cfg.Reference.MaxResponseBytes > 0 {
		resolver.MaxResponseBytes = cfg.Reference.MaxResponseBytes
	}
	if len(resolver.Providers) == 0 {
		return nil, fmt.Errorf("reference: at least one provider is required")
	}
	return resolver, nil
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) (core.ReferenceDocument, error) {
	id := ExtractCanonicalID(rawURL)
	if id == "" {
		return core.ReferenceDocument{}, newNotResolvableError(rawURL)
	}
	return r.ResolveByID(ctx, id)
}

func (r *Resolver) ResolveByID(ctx context.Context, canonicalID string) (core.ReferenceDocument, error) {
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return core.ReferenceDocument{}, newNotResolvableError("")
	}
	if r == nil || r.Transport == nil || len(r.Providers) == 0 {
		return core.ReferenceDocument{}, fmt.Errorf("reference: resolver is not configured")
	}
	formatted := FormatCanonicalID(canonicalID)

	var lastErr error
	for i, provider := range r.Providers {
		last := i == len(r.Providers)-1
		res, err := r.Transport.Do(ctx, transport.Request{
			Method:               http.MethodGet,
			URL:                  provider + "/" + url.PathEscape(formatted),
			Headers:              map[string]string{"Accept": "application/json"},
			Timeout:              r.Timeout,
			MaxResponseBodyBytes: r.MaxResponseBytes,
		})
		if err != nil {
			lastErr = fmt.Errorf("provider %s: %w", provider, err)
			continue
		}
		switch res.StatusCode {
		case http.StatusOK:
			if res.Truncated {
				lastErr = fmt.Errorf("provider %s: response exceeds %d bytes or was cut short", provider, r.MaxResponseBytes)
				continue
			}
			if !json.Valid(res.Body) {
				lastErr = fmt.Errorf("provider %s: response is not valid JSON", provider)
				continue
			}
			return core.ReferenceDocument{
				CanonicalID: formatted,
				Content:     json.RawMessage(res.Body),
				Provider:    provider,
			}, nil
		case http.StatusNotFound:
			if last {
				return core.ReferenceDocument{}, newNotFoundError(formatted, provider)
			}
			lastErr = fmt.Errorf("provider %s: document not found (404)", provider)
		case http.StatusForbidden:
			lastErr = fmt.Errorf("provider %s: access denied (403); check that the page is public", provider)
		default:
			lastErr = fmt.Errorf("provider %s: unexpected status %d", provider, res.StatusCode)
		}
	}
	return core.ReferenceDocument{}, newUpstreamUnavailableError(formatted, len(r.Providers), lastErr)
}

func normalizeProviders(providers []string) []string {
	out := make([]string, 0, len(providers))
	for _, provider := range providers {
		provider = strings.TrimRight(strings.TrimSpace(provider), "/")
		if provider == "" {
			continue
		}
		out = append(out, provider)
	}
	return out
}

var _ core.ReferenceResolver = (*Resolver)(nil)
