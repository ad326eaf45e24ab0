package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-leads/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the subset of the core service the HTTP layer calls.
type Service interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
	Resolve(ctx context.Context, rawURL string) (core.ReferenceDocument, error)
	ResolveByID(ctx context.Context, canonicalID string) (core.ReferenceDocument, error)
	DispatchTest(ctx context.Context, req core.DispatchTestRequest) (core.DeliveryOutcome, error)
}

type Options struct {
	// JWTSecret signs the bearer tokens accepted by authenticated routes.
	// When empty every authenticated route answers 401.
	JWTSecret string
	Logger    glog.Logger
	// MaxBodyBytes caps JSON request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// Mount registers extra routes (for example /metrics) on the root router.
	Mount func(r chi.Router)
}

const defaultMaxBodyBytes = 1 << 20

func NewRouter(service Service, opts Options) *chi.Mux {
	logger := glog.Ensure(opts.Logger)
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &handlers{service: service, maxBodyBytes: opts.MaxBodyBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/leads", h.submitLead)

		r.Get("/reference/page", h.resolveReference)
		r.Post("/reference/page", h.resolveReference)
		r.Get("/reference/page/{pageID}", h.resolveReferenceByID)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(opts.JWTSecret))
			r.Post("/webhooks/test", h.dispatchTest)
		})
	})

	if opts.Mount != nil {
		opts.Mount(r)
	}
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger glog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.WithContext(r.Context()).Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
