package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

const problemContentType = "application/problem+json"

type problemField struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// problem is an RFC 7807 document built from a go-errors envelope.
type problem struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Status    int            `json:"status"`
	Detail    string         `json:"detail,omitempty"`
	Code      string         `json:"code,omitempty"`
	Errors    []problemField `json:"errors,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		rich = goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	}
	status := statusFor(rich)
	doc := problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Code:   rich.TextCode,
	}
	if status < http.StatusInternalServerError || rich.TextCode == core.ServiceErrorReferenceUpstreamUnavailable {
		doc.Detail = rich.Message
	}
	if doc.Code == "" && status >= http.StatusInternalServerError {
		doc.Code = core.ServiceErrorInternal
	}
	for _, field := range rich.AllValidationErrors() {
		doc.Errors = append(doc.Errors, problemField{Field: field.Field, Message: field.Message})
	}
	if r != nil {
		doc.RequestID = middleware.GetReqID(r.Context())
	}

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

func statusFor(err *goerrors.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}
	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
