package core

import (
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput                     = "LEADS_BAD_INPUT"
	ServiceErrorScopeNotFound                = "LEADS_SCOPE_NOT_FOUND"
	ServiceErrorSubmissionNotFound           = "LEADS_SUBMISSION_NOT_FOUND"
	ServiceErrorPermissionDenied             = "LEADS_PERMISSION_DENIED"
	ServiceErrorStorageInvariantViolation    = "LEADS_STORAGE_INVARIANT_VIOLATION"
	ServiceErrorReferenceNotResolvable       = "LEADS_REFERENCE_NOT_RESOLVABLE"
	ServiceErrorReferenceNotFound            = "LEADS_REFERENCE_NOT_FOUND"
	ServiceErrorReferenceUpstreamUnavailable = "LEADS_REFERENCE_UPSTREAM_UNAVAILABLE"
	ServiceErrorExternalFailure              = "LEADS_EXTERNAL_FAILURE"
	ServiceErrorRateLimited                  = "LEADS_RATE_LIMITED"
	ServiceErrorUnauthorized                 = "LEADS_UNAUTHORIZED"
	ServiceErrorInternal                     = "LEADS_INTERNAL_ERROR"
)

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrScopeNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorScopeNotFound)
	case errors.Is(err, ErrSubmissionNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorSubmissionNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "throttl") || strings.Contains(msg, "rate limit") {
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped != nil && isInputCategory(mapped.Category) && !fromValidator(err) {
		// Untyped storage and driver failures are never the caller's fault.
		return newServiceError(err.Error(), goerrors.CategoryInternal, ServiceErrorInternal)
	}
	return ensureServiceErrorEnvelope(mapped)
}

func isInputCategory(category goerrors.Category) bool {
	return category == goerrors.CategoryBadInput || category == goerrors.CategoryValidation
}

// fromValidator reports errors raised by ozzo-validation rules.
func fromValidator(err error) bool {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return true
	}
	var ruleErr validation.Error
	return errors.As(err, &ruleErr)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// NewStorageInvariantViolation reports a uniqueness conflict whose winner
// could not be read back.
func NewStorageInvariantViolation(fingerprint string, source error) *goerrors.Error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryInternal, "core: storage reported a fingerprint conflict but no record exists")
	} else {
		err = goerrors.New("core: storage reported a fingerprint conflict but no record exists", goerrors.CategoryInternal)
	}
	return err.
		WithCode(http.StatusInternalServerError).
		WithTextCode(ServiceErrorStorageInvariantViolation).
		WithMetadata(map[string]any{"fingerprint": fingerprint})
}

func NewScopeNotFoundError(scopeID string) *goerrors.Error {
	return goerrors.New("core: scope not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ServiceErrorScopeNotFound).
		WithMetadata(map[string]any{"scope_id": scopeID})
}

func newPermissionDeniedError(scopeID string) *goerrors.Error {
	return goerrors.New("core: caller does not own scope", goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(ServiceErrorPermissionDenied).
		WithMetadata(map[string]any{"scope_id": scopeID})
}

// NewDependencyError reports a handler or service that was built without a
// required collaborator.
func NewDependencyError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ServiceErrorInternal)
}

// NewFieldError is a single-field validation failure. prefix names the layer
// that rejected the input, e.g. "command" or "query".
func NewFieldError(prefix, field, message string) *goerrors.Error {
	return goerrors.NewValidation(prefix+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

func newValidationError(fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation("core: validation failed", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorScopeNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorPermissionDenied
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
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
