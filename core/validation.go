package core

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	maxContactLength   = 255
	maxNameLength      = 100
	maxCompanyLength   = 100
	maxRoleLength      = 50
	maxFreeTextLength  = 500
	maxUserAgentLength = 500
	maxClientIPLength  = 45
	maxScopeIDLength   = 64
)

func (a Attributes) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Length(0, maxNameLength)),
		validation.Field(&a.Company, validation.Length(0, maxCompanyLength)),
		validation.Field(&a.Role, validation.Length(0, maxRoleLength)),
		validation.Field(&a.FreeText, validation.Length(0, maxFreeTextLength)),
	)
}

func (o OriginMetadata) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.UserAgent, validation.Length(0, maxUserAgentLength)),
		validation.Field(&o.ClientIP, validation.Length(0, maxClientIPLength)),
		validation.Field(&o.Surface, validation.In(
			SurfaceTop, SurfaceBottom, SurfaceModal, SurfaceCTA, SurfaceInline,
		)),
	)
}

func (c Candidate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ScopeID, validation.Required, validation.Length(1, maxScopeIDLength)),
		validation.Field(&c.PrimaryContact, validation.Required, validation.Length(3, maxContactLength), is.EmailFormat),
		validation.Field(&c.Attributes),
		validation.Field(&c.Origin),
	)
}

// validateCandidate converts ozzo validation failures into the go-errors
// validation envelope. Internal rule errors are returned unchanged.
func validateCandidate(candidate Candidate) error {
	err := candidate.Validate()
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return newValidationError(goerrors.FieldError{Field: "candidate", Message: err.Error()})
	}
	return newValidationError(flattenValidationErrors("", fieldErrs)...)
}

func flattenValidationErrors(prefix string, errs validation.Errors) []goerrors.FieldError {
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]goerrors.FieldError, 0, len(errs))
	for _, key := range keys {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}
		var nested validation.Errors
		if errors.As(errs[key], &nested) {
			out = append(out, flattenValidationErrors(field, nested)...)
			continue
		}
		out = append(out, goerrors.FieldError{Field: field, Message: errs[key].Error()})
	}
	return out
}
