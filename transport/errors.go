package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

const timeoutMetadataKey = "timeout"

func internalError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}

func inputError(source error, message string) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryBadInput)
	}
	return err.WithCode(http.StatusBadRequest).WithTextCode(core.ServiceErrorBadInput)
}

func externalError(source error, message string, code int, metadata map[string]any) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	err = err.WithCode(code).WithTextCode(core.ServiceErrorExternalFailure)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// IsInputError reports whether err was caused by the request itself rather
// than the remote side; such failures are never worth retrying.
func IsInputError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == goerrors.CategoryBadInput || rich.Category == goerrors.CategoryValidation
}

// IsTimeout reports whether the exchange hit its deadline.
func IsTimeout(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == goerrors.CategoryExternal && rich.Code == http.StatusGatewayTimeout
}
