package reference

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

func newNotResolvableError(rawURL string) *goerrors.Error {
	return goerrors.New("reference: url does not carry a document identifier", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorReferenceNotResolvable).
		WithMetadata(map[string]any{"url": rawURL})
}

func newNotFoundError(canonicalID string, provider string) *goerrors.Error {
	return goerrors.New("reference: document not found; check that the page is published to the web", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.ServiceErrorReferenceNotFound).
		WithMetadata(map[string]any{
			"page_id":  canonicalID,
			"provider": provider,
		})
}

func newUpstreamUnavailableError(canonicalID string, attempted int, lastErr error) *goerrors.Error {
	metadata := map[string]any{
		"page_id":             canonicalID,
		"providers_attempted": attempted,
	}
	var err *goerrors.Error
	if lastErr != nil {
		metadata["last_error"] = lastErr.Error()
		err = goerrors.Wrap(lastErr, goerrors.CategoryExternal, "reference: all document providers failed")
	} else {
		err = goerrors.New("reference: all document providers failed", goerrors.CategoryExternal)
	}
	return err.
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ServiceErrorReferenceUpstreamUnavailable).
		WithMetadata(metadata)
}
