package core

import (
	"context"
	"time"
)

func (s *Service) Resolve(ctx context.Context, rawURL string) (doc ReferenceDocument, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if err == nil {
			fields["canonical_id"] = doc.CanonicalID
			fields["provider"] = doc.Provider
		}
		s.observeOperation(ctx, startedAt, "resolve_reference", err, fields)
	}()
	if s == nil || s.referenceResolver == nil {
		return ReferenceDocument{}, serviceDependencyError("core: reference resolver is required")
	}
	doc, err = s.referenceResolver.Resolve(ctx, rawURL)
	if err != nil {
		return ReferenceDocument{}, s.mapError(err)
	}
	return doc, nil
}

func (s *Service) ResolveByID(ctx context.Context, canonicalID string) (doc ReferenceDocument, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"canonical_id": canonicalID}
	defer func() {
		if err == nil {
			fields["provider"] = doc.Provider
		}
		s.observeOperation(ctx, startedAt, "resolve_reference_by_id", err, fields)
	}()
	if s == nil || s.referenceResolver == nil {
		return ReferenceDocument{}, serviceDependencyError("core: reference resolver is required")
	}
	doc, err = s.referenceResolver.ResolveByID(ctx, canonicalID)
	if err != nil {
		return ReferenceDocument{}, s.mapError(err)
	}
	return doc, nil
}
