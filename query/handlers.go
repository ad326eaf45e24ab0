package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-leads/core"
)

type ReferenceReader interface {
	Resolve(ctx context.Context, rawURL string) (core.ReferenceDocument, error)
	ResolveByID(ctx context.Context, canonicalID string) (core.ReferenceDocument, error)
}

type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (core.Submission, error)
}

type DeliveryAttemptReader interface {
	ListDeliveryAttempts(ctx context.Context, submissionID string) ([]core.DeliveryAttempt, error)
}

type ResolveReferenceQuery struct {
	reader ReferenceReader
}

func NewResolveReferenceQuery(reader ReferenceReader) *ResolveReferenceQuery {
	return &ResolveReferenceQuery{reader: reader}
}

func (q *ResolveReferenceQuery) Query(ctx context.Context, msg ResolveReferenceMessage) (core.ReferenceDocument, error) {
	if q == nil || q.reader == nil {
		return core.ReferenceDocument{}, core.NewDependencyError("query: reference reader is required")
	}
	return q.reader.Resolve(ctx, strings.TrimSpace(msg.URL))
}

type ResolveReferenceByIDQuery struct {
	reader ReferenceReader
}

func NewResolveReferenceByIDQuery(reader ReferenceReader) *ResolveReferenceByIDQuery {
	return &ResolveReferenceByIDQuery{reader: reader}
}

func (q *ResolveReferenceByIDQuery) Query(ctx context.Context, msg ResolveReferenceByIDMessage) (core.ReferenceDocument, error) {
	if q == nil || q.reader == nil {
		return core.ReferenceDocument{}, core.NewDependencyError("query: reference reader is required")
	}
	return q.reader.ResolveByID(ctx, strings.TrimSpace(msg.ID))
}

type GetSubmissionQuery struct {
	reader SubmissionReader
}

func NewGetSubmissionQuery(reader SubmissionReader) *GetSubmissionQuery {
	return &GetSubmissionQuery{reader: reader}
}

func (q *GetSubmissionQuery) Query(ctx context.Context, msg GetSubmissionMessage) (core.Submission, error) {
	if q == nil || q.reader == nil {
		return core.Submission{}, core.NewDependencyError("query: submission reader is required")
	}
	return q.reader.GetSubmission(ctx, strings.TrimSpace(msg.ID))
}

type ListDeliveryAttemptsQuery struct {
	reader DeliveryAttemptReader
}

func NewListDeliveryAttemptsQuery(reader DeliveryAttemptReader) *ListDeliveryAttemptsQuery {
	return &ListDeliveryAttemptsQuery{reader: reader}
}

func (q *ListDeliveryAttemptsQuery) Query(ctx context.Context, msg ListDeliveryAttemptsMessage) ([]core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: delivery attempt reader is required")
	}
	return q.reader.ListDeliveryAttempts(ctx, strings.TrimSpace(msg.SubmissionID))
}
