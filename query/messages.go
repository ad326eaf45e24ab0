package query

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-leads/core"
)

const (
	TypeResolveReference     = "leads.query.reference.resolve"
	TypeResolveReferenceByID = "leads.query.reference.resolve_by_id"
	TypeGetSubmission        = "leads.query.submission.get"
	TypeListDeliveryAttempts = "leads.query.delivery_attempts.list"
)

type ResolveReferenceMessage struct {
	URL string
}

func (ResolveReferenceMessage) Type() string { return TypeResolveReference }

func (m ResolveReferenceMessage) Validate() error {
	raw := strings.TrimSpace(m.URL)
	if raw == "" {
		return core.NewFieldError("query", "url", "url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return core.NewBadInputError("query: url must be an absolute http(s) url")
	}
	return nil
}

type ResolveReferenceByIDMessage struct {
	ID string
}

func (ResolveReferenceByIDMessage) Type() string { return TypeResolveReferenceByID }

func (m ResolveReferenceByIDMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.NewFieldError("query", "page_id", "page id is required")
	}
	return nil
}

type GetSubmissionMessage struct {
	ID string
}

func (GetSubmissionMessage) Type() string { return TypeGetSubmission }

func (m GetSubmissionMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.NewFieldError("query", "lead_id", "lead id is required")
	}
	return nil
}

type ListDeliveryAttemptsMessage struct {
	SubmissionID string
}

func (ListDeliveryAttemptsMessage) Type() string { return TypeListDeliveryAttempts }

func (m ListDeliveryAttemptsMessage) Validate() error {
	if strings.TrimSpace(m.SubmissionID) == "" {
		return core.NewFieldError("query", "lead_id", "lead id is required")
	}
	return nil
}
