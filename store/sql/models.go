package sqlstore

import (
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/uptrace/bun"
)

type submissionRecord struct {
	bun.BaseModel `bun:"table:lead_submissions,alias:ls"`

	ID               string            `bun:"id,pk"`
	ScopeID          string            `bun:"scope_id,notnull"`
	PrimaryContact   string            `bun:"primary_contact,notnull"`
	Name             *string           `bun:"name"`
	Company          *string           `bun:"company"`
	Role             *string           `bun:"role"`
	FreeText         *string           `bun:"free_text"`
	ConsentPrivacy   bool              `bun:"consent_privacy,notnull"`
	ConsentMarketing bool              `bun:"consent_marketing,notnull"`
	Attribution      map[string]string `bun:"attribution,type:jsonb,notnull"`
	UserAgent        string            `bun:"user_agent,notnull"`
	ClientIP         string            `bun:"client_ip,notnull"`
	Surface          string            `bun:"surface,notnull"`
	Fingerprint      string            `bun:"fingerprint,notnull,unique"`
	CreatedAt        time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newSubmissionRecord(record core.Submission) *submissionRecord {
	attribution := map[string]string{}
	for key, value := range record.Attribution {
		attribution[key] = value
	}
	return &submissionRecord{
		ID:               record.ID,
		ScopeID:          record.ScopeID,
		PrimaryContact:   record.PrimaryContact,
		Name:             record.Attributes.Name,
		Company:          record.Attributes.Company,
		Role:             record.Attributes.Role,
		FreeText:         record.Attributes.FreeText,
		ConsentPrivacy:   record.Consents.Privacy,
		ConsentMarketing: record.Consents.Marketing,
		Attribution:      attribution,
		UserAgent:        record.Origin.UserAgent,
		ClientIP:         record.Origin.ClientIP,
		Surface:          string(record.Origin.Surface),
		Fingerprint:      record.Fingerprint,
		CreatedAt:        record.CreatedAt.UTC(),
	}
}

func (r *submissionRecord) toDomain() core.Submission {
	if r == nil {
		return core.Submission{}
	}
	var attribution map[string]string
	if len(r.Attribution) > 0 {
		attribution = make(map[string]string, len(r.Attribution))
		for key, value := range r.Attribution {
			attribution[key] = value
		}
	}
	return core.Submission{
		ID:             r.ID,
		ScopeID:        r.ScopeID,
		PrimaryContact: r.PrimaryContact,
		Attributes: core.Attributes{
			Name:     r.Name,
			Company:  r.Company,
			Role:     r.Role,
			FreeText: r.FreeText,
		},
		Consents: core.Consents{
			Privacy:   r.ConsentPrivacy,
			Marketing: r.ConsentMarketing,
		},
		Attribution: attribution,
		Origin: core.OriginMetadata{
			UserAgent: r.UserAgent,
			ClientIP:  r.ClientIP,
			Surface:   core.Surface(r.Surface),
		},
		Fingerprint: r.Fingerprint,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type scopeRecord struct {
	bun.BaseModel `bun:"table:lead_scopes,alias:lsc"`

	ID        string     `bun:"id,pk"`
	Name      string     `bun:"name,notnull"`
	OwnerID   string     `bun:"owner_id,notnull"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type deliveryTargetRecord struct {
	bun.BaseModel `bun:"table:lead_delivery_targets,alias:ldt"`

	ID          string    `bun:"id,pk"`
	ScopeID     string    `bun:"scope_id,notnull"`
	Kind        string    `bun:"kind,notnull"`
	Destination string    `bun:"destination,notnull"`
	Secret      string    `bun:"secret,notnull"`
	Position    int       `bun:"position,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *deliveryTargetRecord) toDomain() core.DeliveryTarget {
	return core.DeliveryTarget{
		Kind:        core.TargetKind(r.Kind),
		Destination: r.Destination,
		Secret:      r.Secret,
	}
}

// deliveryAttemptRecord stores the redacted destination only; chat webhook
// URLs embed credentials.
type deliveryAttemptRecord struct {
	bun.BaseModel `bun:"table:lead_delivery_attempts,alias:lda"`

	ID           string    `bun:"id,pk"`
	SubmissionID string    `bun:"submission_id,notnull"`
	ScopeID      string    `bun:"scope_id,notnull"`
	TargetKind   string    `bun:"target_kind,notnull"`
	Destination  string    `bun:"destination,notnull"`
	Success      bool      `bun:"success,notnull"`
	StatusCode   int       `bun:"status_code,notnull"`
	Message      string    `bun:"message,notnull"`
	Attempts     int       `bun:"attempts,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *deliveryAttemptRecord) toDomain() core.DeliveryAttempt {
	return core.DeliveryAttempt{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		ScopeID:      r.ScopeID,
		Outcome: core.DeliveryOutcome{
			Target: core.DeliveryTarget{
				Kind:        core.TargetKind(r.TargetKind),
				Destination: r.Destination,
			},
			Success:    r.Success,
			StatusCode: r.StatusCode,
			Message:    r.Message,
			Attempts:   r.Attempts,
		},
		CreatedAt: r.CreatedAt.UTC(),
	}
}
