package core

import (
	"encoding/json"
	"strings"
	"time"
)

// FingerprintSeparator joins the normalized contact and the scope id.
const FingerprintSeparator = "_"

type TargetKind string

const (
	TargetKindGeneric      TargetKind = "generic"
	TargetKindChatVariantA TargetKind = "chat_variant_a"
	TargetKindChatVariantB TargetKind = "chat_variant_b"
)

func (k TargetKind) Valid() bool {
	switch k {
	case TargetKindGeneric, TargetKindChatVariantA, TargetKindChatVariantB:
		return true
	default:
		return false
	}
}

// ParseTargetKind accepts canonical kinds plus the legacy names used by
// project configuration (general, slack, discord).
func ParseTargetKind(raw string) (TargetKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TargetKindGeneric), "general", "webhook":
		return TargetKindGeneric, true
	case string(TargetKindChatVariantA), "slack":
		return TargetKindChatVariantA, true
	case string(TargetKindChatVariantB), "discord":
		return TargetKindChatVariantB, true
	default:
		return "", false
	}
}

type Surface string

const (
	SurfaceTop    Surface = "top"
	SurfaceBottom Surface = "bottom"
	SurfaceModal  Surface = "modal"
	SurfaceCTA    Surface = "cta"
	SurfaceInline Surface = "inline"
)

const (
	AttributionSource   = "utm_source"
	AttributionMedium   = "utm_medium"
	AttributionCampaign = "utm_campaign"
	AttributionTerm     = "utm_term"
	AttributionContent  = "utm_content"
)

type Attributes struct {
	Name     *string `json:"name,omitempty"`
	Company  *string `json:"company,omitempty"`
	Role     *string `json:"role,omitempty"`
	FreeText *string `json:"free_text,omitempty"`
}

type Consents struct {
	Privacy   bool `json:"privacy"`
	Marketing bool `json:"marketing"`
}

type OriginMetadata struct {
	UserAgent string  `json:"user_agent,omitempty"`
	ClientIP  string  `json:"client_ip,omitempty"`
	Surface   Surface `json:"surface,omitempty"`
}

// Submission is a stored lead. It is created once per fingerprint and never
// updated afterwards.
type Submission struct {
	ID             string
	ScopeID        string
	PrimaryContact string
	Attributes     Attributes
	Consents       Consents
	Attribution    map[string]string
	Origin         OriginMetadata
	Fingerprint    string
	CreatedAt      time.Time
}

// Candidate is an inbound submission before it is stored.
type Candidate struct {
	ScopeID        string            `json:"scope_id"`
	PrimaryContact string            `json:"email"`
	Attributes     Attributes        `json:"attributes"`
	Consents       Consents          `json:"consents"`
	Attribution    map[string]string `json:"attribution,omitempty"`
	Origin         OriginMetadata    `json:"origin"`
}

type DeliveryTarget struct {
	Kind        TargetKind
	Destination string
	// Secret, when set, signs generic payloads with HMAC-SHA256.
	Secret string
}

// Scope is the collaborator-owned project view consumed before accepting
// submissions and before dispatching them.
type Scope struct {
	ID      string
	Name    string
	OwnerID string
	Deleted bool
	Targets []DeliveryTarget
}

type DeliveryOutcome struct {
	Target     DeliveryTarget
	Success    bool
	StatusCode int
	Message    string
	Attempts   int
}

// DeliveryEvent is what formatters render: an event name, the record, and the
// display name of its scope.
type DeliveryEvent struct {
	Name       string
	Submission Submission
	ScopeName  string
}

const (
	EventLeadCreated = "lead_created"
	EventTest        = "test"
)

type ReferenceDocument struct {
	CanonicalID string
	Content     json.RawMessage
	Provider    string
}

type SubmitRequest struct {
	Candidate Candidate
}

type SubmitResult struct {
	Record Submission
	IsNew  bool
}

type DispatchTestRequest struct {
	ScopeID  string
	CallerID string
	Target   DeliveryTarget
}

// DispatchJob is the hand-off unit between Submit and the fan-out. Submission
// is optional; when absent the runner loads it by SubmissionID.
type DispatchJob struct {
	SubmissionID string
	ScopeID      string
	Submission   *Submission
}

type DeliveryAttempt struct {
	ID           string
	SubmissionID string
	ScopeID      string
	Outcome      DeliveryOutcome
	CreatedAt    time.Time
}

// StringPtr returns nil for blank input.
func StringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func StringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneAttribution(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
