package command

import (
	"strings"

	"github.com/goliatone/go-leads/core"
)

const (
	TypeSubmitLead   = "leads.command.submission.submit"
	TypeDispatchTest = "leads.command.delivery.test"
)

type SubmitLeadMessage struct {
	Request core.SubmitRequest
}

func (SubmitLeadMessage) Type() string { return TypeSubmitLead }

// Validate only checks what routing needs; field rules live in the service.
func (m SubmitLeadMessage) Validate() error {
	if strings.TrimSpace(m.Request.Candidate.ScopeID) == "" {
		return core.NewFieldError("command", "scope_id", "scope id is required")
	}
	if strings.TrimSpace(m.Request.Candidate.PrimaryContact) == "" {
		return core.NewFieldError("command", "email", "email is required")
	}
	return nil
}

type DispatchTestMessage struct {
	Request core.DispatchTestRequest
}

func (DispatchTestMessage) Type() string { return TypeDispatchTest }

func (m DispatchTestMessage) Validate() error {
	if strings.TrimSpace(m.Request.ScopeID) == "" {
		return core.NewFieldError("command", "scope_id", "scope id is required")
	}
	if strings.TrimSpace(m.Request.CallerID) == "" {
		return core.NewFieldError("command", "caller_id", "caller id is required")
	}
	if strings.TrimSpace(m.Request.Target.Destination) == "" {
		return core.NewFieldError("command", "webhook_url", "webhook url is required")
	}
	if _, ok := core.ParseTargetKind(string(m.Request.Target.Kind)); !ok {
		return core.NewBadInputError("command: unsupported webhook type")
	}
	return nil
}
