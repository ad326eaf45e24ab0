package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-leads/core"
)

var (
	_ gocmd.Querier[ResolveReferenceMessage, core.ReferenceDocument]     = (*ResolveReferenceQuery)(nil)
	_ gocmd.Querier[ResolveReferenceByIDMessage, core.ReferenceDocument] = (*ResolveReferenceByIDQuery)(nil)
	_ gocmd.Querier[GetSubmissionMessage, core.Submission]               = (*GetSubmissionQuery)(nil)
	_ gocmd.Querier[ListDeliveryAttemptsMessage, []core.DeliveryAttempt] = (*ListDeliveryAttemptsQuery)(nil)
)
