package leads

import (
	"fmt"

	leadscommand "github.com/goliatone/go-leads/command"
	leadsquery "github.com/goliatone/go-leads/query"
)

type CommandQueryService interface {
	leadscommand.MutatingService
	leadsquery.ReferenceReader
	leadsquery.SubmissionReader
	leadsquery.DeliveryAttemptReader
}

type Commands struct {
	SubmitLead   *leadscommand.SubmitLeadCommand
	DispatchTest *leadscommand.DispatchTestCommand
}

type Queries struct {
	ResolveReference     *leadsquery.ResolveReferenceQuery
	ResolveReferenceByID *leadsquery.ResolveReferenceByIDQuery
	GetSubmission        *leadsquery.GetSubmissionQuery
	ListDeliveryAttempts *leadsquery.ListDeliveryAttemptsQuery
}

// Facade exposes the service as go-command commands and queries.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("leads: command/query service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitLead:   leadscommand.NewSubmitLeadCommand(service),
		DispatchTest: leadscommand.NewDispatchTestCommand(service),
	}
	facade.queries = Queries{
		ResolveReference:     leadsquery.NewResolveReferenceQuery(service),
		ResolveReferenceByID: leadsquery.NewResolveReferenceByIDQuery(service),
		GetSubmission:        leadsquery.NewGetSubmissionQuery(service),
		ListDeliveryAttempts: leadsquery.NewListDeliveryAttemptsQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
