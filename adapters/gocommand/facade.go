package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	leads "github.com/goliatone/go-leads"
)

// Subscriptions groups dispatcher subscriptions so callers can release them
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterFacade registers every facade command and query with the registry
// and subscribes them on the global dispatcher. On failure nothing stays
// subscribed.
func RegisterFacade(registry *Registry, facade *leads.Facade, runnerOpts ...runner.Option) (Subscriptions, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()

	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(RegisterCommand(registry, commands.SubmitLead, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterCommand(registry, commands.DispatchTest, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterQuery(registry, queries.ResolveReference, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterQuery(registry, queries.ResolveReferenceByID, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterQuery(registry, queries.GetSubmission, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterQuery(registry, queries.ListDeliveryAttempts, runnerOpts...)); err != nil {
		return nil, err
	}
	return subs, nil
}
