package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-leads/core"
)

type MutatingService interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
	DispatchTest(ctx context.Context, req core.DispatchTestRequest) (core.DeliveryOutcome, error)
}

type SubmitLeadCommand struct {
	service MutatingService
}

func NewSubmitLeadCommand(service MutatingService) *SubmitLeadCommand {
	return &SubmitLeadCommand{service: service}
}

func (c *SubmitLeadCommand) Execute(ctx context.Context, msg SubmitLeadMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: submit service is required")
	}
	out, err := c.service.Submit(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchTestCommand struct {
	service MutatingService
}

func NewDispatchTestCommand(service MutatingService) *DispatchTestCommand {
	return &DispatchTestCommand{service: service}
}

// Execute stores the delivery outcome even when delivery failed; only
// validation, ownership and dependency problems are returned as errors.
func (c *DispatchTestCommand) Execute(ctx context.Context, msg DispatchTestMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: dispatch test service is required")
	}
	out, err := c.service.DispatchTest(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
