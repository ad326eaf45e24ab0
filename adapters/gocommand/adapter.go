package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract checks that msg names its type and passes its own
// Validate method when it has one.
func ValidateMessageContract(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T must implement Type() string", msg)
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: %T has an empty message type", msg)
	}
	return command.ValidateMessage(msg)
}

// Registry mirrors lead handlers into a go-command registry so resolvers
// (queue, cron, CLI) can discover them after Initialize.
type Registry struct {
	registry *command.Registry
}

func NewRegistry(registry *command.Registry) *Registry {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Registry{registry: registry}
}

func (r *Registry) Unwrap() *command.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Register adds a command or query handler to the registry without
// subscribing it.
func (r *Registry) Register(handler any) error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if handler == nil {
		return fmt.Errorf("gocommand: handler is required")
	}
	return r.registry.RegisterCommand(handler)
}

func (r *Registry) AddResolver(key string, resolver command.Resolver) error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return r.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered handlers into a go-job queue registry.
func (r *Registry) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return r.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (r *Registry) HasResolver(key string) bool {
	if r == nil || r.registry == nil {
		return false
	}
	return r.registry.HasResolver(strings.TrimSpace(key))
}

func (r *Registry) Initialize() error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return r.registry.Initialize()
}

// RegisterCommand subscribes cmd on the global dispatcher and registers it.
// A failed registration leaves nothing subscribed.
func RegisterCommand[T any](r *Registry, cmd command.Commander[T], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	if r == nil || r.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := r.Register(cmd); err != nil {
		subscription.Unsubscribe()
		return nil, err
	}
	return subscription, nil
}

// RegisterQuery is RegisterCommand for queries.
func RegisterQuery[T any, R any](r *Registry, qry command.Querier[T, R], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	if r == nil || r.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := r.Register(qry); err != nil {
		subscription.Unsubscribe()
		return nil, err
	}
	return subscription, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}
