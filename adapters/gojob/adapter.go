package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-leads/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDLeadDispatch = "leads.dispatch"

	paramSubmissionID = "submission_id"
	paramScopeID      = "scope_id"

	dedupPolicyDrop = "drop"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
// Anything that is not an explicit dead letter becomes a retry until the
// attempt budget runs out.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition != queue.NackDispositionDeadLetter {
		out.Disposition = queue.NackDispositionRetry
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts && p.DeadLetterOnMax {
		out.Disposition = queue.NackDispositionDeadLetter
	}
	if out.Disposition == queue.NackDispositionDeadLetter {
		out.Delay = 0
	}
	return out
}

// ToExecutionMessage maps a dispatch job to a go-job message. Only ids travel
// through the queue; the worker reloads the record from storage.
func ToExecutionMessage(dispatch core.DispatchJob) *job.ExecutionMessage {
	submissionID := strings.TrimSpace(dispatch.SubmissionID)
	scopeID := strings.TrimSpace(dispatch.ScopeID)
	if dispatch.Submission != nil {
		if submissionID == "" {
			submissionID = dispatch.Submission.ID
		}
		if scopeID == "" {
			scopeID = dispatch.Submission.ScopeID
		}
	}
	return &job.ExecutionMessage{
		JobID:      JobIDLeadDispatch,
		ScriptPath: JobIDLeadDispatch,
		Parameters: map[string]any{
			paramSubmissionID: submissionID,
			paramScopeID:      scopeID,
		},
		IdempotencyKey: JobIDLeadDispatch + ":" + submissionID,
		DedupPolicy:    job.DeduplicationPolicy(dedupPolicyDrop),
	}
}

// FromExecutionMessage maps a go-job message back to a dispatch job.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.DispatchJob, error) {
	if msg == nil {
		return core.DispatchJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDLeadDispatch {
		return core.DispatchJob{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	submissionID := stringParam(msg.Parameters, paramSubmissionID)
	if submissionID == "" {
		return core.DispatchJob{}, fmt.Errorf("gojob: %s parameter is required", paramSubmissionID)
	}
	return core.DispatchJob{
		SubmissionID: submissionID,
		ScopeID:      stringParam(msg.Parameters, paramScopeID),
	}, nil
}

// QueueDispatchScheduler hands dispatch jobs to a go-job queue instead of
// running them in-process.
type QueueDispatchScheduler struct {
	enqueuer queue.Enqueuer
}

func NewQueueDispatchScheduler(enqueuer queue.Enqueuer) *QueueDispatchScheduler {
	return &QueueDispatchScheduler{enqueuer: enqueuer}
}

func (s *QueueDispatchScheduler) Schedule(ctx context.Context, dispatch core.DispatchJob) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg := ToExecutionMessage(dispatch)
	if stringParam(msg.Parameters, paramSubmissionID) == "" {
		return fmt.Errorf("gojob: submission id is required")
	}
	if _, err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return err
	}
	return nil
}

// DispatchWorker drains queued dispatch jobs into a runner. Deliveries that
// fail to run are nacked under the retry policy.
type DispatchWorker struct {
	dequeuer queue.Dequeuer
	runner   core.DispatchRunner
	policy   RetryPolicy
	hook     worker.Hook

	mu       sync.Mutex
	attempts map[string]int
}

func NewDispatchWorker(dequeuer queue.Dequeuer, runner core.DispatchRunner, policy RetryPolicy, hook worker.Hook) *DispatchWorker {
	return &DispatchWorker{
		dequeuer: dequeuer,
		runner:   runner,
		policy:   policy,
		hook:     hook,
		attempts: map[string]int{},
	}
}

// ProcessNext dequeues and handles a single delivery.
func (w *DispatchWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.runner == nil {
		return fmt.Errorf("gojob: dispatch worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	startedAt := time.Now().UTC()
	w.emit(ctx, hookStart, worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt})

	dispatch, err := FromExecutionMessage(msg)
	if err != nil {
		// Malformed messages never succeed; dead-letter them right away.
		w.forget(key)
		w.emit(ctx, hookFailure, worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, Err: err, StartedAt: startedAt, Duration: time.Since(startedAt)})
		return delivery.Nack(ctx, queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: err.Error()})
	}

	runErr := w.runner.RunDispatch(ctx, dispatch)
	duration := time.Since(startedAt)
	if runErr == nil {
		w.forget(key)
		w.emit(ctx, hookSuccess, worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt, Duration: duration})
		return delivery.Ack(ctx)
	}

	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       retryDelay(attempt),
		Reason:      runErr.Error(),
	}, attempt)
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, Delay: opts.Delay, Err: runErr, StartedAt: startedAt, Duration: duration}
	if opts.Disposition == queue.NackDispositionRetry {
		w.emit(ctx, hookRetry, event)
	} else {
		w.forget(key)
		w.emit(ctx, hookFailure, event)
	}
	return delivery.Nack(ctx, opts)
}

// Run processes deliveries until ctx is done or the dequeuer fails.
func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (w *DispatchWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *DispatchWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

type hookPhase int

const (
	hookStart hookPhase = iota
	hookSuccess
	hookFailure
	hookRetry
)

func (w *DispatchWorker) emit(ctx context.Context, phase hookPhase, event worker.Event) {
	if w.hook == nil {
		return
	}
	switch phase {
	case hookStart:
		w.hook.OnStart(ctx, event)
	case hookSuccess:
		w.hook.OnSuccess(ctx, event)
	case hookFailure:
		w.hook.OnFailure(ctx, event)
	case hookRetry:
		w.hook.OnRetry(ctx, event)
	}
}

// MetricsHook reports worker lifecycle events through a MetricsRecorder.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.count(ctx, "started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.count(ctx, "succeeded", event)
	h.recorder.ObserveHistogram(ctx, "leads.dispatch_worker.duration_ms", float64(event.Duration.Milliseconds()), map[string]string{
		"job_id": jobID(event),
	})
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.count(ctx, "failed", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.count(ctx, "retried", event)
}

func (h *MetricsHook) count(ctx context.Context, phase string, event worker.Event) {
	if h == nil || h.recorder == nil {
		return
	}
	h.recorder.IncCounter(ctx, "leads.dispatch_worker.events", 1, map[string]string{
		"job_id": jobID(event),
		"phase":  phase,
	})
}

func jobID(event worker.Event) string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message == nil {
		return ""
	}
	return strings.TrimSpace(message.JobID)
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID) + ":" + stringParam(msg.Parameters, paramSubmissionID)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	switch value := params[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	default:
		return ""
	}
}

var (
	_ core.DispatchScheduler = (*QueueDispatchScheduler)(nil)
	_ worker.Hook            = (*MetricsHook)(nil)
)
