package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

const (
	deliveryDelivered = "delivered"
	deliveryFailed    = "failed"
)

// metricTagKeys are the only operation fields promoted to metric tags.
// Scope, submission and caller ids stay in logs only.
var metricTagKeys = []string{"target_kind", "outcome"}

// observeOperation emits one structured log line plus a counter and a
// duration histogram per Submit, Resolve, RunDispatch or DispatchTest call.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)
	status := "success"
	if err != nil {
		status = "failure"
	}

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		if raw, ok := fields[key]; ok {
			if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" {
				tags[key] = value
			}
		}
	}
	s.recordCounter(ctx, "leads."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "leads."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	entry := cloneFields(fields)
	entry["operation"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed.Milliseconds()
	if err == nil {
		s.logInfo(ctx, operation+" succeeded", entry)
		return
	}
	entry["error"] = err.Error()
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		entry["error_code"] = rich.TextCode
	}
	s.logError(ctx, operation+" failed", entry)
}

// observeDelivery accounts for one target of a production fan-out and
// returns the outcome label. Failed targets are logged with the destination
// reduced to scheme and host.
func (s *Service) observeDelivery(ctx context.Context, record Submission, scopeID string, outcome DeliveryOutcome) string {
	result := deliveryDelivered
	if !outcome.Success {
		result = deliveryFailed
	}
	tags := map[string]string{
		"target_kind": string(outcome.Target.Kind),
		"outcome":     result,
	}
	s.recordCounter(ctx, "leads.delivery.total", 1, tags)
	s.recordHistogram(ctx, "leads.delivery.attempts", float64(outcome.Attempts), tags)

	if !outcome.Success {
		s.logWarn(ctx, "delivery failed", map[string]any{
			"submission_id": record.ID,
			"scope_id":      scopeID,
			"target_kind":   string(outcome.Target.Kind),
			"destination":   RedactDestination(outcome.Target.Destination),
			"status_code":   outcome.StatusCode,
			"attempts":      outcome.Attempts,
			"message":       outcome.Message,
		})
	}
	return result
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "warn", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
