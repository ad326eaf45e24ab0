// Package delivery renders lead events into per-channel payloads and fans
// them out to configured targets.
//
// Each outbound call is a small state machine:
// pending -> succeeded | retry | failed, where retry is bounded by the
// configured retry count and only taken for transient failures (timeouts,
// connection errors, 5xx, 408, 425, 429).
package delivery
