// Package alerting provides notification capabilities for hypothesis runs.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventSuiteStarted is sent before the first hypothesis runs.
	EventSuiteStarted AlertEvent = "suite_started"
	// EventSuiteCompleted is sent after the last hypothesis runs.
	EventSuiteCompleted AlertEvent = "suite_completed"
	// EventHypothesisValidated is sent when a test meets all its criteria.
	EventHypothesisValidated AlertEvent = "hypothesis_validated"
	// EventHypothesisRejected is sent when a test misses a criterion.
	EventHypothesisRejected AlertEvent = "hypothesis_rejected"
	// EventHypothesisFailed is sent when a test cannot run to completion.
	EventHypothesisFailed AlertEvent = "hypothesis_failed"
	// EventOrderRejected is sent when the simulator rejects an order.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventResultStoreFailed is sent when a result cannot be persisted.
	EventResultStoreFailed AlertEvent = "result_store_failed"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventResultStoreFailed:
		// The suite stops and the result is lost.
		return SeverityCritical
	case EventHypothesisFailed:
		return SeverityHigh
	case EventHypothesisRejected, EventOrderRejected:
		return SeverityWarning
	case EventHypothesisValidated, EventSuiteStarted, EventSuiteCompleted:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// Notify sends event through a at the event's default severity, tagging
// the alert with the event name.
func Notify(ctx context.Context, a Alerter, event AlertEvent, message string, fields ...any) error {
	if a == nil {
		return nil
	}
	tagged := make([]any, 0, len(fields)+2)
	tagged = append(tagged, "event", string(event))
	tagged = append(tagged, fields...)
	return a.Alert(ctx, EventSeverity(event), message, tagged...)
}
