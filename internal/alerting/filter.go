package alerting

import "context"

// FilteredAlerter drops alerts whose event tag is not allowed. Alerts
// without an event tag always pass.
type FilteredAlerter struct {
	next  Alerter
	allow func(event string) bool
}

// NewFilteredAlerter wraps next.
func NewFilteredAlerter(next Alerter, allow func(event string) bool) *FilteredAlerter {
	return &FilteredAlerter{next: next, allow: allow}
}

// Name returns the wrapped alerter's name.
func (f *FilteredAlerter) Name() string {
	return f.next.Name()
}

// Alert forwards the alert unless its event is filtered out.
func (f *FilteredAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	if event, ok := eventTag(fields); ok && f.allow != nil && !f.allow(event) {
		return nil
	}
	return f.next.Alert(ctx, severity, message, fields...)
}

func eventTag(fields []any) (string, bool) {
	if len(fields) < 2 {
		return "", false
	}
	if key, ok := fields[0].(string); !ok || key != "event" {
		return "", false
	}
	event, ok := fields[1].(string)
	return event, ok
}
