package alerting

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// WriterAlerter writes human-readable alerts to an io.Writer, usually
// stderr or a log file.
type WriterAlerter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriterAlerter creates a new writer alerter.
func NewWriterAlerter(w io.Writer) *WriterAlerter {
	return &WriterAlerter{w: w, now: time.Now}
}

// Name returns the name of the alerter.
func (a *WriterAlerter) Name() string {
	return "writer"
}

// Alert writes the formatted alert.
func (a *WriterAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := a.formatMessage(severity, message, fields...)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, text+"\n"); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

// SendSuiteSummary writes a formatted suite summary.
func (a *WriterAlerter) SendSuiteSummary(ctx context.Context, summary SuiteSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, formatSuiteSummary(summary)+"\n"); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (a *WriterAlerter) formatMessage(severity Severity, message string, fields ...any) string {
	text := fmt.Sprintf("%s [%s] %s", severity.Emoji(), severity.String(), message)

	if fieldsStr := FormatFields(fields...); fieldsStr != "" {
		text += "\n" + fieldsStr
	}

	text += fmt.Sprintf("\n(%s)", a.now().Format("2006-01-02 15:04:05 MST"))
	return text
}

func formatSuiteSummary(s SuiteSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hypothesis Suite Summary\n")
	fmt.Fprintf(&b, "Started: %s (%s)\n\n", s.StartedAt.Format("2006-01-02 15:04:05"), s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Results: %d/%d hypotheses validated (%s%%)\n", s.Validated, s.Total, s.ValidatedPct.StringFixed(1))
	fmt.Fprintf(&b, "Trades:  %d (win rate %s%%)\n", s.TotalTrades, s.MeanWinRate.StringFixed(1))

	for _, o := range s.Outcomes {
		fmt.Fprintf(&b, "• %s [%s]: %d trades, %s%% win rate, %s%% avg return, %s\n",
			o.Name,
			o.Strategy,
			o.Trades,
			o.WinRate.Mul(hundred).StringFixed(1),
			o.AvgReturn.Mul(hundred).StringFixed(2),
			outcomeStatus(o.Successful),
		)
	}

	return strings.TrimRight(b.String(), "\n")
}

func outcomeStatus(ok bool) string {
	if ok {
		return "VALIDATED"
	}
	return "REJECTED"
}
