package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/tathienbao/options-lab/internal/alerting"
	"github.com/tathienbao/options-lab/internal/hypothesis"
)

// ANSI escape codes
const (
	ClearLine   = "\033[2K"
	MoveToStart = "\r"
	HideCursor  = "\033[?25l"
	ShowCursor  = "\033[?25h"
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

const (
	defaultWidth = 80
	chartHeight  = 8
)

// Terminal renders run progress and results. Colors and cursor control
// are only emitted when the output is a terminal.
type Terminal struct {
	out   io.Writer
	width int
	color bool

	// progress line currently on screen
	active bool
}

// NewTerminal creates a terminal renderer for out.
func NewTerminal(out io.Writer) *Terminal {
	width, isTTY := getTerminalSize(out)
	return &Terminal{
		out:   out,
		width: width,
		color: isTTY,
	}
}

// Start hides the cursor.
func (ui *Terminal) Start() {
	if ui.color {
		fmt.Fprint(ui.out, HideCursor)
	}
}

// Stop ends any progress line and restores the cursor.
func (ui *Terminal) Stop() {
	ui.endProgress()
	if ui.color {
		fmt.Fprint(ui.out, ShowCursor)
	}
}

// Progress redraws the progress line for a running test. It can be used
// directly as a hypothesis.ProgressCallback.
func (ui *Terminal) Progress(u hypothesis.ProgressUpdate) {
	done := 0.0
	if u.Total > 0 {
		done = float64(u.Iteration) / float64(u.Total)
	}

	barWidth := ui.width - 40 - len(u.Test)
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(done * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	if ui.color {
		fmt.Fprintf(ui.out, "%s%s%s %s%s%s %5.1f%% [%d/%d] trades: %d",
			ClearLine, MoveToStart, u.Test, ColorCyan, bar, ColorReset,
			done*100, u.Iteration, u.Total, u.Trades)
		ui.active = true
		return
	}
	// Without a terminal every update is its own line.
	fmt.Fprintf(ui.out, "%s %s %5.1f%% [%d/%d] trades: %d\n",
		u.Test, bar, done*100, u.Iteration, u.Total, u.Trades)
}

func (ui *Terminal) endProgress() {
	if ui.active {
		fmt.Fprintln(ui.out)
		ui.active = false
	}
}

// PrintTest prints a finished test: metrics, criteria and P&L curve.
func (ui *Terminal) PrintTest(t *hypothesis.Test) {
	ui.endProgress()

	status := ui.paint(ColorRed, "NOT VALIDATED")
	if t.IsSuccessful() {
		status = ui.paint(ColorGreen, "VALIDATED")
	}

	m := t.Metrics
	rule := strings.Repeat("─", min(ui.width, 60))
	fmt.Fprintln(ui.out, rule)
	fmt.Fprintf(ui.out, "%s  %s\n", ui.paint(ColorBold, t.Name), status)
	if t.Description != "" {
		fmt.Fprintf(ui.out, "%s\n", ui.paint(ColorDim, t.Description))
	}
	fmt.Fprintln(ui.out, rule)

	fmt.Fprintf(ui.out, "Trades:        %d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(ui.out, "Win rate:      %s%%\n", pct(m.WinRate))
	fmt.Fprintf(ui.out, "Avg return:    %s%%\n", pct(m.AvgReturn))
	fmt.Fprintf(ui.out, "Total return:  %s%%\n", pct(m.TotalReturn))
	fmt.Fprintf(ui.out, "Profit factor: %s\n", m.ProfitFactor.StringFixed(2))
	fmt.Fprintf(ui.out, "Max drawdown:  %s\n", m.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(ui.out, "Sharpe:        %s\n", m.SharpeRatio.StringFixed(2))
	fmt.Fprintf(ui.out, "Sortino:       %s\n", m.SortinoRatio.StringFixed(2))
	fmt.Fprintf(ui.out, "Avg win/loss:  $%s / $%s\n", m.AverageWin.StringFixed(2), m.AverageLoss.StringFixed(2))
	fmt.Fprintf(ui.out, "Expectancy:    $%s\n", m.Expectancy.StringFixed(2))

	if criteria := t.Criteria(); len(criteria) > 0 {
		fmt.Fprintln(ui.out)
		fmt.Fprintf(ui.out, "%-16s %12s %12s  %s\n", "criterion", "actual", "target", "result")
		for _, c := range criteria {
			actual := c.Actual.StringFixed(4)
			if !c.Known {
				actual = "unknown"
			}
			result := ui.paint(ColorRed, "FAIL")
			if c.Passed {
				result = ui.paint(ColorGreen, "PASS")
			}
			fmt.Fprintf(ui.out, "%-16s %12s %12s  %s\n", c.Metric, actual, c.Target.StringFixed(4), result)
		}
	}

	if len(t.Trades) >= 2 {
		fmt.Fprintln(ui.out)
		for _, line := range ui.renderCurve(cumulativePnL(t.Trades)) {
			fmt.Fprintln(ui.out, line)
		}
	}
	fmt.Fprintln(ui.out)
}

// PrintSummary prints the suite summary table.
func (ui *Terminal) PrintSummary(s alerting.SuiteSummary) {
	ui.endProgress()

	rule := strings.Repeat("═", min(ui.width, 72))
	fmt.Fprintln(ui.out, rule)
	fmt.Fprintln(ui.out, ui.paint(ColorBold, "HYPOTHESIS TEST SUMMARY"))
	fmt.Fprintln(ui.out, rule)
	fmt.Fprintf(ui.out, "%-32s %-16s %7s %8s %10s  %s\n", "hypothesis", "strategy", "trades", "win %", "avg ret %", "result")
	for _, o := range s.Outcomes {
		result := ui.paint(ColorRed, "✗")
		if o.Successful {
			result = ui.paint(ColorGreen, "✓")
		}
		fmt.Fprintf(ui.out, "%-32s %-16s %7d %8s %10s  %s\n",
			truncate(o.Name, 32), truncate(o.Strategy, 16), o.Trades,
			pct(o.WinRate), pct(o.AvgReturn), result)
	}
	fmt.Fprintln(ui.out, rule)
	fmt.Fprintf(ui.out, "Validated %d/%d (%s%%) │ %d trades │ mean win rate %s%% │ %s\n",
		s.Validated, s.Total, s.ValidatedPct.StringFixed(1),
		s.TotalTrades, s.MeanWinRate.StringFixed(1), s.Duration.Round(time.Millisecond))
	if len(s.ValidatedList) > 0 {
		fmt.Fprintf(ui.out, "Validated: %s\n", strings.Join(s.ValidatedList, ", "))
	}
}

// renderCurve draws cumulative P&L as an ASCII chart, one column per
// trade, keeping the most recent trades that fit.
func (ui *Terminal) renderCurve(points []decimal.Decimal) []string {
	maxCols := ui.width - 12
	if maxCols < 10 {
		maxCols = 10
	}
	if len(points) > maxCols {
		points = points[len(points)-maxCols:]
	}

	lo, hi := decimal.Zero, decimal.Zero
	for _, p := range points {
		lo = decimal.Min(lo, p)
		hi = decimal.Max(hi, p)
	}
	span := hi.Sub(lo)
	if span.IsZero() {
		span = decimal.NewFromInt(1)
	}

	grid := make([][]rune, chartHeight)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", len(points)))
	}
	zeroY := valueToY(decimal.Zero, lo, span, chartHeight)
	for x, p := range points {
		y := valueToY(p, lo, span, chartHeight)
		from, to := min(y, zeroY), max(y, zeroY)
		for row := from; row <= to; row++ {
			grid[row][x] = '│'
		}
		grid[y][x] = '●'
	}

	lines := make([]string, 0, chartHeight+1)
	for y, row := range grid {
		label := "         "
		if y == 0 || y == chartHeight-1 || y == zeroY {
			label = fmt.Sprintf("%9.0f", yToValue(y, lo, span, chartHeight).InexactFloat64())
		}
		color := ColorGreen
		if y > zeroY {
			color = ColorRed
		}
		lines = append(lines, ui.paint(ColorDim, label+" ┤")+ui.paint(color, string(row)))
	}
	lines = append(lines, ui.paint(ColorDim, "          └"+strings.Repeat("─", len(points))))
	return lines
}

func (ui *Terminal) paint(color, s string) string {
	if !ui.color {
		return s
	}
	return color + s + ColorReset
}

// valueToY maps a value to a row; row 0 is the top.
func valueToY(v, lo, span decimal.Decimal, height int) int {
	normalized := v.Sub(lo).Div(span)
	y := decimal.NewFromInt(int64(height - 1)).Sub(normalized.Mul(decimal.NewFromInt(int64(height - 1))))
	return int(y.Round(0).IntPart())
}

// yToValue converts a row back to a value.
func yToValue(y int, lo, span decimal.Decimal, height int) decimal.Decimal {
	normalized := decimal.NewFromInt(int64(height - 1 - y)).Div(decimal.NewFromInt(int64(height - 1)))
	return lo.Add(span.Mul(normalized))
}

func cumulativePnL(trades []hypothesis.TradeRecord) []decimal.Decimal {
	points := make([]decimal.Decimal, len(trades))
	sum := decimal.Zero
	for i, t := range trades {
		sum = sum.Add(t.PnL)
		points[i] = sum
	}
	return points
}

// pct formats a ratio as a percentage with one decimal.
func pct(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// getTerminalSize returns the width of out and whether it is a terminal.
func getTerminalSize(out io.Writer) (width int, isTTY bool) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth, true
	}
	return width, true
}
