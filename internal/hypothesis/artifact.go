package hypothesis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tathienbao/options-lab/internal/types"
)

// SampleTrades is how many trades an artifact keeps.
const SampleTrades = 10

// TimestampFormat is the layout of TestInfo.Timestamp and of result file
// names.
const TimestampFormat = "20060102_150405"

// Artifact is the persisted record of a finished test.
type Artifact struct {
	TestInfo     TestInfo        `json:"test_info"`
	Metrics      ArtifactMetrics `json:"metrics"`
	IsSuccessful bool            `json:"is_successful"`
	Trades       []ArtifactTrade `json:"trades"`
}

// TestInfo describes what was tested.
type TestInfo struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Strategy        string             `json:"strategy"`
	Parameters      map[string]float64 `json:"parameters"`
	SuccessCriteria map[string]float64 `json:"success_criteria"`
	Timestamp       string             `json:"timestamp"`
}

// ArtifactMetrics is the metrics block of an artifact.
type ArtifactMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgReturn     float64 `json:"avg_return"`
	TotalReturn   float64 `json:"total_return"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
}

// ArtifactTrade is one sampled trade. The synthetic condition is written
// under its own name, e.g. "rsi": 79.
type ArtifactTrade struct {
	Signal        string
	EntryPrice    float64
	ExitPrice     float64
	PnL           float64
	ReturnPct     float64
	ConditionName string
	Condition     float64
	Confidence    float64
}

var tradeKeys = map[string]bool{
	"signal":      true,
	"entry_price": true,
	"exit_price":  true,
	"pnl":         true,
	"return_pct":  true,
	"confidence":  true,
}

// MarshalJSON implements json.Marshaler.
func (t ArtifactTrade) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"signal":      t.Signal,
		"entry_price": t.EntryPrice,
		"exit_price":  t.ExitPrice,
		"pnl":         t.PnL,
		"return_pct":  t.ReturnPct,
		"confidence":  t.Confidence,
	}
	if t.ConditionName != "" {
		m[t.ConditionName] = t.Condition
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler. The first key outside the
// fixed set is taken as the condition.
func (t *ArtifactTrade) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out ArtifactTrade
	fields := []struct {
		key string
		dst any
	}{
		{"signal", &out.Signal},
		{"entry_price", &out.EntryPrice},
		{"exit_price", &out.ExitPrice},
		{"pnl", &out.PnL},
		{"return_pct", &out.ReturnPct},
		{"confidence", &out.Confidence},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("trade field %s: %w", f.key, err)
		}
	}

	for k, v := range raw {
		if tradeKeys[k] {
			continue
		}
		if err := json.Unmarshal(v, &out.Condition); err != nil {
			return fmt.Errorf("trade condition %s: %w", k, err)
		}
		out.ConditionName = k
		break
	}

	*t = out
	return nil
}

// NewArtifact builds the persisted record of a finalized test.
func NewArtifact(t *Test) Artifact {
	m := t.Metrics

	n := len(t.Trades)
	if n > SampleTrades {
		n = SampleTrades
	}
	trades := make([]ArtifactTrade, n)
	for i := 0; i < n; i++ {
		tr := t.Trades[i]
		trades[i] = ArtifactTrade{
			Signal:        tr.Signal.String(),
			EntryPrice:    tr.EntryPrice.InexactFloat64(),
			ExitPrice:     tr.ExitPrice.InexactFloat64(),
			PnL:           tr.PnL.InexactFloat64(),
			ReturnPct:     tr.ReturnPct.InexactFloat64(),
			ConditionName: tr.ConditionName,
			Condition:     tr.Condition,
			Confidence:    tr.Confidence,
		}
	}

	criteria := make(map[string]float64, len(t.SuccessCriteria))
	for k, v := range t.SuccessCriteria {
		criteria[k] = v
	}

	return Artifact{
		TestInfo: TestInfo{
			Name:            t.Name,
			Description:     t.Description,
			Strategy:        t.Strategy,
			Parameters:      t.Parameters.Clone(),
			SuccessCriteria: criteria,
			Timestamp:       t.Timestamp.Format(TimestampFormat),
		},
		Metrics: ArtifactMetrics{
			TotalTrades:   m.TotalTrades,
			WinningTrades: m.WinningTrades,
			LosingTrades:  m.LosingTrades,
			WinRate:       m.WinRate.InexactFloat64(),
			AvgReturn:     m.AvgReturn.InexactFloat64(),
			TotalReturn:   m.TotalReturn.InexactFloat64(),
			ProfitFactor:  m.ProfitFactor.InexactFloat64(),
			MaxDrawdown:   m.MaxDrawdown.InexactFloat64(),
			SharpeRatio:   m.SharpeRatio.InexactFloat64(),
		},
		IsSuccessful: t.IsSuccessful(),
		Trades:       trades,
	}
}

// FileName returns "<strategy>_<timestamp>_<name slug>.json". The slug
// keeps same-strategy tests finished in the same second apart; an
// unnamed artifact gets "<strategy>_<timestamp>.json".
func (a Artifact) FileName() string {
	slug := nameSlug(a.TestInfo.Name)
	if slug == "" {
		return fmt.Sprintf("%s_%s.json", a.TestInfo.Strategy, a.TestInfo.Timestamp)
	}
	return fmt.Sprintf("%s_%s_%s.json", a.TestInfo.Strategy, a.TestInfo.Timestamp, slug)
}

// nameSlug lowercases name and joins its letter and digit runs with '-'.
func nameSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// Time parses the artifact timestamp in the local zone.
func (a Artifact) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampFormat, a.TestInfo.Timestamp, time.Local)
}

// Kind parses the trade's signal.
func (t ArtifactTrade) Kind() (types.OptionKind, error) {
	return types.ParseOptionKind(t.Signal)
}
