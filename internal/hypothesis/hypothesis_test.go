package hypothesis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tathienbao/options-lab/internal/strategy"
	"github.com/tathienbao/options-lab/internal/types"
)

func newFinalizedTest(criteria map[string]float64, pnls ...int64) *Test {
	test := NewTest(strategy.Definition{
		Name:            "t",
		Strategy:        strategy.MomentumName,
		SuccessCriteria: criteria,
	})
	_ = test.start(time.Now())
	for _, tr := range tradesWithPnL(pnls...) {
		test.record(tr)
	}
	test.Finalize()
	return test
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CONFIGURED", StateConfigured.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "FINALIZED", StateFinalized.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestTest_StateMachine(t *testing.T) {
	test := NewTest(strategy.Definitions()[0])
	assert.Equal(t, StateConfigured, test.State)

	require.NoError(t, test.start(time.Now()))
	assert.Equal(t, StateRunning, test.State)

	err := test.start(time.Now())
	assert.ErrorIs(t, err, types.ErrTestNotRunnable)

	test.Finalize()
	assert.Equal(t, StateFinalized, test.State)
	assert.ErrorIs(t, test.start(time.Now()), types.ErrTestNotRunnable)
}

func TestNewTest_CopiesDefinition(t *testing.T) {
	def := strategy.Definitions()[0]
	test := NewTest(def)

	test.Parameters["rsi_oversold"] = 1
	test.SuccessCriteria["win_rate"] = 0

	assert.Equal(t, 30.0, def.Parameters["rsi_oversold"])
	assert.Equal(t, 0.55, def.SuccessCriteria["win_rate"])
}

func TestTest_IsSuccessful(t *testing.T) {
	tests := []struct {
		name     string
		criteria map[string]float64
		pnls     []int64
		want     bool
	}{
		{
			name:     "no trades never succeeds",
			criteria: map[string]float64{},
			pnls:     nil,
			want:     false,
		},
		{
			name:     "no trades with trivially met criteria",
			criteria: map[string]float64{"win_rate": 0},
			pnls:     nil,
			want:     false,
		},
		{
			name:     "empty criteria with trades",
			criteria: map[string]float64{},
			pnls:     []int64{-10},
			want:     true,
		},
		{
			name:     "win rate met exactly",
			criteria: map[string]float64{"win_rate": 0.5},
			pnls:     []int64{10, -10},
			want:     true,
		},
		{
			name:     "win rate missed",
			criteria: map[string]float64{"win_rate": 0.55},
			pnls:     []int64{10, -10},
			want:     false,
		},
		{
			name:     "one of two criteria missed",
			criteria: map[string]float64{"win_rate": 0.5, "avg_return": 0.5},
			pnls:     []int64{100, -10},
			want:     false,
		},
		{
			name:     "profit factor criterion",
			criteria: map[string]float64{"profit_factor": 2},
			pnls:     []int64{100, -50},
			want:     true,
		},
		{
			name:     "unknown metric fails",
			criteria: map[string]float64{"calmar_ratio": 0},
			pnls:     []int64{100},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := newFinalizedTest(tt.criteria, tt.pnls...)
			assert.Equal(t, tt.want, test.IsSuccessful())
		})
	}
}

func TestTest_Metric(t *testing.T) {
	test := newFinalizedTest(nil, 100, -50)

	for _, name := range MetricNames() {
		_, err := test.Metric(name)
		assert.NoError(t, err, name)
	}

	wr, err := test.Metric(MetricWinRate)
	require.NoError(t, err)
	assert.True(t, wr.Equal(decimal.RequireFromString("0.5")), "win_rate = %s", wr)

	_, err = test.Metric("calmar_ratio")
	assert.ErrorIs(t, err, types.ErrUnknownMetric)
}

func TestTest_Criteria(t *testing.T) {
	test := newFinalizedTest(map[string]float64{"win_rate": 0.4, "avg_return": 1, "bogus": 0}, 100, -50)

	results := test.Criteria()
	require.Len(t, results, 3)

	// sorted by name
	assert.Equal(t, "avg_return", results[0].Metric)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "bogus", results[1].Metric)
	assert.False(t, results[1].Known)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "win_rate", results[2].Metric)
	assert.True(t, results[2].Passed)
}

func TestValidateCriteria(t *testing.T) {
	assert.NoError(t, ValidateCriteria(map[string]float64{"win_rate": 0.5, "max_drawdown": 0}))
	assert.NoError(t, ValidateCriteria(nil))

	err := ValidateCriteria(map[string]float64{"win_rate": 0.5, "alpha": 1})
	assert.ErrorIs(t, err, types.ErrUnknownMetric)
	assert.Contains(t, err.Error(), "alpha")
}

func TestTradeRecord_Win(t *testing.T) {
	assert.True(t, TradeRecord{PnL: decimal.NewFromInt(1)}.Win())
	assert.False(t, TradeRecord{PnL: decimal.Zero}.Win())
	assert.False(t, TradeRecord{PnL: decimal.NewFromInt(-1)}.Win())
}
