package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func newTestThread(limits ryemodels.Limits) *ryemodels.Thread {
	return &ryemodels.Thread{
		ThreadID: "t1",
		Budget:   ryemodels.Budget{Limits: limits, WallStart: time.Now()},
	}
}

func TestEstimateCost_UsesConfiguredRate(t *testing.T) {
	RegisterRate("test-model", Rate{InputPerMillion: 10, OutputPerMillion: 20})
	got := EstimateCost("test-model", 1_000_000, 500_000)
	assert.InDelta(t, 10+10, got, 0.0001)
}

func TestEstimateCost_UnknownModelUsesDefault(t *testing.T) {
	got := EstimateCost("never-heard-of-this-one", 1_000_000, 0)
	assert.InDelta(t, DefaultRate.InputPerMillion, got, 0.0001)
}

func TestLedger_DebitTurn_AccumulatesUsage(t *testing.T) {
	RegisterRate("standard", Rate{InputPerMillion: 3, OutputPerMillion: 15})
	thread := newTestThread(ryemodels.Limits{})
	ledger := NewLedger(thread)

	cost := ledger.DebitTurn("standard", 1000, 500)
	assert.Greater(t, cost, 0.0)
	assert.Equal(t, 1, thread.Budget.Turns)
	assert.Equal(t, 1500, thread.Budget.Tokens)
	assert.InDelta(t, cost, thread.Budget.Spend, 0.0001)
	assert.Equal(t, 1, thread.TurnCount)

	ledger.DebitTurn("standard", 1000, 500)
	assert.Equal(t, 2, thread.Budget.Turns)
	assert.Equal(t, 3000, thread.Budget.Tokens)
}

func TestLedger_CheckEscalation_TurnsExhausted(t *testing.T) {
	thread := newTestThread(ryemodels.Limits{Turns: 2})
	ledger := NewLedger(thread)

	ledger.DebitTurn("standard", 10, 10)
	escalated, reason := ledger.CheckEscalation()
	require.False(t, escalated)
	assert.Empty(t, reason)

	ledger.DebitTurn("standard", 10, 10)
	escalated, reason = ledger.CheckEscalation()
	require.True(t, escalated)
	assert.Equal(t, "turns", reason)
}

func TestLedger_CascadeChildSpend_CountsTowardParentSpendLimit(t *testing.T) {
	parent := newTestThread(ryemodels.Limits{Spend: 0.50})
	parentLedger := NewLedger(parent)

	parentLedger.CascadeChildSpend(0.30, 1000)
	escalated, reason := parentLedger.CheckEscalation()
	assert.False(t, escalated)

	parentLedger.CascadeChildSpend(0.25, 1000)
	escalated, reason = parentLedger.CheckEscalation()
	require.True(t, escalated)
	assert.Equal(t, "spend", reason)
}

func TestLedger_SpendForCascade_IncludesOwnAndChildren(t *testing.T) {
	thread := newTestThread(ryemodels.Limits{})
	ledger := NewLedger(thread)

	RegisterRate("standard", Rate{InputPerMillion: 3, OutputPerMillion: 15})
	ledger.DebitTurn("standard", 1_000_000, 0)
	ledger.CascadeChildSpend(1.5, 2000)

	spend, tokens := ledger.SpendForCascade()
	assert.InDelta(t, 3.0+1.5, spend, 0.0001)
	assert.Equal(t, 1_000_000+2000, tokens)
}

func TestApplyOverrides_NarrowsButNeverWidens(t *testing.T) {
	base := ryemodels.Limits{Turns: 10, Spend: 1.0}

	narrowed := ApplyOverrides(base, ryemodels.Limits{Turns: 5})
	assert.Equal(t, 5, narrowed.Turns)
	assert.Equal(t, 1.0, narrowed.Spend)

	widened := ApplyOverrides(base, ryemodels.Limits{Turns: 50})
	assert.Equal(t, 10, widened.Turns, "override cannot widen a directive's own limit")
}
