// Package budget implements the per-thread budget ledger: turn-by-turn
// debiting against static model cost rates, escalation detection, and cost
// cascade from a completed child thread up to its parent's ledger.
package budget

import (
	"sync"
	"time"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Ledger guards a thread's Budget against concurrent turn debits and child
// cascades, mirroring the teacher's mutex-guarded usage.Tracker.
type Ledger struct {
	mu     sync.Mutex
	thread *ryemodels.Thread
}

// NewLedger wraps a thread whose Budget.Limits and WallStart are already
// populated (derived from the directive's limits, with optional invoker
// overrides applied before the thread starts).
func NewLedger(thread *ryemodels.Thread) *Ledger {
	if thread.Budget.WallStart.IsZero() {
		thread.Budget.WallStart = time.Now()
	}
	return &Ledger{thread: thread}
}

// DebitTurn applies one LLM turn's token usage to the thread's budget,
// pricing it at modelID's static rate, and returns the cost of that turn.
func (l *Ledger) DebitTurn(modelID string, promptTokens, completionTokens int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	cost := EstimateCost(modelID, promptTokens, completionTokens)
	b := &l.thread.Budget
	b.Turns++
	b.Tokens += promptTokens + completionTokens
	b.Spend += cost

	l.thread.TurnCount++
	l.thread.CostTotal += cost
	l.thread.UpdatedAt = time.Now()
	return cost
}

// CheckEscalation reports whether any budgeted dimension (turns, tokens,
// spend including cascaded child spend, or wall duration) has been
// exhausted, and which dimension tripped first.
func (l *Ledger) CheckEscalation() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.thread.Budget.Exhausted()
}

// Remaining exposes the budget's remaining allowances for status reporting.
func (l *Ledger) Remaining() (turns, tokens int, spend, seconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.thread.Budget.Remaining()
}

// CascadeChildSpend folds a completed child thread's spend and token usage
// into this (parent) ledger, per spec: each child emits (parent_id,
// spend_delta, tokens_delta) on completion, and the parent's budget check
// uses its own plus aggregated children's spend. A child's own spend
// already includes whatever its own children cascaded to it, so this
// recursively bounds the whole descendant tree under the root's limit.
func (l *Ledger) CascadeChildSpend(spendDelta float64, tokensDelta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thread.Budget.ChildSpend += spendDelta
	l.thread.Budget.ChildTokens += tokensDelta
	l.thread.UpdatedAt = time.Now()
}

// SpendForCascade returns the total spend (own + children) this thread
// should report to its own parent's ledger when it completes.
func (l *Ledger) SpendForCascade() (spend float64, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.thread.Budget
	return b.Spend + b.ChildSpend, b.Tokens + b.ChildTokens
}

// ApplyOverrides lets an invoker narrow (never widen) a directive's
// declared limits at thread start, e.g. a caller-supplied lower spend cap.
// A zero override field leaves the directive's own limit untouched.
func ApplyOverrides(limits ryemodels.Limits, overrides ryemodels.Limits) ryemodels.Limits {
	merged := limits
	if overrides.Turns > 0 && (merged.Turns == 0 || overrides.Turns < merged.Turns) {
		merged.Turns = overrides.Turns
	}
	if overrides.Tokens > 0 && (merged.Tokens == 0 || overrides.Tokens < merged.Tokens) {
		merged.Tokens = overrides.Tokens
	}
	if overrides.Spend > 0 && (merged.Spend == 0 || overrides.Spend < merged.Spend) {
		merged.Spend = overrides.Spend
	}
	if overrides.DurationSeconds > 0 && (merged.DurationSeconds == 0 || overrides.DurationSeconds < merged.DurationSeconds) {
		merged.DurationSeconds = overrides.DurationSeconds
	}
	return merged
}
