package ryemodels

import "time"

// ThreadStatus is the lifecycle state of a thread.
type ThreadStatus string

const (
	StatusRunning        ThreadStatus = "running"
	StatusCompleted      ThreadStatus = "completed"
	StatusFailed         ThreadStatus = "failed"
	StatusEscalated      ThreadStatus = "escalated"
	StatusCancelled      ThreadStatus = "cancelled"
	StatusKilled         ThreadStatus = "killed"
	StatusAwaitingHandoff ThreadStatus = "awaiting_handoff"
)

// TurnRole identifies the author of a turn in a thread's history.
type TurnRole string

const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
	TurnSystem    TurnRole = "system"
	TurnTool      TurnRole = "tool"
)

// Turn is one entry in a thread's turn_history.
type Turn struct {
	Role          TurnRole  `json:"role"`
	Content       string    `json:"content,omitempty"`
	ToolCallName  string    `json:"tool_call_name,omitempty"`
	ToolCallInput string    `json:"tool_call_input,omitempty"`
	ToolResult    string    `json:"tool_result,omitempty"`
	PromptTokens  int       `json:"prompt_tokens,omitempty"`
	OutputTokens  int       `json:"output_tokens,omitempty"`
	Cost          float64   `json:"cost,omitempty"`
	At            time.Time `json:"at"`
}

// FiredHook records a hook that matched and ran during a thread's loop.
type FiredHook struct {
	When   string    `json:"when"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Budget tracks remaining and consumed allowances for a thread.
type Budget struct {
	Limits    Limits    `json:"limits"`
	Turns     int       `json:"turns_used"`
	Tokens    int       `json:"tokens_used"`
	Spend     float64   `json:"spend_used"`
	ChildSpend  float64 `json:"child_spend"`
	ChildTokens int     `json:"child_tokens"`
	WallStart time.Time `json:"wall_start"`
}

// Remaining computes how many turns/tokens/spend/seconds are left before
// escalation. A field with no limit reports -1 (a zero Limits field means
// unlimited, matching the directive convention that omitted limits are
// uncapped); a limited field reports its cap minus usage, which goes
// negative once usage passes the cap.
func (b *Budget) Remaining() (turns, tokens int, spend float64, seconds float64) {
	if b.Limits.Turns > 0 {
		turns = b.Limits.Turns - b.Turns
	} else {
		turns = -1
	}
	if b.Limits.Tokens > 0 {
		tokens = b.Limits.Tokens - b.Tokens
	} else {
		tokens = -1
	}
	if b.Limits.Spend > 0 {
		spend = b.Limits.Spend - (b.Spend + b.ChildSpend)
	} else {
		spend = -1
	}
	if b.Limits.DurationSeconds > 0 {
		elapsed := time.Since(b.WallStart).Seconds()
		seconds = float64(b.Limits.DurationSeconds) - elapsed
	} else {
		seconds = -1
	}
	return
}

// Exhausted reports whether any limited dimension has hit or exceeded its
// cap.
func (b *Budget) Exhausted() (bool, string) {
	turns, tokens, spend, seconds := b.Remaining()
	if b.Limits.Turns > 0 && turns <= 0 {
		return true, "turns"
	}
	if b.Limits.Tokens > 0 && tokens <= 0 {
		return true, "tokens"
	}
	if b.Limits.Spend > 0 && spend <= 0 {
		return true, "spend"
	}
	if b.Limits.DurationSeconds > 0 && seconds <= 0 {
		return true, "duration"
	}
	return false, ""
}

// Thread is a mutable runtime entity representing one open directive
// invocation.
type Thread struct {
	ThreadID       string       `json:"thread_id"`
	ParentThreadID string       `json:"parent_thread_id,omitempty"`
	Depth          int          `json:"depth"`
	DirectiveID    string       `json:"directive_id"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	ResolvedModel  string       `json:"resolved_model"`

	Capabilities CapabilitySet `json:"capabilities"`
	Budget       Budget        `json:"budget"`
	Status       ThreadStatus  `json:"status"`

	TurnHistory []Turn      `json:"turn_history"`
	FiredHooks  []FiredHook `json:"fired_hooks,omitempty"`

	CostTotal  float64   `json:"cost_total"`
	Elapsed    time.Duration `json:"elapsed"`
	TurnCount  int       `json:"turn_count"`
	SpawnCount int       `json:"spawn_count"`

	ChildIDs []string `json:"child_ids,omitempty"`

	TranscriptPath string    `json:"transcript_path"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// PendingHandoffMessage holds the message injected by handoff_thread,
	// consumed on the next resume_thread call.
	PendingHandoffMessage string `json:"pending_handoff_message,omitempty"`
}

// ThreadResult is the envelope returned to callers of the orchestrator.
type ThreadResult struct {
	ThreadID string       `json:"thread_id"`
	Status   ThreadStatus `json:"status"`
	Cost     float64      `json:"cost"`
	Tokens   int          `json:"tokens"`
	Turns    int          `json:"turns"`
	Duration time.Duration `json:"duration"`
	Result   string       `json:"result,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
}
