package thread

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leolilley/ryeos/internal/audit"
	"github.com/leolilley/ryeos/internal/budget"
	"github.com/leolilley/ryeos/internal/capability"
	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/internal/primitive"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Spawner creates and runs a child thread for a directive-type tool call,
// implemented by internal/orchestrator. Declaring it here (rather than
// depending on the orchestrator package) keeps thread -> orchestrator a
// one-way edge: the orchestrator drives Runtime, not the reverse.
type Spawner interface {
	Spawn(ctx context.Context, directiveID string, inputs map[string]any, parent *ryemodels.Thread) (*ryemodels.ThreadResult, error)
}

// Config bundles a thread's wired dependencies.
type Config struct {
	Provider      Provider
	Loader        *items.Loader
	ChainResolver *chain.Resolver
	Primitive     *primitive.Executor
	Spawner       Spawner
	ProjectPath   string
	SpaceRoots    primitive.SpaceRoots
	Authoring     bool
	MaxIterations int

	// SigningKey signs the thread's transcript on completion. A nil key
	// skips transcript persistence (used by tests that don't care about
	// it).
	SigningKey ed25519.PrivateKey
	// KnowledgeRoot is the space root transcripts are written under
	// (as <KnowledgeRoot>/knowledge/agent/threads/...).
	KnowledgeRoot string

	// Audit records capability denials, chain resolution failures, and
	// budget escalations. A nil Audit skips recording (used by tests that
	// don't care about it).
	Audit *audit.Log
}

// Runtime drives one thread's LLM loop end to end: system prompt
// composition, turn-by-turn tool dispatch, budget debiting, escalation,
// and hook evaluation. Grounded on the teacher's AgenticLoop state
// machine (Init -> Stream -> ExecuteTools -> Continue/Complete), adapted
// from a single flat session to the directive/capability/budget model.
type Runtime struct {
	cfg     Config
	thread  *ryemodels.Thread
	harness *capability.Harness
	ledger  *budget.Ledger
}

// New opens a thread runtime for a directive invocation. parentCaps is the
// parent's effective capability set (ryemodels.NewCapabilitySet() for a
// root thread); parentThread is nil for a root thread.
func New(cfg Config, directive *ryemodels.DirectiveMeta, directiveID string, inputs map[string]any,
	parentThread *ryemodels.Thread, parentCaps ryemodels.CapabilitySet, limitOverrides ryemodels.Limits, modelOverride string) *Runtime {

	kept, _ := capability.Attenuate(directive.Permissions, parentCaps)
	harness := &capability.Harness{Capabilities: kept}

	limits := budget.ApplyOverrides(directive.Limits, limitOverrides)

	model := directive.Model.Tier
	if modelOverride != "" {
		model = modelOverride
	}

	depth := 0
	parentID := ""
	if parentThread != nil {
		depth = parentThread.Depth + 1
		parentID = parentThread.ThreadID
	}

	th := &ryemodels.Thread{
		ThreadID:       uuid.NewString(),
		ParentThreadID: parentID,
		Depth:          depth,
		DirectiveID:    directiveID,
		Inputs:         inputs,
		ResolvedModel:  model,
		Capabilities:   kept,
		Budget:         ryemodels.Budget{Limits: limits, WallStart: time.Now()},
		Status:         ryemodels.StatusRunning,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	return &Runtime{cfg: cfg, thread: th, harness: harness, ledger: budget.NewLedger(th)}
}

// Thread exposes the underlying mutable thread state.
func (r *Runtime) Thread() *ryemodels.Thread { return r.thread }

// Ledger exposes the thread's budget ledger, so an orchestrator can read
// cascade totals and cascade a completed child's spend into its parent
// without constructing a second ledger over the same thread.
func (r *Runtime) Ledger() *budget.Ledger { return r.ledger }

// Run executes the thread's LLM loop to completion, escalation,
// cancellation, or an unrecoverable provider error.
func (r *Runtime) Run(ctx context.Context, directive *ryemodels.DirectiveMeta) (*ryemodels.ThreadResult, error) {
	systemPrompt, err := r.systemPrompt(directive)
	if err != nil {
		return nil, err
	}

	firstMsg, err := BuildFirstUserMessage(r.cfg.Loader, directive, r.thread.Inputs, r.cfg.Authoring)
	if err != nil {
		return nil, err
	}

	return r.loop(ctx, directive, systemPrompt, []Message{{Role: "user", Content: firstMsg}})
}

// Wrap rebuilds a Runtime around an already-initialized thread, used by
// resume_thread/handoff_thread to continue a suspended or completed
// thread without reinitializing its id, budget, or capabilities.
func Wrap(cfg Config, th *ryemodels.Thread, ledger *budget.Ledger) *Runtime {
	return &Runtime{cfg: cfg, thread: th, harness: &capability.Harness{Capabilities: th.Capabilities}, ledger: ledger}
}

// Resume continues a thread from its recorded turn history: it replays
// the history into the provider's message shape, appends message as a
// new user turn, and re-enters the loop, per spec.md §4.I's
// resume_thread/handoff_thread contract. Prior assistant turns are
// replayed as plain text without their ToolCalls, and tool turns as
// ToolResults carrying only their rendered text (no ToolCallID), since
// Turn only records the rendered form, not the provider's wire shape.
func (r *Runtime) Resume(ctx context.Context, directive *ryemodels.DirectiveMeta, message string) (*ryemodels.ThreadResult, error) {
	systemPrompt, err := r.systemPrompt(directive)
	if err != nil {
		return nil, err
	}

	r.thread.Status = ryemodels.StatusRunning
	r.thread.PendingHandoffMessage = ""
	messages := replayHistory(r.thread.TurnHistory)
	messages = append(messages, Message{Role: "user", Content: message})

	return r.loop(ctx, directive, systemPrompt, messages)
}

func replayHistory(turns []ryemodels.Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case ryemodels.TurnUser:
			messages = append(messages, Message{Role: "user", Content: t.Content})
		case ryemodels.TurnAssistant:
			messages = append(messages, Message{Role: "assistant", Content: t.Content})
		case ryemodels.TurnTool:
			content := t.Content
			if t.ToolCallName != "" {
				content = fmt.Sprintf("[%s(%s) -> %s]", t.ToolCallName, t.ToolCallInput, t.Content)
			}
			messages = append(messages, Message{Role: "tool", ToolResults: []ToolResult{{Content: content}}})
		}
	}
	return messages
}

func (r *Runtime) systemPrompt(directive *ryemodels.DirectiveMeta) (string, error) {
	return BuildSystemPrompt(r.cfg.Loader, directive, PromptVars{
		ProjectPath:         r.cfg.ProjectPath,
		Model:               r.thread.ResolvedModel,
		Depth:               r.thread.Depth,
		ParentThreadID:      r.thread.ParentThreadID,
		SpendLimit:          directive.Limits.Spend,
		MaxTurns:            directive.Limits.Turns,
		CapabilitiesSummary: CapabilitiesSummary(r.harness),
	}, r.cfg.Authoring)
}

// loop drives the turn/dispatch cycle to a terminal status, starting
// from the given message history.
func (r *Runtime) loop(ctx context.Context, directive *ryemodels.DirectiveMeta, systemPrompt string, messages []Message) (*ryemodels.ThreadResult, error) {
	maxIter := r.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			r.thread.Status = ryemodels.StatusCancelled
			return r.finish(ctx.Err())
		default:
		}

		text, toolCalls, promptTok, completionTok, err := r.streamTurn(ctx, systemPrompt, messages, directive)
		if err != nil {
			r.thread.Status = ryemodels.StatusFailed
			return r.finish(err)
		}

		cost := r.ledger.DebitTurn(r.thread.ResolvedModel, promptTok, completionTok)
		r.recordTurn(ryemodels.TurnAssistant, text, "", "", promptTok, completionTok, cost)

		if escalated, reason := r.ledger.CheckEscalation(); escalated {
			r.thread.Status = ryemodels.StatusEscalated
			if r.cfg.Audit != nil {
				r.cfg.Audit.BudgetEscalation(r.thread.ThreadID, reason)
			}
			r.fireHooks(directive.Hooks, reason, iter)
			return r.finish(nil)
		}

		if len(toolCalls) == 0 {
			r.thread.Status = ryemodels.StatusCompleted
			return r.finish(nil)
		}

		assistantMsg := Message{Role: "assistant", Content: text, ToolCalls: toolCalls}
		toolResults := r.dispatchAll(ctx, toolCalls)
		for i, tc := range toolCalls {
			r.recordTurn(ryemodels.TurnTool, toolResults[i].Content, tc.Name, string(tc.Input), 0, 0, 0)
		}

		messages = append(messages, assistantMsg, Message{Role: "tool", ToolResults: toolResults})
		r.fireHooks(directive.Hooks, "", iter)
	}

	r.thread.Status = ryemodels.StatusEscalated
	return r.finish(nil)
}

// finish persists the thread's transcript (best-effort — a write failure
// surfaces in logs, not in the caller's error, since the thread's own
// outcome already happened) and returns its result envelope.
func (r *Runtime) finish(runErr error) (*ryemodels.ThreadResult, error) {
	if r.cfg.SigningKey != nil && r.cfg.KnowledgeRoot != "" {
		_, _ = WriteTranscript(r.cfg.KnowledgeRoot, r.thread, r.cfg.SigningKey, time.Now())
	}
	return r.result(), runErr
}

// streamTurn sends the message list to the provider and drains the
// streamed response into accumulated text, tool calls, and usage.
func (r *Runtime) streamTurn(ctx context.Context, system string, messages []Message, directive *ryemodels.DirectiveMeta) (string, []ToolCall, int, int, error) {
	req := &CompletionRequest{
		Model:    r.thread.ResolvedModel,
		System:   system,
		Messages: messages,
		Tools:    dispatchToolSchemas(),
	}
	chunks, err := r.cfg.Provider.Complete(ctx, req)
	if err != nil {
		return "", nil, 0, 0, err
	}

	var text strings.Builder
	var calls []ToolCall
	var promptTok, completionTok int
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, 0, 0, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Done {
			promptTok = chunk.PromptTokens
			completionTok = chunk.CompletionTokens
		}
	}
	return text.String(), calls, promptTok, completionTok, nil
}

func (r *Runtime) recordTurn(role ryemodels.TurnRole, content, toolName, toolInput string, promptTok, completionTok int, cost float64) {
	r.thread.TurnHistory = append(r.thread.TurnHistory, ryemodels.Turn{
		Role:          role,
		Content:       content,
		ToolCallName:  toolName,
		ToolCallInput: toolInput,
		PromptTokens:  promptTok,
		OutputTokens:  completionTok,
		Cost:          cost,
		At:            time.Now(),
	})
	r.thread.UpdatedAt = time.Now()
}

func (r *Runtime) fireHooks(hooks []ryemodels.Hook, errorType string, loopCount int) {
	turns, _, spend, _ := r.ledger.Remaining()
	_ = turns
	hctx := HookContext{
		CostCurrent: r.thread.Budget.Spend + r.thread.Budget.ChildSpend,
		CostLimit:   r.thread.Budget.Limits.Spend,
		LoopCount:   loopCount,
		ErrorType:   errorType,
		ThreadEvent: string(r.thread.Status),
	}
	_ = spend
	for _, h := range EvaluateHooks(hooks, hctx) {
		r.thread.FiredHooks = append(r.thread.FiredHooks, ryemodels.FiredHook{When: h.When, Action: h.Action, At: time.Now()})
	}
}

func (r *Runtime) result() *ryemodels.ThreadResult {
	return &ryemodels.ThreadResult{
		ThreadID: r.thread.ThreadID,
		Status:   r.thread.Status,
		Cost:     r.thread.Budget.Spend,
		Tokens:   r.thread.Budget.Tokens,
		Turns:    r.thread.Budget.Turns,
		Duration: time.Since(r.thread.Budget.WallStart),
	}
}

// dispatchRequest is the JSON shape carried in a dispatch tool call's
// input: {item_type, item_id, params}.
type dispatchRequest struct {
	ItemType string         `json:"item_type"`
	ItemID   string         `json:"item_id"`
	Params   map[string]any `json:"params"`
}

// dispatchToolSchemas advertises the fixed rye_* dispatch tools the loop
// always offers, per spec.md §4.H step 4.a.
func dispatchToolSchemas() []ToolSchema {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_type": map[string]any{"type": "string", "enum": []any{"directive", "tool", "knowledge"}},
			"item_id":   map[string]any{"type": "string"},
			"params":    map[string]any{"type": "object"},
		},
		"required": []any{"item_type", "item_id"},
	}
	names := []string{"rye_execute", "rye_search", "rye_load", "rye_sign"}
	out := make([]ToolSchema, len(names))
	for i, n := range names {
		out[i] = ToolSchema{Name: n, Description: n + " dispatch", InputSchema: schema}
	}
	return out
}

// dispatchAll runs every tool call emitted in a single LLM turn
// concurrently and joins the results in original emission order, per
// spec.md §4.H/§5: "tool-call results are appended in the order the LLM
// emitted the calls, regardless of completion order." Grounded on
// primitive.Executor.ExecuteAll's fan-out-then-join-by-index shape,
// extended from primitive execution alone to dispatch's full routing
// (spawn, load, search, knowledge retrieval), since a parallel tool-call
// turn can mix any of those. A single call skips the goroutine/WaitGroup
// overhead entirely.
func (r *Runtime) dispatchAll(ctx context.Context, calls []ToolCall) []ToolResult {
	if len(calls) == 1 {
		return []ToolResult{r.dispatch(ctx, calls[0])}
	}

	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(idx int, call ToolCall) {
			defer wg.Done()
			results[idx] = r.dispatch(ctx, call)
		}(i, tc)
	}
	wg.Wait()
	return results
}

// dispatch translates one emitted tool call into (primary, item_type,
// item_id, params), checks the capability harness, and routes allowed
// calls per spec.md §4.H step 4.c.
func (r *Runtime) dispatch(ctx context.Context, tc ToolCall) ToolResult {
	primary := strings.TrimPrefix(tc.Name, "rye_")

	var req dispatchRequest
	if err := json.Unmarshal(tc.Input, &req); err != nil {
		return errorResult(tc.ID, fmt.Errorf("malformed dispatch input: %w", err))
	}
	itemType := ryemodels.ItemType(req.ItemType)

	if err := r.harness.Check(primary, itemType, req.ItemID); err != nil {
		if r.cfg.Audit != nil {
			r.cfg.Audit.CapabilityDenied(r.thread.ThreadID, primary, req.ItemID, err)
		}
		return errorResult(tc.ID, err)
	}

	switch {
	case primary == "execute" && itemType == ryemodels.ItemTool:
		return r.dispatchExecuteTool(ctx, tc.ID, req)
	case primary == "execute" && itemType == ryemodels.ItemDirective:
		return r.dispatchSpawn(ctx, tc.ID, req)
	case primary == "execute" && itemType == ryemodels.ItemKnowledge:
		return r.dispatchRetrieveKnowledge(tc.ID, req)
	case primary == "load":
		return r.dispatchLoad(tc.ID, req)
	case primary == "search":
		return r.dispatchSearch(tc.ID, req)
	default:
		return errorResult(tc.ID, fmt.Errorf("unsupported dispatch: primary=%q item_type=%q", primary, req.ItemType))
	}
}

func (r *Runtime) dispatchExecuteTool(ctx context.Context, callID string, req dispatchRequest) ToolResult {
	c, err := r.cfg.ChainResolver.Resolve(req.ItemID, r.cfg.Authoring)
	if err != nil {
		if r.cfg.Audit != nil {
			r.cfg.Audit.ChainResolutionFailed(r.thread.ThreadID, req.ItemID, err)
		}
		return errorResult(callID, err)
	}
	res, err := r.cfg.Primitive.Execute(ctx, primitive.Call{
		Chain:       c,
		Params:      req.Params,
		ProjectPath: r.cfg.ProjectPath,
		Roots:       r.cfg.SpaceRoots,
	})
	if err != nil {
		return errorResult(callID, err)
	}
	body, _ := json.Marshal(res)
	return ToolResult{ToolCallID: callID, Content: string(body), IsError: res.Status == "error"}
}

func (r *Runtime) dispatchSpawn(ctx context.Context, callID string, req dispatchRequest) ToolResult {
	if r.cfg.Spawner == nil {
		return errorResult(callID, fmt.Errorf("no spawner configured for this thread"))
	}
	result, err := r.cfg.Spawner.Spawn(ctx, req.ItemID, req.Params, r.thread)
	if err != nil {
		return errorResult(callID, err)
	}
	body, _ := json.Marshal(result)
	return ToolResult{ToolCallID: callID, Content: string(body), IsError: result.Status == ryemodels.StatusFailed}
}

func (r *Runtime) dispatchRetrieveKnowledge(callID string, req dispatchRequest) ToolResult {
	item, err := r.cfg.Loader.Load(ryemodels.ItemKnowledge, req.ItemID, r.cfg.Authoring)
	if err != nil {
		return errorResult(callID, err)
	}
	return ToolResult{ToolCallID: callID, Content: item.Knowledge.Body}
}

func (r *Runtime) dispatchLoad(callID string, req dispatchRequest) ToolResult {
	item, err := r.cfg.Loader.Load(ryemodels.ItemType(req.ItemType), req.ItemID, r.cfg.Authoring)
	if err != nil {
		return errorResult(callID, err)
	}
	body, _ := json.Marshal(item)
	return ToolResult{ToolCallID: callID, Content: string(body)}
}

// searchResult is what rye_search returns: whether the item exists and
// where, without reading or verifying its content.
type searchResult struct {
	ItemID   string           `json:"item_id"`
	ItemType ryemodels.ItemType `json:"item_type"`
	Space    ryemodels.Space  `json:"space"`
	Path     string           `json:"path"`
}

func (r *Runtime) dispatchSearch(callID string, req dispatchRequest) ToolResult {
	path, space, err := r.cfg.Loader.Resolve(ryemodels.ItemType(req.ItemType), req.ItemID)
	if err != nil {
		return errorResult(callID, err)
	}
	body, _ := json.Marshal(searchResult{ItemID: req.ItemID, ItemType: ryemodels.ItemType(req.ItemType), Space: space, Path: path})
	return ToolResult{ToolCallID: callID, Content: string(body)}
}

func errorResult(callID string, err error) ToolResult {
	return ToolResult{ToolCallID: callID, Content: err.Error(), IsError: true}
}
