package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/capability"
	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/internal/primitive"
	"github.com/leolilley/ryeos/internal/resolver"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// fakeProvider replays a fixed sequence of turns: each call to Complete
// pops the next scripted turn and streams it as chunks.
type fakeProvider struct {
	turns []scriptedTurn
	n     int
}

type scriptedTurn struct {
	text             string
	toolCalls        []ToolCall
	promptTokens     int
	completionTokens int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	turn := p.turns[p.n]
	p.n++
	ch := make(chan *CompletionChunk, len(turn.toolCalls)+2)
	if turn.text != "" {
		ch <- &CompletionChunk{Text: turn.text}
	}
	for i := range turn.toolCalls {
		tc := turn.toolCalls[i]
		ch <- &CompletionChunk{ToolCall: &tc}
	}
	ch <- &CompletionChunk{Done: true, PromptTokens: turn.promptTokens, CompletionTokens: turn.completionTokens}
	close(ch)
	return ch, nil
}

func newTestLoader(t *testing.T) (*items.Loader, string) {
	root := t.TempDir()
	res := resolver.New([]resolver.SpaceRoot{
		{Space: ryemodels.SpaceSystem, Root: root},
	}, nil)
	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	return items.New(res, verifier), root
}

func writeKnowledge(t *testing.T, root, id, body string) {
	t.Helper()
	path := filepath.Join(root, "knowledge", id+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "---\nid: " + id + "\ntitle: t\ncategory: c\nversion: 1.0.0\nauthor: a\ncreated_at: 2026-01-01\n---\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func baseDirective(process string) *ryemodels.DirectiveMeta {
	return &ryemodels.DirectiveMeta{
		Model:  ryemodels.ModelDescriptor{Tier: "standard"},
		Limits: ryemodels.Limits{Turns: 10, Tokens: 100000, Spend: 5.0},
		Process: process,
	}
}

func seedFixedBundle(t *testing.T, root string) {
	for _, id := range FixedBundleIDs {
		writeKnowledge(t, root, id, "bundle: "+id)
	}
}

func TestBuildSystemPrompt_ComposesFixedBundleThenDirectiveContextThenVars(t *testing.T) {
	loader, root := newTestLoader(t)
	seedFixedBundle(t, root)
	writeKnowledge(t, root, "proj/sys-note", "extra system context")

	directive := baseDirective("do the thing")
	directive.Context = []ryemodels.ContextRef{{KnowledgeID: "proj/sys-note", Position: ryemodels.ContextSystem}}

	prompt, err := BuildSystemPrompt(loader, directive, PromptVars{
		ProjectPath: "/work", Model: "standard", Depth: 0,
		CapabilitiesSummary: "ALL",
	}, true)
	require.NoError(t, err)
	require.Contains(t, prompt, "bundle: rye/agent/identity")
	require.Contains(t, prompt, "extra system context")
	require.Contains(t, prompt, "project_path: /work")
	require.Contains(t, prompt, "capabilities_summary: ALL")
}

func TestBuildFirstUserMessage_RendersProcessInputsAndContext(t *testing.T) {
	loader, root := newTestLoader(t)
	writeKnowledge(t, root, "proj/before-note", "before text")
	writeKnowledge(t, root, "proj/after-note", "after text")

	directive := baseDirective("<process>do it</process>")
	directive.Context = []ryemodels.ContextRef{
		{KnowledgeID: "proj/before-note", Position: ryemodels.ContextBefore},
		{KnowledgeID: "proj/after-note", Position: ryemodels.ContextAfter},
	}
	directive.Inputs = []ryemodels.InputSpec{{Name: "target", Required: true}}

	msg, err := BuildFirstUserMessage(loader, directive, map[string]any{"target": "repo.git"}, true)
	require.NoError(t, err)
	require.Contains(t, msg, "before text")
	require.Contains(t, msg, "<process>do it</process>")
	require.Contains(t, msg, "target: repo.git")
	require.Contains(t, msg, "after text")
}

func TestBuildFirstUserMessage_MissingRequiredInputErrors(t *testing.T) {
	loader, _ := newTestLoader(t)
	directive := baseDirective("<process>x</process>")
	directive.Inputs = []ryemodels.InputSpec{{Name: "target", Required: true}}

	_, err := BuildFirstUserMessage(loader, directive, nil, true)
	require.Error(t, err)
}

func TestEvaluateHooks_MatchesNumericAndStringComparisons(t *testing.T) {
	hooks := []ryemodels.Hook{
		{When: "cost.current > 0.4", Action: "warn"},
		{When: "error.type == permission_denied", Action: "abort"},
		{When: "cost.current > 999", Action: "never"},
	}
	matched := EvaluateHooks(hooks, HookContext{CostCurrent: 0.5, ErrorType: "permission_denied"})
	require.Len(t, matched, 2)
	require.Equal(t, "warn", matched[0].Action)
	require.Equal(t, "abort", matched[1].Action)
}

func TestDispatch_DeniesWhenCapabilityNotGranted(t *testing.T) {
	loader, _ := newTestLoader(t)
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: ryemodels.NewCapabilitySet()},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "tool", ItemID: "git/commit"})
	res := rt.dispatch(context.Background(), ToolCall{ID: "1", Name: "rye_execute", Input: input})
	require.True(t, res.IsError)
	require.Contains(t, res.Content, "not granted")
}

func TestDispatch_RetrievesKnowledgeWhenPermitted(t *testing.T) {
	loader, root := newTestLoader(t)
	writeKnowledge(t, root, "proj/readme", "hello world")

	caps := ryemodels.NewCapabilitySet(ryemodels.BuildCapability("execute", ryemodels.ItemKnowledge, "proj/readme"))
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: caps},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "knowledge", ItemID: "proj/readme"})
	res := rt.dispatch(context.Background(), ToolCall{ID: "1", Name: "rye_execute", Input: input})
	require.False(t, res.IsError)
	require.Equal(t, "hello world", res.Content)
}

func writeDirectiveFile(t *testing.T, root, id string) {
	t.Helper()
	path := filepath.Join(root, "directives", id+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "# " + id + "\n\n```yaml\n" +
		"model:\n  tier: standard\n" +
		"limits:\n  turns: 10\n  tokens: 100000\n  spend: 5\n" +
		"permissions:\n  \"*\": \"*\"\n" +
		"```\n\n<process>\ndo it\n</process>\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDispatch_SearchOnDirectiveResolvesWithoutSpawning(t *testing.T) {
	loader, root := newTestLoader(t)
	writeDirectiveFile(t, root, "proj/greet")

	caps := ryemodels.NewCapabilitySet(ryemodels.BuildCapability("search", ryemodels.ItemDirective, "proj/greet"))
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: caps},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "directive", ItemID: "proj/greet"})
	res := rt.dispatch(context.Background(), ToolCall{ID: "1", Name: "rye_search", Input: input})
	require.False(t, res.IsError)
	require.Contains(t, res.Content, "proj/greet")
	require.Contains(t, res.Content, "directives")
}

func TestDispatch_LoadOnDirectiveReturnsParsedMetadata(t *testing.T) {
	loader, root := newTestLoader(t)
	writeDirectiveFile(t, root, "proj/greet")

	caps := ryemodels.NewCapabilitySet(ryemodels.BuildCapability("load", ryemodels.ItemDirective, "proj/greet"))
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: caps},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "directive", ItemID: "proj/greet"})
	res := rt.dispatch(context.Background(), ToolCall{ID: "1", Name: "rye_load", Input: input})
	require.False(t, res.IsError)
	require.Contains(t, res.Content, `"directive"`)
}

func TestDispatch_SearchCapabilityAloneCannotSpawnDirective(t *testing.T) {
	loader, root := newTestLoader(t)
	writeDirectiveFile(t, root, "proj/greet")

	// Only "search" is granted, never "execute" — a thread with nothing
	// but search/load capability must not be able to spawn full execution
	// of the directive just by calling rye_execute.
	caps := ryemodels.NewCapabilitySet(ryemodels.BuildCapability("search", ryemodels.ItemDirective, "proj/greet"))
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: caps},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "directive", ItemID: "proj/greet"})
	res := rt.dispatch(context.Background(), ToolCall{ID: "1", Name: "rye_execute", Input: input})
	require.True(t, res.IsError)
	require.Contains(t, res.Content, "not granted")
}

func TestDispatchAll_JoinsResultsInOriginalEmissionOrder(t *testing.T) {
	loader, root := newTestLoader(t)
	ids := []string{"proj/alpha", "proj/beta", "proj/gamma", "proj/delta", "proj/epsilon"}
	caps := make([]string, 0, len(ids))
	for _, id := range ids {
		writeKnowledge(t, root, id, "body-"+id)
		caps = append(caps, ryemodels.BuildCapability("execute", ryemodels.ItemKnowledge, id))
	}

	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: ryemodels.NewCapabilitySet(caps...)},
	}

	calls := make([]ToolCall, len(ids))
	for i, id := range ids {
		input, _ := json.Marshal(dispatchRequest{ItemType: "knowledge", ItemID: id})
		calls[i] = ToolCall{ID: fmt.Sprintf("call-%d", i), Name: "rye_execute", Input: input}
	}

	results := rt.dispatchAll(context.Background(), calls)
	require.Len(t, results, len(ids))
	for i, id := range ids {
		require.False(t, results[i].IsError, "call %d (%s)", i, id)
		require.Equal(t, "body-"+id, results[i].Content, "result %d out of order", i)
		require.Equal(t, calls[i].ID, results[i].ToolCallID)
	}
}

func TestDispatchAll_SingleCallSkipsGoroutineFanOut(t *testing.T) {
	loader, root := newTestLoader(t)
	writeKnowledge(t, root, "proj/readme", "hello world")

	caps := ryemodels.NewCapabilitySet(ryemodels.BuildCapability("execute", ryemodels.ItemKnowledge, "proj/readme"))
	rt := &Runtime{
		cfg:     Config{Loader: loader, Authoring: true},
		thread:  &ryemodels.Thread{Budget: ryemodels.Budget{Limits: ryemodels.Limits{Spend: 1}}},
		harness: &capability.Harness{Capabilities: caps},
	}

	input, _ := json.Marshal(dispatchRequest{ItemType: "knowledge", ItemID: "proj/readme"})
	calls := []ToolCall{{ID: "1", Name: "rye_execute", Input: input}}
	results := rt.dispatchAll(context.Background(), calls)
	require.Len(t, results, 1)
	require.False(t, results[0].IsError)
	require.Equal(t, "hello world", results[0].Content)
}

func TestRun_CompletesWhenModelStopsCallingTools(t *testing.T) {
	loader, root := newTestLoader(t)
	seedFixedBundle(t, root)

	directive := baseDirective("<process>say hi</process>")
	provider := &fakeProvider{turns: []scriptedTurn{
		{text: "hello there", promptTokens: 10, completionTokens: 5},
	}}

	rt := New(Config{
		Provider:      provider,
		Loader:        loader,
		ChainResolver: chain.New(loader),
		Primitive:     newPrimitiveExecutor(t),
		Authoring:     true,
		MaxIterations: 5,
	}, directive, "proj/greet", nil, nil, ryemodels.NewCapabilitySet(ryemodels.CapAll), ryemodels.Limits{}, "")

	result, err := rt.Run(context.Background(), directive)
	require.NoError(t, err)
	require.Equal(t, ryemodels.StatusCompleted, result.Status)
	require.Equal(t, 1, result.Turns)
}

func TestRun_EscalatesWhenSpendLimitExhausted(t *testing.T) {
	loader, root := newTestLoader(t)
	seedFixedBundle(t, root)

	directive := baseDirective("<process>keep going</process>")
	directive.Limits = ryemodels.Limits{Turns: 100, Tokens: 100000, Spend: 0.00001}
	provider := &fakeProvider{turns: []scriptedTurn{
		{text: "still working", promptTokens: 100000, completionTokens: 100000},
	}}

	rt := New(Config{
		Provider:      provider,
		Loader:        loader,
		ChainResolver: chain.New(loader),
		Primitive:     newPrimitiveExecutor(t),
		Authoring:     true,
		MaxIterations: 5,
	}, directive, "proj/loop", nil, nil, ryemodels.NewCapabilitySet(ryemodels.CapAll), ryemodels.Limits{}, "")

	result, err := rt.Run(context.Background(), directive)
	require.NoError(t, err)
	require.Equal(t, ryemodels.StatusEscalated, result.Status)
}

func newPrimitiveExecutor(t *testing.T) *primitive.Executor {
	t.Helper()
	v := integrity.NewVerifier(integrity.NewStore(nil), nil)
	return primitive.New(v, nil)
}
