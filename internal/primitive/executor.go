// Package primitive implements the terminal step of the executor chain:
// parameter validation, context/env composition, dependency verification,
// and subprocess/HTTP invocation of a resolved chain's primitive.
package primitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime/debug"
	"sync"
	"time"

	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Config tunes the executor's concurrency/timeout behavior, grounded on the
// teacher's ExecutorConfig/DefaultExecutorConfig shape. Unlike the teacher,
// this executor has no automatic retry: per spec.md §7, a SubprocessError is
// surfaced to the model as a normal tool result, and retrying is the
// model's prerogative, not the executor's.
type Config struct {
	Concurrency    int
	DefaultTimeout time.Duration
}

// DefaultConfig mirrors the teacher's DefaultExecutorConfig values.
func DefaultConfig() Config {
	return Config{
		Concurrency:    5,
		DefaultTimeout: 30 * time.Second,
	}
}

// Result is the normalized tool-call envelope: {status, type, item_id,
// data|error}.
type Result struct {
	Status string         `json:"status"`
	Type   string         `json:"type"`
	ItemID string         `json:"item_id"`
	Data   map[string]any `json:"data,omitempty"`
}

// Call bundles one invocation's inputs.
type Call struct {
	Chain       *chain.Chain
	Params      map[string]any
	ProjectPath string
	InheritEnv  []string
	Roots       SpaceRoots
}

// Executor runs resolved chains against their terminal primitive,
// semaphore-bounded for parallel tool-call dispatch from the thread loop.
type Executor struct {
	verifier *integrity.Verifier
	config   Config
	sem      chan struct{}
}

// New builds an Executor. A nil config uses DefaultConfig.
func New(verifier *integrity.Verifier, config *Config) *Executor {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	return &Executor{verifier: verifier, config: cfg, sem: make(chan struct{}, cfg.Concurrency)}
}

// ExecuteAll runs several calls concurrently, bounded by Config.Concurrency,
// returning results in the same order as calls — grounded on the teacher's
// Executor.ExecuteAll/ToolExecutor.ExecuteConcurrently fan-out-then-join.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []*Result {
	results := make([]*Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()
			results[idx] = e.executeToResult(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

// Execute runs a single call and returns its normalized result (never a Go
// error for a tool-level failure — those are folded into Result.Status,
// per spec.md §4.E's contract that tool failures are observable results,
// not exceptions). A Go error return is reserved for calls that never
// reached invocation (bad params, missing anchor, verify_deps failure).
func (e *Executor) Execute(ctx context.Context, call Call) (*Result, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.execute(ctx, call)
}

// executeToResult runs a single call and folds any Go error (one that never
// reached invocation) into an error Result, so ExecuteAll's goroutines never
// need to carry a second error channel alongside the results slice.
func (e *Executor) executeToResult(ctx context.Context, call Call) *Result {
	r, err := e.Execute(ctx, call)
	if err != nil {
		return &Result{Status: "error", Type: "tool", ItemID: call.Chain.Leaf().ID,
			Data: map[string]any{"error": err.Error()}}
	}
	return r
}

func (e *Executor) execute(ctx context.Context, call Call) (result *Result, execErr error) {
	leaf := call.Chain.Leaf()
	primitiveItem := call.Chain.Primitive()

	defer func() {
		if r := recover(); r != nil {
			result = &Result{Status: "error", Type: "tool", ItemID: leaf.ID,
				Data: map[string]any{"error": fmt.Sprintf("panic: %v\n%s", r, debug.Stack())}}
			execErr = nil
		}
	}()

	// 1. validate caller params against the leaf's declared schema.
	if err := ValidateParams(leaf.Tool.Config.ParamSchema, call.Params); err != nil {
		return nil, err
	}

	runtimeCfg := innermostRuntimeEnv(call.Chain)

	// 2. resolve the anchor, then build the full context variable set.
	var anchorPath string
	if runtimeCfg != nil && runtimeCfg.Anchor != nil {
		prelimVars := BuildVars(call.Chain, call.Params, "", call.ProjectPath, call.Roots).AsMap()
		root := Expand(runtimeCfg.Anchor.Root, prelimVars)
		resolved, err := ResolveAnchor(runtimeCfg.Anchor, root)
		if err != nil {
			return nil, err
		}
		anchorPath = resolved
	}
	vars := BuildVars(call.Chain, call.Params, anchorPath, call.ProjectPath, call.Roots)
	varsMap := vars.AsMap()
	if runtimeCfg != nil {
		varsMap["interpreter"] = runtimeCfg.Interpreter
	}

	// 3. compose environment.
	env := ComposeEnv(append([]string{}, call.InheritEnv...), runtimeCfg, varsMap, anchorPath)

	// 4. verify_deps sweep.
	if runtimeCfg != nil && runtimeCfg.VerifyDeps.Enabled {
		scopeRoot := verifyDepsScopeRoot(runtimeCfg.VerifyDeps.Scope, vars, anchorPath)
		if err := VerifyDeps(runtimeCfg.VerifyDeps, scopeRoot, e.verifier); err != nil {
			return nil, err
		}
	}

	execCfg := primitiveItem.Tool.Config
	timeout := e.config.DefaultTimeout
	if execCfg.TimeoutSecs > 0 {
		timeout = time.Duration(execCfg.TimeoutSecs) * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw []byte
	var invokeErr error
	switch {
	case execCfg.URL != "":
		raw, invokeErr = invokeHTTP(execCtx, execCfg, varsMap)
	default:
		raw, invokeErr = invokeSubprocess(execCtx, execCfg, varsMap, env, vars.ToolDir)
	}

	data := normalizeOutput(raw, execCfg.ParseJSON, invokeErr)
	status := "success"
	if invokeErr != nil {
		status = "error"
	} else if success, ok := data["success"].(bool); ok && !success {
		status = "error"
	}

	r := &Result{Status: status, Type: "tool", ItemID: leaf.ID, Data: data}
	if execCfg.GraphTool {
		r = unwrapGraphTool(r)
	}
	return r, nil
}

// innermostRuntimeEnv returns the env_config of the chain element adjacent
// to the leaf (the runtime the leaf is invoked through), or nil if the
// chain is a direct leaf-to-primitive mapping with no intermediate
// runtime.
func innermostRuntimeEnv(c *chain.Chain) *ryemodels.EnvConfig {
	if len(c.Links) < 3 {
		return nil
	}
	for _, link := range c.Links[1 : len(c.Links)-1] {
		if link.Tool.Env != nil {
			return link.Tool.Env
		}
	}
	return nil
}

func verifyDepsScopeRoot(scope ryemodels.VerifyDepsScope, vars Vars, anchorPath string) string {
	switch scope {
	case ryemodels.ScopeAnchorSubtree:
		if anchorPath != "" {
			return anchorPath
		}
		return vars.ToolDir
	case ryemodels.ScopeToolSiblings:
		return vars.ToolDir
	case ryemodels.ScopeToolFile:
		return vars.ToolPath
	default: // ScopeToolDir
		return vars.ToolDir
	}
}

func invokeSubprocess(ctx context.Context, cfg ryemodels.ExecConfig, vars map[string]string, env []string, toolDir string) ([]byte, error) {
	if cfg.Command == "" {
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, fmt.Errorf("primitive declares no command"))
	}
	args := make([]string, len(cfg.Args))
	for i, a := range cfg.Args {
		args[i] = Expand(a, vars)
	}
	cwd := Expand(cfg.Cwd, vars)
	if cwd == "" {
		cwd = toolDir
	}

	cmd := exec.CommandContext(ctx, Expand(cfg.Command, vars), args...)
	cmd.Dir = cwd
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, ctx.Err()).WithMessage("execution timed out")
	}
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, err).WithMessage(stderr.String())
	}
	return stdout.Bytes(), nil
}

func invokeHTTP(ctx context.Context, cfg ryemodels.ExecConfig, vars map[string]string) ([]byte, error) {
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	url := Expand(cfg.URL, vars)

	var body io.Reader
	if params, ok := vars["params_json"]; ok && method != http.MethodGet {
		body = bytes.NewBufferString(params)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, ctx.Err()).WithMessage("execution timed out")
		}
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrSubprocess, err)
	}
	if resp.StatusCode >= 400 {
		return raw, ryemodels.NewRyeError(ryemodels.ErrSubprocess,
			fmt.Errorf("http %d", resp.StatusCode)).WithMessage(string(raw))
	}
	return raw, nil
}

func normalizeOutput(raw []byte, parseJSON bool, invokeErr error) map[string]any {
	if invokeErr != nil {
		return map[string]any{"error": invokeErr.Error()}
	}
	if !parseJSON {
		return map[string]any{"output": string(raw)}
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]any{"output": string(raw)}
	}
	return parsed
}

// unwrapGraphTool hoists an inner "data" object to the top level so graph
// edges can reference ${result.stdout} directly, injecting status=error
// into the unwrapped result on inner failure so on_error edges fire.
func unwrapGraphTool(r *Result) *Result {
	inner, ok := r.Data["data"].(map[string]any)
	if !ok {
		return r
	}
	unwrapped := &Result{Status: r.Status, Type: r.Type, ItemID: r.ItemID, Data: inner}
	if r.Status == "error" {
		unwrapped.Data["status"] = "error"
	} else if s, ok := inner["status"].(string); ok && s == "error" {
		unwrapped.Status = "error"
	}
	return unwrapped
}
