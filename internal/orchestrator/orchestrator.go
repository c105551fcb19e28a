// Package orchestrator implements the thread registry: spawn, wait,
// cancel, kill, resume, handoff, and the read-side queries over running
// and completed threads. It is the only package that constructs
// internal/thread.Runtime instances, so it is also the thread.Spawner
// directive-type tool calls dispatch through.
package orchestrator

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/leolilley/ryeos/internal/audit"
	"github.com/leolilley/ryeos/internal/budget"
	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/internal/primitive"
	"github.com/leolilley/ryeos/internal/thread"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// entry is one thread's registry record: its mutable state, the ledger
// that backs its budget, and the machinery needed to cancel/kill it.
type entry struct {
	th       *ryemodels.Thread
	ledger   *budget.Ledger
	cancel   context.CancelFunc
	parentID string
}

// Config bundles the dependencies every spawned thread.Runtime shares.
type Config struct {
	Provider      thread.Provider
	Loader        *items.Loader
	ChainResolver *chain.Resolver
	Primitive     *primitive.Executor
	ProjectPath   string
	SpaceRoots    primitive.SpaceRoots
	Authoring     bool
	MaxIterations int
	SigningKey    ed25519.PrivateKey
	KnowledgeRoot string
	// SearchRoots are the space roots ChainSearch walks to discover tool
	// ids by substring; the resolver owns authoritative item lookup, this
	// is only used for chain_search's "browse by category" query.
	SearchRoots []string
	// Audit records capability denials, chain resolution failures, and
	// budget escalations across every thread this orchestrator runs.
	Audit *audit.Log
}

// parentLock is a reference-counted mutex for one parent thread id,
// grounded on the teacher's Runtime.lockSession: writes to one parent's
// registry slice (spawn, status transition, cost cascade) are serialized,
// while reads over the whole registry take only the registry's read lock
// (they are not lock-free).
type parentLock struct {
	mu   sync.Mutex
	refs int
}

// Orchestrator owns the thread registry and every running thread's cancel
// function.
type Orchestrator struct {
	cfg Config

	mu       sync.RWMutex
	registry map[string]*entry

	locksMu sync.Mutex
	locks   map[string]*parentLock
}

// New builds an Orchestrator over the given shared dependencies.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: make(map[string]*entry),
		locks:    make(map[string]*parentLock),
	}
}

func (o *Orchestrator) lockParent(parentID string) func() {
	if parentID == "" {
		parentID = "__root__"
	}
	o.locksMu.Lock()
	l := o.locks[parentID]
	if l == nil {
		l = &parentLock{}
		o.locks[parentID] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs <= 0 {
			delete(o.locks, parentID)
		}
		o.locksMu.Unlock()
	}
}

func (o *Orchestrator) register(e *entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registry[e.th.ThreadID] = e
}

func (o *Orchestrator) lookup(threadID string) (*entry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.registry[threadID]
	return e, ok
}

// Invoke runs a root-level directive invocation (no parent thread),
// granted the given capability set, to completion.
func (o *Orchestrator) Invoke(ctx context.Context, directiveID string, inputs map[string]any, caps ryemodels.CapabilitySet, limitOverrides ryemodels.Limits, modelOverride string) (*ryemodels.ThreadResult, error) {
	return o.run(ctx, directiveID, inputs, nil, caps, limitOverrides, modelOverride)
}

// Spawn implements thread.Spawner: it is how a running thread dispatches
// a directive-type tool call as a synchronous child invocation.
func (o *Orchestrator) Spawn(ctx context.Context, directiveID string, inputs map[string]any, parent *ryemodels.Thread) (*ryemodels.ThreadResult, error) {
	if parent == nil {
		return nil, fmt.Errorf("orchestrator: Spawn requires a parent thread")
	}

	unlock := o.lockParent(parent.ThreadID)
	childDepth := parent.Depth + 1
	if parent.Budget.Limits.MaxDepth > 0 && childDepth > parent.Budget.Limits.MaxDepth {
		unlock()
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation,
			fmt.Errorf("max depth %d exceeded spawning from thread %s", parent.Budget.Limits.MaxDepth, parent.ThreadID))
	}
	if parent.Budget.Limits.MaxSpawns > 0 && parent.SpawnCount >= parent.Budget.Limits.MaxSpawns {
		unlock()
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation,
			fmt.Errorf("max spawns %d exceeded for thread %s", parent.Budget.Limits.MaxSpawns, parent.ThreadID))
	}
	parent.SpawnCount++
	parent.ChildIDs = append(parent.ChildIDs, "")
	childSlot := len(parent.ChildIDs) - 1
	unlock()

	result, err := o.run(ctx, directiveID, inputs, parent, parent.Capabilities, ryemodels.Limits{}, "")

	unlock = o.lockParent(parent.ThreadID)
	if result != nil {
		parent.ChildIDs[childSlot] = result.ThreadID
	}
	if parentEntry, ok := o.lookup(parent.ThreadID); ok && result != nil {
		if childEntry, ok := o.lookup(result.ThreadID); ok {
			spend, tokens := childEntry.ledger.SpendForCascade()
			parentEntry.ledger.CascadeChildSpend(spend, tokens)
		}
	}
	unlock()

	return result, err
}

// run builds and drives one thread.Runtime to completion, registering it
// for the duration of the run so Cancel/Kill/GetStatus can observe it.
func (o *Orchestrator) run(ctx context.Context, directiveID string, inputs map[string]any, parentThread *ryemodels.Thread, parentCaps ryemodels.CapabilitySet, limitOverrides ryemodels.Limits, modelOverride string) (*ryemodels.ThreadResult, error) {
	directiveItem, err := o.cfg.Loader.Load(ryemodels.ItemDirective, directiveID, o.cfg.Authoring)
	if err != nil {
		return nil, err
	}
	directive := directiveItem.Directive

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt := thread.New(thread.Config{
		Provider:      o.cfg.Provider,
		Loader:        o.cfg.Loader,
		ChainResolver: o.cfg.ChainResolver,
		Primitive:     o.cfg.Primitive,
		Spawner:       o,
		ProjectPath:   o.cfg.ProjectPath,
		SpaceRoots:    o.cfg.SpaceRoots,
		Authoring:     o.cfg.Authoring,
		MaxIterations: o.cfg.MaxIterations,
		SigningKey:    o.cfg.SigningKey,
		KnowledgeRoot: o.cfg.KnowledgeRoot,
		Audit:         o.cfg.Audit,
	}, directive, directiveID, inputs, parentThread, parentCaps, limitOverrides, modelOverride)

	e := &entry{th: rt.Thread(), ledger: rt.Ledger(), cancel: cancel}
	if parentThread != nil {
		e.parentID = parentThread.ThreadID
	}
	o.register(e)

	return rt.Run(runCtx, directive)
}

// wrapRuntime rebuilds a thread.Runtime around an already-registered
// entry's state, for resume_thread to continue without reinitializing
// the thread's id, budget, or capabilities.
func (o *Orchestrator) wrapRuntime(e *entry) *thread.Runtime {
	return thread.Wrap(thread.Config{
		Provider:      o.cfg.Provider,
		Loader:        o.cfg.Loader,
		ChainResolver: o.cfg.ChainResolver,
		Primitive:     o.cfg.Primitive,
		Spawner:       o,
		ProjectPath:   o.cfg.ProjectPath,
		SpaceRoots:    o.cfg.SpaceRoots,
		Authoring:     o.cfg.Authoring,
		MaxIterations: o.cfg.MaxIterations,
		SigningKey:    o.cfg.SigningKey,
		KnowledgeRoot: o.cfg.KnowledgeRoot,
		Audit:         o.cfg.Audit,
	}, e.th, e.ledger)
}

// ListAll returns a snapshot of every thread this orchestrator has ever
// run, running or terminal, in unspecified (map iteration) order. See
// query.go's ListActive for the non-terminal subset a "ps"-style listing
// usually wants.
func (o *Orchestrator) ListAll() []*ryemodels.ThreadResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	results := make([]*ryemodels.ThreadResult, 0, len(o.registry))
	for _, e := range o.registry {
		results = append(results, threadResult(e))
	}
	return results
}

// threadResult snapshots a registry entry into the envelope callers see.
func threadResult(e *entry) *ryemodels.ThreadResult {
	return &ryemodels.ThreadResult{
		ThreadID: e.th.ThreadID,
		Status:   e.th.Status,
		Cost:     e.th.Budget.Spend,
		Tokens:   e.th.Budget.Tokens,
		Turns:    e.th.Budget.Turns,
		Duration: time.Since(e.th.Budget.WallStart),
	}
}
