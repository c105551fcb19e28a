package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// CancelThread asks a running thread to stop: its context is cancelled,
// the thread's loop observes ctx.Done() on its next iteration and
// transitions to cancelled, and its transcript is finalized from
// whatever turn history it already has.
func (o *Orchestrator) CancelThread(threadID string) error {
	e, ok := o.lookup(threadID)
	if !ok {
		return fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	if e.cancel == nil {
		return fmt.Errorf("orchestrator: thread %q has no live cancel function (already finished)", threadID)
	}
	e.cancel()
	return nil
}

// KillThread is cancel's forceful sibling: it cancels the thread's
// context (aborting any in-flight LLM call or subprocess the same way
// cancel does) and immediately marks the thread killed rather than
// waiting for the loop to observe ctx.Done() on its own schedule, since
// a killed thread's caller wants the status to reflect termination now.
func (o *Orchestrator) KillThread(threadID string) error {
	e, ok := o.lookup(threadID)
	if !ok {
		return fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	if e.cancel != nil {
		e.cancel()
	}
	unlock := o.lockParent(e.parentID)
	e.th.Status = ryemodels.StatusKilled
	unlock()
	return nil
}

// WaitThreads blocks until every named thread reaches a terminal
// status or ctx is cancelled. Since Spawn/Invoke/run drive a thread to
// completion synchronously on the calling goroutine, a registered
// entry's thread is already terminal by the time the caller can name
// its id from a prior result — this polls the registry rather than a
// completion channel so it also works for a thread resumed or handed
// off concurrently on another goroutine.
func (o *Orchestrator) WaitThreads(ctx context.Context, threadIDs []string) ([]*ryemodels.ThreadResult, error) {
	results := make([]*ryemodels.ThreadResult, len(threadIDs))
	for i, id := range threadIDs {
		for {
			e, ok := o.lookup(id)
			if !ok {
				return nil, fmt.Errorf("orchestrator: unknown thread %q", id)
			}
			if isTerminal(e.th.Status) {
				results[i] = threadResult(e)
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(25 * time.Millisecond):
			}
		}
	}
	return results, nil
}

func isTerminal(s ryemodels.ThreadStatus) bool {
	switch s {
	case ryemodels.StatusCompleted, ryemodels.StatusFailed, ryemodels.StatusEscalated,
		ryemodels.StatusCancelled, ryemodels.StatusKilled, ryemodels.StatusAwaitingHandoff:
		return true
	default:
		return false
	}
}

// HandoffThread suspends a running thread by cancelling its context
// (same as CancelThread), records message as the pending handoff message,
// and marks the thread awaiting_handoff. A loop that is still running
// records cancelled when it next sees ctx.Done(); ResumeThread below
// accepts either status and falls back to the pending message when it is
// called with an empty one.
func (o *Orchestrator) HandoffThread(threadID, message string) error {
	e, ok := o.lookup(threadID)
	if !ok {
		return fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	if e.cancel != nil {
		e.cancel()
	}
	unlock := o.lockParent(e.parentID)
	e.th.Status = ryemodels.StatusAwaitingHandoff
	e.th.PendingHandoffMessage = message
	unlock()
	return nil
}

// ResumeThread re-opens a completed, escalated, cancelled, or
// awaiting_handoff thread: it rehydrates a Runtime around the thread's
// existing state (preserving its id, budget, and capabilities) and
// appends message as a new user turn before re-entering the loop.
func (o *Orchestrator) ResumeThread(ctx context.Context, threadID, message string) (*ryemodels.ThreadResult, error) {
	e, ok := o.lookup(threadID)
	if !ok {
		return nil, fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	if !isTerminal(e.th.Status) {
		return nil, fmt.Errorf("orchestrator: thread %q is still running, cannot resume", threadID)
	}

	directiveItem, err := o.cfg.Loader.Load(ryemodels.ItemDirective, e.th.DirectiveID, o.cfg.Authoring)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	unlock := o.lockParent(e.parentID)
	e.cancel = cancel
	unlock()

	rt := o.wrapRuntime(e)
	if message == "" {
		message = e.th.PendingHandoffMessage
	}
	return rt.Resume(runCtx, directiveItem.Directive, message)
}
