package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// GetStatus snapshots one thread's current status/budget, whether it is
// still running or long finished — the registry never evicts entries,
// so both reads are served the same way.
func (o *Orchestrator) GetStatus(threadID string) (*ryemodels.ThreadResult, error) {
	e, ok := o.lookup(threadID)
	if !ok {
		return nil, fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	return threadResult(e), nil
}

// ListActive returns every thread currently in a non-terminal status.
func (o *Orchestrator) ListActive() []*ryemodels.ThreadResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var active []*ryemodels.ThreadResult
	for _, e := range o.registry {
		if !isTerminal(e.th.Status) {
			active = append(active, threadResult(e))
		}
	}
	return active
}

// AggregateResults sums cost and token spend across a root thread and
// every descendant reachable through its ChildIDs, read from whatever
// entries are currently in the registry.
func (o *Orchestrator) AggregateResults(rootThreadID string) (cost float64, tokens int, threadCount int, err error) {
	root, ok := o.lookup(rootThreadID)
	if !ok {
		return 0, 0, 0, fmt.Errorf("orchestrator: unknown thread %q", rootThreadID)
	}
	var walk func(e *entry)
	walk = func(e *entry) {
		cost += e.th.Budget.Spend
		tokens += e.th.Budget.Tokens
		threadCount++
		for _, childID := range e.th.ChildIDs {
			if childID == "" {
				continue
			}
			if child, ok := o.lookup(childID); ok {
				walk(child)
			}
		}
	}
	walk(root)
	return cost, tokens, threadCount, nil
}

// GetChain delegates to the chain resolver, returning the leaf-to-primitive
// id sequence for a tool.
func (o *Orchestrator) GetChain(toolID string) ([]string, error) {
	c, err := o.cfg.ChainResolver.Resolve(toolID, o.cfg.Authoring)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(c.Links))
	for i, link := range c.Links {
		ids[i] = link.ID
	}
	return ids, nil
}

// ChainSearch lists tool ids under the configured search roots whose id
// contains query, for a directive that wants to discover a tool by
// category or name before resolving its chain.
func (o *Orchestrator) ChainSearch(query string) ([]string, error) {
	var matches []string
	for _, root := range o.cfg.SearchRoots {
		toolsDir := filepath.Join(root, "tools")
		_ = filepath.WalkDir(toolsDir, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(toolsDir, path)
			if err != nil {
				return nil
			}
			id := strings.TrimSuffix(rel, filepath.Ext(rel))
			id = filepath.ToSlash(id)
			if query == "" || strings.Contains(id, query) {
				matches = append(matches, id)
			}
			return nil
		})
	}
	return matches, nil
}

// ReadTranscript reads back the signed transcript a completed thread's
// run wrote via internal/thread.WriteTranscript.
func (o *Orchestrator) ReadTranscript(threadID string) (string, error) {
	e, ok := o.lookup(threadID)
	if !ok {
		return "", fmt.Errorf("orchestrator: unknown thread %q", threadID)
	}
	if e.th.TranscriptPath == "" {
		return "", fmt.Errorf("orchestrator: thread %q has no persisted transcript", threadID)
	}
	path := filepath.Join(o.cfg.KnowledgeRoot, "knowledge", e.th.TranscriptPath)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript for %q: %w", threadID, err)
	}
	return string(raw), nil
}
