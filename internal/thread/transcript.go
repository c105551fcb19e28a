package thread

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// transcriptMarker is the comment marker used to sign transcript
// knowledge entries, matching the convention other markdown knowledge
// items in this tree use for their signature line.
const transcriptMarker = "<!--"

// WriteTranscript renders a thread's turn history as a knowledge item,
// signs it, and persists it to
// .ai/knowledge/agent/threads/<category>/<thread_id>.md, per spec.md §6's
// thread-result envelope contract. It sets thread.TranscriptPath on
// success.
func WriteTranscript(root string, th *ryemodels.Thread, priv ed25519.PrivateKey, now time.Time) (string, error) {
	category := categoryForTranscript(th.DirectiveID)
	rel := filepath.Join("knowledge", "agent", "threads", category, th.ThreadID+".md")
	path := filepath.Join(root, rel)

	unsigned := renderTranscript(th, category, now)
	signed, _ := integrity.SignContent(unsigned, transcriptMarker, priv, now)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("create transcript dir: %w", err))
	}
	if err := os.WriteFile(path, signed, 0o644); err != nil {
		return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("write transcript: %w", err))
	}

	th.TranscriptPath = filepath.Join("agent", "threads", category, th.ThreadID+".md")
	return path, nil
}

func categoryForTranscript(directiveID string) string {
	if idx := strings.IndexByte(directiveID, '/'); idx >= 0 {
		return directiveID[:idx]
	}
	if directiveID == "" {
		return "uncategorized"
	}
	return directiveID
}

func renderTranscript(th *ryemodels.Thread, category string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "id: agent/threads/%s/%s\n", category, th.ThreadID)
	fmt.Fprintf(&b, "title: thread %s\n", th.ThreadID)
	fmt.Fprintf(&b, "category: %s\n", category)
	fmt.Fprintf(&b, "version: 1.0.0\n")
	fmt.Fprintf(&b, "author: rye-system\n")
	fmt.Fprintf(&b, "created_at: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "---\n\n")

	fmt.Fprintf(&b, "# Thread %s\n\n", th.ThreadID)
	fmt.Fprintf(&b, "- directive: %s\n", th.DirectiveID)
	fmt.Fprintf(&b, "- parent_thread_id: %s\n", th.ParentThreadID)
	fmt.Fprintf(&b, "- depth: %d\n", th.Depth)
	fmt.Fprintf(&b, "- status: %s\n", th.Status)
	fmt.Fprintf(&b, "- cost_total: %g\n", th.CostTotal)
	fmt.Fprintf(&b, "- turn_count: %d\n", th.TurnCount)
	fmt.Fprintf(&b, "- spawn_count: %d\n\n", th.SpawnCount)

	b.WriteString("## Turns\n\n")
	for _, turn := range th.TurnHistory {
		fmt.Fprintf(&b, "### %s (%s)\n\n", turn.Role, turn.At.Format(time.RFC3339))
		if turn.ToolCallName != "" {
			fmt.Fprintf(&b, "tool: %s\ninput: %s\n\n", turn.ToolCallName, turn.ToolCallInput)
		}
		if turn.Content != "" {
			b.WriteString(turn.Content)
			b.WriteString("\n\n")
		}
		if turn.Cost > 0 {
			fmt.Fprintf(&b, "_cost: %g, prompt_tokens: %d, output_tokens: %d_\n\n", turn.Cost, turn.PromptTokens, turn.OutputTokens)
		}
	}

	for _, h := range th.FiredHooks {
		fmt.Fprintf(&b, "hook fired: %q -> %s at %s\n", h.When, h.Action, h.At.Format(time.RFC3339))
	}

	return []byte(b.String())
}
