package thread

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leolilley/ryeos/internal/capability"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// FixedBundleIDs names the always-present system context items injected
// before any directive-declared context, in this order.
var FixedBundleIDs = []string{
	"rye/agent/identity",
	"rye/agent/behavior",
	"rye/agent/tool-protocol",
	"rye/agent/environment",
	"rye/agent/completion",
}

// PromptVars are the variables injected into the composed system prompt.
type PromptVars struct {
	ProjectPath          string
	Model                string
	Depth                int
	ParentThreadID        string
	SpendLimit           float64
	MaxTurns             int
	CapabilitiesSummary  string
}

// BuildSystemPrompt composes the fixed context bundle, then the
// directive's own <context system="..."> items, then injects the runtime
// variables, per spec.md §4.H step 2.
func BuildSystemPrompt(loader *items.Loader, directive *ryemodels.DirectiveMeta, vars PromptVars, authoring bool) (string, error) {
	var b strings.Builder

	for _, id := range FixedBundleIDs {
		item, err := loader.Load(ryemodels.ItemKnowledge, id, authoring)
		if err != nil {
			return "", err
		}
		b.WriteString(item.Knowledge.Body)
		b.WriteString("\n\n")
	}

	for _, ref := range directive.Context {
		if ref.Position != ryemodels.ContextSystem {
			continue
		}
		item, err := loader.Load(ryemodels.ItemKnowledge, ref.KnowledgeID, authoring)
		if err != nil {
			return "", err
		}
		b.WriteString(item.Knowledge.Body)
		b.WriteString("\n\n")
	}

	b.WriteString(renderVars(vars))
	return b.String(), nil
}

func renderVars(vars PromptVars) string {
	var b strings.Builder
	b.WriteString("## Runtime context\n")
	fmt.Fprintf(&b, "project_path: %s\n", vars.ProjectPath)
	fmt.Fprintf(&b, "model: %s\n", vars.Model)
	fmt.Fprintf(&b, "depth: %d\n", vars.Depth)
	if vars.ParentThreadID != "" {
		fmt.Fprintf(&b, "parent_thread_id: %s\n", vars.ParentThreadID)
	}
	if vars.SpendLimit > 0 {
		fmt.Fprintf(&b, "spend_limit: %s\n", strconv.FormatFloat(vars.SpendLimit, 'f', -1, 64))
	}
	if vars.MaxTurns > 0 {
		fmt.Fprintf(&b, "max_turns: %d\n", vars.MaxTurns)
	}
	fmt.Fprintf(&b, "capabilities_summary: %s\n", vars.CapabilitiesSummary)
	return b.String()
}

// CapabilitiesSummary renders a harness's capability set into the short
// human-readable form injected into the system prompt.
func CapabilitiesSummary(h *capability.Harness) string {
	if h.Capabilities.IsAll() {
		return "ALL"
	}
	caps := make([]string, 0, len(h.Capabilities))
	for c := range h.Capabilities {
		caps = append(caps, c)
	}
	return strings.Join(caps, ", ")
}

// BuildFirstUserMessage renders the directive's process body, attaches
// before-context items, the caller's inputs, and after-context items, per
// spec.md §4.H step 3.
func BuildFirstUserMessage(loader *items.Loader, directive *ryemodels.DirectiveMeta, inputs map[string]any, authoring bool) (string, error) {
	var b strings.Builder

	for _, ref := range directive.Context {
		if ref.Position != ryemodels.ContextBefore {
			continue
		}
		item, err := loader.Load(ryemodels.ItemKnowledge, ref.KnowledgeID, authoring)
		if err != nil {
			return "", err
		}
		b.WriteString(item.Knowledge.Body)
		b.WriteString("\n\n")
	}

	b.WriteString(directive.Process)
	b.WriteString("\n\n")

	if len(inputs) > 0 {
		b.WriteString("## Inputs\n")
	}
	for _, spec := range directive.Inputs {
		if v, ok := inputs[spec.Name]; ok {
			fmt.Fprintf(&b, "%s: %v\n", spec.Name, v)
		} else if spec.Required {
			return "", ryemodels.NewRyeError(ryemodels.ErrValidation,
				fmt.Errorf("missing required input %q", spec.Name))
		}
	}

	for _, ref := range directive.Context {
		if ref.Position != ryemodels.ContextAfter {
			continue
		}
		item, err := loader.Load(ryemodels.ItemKnowledge, ref.KnowledgeID, authoring)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\n")
		b.WriteString(item.Knowledge.Body)
	}

	return b.String(), nil
}
