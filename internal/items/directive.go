package items

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// fencedBlockPattern matches the single fenced metadata block under a
// directive's markdown heading: ```yaml ... ``` (or a bare ``` fence).
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:yaml)?\\s*\\n(.*?)\\n```")

// processPattern extracts the <process>...</process> body verbatim; its
// internal <step>/<execute>/... structure is interpreted by the thread
// runtime, not the loader.
var processPattern = regexp.MustCompile(`(?s)<process>(.*?)</process>`)

// rawDirectiveMeta is the YAML shape of a directive's fenced metadata
// block before alias normalization.
type rawDirectiveMeta struct {
	Model       rawModel           `yaml:"model"`
	Limits      map[string]any     `yaml:"limits"`
	Permissions map[string]any     `yaml:"permissions"`
	Inputs      []rawIO            `yaml:"inputs"`
	Outputs     []rawIO            `yaml:"outputs"`
	Context     []rawContext       `yaml:"context"`
	Hooks       []ryemodels.Hook   `yaml:"hooks"`
	Extends     string             `yaml:"extends"`
}

type rawModel struct {
	Tier     string `yaml:"tier"`
	ID       string `yaml:"id"`
	Provider string `yaml:"provider"`
	Fallback string `yaml:"fallback"`
}

type rawIO struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Type     string `yaml:"type"`
}

type rawContext struct {
	KnowledgeID string `yaml:"knowledge_id"`
	Position    string `yaml:"position"`
}

// ParseDirective parses a directive item's signature-stripped content into
// its metadata and process body. It does not resolve `extends`; callers
// needing inheritance use ResolveExtends.
func ParseDirective(content []byte) (*ryemodels.DirectiveMeta, error) {
	m := fencedBlockPattern.FindSubmatch(content)
	if m == nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("no fenced metadata block found"))
	}

	var raw rawDirectiveMeta
	if err := yaml.Unmarshal(m[1], &raw); err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("parse directive metadata: %w", err))
	}

	limits, err := normalizeLimits(raw.Limits)
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation, err)
	}

	process := ""
	if pm := processPattern.FindSubmatch(content); pm != nil {
		process = strings.TrimSpace(string(pm[1]))
	}

	meta := &ryemodels.DirectiveMeta{
		Model: ryemodels.ModelDescriptor{
			Tier:     raw.Model.Tier,
			ID:       raw.Model.ID,
			Provider: raw.Model.Provider,
			Fallback: raw.Model.Fallback,
		},
		Limits:      limits,
		Permissions: toPermissionTree(raw.Permissions),
		Extends:     raw.Extends,
		Process:     process,
		Hooks:       raw.Hooks,
	}
	for _, in := range raw.Inputs {
		meta.Inputs = append(meta.Inputs, ryemodels.InputSpec{Name: in.Name, Required: in.Required, Type: in.Type})
	}
	for _, out := range raw.Outputs {
		meta.Outputs = append(meta.Outputs, ryemodels.OutputSpec{Name: out.Name, Required: out.Required, Type: out.Type})
	}
	for _, c := range raw.Context {
		meta.Context = append(meta.Context, ryemodels.ContextRef{
			KnowledgeID: c.KnowledgeID,
			Position:    ryemodels.ContextPosition(c.Position),
		})
	}
	return meta, nil
}

// normalizeLimits accepts the turns|max_turns, tokens|max_tokens,
// spend|max_spend aliases the spec requires directives be allowed to use
// interchangeably.
func normalizeLimits(raw map[string]any) (ryemodels.Limits, error) {
	var l ryemodels.Limits
	var err error
	if l.Turns, err = firstInt(raw, "turns", "max_turns"); err != nil {
		return l, err
	}
	if l.Tokens, err = firstInt(raw, "tokens", "max_tokens"); err != nil {
		return l, err
	}
	if l.MaxDepth, err = firstInt(raw, "max_depth"); err != nil {
		return l, err
	}
	if l.MaxSpawns, err = firstInt(raw, "max_spawns"); err != nil {
		return l, err
	}
	if l.DurationSeconds, err = firstInt(raw, "duration_seconds"); err != nil {
		return l, err
	}
	if spendRaw, ok := firstPresent(raw, "spend", "max_spend"); ok {
		spend, err := toFloat(spendRaw)
		if err != nil {
			return l, fmt.Errorf("invalid spend limit: %w", err)
		}
		l.Spend = spend
	}
	return l, nil
}

func firstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func firstInt(raw map[string]any, keys ...string) (int, error) {
	v, ok := firstPresent(raw, keys...)
	if !ok {
		return 0, nil
	}
	return toInt(v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported limit value type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value type %T", v)
	}
}

// toPermissionTree converts the YAML-decoded permissions map into a
// PermissionTree, handling both the nested-map form and the "*" sentinel.
func toPermissionTree(raw map[string]any) ryemodels.PermissionTree {
	if raw == nil {
		return nil
	}
	if _, ok := raw["*"]; ok && len(raw) == 1 {
		return ryemodels.PermissionTree{"*": {"*": {"*"}}}
	}
	tree := make(ryemodels.PermissionTree, len(raw))
	for primary, v := range raw {
		itemTypeMap, ok := v.(map[string]any)
		if !ok {
			continue
		}
		tree[primary] = make(map[string][]string, len(itemTypeMap))
		for itemType, patterns := range itemTypeMap {
			tree[primary][itemType] = toStringSlice(patterns)
		}
	}
	return tree
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ExtendsChain walks a directive's extends chain root-first via lookup,
// returning the ordered ancestors (root first, the directive itself last
// is NOT included). Cycle detection mirrors the item resolver's reject-on
// revisit rule.
func ExtendsChain(directiveID string, lookup func(id string) (*ryemodels.DirectiveMeta, error)) ([]*ryemodels.DirectiveMeta, error) {
	var chain []*ryemodels.DirectiveMeta
	seen := map[string]bool{directiveID: true}

	current, err := lookup(directiveID)
	if err != nil {
		return nil, err
	}
	for current.Extends != "" {
		if seen[current.Extends] {
			return nil, ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("extends cycle detected at %q", current.Extends)).WithItem(directiveID)
		}
		seen[current.Extends] = true
		parent, err := lookup(current.Extends)
		if err != nil {
			return nil, err
		}
		chain = append([]*ryemodels.DirectiveMeta{parent}, chain...)
		current = parent
	}
	return chain, nil
}

// MergeInherited applies shallow-override inheritance: fields set on meta
// override the ancestor chain (root first); context items from each
// ancestor append in chain order, followed by meta's own context.
func MergeInherited(chain []*ryemodels.DirectiveMeta, meta *ryemodels.DirectiveMeta) *ryemodels.DirectiveMeta {
	merged := &ryemodels.DirectiveMeta{}
	all := append(append([]*ryemodels.DirectiveMeta{}, chain...), meta)
	for _, m := range all {
		if m.Model.Tier != "" {
			merged.Model = m.Model
		}
		if m.Limits != (ryemodels.Limits{}) {
			merged.Limits = m.Limits
		}
		if m.Permissions != nil {
			merged.Permissions = m.Permissions
		}
		if len(m.Inputs) > 0 {
			merged.Inputs = m.Inputs
		}
		if len(m.Outputs) > 0 {
			merged.Outputs = m.Outputs
		}
		if len(m.Hooks) > 0 {
			merged.Hooks = m.Hooks
		}
		if m.Process != "" {
			merged.Process = m.Process
		}
		merged.Context = append(merged.Context, m.Context...)
	}
	merged.Extends = meta.Extends
	return merged
}
