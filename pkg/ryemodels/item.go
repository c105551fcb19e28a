// Package ryemodels defines the core data types shared across Rye OS:
// items (directives, tools, knowledge), spaces, capabilities, and threads.
package ryemodels

import "time"

// ItemType identifies the kind of signed item on disk.
type ItemType string

const (
	ItemDirective ItemType = "directive"
	ItemTool      ItemType = "tool"
	ItemKnowledge ItemType = "knowledge"
)

// Space identifies where an item was resolved from.
type Space string

const (
	SpaceProject Space = "project"
	SpaceUser    Space = "user"
	SpaceSystem  Space = "system"
)

// Precedence returns the resolution/chain precedence for a space:
// project=3, user=2, system=1. Higher precedence may depend on lower,
// never the reverse.
func (s Space) Precedence() int {
	switch s {
	case SpaceProject:
		return 3
	case SpaceUser:
		return 2
	case SpaceSystem:
		return 1
	default:
		return 0
	}
}

// Item is a file in one of the three item types, identified by a
// slash-separated id unique within its type.
type Item struct {
	ID       string   `json:"id"`
	Type     ItemType `json:"type"`
	Category string   `json:"category"`
	Version  string   `json:"version"`
	Space    Space    `json:"space"`
	BundleID string   `json:"bundle_id,omitempty"`

	Path string `json:"path"`

	// RawContent is the full file content including the signature line.
	RawContent []byte `json:"-"`
	// ContentWithoutSig is RawContent with the authoritative signed-comment
	// line removed; this is what integrity hashing and ed25519 signing
	// operate over.
	ContentWithoutSig []byte `json:"-"`

	Signature *SignatureLine `json:"signature,omitempty"`

	Directive *DirectiveMeta `json:"directive,omitempty"`
	Tool      *ToolMeta      `json:"tool,omitempty"`
	Knowledge *KnowledgeMeta `json:"knowledge,omitempty"`
}

// SignatureLine is the parsed form of:
// <comment> rye:signed:<iso8601-Z>:<sha256-hex>:<base64url-ed25519>:<key-fp-16hex>
type SignatureLine struct {
	Timestamp   time.Time
	ContentHash string
	Signature   string
	KeyFP       string
	Raw         string
}

// Limits are a directive's budgets, normalized across the accepted aliases
// (turns|max_turns, tokens|max_tokens, spend|max_spend, duration_seconds).
type Limits struct {
	Turns           int     `json:"turns"`
	Tokens          int     `json:"tokens"`
	Spend           float64 `json:"spend"`
	DurationSeconds int     `json:"duration_seconds"`
	MaxDepth        int     `json:"max_depth"`
	MaxSpawns       int     `json:"max_spawns"`
}

// ModelDescriptor names the model a directive wants.
type ModelDescriptor struct {
	Tier     string `json:"tier"`
	ID       string `json:"id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// ContextPosition is where a knowledge item is injected relative to the
// directive's process.
type ContextPosition string

const (
	ContextSystem ContextPosition = "system"
	ContextBefore ContextPosition = "before"
	ContextAfter  ContextPosition = "after"
)

// ContextRef references a knowledge item to inject at a given position.
type ContextRef struct {
	KnowledgeID string          `json:"knowledge_id"`
	Position    ContextPosition `json:"position"`
}

// Hook pairs a when-expression with an action to run on match.
type Hook struct {
	When   string `json:"when"`
	Action string `json:"action"`
}

// InputSpec / OutputSpec declare a directive's expected inputs/outputs.
type InputSpec struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     string `json:"type,omitempty"`
}

type OutputSpec struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     string `json:"type,omitempty"`
}

// PermissionTree is the parsed <permissions> XML: primary action -> item
// type -> list of dotted-id patterns. The sentinel value ALL (sentinel
// "*") collapses to the distinguished capability set {"ALL"}.
type PermissionTree map[string]map[string][]string

// DirectiveMeta is the parsed metadata block of a directive item.
type DirectiveMeta struct {
	Model       ModelDescriptor `json:"model"`
	Limits      Limits          `json:"limits"`
	Permissions PermissionTree  `json:"permissions"`
	Inputs      []InputSpec     `json:"inputs,omitempty"`
	Outputs     []OutputSpec    `json:"outputs,omitempty"`
	Context     []ContextRef    `json:"context,omitempty"`
	Hooks       []Hook          `json:"hooks,omitempty"`
	Extends     string          `json:"extends,omitempty"`
	Process     string          `json:"process"`
}

// ToolType distinguishes the tiers of the executor chain.
type ToolType string

const (
	ToolPrimitive ToolType = "primitive"
	ToolRuntime   ToolType = "runtime"
	ToolScript    ToolType = "script"
	ToolLibrary   ToolType = "library"
)

// AnchorMode controls how strictly the anchor directory must be found.
type AnchorMode string

const (
	AnchorAlways AnchorMode = "always"
	AnchorAuto   AnchorMode = "auto"
)

// AnchorConfig configures upward directory search for a runtime's module
// resolution root.
type AnchorConfig struct {
	Root       string     `json:"root"`
	MarkersAny []string   `json:"markers_any"`
	Mode       AnchorMode `json:"mode"`
}

// VerifyDepsScope names the subtree a runtime's dependency-verification
// walk covers.
type VerifyDepsScope string

const (
	ScopeAnchorSubtree VerifyDepsScope = "anchor_subtree"
	ScopeToolDir       VerifyDepsScope = "tool_dir"
	ScopeToolSiblings  VerifyDepsScope = "tool_siblings"
	ScopeToolFile      VerifyDepsScope = "tool_file"
)

// VerifyDepsConfig configures the integrity sweep a runtime performs
// before invoking a leaf tool through it.
type VerifyDepsConfig struct {
	Enabled      bool            `json:"enabled"`
	Scope        VerifyDepsScope `json:"scope"`
	Extensions   []string        `json:"extensions,omitempty"`
	ExcludeDirs  []string        `json:"exclude_dirs,omitempty"`
}

// EnvConfig configures interpreter resolution, static env, anchor, and
// dependency verification for a runtime tool.
type EnvConfig struct {
	Interpreter string            `json:"interpreter,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	EnvPaths    []string          `json:"env_paths,omitempty"`
	Anchor      *AnchorConfig     `json:"anchor,omitempty"`
	VerifyDeps  VerifyDepsConfig  `json:"verify_deps"`
}

// ExecConfig is the subprocess/http invocation shape for a primitive.
type ExecConfig struct {
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	URL         string            `json:"url,omitempty"`
	Method      string            `json:"method,omitempty"`
	TimeoutSecs int               `json:"timeout_seconds"`
	Cwd         string            `json:"cwd,omitempty"`
	ParseJSON   bool              `json:"parse_json"`
	GraphTool   bool              `json:"graph_tool,omitempty"`
	ParamSchema map[string]any    `json:"param_schema,omitempty"`
}

// ToolMeta is the parsed metadata of a tool item.
type ToolMeta struct {
	ToolType     ToolType   `json:"tool_type"`
	ExecutorID   string     `json:"executor_id,omitempty"`
	Description  string     `json:"description"`
	Env          *EnvConfig `json:"env_config,omitempty"`
	Config       ExecConfig `json:"config"`
	AcceptedArgs []string   `json:"accepted_params,omitempty"`
}

// KnowledgeMeta is the parsed YAML frontmatter of a knowledge item.
type KnowledgeMeta struct {
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`
}
