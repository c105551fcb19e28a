package primitive

import (
	"encoding/json"
	"path/filepath"
	"regexp"

	"github.com/leolilley/ryeos/internal/chain"
)

// Vars is the fixed set of context variables available for template
// substitution in a runtime's command/args/env, per spec.md §4.E.
type Vars struct {
	ToolPath    string
	ToolDir     string
	ToolParent  string
	ProjectPath string
	AnchorPath  string
	RuntimeLib  string
	ParamsJSON  string
	UserSpace   string
	SystemSpace string
}

// SpaceRoots names the user/system space roots exposed to templates as
// {user_space}/{system_space}; the resolver owns the authoritative list,
// this is just the pair the primitive executor needs for substitution.
type SpaceRoots struct {
	UserSpace   string
	SystemSpace string
}

// BuildVars derives the context variable set from a resolved chain's leaf,
// the chain's innermost runtime (if any), the caller's params, the anchor
// resolved for this invocation, and the configured space roots.
func BuildVars(c *chain.Chain, params map[string]any, anchorPath string, projectPath string, roots SpaceRoots) Vars {
	leaf := c.Leaf()
	toolDir := filepath.Dir(leaf.Path)

	var runtimeLib string
	if len(c.Links) > 2 {
		// The element directly above the primitive is the runtime the
		// primitive is invoked through; its directory is the runtime's
		// library root.
		runtimeLib = filepath.Dir(c.Links[len(c.Links)-2].Path)
	}

	paramsJSON, _ := json.Marshal(params)

	return Vars{
		ToolPath:    leaf.Path,
		ToolDir:     toolDir,
		ToolParent:  filepath.Dir(toolDir),
		ProjectPath: projectPath,
		AnchorPath:  anchorPath,
		RuntimeLib:  runtimeLib,
		ParamsJSON:  string(paramsJSON),
		UserSpace:   roots.UserSpace,
		SystemSpace: roots.SystemSpace,
	}
}

// AsMap exposes Vars as a string map for template expansion.
func (v Vars) AsMap() map[string]string {
	return map[string]string{
		"tool_path":    v.ToolPath,
		"tool_dir":     v.ToolDir,
		"tool_parent":  v.ToolParent,
		"project_path": v.ProjectPath,
		"anchor_path":  v.AnchorPath,
		"runtime_lib":  v.RuntimeLib,
		"params_json":  v.ParamsJSON,
		"user_space":   v.UserSpace,
		"system_space": v.SystemSpace,
	}
}

var templateVarPattern = regexp.MustCompile(`\{(\w+)\}`)

// Expand substitutes {var} placeholders in s with values from vars,
// leaving unknown placeholders untouched.
func Expand(s string, vars map[string]string) string {
	return templateVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}
