// Package chain resolves and validates an executor chain: the walk from a
// leaf tool through zero or more runtimes down to a terminal primitive,
// enforcing the space-precedence and schema-compatibility invariants
// between each adjacent pair.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Chain is the ordered resolution [leaf, ..., primitive].
type Chain struct {
	Links []*ryemodels.Item
}

// Leaf returns the first (tool-facing) element.
func (c *Chain) Leaf() *ryemodels.Item { return c.Links[0] }

// Primitive returns the terminal element.
func (c *Chain) Primitive() *ryemodels.Item { return c.Links[len(c.Links)-1] }

type cacheEntry struct {
	chain  *Chain
	hashes []string
}

// Resolver walks and validates executor chains, caching the result by leaf
// id with per-element content-hash fingerprints.
type Resolver struct {
	mu     sync.RWMutex
	loader *items.Loader
	cache  map[string]cacheEntry
}

// New builds a chain Resolver over an item loader.
func New(loader *items.Loader) *Resolver {
	return &Resolver{loader: loader, cache: make(map[string]cacheEntry)}
}

// Resolve returns the validated executor chain for a leaf tool id,
// authoring indicating whether signature verification should be bypassed
// (mirrors the loader's authoring-mode convention).
func (r *Resolver) Resolve(leafID string, authoring bool) (*Chain, error) {
	if cached, ok := r.lookupFresh(leafID, authoring); ok {
		return cached, nil
	}

	links, hashes, err := r.walk(leafID, authoring)
	if err != nil {
		return nil, err
	}
	if err := validateChain(links); err != nil {
		return nil, err
	}

	c := &Chain{Links: links}
	r.mu.Lock()
	r.cache[leafID] = cacheEntry{chain: c, hashes: hashes}
	r.mu.Unlock()
	return c, nil
}

func (r *Resolver) lookupFresh(leafID string, authoring bool) (*Chain, bool) {
	r.mu.RLock()
	entry, ok := r.cache[leafID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	for i, link := range entry.chain.Links {
		item, err := r.loader.Load(ryemodels.ItemTool, link.ID, authoring)
		if err != nil || contentHash(item) != entry.hashes[i] {
			return nil, false
		}
	}
	return entry.chain, true
}

// walk follows executor_id links from leafID until a primitive or nil,
// rejecting on a repeated id.
func (r *Resolver) walk(leafID string, authoring bool) ([]*ryemodels.Item, []string, error) {
	var links []*ryemodels.Item
	var hashes []string
	visited := make(map[string]bool)

	id := leafID
	for {
		if visited[id] {
			return nil, nil, ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("cycle detected at %q", id))
		}
		visited[id] = true

		item, err := r.loader.Load(ryemodels.ItemTool, id, authoring)
		if err != nil {
			return nil, nil, err
		}
		if item.Tool == nil {
			return nil, nil, ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("item %q has no tool metadata", id)).WithItem(id)
		}
		links = append(links, item)
		hashes = append(hashes, contentHash(item))

		if item.Tool.ToolType == ryemodels.ToolPrimitive {
			if item.Tool.ExecutorID != "" {
				return nil, nil, ryemodels.NewRyeError(ryemodels.ErrChain,
					fmt.Errorf("primitive %q declares an executor_id", id)).WithItem(id)
			}
			return links, hashes, nil
		}
		if item.Tool.ExecutorID == "" {
			return nil, nil, ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("non-primitive %q terminates the chain without an executor_id", id)).WithItem(id)
		}
		id = item.Tool.ExecutorID
	}
}

func contentHash(item *ryemodels.Item) string {
	sum := sha256.Sum256(item.ContentWithoutSig)
	return hex.EncodeToString(sum[:])
}

// validateChain checks space precedence (non-increasing leaf→primitive) and
// schema compatibility between every adjacent pair.
func validateChain(links []*ryemodels.Item) error {
	for i := 0; i < len(links)-1; i++ {
		parent, child := links[i], links[i+1]
		if parent.Space.Precedence() < child.Space.Precedence() {
			return ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("space precedence violation: %q (%s) depends on %q (%s)",
					parent.ID, parent.Space, child.ID, child.Space)).WithItem(parent.ID)
		}
		if err := compatibleSchema(parent, child); err != nil {
			return err
		}
		if err := compatibleVersion(parent, child); err != nil {
			return err
		}
	}
	return nil
}

// compatibleSchema requires the child's declared parameters to be a
// compatible superset of the parent's: every parameter name the parent
// declares must exist on the child with an equal or compatible type.
func compatibleSchema(parent, child *ryemodels.Item) error {
	parentProps, _ := schemaFields(parent.Tool.Config.ParamSchema)
	if len(parentProps) == 0 {
		return nil
	}
	childProps, _ := schemaFields(child.Tool.Config.ParamSchema)

	if err := validateWellFormed(parent.Tool.Config.ParamSchema); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrChain, fmt.Errorf("%q: %w", parent.ID, err)).WithItem(parent.ID)
	}
	if err := validateWellFormed(child.Tool.Config.ParamSchema); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrChain, fmt.Errorf("%q: %w", child.ID, err)).WithItem(child.ID)
	}

	for name, parentType := range parentProps {
		childType, ok := childProps[name]
		if !ok {
			return ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("schema incompatible: %q declares %q, executor %q does not accept it", parent.ID, name, child.ID)).
				WithItem(parent.ID)
		}
		if !typesCompatible(parentType, childType) {
			return ryemodels.NewRyeError(ryemodels.ErrChain,
				fmt.Errorf("schema incompatible: %q.%s is %q, executor %q declares %q", parent.ID, name, parentType, child.ID, childType)).
				WithItem(parent.ID)
		}
	}
	return nil
}

// schemaFields extracts a flat name->type map from a JSON-Schema
// "properties" object, ignoring nested structure beyond the top level
// since chain params are leaf scalar/array values in practice.
func schemaFields(schema map[string]any) (map[string]string, []string) {
	fields := make(map[string]string)
	if schema == nil {
		return fields, nil
	}
	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		def, _ := raw.(map[string]any)
		t, _ := def["type"].(string)
		fields[name] = t
	}
	var required []string
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	return fields, required
}

// typesCompatible treats an unspecified type as wildcard, and "integer" as
// a subtype of "number" (JSON-Schema convention).
func typesCompatible(parentType, childType string) bool {
	if parentType == "" || childType == "" {
		return true
	}
	if parentType == childType {
		return true
	}
	if parentType == "integer" && childType == "number" {
		return true
	}
	return false
}

func validateWellFormed(schema map[string]any) error {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal param schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("chain-param-schema.json", strings.NewReader(string(raw))); err != nil {
		return fmt.Errorf("invalid param schema: %w", err)
	}
	if _, err := compiler.Compile("chain-param-schema.json"); err != nil {
		return fmt.Errorf("invalid param schema: %w", err)
	}
	return nil
}

// compatibleVersion enforces major-version equality only when both sides
// declare a version.
func compatibleVersion(parent, child *ryemodels.Item) error {
	pMajor := majorVersion(parent.Version)
	cMajor := majorVersion(child.Version)
	if pMajor == "" || cMajor == "" {
		return nil
	}
	if pMajor != cMajor {
		return ryemodels.NewRyeError(ryemodels.ErrChain,
			fmt.Errorf("version incompatible: %q is v%s, executor %q is v%s", parent.ID, parent.Version, child.ID, child.Version)).
			WithItem(parent.ID)
	}
	return nil
}

func majorVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, ".", 2)
	return parts[0]
}
