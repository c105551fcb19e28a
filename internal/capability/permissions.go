// Package capability implements the permission harness: parsing a
// directive's <permissions> declaration into a capability set, the
// fail-closed dispatch check, and attenuation across spawn boundaries.
package capability

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// internalToolPrefix names the always-permitted, capability-independent
// thread-system tool namespace the runtime itself calls.
const internalToolPrefix = "rye/agent/threads/internal/"

// permissionsXML is the small unexported shape <permissions> decodes into.
// The sentinel form <permissions>*</permissions> is handled before XML
// decoding since it is text content, not child elements.
type permissionsXML struct {
	XMLName xml.Name        `xml:"permissions"`
	Primary []primaryXML    `xml:",any"`
}

type primaryXML struct {
	XMLName xml.Name
	Items   []itemTypeXML `xml:",any"`
}

type itemTypeXML struct {
	XMLName xml.Name
	Pattern string `xml:",chardata"`
}

// ParsePermissionsXML parses a <permissions>...</permissions> document
// into a PermissionTree. An empty or missing block should be represented
// by an empty byte slice, which yields an empty (fail-closed) tree.
func ParsePermissionsXML(raw []byte) (ryemodels.PermissionTree, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ryemodels.PermissionTree{}, nil
	}

	// Sentinel: <permissions>*</permissions> => ALL.
	if isSentinelAll(trimmed) {
		return ryemodels.PermissionTree{"*": {"*": {"*"}}}, nil
	}

	var doc permissionsXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("parse permissions xml: %w", err))
	}

	tree := make(ryemodels.PermissionTree)
	for _, primary := range doc.Primary {
		name := primary.XMLName.Local
		if _, ok := tree[name]; !ok {
			tree[name] = make(map[string][]string)
		}
		for _, it := range primary.Items {
			pattern := strings.TrimSpace(it.Pattern)
			if pattern == "" {
				continue
			}
			tree[name][it.XMLName.Local] = append(tree[name][it.XMLName.Local], pattern)
		}
	}
	return tree, nil
}

func isSentinelAll(trimmed string) bool {
	// Strip the outer <permissions>...</permissions> tags to inspect the
	// text content without a full XML parse, since a bare "*" is not
	// valid child-element XML.
	const open = "<permissions>"
	const close = "</permissions>"
	if !strings.HasPrefix(trimmed, open) || !strings.HasSuffix(trimmed, close) {
		return false
	}
	inner := strings.TrimSpace(trimmed[len(open) : len(trimmed)-len(close)])
	return inner == "*"
}

// BuildCapabilitySet converts a parsed PermissionTree into the effective
// CapabilitySet of rye.<primary>.<item_type>.<dotted-id> strings.
func BuildCapabilitySet(tree ryemodels.PermissionTree) ryemodels.CapabilitySet {
	if len(tree) == 1 {
		if itemTypes, ok := tree["*"]; ok {
			if patterns, ok := itemTypes["*"]; ok && len(patterns) == 1 && patterns[0] == "*" {
				return ryemodels.NewCapabilitySet(ryemodels.CapAll)
			}
		}
	}
	var caps []string
	for primary, itemTypes := range tree {
		for itemType, patterns := range itemTypes {
			for _, pattern := range patterns {
				dotted := strings.ReplaceAll(pattern, "/", ".")
				caps = append(caps, fmt.Sprintf("rye.%s.%s.%s", primary, itemType, dotted))
			}
		}
	}
	return ryemodels.NewCapabilitySet(caps...)
}

// Harness wraps a thread's effective capability set with the dispatch
// check and attenuation logic.
type Harness struct {
	Capabilities ryemodels.CapabilitySet
}

// New builds a Harness from a parsed permission tree.
func New(tree ryemodels.PermissionTree) *Harness {
	return &Harness{Capabilities: BuildCapabilitySet(tree)}
}

// Check builds the required capability string for (primary, itemType, id)
// and tests it against the harness's set. Internal thread-system tool ids
// are always permitted, independent of capabilities.
func (h *Harness) Check(primary string, itemType ryemodels.ItemType, id string) error {
	if strings.HasPrefix(id, internalToolPrefix) {
		return nil
	}
	required := ryemodels.BuildCapability(primary, itemType, id)
	if !h.Capabilities.Allows(required) {
		return ryemodels.NewRyeError(ryemodels.ErrPermission,
			fmt.Errorf("capability %q not granted", required)).WithItem(id)
	}
	return nil
}

// Attenuate builds the capability set for a spawned child: the child
// directive's own declared permissions intersected against the parent's
// effective capabilities, so a child can never exceed its parent. Per
// spec.md §4.F, child_caps = child_directive.permissions OR
// parent.capabilities OR ∅: if the child declares no permissions at all,
// it inherits the parent's set rather than being denied everything.
func Attenuate(childTree ryemodels.PermissionTree, parent ryemodels.CapabilitySet) (kept ryemodels.CapabilitySet, dropped []string) {
	childCaps := BuildCapabilitySet(childTree)
	if len(childCaps) == 0 {
		return parent, nil
	}
	return childCaps.IntersectAllowedBy(parent)
}
