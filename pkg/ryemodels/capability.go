package ryemodels

import (
	"strings"
)

// CapAll is the distinguished capability set value meaning "everything".
const CapAll = "ALL"

// CapabilitySet is an unordered set of capability strings, or the
// distinguished value {CapAll}.
type CapabilitySet map[string]struct{}

// NewCapabilitySet builds a set from a slice of capability strings.
func NewCapabilitySet(caps ...string) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

// IsAll reports whether this set is the distinguished ALL sentinel.
func (s CapabilitySet) IsAll() bool {
	_, ok := s[CapAll]
	return ok
}

// Slice returns the set's members as a sorted-free slice (order is the
// map's iteration order; callers needing determinism should sort).
func (s CapabilitySet) Slice() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// BuildCapability constructs the canonical capability string
// rye.<primary>.<item_type>.<dotted-id> from its parts. The item id's
// slashes are replaced with dots.
func BuildCapability(primary string, itemType ItemType, itemID string) string {
	dotted := strings.ReplaceAll(itemID, "/", ".")
	return "rye." + primary + "." + string(itemType) + "." + dotted
}

// Allows reports whether the set grants the required capability, using
// fnmatch-style wildcard matching (*, ?) per member pattern. An ALL set
// always allows. An empty set never allows (fail-closed).
func (s CapabilitySet) Allows(required string) bool {
	if len(s) == 0 {
		return false
	}
	if s.IsAll() {
		return true
	}
	for pattern := range s {
		if fnmatch(pattern, required) {
			return true
		}
	}
	return false
}

// fnmatch implements shell-style glob matching with '*' and '?' over
// capability strings. '*' matches any run of characters including across
// '.' segments, since capability wildcards are meant to span dotted ids.
func fnmatch(pattern, name string) bool {
	return globMatch(pattern, name)
}

// globMatch matches name against pattern where '*' matches any sequence
// (including empty) and '?' matches exactly one rune.
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(p, n []rune) bool {
	var pi, ni int
	var star = -1
	var match int
	for ni < len(n) {
		if pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]) {
			pi++
			ni++
		} else if pi < len(p) && p[pi] == '*' {
			star = pi
			match = ni
			pi++
		} else if star != -1 {
			pi = star + 1
			match++
			ni = match
		} else {
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// IntersectAllowedBy returns a new set containing only members of s that also
// appear as allowed by parent (used to attenuate: non-subset members are
// dropped rather than causing a hard failure).
func (s CapabilitySet) IntersectAllowedBy(parent CapabilitySet) (kept CapabilitySet, dropped []string) {
	if parent.IsAll() {
		return s, nil
	}
	kept = make(CapabilitySet, len(s))
	for c := range s {
		if parent.Allows(c) {
			kept[c] = struct{}{}
		} else {
			dropped = append(dropped, c)
		}
	}
	return kept, dropped
}
