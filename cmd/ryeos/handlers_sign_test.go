package main

import (
	"testing"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestMarkerFor_PicksCommentPrefixByExtension(t *testing.T) {
	cases := map[string]string{
		"directive.md": "#",
		"config.yaml":  "#",
		"script.py":    "#",
		"tool.js":      "//",
		"tool.ts":      "//",
		"noext":        "#",
	}
	for path, want := range cases {
		if got := markerFor(path); got != want {
			t.Errorf("markerFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseItemType_DefaultsToDirective(t *testing.T) {
	if got := parseItemType("unknown"); got != ryemodels.ItemDirective {
		t.Fatalf("expected directive fallback, got %v", got)
	}
	if got := parseItemType("tool"); got != ryemodels.ItemTool {
		t.Fatalf("expected tool, got %v", got)
	}
	if got := parseItemType("knowledge"); got != ryemodels.ItemKnowledge {
		t.Fatalf("expected knowledge, got %v", got)
	}
}
