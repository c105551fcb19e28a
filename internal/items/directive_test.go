package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

const sampleDirective = "# Code Review\n\n```yaml\n" +
	"model:\n  tier: standard\n  fallback: fast\n" +
	"limits:\n  max_turns: 20\n  max_tokens: 100000\n  max_spend: 2.50\n  duration_seconds: 600\n" +
	"permissions:\n  execute:\n    tool:\n      - \"git.*\"\n  search:\n    knowledge:\n      - \"*\"\n" +
	"inputs:\n  - name: pr_url\n    required: true\n    type: string\n" +
	"outputs:\n  - name: verdict\n    required: true\n" +
	"context:\n  - knowledge_id: rye/agent/identity\n    position: system\n" +
	"hooks:\n  - when: \"cost.current > 2.0\"\n    action: \"escalate\"\n" +
	"```\n\n<process>\n<step><execute tool=\"git.diff\"/></step>\n</process>\n"

func TestParseDirective(t *testing.T) {
	meta, err := ParseDirective([]byte(sampleDirective))
	require.NoError(t, err)

	assert.Equal(t, "standard", meta.Model.Tier)
	assert.Equal(t, "fast", meta.Model.Fallback)
	assert.Equal(t, 20, meta.Limits.Turns)
	assert.Equal(t, 100000, meta.Limits.Tokens)
	assert.Equal(t, 2.50, meta.Limits.Spend)
	assert.Equal(t, 600, meta.Limits.DurationSeconds)
	require.Len(t, meta.Inputs, 1)
	assert.Equal(t, "pr_url", meta.Inputs[0].Name)
	assert.True(t, meta.Inputs[0].Required)
	require.Len(t, meta.Context, 1)
	assert.Equal(t, ryemodels.ContextSystem, meta.Context[0].Position)
	require.Len(t, meta.Hooks, 1)
	assert.Contains(t, meta.Process, "<execute tool=\"git.diff\"/>")
	require.Contains(t, meta.Permissions, "execute")
	assert.Equal(t, []string{"git.*"}, meta.Permissions["execute"]["tool"])
}

func TestParseDirective_MissingMetadataBlock(t *testing.T) {
	_, err := ParseDirective([]byte("# No metadata here\n<process></process>"))
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrValidation))
}

func TestExtendsChain_DetectsCycle(t *testing.T) {
	lookup := func(id string) (*ryemodels.DirectiveMeta, error) {
		switch id {
		case "a":
			return &ryemodels.DirectiveMeta{Extends: "b"}, nil
		case "b":
			return &ryemodels.DirectiveMeta{Extends: "a"}, nil
		}
		return nil, ryemodels.NewRyeError(ryemodels.ErrResolution, nil).WithItem(id)
	}
	_, err := ExtendsChain("a", lookup)
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrChain))
}

func TestMergeInherited_ShallowOverrideRootFirst(t *testing.T) {
	root := &ryemodels.DirectiveMeta{
		Model:   ryemodels.ModelDescriptor{Tier: "base-tier"},
		Context: []ryemodels.ContextRef{{KnowledgeID: "root-ctx"}},
	}
	child := &ryemodels.DirectiveMeta{
		Model:   ryemodels.ModelDescriptor{Tier: "child-tier"},
		Context: []ryemodels.ContextRef{{KnowledgeID: "child-ctx"}},
	}
	merged := MergeInherited([]*ryemodels.DirectiveMeta{root}, child)
	assert.Equal(t, "child-tier", merged.Model.Tier)
	require.Len(t, merged.Context, 2)
	assert.Equal(t, "root-ctx", merged.Context[0].KnowledgeID)
	assert.Equal(t, "child-ctx", merged.Context[1].KnowledgeID)
}
