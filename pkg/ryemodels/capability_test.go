package ryemodels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCapability(t *testing.T) {
	cap := BuildCapability("use", ItemTool, "git/commit")
	assert.Equal(t, "rye.use.tool.git.commit", cap)
}

func TestCapabilitySet_Allows(t *testing.T) {
	cases := []struct {
		name     string
		set      CapabilitySet
		required string
		want     bool
	}{
		{"empty set denies", NewCapabilitySet(), "rye.use.tool.git.commit", false},
		{"ALL allows anything", NewCapabilitySet(CapAll), "rye.use.tool.git.commit", true},
		{"exact match", NewCapabilitySet("rye.use.tool.git.commit"), "rye.use.tool.git.commit", true},
		{"star crosses dots", NewCapabilitySet("rye.use.tool.git.*"), "rye.use.tool.git.commit.push", true},
		{"star does not match other primary", NewCapabilitySet("rye.use.tool.git.*"), "rye.spawn.tool.git.commit", false},
		{"question mark single char", NewCapabilitySet("rye.use.tool.git.commi?"), "rye.use.tool.git.commit", true},
		{"non-matching pattern denies", NewCapabilitySet("rye.use.tool.docker.*"), "rye.use.tool.git.commit", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.set.Allows(tc.required))
		})
	}
}

func TestCapabilitySet_IntersectAllowedBy(t *testing.T) {
	t.Run("ALL parent keeps everything", func(t *testing.T) {
		child := NewCapabilitySet("rye.use.tool.git.commit", "rye.spawn.directive.review")
		kept, dropped := child.IntersectAllowedBy(NewCapabilitySet(CapAll))
		assert.Equal(t, child, kept)
		assert.Empty(t, dropped)
	})

	t.Run("non-subset members are dropped not errored", func(t *testing.T) {
		parent := NewCapabilitySet("rye.use.tool.git.*")
		child := NewCapabilitySet("rye.use.tool.git.commit", "rye.use.tool.docker.build")
		kept, dropped := child.IntersectAllowedBy(parent)
		require.Len(t, kept, 1)
		assert.True(t, kept.Allows("rye.use.tool.git.commit"))
		assert.Equal(t, []string{"rye.use.tool.docker.build"}, dropped)
	})

	t.Run("empty parent drops everything", func(t *testing.T) {
		child := NewCapabilitySet("rye.use.tool.git.commit")
		kept, dropped := child.IntersectAllowedBy(NewCapabilitySet())
		assert.Empty(t, kept)
		assert.Equal(t, []string{"rye.use.tool.git.commit"}, dropped)
	})
}

func TestSpace_Precedence(t *testing.T) {
	assert.Greater(t, SpaceProject.Precedence(), SpaceUser.Precedence())
	assert.Greater(t, SpaceUser.Precedence(), SpaceSystem.Precedence())
	assert.Equal(t, 0, Space("bogus").Precedence())
}
