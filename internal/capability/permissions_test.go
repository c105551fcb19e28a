package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestParsePermissionsXML_Sentinel(t *testing.T) {
	tree, err := ParsePermissionsXML([]byte("<permissions>*</permissions>"))
	require.NoError(t, err)
	caps := BuildCapabilitySet(tree)
	assert.True(t, caps.IsAll())
}

func TestParsePermissionsXML_Empty(t *testing.T) {
	tree, err := ParsePermissionsXML(nil)
	require.NoError(t, err)
	caps := BuildCapabilitySet(tree)
	assert.Empty(t, caps)
	assert.False(t, caps.Allows("rye.execute.tool.git.commit"))
}

func TestParsePermissionsXML_NestedElements(t *testing.T) {
	doc := []byte(`<permissions>
		<execute><tool>git/*</tool></execute>
		<search><knowledge>*</knowledge></search>
	</permissions>`)
	tree, err := ParsePermissionsXML(doc)
	require.NoError(t, err)

	caps := BuildCapabilitySet(tree)
	assert.True(t, caps.Allows("rye.execute.tool.git.commit"))
	assert.True(t, caps.Allows("rye.search.knowledge.anything"))
	assert.False(t, caps.Allows("rye.execute.tool.docker.build"))
}

func TestHarness_Check_InternalToolsAlwaysAllowed(t *testing.T) {
	h := New(ryemodels.PermissionTree{})
	err := h.Check("execute", ryemodels.ItemTool, "rye/agent/threads/internal/dispatch")
	assert.NoError(t, err)
}

func TestHarness_Check_EmptyCapsDeniesEverythingElse(t *testing.T) {
	h := New(ryemodels.PermissionTree{})
	err := h.Check("execute", ryemodels.ItemTool, "git/commit")
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrPermission))
}

func TestAttenuate_ChildExceedingParentIsDroppedNotErrored(t *testing.T) {
	parent := ryemodels.NewCapabilitySet("rye.execute.tool.git.*")
	childTree := ryemodels.PermissionTree{
		"execute": {"tool": {"git/commit", "docker/build"}},
	}
	kept, dropped := Attenuate(childTree, parent)
	assert.True(t, kept.Allows("rye.execute.tool.git.commit"))
	assert.False(t, kept.Allows("rye.execute.tool.docker.build"))
	assert.Len(t, dropped, 1)
}

func TestAttenuate_ChildWithNoDeclaredPermsInheritsParent(t *testing.T) {
	parent := ryemodels.NewCapabilitySet("rye.execute.tool.git.*")
	kept, dropped := Attenuate(ryemodels.PermissionTree{}, parent)
	assert.Equal(t, parent, kept)
	assert.Empty(t, dropped)
}

func TestAttenuate_ParentIsAllKeepsChildUnchanged(t *testing.T) {
	parent := ryemodels.NewCapabilitySet(ryemodels.CapAll)
	childTree := ryemodels.PermissionTree{"execute": {"tool": {"git/commit"}}}
	kept, dropped := Attenuate(childTree, parent)
	assert.True(t, kept.Allows("rye.execute.tool.git.commit"))
	assert.Empty(t, dropped)
}
