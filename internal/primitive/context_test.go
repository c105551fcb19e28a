package primitive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestExpand_SubstitutesKnownPlaceholdersAndLeavesUnknown(t *testing.T) {
	vars := map[string]string{"tool_dir": "/x/y"}
	got := Expand("{tool_dir}/run.py {missing}", vars)
	assert.Equal(t, "/x/y/run.py {missing}", got)
}

func TestBuildVars_DerivesFromChainLeafAndRuntime(t *testing.T) {
	leaf := &ryemodels.Item{ID: "leaf/x", Path: "/proj/tools/leaf/x.yaml"}
	runtime := &ryemodels.Item{ID: "runtime/py", Path: "/sys/tools/runtime/py.yaml"}
	prim := &ryemodels.Item{ID: "prim/exec", Path: "/sys/tools/prim/exec.yaml"}
	c := &chain.Chain{Links: []*ryemodels.Item{leaf, runtime, prim}}

	v := BuildVars(c, map[string]any{"k": "v"}, "/anchor", "/proj", SpaceRoots{UserSpace: "/u", SystemSpace: "/s"})
	assert.Equal(t, "/proj/tools/leaf", v.ToolDir)
	assert.Equal(t, "/proj/tools", v.ToolParent)
	assert.Equal(t, "/anchor", v.AnchorPath)
	assert.Equal(t, "/sys/tools/runtime", v.RuntimeLib)
	assert.Contains(t, v.ParamsJSON, `"k":"v"`)
	assert.Equal(t, "/u", v.UserSpace)
	assert.Equal(t, "/s", v.SystemSpace)
}
