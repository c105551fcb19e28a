package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestParseTool_YAML(t *testing.T) {
	content := []byte("version: 1.2.0\ntool_type: primitive\ncategory: file-system\ndescription: reads a file\nconfig:\n  command: cat\n  args: [\"{tool_path}\"]\n")
	meta, version, category, err := ParseTool(content, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", version)
	assert.Equal(t, "file-system", category)
	assert.Equal(t, ryemodels.ToolPrimitive, meta.ToolType)
	assert.Equal(t, "cat", meta.Config.Command)
}

func TestParseTool_YAMLRuntimeRequiresExecutorID(t *testing.T) {
	content := []byte("version: 1.0.0\ntool_type: runtime\ncategory: python\ndescription: python runtime\n")
	_, _, _, err := ParseTool(content, "yaml")
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrValidation))
}

func TestParseTool_DunderConvention(t *testing.T) {
	content := []byte("#!/usr/bin/env python3\n__version__ = \"0.9.0\"\n__tool_type__ = \"primitive\"\n__category__ = \"net\"\n__description__ = \"fetches a URL\"\n")
	meta, version, category, err := ParseTool(content, "py")
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", version)
	assert.Equal(t, "net", category)
	assert.Equal(t, ryemodels.ToolPrimitive, meta.ToolType)
	assert.Equal(t, "fetches a URL", meta.Description)
}

func TestParseTool_UnsupportedExtension(t *testing.T) {
	_, _, _, err := ParseTool([]byte("x"), "exe")
	require.Error(t, err)
}
