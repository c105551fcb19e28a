package items

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// dunderPattern matches a Python/JS/shell header-comment convention
// variable assignment like `__version__ = "1.0.0"` or `# version: 1.0.0`,
// mirroring the teacher's plugin-manifest sniffing for non-YAML files.
var dunderPattern = regexp.MustCompile(`(?m)^\s*(?:#\s*|//\s*)?(?:__)?(\w+?)(?:__)?\s*[:=]\s*["']?([^"'\n]+?)["']?\s*$`)

// rawToolMeta is the YAML shape for tool files natively written in
// YAML/YML (the common case for runtime and primitive tools).
type rawToolMeta struct {
	Version      string                `yaml:"version"`
	ToolType     string                `yaml:"tool_type"`
	ExecutorID   string                `yaml:"executor_id"`
	Category     string                `yaml:"category"`
	Description  string                `yaml:"description"`
	AcceptedArgs []string              `yaml:"accepted_params"`
	Env          *ryemodels.EnvConfig  `yaml:"env_config"`
	Config       ryemodels.ExecConfig  `yaml:"config"`
}

// ParseTool parses a tool item's signature-stripped content. ext is the
// file extension (without dot), used to pick the YAML vs. header-comment
// convention.
func ParseTool(content []byte, ext string) (*ryemodels.ToolMeta, string, string, error) {
	switch strings.ToLower(ext) {
	case "yaml", "yml":
		var raw rawToolMeta
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, "", "", ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("parse tool metadata: %w", err))
		}
		meta := &ryemodels.ToolMeta{
			ToolType:     ryemodels.ToolType(raw.ToolType),
			ExecutorID:   raw.ExecutorID,
			Description:  raw.Description,
			Env:          raw.Env,
			Config:       raw.Config,
			AcceptedArgs: raw.AcceptedArgs,
		}
		if err := requireToolFields(meta, raw.Version, raw.Category); err != nil {
			return nil, "", "", err
		}
		return meta, raw.Version, raw.Category, nil

	case "py", "js", "ts", "rb", "sh":
		fields := extractDunderFields(content)
		meta := &ryemodels.ToolMeta{
			ToolType:    ryemodels.ToolType(fields["tool_type"]),
			ExecutorID:  fields["executor_id"],
			Description: fields["description"],
		}
		if err := requireToolFields(meta, fields["version"], fields["category"]); err != nil {
			return nil, "", "", err
		}
		return meta, fields["version"], fields["category"], nil

	default:
		return nil, "", "", ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("unsupported tool file extension %q", ext))
	}
}

func requireToolFields(meta *ryemodels.ToolMeta, version, category string) error {
	var missing []string
	if version == "" {
		missing = append(missing, "version")
	}
	if meta.ToolType == "" {
		missing = append(missing, "tool_type")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if meta.Description == "" {
		missing = append(missing, "description")
	}
	if meta.ToolType != ryemodels.ToolPrimitive && meta.ExecutorID == "" {
		missing = append(missing, "executor_id")
	}
	if len(missing) > 0 {
		return ryemodels.NewRyeError(ryemodels.ErrValidation,
			fmt.Errorf("tool metadata missing required field(s): %s", strings.Join(missing, ", ")))
	}
	return nil
}

func extractDunderFields(content []byte) map[string]string {
	fields := make(map[string]string)
	for _, m := range dunderPattern.FindAllSubmatch(content, -1) {
		key := strings.ToLower(string(m[1]))
		val := strings.TrimSpace(string(m[2]))
		if _, exists := fields[key]; !exists {
			fields[key] = val
		}
	}
	return fields
}
