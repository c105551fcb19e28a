package primitive

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// ValidateParams validates caller-supplied params against a leaf tool's
// declared param_schema (types, required, min/max, pattern, enum — the
// full breadth spec.md §4.E asks for, which is exactly what
// jsonschema/v5 already implements against a JSON-Schema document).
func ValidateParams(schema map[string]any, params map[string]any) error {
	if schema == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("marshal param schema: %w", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params.json", strings.NewReader(string(schemaJSON))); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("invalid param schema: %w", err))
	}
	compiled, err := compiler.Compile("params.json")
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("invalid param schema: %w", err))
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("marshal params: %w", err))
	}
	var instance any
	if err := json.Unmarshal(paramsJSON, &instance); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("unmarshal params: %w", err))
	}

	if err := compiled.Validate(instance); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("parameter validation failed: %w", err))
	}
	return nil
}
