package budget

import "fmt"

// Rate is a model's per-million-token price, following the teacher's
// Cost{Input, Output, CacheRead, CacheWrite} shape, trimmed to the two
// dimensions the spec's cost formula uses (prompt/completion).
type Rate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// rateTable is a static per-model-id price table. Models not listed use
// DefaultRate, keeping an unrecognized model id from silently producing a
// zero-cost thread.
var rateTable = map[string]Rate{
	"standard":      {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"fast":          {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"reasoning":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-opus":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// DefaultRate is used when a model id has no table entry.
var DefaultRate = Rate{InputPerMillion: 3.00, OutputPerMillion: 15.00}

// RateFor returns the configured rate for a model id, falling back to
// DefaultRate.
func RateFor(modelID string) Rate {
	if r, ok := rateTable[modelID]; ok {
		return r
	}
	return DefaultRate
}

// RegisterRate allows a deployment to add or override a model's rate, used
// by configuration loading at startup.
func RegisterRate(modelID string, r Rate) {
	rateTable[modelID] = r
}

// EstimateCost computes cost = promptTokens*in_rate + completionTokens*out_rate,
// rates expressed per million tokens per the teacher's Cost.Estimate
// convention.
func EstimateCost(modelID string, promptTokens, completionTokens int) float64 {
	r := RateFor(modelID)
	return (float64(promptTokens)*r.InputPerMillion + float64(completionTokens)*r.OutputPerMillion) / 1_000_000
}

// ValidateModelID is a small guard that rejects an empty model id and, when
// knownTiers is non-nil, a model tier not listed in it, so an unknown tier
// can fail fast rather than silently bill at the default rate.
func ValidateModelID(modelID string, knownTiers map[string]bool) error {
	if modelID == "" {
		return fmt.Errorf("model id is required")
	}
	if knownTiers != nil && !knownTiers[modelID] {
		return fmt.Errorf("unknown model tier %q", modelID)
	}
	return nil
}
