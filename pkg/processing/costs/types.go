// Package costs estimates request cost in USD from token usage and a model
// price table. The table ships with conservative defaults and can be
// replaced by an external YAML file, hot-reloaded on change.
package costs

// ModelPricing prices one model per thousand tokens.
type ModelPricing struct {
	// InputPer1K and OutputPer1K price the two directions separately.
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Rule is a substring fallback applied when no exact model entry matches.
// It prices total tokens with a single rate.
type Rule struct {
	Contains string  `yaml:"contains"`
	Per1K    float64 `yaml:"per_1k"`
}

// Table is the full price table, exact entries plus fallback rules.
type Table struct {
	Models map[string]ModelPricing `yaml:"models"`
	Rules  []Rule                  `yaml:"rules"`
}
