// Package pricing computes the cost of a chat request from token counts and
// a static per-model rate table.
//
// Rates are expressed per 1000 tokens, separately for input and output, as
// integer Credits. Costs are rounded half away from zero to the Credits
// precision (four decimal places). The calculator is a pure function of its
// table: no side effects, no stored state.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/metered/types"
)

// ErrNegativeTokens is returned when a token count is negative.
var ErrNegativeTokens = errors.New("pricing: negative token count")

// Model describes one entry in the model registry. Access gating is an
// explicit attribute here rather than a naming convention on the model name.
type Model struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	RequiresVIP bool          `json:"requires_vip"`
	AdminOnly   bool          `json:"admin_only"`
	InputPer1K  types.Credits `json:"input_per_1k"`
	OutputPer1K types.Credits `json:"output_per_1k"`
}

// Calculator prices chat requests against a model registry.
type Calculator struct {
	models       map[string]Model
	defaultIn1K  types.Credits
	defaultOut1K types.Credits
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithModel adds or replaces a registry entry.
func WithModel(m Model) Option {
	return func(c *Calculator) {
		c.models[m.Name] = m
	}
}

// WithDefaultRates sets the fallback rates applied to model names absent
// from the registry.
func WithDefaultRates(inPer1K, outPer1K types.Credits) Option {
	return func(c *Calculator) {
		c.defaultIn1K = inPer1K
		c.defaultOut1K = outPer1K
	}
}

// New creates a Calculator with the built-in registry, then applies opts.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		models:       make(map[string]Model, len(builtinModels)),
		defaultIn1K:  types.MustParseCredits("0.001"),
		defaultOut1K: types.MustParseCredits("0.002"),
	}
	for _, m := range builtinModels {
		c.models[m.Name] = m
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var builtinModels = []Model{
	{
		Name:        "gpt-3.5-turbo",
		Description: "GPT-3.5 Turbo model",
		InputPer1K:  types.MustParseCredits("0.0015"),
		OutputPer1K: types.MustParseCredits("0.002"),
	},
	{
		Name:        "gpt-4",
		Description: "GPT-4 model",
		InputPer1K:  types.MustParseCredits("0.03"),
		OutputPer1K: types.MustParseCredits("0.06"),
	},
	{
		Name:        "llama-2",
		Description: "Llama 2 model",
		InputPer1K:  types.MustParseCredits("0.0005"),
		OutputPer1K: types.MustParseCredits("0.0005"),
	},
	{
		Name:        "vip-gpt-4",
		Description: "VIP GPT-4 model",
		RequiresVIP: true,
		InputPer1K:  types.MustParseCredits("0.05"),
		OutputPer1K: types.MustParseCredits("0.10"),
	},
	{
		Name:        "admin-gpt-4",
		Description: "Admin GPT-4 model",
		AdminOnly:   true,
		InputPer1K:  types.MustParseCredits("0.03"),
		OutputPer1K: types.MustParseCredits("0.06"),
	},
}

// Cost returns the price of a chat with the given model and token counts.
// Unknown model names fall back to the default rates.
func (c *Calculator) Cost(model string, inputTokens, outputTokens int64) (types.Credits, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return 0, fmt.Errorf("%w: input=%d output=%d", ErrNegativeTokens, inputTokens, outputTokens)
	}

	in1K, out1K := c.defaultIn1K, c.defaultOut1K
	if m, ok := c.models[model]; ok {
		in1K, out1K = m.InputPer1K, m.OutputPer1K
	}

	// Accumulate both components in thousandth-units and round once on the
	// sum; rounding each component separately can drift for token counts
	// that are not multiples of 1000.
	sum := inputTokens*in1K.Units() + outputTokens*out1K.Units()
	return types.FromUnits((sum + 500) / 1000), nil
}

// Lookup returns the registry entry for a model name. The second return is
// false for unregistered names, which are priced at the default rates and
// carry no access gating.
func (c *Calculator) Lookup(model string) (Model, bool) {
	m, ok := c.models[model]
	return m, ok
}

// Models returns the registry entries sorted by name.
func (c *Calculator) Models() []Model {
	result := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
