package embedder

// Pricing is a static per-model price table entry, USD per 1M tokens.
// Cost is always computed locally from the reported token count — never
// trusted from the provider response.
type Pricing struct {
	PerMillionTokens float64
}

// defaultPricing is the static price table referenced by §4.2. Unknown
// models fall back to the "default" entry.
var defaultPricing = map[string]Pricing{
	"text-embedding-3-small": {PerMillionTokens: 0.02},
	"text-embedding-3-large": {PerMillionTokens: 0.13},
	"text-embedding-ada-002": {PerMillionTokens: 0.10},
	"default":                {PerMillionTokens: 0.05},
}

// CostForTokens returns the USD cost of embedding tokens tokens with model.
func CostForTokens(model string, tokens int) float64 {
	p, ok := defaultPricing[model]
	if !ok {
		p = defaultPricing["default"]
	}
	return float64(tokens) / 1_000_000.0 * p.PerMillionTokens
}
