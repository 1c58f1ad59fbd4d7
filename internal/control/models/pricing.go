package models

// ModelPricing holds per-model token rates in USD per 1M tokens.
type ModelPricing struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// DefaultModel is what agents run when neither the agent row nor the
// session request names a model.
const DefaultModel = "claude-sonnet-4-20250514"

// Pricing table keyed by model name. Unknown models fall back to
// DefaultPricing (the sonnet row).
var Pricing = map[string]ModelPricing{
	"claude-sonnet-4-20250514": {Input: 3.0, Output: 15.0, CacheRead: 0.3, CacheWrite: 3.75},
	"claude-opus-4-20250514":   {Input: 15.0, Output: 75.0, CacheRead: 1.5, CacheWrite: 18.75},
	"claude-haiku-3-20250414":  {Input: 0.25, Output: 1.25, CacheRead: 0.03, CacheWrite: 0.30},
}

// DefaultPricing is used for models missing from the table.
var DefaultPricing = ModelPricing{Input: 3.0, Output: 15.0, CacheRead: 0.3, CacheWrite: 3.75}

// Cost computes the USD cost of a token usage under the given model.
func Cost(model string, tokensIn, tokensOut, cacheRead, cacheWrite int64) float64 {
	pricing, ok := Pricing[model]
	if !ok {
		pricing = DefaultPricing
	}
	return float64(tokensIn)*pricing.Input/1_000_000 +
		float64(tokensOut)*pricing.Output/1_000_000 +
		float64(cacheRead)*pricing.CacheRead/1_000_000 +
		float64(cacheWrite)*pricing.CacheWrite/1_000_000
}

// Budget limit defaults, overridable per agent via the config bag.
const (
	DefaultMaxOutputPerTurn  = 32_000
	DefaultDailyCostLimitUSD = 50.0
	DefaultTaskCostLimitUSD  = 20.0
)

// BudgetLimits are the effective spend caps for one agent.
type BudgetLimits struct {
	MaxOutputPerTurn  int64   `json:"max_output_per_turn"`
	DailyCostLimitUSD float64 `json:"daily_cost_limit_usd"`
	TaskCostLimitUSD  float64 `json:"task_cost_limit_usd"`
}

// BudgetLimitsFor resolves the effective limits from an agent's config bag,
// falling back to platform defaults.
func BudgetLimitsFor(agent *Agent) BudgetLimits {
	limits := BudgetLimits{
		MaxOutputPerTurn:  DefaultMaxOutputPerTurn,
		DailyCostLimitUSD: DefaultDailyCostLimitUSD,
		TaskCostLimitUSD:  DefaultTaskCostLimitUSD,
	}
	if agent == nil {
		return limits
	}
	if v, ok := agent.ConfigFloat("max_output_per_turn"); ok {
		limits.MaxOutputPerTurn = int64(v)
	}
	if v, ok := agent.ConfigFloat("daily_cost_limit_usd"); ok {
		limits.DailyCostLimitUSD = v
	}
	if v, ok := agent.ConfigFloat("task_cost_limit_usd"); ok {
		limits.TaskCostLimitUSD = v
	}
	return limits
}

// BudgetStatus is the result of a budget check before an agent turn.
type BudgetStatus struct {
	WithinBudget  bool     `json:"within_budget"`
	DailySpentUSD float64  `json:"daily_spent_usd"`
	DailyLimitUSD float64  `json:"daily_limit_usd"`
	TaskSpentUSD  float64  `json:"task_spent_usd"`
	TaskLimitUSD  float64  `json:"task_limit_usd"`
	Violations    []string `json:"violations"`
}
