package analytics

import "strings"

// modelPricing maps model-name substrings to USD cost per million tokens
// (prompt, completion). Rough published list prices; the estimate is for the
// stats readout, not billing.
var modelPricing = []struct {
	match      string
	prompt     float64
	completion float64
}{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"gpt-4.1-mini", 0.40, 1.60},
	{"gpt-4.1", 2.00, 8.00},
	{"claude-haiku", 0.80, 4.00},
	{"claude", 3.00, 15.00},
	{"gemini-2.0-flash", 0.10, 0.40},
	{"gemini", 1.25, 5.00},
}

// Summary is the read-side aggregation over a slice of events.
type Summary struct {
	// Turns and Commands count events by kind.
	Turns    int
	Commands int

	// Errors counts events that carried a failure.
	Errors int

	// Truncated counts turns that hit the round cap.
	Truncated int

	// Token totals across all turns.
	PromptTokens     int
	CompletionTokens int

	// EstimatedCostUSD sums per-model token pricing across turns. Zero for
	// models with no pricing entry (local models are free anyway).
	EstimatedCostUSD float64

	// AvgTurnMs is the mean end-to-end turn latency over turns that recorded
	// one.
	AvgTurnMs float64

	// ToolUsage counts invocations per tool name.
	ToolUsage map[string]int
}

// Aggregate computes a Summary over events. It is a pure function of its
// input and touches no I/O.
func Aggregate(events []Event) Summary {
	s := Summary{ToolUsage: make(map[string]int)}

	var latencySum int64
	var latencyCount int

	for _, ev := range events {
		switch ev.Kind {
		case KindCommand:
			s.Commands++
		case KindTurn:
			s.Turns++
		}
		if ev.Error != "" {
			s.Errors++
		}
		if ev.Truncated {
			s.Truncated++
		}
		s.PromptTokens += ev.PromptTokens
		s.CompletionTokens += ev.CompletionTokens
		s.EstimatedCostUSD += estimateCost(ev.Model, ev.PromptTokens, ev.CompletionTokens)

		if ev.TurnMs > 0 {
			latencySum += ev.TurnMs
			latencyCount++
		}
		for _, tool := range ev.Tools {
			s.ToolUsage[tool]++
		}
	}

	if latencyCount > 0 {
		s.AvgTurnMs = float64(latencySum) / float64(latencyCount)
	}
	return s
}

// estimateCost prices one turn's token usage by model-name substring match.
func estimateCost(model string, prompt, completion int) float64 {
	if model == "" {
		return 0
	}
	lower := strings.ToLower(model)
	for _, p := range modelPricing {
		if strings.Contains(lower, p.match) {
			return float64(prompt)/1e6*p.prompt + float64(completion)/1e6*p.completion
		}
	}
	return 0
}
