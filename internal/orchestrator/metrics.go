package orchestrator

import "sync/atomic"

type runtimeMetrics struct {
	turnsTotal       atomic.Int64
	moderationBlocks atomic.Int64
	modelCalls       atomic.Int64
	toolCalls        atomic.Int64
	toolErrors       atomic.Int64
	fallbackReplies  atomic.Int64
	loopExhausted    atomic.Int64
}

// MetricsSnapshot is the JSON shape served on the metrics endpoint.
type MetricsSnapshot struct {
	TurnsTotal       int64   `json:"turns_total"`
	ModerationBlocks int64   `json:"moderation_blocks"`
	ModelCalls       int64   `json:"model_calls"`
	ToolCalls        int64   `json:"tool_calls"`
	ToolErrors       int64   `json:"tool_errors"`
	ToolErrorRate    float64 `json:"tool_error_rate"`
	FallbackReplies  int64   `json:"fallback_replies"`
	LoopExhausted    int64   `json:"loop_exhausted"`
}

func newRuntimeMetrics() *runtimeMetrics {
	return &runtimeMetrics{}
}

func (m *runtimeMetrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	toolCalls := m.toolCalls.Load()
	toolErrors := m.toolErrors.Load()
	return MetricsSnapshot{
		TurnsTotal:       m.turnsTotal.Load(),
		ModerationBlocks: m.moderationBlocks.Load(),
		ModelCalls:       m.modelCalls.Load(),
		ToolCalls:        toolCalls,
		ToolErrors:       toolErrors,
		ToolErrorRate:    safeRate(toolErrors, toolCalls),
		FallbackReplies:  m.fallbackReplies.Load(),
		LoopExhausted:    m.loopExhausted.Load(),
	}
}

func safeRate(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
