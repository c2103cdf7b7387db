package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"support-agent/internal/citation"
	"support-agent/internal/conversation"
	"support-agent/internal/llm"
	"support-agent/internal/message"
	"support-agent/internal/moderation"
	"support-agent/internal/tool"
)

const maxMessageRunes = 4000

const (
	fallbackHandoffSubmitted = "Your request has been passed to our support team. They will follow up at the contact you provided."
	fallbackHandoffPending   = "I'd like to hand this over to a person on our team. Could you share an email address or phone number so they can reach you?"
)

type Request struct {
	Message        string
	ConversationID string
	Metadata       message.Metadata
	UserHandle     string
}

type Response struct {
	ConversationID string             `json:"conversationId"`
	Message        string             `json:"message"`
	Citations      []message.Citation `json:"citations"`
	Issue          *message.IssueRef  `json:"issue,omitempty"`
	NavigateTo     string             `json:"navigateTo,omitempty"`
}

// turnAccumulator collects side-channel effects across loop iterations.
// Citations concatenate; scalar fields take the latest value; the
// submitted flag is sticky.
type turnAccumulator struct {
	citations        []message.Citation
	issue            *message.IssueRef
	navigateTo       string
	handoffReason    string
	handoffSubmitted bool
}

func (a *turnAccumulator) merge(res tool.Result) {
	a.citations = append(a.citations, res.Citations...)
	if res.Issue != nil {
		a.issue = res.Issue
	}
	if res.NavigateTo != "" {
		a.navigateTo = res.NavigateTo
	}
	if res.HandoffReason != "" {
		a.handoffReason = res.HandoffReason
	}
	if res.HandoffSubmitted {
		a.handoffSubmitted = true
	}
}

type Options struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	MaxIterations   int
	HistoryWindow   int
	ToolOutputLimit int
	PromptFile      string
}

type Orchestrator struct {
	opts          Options
	conversations *conversation.Manager
	moderator     moderation.Classifier
	tools         *tool.Registry
	provider      llm.Provider
	metrics       *runtimeMetrics
	log           zerolog.Logger
}

func New(
	opts Options,
	conversations *conversation.Manager,
	moderator moderation.Classifier,
	tools *tool.Registry,
	provider llm.Provider,
	log zerolog.Logger,
) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 40
	}
	if opts.ToolOutputLimit <= 0 {
		opts.ToolOutputLimit = 8000
	}
	return &Orchestrator{
		opts:          opts,
		conversations: conversations,
		moderator:     moderator,
		tools:         tools,
		provider:      provider,
		metrics:       newRuntimeMetrics(),
		log:           log,
	}
}

func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.snapshot()
}

func (o *Orchestrator) Conversation(ctx context.Context, id string) (conversation.Conversation, error) {
	return o.conversations.Get(ctx, id)
}

func (o *Orchestrator) ListConversationIDs(ctx context.Context, limit int) ([]string, error) {
	return o.conversations.ListIDs(ctx, limit)
}

// HandleMessage runs one full turn: moderation, state load, the bounded
// agent loop, citation aggregation, persistence. On error nothing from
// this turn survives in the store.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (Response, error) {
	input := strings.TrimSpace(req.Message)
	if input == "" {
		return Response{}, &ValidationError{Field: "message", Reason: "is required"}
	}
	if len([]rune(input)) > maxMessageRunes {
		return Response{}, &ValidationError{Field: "message", Reason: fmt.Sprintf("exceeds %d characters", maxMessageRunes)}
	}
	o.metrics.turnsTotal.Add(1)

	// Moderation runs before any state mutation or external call.
	if o.moderator != nil {
		verdict, err := o.moderator.Classify(ctx, input)
		if err != nil {
			return Response{}, fmt.Errorf("moderation check: %w", err)
		}
		if verdict.Flagged {
			o.metrics.moderationBlocks.Add(1)
			o.log.Warn().Str("conversation", req.ConversationID).Msg("message blocked by moderation")
			return Response{}, ErrModerationBlocked
		}
	}

	conv, err := o.loadOrCreate(ctx, req.ConversationID)
	if err != nil {
		return Response{}, err
	}

	var meta *message.Metadata
	if req.Metadata.URL != "" || req.Metadata.UserAgent != "" {
		m := req.Metadata
		meta = &m
	}
	o.conversations.Append(&conv, message.Message{
		Role:     message.RoleUser,
		Content:  input,
		Metadata: meta,
	})

	reply, acc, err := o.runLoop(ctx, &conv, req)
	if err != nil {
		return Response{}, err
	}

	o.conversations.Append(&conv, message.Message{
		Role:    message.RoleAssistant,
		Content: reply,
	})
	if err := o.conversations.Save(ctx, conv); err != nil {
		return Response{}, fmt.Errorf("persist conversation: %w", err)
	}

	citations := citation.Aggregate(acc.citations)
	if citations == nil {
		citations = []message.Citation{}
	}
	return Response{
		ConversationID: conv.ID,
		Message:        reply,
		Citations:      citations,
		Issue:          acc.issue,
		NavigateTo:     acc.navigateTo,
	}, nil
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, id string) (conversation.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return o.conversations.Create(ctx, "")
	}
	return o.conversations.Get(ctx, id)
}

// runLoop drives the model through at most MaxIterations completion
// calls. Tool messages are appended to the conversation in issue order so
// the model can correlate them by tool_call_id.
func (o *Orchestrator) runLoop(ctx context.Context, conv *conversation.Conversation, req Request) (string, turnAccumulator, error) {
	var acc turnAccumulator
	systemPrompt := buildSystemPrompt(o.opts.PromptFile, req.UserHandle)
	schemas := o.tools.Schemas()

	for iteration := 1; iteration <= o.opts.MaxIterations; iteration++ {
		emitEvent(ctx, Event{Type: "model", Text: fmt.Sprintf("completion call %d/%d", iteration, o.opts.MaxIterations)})
		o.metrics.modelCalls.Add(1)
		resp, err := o.provider.Complete(ctx, llm.ChatRequest{
			Model:       o.opts.Model,
			Messages:    buildChatMessages(systemPrompt, *conv, o.opts.HistoryWindow),
			Tools:       schemas,
			Temperature: o.opts.Temperature,
			MaxTokens:   o.opts.MaxTokens,
		})
		if err != nil {
			return "", acc, fmt.Errorf("completion call %d: %w", iteration, err)
		}

		if len(resp.ToolCalls) == 0 {
			return strings.TrimSpace(resp.Content), acc, nil
		}

		calls := make([]message.ToolCall, 0, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			id := strings.TrimSpace(tc.ID)
			if id == "" {
				id = buildID("call", fmt.Sprintf("%s|%d|%d|%s", conv.ID, iteration, i, tc.Name))
			}
			calls = append(calls, message.ToolCall{ID: id, Name: tc.Name, Args: tc.Args})
		}
		// The assistant message keeps the raw tool-call list; dropping it
		// would orphan the tool results that follow.
		o.conversations.Append(conv, message.Message{
			Role:      message.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})

		inv := tool.Invocation{
			Conversation:  *conv,
			Metadata:      req.Metadata,
			UserHandle:    req.UserHandle,
			HandoffReason: acc.handoffReason,
		}
		dispatched := o.tools.Dispatch(ctx, calls, inv, o.opts.ToolOutputLimit)
		for _, d := range dispatched {
			o.metrics.toolCalls.Add(1)
			if d.Failed {
				o.metrics.toolErrors.Add(1)
				emitEvent(ctx, Event{Type: "tool", Text: d.Call.Name + " failed: " + d.Result.Output})
				o.log.Warn().Str("tool", d.Call.Name).Str("conversation", conv.ID).Msg("tool call failed")
			} else {
				emitEvent(ctx, Event{Type: "tool", Text: d.Call.Name + " ok"})
				acc.merge(d.Result)
			}
			o.conversations.Append(conv, d.Message)
		}
	}

	// Iteration bound hit without a plain-text reply.
	o.log.Warn().Str("conversation", conv.ID).Int("iterations", o.opts.MaxIterations).Msg("agent loop exhausted")
	switch {
	case acc.handoffSubmitted:
		o.metrics.fallbackReplies.Add(1)
		return fallbackHandoffSubmitted, acc, nil
	case acc.handoffReason != "":
		o.metrics.fallbackReplies.Add(1)
		return fallbackHandoffPending, acc, nil
	default:
		o.metrics.loopExhausted.Add(1)
		return "", acc, ErrLoopExhausted
	}
}

func buildID(prefix, seed string) string {
	sum := sha1.Sum([]byte(seed + time.Now().UTC().String()))
	return prefix + "_" + hex.EncodeToString(sum[:8])
}
