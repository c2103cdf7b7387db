package tool

import (
	"context"
	"encoding/json"
	"strings"

	"support-agent/internal/notify"
	"support-agent/internal/transcript"
)

type handoffToHumanTool struct{}

func NewHandoffToHuman() Tool {
	return handoffToHumanTool{}
}

func (handoffToHumanTool) Name() string { return "handoff_to_human" }

func (handoffToHumanTool) Description() string {
	return "Record that the visitor wants a human. Ask for contact details next, then call submit_handoff_request."
}

func (handoffToHumanTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"reason": {"type": "string", "minLength": 1}
		},
		"required": ["reason"],
		"additionalProperties": false
	}`)
}

func (handoffToHumanTool) Run(_ context.Context, _ Invocation, args json.RawMessage) (Result, error) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}
	// No external call: just remember the reason for this turn and tell
	// the model to collect contact information.
	return Result{
		Output: successJSON(map[string]any{
			"note": "handoff reason recorded; ask the visitor for contact details and then call submit_handoff_request",
		}),
		HandoffReason: strings.TrimSpace(in.Reason),
	}, nil
}

type submitHandoffTool struct {
	notifier notify.Notifier
}

func NewSubmitHandoff(notifier notify.Notifier) Tool {
	return &submitHandoffTool{notifier: notifier}
}

func (t *submitHandoffTool) Name() string { return "submit_handoff_request" }

func (t *submitHandoffTool) Description() string {
	return "Send the collected handoff request (contact plus summary) to the human support team."
}

func (t *submitHandoffTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"contact": {"type": "string", "minLength": 3},
			"summary": {"type": "string", "minLength": 5},
			"details": {"type": "string"}
		},
		"required": ["contact", "summary"],
		"additionalProperties": false
	}`)
}

func (t *submitHandoffTool) Run(ctx context.Context, inv Invocation, args json.RawMessage) (Result, error) {
	var in struct {
		Contact string `json:"contact"`
		Summary string `json:"summary"`
		Details string `json:"details"`
	}
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}

	err := t.notifier.Notify(ctx, notify.HandoffRequest{
		Contact:    strings.TrimSpace(in.Contact),
		Summary:    strings.TrimSpace(in.Summary),
		Details:    strings.TrimSpace(in.Details),
		Reason:     inv.HandoffReason,
		Transcript: transcript.Render(inv.Conversation),
		Metadata:   inv.Metadata,
	})
	if err != nil {
		return Result{Output: errorJSON("could not reach the support team right now: " + err.Error())}, nil
	}

	return Result{
		Output: successJSON(map[string]any{
			"note": "the support team has been notified and will follow up at the provided contact",
		}),
		HandoffSubmitted: true,
	}, nil
}
