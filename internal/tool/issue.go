package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"support-agent/internal/tracker"
)

type createIssueTool struct {
	client       tracker.Client
	serviceLogin string
	labels       []string
}

func NewCreateIssue(client tracker.Client, serviceLogin string, labels []string) Tool {
	if len(labels) == 0 {
		labels = []string{"bug", "support-agent"}
	}
	return &createIssueTool{
		client:       client,
		serviceLogin: strings.TrimSpace(serviceLogin),
		labels:       labels,
	}
}

func (t *createIssueTool) Name() string { return "create_github_issue" }

func (t *createIssueTool) Description() string {
	return "File a bug report in the site's issue tracker. Use when the visitor describes broken behavior with reproduction steps."
}

func (t *createIssueTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "minLength": 5},
			"description": {"type": "string", "minLength": 20},
			"reproduction_steps": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 1
			},
			"expected_behavior": {"type": "string"},
			"actual_behavior": {"type": "string"},
			"severity": {"type": "string", "enum": ["low", "medium", "high"]}
		},
		"required": ["title", "description", "reproduction_steps"],
		"additionalProperties": false
	}`)
}

type issueArgs struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ReproSteps       []string `json:"reproduction_steps"`
	ExpectedBehavior string   `json:"expected_behavior"`
	ActualBehavior   string   `json:"actual_behavior"`
	Severity         string   `json:"severity"`
}

func (t *createIssueTool) Run(ctx context.Context, inv Invocation, args json.RawMessage) (Result, error) {
	var in issueArgs
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}

	ref, err := t.client.CreateIssue(ctx, tracker.IssueRequest{
		Title:   strings.TrimSpace(in.Title),
		Body:    t.buildBody(in, inv),
		Labels:  t.labels,
		FiledBy: t.serviceLogin,
	})
	if err != nil {
		// Tracker outages degrade to a structured failure the model can
		// react to; the conversation keeps going.
		return Result{Output: errorJSON("could not file the issue right now: " + err.Error())}, nil
	}

	return Result{
		Output: successJSON(map[string]any{
			"url":    ref.URL,
			"number": ref.Number,
		}),
		Issue: &ref,
	}, nil
}

func (t *createIssueTool) buildBody(in issueArgs, inv Invocation) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Description))
	b.WriteString("\n\n### Reproduction steps\n")
	for i, step := range in.ReproSteps {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.TrimSpace(step)))
	}
	if strings.TrimSpace(in.ExpectedBehavior) != "" {
		b.WriteString("\n### Expected\n" + strings.TrimSpace(in.ExpectedBehavior) + "\n")
	}
	if strings.TrimSpace(in.ActualBehavior) != "" {
		b.WriteString("\n### Actual\n" + strings.TrimSpace(in.ActualBehavior) + "\n")
	}
	if strings.TrimSpace(in.Severity) != "" {
		b.WriteString("\nSeverity: " + strings.TrimSpace(in.Severity) + "\n")
	}

	b.WriteString("\n---\n")
	b.WriteString("Filed by " + t.serviceLogin + " on behalf of a site visitor.\n")
	if inv.UserHandle != "" {
		b.WriteString("Reported by: @" + inv.UserHandle + "\n")
	}
	if inv.Metadata.URL != "" {
		b.WriteString("Page: " + inv.Metadata.URL + "\n")
	}
	if inv.Metadata.UserAgent != "" {
		b.WriteString("User agent: " + inv.Metadata.UserAgent + "\n")
	}
	if inv.Conversation.ID != "" {
		b.WriteString("Conversation: " + inv.Conversation.ID + "\n")
	}
	return b.String()
}
