package tool

import (
	"context"
	"encoding/json"
	"strings"

	"support-agent/internal/tracker"
	"support-agent/internal/transcript"
)

type communityListingTool struct {
	client       tracker.Client
	serviceLogin string
	label        string
}

func NewCommunityListing(client tracker.Client, serviceLogin, label string) Tool {
	if strings.TrimSpace(label) == "" {
		label = "community-listing"
	}
	return &communityListingTool{
		client:       client,
		serviceLogin: strings.TrimSpace(serviceLogin),
		label:        label,
	}
}

func (t *communityListingTool) Name() string { return "submit_community_listing" }

func (t *communityListingTool) Description() string {
	return "Submit a community group or project for listing on the site. Collect name, summary, location, and a contact email first."
}

func (t *communityListingTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"summary": {"type": "string", "minLength": 10},
			"location": {"type": "string", "minLength": 1},
			"contact_email": {"type": "string", "format": "email"}
		},
		"required": ["name", "summary", "location", "contact_email"],
		"additionalProperties": false
	}`)
}

func (t *communityListingTool) Run(ctx context.Context, inv Invocation, args json.RawMessage) (Result, error) {
	var in struct {
		Name         string `json:"name"`
		Summary      string `json:"summary"`
		Location     string `json:"location"`
		ContactEmail string `json:"contact_email"`
	}
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.WriteString("New community listing submission\n\n")
	b.WriteString("Name: " + strings.TrimSpace(in.Name) + "\n")
	b.WriteString("Summary: " + strings.TrimSpace(in.Summary) + "\n")
	b.WriteString("Location: " + strings.TrimSpace(in.Location) + "\n")
	b.WriteString("Contact: " + strings.TrimSpace(in.ContactEmail) + "\n")
	if script := transcript.Render(inv.Conversation); script != "" {
		b.WriteString("\n### Conversation\n" + script + "\n")
	}

	ref, err := t.client.CreateIssue(ctx, tracker.IssueRequest{
		Title:   "Community listing: " + strings.TrimSpace(in.Name),
		Body:    b.String(),
		Labels:  []string{t.label},
		FiledBy: t.serviceLogin,
	})
	if err != nil {
		return Result{Output: errorJSON("could not submit the listing right now: " + err.Error())}, nil
	}

	return Result{
		Output: successJSON(map[string]any{
			"url":    ref.URL,
			"number": ref.Number,
		}),
		Issue: &ref,
	}, nil
}
