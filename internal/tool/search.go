package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"support-agent/internal/retrieval"
)

type searchSiteTool struct {
	service *retrieval.Service
	topK    int
}

func NewSearchSite(service *retrieval.Service, topK int) Tool {
	if topK <= 0 {
		topK = 5
	}
	return &searchSiteTool{service: service, topK: topK}
}

func (t *searchSiteTool) Name() string { return "search_site" }

func (t *searchSiteTool) Description() string {
	return "Search the community site's content for passages relevant to the visitor's question."
}

func (t *searchSiteTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 3}
		},
		"required": ["query"],
		"additionalProperties": false
	}`)
}

func (t *searchSiteTool) Run(ctx context.Context, _ Invocation, args json.RawMessage) (Result, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}

	citations, err := t.service.SearchText(ctx, strings.TrimSpace(in.Query), t.topK)
	if err != nil {
		if errors.Is(err, retrieval.ErrIndexMissing) {
			// Index not built yet: degrade to an empty result, never
			// abort the conversation on a missing search backend.
			return Result{Output: successJSON(map[string]any{
				"results": []any{},
				"note":    "site search is temporarily unavailable",
			})}, nil
		}
		return Result{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]map[string]any, 0, len(citations))
	for _, c := range citations {
		results = append(results, map[string]any{
			"source":  c.Source,
			"snippet": c.Content,
		})
	}
	return Result{
		Output:    successJSON(map[string]any{"results": results}),
		Citations: citations,
	}, nil
}
