package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"support-agent/internal/nav"
)

type navigateSiteTool struct{}

func NewNavigateSite() Tool {
	return navigateSiteTool{}
}

func (navigateSiteTool) Name() string { return "navigate_site" }

func (navigateSiteTool) Description() string {
	return "Point the visitor's browser at a site page. Pass a keyword like \"events\" or a site path like \"/impact\"."
}

func (navigateSiteTool) Schema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"target": {"type": "string"},
			"path": {"type": "string"}
		},
		"additionalProperties": false
	}`)
}

func (navigateSiteTool) Run(_ context.Context, _ Invocation, args json.RawMessage) (Result, error) {
	var in struct {
		Target string `json:"target"`
		Path   string `json:"path"`
	}
	if err := parseJSONArgs(args, &in); err != nil {
		return Result{}, err
	}
	target := strings.TrimSpace(in.Target)
	if target == "" {
		target = strings.TrimSpace(in.Path)
	}
	if target == "" {
		return Result{}, errors.New("target or path is required")
	}

	path, ok := nav.Resolve(target)
	if !ok {
		return Result{}, fmt.Errorf("unknown navigation target %q", target)
	}
	return Result{
		Output:     successJSON(map[string]any{"path": path}),
		NavigateTo: path,
	}, nil
}
