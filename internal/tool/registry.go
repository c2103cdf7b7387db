package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"support-agent/internal/conversation"
	"support-agent/internal/llm"
	"support-agent/internal/message"
)

// Result is the outcome of one tool execution: the JSON output the model
// sees, plus the out-of-band effects the orchestrator accumulates across
// the turn.
type Result struct {
	Output           string
	Citations        []message.Citation
	Issue            *message.IssueRef
	NavigateTo       string
	HandoffReason    string
	HandoffSubmitted bool
}

// Invocation carries the per-turn state a tool may need: the conversation
// so far (read-only), client metadata, the authenticated handle when the
// fronting app supplied one, and any handoff reason recorded earlier in
// the same turn.
type Invocation struct {
	Conversation  conversation.Conversation
	Metadata      message.Metadata
	UserHandle    string
	HandoffReason string
}

type Tool interface {
	Name() string
	Description() string
	Schema() []byte
	Run(ctx context.Context, inv Invocation, args json.RawMessage) (Result, error)
}

type registered struct {
	tool   Tool
	schema *gojsonschema.Schema
}

type Registry struct {
	tools map[string]registered
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]registered{}}
}

func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("tool is nil")
	}
	name := strings.ToLower(strings.TrimSpace(t.Name()))
	if name == "" {
		return errors.New("tool name is empty")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.Schema()))
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", name, err)
	}
	r.tools[name] = registered{tool: t, schema: schema}
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Schemas builds the tool manifest sent with every completion request.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.tools))
	for _, name := range r.List() {
		reg := r.tools[name]
		out = append(out, llm.ToolSchema{
			Name:        name,
			Description: reg.tool.Description(),
			Parameters:  json.RawMessage(reg.tool.Schema()),
		})
	}
	return out
}

// validate checks raw arguments against the tool's schema and returns a
// readable list of violations.
func (r *Registry) validate(name string, args json.RawMessage) error {
	reg, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("tool %q is not registered", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	res, err := reg.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if res.Valid() {
		return nil
	}
	var parts []string
	for _, desc := range res.Errors() {
		parts = append(parts, desc.String())
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(parts, "; "))
}

func parseJSONArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	return dec.Decode(out)
}

// successJSON and errorJSON build the structured outcome payloads fed back
// to the model. Encoding a flat map cannot fail for the value types used
// here, so the error is dropped.
func successJSON(payload map[string]any) string {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func errorJSON(msg string) string {
	raw, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   msg,
	})
	return string(raw)
}
