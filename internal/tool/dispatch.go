package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"

	"support-agent/internal/message"
)

// Dispatched pairs a tool call with its execution outcome and the tool
// message to append to the model context.
type Dispatched struct {
	Call    message.ToolCall
	Result  Result
	Message message.Message
	Failed  bool
}

// Dispatch validates and executes every call from one model turn. Calls
// run concurrently but results are returned in issue order, because the
// model correlates tool messages with tool calls by id, in sequence.
// Dispatch never fails as a whole: unknown tools, invalid arguments, and
// tool errors all degrade to structured error results.
func (r *Registry) Dispatch(ctx context.Context, calls []message.ToolCall, inv Invocation, outputLimit int) []Dispatched {
	out := make([]Dispatched, len(calls))
	var wg conc.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Go(func() {
			out[i] = r.runOne(ctx, call, inv, outputLimit)
		})
	}
	// Recovered panics would re-raise here; runOne installs its own
	// recover so a crashing tool still yields an error result.
	wg.Wait()
	return out
}

func (r *Registry) runOne(ctx context.Context, call message.ToolCall, inv Invocation, outputLimit int) (d Dispatched) {
	d.Call = call
	defer func() {
		if rec := recover(); rec != nil {
			d.Result = Result{Output: errorJSON(fmt.Sprintf("tool %s panicked: %v", call.Name, rec))}
			d.Failed = true
		}
		d.Result.Output = clip(d.Result.Output, outputLimit)
		d.Message = message.Message{
			Role:       message.RoleTool,
			ToolCallID: call.ID,
			Content:    d.Result.Output,
		}
	}()

	name := strings.ToLower(strings.TrimSpace(call.Name))
	reg, ok := r.tools[name]
	if !ok {
		d.Result = Result{Output: errorJSON(fmt.Sprintf("unknown tool %q", call.Name))}
		d.Failed = true
		return d
	}
	if err := r.validate(name, call.Args); err != nil {
		d.Result = Result{Output: errorJSON(err.Error())}
		d.Failed = true
		return d
	}

	res, err := reg.tool.Run(ctx, inv, call.Args)
	if err != nil {
		d.Result = Result{Output: errorJSON(err.Error())}
		d.Failed = true
		return d
	}
	d.Result = res
	return d
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + fmt.Sprintf("...[truncated %d chars]", len(r)-max)
}
