package orchestrator

import (
	"errors"
	"fmt"
)

// ErrModerationBlocked is a hard stop: the inbound message failed the
// content-safety check before any state was touched.
var ErrModerationBlocked = errors.New("message blocked by moderation")

// ErrLoopExhausted means the model used every allowed iteration
// without producing a plain-text reply and no fallback applied.
var ErrLoopExhausted = errors.New("agent loop exhausted without a final reply")

// ValidationError rejects a malformed inbound request. Distinct from
// moderation and runtime failures so the server can map it to a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}
