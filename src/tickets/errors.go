package tickets

import (
	"errors"
	"fmt"
)

// Caller-facing validation failures. None of these mutate state.
var (
	ErrInvalidPanel         = errors.New("panel does not exist or is disabled")
	ErrInvalidParent        = errors.New("thread parent is not a text channel")
	ErrNotFound             = errors.New("ticket not found")
	ErrNotClosed            = errors.New("ticket is not closed")
	ErrReopenDisabled       = errors.New("reopening is disabled for this panel")
	ErrResourceCreateFailed = errors.New("could not create the ticket channel or thread")
)

// DenyKind discriminates rate-limit denials.
type DenyKind string

const (
	DenyLimit    DenyKind = "limit"
	DenyCooldown DenyKind = "cooldown"
)

// RateLimitedError is a structured denial, not a failure: it always
// carries the configured limit or the remaining wait in whole minutes.
type RateLimitedError struct {
	Kind        DenyKind
	Limit       int
	WaitMinutes int
}

func (e *RateLimitedError) Error() string {
	if e.Kind == DenyCooldown {
		return fmt.Sprintf("cooldown active, about %d minute(s) remaining", e.WaitMinutes)
	}
	return fmt.Sprintf("open ticket limit of %d reached", e.Limit)
}
