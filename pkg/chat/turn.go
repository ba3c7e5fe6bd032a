package chat

import (
	"context"
	"time"

	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/google/uuid"
)

// Turn is one question and its answer, from submission to a terminal state.
// Each turn owns its cancellation handle.
type Turn struct {
	ID       uuid.UUID
	Question string
	Started  time.Time

	c      *Controller
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// guarded by c.mu
	state      State
	firstToken bool
	result     *Result
}

// Result is the outcome of a finished turn.
type Result struct {
	TurnID    uuid.UUID
	State     State
	Log       []conversation.Message
	Answer    string
	Citations []citations.Citation
	// Err is set for failed turns, and is context.Canceled for cancelled ones.
	Err error
}

// Cancel stops the turn. Once Cancel returns, the turn no longer changes the log.
func (t *Turn) Cancel() {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.cancel()
}

func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn reached a terminal state.
func (t *Turn) Wait() *Result {
	<-t.done
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.result
}

func (t *Turn) State() State {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.state
}
