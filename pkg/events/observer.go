package events

import (
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/google/uuid"
)

// Observer publishes the updates of a chat controller as events.
type Observer struct {
	manager   *PublisherManager
	sessionID string
}

var _ chat.Observer = (*Observer)(nil)

func NewObserver(manager *PublisherManager, sessionID string) *Observer {
	return &Observer{
		manager:   manager,
		sessionID: sessionID,
	}
}

func (o *Observer) metadata(u chat.Update) EventMetadata {
	md := EventMetadata{
		ID:        uuid.New(),
		SessionID: o.sessionID,
		UserID:    u.UserID,
		Consent:   string(u.Consent),
	}
	if u.TurnID != uuid.Nil {
		md.TurnID = u.TurnID.String()
	}
	if !u.Started.IsZero() {
		ms := u.Elapsed().Milliseconds()
		md.DurationMs = &ms
	}
	return md
}

// EventForUpdate maps an update to the event published for it, or nil for
// updates that are not published.
func (o *Observer) EventForUpdate(u chat.Update) Event {
	md := o.metadata(u)
	switch u.Kind {
	case chat.UpdateState:
		switch u.State {
		case chat.StateSending:
			return NewStartEvent(md, u.Question)
		case chat.StateCompleted:
			return NewFinalEvent(md, u.Question, u.Answer, u.Citations)
		case chat.StateFailed:
			e := NewErrorEvent(md, u.Question, u.Err, u.ErrorText)
			e.Answer = u.Answer
			e.Citations = u.Citations
			return e
		case chat.StateCancelled:
			return NewInterruptEvent(md, u.Question, u.Answer)
		case chat.StateIdle, chat.StateStreaming:
			return nil
		}
	case chat.UpdateFirstToken:
		return NewFirstTokenEvent(md)
	case chat.UpdateLog:
		if u.State != chat.StateStreaming || u.Envelopes == 0 || u.Final {
			return nil
		}
		return NewPartialEvent(md, u.Answer, u.Envelopes)
	case chat.UpdateRating:
		return NewRatingEvent(md, string(u.Rating), u.Index, u.Question, u.Answer, u.Citations)
	case chat.UpdateClear:
		return NewClearEvent(md)
	}
	return nil
}

func (o *Observer) OnUpdate(u chat.Update) {
	e := o.EventForUpdate(u)
	if e == nil {
		return
	}
	o.manager.PublishBlind(e)
}
