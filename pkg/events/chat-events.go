package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart is published when a turn is submitted.
	EventTypeStart      EventType = "start"
	EventTypeFirstToken EventType = "first-token"
	// EventTypePartial carries the answer so far after each envelope.
	EventTypePartial   EventType = "partial"
	EventTypeFinal     EventType = "final"
	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
	EventTypeRating    EventType = "rating"
	EventTypeClear     EventType = "clear"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Consent   string    `json:"consent,omitempty" yaml:"consent,omitempty"`
	// DurationMs is the time since the turn was submitted.
	DurationMs *int64                 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.UserID != "" {
		e.Str("user_id", em.UserID)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
}

type EventStart struct {
	EventImpl
	Question string `json:"question"`
}

func NewStartEvent(metadata EventMetadata, question string) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
		Question:  question,
	}
}

var _ Event = &EventStart{}

type EventFirstToken struct {
	EventImpl
}

func NewFirstTokenEvent(metadata EventMetadata) *EventFirstToken {
	return &EventFirstToken{
		EventImpl: EventImpl{Type_: EventTypeFirstToken, Metadata_: metadata},
	}
}

var _ Event = &EventFirstToken{}

// EventPartial carries a snapshot: Answer replaces the previous one.
type EventPartial struct {
	EventImpl
	Answer    string `json:"answer"`
	Envelopes int    `json:"envelopes"`
}

func NewPartialEvent(metadata EventMetadata, answer string, envelopes int) *EventPartial {
	return &EventPartial{
		EventImpl: EventImpl{Type_: EventTypePartial, Metadata_: metadata},
		Answer:    answer,
		Envelopes: envelopes,
	}
}

var _ Event = &EventPartial{}

type EventFinal struct {
	EventImpl
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Citations []citations.Citation `json:"citations"`
}

func NewFinalEvent(metadata EventMetadata, question string, answer string, cs []citations.Citation) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Question:  question,
		Answer:    answer,
		Citations: cs,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	Question    string `json:"question"`
	ErrorString string `json:"error_string"`
	// UserText is what the error message in the log says.
	UserText string `json:"user_text"`
	// Answer and Citations are the partial answer when the turn failed.
	Answer    string               `json:"answer,omitempty"`
	Citations []citations.Citation `json:"citations,omitempty"`
}

func NewErrorEvent(metadata EventMetadata, question string, err error, userText string) *EventError {
	errString := ""
	if err != nil {
		errString = err.Error()
	}
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		Question:    question,
		ErrorString: errString,
		UserText:    userText,
	}
}

var _ Event = &EventError{}

type EventInterrupt struct {
	EventImpl
	Question string `json:"question"`
	// Partial is the answer as it was when the turn was cancelled.
	Partial string `json:"partial"`
}

func NewInterruptEvent(metadata EventMetadata, question string, partial string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Question:  question,
		Partial:   partial,
	}
}

var _ Event = &EventInterrupt{}

type EventRating struct {
	EventImpl
	Rating    string               `json:"rating"`
	Index     int                  `json:"index"`
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Citations []citations.Citation `json:"citations"`
}

func NewRatingEvent(metadata EventMetadata, rating string, index int, question string, answer string, cs []citations.Citation) *EventRating {
	return &EventRating{
		EventImpl: EventImpl{Type_: EventTypeRating, Metadata_: metadata},
		Rating:    rating,
		Index:     index,
		Question:  question,
		Answer:    answer,
		Citations: cs,
	}
}

var _ Event = &EventRating{}

type EventClear struct {
	EventImpl
}

func NewClearEvent(metadata EventMetadata) *EventClear {
	return &EventClear{
		EventImpl: EventImpl{Type_: EventTypeClear, Metadata_: metadata},
	}
}

var _ Event = &EventClear{}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event payload is null")
	}

	e.payload = b

	var ret Event
	var ok bool
	switch e.Type_ {
	case EventTypeStart:
		ret, ok = toTypedEvent[EventStart](e)
	case EventTypeFirstToken:
		ret, ok = toTypedEvent[EventFirstToken](e)
	case EventTypePartial:
		ret, ok = toTypedEvent[EventPartial](e)
	case EventTypeFinal:
		ret, ok = toTypedEvent[EventFinal](e)
	case EventTypeError:
		ret, ok = toTypedEvent[EventError](e)
	case EventTypeInterrupt:
		ret, ok = toTypedEvent[EventInterrupt](e)
	case EventTypeRating:
		ret, ok = toTypedEvent[EventRating](e)
	case EventTypeClear:
		ret, ok = toTypedEvent[EventClear](e)
	default:
		return e, nil
	}
	if !ok {
		return nil, fmt.Errorf("could not cast event to %s", e.Type_)
	}
	return ret, nil
}

// toTypedEvent decodes the payload of e into T, which must embed EventImpl.
func toTypedEvent[T any, PT interface {
	*T
	Event
	setPayload([]byte)
}](e Event) (Event, bool) {
	var ret PT = new(T)
	if err := json.Unmarshal(e.Payload(), ret); err != nil {
		return nil, false
	}
	ret.setPayload(e.Payload())
	return ret, true
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}
