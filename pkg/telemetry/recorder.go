package telemetry

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/rs/zerolog/log"
)

// Recorder turns chat events into telemetry records. Its Handle method is
// meant to be registered as an event router handler.
type Recorder struct {
	tracker       Tracker
	systemMessage string
	timeout       time.Duration
}

type RecorderOption func(*Recorder)

func WithSystemMessage(s string) RecorderOption {
	return func(r *Recorder) {
		r.systemMessage = s
	}
}

func WithTrackTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.timeout = d
	}
}

func NewRecorder(tracker Tracker, options ...RecorderOption) *Recorder {
	r := &Recorder{
		tracker: tracker,
		timeout: 5 * time.Second,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// RecordForEvent returns the record for e, or nil if e is not tracked.
//
// Questions, answers and ratings are only tracked when the user consented.
// Errors are always tracked, but without the alias unless the user consented.
func (r *Recorder) RecordForEvent(e events.Event) *Record {
	md := e.Metadata()
	consented := settings.Consent(md.Consent).AllowsTracking()
	rec := &Record{
		At:            time.Now().UTC(),
		SessionID:     md.SessionID,
		TurnID:        md.TurnID,
		SystemMessage: r.systemMessage,
	}
	if consented {
		rec.Alias = md.UserID
	}

	switch e_ := e.(type) {
	case *events.EventStart:
		if !consented {
			return nil
		}
		rec.Name = NameQuestion
		rec.Question = e_.Question
	case *events.EventFinal:
		if !consented {
			return nil
		}
		rec.Name = NameAnswer
		rec.Question = e_.Question
		rec.Answer = e_.Answer
		rec.TopDocs = e_.Citations
	case *events.EventError:
		rec.Name = NameError
		rec.Question = e_.Question
		rec.Answer = e_.Answer
		rec.TopDocs = e_.Citations
		rec.Error = e_.UserText
	case *events.EventRating:
		if !consented {
			return nil
		}
		switch e_.Rating {
		case string(chat.RatingLike):
			rec.Name = NameLike
		case string(chat.RatingDislike):
			rec.Name = NameDislike
		default:
			return nil
		}
		rec.Answer = e_.Answer
	default:
		return nil
	}
	return rec
}

// Handle tracks the event carried by msg. It never returns an error so that
// the router does not redeliver telemetry.
func (r *Recorder) Handle(msg *message.Message) error {
	defer msg.Ack()

	e, err := events.NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not parse event for telemetry")
		return nil
	}
	rec := r.RecordForEvent(e)
	if rec == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.tracker.Track(ctx, rec); err != nil {
		log.Warn().Err(err).Str("telemetry", string(rec.Name)).Msg("could not track record")
	}
	return nil
}
