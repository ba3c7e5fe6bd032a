package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WatermillZerologAdapter routes the logs of the event router into zerolog.
// Every entry is tagged with component=events.
type WatermillZerologAdapter struct {
	logger    zerolog.Logger
	infoLevel zerolog.Level
}

type WatermillOption func(*WatermillZerologAdapter)

// WithInfoLevel sets the level watermill info logs are written at. The
// default is debug, since the router logs every handler start at info.
func WithInfoLevel(level zerolog.Level) WatermillOption {
	return func(w *WatermillZerologAdapter) {
		w.infoLevel = level
	}
}

func NewWatermill(logger zerolog.Logger, options ...WatermillOption) *WatermillZerologAdapter {
	ret := &WatermillZerologAdapter{
		logger:    logger.With().Str("component", "events").Logger(),
		infoLevel: zerolog.DebugLevel,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (w *WatermillZerologAdapter) event(level zerolog.Level, fields watermill.LogFields) *zerolog.Event {
	e := w.logger.WithLevel(level)
	if len(fields) > 0 {
		e = e.Fields(map[string]interface{}(fields))
	}
	return e.Caller(2)
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.event(zerolog.ErrorLevel, fields).Err(err).Msg(msg)
}

func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.event(w.infoLevel, fields).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.event(zerolog.DebugLevel, fields).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.event(zerolog.TraceLevel, fields).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillZerologAdapter{
		logger:    w.logger.With().Fields(map[string]interface{}(fields)).Logger(),
		infoLevel: w.infoLevel,
	}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

const correlationIDMessageMetadataKey = "correlation_id"

type CorrelationPublisherDecorator struct {
	message.Publisher
}

type correlationIDKeyType string

const correlationIDKey correlationIDKeyType = "correlation_id"

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(correlationIDKey).(string)
	if ok {
		return v
	}

	// published outside of a turn, e.g. a clear
	log.Debug().Msg("no correlation id in context, generating one")
	return "gen_" + shortuuid.New()
}

func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		// ids set by the publisher win
		if messages[i].Metadata.Get(correlationIDMessageMetadataKey) != "" {
			continue
		}

		messages[i].Metadata.Set(correlationIDMessageMetadataKey, CorrelationIDFromContext(messages[i].Context()))
	}

	return c.Publisher.Publish(topic, messages...)
}
