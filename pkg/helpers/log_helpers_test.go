package helpers

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	messages []*message.Message
}

func (c *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	c.messages = append(c.messages, messages...)
	return nil
}

func (c *capturePublisher) Close() error {
	return nil
}

func TestCorrelationPublisherDecorator(t *testing.T) {
	inner := &capturePublisher{}
	p := CorrelationPublisherDecorator{Publisher: inner}

	withID := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	withID.SetContext(ContextWithCorrelationID(context.Background(), "turn-1"))
	preset := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	preset.Metadata.Set("correlation_id", "kept")
	without := message.NewMessage(watermill.NewUUID(), []byte("{}"))

	require.NoError(t, p.Publish("chat", withID, preset, without))
	require.Len(t, inner.messages, 3)
	assert.Equal(t, "turn-1", inner.messages[0].Metadata.Get("correlation_id"))
	assert.Equal(t, "kept", inner.messages[1].Metadata.Get("correlation_id"))
	assert.True(t, strings.HasPrefix(inner.messages[2].Metadata.Get("correlation_id"), "gen_"))
}

func TestWatermillZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	a := NewWatermill(logger).With(watermill.LogFields{"router": "chat"})

	a.Info("started", watermill.LogFields{"handler": "telemetry"})
	a.Trace("noise", nil)

	out := buf.String()
	assert.Contains(t, out, `"router":"chat"`)
	assert.Contains(t, out, `"component":"events"`)
	assert.Contains(t, out, `"handler":"telemetry"`)
	assert.Contains(t, out, `"level":"debug"`)
	assert.NotContains(t, out, "noise")
}

func TestWatermillInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	NewWatermill(logger).Info("hidden", nil)
	assert.Empty(t, buf.String())

	NewWatermill(logger, WithInfoLevel(zerolog.InfoLevel)).Info("shown", nil)
	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"component":"events"`)
	assert.Contains(t, out, "shown")
}
