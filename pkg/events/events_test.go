package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/assembler"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	md := EventMetadata{ID: uuid.New(), TurnID: "t1"}
	in := []Event{
		NewStartEvent(md, "q"),
		NewFirstTokenEvent(md),
		NewPartialEvent(md, "Lang", 1),
		NewFinalEvent(md, "q", "LangChain is...", []citations.Citation{{Title: "Doc1", Filepath: "/a"}}),
		NewErrorEvent(md, "q", errors.New("boom"), assembler.GenericErrorText),
		NewInterruptEvent(md, "q", "Lang"),
		NewRatingEvent(md, "like", 2, "q", "a", nil),
		NewClearEvent(md),
	}
	for _, e := range in {
		pm := NewPublisherManager()
		capture := &capturePublisher{}
		pm.SubscribePublisher("chat", capture)
		require.NoError(t, pm.Publish(e))
		require.Len(t, capture.messages, 1)

		out, err := NewEventFromJson(capture.messages[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, e.Type(), out.Type())
		assert.Equal(t, "t1", out.Metadata().TurnID)
		assert.IsType(t, e, out)
	}
}

func TestTypedEventFields(t *testing.T) {
	md := EventMetadata{ID: uuid.New()}
	pm := NewPublisherManager()
	capture := &capturePublisher{}
	pm.SubscribePublisher("chat", capture)
	pm.PublishBlind(NewFinalEvent(md, "q", "answer", []citations.Citation{{Title: "Doc1"}}))
	pm.PublishBlind(NewPartialEvent(md, "ans", 3))

	require.Len(t, capture.messages, 2)
	assert.Equal(t, "0", capture.messages[0].Metadata.Get("sequence_number"))
	assert.Equal(t, "1", capture.messages[1].Metadata.Get("sequence_number"))
	assert.Equal(t, "partial", capture.messages[1].Metadata.Get("event_type"))

	e, err := NewEventFromJson(capture.messages[0].Payload)
	require.NoError(t, err)
	final, ok := e.(*EventFinal)
	require.True(t, ok)
	assert.Equal(t, "answer", final.Answer)
	assert.Equal(t, "Doc1", final.Citations[0].Title)
	assert.NotEmpty(t, final.Payload())
}

func TestUnknownEventType(t *testing.T) {
	e, err := NewEventFromJson([]byte(`{"type":"something-else","meta":{}}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("something-else"), e.Type())

	_, err = NewEventFromJson([]byte(`not json`))
	require.Error(t, err)
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []*message.Message
}

func (c *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, messages...)
	return nil
}

func (c *capturePublisher) Close() error {
	return nil
}

func TestObserverMapsUpdates(t *testing.T) {
	o := NewObserver(NewPublisherManager(), "session")
	turnID := uuid.New()
	started := time.Now().Add(-time.Second)
	base := chat.Update{TurnID: turnID, Question: "q", Started: started, At: time.Now()}

	cases := []struct {
		kind     chat.UpdateKind
		state    chat.State
		final    bool
		expected EventType
	}{
		{chat.UpdateState, chat.StateSending, false, EventTypeStart},
		{chat.UpdateState, chat.StateStreaming, false, ""},
		{chat.UpdateFirstToken, chat.StateStreaming, false, EventTypeFirstToken},
		{chat.UpdateLog, chat.StateStreaming, false, EventTypePartial},
		{chat.UpdateLog, chat.StateStreaming, true, ""},
		{chat.UpdateState, chat.StateCompleted, false, EventTypeFinal},
		{chat.UpdateState, chat.StateFailed, false, EventTypeError},
		{chat.UpdateState, chat.StateCancelled, false, EventTypeInterrupt},
		{chat.UpdateRating, chat.StateIdle, false, EventTypeRating},
		{chat.UpdateClear, chat.StateIdle, false, EventTypeClear},
	}
	for _, c := range cases {
		u := base
		u.Kind = c.kind
		u.State = c.state
		u.Final = c.final
		u.Envelopes = 1
		e := o.EventForUpdate(u)
		if c.expected == "" {
			assert.Nil(t, e, "%s/%s", c.kind, c.state)
			continue
		}
		require.NotNil(t, e, "%s/%s", c.kind, c.state)
		assert.Equal(t, c.expected, e.Type())
		assert.Equal(t, turnID.String(), e.Metadata().TurnID)
		assert.Equal(t, "session", e.Metadata().SessionID)
		require.NotNil(t, e.Metadata().DurationMs)
		assert.GreaterOrEqual(t, *e.Metadata().DurationMs, int64(1000))
	}
}

func TestObserverCarriesPartialAnswers(t *testing.T) {
	o := NewObserver(NewPublisherManager(), "session")
	cs := []citations.Citation{{Title: "Doc1"}}

	failed := o.EventForUpdate(chat.Update{
		Kind: chat.UpdateState, State: chat.StateFailed, Question: "q",
		Answer: "Lang", Citations: cs, ErrorText: "oops",
	})
	e, ok := failed.(*EventError)
	require.True(t, ok)
	assert.Equal(t, "Lang", e.Answer)
	assert.Equal(t, cs, e.Citations)
	assert.Equal(t, "oops", e.UserText)

	cancelled := o.EventForUpdate(chat.Update{
		Kind: chat.UpdateState, State: chat.StateCancelled, Question: "q", Answer: "LangChain",
	})
	i, ok := cancelled.(*EventInterrupt)
	require.True(t, ok)
	assert.Equal(t, "LangChain", i.Partial)
}

func TestRouterDeliversControllerEvents(t *testing.T) {
	router, err := NewEventRouter(WithLogger(watermill.NopLogger{}))
	require.NoError(t, err)

	var mu sync.Mutex
	received := []EventType{}
	router.AddHandler("collect", TopicChat, func(msg *message.Message) error {
		defer msg.Ack()
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		mu.Lock()
		received = append(received, e.Type())
		mu.Unlock()
		assert.NotEmpty(t, msg.Metadata.Get("correlation_id"))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()

	pm := NewPublisherManager()
	pm.SubscribePublisher(TopicChat, router.Publisher)
	o := NewObserver(pm, "s1")
	o.OnUpdate(chat.Update{Kind: chat.UpdateState, State: chat.StateSending, TurnID: uuid.New(), Question: "q"})
	o.OnUpdate(chat.Update{Kind: chat.UpdateClear})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []EventType{EventTypeStart, EventTypeClear}, received)
	require.NoError(t, router.Close())
}

func printerMessages(t *testing.T, events ...Event) []*message.Message {
	pm := NewPublisherManager()
	capture := &capturePublisher{}
	pm.SubscribePublisher("chat", capture)
	for _, e := range events {
		require.NoError(t, pm.Publish(e))
	}
	return capture.messages
}

func TestStepPrinterPrintsSuffixes(t *testing.T) {
	md := EventMetadata{ID: uuid.New(), TurnID: "t1"}
	answer := "LangChain is a framework"
	withFooter, err := assembler.MustDefaultFooter().Augment(answer, "q")
	require.NoError(t, err)

	var buf bytes.Buffer
	f := StepPrinterFunc("", &buf, false)
	for _, msg := range printerMessages(t,
		NewStartEvent(md, "q"),
		NewPartialEvent(md, "Lang", 1),
		NewPartialEvent(md, "LangChain is", 2),
		NewPartialEvent(md, answer, 3),
		NewFinalEvent(md, "q", withFooter, []citations.Citation{{Title: "Doc1"}}),
	) {
		require.NoError(t, f(msg))
	}
	assert.Equal(t, answer+"\n", buf.String())
}

func TestStepPrinterFullAndRewrites(t *testing.T) {
	md := EventMetadata{ID: uuid.New(), TurnID: "t1"}
	var buf bytes.Buffer
	f := StepPrinterFunc("assistant", &buf, true)
	for _, msg := range printerMessages(t,
		NewPartialEvent(md, "Helo", 1),
		NewPartialEvent(md, "Hello", 2),
		NewFinalEvent(md, "q", "Hello", []citations.Citation{{Title: "Doc1", URL: "https://example.com/doc1"}, {Filepath: "/b"}}),
		NewErrorEvent(md, "q2", errors.New("x"), "Something broke"),
		NewInterruptEvent(md, "q3", ""),
	) {
		require.NoError(t, f(msg))
	}
	assert.Equal(t,
		"\nassistant: \nHelo\nHello\n[doc1] Doc1 <https://example.com/doc1>\n[doc2] /b\n\n[error] Something broke\n\n[interrupted]\n",
		buf.String())
}
