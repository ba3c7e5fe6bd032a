package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// PublisherManager is used to distribute events to a set of Publishers.
// As such, you "subscribe" a publisher to the given topic.
// When you Publish an event, it will get distributed to all publishers
// on the topic they were subscribed with.
//
// The Manager also keeps a sequence number for each outgoing message,
// in the order they are handled by Publish.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, sub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], sub)
}

// Publish serializes the event to JSON and distributes it to all Publishers
// across all topics. The turn ID of the event becomes the correlation ID of
// the message, or the session ID for events outside of a turn.
func (s *PublisherManager) Publish(e Event) error {
	// lock for the sequence number
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", s.sequenceNumber))
	msg.Metadata.Set("event_type", string(e.Type()))
	correlationID := e.Metadata().TurnID
	if correlationID == "" {
		correlationID = e.Metadata().SessionID
	}
	if correlationID != "" {
		msg.SetContext(helpers.ContextWithCorrelationID(context.Background(), correlationID))
	}
	s.sequenceNumber++

	for topic, subs := range s.Publishers {
		for _, sub := range subs {
			err = sub.Publish(topic, msg)
			if err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish")
			}
		}
	}

	return nil
}

func (s *PublisherManager) PublishBlind(e Event) {
	err := s.Publish(e)
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}
