package watermilldb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

type subscriber struct {
	topic   string
	handler func(events []domain.Event)
}

// eventRepository publishes events on a watermill publisher and keeps the
// per-aggregate history in memory for handler dispatch.
type eventRepository struct {
	publisher message.Publisher

	history     map[string][][]byte // topic/id -> serialized events
	historyLock *sync.RWMutex

	subscribers    map[string][]subscriber // topic -> subscribers
	subscriberLock *sync.Mutex
}

func NewWatermillEventRepository(publisher message.Publisher) domain.EventRepository {
	return &eventRepository{
		publisher:      publisher,
		history:        make(map[string][][]byte),
		historyLock:    &sync.RWMutex{},
		subscribers:    make(map[string][]subscriber),
		subscriberLock: &sync.Mutex{},
	}
}

func (e *eventRepository) ClearRegisteredHandlers(topics ...string) {
	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()

	if len(topics) == 0 {
		e.subscribers = make(map[string][]subscriber)
		return
	}

	for _, topic := range topics {
		delete(e.subscribers, topic)
	}
}

func (e *eventRepository) Close() {
	//nolint:errcheck
	e.publisher.Close()
}

func (e *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()

	if _, ok := e.subscribers[topic]; !ok {
		e.subscribers[topic] = make([]subscriber, 0)
	}

	e.subscribers[topic] = append(e.subscribers[topic], subscriber{
		topic:   topic,
		handler: handler,
	})
}

func (e *eventRepository) Save(
	ctx context.Context, topic string, id string, events []domain.Event,
) error {
	if err := e.publish(topic, id, events); err != nil {
		return err
	}
	if err := e.dispatch(topic, id); err != nil {
		log.WithError(err).Error("failed to dispatch saved events")
	}

	return nil
}

func (e *eventRepository) dispatch(topic string, id string) error {
	events, err := e.getAllEvents(topic, id)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()
	for _, sub := range e.subscribers[topic] {
		go sub.handler(events)
	}
	return nil
}

func (e *eventRepository) getAllEvents(topic, id string) ([]domain.Event, error) {
	e.historyLock.RLock()
	records := e.history[historyKey(topic, id)]
	e.historyLock.RUnlock()

	events := make([]domain.Event, 0, len(records))
	for _, record := range records {
		event, err := deserializeEvent(record)
		if err != nil {
			log.WithError(err).Warnf("failed to deserialize event: %s", string(record))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func (e *eventRepository) publish(topic, id string, events []domain.Event) error {
	watermillMessages := make([]*message.Message, 0, len(events))
	payloads := make([][]byte, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}

		payloads = append(payloads, payload)
		watermillMessages = append(
			watermillMessages,
			message.NewMessage(watermill.NewUUID(), payload),
		)
	}

	if err := e.publisher.Publish(topic, watermillMessages...); err != nil {
		return err
	}

	e.historyLock.Lock()
	key := historyKey(topic, id)
	e.history[key] = append(e.history[key], payloads...)
	e.historyLock.Unlock()
	return nil
}

func historyKey(topic, id string) string {
	return fmt.Sprintf("%s/%s", topic, id)
}

func deserializeEvent(buf []byte) (domain.Event, error) {
	var eventType struct {
		Type domain.EventType
	}

	if err := json.Unmarshal(buf, &eventType); err != nil {
		return nil, err
	}

	switch eventType.Type {
	case domain.EventTypeSafeMinted:
		var event = domain.SafeMinted{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeSafeClaimed:
		var event = domain.SafeClaimed{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeSafeDestroyed:
		var event = domain.SafeDestroyed{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeEmergencyUnlockApproved:
		var event = domain.EmergencyUnlockApproved{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeEmergencyUnlockExecuted:
		var event = domain.EmergencyUnlockExecuted{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeServicePaused:
		var event = domain.ServicePaused{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeServiceUnpaused:
		var event = domain.ServiceUnpaused{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	}

	return nil, fmt.Errorf("unknown event")
}
