package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "events"

type eventDTO struct {
	Topic       string
	AggregateId string
	Payload     []byte
	CreatedAt   int64
}

type subscriber struct {
	topic   string
	handler func(events []domain.Event)
}

type eventRepository struct {
	store *badgerhold.Store

	subscribers    map[string][]subscriber
	subscriberLock *sync.Mutex
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %s", err)
	}

	return &eventRepository{
		store:          store,
		subscribers:    make(map[string][]subscriber),
		subscriberLock: &sync.Mutex{},
	}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, topic string, id string, events []domain.Event,
) error {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %s", err)
		}
		dto := eventDTO{
			Topic:       topic,
			AggregateId: id,
			Payload:     payload,
			CreatedAt:   time.Now().UnixNano(),
		}
		insertFn := func() error {
			return r.store.Insert(badgerhold.NextSequence(), dto)
		}
		if err := insertFn(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				attempts := 1
				for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
					time.Sleep(100 * time.Millisecond)
					err = insertFn()
					attempts++
				}
			}
			if err != nil {
				return err
			}
		}
	}

	if err := r.dispatch(topic, id); err != nil {
		log.WithError(err).Error("failed to dispatch saved events")
	}
	return nil
}

func (r *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	r.subscriberLock.Lock()
	defer r.subscriberLock.Unlock()

	if _, ok := r.subscribers[topic]; !ok {
		r.subscribers[topic] = make([]subscriber, 0)
	}

	r.subscribers[topic] = append(r.subscribers[topic], subscriber{
		topic:   topic,
		handler: handler,
	})
}

func (r *eventRepository) ClearRegisteredHandlers(topics ...string) {
	r.subscriberLock.Lock()
	defer r.subscriberLock.Unlock()

	if len(topics) == 0 {
		r.subscribers = make(map[string][]subscriber)
		return
	}

	for _, topic := range topics {
		delete(r.subscribers, topic)
	}
}

func (r *eventRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *eventRepository) dispatch(topic string, id string) error {
	events, err := r.getAllEvents(topic, id)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	r.subscriberLock.Lock()
	defer r.subscriberLock.Unlock()
	for _, sub := range r.subscribers[topic] {
		go sub.handler(events)
	}
	return nil
}

func (r *eventRepository) getAllEvents(topic, id string) ([]domain.Event, error) {
	dtos := make([]eventDTO, 0)
	query := badgerhold.Where("Topic").Eq(topic).And("AggregateId").Eq(id)
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	sort.SliceStable(dtos, func(i, j int) bool {
		return dtos[i].CreatedAt < dtos[j].CreatedAt
	})

	events := make([]domain.Event, 0, len(dtos))
	for _, dto := range dtos {
		event, err := deserializeEvent(dto.Payload)
		if err != nil {
			log.WithError(err).Warnf("failed to deserialize event: %s", string(dto.Payload))
			continue
		}
		events = append(events, event)
	}
	return events, nil
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
