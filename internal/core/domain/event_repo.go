package domain

import "context"

type EventRepository interface {
	Save(ctx context.Context, topic string, id string, events []Event) error
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topics ...string)
	Close()
}
