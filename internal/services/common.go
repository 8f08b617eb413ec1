package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/metrics"
	"github.com/bloglite/bloglite/pkg/queue"
)

// DeletedUsername stands in for an author whose row is gone.
const DeletedUsername = "[deleted]"

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID %q: %w", kind, raw, apperr.ErrInvalidID)
	}
	return id, nil
}

// EventPublisher publishes domain events without ever failing the write
// that produced them.
type EventPublisher struct {
	producer queue.Publisher
	origin   string
	logger   *logger.Logger
}

func NewEventPublisher(producer queue.Publisher, origin string, logger *logger.Logger) *EventPublisher {
	if producer == nil {
		producer = queue.NopPublisher{}
	}
	return &EventPublisher{producer: producer, origin: origin, logger: logger}
}

func (p *EventPublisher) Origin() string {
	return p.origin
}

func (p *EventPublisher) publish(ctx context.Context, eventType queue.EventType, key string, data interface{}) {
	event, err := queue.NewEvent(eventType, p.origin, data)
	if err == nil {
		err = p.producer.Publish(ctx, key, event)
	}
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "error").Inc()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event": eventType,
			"key":   key,
		}).Error("Failed to publish event")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "ok").Inc()
}

// keyedMutex serialises work per key; entries are dropped once no goroutine
// holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
