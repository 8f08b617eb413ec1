package workers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/services"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

type subscriber interface {
	Subscribe(ctx context.Context, handler func(queue.Message) error) error
}

// InvalidationWorker replays cache invalidations published by other API
// instances so their writes become visible here before the TTL runs out.
type InvalidationWorker struct {
	cache    *services.AggregateCache
	consumer subscriber
	origin   string
	logger   *logger.Logger
}

func NewInvalidationWorker(cache *services.AggregateCache, consumer subscriber, origin string, logger *logger.Logger) *InvalidationWorker {
	return &InvalidationWorker{
		cache:    cache,
		consumer: consumer,
		origin:   origin,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled.
func (w *InvalidationWorker) Start(ctx context.Context) error {
	w.logger.WithField("origin", w.origin).Info("Starting invalidation worker...")
	return w.consumer.Subscribe(ctx, func(msg queue.Message) error {
		return w.Handle(ctx, msg)
	})
}

func (w *InvalidationWorker) Handle(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}
	if event.Origin != "" && event.Origin == w.origin {
		return nil
	}

	w.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"origin":     event.Origin,
		"timestamp":  event.Timestamp,
	}).Debug("Processing event")

	switch event.Type {
	case queue.EventPostCreated, queue.EventPostUpdated:
		w.cache.Invalidate(ctx, services.OpPost, services.OpFeed)

	case queue.EventPostDeleted:
		w.cache.Invalidate(ctx, services.OpPost, services.OpFeed, services.OpComments)

	case queue.EventFollowCreated, queue.EventFollowDeleted:
		var data queue.FollowEventData
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		w.cache.InvalidateKeys(ctx,
			services.CacheKey{Op: services.OpFeed, Arg: data.FollowerID},
			services.CacheKey{Op: services.OpFeed, Arg: data.FollowingID},
		)

	case queue.EventLikeSet, queue.EventDislikeSet, queue.EventReactionRemoved:
		var data queue.ReactionEventData
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		w.cache.InvalidateKeys(ctx, services.CacheKey{Op: services.OpPost, Arg: data.PostID})
		w.cache.Invalidate(ctx, services.OpFeed)

	case queue.EventCommentCreated, queue.EventCommentDeleted:
		var data queue.CommentEventData
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		w.cache.InvalidateKeys(ctx,
			services.CacheKey{Op: services.OpComments, Arg: data.PostID},
			services.CacheKey{Op: services.OpPost, Arg: data.PostID},
		)
		w.cache.Invalidate(ctx, services.OpFeed)

	case queue.EventUserDeleted:
		w.cache.InvalidateAll(ctx)

	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	return nil
}
