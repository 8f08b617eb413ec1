package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

// QueueNotifier publishes digests to the mail topic, keyed by recipient so
// one user's digests stay ordered.
type QueueNotifier struct {
	producer queue.Publisher
}

func NewQueueNotifier(producer queue.Publisher) *QueueNotifier {
	return &QueueNotifier{producer: producer}
}

func (n *QueueNotifier) Notify(ctx context.Context, digest *Digest) error {
	if digest.Recipient.Email == "" {
		return fmt.Errorf("user %s has no email address", digest.Recipient.UserID)
	}
	if err := n.producer.Publish(ctx, digest.Recipient.UserID.String(), digest); err != nil {
		return fmt.Errorf("failed to publish %s digest: %w", digest.Kind, err)
	}
	return nil
}

// LogNotifier records digests in the log; used when Kafka is disabled.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, digest *Digest) error {
	n.logger.WithFields(logrus.Fields{
		"kind":       digest.Kind,
		"user_id":    digest.Recipient.UserID,
		"email":      digest.Recipient.Email,
		"own_posts":  len(digest.OwnPosts),
		"feed_posts": len(digest.FeedPosts),
	}).Info("Digest ready")
	return nil
}
