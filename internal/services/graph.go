package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

// GraphService owns follow edges. An edge is unique per ordered pair and a
// user can never follow themselves.
type GraphService struct {
	store  *repository.Store
	cache  *AggregateCache
	events *EventPublisher
	locks  *keyedMutex
	logger *logger.Logger
}

func NewGraphService(store *repository.Store, cache *AggregateCache, events *EventPublisher, logger *logger.Logger) *GraphService {
	return &GraphService{
		store:  store,
		cache:  cache,
		events: events,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

func (s *GraphService) Follow(ctx context.Context, followerID, followedID string) error {
	follower, err := parseID("follower", followerID)
	if err != nil {
		return err
	}
	followed, err := parseID("followed user", followedID)
	if err != nil {
		return err
	}
	if follower == followed {
		return apperr.ErrSelfFollow
	}

	if err := s.requireUsers(ctx, follower, followed); err != nil {
		return err
	}

	unlock := s.locks.Lock(edgeKey(follower, followed))
	defer unlock()

	exists, err := s.store.Follows.IsFollowing(ctx, follower, followed)
	if err != nil {
		return err
	}
	if exists {
		return apperr.ErrAlreadyFollowing
	}

	if err := s.store.Follows.Create(ctx, &models.Follow{FollowerID: follower, FollowingID: followed}); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.ErrAlreadyFollowing
		}
		// either account was deleted after requireUsers
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}

	s.invalidateEdge(ctx, follower, followed)
	s.events.publish(ctx, queue.EventFollowCreated, follower.String(), queue.FollowEventData{
		FollowerID:  follower.String(),
		FollowingID: followed.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"follower_id":  follower,
		"following_id": followed,
	}).Info("User followed successfully")
	return nil
}

func (s *GraphService) Unfollow(ctx context.Context, followerID, followedID string) error {
	follower, err := parseID("follower", followerID)
	if err != nil {
		return err
	}
	followed, err := parseID("followed user", followedID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(edgeKey(follower, followed))
	defer unlock()

	removed, err := s.store.Follows.Delete(ctx, follower, followed)
	if err != nil {
		return err
	}
	if removed == 0 {
		return apperr.ErrNotFollowing
	}

	s.invalidateEdge(ctx, follower, followed)
	s.events.publish(ctx, queue.EventFollowDeleted, follower.String(), queue.FollowEventData{
		FollowerID:  follower.String(),
		FollowingID: followed.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"follower_id":  follower,
		"following_id": followed,
	}).Info("User unfollowed successfully")
	return nil
}

func (s *GraphService) ListFollowers(ctx context.Context, userID string) ([]models.UserRef, error) {
	id, err := s.existingUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.Follows.GetFollowers(ctx, id)
}

func (s *GraphService) ListFollowing(ctx context.Context, userID string) ([]models.UserRef, error) {
	id, err := s.existingUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.Follows.GetFollowing(ctx, id)
}

func (s *GraphService) CountFollowers(ctx context.Context, userID string) (int64, error) {
	id, err := s.existingUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.store.Follows.CountFollowers(ctx, id)
}

func (s *GraphService) CountFollowing(ctx context.Context, userID string) (int64, error) {
	id, err := s.existingUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.store.Follows.CountFollowing(ctx, id)
}

// followingIDs is the feed's view of the graph: raw edge targets, which may
// include users deleted since the edge was read.
func (s *GraphService) followingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.store.Follows.FollowingIDs(ctx, userID)
}

func (s *GraphService) existingUser(ctx context.Context, userID string) (uuid.UUID, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.requireUsers(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *GraphService) requireUsers(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		ok, err := s.store.Users.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", id, apperr.ErrUserNotFound)
		}
	}
	return nil
}

// Both dashboards change: the follower's feed and following list, and the
// followed user's follower list.
func (s *GraphService) invalidateEdge(ctx context.Context, follower, followed uuid.UUID) {
	s.cache.InvalidateKeys(ctx,
		CacheKey{Op: OpFeed, Arg: follower.String()},
		CacheKey{Op: OpFeed, Arg: followed.String()},
	)
}

func edgeKey(follower, followed uuid.UUID) string {
	return "follow:" + follower.String() + ":" + followed.String()
}
