package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

const maxCommentLength = 2000

// EngagementService owns reactions and comments. A (user, post) pair holds
// at most one reaction, either a like or a dislike.
type EngagementService struct {
	store  *repository.Store
	cache  *AggregateCache
	events *EventPublisher
	locks  *keyedMutex
	logger *logger.Logger
}

func NewEngagementService(store *repository.Store, cache *AggregateCache, events *EventPublisher, logger *logger.Logger) *EngagementService {
	return &EngagementService{
		store:  store,
		cache:  cache,
		events: events,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

type CommentView struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *EngagementService) SetLike(ctx context.Context, userID, postID string) error {
	return s.setReaction(ctx, userID, postID, models.ReactionLike)
}

func (s *EngagementService) SetDislike(ctx context.Context, userID, postID string) error {
	return s.setReaction(ctx, userID, postID, models.ReactionDislike)
}

func (s *EngagementService) setReaction(ctx context.Context, userID, postID string, kind models.ReactionKind) error {
	user, post, err := s.resolve(ctx, userID, postID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(reactionKey(user, post))
	defer unlock()

	err = s.applyReaction(ctx, user, post, kind)
	if errors.Is(err, apperr.ErrConflict) && !isAlready(err) {
		// another process inserted a row between our read and write
		err = s.applyReaction(ctx, user, post, kind)
	}
	if err != nil {
		return s.missingParent(ctx, user, post, err)
	}

	s.invalidatePost(ctx, post)
	eventType := queue.EventLikeSet
	if kind == models.ReactionDislike {
		eventType = queue.EventDislikeSet
	}
	s.events.publish(ctx, eventType, post.String(), queue.ReactionEventData{
		UserID: user.String(),
		PostID: post.String(),
		Kind:   string(kind),
	})

	s.logger.WithFields(logrus.Fields{
		"user_id": user,
		"post_id": post,
		"kind":    kind,
	}).Info("Reaction set successfully")
	return nil
}

// applyReaction reads and writes inside one transaction. Switching polarity
// is a single UPDATE of the kind column.
func (s *EngagementService) applyReaction(ctx context.Context, user, post uuid.UUID, kind models.ReactionKind) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Reactions.Get(ctx, user, post)
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Reactions.Create(ctx, &models.Reaction{UserID: user, PostID: post, Kind: kind})
		}
		if existing.Kind == kind {
			if kind == models.ReactionLike {
				return apperr.ErrAlreadyLiked
			}
			return apperr.ErrAlreadyDisliked
		}
		return tx.Reactions.SetKind(ctx, user, post, kind)
	})
}

func isAlready(err error) bool {
	return errors.Is(err, apperr.ErrAlreadyLiked) || errors.Is(err, apperr.ErrAlreadyDisliked)
}

// RemoveReaction is a no-op when the user has not reacted.
func (s *EngagementService) RemoveReaction(ctx context.Context, userID, postID string) error {
	user, err := parseID("user", userID)
	if err != nil {
		return err
	}
	post, err := parseID("post", postID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(reactionKey(user, post))
	defer unlock()

	removed, err := s.store.Reactions.Delete(ctx, user, post)
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}

	s.invalidatePost(ctx, post)
	s.events.publish(ctx, queue.EventReactionRemoved, post.String(), queue.ReactionEventData{
		UserID: user.String(),
		PostID: post.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"user_id": user,
		"post_id": post,
	}).Info("Reaction removed successfully")
	return nil
}

// CountEngagement runs one count query per relation.
func (s *EngagementService) CountEngagement(ctx context.Context, postID string) (models.Engagement, error) {
	id, err := parseID("post", postID)
	if err != nil {
		return models.Engagement{}, err
	}
	if err := s.requirePost(ctx, id); err != nil {
		return models.Engagement{}, err
	}
	return s.countEngagement(ctx, id)
}

func (s *EngagementService) countEngagement(ctx context.Context, id uuid.UUID) (models.Engagement, error) {
	var e models.Engagement
	var err error
	if e.Likes, err = s.store.Reactions.CountByPostID(ctx, id, models.ReactionLike); err != nil {
		return models.Engagement{}, err
	}
	if e.Dislikes, err = s.store.Reactions.CountByPostID(ctx, id, models.ReactionDislike); err != nil {
		return models.Engagement{}, err
	}
	if e.Comments, err = s.store.Comments.CountByPostID(ctx, id); err != nil {
		return models.Engagement{}, err
	}
	return e, nil
}

// countEngagementBatch is the feed's join: two grouped queries for any
// number of posts. Posts with no activity map to a zero triple.
func (s *EngagementService) countEngagementBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Engagement, error) {
	reactions, err := s.store.Reactions.CountByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Comments.CountByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Engagement, len(ids))
	for _, id := range ids {
		e := reactions[id]
		e.Comments = comments[id]
		out[id] = e
	}
	return out, nil
}

func (s *EngagementService) AddComment(ctx context.Context, userID, postID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyComment
	}
	if len(text) > maxCommentLength {
		return nil, apperr.Invalid("comment exceeds %d characters", maxCommentLength)
	}

	user, post, err := s.resolve(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		UserID:  user,
		PostID:  post,
		Content: text,
	}
	if err := s.store.Comments.Create(ctx, comment); err != nil {
		return nil, s.missingParent(ctx, user, post, err)
	}

	s.invalidateComments(ctx, post)
	s.events.publish(ctx, queue.EventCommentCreated, post.String(), queue.CommentEventData{
		CommentID: comment.ID.String(),
		UserID:    user.String(),
		PostID:    post.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"comment_id": comment.ID,
		"user_id":    user,
		"post_id":    post,
	}).Info("Comment created successfully")
	return comment, nil
}

// DeleteComment is allowed for the comment's author only.
func (s *EngagementService) DeleteComment(ctx context.Context, commentID, requestingUserID string) error {
	cid, err := parseID("comment", commentID)
	if err != nil {
		return err
	}
	requester, err := parseID("user", requestingUserID)
	if err != nil {
		return err
	}

	comment, err := s.store.Comments.GetByID(ctx, cid)
	if err != nil {
		return err
	}
	if comment == nil {
		return apperr.ErrCommentNotFound
	}
	if comment.UserID != requester {
		return apperr.ErrNotCommentAuthor
	}

	if err := s.store.Comments.Delete(ctx, cid); err != nil {
		return err
	}

	s.invalidateComments(ctx, comment.PostID)
	s.events.publish(ctx, queue.EventCommentDeleted, comment.PostID.String(), queue.CommentEventData{
		CommentID: cid.String(),
		UserID:    requester.String(),
		PostID:    comment.PostID.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"comment_id": cid,
		"user_id":    requester,
	}).Info("Comment deleted successfully")
	return nil
}

// ListComments is served through the aggregate cache.
func (s *EngagementService) ListComments(ctx context.Context, postID string) ([]CommentView, error) {
	id, err := parseID("post", postID)
	if err != nil {
		return nil, err
	}
	return Cached(ctx, s.cache, CacheKey{Op: OpComments, Arg: id.String()}, func(ctx context.Context) ([]CommentView, error) {
		return s.listComments(ctx, id)
	})
}

func (s *EngagementService) listComments(ctx context.Context, postID uuid.UUID) ([]CommentView, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	comments, err := s.store.Comments.GetByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]uuid.UUID, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.UserID)
	}
	names, err := usernames(ctx, s.store, authorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{
			ID:        c.ID,
			PostID:    c.PostID,
			UserID:    c.UserID,
			Username:  authorName(names, c.UserID),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return views, nil
}

func (s *EngagementService) resolve(ctx context.Context, userID, postID string) (uuid.UUID, uuid.UUID, error) {
	user, err := parseID("user", userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	post, err := parseID("post", postID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	ok, err := s.store.Users.Exists(ctx, user)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, uuid.Nil, apperr.ErrUserNotFound
	}
	if err := s.requirePost(ctx, post); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return user, post, nil
}

// missingParent names the row a foreign-key failure tripped over: the user
// or the post was deleted after resolve checked them.
func (s *EngagementService) missingParent(ctx context.Context, user, post uuid.UUID, err error) error {
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if ok, existsErr := s.store.Users.Exists(ctx, user); existsErr == nil && !ok {
		return apperr.ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", post, apperr.ErrPostNotFound)
}

func (s *EngagementService) requirePost(ctx context.Context, id uuid.UUID) error {
	post, err := s.store.Posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("%s: %w", id, apperr.ErrPostNotFound)
	}
	return nil
}

func (s *EngagementService) invalidatePost(ctx context.Context, post uuid.UUID) {
	s.cache.InvalidateKeys(ctx, CacheKey{Op: OpPost, Arg: post.String()})
	s.cache.Invalidate(ctx, OpFeed)
}

func (s *EngagementService) invalidateComments(ctx context.Context, post uuid.UUID) {
	s.cache.InvalidateKeys(ctx,
		CacheKey{Op: OpComments, Arg: post.String()},
		CacheKey{Op: OpPost, Arg: post.String()},
	)
	s.cache.Invalidate(ctx, OpFeed)
}

func reactionKey(user, post uuid.UUID) string {
	return "reaction:" + user.String() + ":" + post.String()
}

// usernames resolves author ids to names; ids with no user row are absent.
func usernames(ctx context.Context, store *repository.Store, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	users, err := store.Users.GetByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func authorName(names map[uuid.UUID]string, id uuid.UUID) string {
	if name, ok := names[id]; ok {
		return name
	}
	return DeletedUsername
}
