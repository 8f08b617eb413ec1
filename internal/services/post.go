package services

import (
	"context"
	"errors"
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

const (
	maxTitleLength   = 255
	maxPreviewLength = 500
)

type PostService struct {
	store  *repository.Store
	feed   *FeedService
	cache  *AggregateCache
	events *EventPublisher
	logger *logger.Logger
}

func NewPostService(store *repository.Store, feed *FeedService, cache *AggregateCache, events *EventPublisher, logger *logger.Logger) *PostService {
	return &PostService{
		store:  store,
		feed:   feed,
		cache:  cache,
		events: events,
		logger: logger,
	}
}

type PostRequest struct {
	Title    string `json:"title" binding:"required"`
	Preview  string `json:"preview"`
	Content  string `json:"content" binding:"required"`
	ImageRef string `json:"image_ref"`
}

// ExportRecord is one row handed to the CSV/PDF renderer.
type ExportRecord struct {
	SNo          int       `json:"sno"`
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
	Likes        int64     `json:"likes"`
	Dislikes     int64     `json:"dislikes"`
	Comments     int64     `json:"comments"`
}

func (r *PostRequest) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Preview = strings.TrimSpace(r.Preview)
	r.Content = strings.TrimSpace(r.Content)
	r.ImageRef = strings.TrimSpace(r.ImageRef)

	switch {
	case r.Title == "":
		return apperr.Invalid("title is required")
	case r.Content == "":
		return apperr.Invalid("content is required")
	case len(r.Title) > maxTitleLength:
		return apperr.Invalid("title exceeds %d characters", maxTitleLength)
	case len(r.Preview) > maxPreviewLength:
		return apperr.Invalid("preview exceeds %d characters", maxPreviewLength)
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, authorID string, req *PostRequest) (*models.Post, error) {
	author, err := parseID("author", authorID)
	if err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	ok, err := s.store.Users.Exists(ctx, author)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrUserNotFound
	}

	post := &models.Post{
		UserID:   author,
		Title:    req.Title,
		Preview:  req.Preview,
		Content:  req.Content,
		ImageRef: req.ImageRef,
	}
	if err := s.store.Posts.Create(ctx, post); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, OpPost, OpFeed)
	s.events.publish(ctx, queue.EventPostCreated, post.ID.String(), queue.PostEventData{
		PostID: post.ID.String(),
		UserID: author.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"post_id": post.ID,
		"user_id": author,
	}).Info("Post created successfully")
	return post, nil
}

// UpdatePost replaces title, preview, content and, when given, the image.
func (s *PostService) UpdatePost(ctx context.Context, authorID, postID string, req *PostRequest) (*models.Post, error) {
	author, post, err := s.ownedPost(ctx, authorID, postID)
	if err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	post.Title = req.Title
	post.Preview = req.Preview
	post.Content = req.Content
	if req.ImageRef != "" {
		post.ImageRef = req.ImageRef
	}
	if err := s.store.Posts.Update(ctx, post); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, OpPost, OpFeed)
	s.events.publish(ctx, queue.EventPostUpdated, post.ID.String(), queue.PostEventData{
		PostID: post.ID.String(),
		UserID: author.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"post_id": post.ID,
		"user_id": author,
	}).Info("Post updated successfully")
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, authorID, postID string) error {
	author, post, err := s.ownedPost(ctx, authorID, postID)
	if err != nil {
		return err
	}

	if err := s.store.DeletePostCascade(ctx, post.ID); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, OpPost, OpFeed, OpComments)
	s.events.publish(ctx, queue.EventPostDeleted, post.ID.String(), queue.PostEventData{
		PostID: post.ID.String(),
		UserID: author.String(),
	})

	s.logger.WithFields(logrus.Fields{
		"post_id": post.ID,
		"user_id": author,
	}).Info("Post deleted successfully")
	return nil
}

// GetPostByID returns the post with author and engagement, through the
// aggregate cache.
func (s *PostService) GetPostByID(ctx context.Context, postID string) (*FeedItem, error) {
	id, err := parseID("post", postID)
	if err != nil {
		return nil, err
	}
	return Cached(ctx, s.cache, CacheKey{Op: OpPost, Arg: id.String()}, func(ctx context.Context) (*FeedItem, error) {
		post, err := s.store.Posts.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, apperr.ErrPostNotFound
		}
		items, err := s.feed.annotate(ctx, []*models.Post{post})
		if err != nil {
			return nil, err
		}
		return &items[0], nil
	})
}

func (s *PostService) SearchPosts(ctx context.Context, query string, offset, limit int) ([]FeedItem, error) {
	posts, err := s.store.Posts.Search(ctx, strings.TrimSpace(query), offset, limit)
	if err != nil {
		return nil, err
	}
	return s.feed.annotate(ctx, posts)
}

// ExportPosts numbers the user's posts from 1, newest first.
func (s *PostService) ExportPosts(ctx context.Context, userID string) ([]ExportRecord, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Users.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrUserNotFound
	}

	items, err := s.feed.PostsByAuthors(ctx, []uuid.UUID{id}, time.Time{})
	if err != nil {
		return nil, err
	}

	records := make([]ExportRecord, 0, len(items))
	for i, it := range items {
		records = append(records, ExportRecord{
			SNo:          i + 1,
			ID:           it.ID,
			Title:        it.Title,
			Preview:      it.Preview,
			Content:      it.Content,
			LastModified: it.UpdatedAt,
			Likes:        it.Likes,
			Dislikes:     it.Dislikes,
			Comments:     it.Comments,
		})
	}
	return records, nil
}

func (s *PostService) ownedPost(ctx context.Context, authorID, postID string) (uuid.UUID, *models.Post, error) {
	author, err := parseID("author", authorID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id, err := parseID("post", postID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	post, err := s.store.Posts.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if post == nil {
		return uuid.Nil, nil, apperr.ErrPostNotFound
	}
	if post.UserID != author {
		return uuid.Nil, nil, apperr.ErrNotPostAuthor
	}
	return author, post, nil
}
