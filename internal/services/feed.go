package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/logger"
)

// FeedService assembles the viewer dashboard: posts by followees, newest
// first, each annotated with author name and engagement counts.
type FeedService struct {
	store      *repository.Store
	graph      *GraphService
	engagement *EngagementService
	cache      *AggregateCache
	logger     *logger.Logger
}

func NewFeedService(store *repository.Store, graph *GraphService, engagement *EngagementService, cache *AggregateCache, logger *logger.Logger) *FeedService {
	return &FeedService{
		store:      store,
		graph:      graph,
		engagement: engagement,
		cache:      cache,
		logger:     logger,
	}
}

type FeedItem struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Preview        string    `json:"preview"`
	Content        string    `json:"content"`
	AuthorID       uuid.UUID `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	ImageRef       string    `json:"image_ref"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Likes          int64     `json:"likes"`
	Dislikes       int64     `json:"dislikes"`
	Comments       int64     `json:"comments"`
}

type ViewerProfile struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	About        string    `json:"about"`
	ProfileImage string    `json:"profile_image"`
}

type FeedResult struct {
	Viewer    ViewerProfile    `json:"viewer"`
	Followers []models.UserRef `json:"followers"`
	Following []models.UserRef `json:"following"`
	Items     []FeedItem       `json:"items"`
}

// BuildFeed is served through the aggregate cache.
func (s *FeedService) BuildFeed(ctx context.Context, viewerID string) (*FeedResult, error) {
	id, err := parseID("viewer", viewerID)
	if err != nil {
		return nil, err
	}
	return Cached(ctx, s.cache, CacheKey{Op: OpFeed, Arg: id.String()}, func(ctx context.Context) (*FeedResult, error) {
		return s.buildFeed(ctx, id)
	})
}

func (s *FeedService) buildFeed(ctx context.Context, viewerID uuid.UUID) (*FeedResult, error) {
	viewer, err := s.store.Users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, apperr.ErrUserNotFound
	}

	followers, err := s.store.Follows.GetFollowers(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	following, err := s.store.Follows.GetFollowing(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	result := &FeedResult{
		Viewer: ViewerProfile{
			ID:           viewer.ID,
			Username:     viewer.Username,
			Email:        viewer.Email,
			FullName:     viewer.FullName,
			About:        viewer.About,
			ProfileImage: viewer.ProfileImage,
		},
		Followers: nonNilRefs(followers),
		Following: nonNilRefs(following),
		Items:     []FeedItem{},
	}

	followeeIDs, err := s.graph.followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(followeeIDs) == 0 {
		return result, nil
	}

	items, err := s.PostsByAuthors(ctx, followeeIDs, time.Time{})
	if err != nil {
		return nil, err
	}
	result.Items = items

	s.logger.WithFields(logrus.Fields{
		"viewer_id": viewerID,
		"followees": len(followeeIDs),
		"items":     len(items),
	}).Debug("Feed assembled")
	return result, nil
}

// PostsByAuthors is the shared read path for feeds, profiles, exports and
// digests. since bounds creation time when non-zero.
func (s *FeedService) PostsByAuthors(ctx context.Context, authorIDs []uuid.UUID, since time.Time) ([]FeedItem, error) {
	posts, err := s.store.Posts.GetByAuthors(ctx, authorIDs, since)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, posts)
}

// annotate joins author names and engagement onto posts, preserving order.
// An author whose row has vanished becomes DeletedUsername instead of
// failing the whole list.
func (s *FeedService) annotate(ctx context.Context, posts []*models.Post) ([]FeedItem, error) {
	items := make([]FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]uuid.UUID, 0, len(posts))
	authorIDs := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.UserID)
	}

	names, err := usernames(ctx, s.store, authorIDs)
	if err != nil {
		return nil, err
	}
	counts, err := s.engagement.countEngagementBatch(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		name, ok := names[p.UserID]
		if !ok {
			name = DeletedUsername
			s.logger.WithFields(logrus.Fields{
				"post_id":   p.ID,
				"author_id": p.UserID,
			}).Warn("Post author no longer exists")
		}
		e := counts[p.ID]
		items = append(items, FeedItem{
			ID:             p.ID,
			Title:          p.Title,
			Preview:        p.Preview,
			Content:        p.Content,
			AuthorID:       p.UserID,
			AuthorUsername: name,
			ImageRef:       p.ImageRef,
			CreatedAt:      p.CreatedAt,
			UpdatedAt:      p.UpdatedAt,
			Likes:          e.Likes,
			Dislikes:       e.Dislikes,
			Comments:       e.Comments,
		})
	}
	return items, nil
}

func nonNilRefs(refs []models.UserRef) []models.UserRef {
	if refs == nil {
		return []models.UserRef{}
	}
	return refs
}
