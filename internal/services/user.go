package services

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

type UserService struct {
	store    *repository.Store
	feed     *FeedService
	cache    *AggregateCache
	events   *EventPublisher
	logger   *logger.Logger
	hashCost int
}

func NewUserService(store *repository.Store, feed *FeedService, cache *AggregateCache, events *EventPublisher, logger *logger.Logger) *UserService {
	return &UserService{
		store:    store,
		feed:     feed,
		cache:    cache,
		events:   events,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateUserRequest struct {
	FullName     *string `json:"full_name"`
	About        *string `json:"about"`
	ProfileImage *string `json:"profile_image"`
}

// Profile is the public view of a user.
type Profile struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	About          string     `json:"about"`
	ProfileImage   string     `json:"profile_image"`
	FollowerCount  int64      `json:"follower_count"`
	FollowingCount int64      `json:"following_count"`
	PostCount      int64      `json:"post_count"`
	CreatedAt      time.Time  `json:"created_at"`
	Posts          []FeedItem `json:"posts"`
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !usernamePattern.MatchString(username) {
		return nil, apperr.Invalid("username must be 3-64 letters, digits, '_', '.' or '-'")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Invalid("email %q is not valid", req.Email)
	}
	if len(req.Password) < 6 {
		return nil, apperr.Invalid("password must be at least 6 characters")
	}

	existing, err := s.store.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrUsernameTaken
	}
	existing, err = s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		FullName: strings.TrimSpace(req.FullName),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User registered successfully")
	return user, nil
}

func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in successfully")
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.About != nil {
		user.About = strings.TrimSpace(*req.About)
	}
	if req.ProfileImage != nil {
		user.ProfileImage = strings.TrimSpace(*req.ProfileImage)
	}

	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}

	// only the user's own dashboard shows profile fields
	s.cache.InvalidateKeys(ctx, CacheKey{Op: OpFeed, Arg: user.ID.String()})

	s.logger.WithField("user_id", user.ID).Info("User updated successfully")
	return user, nil
}

// DeleteAccount removes the user and everything that references them, then
// drops every cached aggregate.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteUserCascade(ctx, user.ID); err != nil {
		return err
	}

	s.cache.InvalidateAll(ctx)
	s.events.publish(ctx, queue.EventUserDeleted, user.ID.String(), queue.UserEventData{
		UserID: user.ID.String(),
	})

	s.logger.WithField("user_id", user.ID).Info("User deleted successfully")
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}

	followers, err := s.store.Follows.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.store.Follows.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	postCount, err := s.store.Posts.CountByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	posts, err := s.feed.PostsByAuthors(ctx, []uuid.UUID{user.ID}, time.Time{})
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:             user.ID,
		Username:       user.Username,
		FullName:       user.FullName,
		About:          user.About,
		ProfileImage:   user.ProfileImage,
		FollowerCount:  followers,
		FollowingCount: following,
		PostCount:      postCount,
		CreatedAt:      user.CreatedAt,
		Posts:          posts,
	}, nil
}

func (s *UserService) SearchUsers(ctx context.Context, query string, offset, limit int) ([]models.UserRef, error) {
	users, err := s.store.Users.Search(ctx, strings.TrimSpace(query), offset, limit)
	if err != nil {
		return nil, err
	}
	refs := make([]models.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, models.UserRef{ID: u.ID, Username: u.Username})
	}
	return refs, nil
}
