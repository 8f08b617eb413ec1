package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/metrics"
)

type DigestKind string

const (
	DigestDaily   DigestKind = "daily"
	DigestMonthly DigestKind = "monthly"
)

type Recipient struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// Digest is the template payload for one recipient. OwnPosts covers all of
// the recipient's posts; FeedPosts only followees' posts since Since.
type Digest struct {
	Kind           DigestKind `json:"kind"`
	Recipient      Recipient  `json:"recipient"`
	GeneratedAt    time.Time  `json:"generated_at"`
	Since          time.Time  `json:"since"`
	FollowerCount  int64      `json:"follower_count"`
	FollowingCount int64      `json:"following_count"`
	OwnPosts       []FeedItem `json:"own_posts"`
	FeedPosts      []FeedItem `json:"feed_posts"`
}

// Notifier hands a digest to the mail pipeline.
type Notifier interface {
	Notify(ctx context.Context, digest *Digest) error
}

type DigestFailure struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Error    string `json:"error"`
}

type DigestReport struct {
	Kind       DigestKind      `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Processed  int             `json:"processed"`
	Sent       int             `json:"sent"`
	Failures   []DigestFailure `json:"failures"`
}

type DigestService struct {
	store    *repository.Store
	feed     *FeedService
	notifier Notifier
	cfg      config.DigestConfig
	logger   *logger.Logger
	now      func() time.Time
}

func NewDigestService(store *repository.Store, feed *FeedService, notifier Notifier, cfg config.DigestConfig, logger *logger.Logger) *DigestService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = 24 * time.Hour
	}
	if cfg.MonthlyWindow <= 0 {
		cfg.MonthlyWindow = 30 * 24 * time.Hour
	}
	return &DigestService{
		store:    store,
		feed:     feed,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DigestService) RunDailyDigest(ctx context.Context) (*DigestReport, error) {
	return s.run(ctx, DigestDaily, s.cfg.DailyWindow)
}

func (s *DigestService) RunMonthlyDigest(ctx context.Context) (*DigestReport, error) {
	return s.run(ctx, DigestMonthly, s.cfg.MonthlyWindow)
}

// run pages through every user. A failure for one user is recorded in the
// report and the job moves on; only a failure to list users or a cancelled
// context ends it early.
func (s *DigestService) run(ctx context.Context, kind DigestKind, window time.Duration) (*DigestReport, error) {
	started := s.now().UTC()
	since := started.Add(-window)
	report := &DigestReport{Kind: kind, StartedAt: started, Failures: []DigestFailure{}}

	defer func() {
		report.FinishedAt = s.now().UTC()
		metrics.DigestRunDuration.WithLabelValues(string(kind)).Observe(report.FinishedAt.Sub(started).Seconds())
	}()

	s.logger.WithFields(logrus.Fields{"kind": kind, "since": since}).Info("Digest job started")

	for offset := 0; ; offset += s.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		users, err := s.store.Users.List(ctx, offset, s.cfg.PageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list users at offset %d: %w", offset, err)
		}

		for _, u := range users {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Processed++
			if err := s.deliver(ctx, kind, u, started, since); err != nil {
				metrics.DigestUsersTotal.WithLabelValues(string(kind), "failed").Inc()
				report.Failures = append(report.Failures, DigestFailure{
					UserID:   u.ID.String(),
					Username: u.Username,
					Error:    err.Error(),
				})
				s.logger.WithError(err).WithFields(logrus.Fields{
					"kind":    kind,
					"user_id": u.ID,
				}).Warn("Digest failed for user")
				continue
			}
			metrics.DigestUsersTotal.WithLabelValues(string(kind), "sent").Inc()
			report.Sent++
		}

		if len(users) < s.cfg.PageSize {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"kind":      kind,
		"processed": report.Processed,
		"sent":      report.Sent,
		"failed":    len(report.Failures),
	}).Info("Digest job finished")
	return report, nil
}

func (s *DigestService) deliver(ctx context.Context, kind DigestKind, user *models.User, now, since time.Time) error {
	digest, err := s.BuildDigest(ctx, kind, user, now, since)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, digest)
}

// BuildDigest assembles one user's payload from the feed read path.
func (s *DigestService) BuildDigest(ctx context.Context, kind DigestKind, user *models.User, now, since time.Time) (*Digest, error) {
	own, err := s.feed.PostsByAuthors(ctx, []uuid.UUID{user.ID}, time.Time{})
	if err != nil {
		return nil, err
	}

	followees, err := s.store.Follows.FollowingIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	feed, err := s.feed.PostsByAuthors(ctx, followees, since)
	if err != nil {
		return nil, err
	}

	followers, err := s.store.Follows.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Digest{
		Kind: kind,
		Recipient: Recipient{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
			FullName: user.FullName,
		},
		GeneratedAt:    now,
		Since:          since,
		FollowerCount:  followers,
		FollowingCount: int64(len(followees)),
		OwnPosts:       own,
		FeedPosts:      feed,
	}, nil
}
