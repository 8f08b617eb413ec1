package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloglite/bloglite/internal/models"
)

// Store bundles the per-table repositories over one connection or one
// transaction.
type Store struct {
	db        *gorm.DB
	Users     *UserRepository
	Follows   *FollowRepository
	Posts     *PostRepository
	Reactions *ReactionRepository
	Comments  *CommentRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Users:     NewUserRepository(db),
		Follows:   NewFollowRepository(db),
		Posts:     NewPostRepository(db),
		Reactions: NewReactionRepository(db),
		Comments:  NewCommentRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single transaction. fn must
// only use the Store it is handed.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DeleteUserCascade removes the user together with every follow edge,
// reaction and comment they made, and every post they authored including
// the reactions and comments on those posts. It is atomic.
func (s *Store) DeleteUserCascade(ctx context.Context, userID uuid.UUID) error {
	return s.Transaction(ctx, func(tx *Store) error {
		postIDs, err := tx.Posts.IDsByAuthor(ctx, userID)
		if err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Reactions.DeleteByPostIDs(ctx, postIDs); err != nil {
				return err
			}
			if err := tx.Comments.DeleteByPostIDs(ctx, postIDs); err != nil {
				return err
			}
			if err := tx.Posts.DeleteByIDs(ctx, postIDs); err != nil {
				return err
			}
		}
		if err := tx.Reactions.DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		if err := tx.Comments.DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		if err := tx.Follows.DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, userID)
	})
}

// DeletePostCascade removes the post with its reactions and comments.
func (s *Store) DeletePostCascade(ctx context.Context, postID uuid.UUID) error {
	return s.Transaction(ctx, func(tx *Store) error {
		ids := []uuid.UUID{postID}
		if err := tx.Reactions.DeleteByPostIDs(ctx, ids); err != nil {
			return err
		}
		if err := tx.Comments.DeleteByPostIDs(ctx, ids); err != nil {
			return err
		}
		return tx.Posts.DeleteByIDs(ctx, ids)
	})
}

// countRow scans grouped "post_id, count(*)" queries.
type countRow struct {
	PostID uuid.UUID
	Kind   models.ReactionKind
	Count  int64
}
