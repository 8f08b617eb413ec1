package repository

import (
	"context"
	"errors"

	"github.com/bloglite/bloglite/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

func (r *ReactionRepository) Get(ctx context.Context, userID, postID uuid.UUID) (*models.Reaction, error) {
	var reaction models.Reaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("get reaction", err)
	}
	return &reaction, nil
}

func (r *ReactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	if err := r.db.WithContext(ctx).Create(reaction).Error; err != nil {
		return storeErr("create reaction", err)
	}
	return nil
}

// SetKind flips an existing row from one kind to the other in a single
// statement, so no reader sees both or neither.
func (r *ReactionRepository) SetKind(ctx context.Context, userID, postID uuid.UUID, kind models.ReactionKind) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Update("kind", kind).Error; err != nil {
		return storeErr("update reaction", err)
	}
	return nil
}

func (r *ReactionRepository) Delete(ctx context.Context, userID, postID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Reaction{})
	if result.Error != nil {
		return 0, storeErr("delete reaction", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ReactionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Reaction{}).Error; err != nil {
		return storeErr("delete reactions of user", err)
	}
	return nil
}

func (r *ReactionRepository) DeleteByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Reaction{}).Error; err != nil {
		return storeErr("delete reactions of posts", err)
	}
	return nil
}

func (r *ReactionRepository) CountByPostID(ctx context.Context, postID uuid.UUID, kind models.ReactionKind) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("post_id = ? AND kind = ?", postID, kind).
		Count(&count).Error; err != nil {
		return 0, storeErr("count "+string(kind)+"s", err)
	}
	return count, nil
}

// CountByPostIDs returns per-post like and dislike counts in one query.
// Posts without reactions are absent from the map.
func (r *ReactionRepository) CountByPostIDs(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]models.Engagement, error) {
	counts := make(map[uuid.UUID]models.Engagement, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []countRow
	if err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Select("post_id, kind, count(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id, kind").
		Scan(&rows).Error; err != nil {
		return nil, storeErr("count reactions", err)
	}

	for _, row := range rows {
		e := counts[row.PostID]
		switch row.Kind {
		case models.ReactionLike:
			e.Likes = row.Count
		case models.ReactionDislike:
			e.Dislikes = row.Count
		}
		counts[row.PostID] = e
	}
	return counts, nil
}
