package repository

import (
	"context"
	"errors"

	"github.com/bloglite/bloglite/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return storeErr("create comment", err)
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("get comment", err)
	}
	return &comment, nil
}

// GetByPostID returns the post's comments oldest first.
func (r *CommentRepository) GetByPostID(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, storeErr("get comments", err)
	}
	return comments, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		return storeErr("delete comment", err)
	}
	return nil
}

func (r *CommentRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
		return storeErr("delete comments of user", err)
	}
	return nil
}

func (r *CommentRepository) DeleteByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return storeErr("delete comments of posts", err)
	}
	return nil
}

func (r *CommentRepository) CountByPostID(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, storeErr("count comments", err)
	}
	return count, nil
}

// CountByPostIDs returns per-post comment counts in one query.
func (r *CommentRepository) CountByPostIDs(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []countRow
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("post_id, count(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, storeErr("count comments", err)
	}

	for _, row := range rows {
		counts[row.PostID] = row.Count
	}
	return counts, nil
}
