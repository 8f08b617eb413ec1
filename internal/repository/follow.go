package repository

import (
	"context"

	"github.com/bloglite/bloglite/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

func (r *FollowRepository) Create(ctx context.Context, follow *models.Follow) error {
	if err := r.db.WithContext(ctx).Create(follow).Error; err != nil {
		return storeErr("create follow", err)
	}
	return nil
}

// Delete reports how many edges were removed (0 or 1).
func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return 0, storeErr("delete follow", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteByUserID drops every edge touching the user on either side.
func (r *FollowRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? OR following_id = ?", userID, userID).
		Delete(&models.Follow{}).Error; err != nil {
		return storeErr("delete follows of user", err)
	}
	return nil
}

func (r *FollowRepository) GetFollowers(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error) {
	var users []models.UserRef
	if err := r.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.username").
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("users.username ASC").
		Scan(&users).Error; err != nil {
		return nil, storeErr("get followers", err)
	}
	return users, nil
}

func (r *FollowRepository) GetFollowing(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error) {
	var users []models.UserRef
	if err := r.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.username").
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("users.username ASC").
		Scan(&users).Error; err != nil {
		return nil, storeErr("get following", err)
	}
	return users, nil
}

// FollowingIDs reads the edge table only.
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, storeErr("get following ids", err)
	}
	return ids, nil
}

func (r *FollowRepository) CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, storeErr("count followers", err)
	}
	return count, nil
}

func (r *FollowRepository) CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, storeErr("count following", err)
	}
	return count, nil
}

func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, storeErr("check follow status", err)
	}
	return count > 0, nil
}
