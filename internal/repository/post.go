package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return storeErr("create post", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("get post", err)
	}
	return &post, nil
}

// GetByAuthors returns posts by any of the given authors created at or after
// since (zero means no bound), newest first with ties broken by id.
func (r *PostRepository) GetByAuthors(ctx context.Context, authorIDs []uuid.UUID, since time.Time) ([]*models.Post, error) {
	var posts []*models.Post
	if len(authorIDs) == 0 {
		return posts, nil
	}
	db := r.db.WithContext(ctx).Where("user_id IN ?", authorIDs)
	if !since.IsZero() {
		db = db.Where("created_at >= ?", since.UTC())
	}
	if err := db.
		Order("created_at DESC").
		Order("id ASC").
		Find(&posts).Error; err != nil {
		return nil, storeErr("get posts by authors", err)
	}
	return posts, nil
}

func (r *PostRepository) IDsByAuthor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, storeErr("get post ids by author", err)
	}
	return ids, nil
}

// Update rewrites the editable columns of an existing post. It never
// inserts, so a post deleted since it was read stays deleted.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	result := r.db.WithContext(ctx).
		Model(post).
		Select("title", "preview", "content", "image_ref", "updated_at").
		Updates(post)
	if result.Error != nil {
		return storeErr("update post", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrPostNotFound
	}
	return nil
}

func (r *PostRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
		return storeErr("delete posts", err)
	}
	return nil
}

func (r *PostRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, storeErr("count posts", err)
	}
	return count, nil
}

func (r *PostRepository) Search(ctx context.Context, query string, offset, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	db := r.db.WithContext(ctx)

	if query != "" {
		like := "%" + query + "%"
		db = db.Where("title LIKE ? OR preview LIKE ?", like, like)
	}

	if err := db.Order("created_at DESC").Order("id ASC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return nil, storeErr("search posts", err)
	}
	return posts, nil
}
