package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db.DB)
}

func createUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func createPost(t *testing.T, s *Store, author *models.User, title string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Title: title, Content: title + " body", CreatedAt: at.UTC()}
	require.NoError(t, s.Posts.Create(context.Background(), p))
	return p
}
