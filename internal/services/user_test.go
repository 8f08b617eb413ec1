package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/pkg/queue"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user, err := env.users.Register(ctx, &RegisterRequest{
		Username: "writer",
		Email:    "Writer@Example.com",
		Password: "secret1",
		FullName: "A Writer",
	})
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)

	logged, err := env.users.Login(ctx, &LoginRequest{Username: "writer", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, err = env.users.Login(ctx, &LoginRequest{Username: "writer", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = env.users.Login(ctx, &LoginRequest{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.users.Register(ctx, &RegisterRequest{Username: "taken", Email: "taken@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "x@example.com", Password: "secret1"}, apperr.ErrInvalidInput},
		{"bad email", RegisterRequest{Username: "valid", Email: "nope", Password: "secret1"}, apperr.ErrInvalidInput},
		{"short password", RegisterRequest{Username: "valid", Email: "v@example.com", Password: "123"}, apperr.ErrInvalidInput},
		{"duplicate username", RegisterRequest{Username: "taken", Email: "other@example.com", Password: "secret1"}, apperr.ErrUsernameTaken},
		{"duplicate email", RegisterRequest{Username: "other", Email: "TAKEN@example.com", Password: "secret1"}, apperr.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.users.Register(ctx, &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateProfileRefreshesOwnFeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.user(t, "someone")

	feed, err := env.feed.BuildFeed(ctx, u.ID.String())
	require.NoError(t, err)
	assert.Empty(t, feed.Viewer.About)

	about := "  writes about Go  "
	updated, err := env.users.UpdateProfile(ctx, u.ID.String(), &UpdateUserRequest{About: &about})
	require.NoError(t, err)
	assert.Equal(t, "writes about Go", updated.About)
	assert.Equal(t, "someone", updated.FullName)

	feed, err = env.feed.BuildFeed(ctx, u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "writes about Go", feed.Viewer.About)
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a")
	b := env.user(t, "b")
	env.follow(t, a, b)
	env.post(t, b, "mine", env.clock.Now())

	p, err := env.users.GetProfile(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.FollowerCount)
	assert.Equal(t, int64(0), p.FollowingCount)
	assert.Equal(t, int64(1), p.PostCount)
	require.Len(t, p.Posts, 1)
	assert.Equal(t, "b", p.Posts[0].AuthorUsername)

	_, err = env.users.GetProfile(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.user(t, "leaver")

	require.NoError(t, env.users.DeleteAccount(ctx, u.ID.String()))
	assert.Contains(t, env.published.types(), queue.EventUserDeleted)

	_, err := env.users.GetByID(ctx, u.ID.String())
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	assert.ErrorIs(t, env.users.DeleteAccount(ctx, u.ID.String()), apperr.ErrUserNotFound)
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "gopher")
	env.user(t, "rustacean")

	refs, err := env.users.SearchUsers(context.Background(), "goph", 0, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "gopher", refs[0].Username)
}

func TestUpdateProfileDoesNotRecreateDeletedUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.user(t, "someone")

	env.afterQueryOnce(t, "users", func() {
		require.NoError(t, env.store.DeleteUserCascade(context.Background(), u.ID))
	})

	about := "still here?"
	_, err := env.users.UpdateProfile(ctx, u.ID.String(), &UpdateUserRequest{About: &about})
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	gone, err := env.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
