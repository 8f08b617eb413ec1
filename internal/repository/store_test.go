package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bloglite/bloglite/internal/apperr"
	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/models"
)

func TestDeleteUserCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")

	bobPost := createPost(t, s, bob, "bob's post", time.Now())
	alicePost := createPost(t, s, alice, "alice's post", time.Now())

	require.NoError(t, s.Follows.Create(ctx, &models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	require.NoError(t, s.Follows.Create(ctx, &models.Follow{FollowerID: carol.ID, FollowingID: alice.ID}))
	require.NoError(t, s.Follows.Create(ctx, &models.Follow{FollowerID: carol.ID, FollowingID: bob.ID}))
	require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: alice.ID, PostID: bobPost.ID, Kind: models.ReactionLike}))
	require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: carol.ID, PostID: alicePost.ID, Kind: models.ReactionDislike}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{UserID: alice.ID, PostID: bobPost.ID, Content: "hi"}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{UserID: carol.ID, PostID: alicePost.ID, Content: "hey"}))

	require.NoError(t, s.DeleteUserCascade(ctx, alice.ID))

	u, err := s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, u)

	likes, err := s.Reactions.CountByPostID(ctx, bobPost.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Zero(t, likes)

	comments, err := s.Comments.CountByPostID(ctx, bobPost.ID)
	require.NoError(t, err)
	assert.Zero(t, comments)

	p, err := s.Posts.GetByID(ctx, alicePost.ID)
	require.NoError(t, err)
	assert.Nil(t, p)

	var orphanReactions, orphanComments int64
	require.NoError(t, s.db.Model(&models.Reaction{}).Where("post_id = ?", alicePost.ID).Count(&orphanReactions).Error)
	require.NoError(t, s.db.Model(&models.Comment{}).Where("post_id = ?", alicePost.ID).Count(&orphanComments).Error)
	assert.Zero(t, orphanReactions)
	assert.Zero(t, orphanComments)

	followers, err := s.Follows.GetFollowers(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "carol", followers[0].Username)

	following, err := s.Follows.GetFollowing(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, bob.ID, following[0].ID)
}

func TestDeletePostCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	post := createPost(t, s, bob, "p", time.Now())
	other := createPost(t, s, bob, "q", time.Now())

	require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: alice.ID, PostID: post.ID, Kind: models.ReactionLike}))
	require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: alice.ID, PostID: other.ID, Kind: models.ReactionLike}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{UserID: alice.ID, PostID: post.ID, Content: "c"}))

	require.NoError(t, s.DeletePostCascade(ctx, post.ID))

	counts, err := s.Reactions.CountByPostIDs(ctx, []uuid.UUID{post.ID, other.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[post.ID].Likes)
	assert.Equal(t, int64(1), counts[other.ID].Likes)

	n, err := s.Comments.CountByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx *Store) error {
		require.NoError(t, tx.Users.Create(ctx, &models.User{Username: "ghost", Email: "ghost@example.com", Password: "x"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := s.Users.GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetByAuthorsOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := createPost(t, s, bob, "older", t0)
	newer := createPost(t, s, carol, "newer", t0.Add(time.Hour))
	tieA := createPost(t, s, bob, "tie a", t0.Add(30*time.Minute))
	tieB := createPost(t, s, carol, "tie b", t0.Add(30*time.Minute))

	posts, err := s.Posts.GetByAuthors(ctx, []uuid.UUID{bob.ID, carol.ID}, time.Time{})
	require.NoError(t, err)
	require.Len(t, posts, 4)

	first, second := tieA, tieB
	if tieB.ID.String() < tieA.ID.String() {
		first, second = tieB, tieA
	}
	assert.Equal(t, []uuid.UUID{newer.ID, first.ID, second.ID, older.ID},
		[]uuid.UUID{posts[0].ID, posts[1].ID, posts[2].ID, posts[3].ID})

	recent, err := s.Posts.GetByAuthors(ctx, []uuid.UUID{bob.ID, carol.ID}, t0.Add(45*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, newer.ID, recent[0].ID)

	none, err := s.Posts.GetByAuthors(ctx, nil, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCountByPostIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	author := createUser(t, s, "author")
	post := createPost(t, s, author, "p", time.Now())
	quiet := createPost(t, s, author, "quiet", time.Now())

	for i, kind := range []models.ReactionKind{models.ReactionLike, models.ReactionLike, models.ReactionDislike} {
		u := createUser(t, s, "reader"+string(rune('a'+i)))
		require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: u.ID, PostID: post.ID, Kind: kind}))
		require.NoError(t, s.Comments.Create(ctx, &models.Comment{UserID: u.ID, PostID: post.ID, Content: "c"}))
	}

	reactions, err := s.Reactions.CountByPostIDs(ctx, []uuid.UUID{post.ID, quiet.ID})
	require.NoError(t, err)
	assert.Equal(t, models.Engagement{Likes: 2, Dislikes: 1}, reactions[post.ID])
	assert.Equal(t, models.Engagement{}, reactions[quiet.ID])

	comments, err := s.Comments.CountByPostIDs(ctx, []uuid.UUID{post.ID, quiet.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), comments[post.ID])
	assert.Zero(t, comments[quiet.ID])
}

func TestFollowEdgeIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := createUser(t, s, "a")
	b := createUser(t, s, "b")

	require.NoError(t, s.Follows.Create(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID}))
	assert.Error(t, s.Follows.Create(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID}))

	n, err := s.Follows.CountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := s.Follows.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = s.Follows.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStoreErrClassification(t *testing.T) {
	dup := storeErr("create follow", gorm.ErrDuplicatedKey)
	assert.ErrorIs(t, dup, apperr.ErrConflict)
	assert.NotErrorIs(t, dup, apperr.ErrStoreFailure)

	fk := storeErr("create follow", gorm.ErrForeignKeyViolated)
	assert.ErrorIs(t, fk, apperr.ErrNotFound)
	assert.NotErrorIs(t, fk, apperr.ErrStoreFailure)

	other := storeErr("create follow", errors.New("disk full"))
	assert.ErrorIs(t, other, apperr.ErrStoreFailure)
	assert.NotErrorIs(t, other, apperr.ErrConflict)
}

func TestDatabasePing(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestWritesReferencingMissingRowsAreRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	post := createPost(t, s, alice, "p", time.Now())
	ghost := uuid.New()

	err := s.Follows.Create(ctx, &models.Follow{FollowerID: alice.ID, FollowingID: ghost})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.Reactions.Create(ctx, &models.Reaction{UserID: alice.ID, PostID: ghost, Kind: models.ReactionLike})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.Comments.Create(ctx, &models.Comment{UserID: ghost, PostID: post.ID, Content: "c"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.Posts.Create(ctx, &models.Post{UserID: ghost, Title: "t", Content: "c"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserDeleteCascadesThroughSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	bobPost := createPost(t, s, bob, "p", time.Now())

	require.NoError(t, s.Follows.Create(ctx, &models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	require.NoError(t, s.Reactions.Create(ctx, &models.Reaction{UserID: alice.ID, PostID: bobPost.ID, Kind: models.ReactionLike}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{UserID: alice.ID, PostID: bobPost.ID, Content: "c"}))

	// bypasses DeleteUserCascade; the schema alone must clean up
	require.NoError(t, s.Users.Delete(ctx, bob.ID))

	following, err := s.Follows.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, following)

	reaction, err := s.Reactions.Get(ctx, alice.ID, bobPost.ID)
	require.NoError(t, err)
	assert.Nil(t, reaction)

	comments, err := s.Comments.CountByPostID(ctx, bobPost.ID)
	require.NoError(t, err)
	assert.Zero(t, comments)

	ids, err := s.Posts.IDsByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUpdateMissingRowsDoesNotInsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	post := createPost(t, s, alice, "p", time.Now())

	require.NoError(t, s.DeletePostCascade(ctx, post.ID))
	post.Title = "edited"
	assert.ErrorIs(t, s.Posts.Update(ctx, post), apperr.ErrPostNotFound)
	got, err := s.Posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.DeleteUserCascade(ctx, alice.ID))
	alice.About = "edited"
	assert.ErrorIs(t, s.Users.Update(ctx, alice), apperr.ErrUserNotFound)
	u, err := s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, u)
}
