package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/models"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/pkg/cache"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	values []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, value)
	if e, ok := value.(queue.Event); ok {
		p.events = append(p.events, e)
	}
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	store      *repository.Store
	backend    *cache.MemoryCache
	cache      *AggregateCache
	clock      *fakeClock
	published  *recordingPublisher
	graph      *GraphService
	engagement *EngagementService
	feed       *FeedService
	posts      *PostService
	users      *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewNopLogger()
	store := repository.NewStore(db.DB)
	clock := &fakeClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	backend := cache.NewMemoryCache().WithClock(clock.Now)
	agg := NewAggregateCache(backend, "test:", 10*time.Second, log)
	published := &recordingPublisher{}
	events := NewEventPublisher(published, "test", log)

	graph := NewGraphService(store, agg, events, log)
	engagement := NewEngagementService(store, agg, events, log)
	feed := NewFeedService(store, graph, engagement, agg, log)
	posts := NewPostService(store, feed, agg, events, log)
	users := NewUserService(store, feed, agg, events, log)
	users.hashCost = bcrypt.MinCost

	return &testEnv{
		db:         db.DB,
		store:      store,
		backend:    backend,
		cache:      agg,
		clock:      clock,
		published:  published,
		graph:      graph,
		engagement: engagement,
		feed:       feed,
		posts:      posts,
		users:      users,
	}
}

// afterQueryOnce runs fn right after the first successful read of table,
// outside any transaction, to interleave a concurrent writer with a service
// call.
func (e *testEnv) afterQueryOnce(t *testing.T, table string, fn func()) {
	t.Helper()
	fired := false
	require.NoError(t, e.db.Callback().Query().After("gorm:query").Register("test:interleave_"+table, func(tx *gorm.DB) {
		if fired || tx.Error != nil || tx.Statement.Table != table {
			return
		}
		fired = true
		fn()
	}))
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x", FullName: username}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

// post bypasses PostService so the creation time can be pinned.
func (e *testEnv) post(t *testing.T, author *models.User, title string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Title: title, Content: title, CreatedAt: at.UTC(), UpdatedAt: at.UTC()}
	require.NoError(t, e.store.Posts.Create(context.Background(), p))
	return p
}

func (e *testEnv) follow(t *testing.T, follower, followed *models.User) {
	t.Helper()
	require.NoError(t, e.graph.Follow(context.Background(), follower.ID.String(), followed.ID.String()))
}

func titles(items []FeedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
