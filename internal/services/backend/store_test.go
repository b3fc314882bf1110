package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/repository"
	"github.com/fastygo/algorithm/usecase"
)

type memoryRepo struct {
	mu       sync.Mutex
	fail     error
	loadErr  error
	slots    map[repository.Slot]*domain.Game
	saves    int
	archived []domain.QuestResults
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{slots: map[repository.Slot]*domain.Game{}}
}

func (r *memoryRepo) Load(_ context.Context, slot repository.Slot) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if g, ok := r.slots[slot]; ok {
		return g.Clone(), nil
	}
	return nil, domain.ErrGameNotFound
}

func (r *memoryRepo) Save(_ context.Context, slot repository.Slot, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saves++
	r.slots[slot] = g.Clone()
	return nil
}

func (r *memoryRepo) Archive(_ context.Context, _ string, res domain.QuestResults) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.archived = append(r.archived, res)
	return nil
}

func (r *memoryRepo) List(context.Context, string, int) ([]domain.QuestResults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.QuestResults(nil), r.archived...), nil
}

type recordingBuffer struct {
	snapshots []*domain.Game
	results   []domain.QuestResults
}

func (b *recordingBuffer) BufferSnapshot(_ context.Context, _ string, g *domain.Game) error {
	b.snapshots = append(b.snapshots, g)
	return nil
}

func (b *recordingBuffer) BufferQuestResults(_ context.Context, _ string, res domain.QuestResults) error {
	b.results = append(b.results, res)
	return nil
}

type recordingPublisher struct{ published []*domain.Game }

func (p *recordingPublisher) PublishSnapshot(_ context.Context, g *domain.Game) error {
	p.published = append(p.published, g)
	return nil
}

func templateGame() *domain.Game {
	return &domain.Game{
		UUID:    "tpl",
		TimeInt: 1_700_000_000_000,
		Users: []domain.User{
			{UUID: "u1", Name: "Ada"},
			{UUID: "u2", Name: "Alan"},
			{UUID: "u3", Name: "Grace"},
		},
		Posts: []domain.Post{
			{UUID: "p2", Author: "u2", Created: 20},
			{UUID: "p1", Author: "u1", Created: 10},
		},
		Views: []domain.View{
			{UUID: "v1", User: "u2", Post: "p1"},
			{UUID: "v2", User: "u3", Post: "p1"},
		},
		Reactions: []domain.Reaction{{UUID: "r1", Post: "p1", Author: "u2", Value: domain.ReactionLike, Time: 5}},
	}
}

type fixture struct {
	store     *Store
	repo      *memoryRepo
	buffer    *recordingBuffer
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemoryRepo(),
		buffer:    &recordingBuffer{},
		publisher: &recordingPublisher{},
		now:       time.UnixMilli(5_000),
	}
	f.store = New(Dependencies{
		Games:     f.repo,
		Quests:    f.repo,
		Buffer:    f.buffer,
		Publisher: f.publisher,
	}, Config{QuestGoal: 2, Now: func() time.Time { return f.now }}, zaptest.NewLogger(t))

	ctx := context.Background()
	require.NoError(t, f.store.SeedTemplate(ctx, templateGame()))
	require.NoError(t, f.store.Open(ctx))
	return f
}

func TestOpenStartsFromTemplate(t *testing.T) {
	f := newFixture(t)

	g, err := f.store.GameSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "tpl", g.UUID)
	assert.Equal(t, int64(5_000), g.Updated)
	assert.Equal(t, g.Updated, g.Created)
	assert.Len(t, g.Users, 3)
	assert.Equal(t, g.UUID, f.repo.slots[repository.SlotCurrent].UUID)
	require.Len(t, f.publisher.published, 1)
}

func TestOpenLoadsSavedGame(t *testing.T) {
	repo := newMemoryRepo()
	repo.slots[repository.SlotCurrent] = &domain.Game{UUID: "saved", Updated: 42}
	s := New(Dependencies{Games: repo}, Config{}, nil)

	require.NoError(t, s.Open(context.Background()))
	g, err := s.GameSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "saved", g.UUID)
	assert.Equal(t, int64(42), g.Updated)
}

func TestOpenWithUnreachableRepositoryUsesFallback(t *testing.T) {
	repo := newMemoryRepo()
	repo.loadErr = errors.New("connection refused")
	repo.fail = errors.New("connection refused")
	buf := &recordingBuffer{}
	fallback := templateGame()
	s := New(Dependencies{Games: repo, Buffer: buf}, Config{
		Fallback: fallback,
		Now:      func() time.Time { return time.UnixMilli(5_000) },
	}, zaptest.NewLogger(t))

	require.NoError(t, s.Open(context.Background()))
	g, err := s.GameSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "tpl", g.UUID)
	assert.Len(t, g.Users, 3)
	assert.Equal(t, int64(5_000), g.Updated)
	assert.Equal(t, "tpl", fallback.UUID, "fallback is copied")

	require.Len(t, buf.snapshots, 1)
	assert.Equal(t, g.UUID, buf.snapshots[0].UUID)
	assert.Empty(t, repo.slots)
}

func TestOpenWithUnreachableRepositoryFailsWithoutFallback(t *testing.T) {
	repo := newMemoryRepo()
	repo.loadErr = errors.New("connection refused")
	s := New(Dependencies{Games: repo}, Config{}, zaptest.NewLogger(t))

	err := s.Open(context.Background())
	require.ErrorIs(t, err, repo.loadErr)
	_, err = s.GameSnapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestSeedTemplateKeepsExisting(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SeedTemplate(context.Background(), &domain.Game{UUID: "other"}))
	assert.Equal(t, "tpl", f.repo.slots[repository.SlotTemplate].UUID)
	assert.ErrorIs(t, f.store.SeedTemplate(context.Background(), &domain.Game{}), domain.ErrInvalidPayload)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, _ := f.store.GameSnapshot(ctx)
	g.Users[0].Name = "changed"
	users, err := f.store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", users[0].Name)
}

func TestNewQuestPicksOldestPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.store.NewQuest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", q.ObjectUUID)
	assert.Equal(t, domain.QuestTargetPost, q.Type)
	assert.Equal(t, 2, q.Goal)

	again, err := f.store.NewQuest(ctx)
	require.NoError(t, err)
	assert.Equal(t, q.UUID, again.UUID, "running quest is returned")
}

func TestTargetPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.NewQuest(ctx)
	require.NoError(t, err)
	before, _ := f.store.GameSnapshot(ctx)

	ok, err := f.store.TargetPost(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.store.TargetPost(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.False(t, ok, "same pair is not targeted twice")

	after, _ := f.store.GameSnapshot(ctx)
	assert.Greater(t, after.Updated, before.Updated, "updated strictly increases even with a frozen clock")
	assert.Equal(t, 1, after.Quest.Progress)
	require.Len(t, after.Tasks, 1)
	assert.Equal(t, domain.TaskDistributePost, after.Tasks[0].Type)
	assert.True(t, after.Tasks[0].Completed)

	_, err = f.store.TargetPost(ctx, "p1", "u1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid), "author")
	_, err = f.store.TargetPost(ctx, "missing", "u2")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
	_, err = f.store.TargetPost(ctx, "p1", "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestEndQuestScoresAndStartsNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.store.NewQuest(ctx)
	require.NoError(t, err)

	res, err := f.store.EndQuest(ctx)
	require.NoError(t, err)
	assert.True(t, res.Quest.Ended)
	assert.Equal(t, first.UUID, res.Quest.UUID)
	assert.Equal(t, "Post engagement 50.0 from 2 views", res.Quest.Report)
	assert.InDelta(t, 50.0, res.GameScore.Engagement, 1e-9)
	require.Len(t, f.repo.archived, 1)

	g, _ := f.store.GameSnapshot(ctx)
	require.NotNil(t, g.Quest)
	assert.Equal(t, "p2", g.Quest.ObjectUUID)
	assert.Equal(t, []string{"p1"}, g.QuestLog)

	_, err = f.store.EndQuest(ctx)
	require.NoError(t, err)
	g, _ = f.store.GameSnapshot(ctx)
	assert.True(t, g.Quest.Ended, "no post left keeps the ended quest")
	saved := f.repo.slots[repository.SlotCurrent]
	assert.True(t, saved.Quest.Ended)
	assert.Equal(t, []string{"p1", "p2"}, saved.QuestLog)
	assert.Equal(t, g.Updated, saved.Updated)

	_, err = f.store.EndQuest(ctx)
	assert.ErrorIs(t, err, domain.ErrQuestNotFound)
	_, err = f.store.NewQuest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoQuestAvailable)
}

func TestIncreaseGameTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, _ := f.store.GameSnapshot(ctx)
	saves := f.repo.saves

	var now int64
	var err error
	for i := 0; i < DefaultTimeSaveEvery; i++ {
		now, err = f.store.IncreaseGameTime(ctx, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, before.TimeInt+int64(DefaultTimeSaveEvery)*time.Minute.Milliseconds(), now)
	assert.Equal(t, saves+1, f.repo.saves, "clock saved once per cadence")

	after, _ := f.store.GameSnapshot(ctx)
	assert.Equal(t, before.Updated, after.Updated, "clock is not a state change")
	assert.Equal(t, domain.FormatGameTime(now), after.Time)

	_, err = f.store.IncreaseGameTime(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestNavigation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		cursor usecase.Cursor
		from   string
		want   string
	}{
		{usecase.CursorFirst, "u2", "u1"},
		{usecase.CursorLast, "u1", "u3"},
		{usecase.CursorNext, "u1", "u2"},
		{usecase.CursorNext, "u3", "u3"},
		{usecase.CursorPrev, "u1", "u1"},
		{usecase.CursorPrev, "u3", "u2"},
		{usecase.CursorCurrent, "u2", "u2"},
		{usecase.CursorNext, "", "u1"},
		{usecase.CursorLast, "", "u3"},
	}
	for _, tc := range cases {
		u, err := f.store.NavigateUsers(ctx, tc.cursor, tc.from)
		require.NoError(t, err)
		assert.Equal(t, tc.want, u.UUID, "%s from %q", tc.cursor, tc.from)
	}

	p, err := f.store.NavigatePosts(ctx, usecase.CursorNext, "p2")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.UUID)

	_, err = f.store.NavigateUsers(ctx, usecase.Cursor("sideways"), "u1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDetailsAsOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reactions, err := f.store.ReactionsOnPost(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Empty(t, reactions)

	reactions, err = f.store.ReactionsOnPost(ctx, "p1", 5)
	require.NoError(t, err)
	assert.Len(t, reactions, 1)

	comments, err := f.store.CommentsOnPost(ctx, "p1", 100)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestFailedSaveIsBuffered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.NewQuest(ctx)
	require.NoError(t, err)

	f.repo.fail = errors.New("offline")
	_, err = f.store.TargetPost(ctx, "p1", "u3")
	require.NoError(t, err, "the in-memory game stays authoritative")
	require.Len(t, f.buffer.snapshots, 1)
	assert.Len(t, f.buffer.snapshots[0].Tasks, 1)

	_, err = f.store.EndQuest(ctx)
	require.NoError(t, err)
	assert.Len(t, f.buffer.results, 1)
}

func TestNewGameFromTemplateKeepsUpdatedIncreasing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.TargetPost(ctx, "p1", "u2")
	require.NoError(t, err)
	old, _ := f.store.GameSnapshot(ctx)

	f.now = time.UnixMilli(1)
	require.NoError(t, f.store.NewGameFromTemplate(ctx))
	g, _ := f.store.GameSnapshot(ctx)
	assert.NotEqual(t, old.UUID, g.UUID)
	assert.Greater(t, g.Updated, old.Updated)
	assert.Empty(t, g.Tasks)
}

func TestStoreWithoutGame(t *testing.T) {
	s := New(Dependencies{Games: newMemoryRepo()}, Config{}, nil)
	_, err := s.GameSnapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
	assert.Error(t, s.Open(context.Background()), "no template to start from")
}

func TestReadTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[{"uuid":"u1"}],"posts":[]}`), 0o600))

	g, err := ReadTemplateFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, g.UUID)
	assert.Len(t, g.Users, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = ReadTemplateFile(path)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}
