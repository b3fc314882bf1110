package game

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/usecase"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
	clock   *fakeClock
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f, clock: c}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// memoryBackend is an in-memory store with just enough behavior for the
// session.
type memoryBackend struct {
	mu       sync.Mutex
	game     *domain.Game
	next     []domain.Quest
	targets  map[string]bool
	newGames int
	now      int64
}

func newMemoryBackend(g *domain.Game) *memoryBackend {
	return &memoryBackend{game: g, targets: map[string]bool{}, now: 1000}
}

func (b *memoryBackend) touch() {
	b.now++
	b.game.Touch(b.now)
}

func (b *memoryBackend) GameSnapshot(context.Context) (*domain.Game, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.game.Clone(), nil
}

func (b *memoryBackend) Users(context.Context) ([]domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.game.Users), nil
}

func (b *memoryBackend) Posts(context.Context) ([]domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.game.Posts), nil
}

func (b *memoryBackend) Friendships(context.Context) ([]domain.Relationship, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.game.Relationships), nil
}

func (b *memoryBackend) Ratings(context.Context) ([]domain.View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.game.Views), nil
}

func (b *memoryBackend) User(_ context.Context, id string) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.game.User(id); ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (b *memoryBackend) Post(_ context.Context, id string) (*domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.game.Post(id); ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPostNotFound
}

func step(n, idx int, cursor usecase.Cursor) int {
	switch cursor {
	case usecase.CursorFirst:
		return 0
	case usecase.CursorLast:
		return n - 1
	case usecase.CursorPrev:
		return max(idx-1, 0)
	case usecase.CursorNext:
		return min(idx+1, n-1)
	}
	return max(idx, 0)
}

func (b *memoryBackend) NavigateUsers(_ context.Context, cursor usecase.Cursor, from string) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.IndexFunc(b.game.Users, func(u domain.User) bool { return u.UUID == from })
	u := b.game.Users[step(len(b.game.Users), idx, cursor)]
	return &u, nil
}

func (b *memoryBackend) NavigatePosts(_ context.Context, cursor usecase.Cursor, from string) (*domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.IndexFunc(b.game.Posts, func(p domain.Post) bool { return p.UUID == from })
	p := b.game.Posts[step(len(b.game.Posts), idx, cursor)]
	return &p, nil
}

func (b *memoryBackend) ReactionsOnPost(_ context.Context, post string, asOf int64) ([]domain.Reaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Reaction
	for _, r := range b.game.Reactions {
		if r.Post == post && r.Time <= asOf {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *memoryBackend) CommentsOnPost(_ context.Context, post string, asOf int64) ([]domain.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Comment
	for _, c := range b.game.Comments {
		if c.Post == post && c.Time <= asOf {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *memoryBackend) IncreaseGameTime(_ context.Context, delta int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.game.TimeInt += int64(delta) * 1000
	return b.game.TimeInt, nil
}

func (b *memoryBackend) TargetPost(_ context.Context, post, user string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := post + "/" + user
	if b.targets[key] {
		return false, nil
	}
	b.targets[key] = true
	b.game.Tasks = append(b.game.Tasks, domain.Task{UUID: key, User: user, Post: post, Type: domain.TaskDistributePost, Completed: true})
	if b.game.Quest != nil {
		b.game.Quest.Progress++
	}
	b.touch()
	return true, nil
}

func (b *memoryBackend) NewQuest(context.Context) (*domain.Quest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.next) == 0 {
		return nil, domain.ErrNoQuestAvailable
	}
	q := b.next[0]
	b.next = b.next[1:]
	b.game.Quest = &q
	b.touch()
	return q.Clone(), nil
}

func (b *memoryBackend) EndQuest(context.Context) (*domain.QuestResults, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.game.Quest == nil {
		return nil, domain.ErrQuestNotFound
	}
	ended := *b.game.Quest
	ended.Ended = true
	b.game.Quest = nil
	if len(b.next) > 0 {
		q := b.next[0]
		b.next = b.next[1:]
		b.game.Quest = &q
	}
	b.touch()
	return &domain.QuestResults{Quest: ended, GameScore: domain.Score{Engagement: 100}}, nil
}

func (b *memoryBackend) NewGameFromTemplate(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newGames++
	b.touch()
	return nil
}

func (b *memoryBackend) mutate(fn func(g *domain.Game)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.game)
	b.touch()
}

func sampleGame() *domain.Game {
	return &domain.Game{
		UUID: "g1",
		Users: []domain.User{
			{UUID: "u1", Name: "Ada", Surname: "Lovelace", ProfilePicture: "ada.png"},
			{UUID: "u2", Name: "Alan", Surname: "Turing", ProfilePicture: "alan.png"},
			{UUID: "u3", Name: "Grace", Surname: "Hopper", ProfilePicture: "grace.png"},
		},
		Posts: []domain.Post{
			{UUID: "p1", Author: "u1", Text: "hello", Created: 10},
			{UUID: "p2", Author: "u2", Text: "world", Created: 20},
		},
		Relationships: []domain.Relationship{{Source: "u1", Target: "u2", Label: domain.RelationshipFollow}},
		Views:         []domain.View{{UUID: "v1", User: "u3", Post: "p1"}},
		Reactions: []domain.Reaction{
			{UUID: "r1", Value: domain.ReactionLike, Author: "u3", Post: "p1", Time: 5},
			{UUID: "r2", Value: domain.ReactionHate, Author: "u2", Post: "p1", Time: 5},
			{UUID: "r3", Value: domain.ReactionLove, Author: "u2", Post: "p1", Time: 1 << 40},
		},
		Comments: []domain.Comment{{UUID: "c1", Author: "u3", Post: "p1", Text: "nice", Time: 7}},
		Quest:    &domain.Quest{UUID: "q1", Type: domain.QuestTargetPost, ObjectUUID: "p1", Goal: 2},
	}
}
