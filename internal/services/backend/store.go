package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/repository"
	"github.com/fastygo/algorithm/usecase"
)

const (
	DefaultTimeSaveEvery = 10
	DefaultQuestGoal     = 3
	DefaultTickDuration  = time.Minute
)

// Publisher fans an accepted snapshot out to other sessions.
type Publisher interface {
	PublishSnapshot(ctx context.Context, game *domain.Game) error
}

type Config struct {
	// TimeSaveEvery persists the clock every n ticks. Other mutations are
	// saved immediately.
	TimeSaveEvery int
	QuestGoal     int
	// TickDuration is the in-game time one tick adds.
	TickDuration time.Duration
	Now          func() time.Time
	// Fallback starts a game when no template can be loaded, e.g. while
	// Postgres is unreachable at boot.
	Fallback *domain.Game
}

// Dependencies groups the optional collaborators of the store. Only Games
// is required.
type Dependencies struct {
	Games     repository.GameRepository
	Quests    repository.QuestRepository
	Cache     repository.SnapshotCache
	Buffer    usecase.SnapshotBuffer
	Publisher Publisher
}

// Store is the authoritative game store. It holds the current snapshot in
// memory, bumps Updated on every mutation and writes through to the
// repositories.
type Store struct {
	mu    sync.Mutex
	game  *domain.Game
	ticks int

	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

var _ usecase.Backend = (*Store)(nil)

func New(deps Dependencies, cfg Config, logger *zap.Logger) *Store {
	if cfg.TimeSaveEvery <= 0 {
		cfg.TimeSaveEvery = DefaultTimeSaveEvery
	}
	if cfg.QuestGoal <= 0 {
		cfg.QuestGoal = DefaultQuestGoal
	}
	if cfg.TickDuration <= 0 {
		cfg.TickDuration = DefaultTickDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{deps: deps, cfg: cfg, logger: logger}
}

// Open loads the current game, starting one from the template when no game
// was ever saved. With a Fallback configured an unreachable repository also
// starts a new game; its saves go to the buffer until the repository is back.
func (s *Store) Open(ctx context.Context) error {
	game, err := s.load(ctx, repository.SlotCurrent)
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		return s.NewGameFromTemplate(ctx)
	case err != nil && s.cfg.Fallback != nil:
		s.logger.Warn("current game unavailable, starting a new one", zap.Error(err))
		return s.NewGameFromTemplate(ctx)
	case err != nil:
		return err
	}

	s.mu.Lock()
	s.game = game
	s.mu.Unlock()
	s.logger.Info("game loaded", zap.String("game", game.UUID), zap.Int64("updated", game.Updated))
	return nil
}

// SeedTemplate stores game as the template unless one already exists.
func (s *Store) SeedTemplate(ctx context.Context, game *domain.Game) error {
	if !game.Valid() {
		return domain.ErrInvalidPayload
	}
	if _, err := s.load(ctx, repository.SlotTemplate); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrGameNotFound) {
		return err
	}
	if err := s.deps.Games.Save(ctx, repository.SlotTemplate, game); err != nil {
		return err
	}
	s.logger.Info("template seeded", zap.String("game", game.UUID))
	return nil
}

// ReadTemplateFile parses a snapshot exported as JSON.
func ReadTemplateFile(path string) (*domain.Game, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var game domain.Game
	if err := json.Unmarshal(raw, &game); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "malformed template", err)
	}
	if game.UUID == "" {
		game.UUID = uuid.NewString()
	}
	return &game, nil
}

func (s *Store) template(ctx context.Context) (*domain.Game, error) {
	template, err := s.load(ctx, repository.SlotTemplate)
	if err == nil {
		return template, nil
	}
	if s.cfg.Fallback == nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	s.logger.Warn("template unavailable, using the fallback", zap.Error(err))
	return s.cfg.Fallback, nil
}

func (s *Store) load(ctx context.Context, slot repository.Slot) (*domain.Game, error) {
	if s.deps.Cache != nil {
		game, err := s.deps.Cache.Get(ctx, slot)
		if err == nil {
			return game, nil
		}
		if !errors.Is(err, domain.ErrGameNotFound) {
			s.logger.Warn("snapshot cache read failed", zap.String("slot", string(slot)), zap.Error(err))
		}
	}

	game, err := s.deps.Games.Load(ctx, slot)
	if err != nil {
		return nil, err
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, slot, game); err != nil {
			s.logger.Warn("snapshot cache write failed", zap.String("slot", string(slot)), zap.Error(err))
		}
	}
	return game, nil
}

// current must be called with mu held.
func (s *Store) current() (*domain.Game, error) {
	if s.game == nil {
		return nil, domain.ErrGameNotFound
	}
	return s.game, nil
}

func (s *Store) read(fn func(g *domain.Game) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.current()
	if err != nil {
		return err
	}
	return fn(g)
}

// commit must be called with mu held. It bumps Updated and writes the
// snapshot through.
func (s *Store) commit(ctx context.Context, g *domain.Game) {
	g.Touch(s.cfg.Now().UnixMilli())
	s.persist(ctx, g)
}

func (s *Store) persist(ctx context.Context, g *domain.Game) {
	snapshot := g.Clone()
	if err := s.deps.Games.Save(ctx, repository.SlotCurrent, snapshot); err != nil {
		s.logger.Warn("snapshot save failed", zap.String("game", g.UUID), zap.Error(err))
		if s.deps.Buffer != nil {
			if err := s.deps.Buffer.BufferSnapshot(ctx, string(repository.SlotCurrent), snapshot); err != nil {
				s.logger.Error("failed to buffer snapshot", zap.Error(err))
			}
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, repository.SlotCurrent, snapshot); err != nil {
			s.logger.Warn("snapshot cache write failed", zap.Error(err))
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("snapshot publish failed", zap.Error(err))
		}
	}
}

func (s *Store) GameSnapshot(context.Context) (*domain.Game, error) {
	var out *domain.Game
	err := s.read(func(g *domain.Game) error {
		out = g.Clone()
		return nil
	})
	return out, err
}

func (s *Store) Users(context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.read(func(g *domain.Game) error {
		out = slices.Clone(g.Users)
		for i := range out {
			out[i].Traits = slices.Clone(out[i].Traits)
		}
		return nil
	})
	return out, err
}

func (s *Store) Posts(context.Context) ([]domain.Post, error) {
	var out []domain.Post
	err := s.read(func(g *domain.Game) error {
		out = slices.Clone(g.Posts)
		return nil
	})
	return out, err
}

func (s *Store) Friendships(context.Context) ([]domain.Relationship, error) {
	var out []domain.Relationship
	err := s.read(func(g *domain.Game) error {
		out = slices.Clone(g.Relationships)
		return nil
	})
	return out, err
}

func (s *Store) Ratings(context.Context) ([]domain.View, error) {
	var out []domain.View
	err := s.read(func(g *domain.Game) error {
		out = slices.Clone(g.Views)
		return nil
	})
	return out, err
}

func (s *Store) User(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := s.read(func(g *domain.Game) error {
		u, ok := g.User(id)
		if !ok {
			return domain.ErrUserNotFound
		}
		cp := *u
		cp.Traits = slices.Clone(u.Traits)
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) Post(_ context.Context, id string) (*domain.Post, error) {
	var out *domain.Post
	err := s.read(func(g *domain.Game) error {
		p, ok := g.Post(id)
		if !ok {
			return domain.ErrPostNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) NavigateUsers(_ context.Context, cursor usecase.Cursor, from string) (*domain.User, error) {
	var out *domain.User
	err := s.read(func(g *domain.Game) error {
		idx := slices.IndexFunc(g.Users, func(u domain.User) bool { return u.UUID == from })
		i, ok := resolveCursor(len(g.Users), idx, cursor)
		if !ok {
			return domain.ErrUserNotFound
		}
		cp := g.Users[i]
		cp.Traits = slices.Clone(cp.Traits)
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) NavigatePosts(_ context.Context, cursor usecase.Cursor, from string) (*domain.Post, error) {
	var out *domain.Post
	err := s.read(func(g *domain.Game) error {
		idx := slices.IndexFunc(g.Posts, func(p domain.Post) bool { return p.UUID == from })
		i, ok := resolveCursor(len(g.Posts), idx, cursor)
		if !ok {
			return domain.ErrPostNotFound
		}
		cp := g.Posts[i]
		out = &cp
		return nil
	})
	return out, err
}

// resolveCursor clamps at both ends. An unknown origin (idx < 0) starts
// from the first element.
func resolveCursor(n, idx int, cursor usecase.Cursor) (int, bool) {
	if n == 0 || !cursor.Valid() {
		return 0, false
	}
	if idx < 0 {
		if cursor == usecase.CursorLast {
			return n - 1, true
		}
		return 0, true
	}
	switch cursor {
	case usecase.CursorFirst:
		return 0, true
	case usecase.CursorLast:
		return n - 1, true
	case usecase.CursorPrev:
		return max(idx-1, 0), true
	case usecase.CursorNext:
		return min(idx+1, n-1), true
	}
	return idx, true
}

func (s *Store) ReactionsOnPost(_ context.Context, post string, asOf int64) ([]domain.Reaction, error) {
	var out []domain.Reaction
	err := s.read(func(g *domain.Game) error {
		for _, r := range g.Reactions {
			if r.Post == post && r.Time <= asOf {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CommentsOnPost(_ context.Context, post string, asOf int64) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.read(func(g *domain.Game) error {
		for _, c := range g.Comments {
			if c.Post == post && c.Time <= asOf {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

// IncreaseGameTime advances the clock without bumping Updated. The clock is
// saved every TimeSaveEvery ticks.
func (s *Store) IncreaseGameTime(ctx context.Context, delta int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.current()
	if err != nil {
		return 0, err
	}
	if delta < 0 {
		return g.TimeInt, domain.ErrInvalidPayload
	}

	g.TimeInt += int64(delta) * s.cfg.TickDuration.Milliseconds()
	g.Time = domain.FormatGameTime(g.TimeInt)
	s.ticks += delta
	if s.ticks >= s.cfg.TimeSaveEvery {
		s.ticks = 0
		if err := s.deps.Games.Save(ctx, repository.SlotCurrent, g.Clone()); err != nil {
			s.logger.Debug("clock save failed", zap.Error(err))
		}
	}
	return g.TimeInt, nil
}

// TargetPost records that post will be distributed to user. It returns
// false when that was already decided.
func (s *Store) TargetPost(ctx context.Context, post, user string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.current()
	if err != nil {
		return false, err
	}
	p, ok := g.Post(post)
	if !ok {
		return false, domain.ErrPostNotFound
	}
	if _, ok := g.User(user); !ok {
		return false, domain.ErrUserNotFound
	}
	if p.Author == user {
		return false, domain.NewError(domain.ErrCodeInvalid, "post cannot be directed to its author")
	}

	for _, t := range g.Tasks {
		if t.Type == domain.TaskDistributePost && t.Post == post && t.User == user {
			return false, nil
		}
	}

	g.Tasks = append(g.Tasks, domain.Task{
		UUID:      uuid.NewString(),
		User:      user,
		Post:      post,
		Completed: true,
		Type:      domain.TaskDistributePost,
		Time:      g.TimeInt,
	})
	if g.Quest != nil && !g.Quest.Ended && g.Quest.ObjectUUID == post {
		g.Quest.Progress++
	}
	s.commit(ctx, g)
	return true, nil
}

// NewQuest returns the running quest or starts one on the oldest post that
// has not been a quest object yet.
func (s *Store) NewQuest(ctx context.Context) (*domain.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	if g.Quest != nil && !g.Quest.Ended {
		return g.Quest.Clone(), nil
	}
	q, err := s.nextQuest(g)
	if err != nil {
		return nil, err
	}
	g.Quest = q
	s.commit(ctx, g)
	s.logger.Info("quest started", zap.String("quest", q.UUID), zap.String("post", q.ObjectUUID), zap.Int("goal", q.Goal))
	return q.Clone(), nil
}

func (s *Store) nextQuest(g *domain.Game) (*domain.Quest, error) {
	var pick *domain.Post
	for i := range g.Posts {
		p := &g.Posts[i]
		if slices.Contains(g.QuestLog, p.UUID) {
			continue
		}
		if g.Quest != nil && g.Quest.ObjectUUID == p.UUID {
			continue
		}
		if pick == nil || p.Created < pick.Created {
			pick = p
		}
	}
	if pick == nil {
		return nil, domain.ErrNoQuestAvailable
	}

	audience := 0
	for _, u := range g.Users {
		if u.UUID != pick.Author {
			audience++
		}
	}
	goal := min(s.cfg.QuestGoal, audience)
	if goal <= 0 {
		return nil, domain.ErrNoQuestAvailable
	}
	return &domain.Quest{
		UUID:       uuid.NewString(),
		Type:       domain.QuestTargetPost,
		ObjectUUID: pick.UUID,
		Goal:       goal,
	}, nil
}

// EndQuest scores the running quest as it stands, archives it and starts
// the next one when a post is left.
func (s *Store) EndQuest(ctx context.Context) (*domain.QuestResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	if g.Quest == nil || g.Quest.Ended {
		return nil, domain.ErrQuestNotFound
	}

	ended := *g.Quest
	ended.Ended = true
	ended.Report = questReport(g, ended.ObjectUUID)
	g.QuestLog = append(g.QuestLog, ended.ObjectUUID)
	g.Quest = &ended

	results := domain.QuestResults{Quest: ended, GameScore: domain.ComputeScore(g)}
	s.archive(ctx, g.UUID, results)

	if next, err := s.nextQuest(g); err != nil {
		s.logger.Info("no new quest", zap.String("game", g.UUID), zap.Error(err))
	} else {
		g.Quest = next
	}
	s.commit(ctx, g)
	return &results, nil
}

func questReport(g *domain.Game, post string) string {
	var views, comments, reactions int
	for _, v := range g.Views {
		if v.Post == post {
			views++
		}
	}
	for _, c := range g.Comments {
		if c.Post == post {
			comments++
		}
	}
	for _, r := range g.Reactions {
		if r.Post == post {
			reactions++
		}
	}
	engagement := domain.GetAvgEngagement(views, comments, reactions)
	return fmt.Sprintf("Post engagement %.1f from %d views", engagement, views)
}

func (s *Store) archive(ctx context.Context, gameID string, results domain.QuestResults) {
	if s.deps.Quests == nil {
		return
	}
	if err := s.deps.Quests.Archive(ctx, gameID, results); err != nil {
		s.logger.Warn("quest archive failed", zap.String("quest", results.Quest.UUID), zap.Error(err))
		if s.deps.Buffer != nil {
			if err := s.deps.Buffer.BufferQuestResults(ctx, gameID, results); err != nil {
				s.logger.Error("failed to buffer quest results", zap.Error(err))
			}
		}
	}
}

// QuestHistory lists the archived results of the current game, newest
// first.
func (s *Store) QuestHistory(ctx context.Context, limit int) ([]domain.QuestResults, error) {
	if s.deps.Quests == nil {
		return nil, nil
	}
	s.mu.Lock()
	g, err := s.current()
	var id string
	if err == nil {
		id = g.UUID
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.deps.Quests.List(ctx, id, limit)
}

// NewGameFromTemplate replaces the current game with a fresh copy of the
// template. Updated keeps increasing across games.
func (s *Store) NewGameFromTemplate(ctx context.Context) error {
	template, err := s.template(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := template.Clone()
	g.UUID = uuid.NewString()
	g.Created = 0
	g.Updated = 0
	if s.game != nil {
		g.Updated = s.game.Updated
	}
	if g.Quest != nil && g.Quest.Ended {
		g.Quest = nil
	}
	g.QuestLog = nil
	if g.TimeInt != 0 {
		g.Time = domain.FormatGameTime(g.TimeInt)
	}

	s.game = g
	s.ticks = 0
	s.commit(ctx, g)
	s.logger.Info("new game started", zap.String("game", g.UUID), zap.String("template", template.UUID))
	return nil
}
