// Package game owns one player session: the game loop, the idle watchdog,
// the graph scene and the panels. All session state is confined to the
// goroutine running Session.Run; public methods post work to it.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/graph"
	"github.com/fastygo/algorithm/usecase"
	"github.com/fastygo/algorithm/usecase/merge"
	"github.com/fastygo/algorithm/usecase/quest"
)

var ErrSessionStopped = errors.New("session stopped")

// ControlChannel asks the relay for the controller role.
type ControlChannel interface {
	RequestControl(ctx context.Context) error
}

type Config struct {
	TickInterval    time.Duration
	IdleTimeout     time.Duration
	DetailCacheSize int
	MailboxSize     int
	// ControllerURL is the entry point handed out to a second device.
	ControllerURL string
	Clock         Clock
	Rand          *rand.Rand
	Style         *graph.Style
}

type Session struct {
	backend  usecase.Backend
	merger   *merge.Merger
	workflow *quest.Workflow
	builder  *graph.Builder
	loop     *Loop
	idle     *IdleWatchdog
	details  *lru.Cache
	control  ControlChannel
	rand     *rand.Rand
	cfg      Config
	logger   *zap.Logger

	mailbox chan func()
	stopped chan struct{}

	// confined to Run
	runCtx     context.Context
	scene      *graph.Scene
	snapshot   *domain.Game
	score      domain.Score
	clock      int64
	hint       quest.Hint
	nav        Navigation
	questPost  *PostSummary
	focused    string
	user       panel[UserPanel]
	post       panel[PostPanel]
	popup      *Popup
	controller bool
}

func NewSession(backend usecase.Backend, merger *merge.Merger, workflow *quest.Workflow, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DetailCacheSize <= 0 {
		cfg.DetailCacheSize = 256
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 64
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	style := graph.DefaultStyle()
	if cfg.Style != nil {
		style = *cfg.Style
	}
	details, _ := lru.New(cfg.DetailCacheSize)

	s := &Session{
		backend:  backend,
		merger:   merger,
		workflow: workflow,
		builder:  graph.NewBuilder(style, logger.Named("graph")),
		details:  details,
		rand:     cfg.Rand,
		cfg:      cfg,
		logger:   logger,
		mailbox:  make(chan func(), cfg.MailboxSize),
		stopped:  make(chan struct{}),
		nav:      NavMain,
	}
	s.loop = NewLoop(cfg.TickInterval, s.scheduledTick, logger.Named("loop"))
	s.idle = NewIdleWatchdog(cfg.Clock, cfg.IdleTimeout, s.userIsIdle)
	return s
}

// SetControlChannel wires the push channel used by RequestControl.
func (s *Session) SetControlChannel(c ControlChannel) {
	s.control = c
}

// Run drains the session mailbox and the merged snapshot stream until ctx
// is done. It must be called once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.idle.Stop()

	s.runCtx = ctx
	snapshots := s.merger.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case g, ok := <-snapshots:
			if !ok {
				return nil
			}
			s.handleSnapshot(ctx, g)
		case fn := <-s.mailbox:
			fn()
		}
	}
}

// Close stops the timers. Run returns once its context is cancelled.
func (s *Session) Close(ctx context.Context) {
	s.idle.Stop()
	s.loop.Close(ctx)
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case s.mailbox <- func() { done <- fn() }:
	case <-s.stopped:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-s.stopped:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send queues fn without waiting for it. A full mailbox drops fn unless
// block is set.
func (s *Session) send(fn func(), block bool) bool {
	if block {
		select {
		case s.mailbox <- fn:
			return true
		case <-s.stopped:
			return false
		}
	}
	select {
	case s.mailbox <- fn:
		return true
	case <-s.stopped:
		return false
	default:
		s.logger.Warn("session mailbox full, dropping event")
		return false
	}
}

func (s *Session) scheduledTick() {
	s.send(func() { s.tick(s.runCtx) }, false)
}

func (s *Session) userIsIdle() {
	s.send(func() {
		s.loop.Idle()
		s.nav = NavCinematic
		s.logger.Info("player idle, switching to cinematic view")
	}, true)
}

// Init loads the graph and the first snapshot, makes sure a quest exists
// and starts the loop.
func (s *Session) Init(ctx context.Context) error {
	return s.do(ctx, func() error { return s.init(ctx) })
}

func (s *Session) init(ctx context.Context) error {
	var (
		users       []domain.User
		posts       []domain.Post
		friendships []domain.Relationship
		ratings     []domain.View
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) { users, err = s.backend.Users(gctx); return err })
	grp.Go(func() (err error) { posts, err = s.backend.Posts(gctx); return err })
	grp.Go(func() (err error) { friendships, err = s.backend.Friendships(gctx); return err })
	grp.Go(func() (err error) { ratings, err = s.backend.Ratings(gctx); return err })
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	g := s.builder.Build(users, posts, friendships, ratings)
	graph.RandomLayout{Rand: s.rand}.Assign(g)
	graph.ForceAtlas2{Settings: graph.FullSettings()}.Assign(g)
	s.scene = graph.NewScene(g, s.builder, nil, s.logger.Named("scene"))
	s.registerNodeHandlers()
	s.focused = ""
	s.details.Purge()
	s.logger.Info("graph built", zap.Int("nodes", g.Order()), zap.Int("edges", g.Size()))

	snapshot, err := s.backend.GameSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load game: %w", err)
	}
	if snapshot.Quest == nil {
		s.logger.Warn("game has no quest, creating one")
		if _, err := s.backend.NewQuest(ctx); err != nil {
			return fmt.Errorf("new quest: %w", err)
		}
		if snapshot, err = s.backend.GameSnapshot(ctx); err != nil {
			return fmt.Errorf("load game: %w", err)
		}
	}
	if !s.merger.Offer(snapshot) {
		// already held; render it against the new scene
		s.handleSnapshot(ctx, s.merger.Current())
	}
	if s.workflow.PostUUID() != "" {
		s.refocus()
	}

	s.nav = NavMain
	s.loop.Wake()
	s.idle.Reset()
	return nil
}

func (s *Session) registerNodeHandlers() {
	s.scene.On(graph.PointerEnter, graph.NodeUser, s.showUserDetail)
	s.scene.On(graph.PointerEnter, graph.NodePost, s.showPostDetail)
	s.scene.On(graph.PointerLeave, graph.NodeUser, s.hideUserDetail)
	s.scene.On(graph.PointerLeave, graph.NodePost, s.hidePostDetail)
	s.scene.On(graph.PointerClick, graph.NodeUser, s.targetUser)
}

// Tick runs one loop iteration immediately.
func (s *Session) Tick(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.tick(ctx)
		return nil
	})
}

func (s *Session) tick(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.refresh(ctx)
	timeInt, err := s.backend.IncreaseGameTime(ctx, 1)
	if err != nil {
		s.logger.Error("increase game time failed", zap.Error(err))
		return
	}
	if timeInt >= 1 {
		s.clock = timeInt
	}
}

// refresh offers the store's snapshot to the merger; an accepted one comes
// back through the subscription.
func (s *Session) refresh(ctx context.Context) bool {
	g, err := s.backend.GameSnapshot(ctx)
	if err != nil {
		s.logger.Error("fetch game snapshot failed", zap.Error(err))
		return false
	}
	return s.merger.Offer(g)
}

func (s *Session) handleSnapshot(ctx context.Context, g *domain.Game) {
	if g == nil {
		return
	}
	s.snapshot = g
	s.details.Purge()
	if g.TimeInt > s.clock {
		s.clock = g.TimeInt
	}

	s.score = domain.ComputeScore(g)
	if s.score.GameOver {
		s.endGame()
		return
	}

	if g.Quest == nil {
		s.logger.Error("snapshot carries no quest", zap.String("game", g.UUID))
		return
	}
	if g.Quest.Type == domain.QuestTargetPost {
		summary, err := s.summarizePost(ctx, g.Quest.ObjectUUID)
		if err != nil {
			s.logger.Error("quest post not found", zap.String("post", g.Quest.ObjectUUID), zap.Error(err))
		}
		s.questPost = summary
	}

	var post *domain.Post
	if p, err := s.postByID(ctx, g.Quest.ObjectUUID); err == nil {
		post = p
	}
	if s.workflow.Observe(g.Quest, post) {
		s.onNewQuest(post)
	}
}

func (s *Session) onNewQuest(post *domain.Post) {
	s.hint = ""
	if s.scene == nil {
		s.logger.Error("cannot show new quest, scene not initialized")
		return
	}
	if post == nil {
		return
	}
	s.scene.AddPost(*post)
	if s.focused != "" && s.focused != post.UUID {
		s.scene.Defocus(s.focused)
	}
	if s.scene.Focus(post.UUID) {
		s.focused = post.UUID
	}
}

func (s *Session) refocus() {
	id := s.workflow.PostUUID()
	if id == "" || s.scene == nil {
		s.logger.Warn("no quest post to focus")
		return
	}
	if s.scene.Focus(id) {
		s.focused = id
	}
}

func (s *Session) endGame() {
	s.loop.Pause()
	if s.popup != nil && s.popup.Kind == PopupGameOver {
		return
	}
	s.popup = &Popup{
		Kind:  PopupGameOver,
		Title: "error: TERMINATED",
		Quote: quest.Quote(quest.QuoteGameOver, s.rand),
	}
	s.logger.Info("game over", zap.Float64("engagement", s.score.Engagement), zap.Float64("limit", s.score.Limit))
}

func (s *Session) targetUser(ctx context.Context, id string) {
	hint, err := s.workflow.Target(ctx, id)
	if err != nil {
		s.logger.Warn("targeting failed", zap.String("user", id), zap.Error(err))
		return
	}
	s.hint = hint
	s.refresh(ctx)
}

// PointerMoved restarts the idle countdown. It does not leave idle.
func (s *Session) PointerMoved() {
	s.idle.Reset()
}

// NodeEvent routes a pointer event through the scene.
func (s *Session) NodeEvent(ctx context.Context, event graph.PointerEvent, nodeID string) error {
	return s.do(ctx, func() error {
		if s.scene == nil {
			s.logger.Error("pointer event before init", zap.String("node", nodeID))
			return nil
		}
		s.scene.Dispatch(ctx, event, nodeID)
		return nil
	})
}

func (s *Session) ShowUserDetail(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		s.showUserDetail(ctx, id)
		return nil
	})
}

func (s *Session) ShowPostDetail(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		s.showPostDetail(ctx, id)
		return nil
	})
}

func (s *Session) Navigate(ctx context.Context, kind graph.NodeKind, cursor usecase.Cursor) error {
	return s.do(ctx, func() error { return s.navigate(ctx, kind, cursor) })
}

// QuestEnd pauses the loop, opens the waiting popup and reveals the results
// once the store and the reveal delay are done.
func (s *Session) QuestEnd(ctx context.Context) error {
	return s.do(ctx, func() error {
		v := s.workflow.View()
		if v.State != quest.StateActive {
			return domain.ErrQuestInactive
		}
		if !v.CanEnd {
			return domain.ErrQuestNotEnded
		}
		s.startQuestFinish(s.workflow.End)
		return nil
	})
}

// QuestSkip ends the quest as it stands.
func (s *Session) QuestSkip(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.workflow.State() != quest.StateActive {
			return domain.ErrQuestInactive
		}
		s.startQuestFinish(s.workflow.Skip)
		return nil
	})
}

func (s *Session) startQuestFinish(finish func(context.Context) (*domain.QuestResults, error)) {
	s.loop.Pause()
	s.popup = &Popup{
		Kind:    PopupQuestResult,
		Title:   "Waiting for results...",
		Quote:   quest.Quote(quest.QuoteWaiting, s.rand),
		Waiting: true,
	}
	ctx := s.runCtx
	go func() {
		results, err := finish(ctx)
		s.send(func() { s.questFinished(results, err) }, true)
	}()
}

func (s *Session) questFinished(results *domain.QuestResults, err error) {
	if s.gameOver() {
		s.logger.Info("quest finished after game over, keeping the game over screen")
		return
	}
	if err != nil {
		s.logger.Error("quest end failed", zap.Error(err))
		s.popup = nil
		s.resume()
		return
	}
	s.popup = &Popup{
		Kind:     PopupQuestResult,
		Title:    quest.ResultTitle(results.GameScore.Engagement),
		Closable: true,
		Results:  results,
	}
}

// QuestResultClose dismisses the results, picks up the next quest and
// resumes the loop.
func (s *Session) QuestResultClose(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.workflow.Close(); err != nil {
			return err
		}
		if !s.gameOver() {
			s.popup = nil
		}
		if !s.refresh(ctx) {
			s.handleSnapshot(ctx, s.merger.Current())
		}
		s.resume()
		return nil
	})
}

// gameOver is terminal until NewGame.
func (s *Session) gameOver() bool {
	return s.score.GameOver
}

// resume restarts the loop unless the game is over.
func (s *Session) resume() {
	if s.gameOver() {
		return
	}
	s.loop.Start()
}

func (s *Session) RefocusQuestPost(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.refocus()
		return nil
	})
}

// NewGame replaces the store's game with the template and reloads.
func (s *Session) NewGame(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.backend.NewGameFromTemplate(ctx); err != nil {
			return err
		}
		s.workflow.Reset()
		s.popup = nil
		s.hint = ""
		s.questPost = nil
		return s.init(ctx)
	})
}

// Reload rebuilds the session from the store. It is the only way out of idle.
func (s *Session) Reload(ctx context.Context) error {
	return s.do(ctx, func() error { return s.init(ctx) })
}

func (s *Session) SetController(ctx context.Context, controller bool) error {
	return s.do(ctx, func() error {
		s.controller = controller
		return nil
	})
}

// IsController reports the last capability flag received from the relay.
func (s *Session) IsController(ctx context.Context) (bool, error) {
	var controller bool
	err := s.do(ctx, func() error {
		controller = s.controller
		return nil
	})
	return controller, err
}

func (s *Session) RequestControl(ctx context.Context) error {
	if s.control == nil {
		return fmt.Errorf("request control: push channel not configured")
	}
	return s.control.RequestControl(ctx)
}

func (s *Session) ControllerLink() string {
	return s.cfg.ControllerURL
}

// Game returns the merged snapshot.
func (s *Session) Game() *domain.Game {
	return s.merger.Current()
}

func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() error {
		v = s.render()
		return nil
	})
	return v, err
}

func (s *Session) render() View {
	v := View{
		Navigation: s.nav,
		Loop:       s.loop.State(),
		Score:      newScoreView(s.score),
		Clock:      newClockView(s.clock),
		Quest:      s.workflow.View(),
		QuestPost:  s.questPost,
		Hint:       string(s.hint),
		UserDetail: s.user.shown(),
		PostDetail: s.post.shown(),
		Popup:      s.popup,
		Controller: s.controller,
	}
	if s.scene != nil {
		frame := s.scene.Frame()
		v.Graph = &frame
	}
	return v
}
