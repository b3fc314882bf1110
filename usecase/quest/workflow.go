// Package quest drives the targeting quest from activation to the result
// popup. The workflow validates player actions locally and forwards accepted
// ones to the store.
package quest

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

type State string

const (
	StateNoQuest        State = "noQuest"
	StateActive         State = "active"
	StateSkipped        State = "skipped"
	StateCompleted      State = "completed"
	StateResultsPending State = "resultsPending"
	StateResultsShown   State = "resultsShown"
)

// Hint is the inline message shown after a targeting attempt.
type Hint string

const (
	HintAuthor          Hint = "Post cannot be directed to its author."
	HintAlreadyTargeted Hint = "User already targeted, choose another."
	HintTargeted        Hint = "Post targeted, choose another user."
)

// DefaultRevealDelay smooths over result computation in the store.
const DefaultRevealDelay = 3 * time.Second

// Backend is the part of the store the workflow mutates.
type Backend interface {
	TargetPost(ctx context.Context, post, user string) (bool, error)
	EndQuest(ctx context.Context) (*domain.QuestResults, error)
}

type Config struct {
	// RevealDelay is the wait between the store returning results and the
	// results being shown. Negative disables the wait; zero uses the default.
	RevealDelay time.Duration
}

// Workflow is safe for concurrent use. Store calls run without holding the
// lock so views can be read while a quest is ending.
type Workflow struct {
	mu       sync.RWMutex
	backend  Backend
	delay    time.Duration
	logger   *zap.Logger
	state    State
	quest    *domain.Quest
	post     string
	author   string
	targeted []string
	results  *domain.QuestResults
}

func New(backend Backend, cfg Config, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.RevealDelay
	switch {
	case delay == 0:
		delay = DefaultRevealDelay
	case delay < 0:
		delay = 0
	}
	return &Workflow{
		backend: backend,
		delay:   delay,
		logger:  logger,
		state:   StateNoQuest,
	}
}

// Observe feeds the quest carried by the latest snapshot together with its
// object post. It reports whether a new quest became active; the caller is
// then expected to bring the post into focus.
func (w *Workflow) Observe(q *domain.Quest, post *domain.Post) bool {
	if q == nil {
		w.logger.Error("cannot observe quest, quest is nil")
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateActive:
		if q.ObjectUUID == w.post {
			w.quest = q.Clone()
			return false
		}
	case StateNoQuest:
		if q.ObjectUUID == w.post || q.Ended {
			return false
		}
	default:
		// a quest is ending; the next one is picked up after Close
		return false
	}

	w.quest = q.Clone()
	w.post = q.ObjectUUID
	w.author = ""
	if post != nil {
		w.author = post.Author
	} else {
		w.logger.Error("quest post missing, author checks disabled", zap.String("post", q.ObjectUUID))
	}
	w.targeted = nil
	w.results = nil
	w.state = StateActive
	w.logger.Info("quest activated", zap.String("quest", q.UUID), zap.String("post", q.ObjectUUID))
	return true
}

// Target directs the quest post to user. Rejections are hints, not errors.
func (w *Workflow) Target(ctx context.Context, user string) (Hint, error) {
	w.mu.Lock()
	if w.state != StateActive {
		w.mu.Unlock()
		return "", domain.ErrQuestInactive
	}
	if w.quest.Type != domain.QuestTargetPost {
		w.mu.Unlock()
		w.logger.Error("invalid quest type", zap.String("type", string(w.quest.Type)))
		return "", domain.WrapError(domain.ErrCodeInvalid, "unsupported quest type", domain.ErrInvalidPayload)
	}
	if user == w.author {
		w.mu.Unlock()
		return HintAuthor, nil
	}
	if slices.Contains(w.targeted, user) {
		w.mu.Unlock()
		return HintAlreadyTargeted, nil
	}
	w.targeted = append(w.targeted, user)
	post := w.post
	w.mu.Unlock()

	accepted, err := w.backend.TargetPost(ctx, post, user)
	if err != nil {
		return "", err
	}
	if !accepted {
		return HintAlreadyTargeted, nil
	}
	return HintTargeted, nil
}

// End finishes a quest whose required actions are done, then waits the
// reveal delay before exposing the results.
func (w *Workflow) End(ctx context.Context) (*domain.QuestResults, error) {
	w.mu.Lock()
	if w.state != StateActive {
		w.mu.Unlock()
		return nil, domain.ErrQuestInactive
	}
	if !CanEnd(w.quest) {
		w.mu.Unlock()
		return nil, domain.ErrQuestNotEnded
	}
	w.state = StateCompleted
	w.mu.Unlock()
	return w.finish(ctx)
}

// Skip abandons the active quest. It is scored as it stands.
func (w *Workflow) Skip(ctx context.Context) (*domain.QuestResults, error) {
	w.mu.Lock()
	if w.state != StateActive {
		w.mu.Unlock()
		return nil, domain.ErrQuestInactive
	}
	w.state = StateSkipped
	w.mu.Unlock()
	return w.finish(ctx)
}

func (w *Workflow) finish(ctx context.Context) (*domain.QuestResults, error) {
	w.mu.Lock()
	from := w.state
	w.state = StateResultsPending
	w.mu.Unlock()

	results, err := w.backend.EndQuest(ctx)
	if err != nil {
		w.mu.Lock()
		w.state = StateActive
		w.mu.Unlock()
		w.logger.Error("end quest failed", zap.String("from", string(from)), zap.Error(err))
		return nil, err
	}

	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	w.results = results
	w.state = StateResultsShown
	w.mu.Unlock()
	return results, nil
}

// Close dismisses the result popup.
func (w *Workflow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateResultsShown {
		return domain.ErrQuestInactive
	}
	w.state = StateNoQuest
	w.quest = nil
	w.targeted = nil
	w.results = nil
	return nil
}

// Reset forgets the observed quest, so the next Observe activates whatever
// quest the snapshot carries. Used when the game is replaced.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateNoQuest
	w.quest = nil
	w.post = ""
	w.author = ""
	w.targeted = nil
	w.results = nil
}

func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// PostUUID is the object post of the last activated quest.
func (w *Workflow) PostUUID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.post
}

// View is a point-in-time copy of the workflow for rendering.
type View struct {
	State    State                `json:"state"`
	Quest    *domain.Quest        `json:"quest,omitempty"`
	Post     string               `json:"post,omitempty"`
	Author   string               `json:"author,omitempty"`
	Targeted []string             `json:"targeted"`
	CanEnd   bool                 `json:"canEnd"`
	Marks    []float64            `json:"marks"`
	Results  *domain.QuestResults `json:"results,omitempty"`
	Title    string               `json:"title,omitempty"`
}

func (w *Workflow) View() View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := View{
		State:    w.state,
		Quest:    w.quest.Clone(),
		Post:     w.post,
		Author:   w.author,
		Targeted: slices.Clone(w.targeted),
		CanEnd:   w.state == StateActive && CanEnd(w.quest),
		Marks:    ProgressMarks(w.quest.Remaining()),
	}
	if w.results != nil {
		res := *w.results
		v.Results = &res
		v.Title = ResultTitle(res.GameScore.Engagement)
	}
	return v
}
