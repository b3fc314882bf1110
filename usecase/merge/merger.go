// Package merge reconciles game snapshots arriving from independent,
// unordered sources (periodic fetch, push channel) with last-write-wins on
// the snapshot's updated timestamp.
package merge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

// Merger holds the single accepted snapshot and fans it out to subscribers.
type Merger struct {
	mu      sync.Mutex
	current *domain.Game
	subs    map[uint64]chan *domain.Game
	nextID  uint64
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		subs:   make(map[uint64]chan *domain.Game),
		logger: logger,
	}
}

// Offer accepts the snapshot iff it has a uuid and is strictly newer than the
// held one. Rejected snapshots are dropped without error.
func (m *Merger) Offer(g *domain.Game) bool {
	if !g.Valid() {
		m.logger.Debug("dropping snapshot without uuid")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && g.Updated <= m.current.Updated {
		m.logger.Debug("dropping stale snapshot",
			zap.String("game", g.UUID),
			zap.Int64("updated", g.Updated),
			zap.Int64("held", m.current.Updated))
		return false
	}

	m.current = g.Clone()
	for _, ch := range m.subs {
		deliver(ch, m.current.Clone())
	}
	return true
}

// Current returns a copy of the held snapshot or nil.
func (m *Merger) Current() *domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Subscribe yields the held snapshot immediately (if any) and every later
// acceptance. The channel keeps only the newest undelivered snapshot and is
// closed once ctx is done.
func (m *Merger) Subscribe(ctx context.Context) <-chan *domain.Game {
	ch := make(chan *domain.Game, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	if m.current != nil {
		deliver(ch, m.current.Clone())
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		close(ch)
		m.mu.Unlock()
	}()

	return ch
}

// deliver replaces an unread snapshot with g. Callers hold m.mu, which keeps
// deliveries ordered per subscriber.
func deliver(ch chan *domain.Game, g *domain.Game) {
	select {
	case ch <- g:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- g:
	default:
	}
}
