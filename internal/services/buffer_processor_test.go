package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/infrastructure/buffer"
	"github.com/fastygo/algorithm/repository"
)

type switchHealth struct{ online bool }

func (h *switchHealth) IsOnline() bool { return h.online }

type recordingRepo struct {
	mu       sync.Mutex
	fail     error
	saved    map[repository.Slot]*domain.Game
	archived []domain.QuestResults
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{saved: map[repository.Slot]*domain.Game{}}
}

func (r *recordingRepo) Load(_ context.Context, slot repository.Slot) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.saved[slot]; ok {
		return g.Clone(), nil
	}
	return nil, domain.ErrGameNotFound
}

func (r *recordingRepo) Save(_ context.Context, slot repository.Slot, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved[slot] = g.Clone()
	return nil
}

func (r *recordingRepo) Archive(_ context.Context, _ string, res domain.QuestResults) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.archived = append(r.archived, res)
	return nil
}

func (r *recordingRepo) List(context.Context, string, int) ([]domain.QuestResults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.QuestResults(nil), r.archived...), nil
}

func newProcessor(t *testing.T, health ConnectionHealth, repo *recordingRepo) (*BufferProcessor, *buffer.Store) {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), buffer.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	bp := NewBufferProcessor(store, health, repo, repo, zaptest.NewLogger(t), ProcessorConfig{MaxRetries: 2})
	return bp, store
}

func TestBridgeSavesImmediatelyWhenOnline(t *testing.T) {
	repo := newRecordingRepo()
	bp, _ := newProcessor(t, &switchHealth{online: true}, repo)
	bridge := NewBufferBridge(bp)

	require.NoError(t, bridge.BufferSnapshot(context.Background(), "current", &domain.Game{UUID: "g1", Updated: 3}))
	assert.Equal(t, int64(3), repo.saved["current"].Updated)
	assert.Zero(t, bp.Size())
}

func TestBridgeBuffersWhileOfflineAndDrains(t *testing.T) {
	repo := newRecordingRepo()
	health := &switchHealth{}
	bp, _ := newProcessor(t, health, repo)
	bridge := NewBufferBridge(bp)
	ctx := context.Background()

	require.NoError(t, bridge.BufferSnapshot(ctx, "current", &domain.Game{UUID: "g1", Updated: 3}))
	require.NoError(t, bridge.BufferSnapshot(ctx, "current", &domain.Game{UUID: "g1", Updated: 4}))
	require.NoError(t, bridge.BufferQuestResults(ctx, "g1", domain.QuestResults{Quest: domain.Quest{UUID: "q1"}}))
	assert.Equal(t, 2, bp.Size(), "older snapshot of the slot is superseded")

	require.NoError(t, bp.Drain(ctx))
	assert.Equal(t, 2, bp.Size(), "offline drain is a no-op")

	health.online = true
	require.NoError(t, bp.Drain(ctx))
	assert.Zero(t, bp.Size())
	assert.Equal(t, int64(4), repo.saved["current"].Updated)
	require.Len(t, repo.archived, 1)
	assert.Equal(t, "q1", repo.archived[0].Quest.UUID)
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	repo := newRecordingRepo()
	health := &switchHealth{}
	bp, _ := newProcessor(t, health, repo)
	ctx := context.Background()

	require.NoError(t, NewBufferBridge(bp).BufferSnapshot(ctx, "current", &domain.Game{UUID: "g1"}))

	health.online = true
	repo.fail = errors.New("boom")
	require.NoError(t, bp.Drain(ctx))
	assert.Equal(t, 1, bp.Size(), "requeued after the first failure")
	require.NoError(t, bp.Drain(ctx))
	assert.Zero(t, bp.Size(), "dropped at max retries")
}

func TestBridgeRejectsEmptyInput(t *testing.T) {
	bridge := NewBufferBridge(nil)
	assert.ErrorIs(t, bridge.BufferSnapshot(context.Background(), "current", &domain.Game{UUID: "g"}), domain.ErrInvalidPayload)
}
