package repository

import (
	"context"

	"github.com/fastygo/algorithm/domain"
)

// Slot names a stored snapshot. The store plays in SlotCurrent and starts
// new games from a copy of SlotTemplate.
type Slot string

const (
	SlotCurrent  Slot = "current"
	SlotTemplate Slot = "template"
)

// GameRepository persists whole snapshots, one per slot.
type GameRepository interface {
	Load(ctx context.Context, slot Slot) (*domain.Game, error)
	Save(ctx context.Context, slot Slot, game *domain.Game) error
}

// QuestRepository keeps the history of ended quests per game.
type QuestRepository interface {
	Archive(ctx context.Context, gameID string, results domain.QuestResults) error
	List(ctx context.Context, gameID string, limit int) ([]domain.QuestResults, error)
}

// SnapshotCache is a read-through cache in front of GameRepository. A miss
// returns domain.ErrGameNotFound.
type SnapshotCache interface {
	Get(ctx context.Context, slot Slot) (*domain.Game, error)
	Set(ctx context.Context, slot Slot, game *domain.Game) error
	Delete(ctx context.Context, slot Slot) error
}
