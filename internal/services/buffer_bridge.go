package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/infrastructure/buffer"
	"github.com/fastygo/algorithm/usecase"
)

// BufferBridge adapts the processor to the store's SnapshotBuffer port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferSnapshot(ctx context.Context, slot string, game *domain.Game) error {
	if b.processor == nil || game == nil || slot == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(game)
	if err != nil {
		return err
	}
	item := buffer.Item{
		Key:       slot,
		Entity:    buffer.EntityGame,
		Operation: buffer.OperationSave,
		Data:      payload,
		Priority:  2,
	}
	return b.processor.BufferOperation(ctx, item)
}

func (b *BufferBridge) BufferQuestResults(ctx context.Context, gameID string, results domain.QuestResults) error {
	if b.processor == nil || gameID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:        results.Quest.UUID,
		Key:       gameID,
		Entity:    buffer.EntityQuestResult,
		Operation: buffer.OperationArchive,
		Data:      payload,
		Priority:  4,
	}
	return b.processor.BufferOperation(ctx, item)
}

var _ usecase.SnapshotBuffer = (*BufferBridge)(nil)
