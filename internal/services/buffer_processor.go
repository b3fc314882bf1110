package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/infrastructure/buffer"
	"github.com/fastygo/algorithm/repository"
)

// ConnectionHealth reports whether Postgres is reachable.
type ConnectionHealth interface {
	IsOnline() bool
}

type ProcessorConfig struct {
	// Interval between drains.
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// Retention drops items nobody managed to replay. Zero keeps them
	// forever.
	Retention time.Duration
}

// BufferProcessor replays buffered snapshot saves and quest archives into
// Postgres once it is reachable again.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	games   repository.GameRepository
	quests  repository.QuestRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	games repository.GameRepository,
	quests repository.QuestRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		games:   games,
		quests:  quests,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	every := fmt.Sprintf("@every %ds", max(int(cfg.Interval.Seconds()), 1))
	_, _ = bp.cron.AddFunc(every, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	if cfg.Retention > 0 {
		_, _ = bp.cron.AddFunc("@hourly", func() { bp.Expire(time.Now()) })
	}

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain or for ctx.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	select {
	case <-bp.cron.Stop().Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch. It does nothing while Postgres is offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("postgres offline, buffer drain postponed")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}
	var replayed int
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if bp.settle(item, bp.replay(ctx, item)) {
			replayed++
		}
	}
	if replayed > 0 {
		bp.logger.Info("buffer replayed", zap.Int("items", replayed), zap.Int("remaining", bp.Size()))
	}
	return nil
}

// settle removes item from the buffer and, on a retryable failure, queues
// it again. It reports whether the item was written.
func (bp *BufferProcessor) settle(item buffer.Item, err error) bool {
	if rmErr := bp.store.Remove(item); rmErr != nil {
		bp.logger.Warn("failed to remove buffer item", zap.String("item_id", item.ID), zap.Error(rmErr))
	}
	if err == nil {
		return true
	}

	fields := []zap.Field{
		zap.String("item_id", item.ID),
		zap.String("entity", item.Entity),
		zap.String("key", item.Key),
		zap.Error(err),
	}
	item.Retries++
	if item.Retries >= bp.cfg.MaxRetries || domain.IsDomainError(err, domain.ErrCodeInvalid) {
		bp.logger.Warn("dropping buffer item", append(fields, zap.Int("retries", item.Retries))...)
		return false
	}
	bp.logger.Error("buffer replay failed", fields...)
	if err := bp.store.Requeue(item); err != nil {
		bp.logger.Error("failed to requeue buffer item", zap.String("item_id", item.ID), zap.Error(err))
	}
	return false
}

// Expire drops items older than the retention window.
func (bp *BufferProcessor) Expire(now time.Time) {
	if bp == nil || bp.store == nil || bp.cfg.Retention <= 0 {
		return
	}
	removed, err := bp.store.Cleanup(now.Add(-bp.cfg.Retention))
	if err != nil {
		bp.logger.Error("buffer cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		bp.logger.Warn("expired buffered writes", zap.Int("items", removed))
	}
}

// BufferOperation writes item straight away when Postgres is up and keeps it
// in the buffer otherwise.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return errors.New("buffer processor not configured")
	}
	if bp.monitor == nil || bp.monitor.IsOnline() {
		err := bp.replay(ctx, item)
		if err == nil {
			return nil
		}
		bp.logger.Warn("direct write failed, buffering", zap.String("entity", item.Entity), zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	switch {
	case item.Entity == buffer.EntityGame && item.Operation == buffer.OperationSave:
		if bp.games == nil {
			return errors.New("game repository not configured")
		}
		var game domain.Game
		if err := json.Unmarshal(item.Data, &game); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "buffered snapshot", err)
		}
		return bp.games.Save(ctx, repository.Slot(item.Key), &game)

	case item.Entity == buffer.EntityQuestResult && item.Operation == buffer.OperationArchive:
		if bp.quests == nil {
			return errors.New("quest repository not configured")
		}
		var results domain.QuestResults
		if err := json.Unmarshal(item.Data, &results); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "buffered quest results", err)
		}
		return bp.quests.Archive(ctx, item.Key, results)
	}
	return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unsupported buffer item %s/%s", item.Entity, item.Operation))
}
