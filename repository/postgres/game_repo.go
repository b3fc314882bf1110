package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/repository"
)

type gameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a Postgres-backed GameRepository storing each
// slot as one JSONB document.
func NewGameRepository(pool *pgxpool.Pool) repository.GameRepository {
	return &gameRepository{pool: pool}
}

func (r *gameRepository) Load(ctx context.Context, slot repository.Slot) (*domain.Game, error) {
	const query = `
	SELECT payload, updated
	FROM games
	WHERE slot = $1
	`
	row := r.pool.QueryRow(ctx, query, string(slot))
	return scanGame(row)
}

func (r *gameRepository) Save(ctx context.Context, slot repository.Slot, game *domain.Game) error {
	if game == nil || !game.Valid() || slot == "" {
		return domain.ErrInvalidPayload
	}

	payload, err := marshalJSON(game)
	if err != nil {
		return err
	}

	// Older writes never replace a newer stored snapshot.
	const query = `
	INSERT INTO games (slot, game_uuid, updated, payload, saved_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (slot) DO UPDATE
	SET game_uuid = EXCLUDED.game_uuid,
		updated = EXCLUDED.updated,
		payload = EXCLUDED.payload,
		saved_at = NOW()
	WHERE games.game_uuid <> EXCLUDED.game_uuid OR games.updated <= EXCLUDED.updated
	`
	_, err = r.pool.Exec(ctx, query, string(slot), game.UUID, game.Updated, payload)
	return err
}

func scanGame(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Game, error) {
	var (
		payload []byte
		updated int64
	)
	if err := row.Scan(&payload, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, err
	}

	var game domain.Game
	if err := json.Unmarshal(payload, &game); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "stored snapshot is corrupt", err)
	}
	if game.Updated < updated {
		game.Updated = updated
	}
	return &game, nil
}

type questRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewQuestRepository creates a Postgres-backed QuestRepository.
func NewQuestRepository(pool *pgxpool.Pool) repository.QuestRepository {
	return &questRepository{pool: pool, now: time.Now}
}

func (r *questRepository) Archive(ctx context.Context, gameID string, results domain.QuestResults) error {
	if gameID == "" || results.Quest.UUID == "" {
		return domain.ErrInvalidPayload
	}

	score, err := marshalJSON(results.GameScore)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO quest_results (quest_uuid, game_uuid, type, object_uuid, progress, goal, report, score, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	ON CONFLICT (quest_uuid) DO NOTHING
	`
	q := results.Quest
	_, err = r.pool.Exec(ctx, query,
		q.UUID,
		gameID,
		string(q.Type),
		q.ObjectUUID,
		q.Progress,
		q.Goal,
		q.Report,
		score,
		nullTime(r.now()),
	)
	return err
}

func (r *questRepository) List(ctx context.Context, gameID string, limit int) ([]domain.QuestResults, error) {
	const query = `
	SELECT quest_uuid, type, object_uuid, progress, goal, report, score
	FROM quest_results
	WHERE game_uuid = $1
	ORDER BY ended_at DESC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, gameID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuestResults
	for rows.Next() {
		res, err := scanQuestResults(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanQuestResults(row interface {
	Scan(dest ...interface{}) error
}) (*domain.QuestResults, error) {
	var (
		res   domain.QuestResults
		qType string
		score []byte
	)
	if err := row.Scan(
		&res.Quest.UUID,
		&qType,
		&res.Quest.ObjectUUID,
		&res.Quest.Progress,
		&res.Quest.Goal,
		&res.Quest.Report,
		&score,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuestNotFound
		}
		return nil, err
	}
	res.Quest.Type = domain.QuestType(qType)
	res.Quest.Ended = true
	if len(score) > 0 {
		_ = json.Unmarshal(score, &res.GameScore)
	}
	return &res, nil
}
