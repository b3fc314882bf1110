package usecase

import (
	"context"

	"github.com/fastygo/algorithm/domain"
)

// Cursor selects an element relative to the one currently shown in a
// detail panel.
type Cursor string

const (
	CursorFirst   Cursor = "first"
	CursorPrev    Cursor = "prev"
	CursorCurrent Cursor = "current"
	CursorNext    Cursor = "next"
	CursorLast    Cursor = "last"
)

func (c Cursor) Valid() bool {
	switch c {
	case CursorFirst, CursorPrev, CursorCurrent, CursorNext, CursorLast:
		return true
	}
	return false
}

// Backend is the authoritative game store as seen by the session.
type Backend interface {
	GameSnapshot(ctx context.Context) (*domain.Game, error)

	Users(ctx context.Context) ([]domain.User, error)
	Posts(ctx context.Context) ([]domain.Post, error)
	Friendships(ctx context.Context) ([]domain.Relationship, error)
	Ratings(ctx context.Context) ([]domain.View, error)

	User(ctx context.Context, uuid string) (*domain.User, error)
	Post(ctx context.Context, uuid string) (*domain.Post, error)
	// NavigateUsers and NavigatePosts resolve cursor relative to from. An
	// empty from behaves like CursorFirst for prev/current/next.
	NavigateUsers(ctx context.Context, cursor Cursor, from string) (*domain.User, error)
	NavigatePosts(ctx context.Context, cursor Cursor, from string) (*domain.Post, error)
	ReactionsOnPost(ctx context.Context, post string, asOf int64) ([]domain.Reaction, error)
	CommentsOnPost(ctx context.Context, post string, asOf int64) ([]domain.Comment, error)

	// IncreaseGameTime advances the in-game clock by delta ticks and returns
	// the new clock value in milliseconds.
	IncreaseGameTime(ctx context.Context, delta int) (int64, error)
	TargetPost(ctx context.Context, post, user string) (bool, error)
	NewQuest(ctx context.Context) (*domain.Quest, error)
	EndQuest(ctx context.Context) (*domain.QuestResults, error)
	NewGameFromTemplate(ctx context.Context) error
}

// SnapshotBuffer abstracts the buffer processor so the store stays
// storage-agnostic when a save fails.
type SnapshotBuffer interface {
	BufferSnapshot(ctx context.Context, slot string, game *domain.Game) error
	BufferQuestResults(ctx context.Context, gameID string, results domain.QuestResults) error
}
