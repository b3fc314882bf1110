package game

import (
	"context"

	"github.com/fastygo/algorithm/internal/graph"
	"github.com/fastygo/algorithm/usecase"
)

// Action names accepted by the session besides the pointer events.
const (
	ActionPointerMove      = "pointerMove"
	ActionNavigate         = "navigate"
	ActionQuestSkip        = "questSkip"
	ActionQuestEnd         = "questEnd"
	ActionQuestResultClose = "questResultClose"
	ActionRefocus          = "refocus"
	ActionNewGame          = "newGame"
	ActionReload           = "reload"
	ActionRequestControl   = "requestControl"
)

const (
	QueryView           = "view"
	QueryGame           = "game"
	QueryControllerLink = "controllerLink"
	QueryIsController   = "isController"
)

// RegisterActions binds every view-layer event to its session operation.
func RegisterActions(d *usecase.Dispatcher, s *Session) {
	for _, ev := range []graph.PointerEvent{graph.PointerEnter, graph.PointerLeave, graph.PointerClick} {
		event := ev
		d.RegisterAction(string(event), func(ctx context.Context, a usecase.Action) error {
			return s.NodeEvent(ctx, event, a.Node)
		})
	}
	d.RegisterAction(ActionPointerMove, func(context.Context, usecase.Action) error {
		s.PointerMoved()
		return nil
	})
	d.RegisterAction(ActionNavigate, func(ctx context.Context, a usecase.Action) error {
		return s.Navigate(ctx, graph.NodeKind(a.Kind), a.Cursor)
	})
	d.RegisterAction(ActionQuestSkip, func(ctx context.Context, _ usecase.Action) error {
		return s.QuestSkip(ctx)
	})
	d.RegisterAction(ActionQuestEnd, func(ctx context.Context, _ usecase.Action) error {
		return s.QuestEnd(ctx)
	})
	d.RegisterAction(ActionQuestResultClose, func(ctx context.Context, _ usecase.Action) error {
		return s.QuestResultClose(ctx)
	})
	d.RegisterAction(ActionRefocus, func(ctx context.Context, _ usecase.Action) error {
		return s.RefocusQuestPost(ctx)
	})
	d.RegisterAction(ActionNewGame, func(ctx context.Context, _ usecase.Action) error {
		return s.NewGame(ctx)
	})
	d.RegisterAction(ActionReload, func(ctx context.Context, _ usecase.Action) error {
		return s.Reload(ctx)
	})
	d.RegisterAction(ActionRequestControl, func(ctx context.Context, _ usecase.Action) error {
		return s.RequestControl(ctx)
	})

	d.RegisterQuery(QueryView, func(ctx context.Context) (interface{}, error) {
		return s.View(ctx)
	})
	d.RegisterQuery(QueryGame, func(context.Context) (interface{}, error) {
		return s.Game(), nil
	})
	d.RegisterQuery(QueryControllerLink, func(context.Context) (interface{}, error) {
		return s.ControllerLink(), nil
	})
	d.RegisterQuery(QueryIsController, func(ctx context.Context) (interface{}, error) {
		return s.IsController(ctx)
	})
}
