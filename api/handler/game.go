package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/api/transport"
	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/pkg/httpcontext"
	"github.com/fastygo/algorithm/usecase"
	"github.com/fastygo/algorithm/usecase/game"
)

// QuestHistory lists the results of ended quests.
type QuestHistory interface {
	QuestHistory(ctx context.Context, limit int) ([]domain.QuestResults, error)
}

// questActions maps the quest buttons to session actions.
var questActions = map[string]string{
	"skip":    game.ActionQuestSkip,
	"end":     game.ActionQuestEnd,
	"close":   game.ActionQuestResultClose,
	"refocus": game.ActionRefocus,
}

type GameHandler struct {
	baseHandler
	dispatcher *usecase.Dispatcher
	history    QuestHistory
}

func NewGameHandler(dispatcher *usecase.Dispatcher, history QuestHistory, adapter *httpcontext.Adapter, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
		history:     history,
	}
}

// @Summary Merged game snapshot
// @Tags game
// @Router /api/v1/game [get]
func (h *GameHandler) GetGame(ctx *fasthttp.RequestCtx) {
	h.query(ctx, game.QueryGame)
}

// @Summary View description
// @Tags game
// @Router /api/v1/view [get]
func (h *GameHandler) GetView(ctx *fasthttp.RequestCtx) {
	h.query(ctx, game.QueryView)
}

// @Summary Pointer events and button actions
// @Tags game
// @Router /api/v1/events [post]
func (h *GameHandler) PostEvent(ctx *fasthttp.RequestCtx) {
	var req transport.EventRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.execute(ctx, usecase.Action{
		Type:   req.Type,
		Node:   req.Node,
		Kind:   req.Kind,
		Cursor: usecase.Cursor(req.Cursor),
	})
}

// @Summary Quest buttons (skip, end, close, refocus)
// @Tags quest
// @Router /api/v1/quest/{action} [post]
func (h *GameHandler) QuestAction(ctx *fasthttp.RequestCtx) {
	name := fmt.Sprint(ctx.UserValue("action"))
	action, ok := questActions[name]
	if !ok {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown quest action %q", name)))
		return
	}
	h.execute(ctx, usecase.Action{Type: action})
}

// @Summary Detail panel navigation
// @Tags game
// @Router /api/v1/navigate/{kind}/{cursor} [post]
func (h *GameHandler) Navigate(ctx *fasthttp.RequestCtx) {
	cursor := usecase.Cursor(fmt.Sprint(ctx.UserValue("cursor")))
	if !cursor.Valid() {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown cursor %q", cursor)))
		return
	}
	h.execute(ctx, usecase.Action{
		Type:   game.ActionNavigate,
		Kind:   fmt.Sprint(ctx.UserValue("kind")),
		Cursor: cursor,
	})
}

// @Summary Start a new game from the template
// @Tags game
// @Router /api/v1/game/new [post]
func (h *GameHandler) NewGame(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, usecase.Action{Type: game.ActionNewGame})
}

// @Summary Reload the session
// @Tags game
// @Router /api/v1/reload [post]
func (h *GameHandler) Reload(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, usecase.Action{Type: game.ActionReload})
}

// @Summary Ended quests, newest first
// @Tags quest
// @Router /api/v1/quests [get]
func (h *GameHandler) QuestHistory(ctx *fasthttp.RequestCtx) {
	if h.history == nil {
		h.respondSuccess(ctx, http.StatusOK, []domain.QuestResults{})
		return
	}
	limit, err := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	if err != nil {
		limit = 20
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	results, err := h.history.QuestHistory(stdCtx, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if results == nil {
		results = []domain.QuestResults{}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(results, transport.PageMeta{Limit: limit, Count: len(results)}))
}

func (h *GameHandler) query(ctx *fasthttp.RequestCtx, name string) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	data, err := h.dispatcher.Query(stdCtx, name)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, data)
}

func (h baseHandler) executeWith(ctx *fasthttp.RequestCtx, d *usecase.Dispatcher, action usecase.Action) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := d.Execute(stdCtx, action); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, map[string]string{"action": action.Type})
}

func (h *GameHandler) execute(ctx *fasthttp.RequestCtx, action usecase.Action) {
	h.executeWith(ctx, h.dispatcher, action)
}
