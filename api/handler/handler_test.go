package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/algorithm/api/handler"
	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/graph"
	"github.com/fastygo/algorithm/internal/infrastructure/monitor"
	"github.com/fastygo/algorithm/internal/middleware"
	"github.com/fastygo/algorithm/internal/router"
	"github.com/fastygo/algorithm/pkg/httpcontext"
	"github.com/fastygo/algorithm/usecase"
	"github.com/fastygo/algorithm/usecase/game"
)

const secret = "test-secret"

type fakeMonitor struct{ status monitor.Status }

func (m fakeMonitor) GetStatus() monitor.Status { return m.status }

type fakeHistory struct{}

func (fakeHistory) QuestHistory(context.Context, int) ([]domain.QuestResults, error) {
	return []domain.QuestResults{{Quest: domain.Quest{UUID: "q1", Ended: true}}}, nil
}

type harness struct {
	handler    fasthttp.RequestHandler
	executed   []usecase.Action
	controller bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	d := usecase.NewDispatcher()
	record := func(_ context.Context, a usecase.Action) error {
		h.executed = append(h.executed, a)
		return nil
	}
	for _, name := range []string{
		string(graph.PointerClick),
		game.ActionNavigate,
		game.ActionQuestSkip,
		game.ActionQuestResultClose,
		game.ActionRefocus,
		game.ActionNewGame,
		game.ActionReload,
		game.ActionRequestControl,
	} {
		d.RegisterAction(name, record)
	}
	d.RegisterAction(game.ActionQuestEnd, func(context.Context, usecase.Action) error {
		return domain.ErrQuestNotEnded
	})
	d.RegisterQuery(game.QueryGame, func(context.Context) (interface{}, error) {
		return &domain.Game{UUID: "g1", Updated: 4}, nil
	})
	d.RegisterQuery(game.QueryControllerLink, func(context.Context) (interface{}, error) {
		return "http://play.local/controller?lang=en", nil
	})
	d.RegisterQuery(game.QueryIsController, func(context.Context) (interface{}, error) {
		return h.controller, nil
	})

	adapter := httpcontext.NewAdapter(time.Second)
	handlers := router.Handlers{
		Game: apiHandler.NewGameHandler(d, fakeHistory{}, adapter, nil),
		Controller: apiHandler.NewControllerHandler(d, apiHandler.ControllerConfig{
			Secret:   secret,
			Issuer:   "algorithm",
			TokenTTL: time.Hour,
			Session:  "s1",
		}, adapter, nil),
		Health: apiHandler.NewHealthHandler(fakeMonitor{status: monitor.Status{PostgreSQL: true, Buffer: true}}, adapter, nil),
	}
	h.handler = router.New(handlers, middleware.ControllerAuth(secret, nil)).Handler
	return h
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  interface{}     `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

func (h *harness) do(t *testing.T, method, uri, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	h.handler(&ctx)

	var env envelope
	if len(ctx.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	}
	return ctx.Response.StatusCode(), env
}

func TestGameQuery(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(t, http.MethodGet, "/api/v1/game", "", nil)
	require.Equal(t, http.StatusOK, status)
	var g domain.Game
	require.NoError(t, json.Unmarshal(env.Data, &g))
	assert.Equal(t, "g1", g.UUID)
	assert.JSONEq(t, `{"game":"g1","updated":4}`, string(env.Meta))
}

func TestEventsAreDispatched(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/api/v1/events", `{"type":"clickNode","node":"u2"}`, nil)
	assert.Equal(t, http.StatusAccepted, status)
	require.Len(t, h.executed, 1)
	assert.Equal(t, usecase.Action{Type: "clickNode", Node: "u2"}, h.executed[0])

	status, env := h.do(t, http.MethodPost, "/api/v1/events", `{"type":"dance"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)

	status, _ = h.do(t, http.MethodPost, "/api/v1/events", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQuestActions(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/api/v1/quest/skip", "", nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, game.ActionQuestSkip, h.executed[0].Type)

	status, env := h.do(t, http.MethodPost, "/api/v1/quest/end", "", nil)
	assert.Equal(t, http.StatusConflict, status, "ending before the goal is a conflict")
	assert.Equal(t, "CONFLICT", env.Code)

	status, _ = h.do(t, http.MethodPost, "/api/v1/quest/explode", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNavigate(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/api/v1/navigate/post/next", "", nil)
	assert.Equal(t, http.StatusAccepted, status)
	require.Len(t, h.executed, 1)
	assert.Equal(t, usecase.Action{Type: game.ActionNavigate, Kind: "post", Cursor: usecase.CursorNext}, h.executed[0])

	status, _ = h.do(t, http.MethodPost, "/api/v1/navigate/post/sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQuestHistory(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(t, http.MethodGet, "/api/v1/quests?limit=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	var results []domain.QuestResults
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "q1", results[0].Quest.UUID)
	assert.JSONEq(t, `{"limit":5,"count":1}`, string(env.Meta))
}

func TestControllerLinkCarriesToken(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(t, http.MethodGet, "/api/v1/controller/link", "", nil)
	require.Equal(t, http.StatusOK, status)

	var link struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &link))
	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "en", parsed.Query().Get("lang"))

	claims, err := middleware.ParseControllerToken(secret, parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.Session)
}

func TestControllerEvents(t *testing.T) {
	h := newHarness(t)
	token, err := middleware.IssueControllerToken(secret, "algorithm", "s1", time.Hour, time.Now())
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	status, _ := h.do(t, http.MethodPost, "/api/v1/controller/events", `{"type":"reload"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := h.do(t, http.MethodPost, "/api/v1/controller/events", `{"type":"reload"}`, auth)
	assert.Equal(t, http.StatusForbidden, status, "session is not the controller")
	assert.Equal(t, "FORBIDDEN", env.Code)

	h.controller = true
	status, _ = h.do(t, http.MethodPost, "/api/v1/controller/events", `{"type":"reload"}`, auth)
	assert.Equal(t, http.StatusAccepted, status)
	require.Len(t, h.executed, 1)
	assert.Equal(t, game.ActionReload, h.executed[0].Type)

	status, _ = h.do(t, http.MethodPost, "/api/v1/controller/request", "", nil)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)
}
