package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/api/transport"
	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/middleware"
	"github.com/fastygo/algorithm/pkg/httpcontext"
	"github.com/fastygo/algorithm/usecase"
	"github.com/fastygo/algorithm/usecase/game"
)

type ControllerConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	// Session identifies this server's session in issued tokens.
	Session string
}

// ControllerHandler serves the second-device entry link and the events a
// controller device sends.
type ControllerHandler struct {
	baseHandler
	dispatcher *usecase.Dispatcher
	cfg        ControllerConfig
	now        func() time.Time
}

func NewControllerHandler(dispatcher *usecase.Dispatcher, cfg ControllerConfig, adapter *httpcontext.Adapter, logger *zap.Logger) *ControllerHandler {
	return &ControllerHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
		cfg:         cfg,
		now:         time.Now,
	}
}

// @Summary Controller entry link with a signed token
// @Tags controller
// @Router /api/v1/controller/link [get]
func (h *ControllerHandler) Link(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	raw, err := h.dispatcher.Query(stdCtx, game.QueryControllerLink)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	base, _ := raw.(string)
	if base == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeNotFound, "controller link not configured"))
		return
	}

	token, err := middleware.IssueControllerToken(h.cfg.Secret, h.cfg.Issuer, h.cfg.Session, h.cfg.TokenTTL, h.now())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	link, err := url.Parse(base)
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInternal, "malformed controller link", err))
		return
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	h.respondSuccess(ctx, http.StatusOK, transport.ControllerLinkResponse{
		URL:       link.String(),
		ExpiresIn: int(h.cfg.TokenTTL.Seconds()),
	})
}

// @Summary Ask the relay for the controller role
// @Tags controller
// @Router /api/v1/controller/request [post]
func (h *ControllerHandler) Request(ctx *fasthttp.RequestCtx) {
	h.executeWith(ctx, h.dispatcher, usecase.Action{Type: game.ActionRequestControl})
}

// @Summary Events from the controller device
// @Tags controller
// @Router /api/v1/controller/events [post]
func (h *ControllerHandler) Events(ctx *fasthttp.RequestCtx) {
	var req transport.EventRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	ok, err := h.isController(stdCtx)
	cancel()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !ok {
		h.respondError(ctx, domain.ErrNotController)
		return
	}

	h.executeWith(ctx, h.dispatcher, usecase.Action{
		Type:   req.Type,
		Node:   req.Node,
		Kind:   req.Kind,
		Cursor: usecase.Cursor(req.Cursor),
	})
}

func (h *ControllerHandler) isController(ctx context.Context) (bool, error) {
	raw, err := h.dispatcher.Query(ctx, game.QueryIsController)
	if err != nil {
		return false, err
	}
	ok, _ := raw.(bool)
	return ok, nil
}
