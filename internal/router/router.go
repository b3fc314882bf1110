package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/algorithm/api/handler"
)

type Handlers struct {
	Game       *apiHandler.GameHandler
	Controller *apiHandler.ControllerHandler
	Health     *apiHandler.HealthHandler
}

func New(handlers Handlers, controllerAuth func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.GET("/api/v1/game", handlers.Game.GetGame)
	r.POST("/api/v1/game/new", handlers.Game.NewGame)
	r.GET("/api/v1/view", handlers.Game.GetView)
	r.POST("/api/v1/events", handlers.Game.PostEvent)
	r.POST("/api/v1/quest/{action}", handlers.Game.QuestAction)
	r.GET("/api/v1/quests", handlers.Game.QuestHistory)
	r.POST("/api/v1/navigate/{kind}/{cursor}", handlers.Game.Navigate)
	r.POST("/api/v1/reload", handlers.Game.Reload)

	r.GET("/api/v1/controller/link", handlers.Controller.Link)
	r.POST("/api/v1/controller/request", handlers.Controller.Request)

	// Protected routes
	r.POST("/api/v1/controller/events", controllerAuth(handlers.Controller.Events))

	return r
}
