package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/handler/call"
	"github.com/signwave/backend/internal/handler/flow"
	"github.com/signwave/backend/internal/handler/history"
	"github.com/signwave/backend/internal/handler/sign"
	middlewarePkg "github.com/signwave/backend/internal/middleware"
	signModel "github.com/signwave/backend/internal/model/sign"
	"github.com/signwave/backend/internal/service/avatar"
	callService "github.com/signwave/backend/internal/service/call"
	flowService "github.com/signwave/backend/internal/service/flow"
	historyService "github.com/signwave/backend/internal/service/history"
	"github.com/signwave/backend/pkg/utils"
)

// Deps 汇总路由依赖的服务。
type Deps struct {
	Logger    zerolog.Logger
	Table     *signModel.Table
	Presenter *avatar.Presenter
	Flows     *flowService.Service
	Calls     *callService.Service
	History   *historyService.Store
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	startedAt := time.Now().UTC()

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":    "ok",
				"startedAt": startedAt.Format(time.RFC3339),
			})
		})

		sign.New(deps.Table, deps.Presenter).RegisterRoutes(api)
		flow.New(deps.Flows, deps.Logger).RegisterRoutes(api)
		call.New(deps.Calls, deps.Logger).RegisterRoutes(api)
		history.New(deps.History, deps.Logger).RegisterRoutes(api)
	})

	return r
}
