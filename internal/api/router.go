package api

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "go-der-dashboard/docs"
	"go-der-dashboard/internal/api/handler"
	"go-der-dashboard/pkg/router"
	"go-der-dashboard/pkg/utils"
)

// Options configures the non-API parts of the gateway. Zero values disable them.
type Options struct {
	Assets *utils.AssetManager
	Log    *zap.SugaredLogger
}

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	// More specific routes first
	r.POST("/api/v1/models/load", h.LoadAll)
	r.POST("/api/v1/models/*/load", h.LoadModels)
	r.GET("/api/v1/models/*", h.ListModels)
	r.GET("/api/v1/models/*/*", h.GetModel)
	r.PATCH("/api/v1/models/*/*", h.RenameModel)
	r.DELETE("/api/v1/models/*/*", h.DeleteModel)

	r.GET("/api/v1/scenarios/*/report.csv", h.DownloadScenarioReport)
	r.GET("/api/v1/scenarios/*/report", h.GetScenarioReport)

	r.GET("/api/v1/notifications/stream", h.StreamNotifications)
	r.GET("/api/v1/notifications", h.ListNotifications)
	r.GET("/api/v1/mutations", h.ListMutations)
	r.GET("/api/v1/mutations/*", h.GetMutation)

	r.GET("/api/v1/poller", h.GetPollerStatus)
	r.POST("/api/v1/poller/tick", h.TickPoller)
	r.GET("/api/v1/events/*", h.StreamModelEvents)
}

// NewRouter builds the whole gateway: API routes, metrics, API docs, the BEO proxy and the dashboard assets
func NewRouter(h *handler.Handler, opts Options) *router.Router {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := router.New(log)
	RegisterRoutes(r, h)

	r.Mount("/metrics", promhttp.Handler())
	r.Mount("/swagger", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if h.BEO != nil {
		r.Mount("/beo", NewBEOProxy("/beo", h.BEO.BaseURL(), log))
	}
	if opts.Assets != nil {
		r.Fallback(StaticHandler(opts.Assets, log))
	}
	return r
}
