package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/harvest-ledger/config"
	"github.com/sksmith/harvest-ledger/core/ledger"
)

const (
	ApiPath    = "/api/v1"
	LedgerPath = "/ledgers"
	UserPath   = "/users"
)

// Subscriber hands out a live feed of committed ledger events.
type Subscriber interface {
	Subscribe(ch chan<- ledger.Event) ledger.SubscriptionID
	Unsubscribe(id ledger.SubscriptionID)
}

func ConfigureRouter(cfg *config.Config, ledgerSvc ledger.Service, userSvc UserService, subs Subscriber) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*.harvestledger.io", "http://localhost*", "https://localhost*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("UP"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/env", NewEnvApi(cfg).ConfigureRouter)
	r.With(Authenticate(userSvc)).Route(ApiPath, func(r chi.Router) {
		r.Route(LedgerPath, NewLedgerApi(ledgerSvc, subs, cfg.Ledger.ExpiringSoonDays.Value).ConfigureRouter)
		r.Route(UserPath, NewUserApi(userSvc).ConfigureRouter)
	})

	return r
}

func Render(w http.ResponseWriter, r *http.Request, rnd render.Renderer) {
	if err := render.Render(w, r, rnd); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}

func RenderList(w http.ResponseWriter, r *http.Request, l []render.Renderer) {
	if err := render.RenderList(w, r, l); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}
