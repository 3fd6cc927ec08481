package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"rideshare/internal/auth"
	"rideshare/internal/chat"
	"rideshare/internal/config"
	"rideshare/internal/storage/rediscache"
	"rideshare/internal/web"
)

type Deps struct {
	Chat *chat.Service
	Auth *auth.Service
	// RideCache is nil when REDIS_URL is unset.
	RideCache *rediscache.Rides
	Log       zerolog.Logger
}

func New(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(web.RequestID)
	r.Use(web.Logger(d.Log))
	r.Use(web.Recoverer(d.Log))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/ws/chat", d.Chat.ChatWS)

	r.Mount("/api", newAPI(cfg, d))
	return r
}
