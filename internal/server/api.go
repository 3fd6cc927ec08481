package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rideshare/internal/config"
	"rideshare/internal/web"
)

func newAPI(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/rides/{rideID}/messages", d.Chat.History)
	r.Post("/rides/{rideID}/messages", d.Chat.PostMessage)
	r.Get("/chat/stats", d.Chat.Stats)
	if d.RideCache != nil {
		r.Get("/chat/cache/stats", func(w http.ResponseWriter, r *http.Request) {
			web.JSON(w, http.StatusOK, d.RideCache.Stats())
		})
	}

	if cfg.IsDev() && d.Auth != nil {
		r.Post("/dev/token", d.Auth.DevToken)
	}
	return r
}
