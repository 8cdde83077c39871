package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Route("/party", func(r chi.Router) {
			r.Post("/", c.createParty)
			r.Post("/join", c.joinParty)
			r.Get("/", c.getParty)
			r.Route("/{code}", func(r chi.Router) {
				r.Post("/playback", c.updatePlayback)
				r.Post("/leave", c.leaveParty)
				r.Post("/chat", c.sendChatMessage)
				r.Get("/chat", c.getChatMessages)
			})
		})
		r.Route("/ws", func(r chi.Router) {
			r.Get("/party/{code}", c.servePartyWS)
		})
	})

	return r
}
