// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/middleware"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

// APIServer serves game snapshots over HTTP. Clients read and write whole documents; the server
// never interprets game rules beyond validating the document's code.
type APIServer struct {
	Store  store.StateStore
	Hub    *Hub
	Logger *logrus.Logger

	// InitialMoney is used for POST /games when the request leaves it out.
	InitialMoney int64
	// AllowedOrigins restricts CORS and websocket origins. Empty allows any http(s) origin.
	AllowedOrigins []string

	now func() time.Time
}

func NewAPIServer(st store.StateStore, logger *logrus.Logger, initialMoney int64) *APIServer {
	return &APIServer{
		Store:        st,
		Hub:          NewHub(logger),
		Logger:       logger,
		InitialMoney: initialMoney,
		now:          time.Now,
	}
}

func (s *APIServer) origins() []string {
	if len(s.AllowedOrigins) == 0 {
		return []string{"https://*", "http://*"}
	}
	return s.AllowedOrigins
}

// Router builds the chi router for the blob API.
func (s *APIServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/games", func(r chi.Router) {
		r.Post("/", s.handleCreateGame)
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetSnapshot)
			r.Put("/", s.handlePutSnapshot)
			r.Delete("/", s.handleDeleteSnapshot)
			r.Get("/ws", s.handleWatch)
		})
	})
	return r
}

// wsOriginPatterns converts CORS origins to the host patterns websocket.Accept expects.
func (s *APIServer) wsOriginPatterns() []string {
	if len(s.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, o)
	}
	return out
}
