package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdchat/internal/nodeservice"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Events, if non-nil, is mounted at GET /events.
	Events  http.Handler
	Version VersionInfo
	Logger  *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *nodeservice.Service, opts RouterOptions) chi.Router {
	h := NewHandler(svc, opts.Version, opts.Logger)

	r := chi.NewRouter()
	r.Use(SessionMiddleware)

	// Nodes.
	r.Get("/storage", h.GetStorage)
	r.Post("/storage", h.CreateNode)
	r.Delete("/storage", h.DeleteNode)
	r.Patch("/storage", h.RenameNode)
	r.Get("/storage/content", h.ReadContent)
	r.Put("/storage/content", h.WriteContent)
	r.Put("/storage/metadata", h.WriteMetadata)

	// Conversations.
	r.Get("/storage/messages", h.ReadMessages)
	r.Post("/storage/messages", h.WriteMessages)

	// Sessions.
	r.Post("/storage/clear", h.ClearStorage)
	r.Delete("/test-cleanup", h.TestCleanup)

	r.Get("/usage", h.GetUsage)
	r.Put("/usage", h.SetUsage)

	r.Get("/search", h.Search)
	r.Get("/version", h.Version)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
