package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/postdesk/internal/blogservice"
)

// NewRouter creates a chi router with all API routes mounted. Every route
// requires a session accepted by gate.
func NewRouter(svc *blogservice.Service, gate Gate) chi.Router {
	h := NewHandler(svc)
	uh := NewUploadHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(gate))

	// Posts.
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/*", h.GetPost)
	r.Put("/posts/*", h.UpdatePost)
	r.Delete("/posts/*", h.DeletePost)

	// Images.
	r.Get("/upload", uh.List)
	r.Post("/upload", uh.Upload)
	r.Delete("/upload", uh.Delete)

	r.Get("/session", h.Session)

	return r
}
