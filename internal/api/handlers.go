package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/postdesk/internal/auth"
	"github.com/starford/postdesk/internal/blogservice"
)

const maxJSONBody = 10 << 20

// Handler holds post and session route handlers.
type Handler struct {
	svc *blogservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *blogservice.Service) *Handler {
	return &Handler{svc: svc}
}

// postPath extracts the post path from the URL (everything after /api/posts/).
// Supports encoded slashes (e.g. content%2Fposts%2Fhi.mdx).
func postPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts, newest first
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	PostListResponse
//	@Failure		401	{object}	errResponse
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context())
	if err != nil {
		writeError(w, r, "list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

// GetPost handles GET /api/posts/*.
//
//	@Summary		Get a single post by path or filename
//	@Tags			posts
//	@Produce		json
//	@Param			path	path		string	true	"Post path"
//	@Success		200		{object}	PostDetail
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{path} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	path := postPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	post, err := h.svc.GetPost(r.Context(), path)
	if err != nil {
		writeError(w, r, "get post", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a new post
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	PostCreatedResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.CreatePost(r.Context(), req)
	if err != nil {
		writeError(w, r, "create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, PostCreatedResponse{
		Success:  true,
		Path:     res.Path,
		Filename: res.Filename,
		SHA:      res.SHA,
		Commit:   res.Commit,
	})
}

// UpdatePost handles PUT /api/posts/*.
//
//	@Summary		Replace a post with optimistic concurrency
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Post path"
//	@Param			body	body		UpdatePostRequest	true	"New content and the sha it replaces"
//	@Success		200		{object}	PostWriteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/posts/{path} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	path := postPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.UpdatePost(r.Context(), path, req)
	if err != nil {
		writeError(w, r, "update post", err)
		return
	}
	writeJSON(w, http.StatusOK, PostWriteResponse{Success: true, Path: res.Path, SHA: res.SHA, Commit: res.Commit})
}

// DeletePost handles DELETE /api/posts/*.
//
//	@Summary		Delete a post
//	@Tags			posts
//	@Accept			json
//	@Param			path	path		string				true	"Post path"
//	@Param			body	body		DeletePostRequest	true	"sha of the version being deleted"
//	@Success		200		{object}	PostWriteResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/posts/{path} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	path := postPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req DeletePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.DeletePost(r.Context(), path, req.SHA, req.Message)
	if err != nil {
		writeError(w, r, "delete post", err)
		return
	}
	writeJSON(w, http.StatusOK, PostWriteResponse{Success: true, Path: res.Path, SHA: res.SHA, Commit: res.Commit})
}

// Session handles GET /api/session.
//
//	@Summary		Current signed-in identity
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	auth.Session
//	@Failure		401	{object}	errResponse
//	@Router			/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
