// Package blogservice implements post and image management on top of a
// content store.
package blogservice

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/storage"
)

// Layout describes where content lives in the repository.
type Layout struct {
	PostsDir        string
	PostExt         string
	ImagesDir       string
	ImagesURLPrefix string
	MaxImageBytes   int64
}

// DefaultLayout is the layout of the blog repository.
var DefaultLayout = Layout{
	PostsDir:        "content/posts",
	PostExt:         ".mdx",
	ImagesDir:       "public/blog-images",
	ImagesURLPrefix: "/blog-images",
	MaxImageBytes:   5 << 20,
}

const uploadConcurrency = 4

// Service coordinates post and image operations against the store.
type Service struct {
	store  storage.Provider
	layout Layout
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used for default post dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new blog service.
func NewService(store storage.Provider, layout Layout, opts ...Option) *Service {
	layout.PostsDir = strings.Trim(layout.PostsDir, "/")
	layout.ImagesDir = strings.Trim(layout.ImagesDir, "/")
	layout.ImagesURLPrefix = strings.TrimRight(layout.ImagesURLPrefix, "/")
	s := &Service{
		store:  store,
		layout: layout,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Layout returns the content layout the service writes to.
func (s *Service) Layout() Layout { return s.layout }

// resolvePostPath maps a bare filename or repository path to a cleaned
// path inside the posts dir.
func (s *Service) resolvePostPath(p string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: post path is required", apperr.ErrValidation)
	}
	if !strings.HasPrefix(cleaned, s.layout.PostsDir+"/") {
		cleaned = path.Join(s.layout.PostsDir, cleaned)
	}
	return cleaned, nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
