package blogservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/frontmatter"
	"github.com/starford/postdesk/internal/models"
)

var (
	slugUnsafeRe = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashesRe = regexp.MustCompile(`-{2,}`)
)

// PostSummary is a post in a listing.
type PostSummary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Slug        string `json:"slug"`
	DownloadURL string `json:"downloadUrl"`
}

// PostDetail is a fetched and parsed post. Warning is set when the
// metadata block could not be parsed.
type PostDetail struct {
	Path        string         `json:"path"`
	Filename    string         `json:"filename"`
	SHA         string         `json:"sha"`
	Frontmatter map[string]any `json:"frontmatter"`
	Content     string         `json:"content"`
	RawContent  string         `json:"rawContent"`
	Warning     string         `json:"warning,omitempty"`
}

// CreatePostInput is the payload for a new post.
type CreatePostInput struct {
	Frontmatter map[string]any `json:"frontmatter"`
	Content     string         `json:"content"`
	Slug        string         `json:"slug"`
	Date        string         `json:"date,omitempty"`
}

// Validate checks required fields.
func (in CreatePostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Frontmatter, validation.Required, validation.By(requireTitle)),
		validation.Field(&in.Slug, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
}

func requireTitle(v any) error {
	meta, _ := v.(map[string]any)
	if frontmatter.Title(meta) == "" {
		return errors.New("title is required")
	}
	return nil
}

// UpdatePostInput replaces a post's content. When Frontmatter is nil the
// content is stored as-is.
type UpdatePostInput struct {
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Content     string         `json:"content"`
	SHA         string         `json:"sha"`
	Message     string         `json:"message,omitempty"`
}

// Validate checks required fields.
func (in UpdatePostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.SHA, validation.Required),
	)
}

// PostWrite is the outcome of a post mutation. SHA is the content sha of
// the written version, the precondition for the next edit; it is empty
// after a delete.
type PostWrite struct {
	Path     string        `json:"path"`
	Filename string        `json:"filename"`
	SHA      string        `json:"sha,omitempty"`
	Commit   models.Commit `json:"commit"`
}

// Slugify lower-cases s, replaces unsafe characters with dashes, collapses
// runs of dashes and trims them from the edges.
func Slugify(s string) string {
	s = slugUnsafeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = slugDashesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ListPosts returns post files, newest filename first.
func (s *Service) ListPosts(ctx context.Context) ([]PostSummary, error) {
	entries, err := s.store.List(ctx, s.layout.PostsDir)
	if err != nil {
		return nil, err
	}
	var posts []PostSummary
	for _, e := range entries {
		if e.Type != models.EntryFile || !strings.HasSuffix(e.Name, s.layout.PostExt) {
			continue
		}
		posts = append(posts, PostSummary{
			Name:        e.Name,
			Path:        e.Path,
			SHA:         e.SHA,
			Slug:        strings.TrimSuffix(e.Name, s.layout.PostExt),
			DownloadURL: e.DownloadURL,
		})
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Name > posts[j].Name })
	return nonNilSlice(posts), nil
}

// GetPost reads and parses a post. p may be a bare filename.
func (s *Service) GetPost(ctx context.Context, p string) (*PostDetail, error) {
	full, err := s.resolvePostPath(p)
	if err != nil {
		return nil, err
	}
	f, err := s.store.Get(ctx, full)
	if err != nil {
		return nil, err
	}

	raw := string(f.Content)
	detail := &PostDetail{
		Path:       f.Path,
		Filename:   path.Base(f.Path),
		SHA:        f.SHA,
		RawContent: raw,
	}
	doc, err := frontmatter.Parse(raw)
	if err != nil {
		s.logger.Warn("post metadata could not be parsed",
			slog.String("path", full), slog.String("error", err.Error()))
		detail.Warning = err.Error()
	}
	detail.Frontmatter = doc.Metadata
	detail.Content = doc.Body
	return detail, nil
}

// CreatePost writes a new post named <date>-<slug><ext>. It fails with
// apperr.ErrConflict when the file already exists.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*PostWrite, error) {
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug %q has no usable characters", apperr.ErrValidation, in.Slug)
	}
	date, err := s.postDate(in.Date)
	if err != nil {
		return nil, err
	}

	raw, err := frontmatter.Serialize(in.Frontmatter, in.Content)
	if err != nil {
		return nil, err
	}

	filename := date + "-" + slug + s.layout.PostExt
	full := path.Join(s.layout.PostsDir, filename)
	res, err := s.store.Put(ctx, models.WriteRequest{
		Path:    full,
		Content: []byte(raw),
		Message: fmt.Sprintf("feat: create blog post %q", frontmatter.Title(in.Frontmatter)),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("post created", slog.String("path", full))
	return &PostWrite{Path: full, Filename: filename, SHA: res.ContentSHA(), Commit: res.Commit}, nil
}

// UpdatePost replaces the content of an existing post. The filename never
// changes.
func (s *Service) UpdatePost(ctx context.Context, p string, in UpdatePostInput) (*PostWrite, error) {
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}
	full, err := s.resolvePostPath(p)
	if err != nil {
		return nil, err
	}

	raw := in.Content
	if in.Frontmatter != nil {
		if raw, err = frontmatter.Serialize(in.Frontmatter, in.Content); err != nil {
			return nil, err
		}
	}

	filename := path.Base(full)
	msg := in.Message
	if msg == "" {
		msg = "feat: update blog post in " + filename
	}
	res, err := s.store.Put(ctx, models.WriteRequest{
		Path:    full,
		Content: []byte(raw),
		Message: msg,
		SHA:     in.SHA,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("post updated", slog.String("path", full))
	return &PostWrite{Path: full, Filename: filename, SHA: res.ContentSHA(), Commit: res.Commit}, nil
}

// DeletePost removes a post if sha still matches.
func (s *Service) DeletePost(ctx context.Context, p, sha, message string) (*PostWrite, error) {
	if sha == "" {
		return nil, fmt.Errorf("%w: sha is required", apperr.ErrValidation)
	}
	full, err := s.resolvePostPath(p)
	if err != nil {
		return nil, err
	}
	filename := path.Base(full)
	if message == "" {
		message = "feat: delete blog post " + filename
	}
	res, err := s.store.Delete(ctx, full, message, sha)
	if err != nil {
		return nil, err
	}
	s.logger.Info("post deleted", slog.String("path", full))
	return &PostWrite{Path: full, Filename: filename, SHA: res.ContentSHA(), Commit: res.Commit}, nil
}

// postDate normalizes an optional YYYY-MM-DD or RFC 3339 date. Empty means
// today in UTC.
func (s *Service) postDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.now().UTC().Format(time.DateOnly), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.Format(time.DateOnly), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.Format(time.DateOnly), nil
	}
	return "", fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC 3339", apperr.ErrValidation, v)
}
