package blogservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/models"
)

// allowedImageTypes maps accepted MIME types to the type content sniffing
// reports for them.
var allowedImageTypes = map[string]string{
	"image/jpeg":    "image/jpeg",
	"image/jpg":     "image/jpeg",
	"image/png":     "image/png",
	"image/gif":     "image/gif",
	"image/webp":    "image/webp",
	"image/svg+xml": "image/svg+xml",
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9.-]`)

var utf8BOM = []byte("\xef\xbb\xbf")

// ImageSummary is an image in a listing.
type ImageSummary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
}

// ImageUpload is one file to store. Name, when set, overrides Filename.
type ImageUpload struct {
	Filename    string
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// UploadedImage describes a stored image.
type UploadedImage struct {
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	URL      string        `json:"url"`
	Size     int64         `json:"size"`
	Type     string        `json:"type"`
	SHA      string        `json:"sha"`
	Commit   models.Commit `json:"commit"`
}

// UploadResult is the outcome of one upload in a batch. Exactly one of
// Image and Err is set.
type UploadResult struct {
	Filename string
	Image    *UploadedImage
	Err      error
}

// ImageDelete is the outcome of an image removal.
type ImageDelete struct {
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Commit   models.Commit `json:"commit"`
}

// SanitizeFilename keeps the last path component of name and replaces
// every character outside [A-Za-z0-9.-] with an underscore.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid filename", apperr.ErrValidation)
	}
	return name, nil
}

// ImageURL returns the public URL of a stored image.
func (s *Service) ImageURL(name string) string {
	return s.layout.ImagesURLPrefix + "/" + name
}

// ListImages returns image files, sorted by name descending.
func (s *Service) ListImages(ctx context.Context) ([]ImageSummary, error) {
	entries, err := s.store.List(ctx, s.layout.ImagesDir)
	if err != nil {
		return nil, err
	}
	var images []ImageSummary
	for _, e := range entries {
		if e.Type != models.EntryFile {
			continue
		}
		images = append(images, ImageSummary{
			Name:        e.Name,
			Path:        e.Path,
			SHA:         e.SHA,
			Size:        e.Size,
			URL:         s.ImageURL(e.Name),
			DownloadURL: e.DownloadURL,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name > images[j].Name })
	return nonNilSlice(images), nil
}

// CheckImage validates type, size and content of an upload without
// touching the store. It returns the sanitized filename and the
// normalized MIME type.
func (s *Service) CheckImage(in ImageUpload) (string, string, error) {
	mime := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	sniffed, ok := allowedImageTypes[mime]
	if !ok {
		return "", "", fmt.Errorf("%w: file type %q is not allowed (jpeg, png, gif, webp, svg)", apperr.ErrValidation, in.ContentType)
	}

	size := in.Size
	if n := int64(len(in.Data)); n > size {
		size = n
	}
	if size > s.layout.MaxImageBytes {
		return "", "", fmt.Errorf("%w: file is %d bytes, the limit is %d", apperr.ErrValidation, size, s.layout.MaxImageBytes)
	}
	if len(in.Data) == 0 {
		return "", "", fmt.Errorf("%w: file is empty", apperr.ErrValidation)
	}

	name := in.Name
	if strings.TrimSpace(name) == "" {
		name = in.Filename
	}
	filename, err := SanitizeFilename(name)
	if err != nil {
		return "", "", err
	}

	if err := matchContent(in.Data, sniffed); err != nil {
		return "", "", err
	}
	return filename, mime, nil
}

// UploadImage stores a new image. It fails with apperr.ErrConflict when
// the filename is taken.
func (s *Service) UploadImage(ctx context.Context, in ImageUpload) (*UploadedImage, error) {
	filename, mime, err := s.CheckImage(in)
	if err != nil {
		return nil, err
	}

	full := path.Join(s.layout.ImagesDir, filename)
	res, err := s.store.Put(ctx, models.WriteRequest{
		Path:    full,
		Content: []byte(base64.StdEncoding.EncodeToString(in.Data)),
		Message: "feat: upload image " + filename,
		Encoded: true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("image uploaded", slog.String("path", full), slog.Int("size", len(in.Data)))
	return &UploadedImage{
		Filename: filename,
		Path:     full,
		URL:      s.ImageURL(filename),
		Size:     int64(len(in.Data)),
		Type:     mime,
		SHA:      res.ContentSHA(),
		Commit:   res.Commit,
	}, nil
}

// UploadImages stores several images concurrently. Results are in input
// order. A failed item does not stop or undo the others.
func (s *Service) UploadImages(ctx context.Context, uploads []ImageUpload) []UploadResult {
	results := make([]UploadResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for i, in := range uploads {
		g.Go(func() error {
			img, err := s.UploadImage(ctx, in)
			name := in.Name
			if name == "" {
				name = in.Filename
			}
			results[i] = UploadResult{Filename: name, Image: img, Err: err}
			if img != nil {
				results[i].Filename = img.Filename
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// DeleteImage removes an image if sha still matches.
func (s *Service) DeleteImage(ctx context.Context, filename, sha string) (*ImageDelete, error) {
	if filename == "" || sha == "" {
		return nil, fmt.Errorf("%w: filename and sha are required", apperr.ErrValidation)
	}
	name, err := SanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	full := path.Join(s.layout.ImagesDir, name)
	res, err := s.store.Delete(ctx, full, "feat: delete image "+name, sha)
	if err != nil {
		return nil, err
	}
	s.logger.Info("image deleted", slog.String("path", full))
	return &ImageDelete{Filename: name, Path: full, Commit: res.Commit}, nil
}

// matchContent verifies that data looks like the declared type.
func matchContent(data []byte, want string) error {
	if want == "image/svg+xml" {
		if !isSVG(data) {
			return fmt.Errorf("%w: content does not appear to be an SVG image", apperr.ErrValidation)
		}
		return nil
	}
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	if detected != want {
		return fmt.Errorf("%w: content does not match declared type %s (detected %s)", apperr.ErrValidation, want, detected)
	}
	return nil
}

// isSVG reports whether the first element of data is <svg>. The XML
// declaration, comments, DOCTYPE and whitespace before it are skipped.
func isSVG(data []byte) bool {
	d := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	d.Strict = false
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	for {
		tok, err := d.Token()
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return strings.EqualFold(t.Name.Local, "svg")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
