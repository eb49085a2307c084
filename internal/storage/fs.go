package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/checksum"
	"github.com/starford/postdesk/internal/models"
)

// FS implements Provider backed by a local directory laid out like the
// repository. Content hashes are git blob ids, so they agree with what
// GitHub reports for the same bytes.
type FS struct {
	root string // absolute path to the working tree

	// mu serializes compare-and-swap; this backend stands in for the
	// remote store's own concurrency check.
	mu sync.Mutex
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// safePath resolves a slash-separated repository path against the root and
// rejects any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: %w: absolute paths not allowed: %s", apperr.ErrValidation, rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %w: path escapes root: %s", apperr.ErrValidation, rel)
	}
	return abs, nil
}

// List implements Provider. Entries are not recursive.
func (f *FS) List(_ context.Context, dir string) ([]models.Entry, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Entry{}, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	if !info.IsDir() {
		return []models.Entry{}, nil
	}
	des, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	out := make([]models.Entry, 0, len(des))
	for _, d := range des {
		if strings.HasPrefix(d.Name(), ".postdesk-tmp-") {
			continue
		}
		p := path.Join(strings.Trim(dir, "/"), d.Name())
		if d.IsDir() {
			out = append(out, models.Entry{Name: d.Name(), Path: p, Type: models.EntryDir})
			continue
		}
		data, err := os.ReadFile(filepath.Join(base, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", dir, err)
		}
		out = append(out, entryFor(p, data))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get implements Provider.
func (f *FS) Get(_ context.Context, p string) (*models.File, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return nil, err
	}
	data, err := f.read(abs, p)
	if err != nil {
		return nil, err
	}
	return &models.File{Entry: entryFor(cleanRel(p), data), Content: data}, nil
}

// Put implements Provider.
func (f *FS) Put(_ context.Context, req models.WriteRequest) (*models.CommitResult, error) {
	abs, err := f.safePath(req.Path)
	if err != nil {
		return nil, err
	}
	content := req.Content
	if req.Encoded {
		content, err = base64.StdEncoding.DecodeString(string(req.Content))
		if err != nil {
			return nil, fmt.Errorf("storage: put %s: %w: invalid base64 content", req.Path, apperr.ErrValidation)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read(abs, req.Path)
	switch {
	case err == nil && req.SHA == "":
		return nil, fmt.Errorf("storage: put %s: %w: already exists", req.Path, apperr.ErrConflict)
	case err == nil && checksum.GitBlob(existing) != req.SHA:
		return nil, fmt.Errorf("storage: put %s: %w: sha does not match", req.Path, apperr.ErrConflict)
	case errors.Is(err, apperr.ErrNotFound) && req.SHA != "":
		return nil, err
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	if err := f.writeAtomic(abs, content); err != nil {
		return nil, err
	}
	e := entryFor(cleanRel(req.Path), content)
	return &models.CommitResult{Content: &e, Commit: newCommit(req.Message, e.SHA)}, nil
}

// Delete implements Provider.
func (f *FS) Delete(_ context.Context, p, message, sha string) (*models.CommitResult, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read(abs, p)
	if err != nil {
		return nil, err
	}
	if checksum.GitBlob(existing) != sha {
		return nil, fmt.Errorf("storage: delete %s: %w: sha does not match", p, apperr.ErrConflict)
	}
	if err := os.Remove(abs); err != nil {
		return nil, fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return &models.CommitResult{Commit: newCommit(message, sha)}, nil
}

func (f *FS) read(abs, p string) ([]byte, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", p, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("storage: read %s: %w: path is a directory", p, apperr.ErrValidation)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// writeAtomic writes content: tmp file → fsync → rename.
func (f *FS) writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".postdesk-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

func entryFor(p string, data []byte) models.Entry {
	return models.Entry{
		Name: path.Base(p),
		Path: p,
		SHA:  checksum.GitBlob(data),
		Size: int64(len(data)),
		Type: models.EntryFile,
	}
}

func cleanRel(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func newCommit(message, contentSHA string) models.Commit {
	id := checksum.GitBlob([]byte(fmt.Sprintf("%s\x00%s\x00%d", message, contentSHA, time.Now().UnixNano())))
	return models.Commit{SHA: id, Message: message}
}
