// Package testutil provides shared test helpers: an in-memory fake of the
// GitHub repository contents API and a static token source.
package testutil

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/postdesk/internal/checksum"
)

// StaticTokens is a TokenSource that counts how often it is asked.
type StaticTokens struct {
	Value string
	calls atomic.Int64
}

// Token implements ghapp.TokenSource.
func (s *StaticTokens) Token(context.Context) (string, error) {
	s.calls.Add(1)
	return s.Value, nil
}

// Calls returns the number of Token calls so far.
func (s *StaticTokens) Calls() int { return int(s.calls.Load()) }

// FakeGitHub emulates /repos/{owner}/{repo}/contents/{path} for one branch.
type FakeGitHub struct {
	Server *httptest.Server
	Owner  string
	Repo   string
	Token  string

	mu       sync.Mutex
	files    map[string][]byte
	requests atomic.Int64
	commits  int
}

// NewFakeGitHub starts a fake contents API that is closed with the test.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	t.Helper()
	f := &FakeGitHub{
		Owner: "acme",
		Repo:  "blog",
		Token: "ghs_test",
		files: make(map[string][]byte),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Seed stores a file directly, bypassing the API.
func (f *FakeGitHub) Seed(p string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = content
	return checksum.GitBlob(content)
}

// File returns the stored bytes of p.
func (f *FakeGitHub) File(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[p]
	return b, ok
}

// Requests returns the number of contents API calls received.
func (f *FakeGitHub) Requests() int { return int(f.requests.Load()) }

type writeBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (f *FakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if r.Header.Get("Authorization") != "Bearer "+f.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	prefix := "/repos/" + f.Owner + "/" + f.Repo + "/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	p := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		f.get(w, p)
	case http.MethodPut:
		f.put(w, r, p)
	case http.MethodDelete:
		f.delete(w, r, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeGitHub) get(w http.ResponseWriter, p string) {
	if data, ok := f.files[p]; ok {
		item := f.item(p, data)
		item["content"] = wrap(base64.StdEncoding.EncodeToString(data), 60)
		item["encoding"] = "base64"
		writeJSON(w, http.StatusOK, item)
		return
	}

	children := map[string]map[string]any{}
	for fp, data := range f.files {
		if !strings.HasPrefix(fp, p+"/") {
			continue
		}
		rest := strings.TrimPrefix(fp, p+"/")
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			children[name] = map[string]any{"name": name, "path": p + "/" + name, "sha": "", "size": 0, "type": "dir", "download_url": nil}
			continue
		}
		children[name] = f.item(fp, data)
	}
	if len(children) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	names := make([]string, 0, len(children))
	for n := range children {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, children[n])
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeGitHub) put(w http.ResponseWriter, r *http.Request, p string) {
	var body writeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}
	existing, exists := f.files[p]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case exists && checksum.GitBlob(existing) != body.SHA:
		writeJSON(w, http.StatusConflict, map[string]string{"message": p + " does not match " + body.SHA})
		return
	case !exists && body.SHA != "":
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.files[p] = data
	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"content": f.item(p, data), "commit": f.commit(body.Message)})
}

func (f *FakeGitHub) delete(w http.ResponseWriter, r *http.Request, p string) {
	var body writeBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	existing, exists := f.files[p]
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if checksum.GitBlob(existing) != body.SHA {
		writeJSON(w, http.StatusConflict, map[string]string{"message": p + " does not match " + body.SHA})
		return
	}
	delete(f.files, p)
	writeJSON(w, http.StatusOK, map[string]any{"content": nil, "commit": f.commit(body.Message)})
}

func (f *FakeGitHub) item(p string, data []byte) map[string]any {
	return map[string]any{
		"name":         path.Base(p),
		"path":         p,
		"sha":          checksum.GitBlob(data),
		"size":         len(data),
		"type":         "file",
		"download_url": f.Server.URL + "/raw/" + p,
	}
}

func (f *FakeGitHub) commit(message string) map[string]any {
	f.commits++
	sha := checksum.GitBlob([]byte(message + string(rune(f.commits))))
	return map[string]any{"sha": sha, "message": message, "html_url": f.Server.URL + "/commit/" + sha}
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
