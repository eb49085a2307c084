package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/checksum"
	"github.com/starford/postdesk/internal/models"
	"github.com/starford/postdesk/internal/testutil"
)

func newGitHub(t *testing.T) (*GitHub, *testutil.FakeGitHub, *testutil.StaticTokens) {
	t.Helper()
	fake := testutil.NewFakeGitHub(t)
	tokens := &testutil.StaticTokens{Value: fake.Token}
	gh := NewGitHub(GitHubConfig{
		APIURL: fake.Server.URL,
		Owner:  fake.Owner,
		Repo:   fake.Repo,
		Branch: "main",
	}, tokens, fake.Server.Client())
	return gh, fake, tokens
}

func TestGitHub_ListMissingDirIsEmpty(t *testing.T) {
	gh, _, _ := newGitHub(t)
	items, err := gh.List(context.Background(), "content/posts")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGitHub_List(t *testing.T) {
	gh, fake, _ := newGitHub(t)
	fake.Seed("content/posts/2024-01-01-a.mdx", []byte("a"))
	fake.Seed("content/posts/2024-02-01-b.mdx", []byte("bb"))
	fake.Seed("content/posts/drafts/x.mdx", []byte("x"))

	items, err := gh.List(context.Background(), "content/posts")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2024-01-01-a.mdx", items[0].Name)
	assert.Equal(t, checksum.GitBlob([]byte("a")), items[0].SHA)
	assert.Equal(t, int64(2), items[1].Size)
	assert.Equal(t, models.EntryDir, items[2].Type)
	assert.True(t, strings.HasSuffix(items[0].DownloadURL, "/raw/content/posts/2024-01-01-a.mdx"))
}

func TestGitHub_GetDecodesWrappedBase64(t *testing.T) {
	gh, fake, tokens := newGitHub(t)
	content := []byte(strings.Repeat("long line of post content ", 20))
	sha := fake.Seed("content/posts/p.mdx", content)

	f, err := gh.Get(context.Background(), "content/posts/p.mdx")
	require.NoError(t, err)
	assert.Equal(t, content, f.Content)
	assert.Equal(t, sha, f.SHA)
	assert.Equal(t, 1, tokens.Calls())
	assert.Equal(t, 1, fake.Requests())
}

func TestGitHub_GetMissing(t *testing.T) {
	gh, _, _ := newGitHub(t)
	_, err := gh.Get(context.Background(), "content/posts/none.mdx")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGitHub_CreateThenCreateAgainConflicts(t *testing.T) {
	gh, fake, _ := newGitHub(t)
	ctx := context.Background()

	res, err := gh.Put(ctx, models.WriteRequest{Path: "content/posts/a.mdx", Content: []byte("v1"), Message: "feat: create"})
	require.NoError(t, err)
	require.NotNil(t, res.Content)
	assert.Equal(t, checksum.GitBlob([]byte("v1")), res.Content.SHA)
	assert.Equal(t, "feat: create", res.Commit.Message)
	assert.NotEmpty(t, res.Commit.SHA)

	_, err = gh.Put(ctx, models.WriteRequest{Path: "content/posts/a.mdx", Content: []byte("v2"), Message: "again"})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "err = %v", err)

	stored, _ := fake.File("content/posts/a.mdx")
	assert.Equal(t, "v1", string(stored))
}

func TestGitHub_UpdateStaleSHAConflicts(t *testing.T) {
	gh, fake, _ := newGitHub(t)
	ctx := context.Background()
	sha := fake.Seed("content/posts/a.mdx", []byte("v1"))

	_, err := gh.Put(ctx, models.WriteRequest{Path: "content/posts/a.mdx", Content: []byte("v2"), SHA: sha, Message: "u"})
	require.NoError(t, err)

	_, err = gh.Put(ctx, models.WriteRequest{Path: "content/posts/a.mdx", Content: []byte("v3"), SHA: sha, Message: "u"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	stored, _ := fake.File("content/posts/a.mdx")
	assert.Equal(t, "v2", string(stored))
}

func TestGitHub_PutEncodedIsSentVerbatim(t *testing.T) {
	gh, fake, _ := newGitHub(t)
	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	_, err := gh.Put(context.Background(), models.WriteRequest{
		Path:    "public/blog-images/a.png",
		Content: []byte(base64.StdEncoding.EncodeToString(raw)),
		Message: "img",
		Encoded: true,
	})
	require.NoError(t, err)
	stored, ok := fake.File("public/blog-images/a.png")
	require.True(t, ok)
	assert.Equal(t, raw, stored)
}

func TestGitHub_Delete(t *testing.T) {
	gh, fake, tokens := newGitHub(t)
	ctx := context.Background()
	sha := fake.Seed("content/posts/a.mdx", []byte("v1"))

	_, err := gh.Delete(ctx, "content/posts/a.mdx", "rm", "stale")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	res, err := gh.Delete(ctx, "content/posts/a.mdx", "rm", sha)
	require.NoError(t, err)
	assert.Nil(t, res.Content)
	assert.Equal(t, "rm", res.Commit.Message)

	_, err = gh.Delete(ctx, "content/posts/a.mdx", "rm", sha)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 3, tokens.Calls())
}

func TestGitHub_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	gh := NewGitHub(GitHubConfig{APIURL: srv.URL, Owner: "o", Repo: "r"}, &testutil.StaticTokens{Value: "t"}, nil)
	_, err := gh.List(context.Background(), "content/posts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))
	assert.Contains(t, err.Error(), "502")
}

func TestGitHub_SendsBranchAndEscapesPath(t *testing.T) {
	var gotPath, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotRef = r.URL.Query().Get("ref")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	gh := NewGitHub(GitHubConfig{APIURL: srv.URL, Owner: "o", Repo: "r", Branch: "drafts"}, &testutil.StaticTokens{Value: "t"}, nil)
	_, err := gh.List(context.Background(), "public/blog images")
	require.NoError(t, err)
	assert.Equal(t, "/repos/o/r/contents/public/blog%20images", gotPath)
	assert.Equal(t, "drafts", gotRef)
}
