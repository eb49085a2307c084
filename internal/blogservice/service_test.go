package blogservice

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/models"
	"github.com/starford/postdesk/internal/storage"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// countingStore records how many calls reach the underlying store.
type countingStore struct {
	storage.Provider
	calls atomic.Int64
}

func (c *countingStore) List(ctx context.Context, dir string) ([]models.Entry, error) {
	c.calls.Add(1)
	return c.Provider.List(ctx, dir)
}

func (c *countingStore) Get(ctx context.Context, p string) (*models.File, error) {
	c.calls.Add(1)
	return c.Provider.Get(ctx, p)
}

func (c *countingStore) Put(ctx context.Context, req models.WriteRequest) (*models.CommitResult, error) {
	c.calls.Add(1)
	return c.Provider.Put(ctx, req)
}

func (c *countingStore) Delete(ctx context.Context, p, message, sha string) (*models.CommitResult, error) {
	c.calls.Add(1)
	return c.Provider.Delete(ctx, p, message, sha)
}

func newTestService(t *testing.T) (*Service, *countingStore) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	store := &countingStore{Provider: fs}
	clock := func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }
	return NewService(store, DefaultLayout, WithClock(clock)), store
}

func createHi(t *testing.T, svc *Service) *PostWrite {
	t.Helper()
	res, err := svc.CreatePost(context.Background(), CreatePostInput{
		Frontmatter: map[string]any{"title": "Hi"},
		Content:     "Body",
		Slug:        "hi",
		Date:        "2024-01-01",
	})
	require.NoError(t, err)
	return res
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"hi":               "hi",
		"Hello World":      "hello-world",
		"  --Go 1.25!!--  ": "go-1-25",
		"a___b":            "a-b",
		"Ünïcode":          "n-code",
		"!!!":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestCreatePost(t *testing.T) {
	svc, store := newTestService(t)
	res := createHi(t, svc)

	assert.Equal(t, "2024-01-01-hi.mdx", res.Filename)
	assert.Equal(t, "content/posts/2024-01-01-hi.mdx", res.Path)
	assert.Equal(t, `feat: create blog post "Hi"`, res.Commit.Message)

	f, err := store.Get(context.Background(), res.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(f.Content), "export const frontmatter = {"))

	got, err := svc.GetPost(context.Background(), "2024-01-01-hi.mdx")
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Frontmatter["title"])
	assert.Equal(t, "Body", got.Content)
	assert.Equal(t, f.SHA, got.SHA)
	assert.Equal(t, f.SHA, res.SHA)
	assert.Empty(t, got.Warning)
}

func TestCreatePost_Collision(t *testing.T) {
	svc, _ := newTestService(t)
	createHi(t, svc)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Frontmatter: map[string]any{"title": "Other"},
		Content:     "x",
		Slug:        "HI",
		Date:        "2024-01-01T10:00:00Z",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreatePost_DefaultDate(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.CreatePost(context.Background(), CreatePostInput{
		Frontmatter: map[string]any{"title": "Today"},
		Content:     "x",
		Slug:        "today",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09-today.mdx", res.Filename)
}

func TestCreatePost_Validation(t *testing.T) {
	cases := map[string]CreatePostInput{
		"no title":     {Frontmatter: map[string]any{"excerpt": "x"}, Content: "b", Slug: "s"},
		"no meta":      {Content: "b", Slug: "s"},
		"no slug":      {Frontmatter: map[string]any{"title": "t"}, Content: "b"},
		"empty slug":   {Frontmatter: map[string]any{"title": "t"}, Content: "b", Slug: "!!!"},
		"no content":   {Frontmatter: map[string]any{"title": "t"}, Slug: "s"},
		"invalid date": {Frontmatter: map[string]any{"title": "t"}, Content: "b", Slug: "s", Date: "yesterday"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.CreatePost(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Zero(t, store.calls.Load())
		})
	}
}

func TestUpdatePost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createHi(t, svc)
	before, err := svc.GetPost(ctx, "2024-01-01-hi.mdx")
	require.NoError(t, err)

	res, err := svc.UpdatePost(ctx, "2024-01-01-hi.mdx", UpdatePostInput{
		Frontmatter: map[string]any{"title": "Hi again"},
		Content:     "New body",
		SHA:         before.SHA,
	})
	require.NoError(t, err)
	assert.Equal(t, "content/posts/2024-01-01-hi.mdx", res.Path)
	assert.Equal(t, "feat: update blog post in 2024-01-01-hi.mdx", res.Commit.Message)

	after, err := svc.GetPost(ctx, res.Path)
	require.NoError(t, err)
	assert.Equal(t, "Hi again", after.Frontmatter["title"])
	assert.Equal(t, "New body", after.Content)
	assert.NotEqual(t, before.SHA, after.SHA)
	assert.Equal(t, after.SHA, res.SHA)
}

func TestUpdatePost_RawContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createHi(t, svc)
	before, err := svc.GetPost(ctx, "2024-01-01-hi.mdx")
	require.NoError(t, err)

	_, err = svc.UpdatePost(ctx, "content/posts/2024-01-01-hi.mdx", UpdatePostInput{
		Content: "plain text",
		SHA:     before.SHA,
		Message: "chore: flatten",
	})
	require.NoError(t, err)

	after, err := svc.GetPost(ctx, "2024-01-01-hi.mdx")
	require.NoError(t, err)
	assert.Equal(t, "plain text", after.RawContent)
	assert.Empty(t, after.Frontmatter)
}

func TestUpdatePost_StaleSHA(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createHi(t, svc)
	before, err := svc.GetPost(ctx, "2024-01-01-hi.mdx")
	require.NoError(t, err)

	_, err = svc.UpdatePost(ctx, "2024-01-01-hi.mdx", UpdatePostInput{Content: "v2", SHA: before.SHA})
	require.NoError(t, err)

	_, err = svc.UpdatePost(ctx, "2024-01-01-hi.mdx", UpdatePostInput{Content: "v3", SHA: before.SHA})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	after, err := svc.GetPost(ctx, "2024-01-01-hi.mdx")
	require.NoError(t, err)
	assert.Equal(t, "v2", after.RawContent)
}

func TestUpdatePost_RequiresContentAndSHA(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.UpdatePost(context.Background(), "a.mdx", UpdatePostInput{Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UpdatePost(context.Background(), "a.mdx", UpdatePostInput{SHA: "abc"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, store.calls.Load())
}

func TestDeletePost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := createHi(t, svc)
	post, err := svc.GetPost(ctx, created.Filename)
	require.NoError(t, err)

	res, err := svc.DeletePost(ctx, created.Filename, post.SHA, "")
	require.NoError(t, err)
	assert.Equal(t, "feat: delete blog post 2024-01-01-hi.mdx", res.Commit.Message)

	_, err = svc.DeletePost(ctx, created.Filename, post.SHA, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.DeletePost(ctx, created.Filename, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetPost_MalformedMetadata(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	raw := "export const frontmatter = {title: [unclosed}\n\nBody\n"
	_, err := store.Put(ctx, models.WriteRequest{Path: "content/posts/bad.mdx", Content: []byte(raw)})
	require.NoError(t, err)

	got, err := svc.GetPost(ctx, "bad.mdx")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Warning)
	assert.Empty(t, got.Frontmatter)
	assert.Equal(t, raw, got.Content)
	assert.Equal(t, raw, got.RawContent)
}

func TestGetPost_PathStaysInPostsDir(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := store.Put(ctx, models.WriteRequest{Path: "secret.txt", Content: []byte("x")})
	require.NoError(t, err)

	_, err = svc.GetPost(ctx, "../../secret.txt")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetPost(ctx, "/")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListPosts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	for _, p := range []string{
		"content/posts/2023-05-01-old.mdx",
		"content/posts/2024-02-01-new.mdx",
		"content/posts/notes.txt",
		"content/posts/drafts/2025-01-01-draft.mdx",
	} {
		_, err := store.Put(ctx, models.WriteRequest{Path: p, Content: []byte("x")})
		require.NoError(t, err)
	}

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "2024-02-01-new.mdx", posts[0].Name)
	assert.Equal(t, "2024-02-01-new", posts[0].Slug)
	assert.Equal(t, "2023-05-01-old", posts[1].Slug)
}

func TestListPosts_EmptyRepo(t *testing.T) {
	svc, _ := newTestService(t)
	posts, err := svc.ListPosts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}
