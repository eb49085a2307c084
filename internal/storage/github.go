package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v75/github"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/ghapp"
	"github.com/starford/postdesk/internal/models"
)

// GitHub implements Provider on the GitHub repository contents API.
// Each operation fetches a fresh token and then makes exactly one call.
type GitHub struct {
	tokens ghapp.TokenSource
	client *http.Client
	apiURL string
	owner  string
	repo   string
	branch string
}

// GitHubConfig locates the repository and branch to operate on.
type GitHubConfig struct {
	APIURL string
	Owner  string
	Repo   string
	Branch string
}

// NewGitHub creates a GitHub provider. A nil client uses http.DefaultClient.
func NewGitHub(cfg GitHubConfig, tokens ghapp.TokenSource, client *http.Client) *GitHub {
	if client == nil {
		client = http.DefaultClient
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &GitHub{
		tokens: tokens,
		client: client,
		apiURL: cfg.APIURL,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: branch,
	}
}

// List implements Provider.
func (g *GitHub) List(ctx context.Context, dir string) ([]models.Entry, error) {
	client, err := g.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	_, items, resp, err := client.Repositories.GetContents(ctx, g.owner, g.repo, dir,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		if ghapp.StatusCode(resp) == http.StatusNotFound {
			return []models.Entry{}, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", dir, classify(resp, err))
	}
	// A nil listing means the path names a file.
	out := make([]models.Entry, 0, len(items))
	for _, it := range items {
		out = append(out, entry(it))
	}
	return out, nil
}

// Get implements Provider.
func (g *GitHub) Get(ctx context.Context, p string) (*models.File, error) {
	client, err := g.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", p, err)
	}
	file, _, resp, err := client.Repositories.GetContents(ctx, g.owner, g.repo, p,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", p, classify(resp, err))
	}
	if file == nil {
		return nil, fmt.Errorf("storage: get %s: %w: path is a directory", p, apperr.ErrValidation)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w: %v", p, apperr.ErrUpstream, err)
	}
	return &models.File{Entry: entry(file), Content: []byte(content)}, nil
}

// Put implements Provider.
func (g *GitHub) Put(ctx context.Context, req models.WriteRequest) (*models.CommitResult, error) {
	content := req.Content
	if req.Encoded {
		raw, err := base64.StdEncoding.DecodeString(string(req.Content))
		if err != nil {
			return nil, fmt.Errorf("storage: put %s: %w: content is not base64", req.Path, apperr.ErrValidation)
		}
		content = raw
	}
	if content == nil {
		content = []byte{}
	}

	client, err := g.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: put %s: %w", req.Path, err)
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(req.Message),
		Content: content,
		Branch:  github.Ptr(g.branch),
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
	)
	if req.SHA == "" {
		res, resp, err = client.Repositories.CreateFile(ctx, g.owner, g.repo, req.Path, opts)
	} else {
		opts.SHA = github.Ptr(req.SHA)
		res, resp, err = client.Repositories.UpdateFile(ctx, g.owner, g.repo, req.Path, opts)
	}
	if err != nil {
		// Creating over an existing file is rejected with 422 "sha wasn't supplied".
		if ghapp.StatusCode(resp) == http.StatusUnprocessableEntity && req.SHA == "" {
			return nil, fmt.Errorf("storage: put %s: %w: %s already exists", req.Path, apperr.ErrConflict, req.Path)
		}
		return nil, fmt.Errorf("storage: put %s: %w", req.Path, classify(resp, err))
	}
	return result(res), nil
}

// Delete implements Provider.
func (g *GitHub) Delete(ctx context.Context, p, message, sha string) (*models.CommitResult, error) {
	client, err := g.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: delete %s: %w", p, err)
	}
	res, resp, err := client.Repositories.DeleteFile(ctx, g.owner, g.repo, p, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		SHA:     github.Ptr(sha),
		Branch:  github.Ptr(g.branch),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: delete %s: %w", p, classify(resp, err))
	}
	return result(res), nil
}

// session mints the token for one operation and binds it to a client.
func (g *GitHub) session(ctx context.Context) (*github.Client, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return ghapp.NewClient(g.client, g.apiURL, token)
}

func entry(c *github.RepositoryContent) models.Entry {
	return models.Entry{
		Name:        c.GetName(),
		Path:        c.GetPath(),
		SHA:         c.GetSHA(),
		Size:        int64(c.GetSize()),
		Type:        c.GetType(),
		DownloadURL: c.GetDownloadURL(),
	}
}

func result(r *github.RepositoryContentResponse) *models.CommitResult {
	out := &models.CommitResult{}
	if r == nil {
		return out
	}
	out.Commit = models.Commit{SHA: r.GetSHA(), Message: r.GetMessage(), URL: r.GetHTMLURL()}
	if r.Content != nil {
		e := entry(r.Content)
		out.Content = &e
	}
	return out
}

// classify maps a failed call onto the apperr taxonomy by its status.
func classify(resp *github.Response, err error) error {
	if errors.Is(err, github.ErrPathForbidden) {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	switch ghapp.StatusCode(resp) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
}
