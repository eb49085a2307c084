package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/starford/postdesk/internal/apperr"
	"github.com/starford/postdesk/internal/ghapp"
)

// OAuthConfig configures the GitHub sign-in flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIURL is the REST API root used for identity lookups.
	APIURL string
	// Endpoint overrides the provider endpoints. Zero means GitHub.
	Endpoint oauth2.Endpoint
	// HTTPClient is used for the code exchange and identity lookups.
	HTTPClient *http.Client
}

// OAuth serves the login, callback and logout routes.
type OAuth struct {
	cfg      *oauth2.Config
	apiURL   string
	client   *http.Client
	sessions *Sessions
	gate     *Gate
	logger   *slog.Logger
}

// NewOAuth creates the sign-in flow handler.
func NewOAuth(cfg OAuthConfig, sessions *Sessions, gate *Gate, logger *slog.Logger) *OAuth {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = ghapp.DefaultAPIURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL:   apiURL,
		client:   client,
		sessions: sessions,
		gate:     gate,
		logger:   logger,
	}
}

// Login redirects to the provider with a fresh state value.
func (o *OAuth) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	if err := o.sessions.setState(w, r, state); err != nil {
		o.logger.Error("auth: store state", slog.String("error", err.Error()))
		http.Error(w, "could not start sign-in", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, o.cfg.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the code exchange and stores the session.
func (o *OAuth) Callback(w http.ResponseWriter, r *http.Request) {
	want := o.sessions.state(r)
	if want == "" || r.URL.Query().Get("state") != want {
		http.Error(w, "invalid sign-in state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, o.client)
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		o.logger.Warn("auth: code exchange failed", slog.String("error", err.Error()))
		http.Error(w, "sign-in failed", http.StatusBadGateway)
		return
	}

	id, err := o.identity(ctx, o.cfg.Client(ctx, tok))
	if err != nil {
		o.logger.Warn("auth: identity lookup failed", slog.String("error", err.Error()))
		http.Error(w, "sign-in failed", http.StatusBadGateway)
		return
	}
	if !o.gate.Allowed(id.Email) {
		o.logger.Info("auth: sign-in denied", slog.String("email", id.Email))
		http.Error(w, "access denied: "+id.Email+" is not allowed to sign in", http.StatusForbidden)
		return
	}

	if err := o.sessions.Save(w, r, id); err != nil {
		o.logger.Error("auth: save session", slog.String("error", err.Error()))
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return
	}
	o.logger.Info("auth: signed in", slog.String("email", id.Email))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session.
func (o *OAuth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := o.sessions.Clear(w, r); err != nil {
		o.logger.Error("auth: clear session", slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *OAuth) identity(ctx context.Context, httpClient *http.Client) (Session, error) {
	client, err := ghapp.NewClient(httpClient, o.apiURL, "")
	if err != nil {
		return Session{}, err
	}

	user, _, userErr := client.Users.Get(ctx, "")
	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}

	if emails, _, err := client.Users.ListEmails(ctx, nil); err == nil {
		for _, e := range emails {
			if e.GetPrimary() && e.GetVerified() && e.GetEmail() != "" {
				return Session{Email: strings.ToLower(e.GetEmail()), Name: name}, nil
			}
		}
	}

	if userErr != nil {
		return Session{}, fmt.Errorf("%w: fetch user: %v", apperr.ErrUpstream, userErr)
	}
	if user.GetEmail() == "" {
		return Session{}, errors.New("provider returned no email")
	}
	return Session{Email: strings.ToLower(user.GetEmail()), Name: name}, nil
}
