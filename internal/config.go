package internal

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Store backends.
const (
	StoreBackendGitHub = "github"
	StoreBackendFS     = "fs"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// DefaultConfigYAML is used when no config file exists. Every value is
// taken from the environment.
//
//go:embed config.default.yaml
var DefaultConfigYAML []byte

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	GitHub  GitHubConfig      `yaml:"github"`
	Auth    AuthConfig        `yaml:"auth"`
	Content ContentConfig     `yaml:"content"`
	Store   StoreConfig       `yaml:"store"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Store.Backend == StoreBackendGitHub {
		if err := c.GitHub.Validate(); err != nil {
			return fmt.Errorf("github: %w", err)
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatConsole)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// BaseURL is the externally visible origin, used for the OAuth callback.
	BaseURL string `yaml:"base_url"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GitHubConfig identifies the GitHub App installation and target repository.
type GitHubConfig struct {
	AppID          string        `yaml:"app_id"`
	PrivateKey     string        `yaml:"private_key"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	InstallationID string        `yaml:"installation_id"`
	Owner          string        `yaml:"owner"`
	Repo           string        `yaml:"repo"`
	Branch         string        `yaml:"branch"`
	APIURL         string        `yaml:"api_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AppID, validation.Required),
		validation.Field(&c.InstallationID, validation.Required, is.Digit),
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.PrivateKey == "" && c.PrivateKeyPath == "" {
		return errors.New("one of private_key or private_key_path is required")
	}
	return nil
}

// PrivateKeyPEM returns the key text, reading PrivateKeyPath when set.
func (c *GitHubConfig) PrivateKeyPEM() (string, error) {
	if c.PrivateKeyPath == "" {
		return c.PrivateKey, nil
	}
	data, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("read private key: %w", err)
	}
	return string(data), nil
}

// AuthConfig holds OAuth and session configuration.
//
// AllowedEmails is a comma-separated allow-list. When empty, every
// identity that completes OAuth is accepted.
type AuthConfig struct {
	AllowedEmails string `yaml:"allowed_emails"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	SessionSecret string `yaml:"session_secret"`
	CookieSecure  bool   `yaml:"cookie_secure"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if (c.ClientID == "") != (c.ClientSecret == "") {
		return errors.New("client_id and client_secret must be set together")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionSecret, validation.When(c.ClientID != "",
			validation.Required, validation.Length(32, 0))),
	)
}

// OAuthEnabled reports whether the identity provider is configured.
func (c *AuthConfig) OAuthEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ContentConfig describes where posts and images live in the repository.
type ContentConfig struct {
	PostsDir        string `yaml:"posts_dir"`
	PostExt         string `yaml:"post_ext"`
	ImagesDir       string `yaml:"images_dir"`
	ImagesURLPrefix string `yaml:"images_url_prefix"`
	MaxImageBytes   int64  `yaml:"max_image_bytes"`
}

// Validate validates the content layout.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PostsDir, validation.Required),
		validation.Field(&c.PostExt, validation.Required),
		validation.Field(&c.ImagesDir, validation.Required),
		validation.Field(&c.ImagesURLPrefix, validation.Required),
		validation.Field(&c.MaxImageBytes, validation.Required, validation.Min(int64(1))),
	)
}

// StoreConfig selects the content backend. "fs" serves a local checkout
// and is meant for development.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StoreBackendGitHub
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(StoreBackendGitHub, StoreBackendFS)),
		validation.Field(&c.Path, validation.When(c.Backend == StoreBackendFS, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port:    8080,
				BaseURL: "http://localhost:8080",
			},
		},
		GitHub: GitHubConfig{
			Branch:  "main",
			APIURL:  "https://api.github.com",
			Timeout: 30 * time.Second,
		},
		Content: ContentConfig{
			PostsDir:        "content/posts",
			PostExt:         ".mdx",
			ImagesDir:       "public/blog-images",
			ImagesURLPrefix: "/blog-images",
			MaxImageBytes:   5 << 20,
		},
		Store: StoreConfig{
			Backend: StoreBackendGitHub,
		},
	}
}
