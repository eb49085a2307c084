package ghapp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v75/github"
)

// NewClient returns a REST client rooted at apiURL. A non-empty bearer is
// sent on every request; an empty one leaves authentication to httpClient.
func NewClient(httpClient *http.Client, apiURL, bearer string) (*github.Client, error) {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("ghapp: api url %q: %w", apiURL, err)
	}
	c := github.NewClient(httpClient)
	if bearer != "" {
		c = c.WithAuthToken(bearer)
	}
	c.BaseURL = base
	c.UserAgent = UserAgent
	return c, nil
}

// StatusCode returns the HTTP status carried by a go-github response, or
// zero when the request never reached the server.
func StatusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
