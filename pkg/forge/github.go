package forge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// PullRequest is a request to merge Head into Base.
type PullRequest struct {
	Repository string // owner/name
	Title      string
	Body       string
	Head       string
	Base       string
}

// Creator opens pull requests and returns their URL.
type Creator interface {
	CreatePullRequest(ctx context.Context, pr PullRequest) (string, error)
}

// GitHub opens pull requests through the GitHub REST API.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a client authenticating with token against apiURL.
// An unparsable apiURL leaves the public API endpoint in place.
func NewGitHub(ctx context.Context, apiURL, token string) *GitHub {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, src))
	if base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/"); err == nil && apiURL != "" {
		client.BaseURL = base
	}
	return &GitHub{client: client}
}

// CreatePullRequest opens pr and returns its HTML URL.
func (g *GitHub) CreatePullRequest(ctx context.Context, pr PullRequest) (string, error) {
	owner, repo, ok := strings.Cut(pr.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", fmt.Errorf("repository %q must be owner/name", pr.Repository)
	}

	created, _, err := g.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(pr.Title),
		Body:  github.String(pr.Body),
		Head:  github.String(pr.Head),
		Base:  github.String(pr.Base),
	})
	if err != nil {
		var apiErr *github.ErrorResponse
		if errors.As(err, &apiErr) && apiErr.Response != nil {
			return "", fmt.Errorf("GitHub API returned status %d: %s", apiErr.Response.StatusCode, describe(apiErr))
		}
		return "", fmt.Errorf("creating pull request: %w", err)
	}
	return created.GetHTMLURL(), nil
}

func describe(e *github.ErrorResponse) string {
	parts := []string{e.Message}
	for _, sub := range e.Errors {
		if sub.Message != "" {
			parts = append(parts, sub.Message)
		}
	}
	return strings.Join(parts, ": ")
}

// RepositoryFromURL derives owner/name from a clone URL such as
// https://github.com/acme/manifests.git or git@github.com:acme/manifests.git.
func RepositoryFromURL(url string) (string, error) {
	path := url
	if _, rest, ok := strings.Cut(url, "://"); ok {
		_, path, _ = strings.Cut(rest, "/")
	} else if _, rest, ok := strings.Cut(url, ":"); ok {
		path = rest
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("cannot derive owner/name from %q", url)
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1], nil
}
