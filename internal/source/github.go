package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"

	"github.com/pqshift/pqshift/internal/logging"
)

// ParseGitHubURL extracts owner and repository from a GitHub URL. It accepts
// https://github.com/owner/repo with optional .git suffix and trailing path
// segments.
func ParseGitHubURL(raw string) (owner, repo string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", false
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// GitHubResolver checks repository metadata through the GitHub API before a
// clone is attempted, so bad URLs fail fast with a clear message.
type GitHubResolver struct {
	client *github.Client
}

// NewGitHubResolver creates a resolver. token may be empty for anonymous
// access to public repositories.
func NewGitHubResolver(token string) *GitHubResolver {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubResolver{client: client}
}

// Verify confirms the repository exists and is reachable.
func (r *GitHubResolver) Verify(ctx context.Context, owner, repo string) error {
	repository, _, err := r.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("repository lookup: %w", err)
	}
	if repository.GetArchived() {
		logging.L.Warnw("repository is archived; scanning anyway",
			"owner", owner, "repo", repo)
	}
	return nil
}

// DefaultBranch returns the repository's default branch name.
func (r *GitHubResolver) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	repository, _, err := r.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("repository lookup: %w", err)
	}
	return repository.GetDefaultBranch(), nil
}
