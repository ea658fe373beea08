// Package source acquires the code to scan: a local directory, a ZIP
// archive, or a remote GitHub repository. Remote and archive inputs are
// materialized into a local directory before scanning.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Type identifies how a scan target was provided.
type Type string

const (
	TypeDirectory Type = "directory"
	TypeZip       Type = "zip"
	TypeGitHub    Type = "github"
)

// ErrArchiveTooLarge is returned when a ZIP archive would expand past the
// configured byte budget.
var ErrArchiveTooLarge = errors.New("archive exceeds extraction size limit")

// Target is a scan input resolved to a local directory.
type Target struct {
	Type Type
	// Original is the user-supplied path or URL.
	Original string
	// Dir is the local directory holding the code to scan.
	Dir string
	// cleanup removes temporary materialization, if any.
	cleanup func() error
}

// Cleanup removes any temporary directory backing the target. Safe to call
// on targets that own nothing.
func (t *Target) Cleanup() error {
	if t.cleanup == nil {
		return nil
	}
	return t.cleanup()
}

// Resolver materializes scan inputs into local directories.
type Resolver struct {
	maxArchiveBytes int64
	cloner          *Cloner
	github          *GitHubResolver
}

// NewResolver creates a Resolver. maxArchiveBytes bounds ZIP extraction.
func NewResolver(maxArchiveBytes int64, cloner *Cloner, github *GitHubResolver) *Resolver {
	return &Resolver{maxArchiveBytes: maxArchiveBytes, cloner: cloner, github: github}
}

// Resolve turns a user-supplied input into a scannable local directory. It
// recognizes GitHub URLs, .zip files, and plain directories, in that order.
func (r *Resolver) Resolve(ctx context.Context, input string) (*Target, error) {
	if owner, repo, ok := ParseGitHubURL(input); ok {
		return r.resolveGitHub(ctx, input, owner, repo)
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", input, err)
	}
	if info.IsDir() {
		return &Target{Type: TypeDirectory, Original: input, Dir: input}, nil
	}
	return r.resolveZip(input)
}

func (r *Resolver) resolveZip(path string) (*Target, error) {
	dir, err := os.MkdirTemp("", "pqshift-zip-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction dir: %w", err)
	}
	if err := ExtractZip(path, dir, r.maxArchiveBytes); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("extracting %q: %w", path, err)
	}
	return &Target{
		Type:     TypeZip,
		Original: path,
		Dir:      dir,
		cleanup:  func() error { return os.RemoveAll(dir) },
	}, nil
}

func (r *Resolver) resolveGitHub(ctx context.Context, url, owner, repo string) (*Target, error) {
	if r.github != nil {
		if err := r.github.Verify(ctx, owner, repo); err != nil {
			return nil, fmt.Errorf("verifying %s/%s: %w", owner, repo, err)
		}
	}

	dir, err := os.MkdirTemp("", "pqshift-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating clone dir: %w", err)
	}
	if err := r.cloner.Clone(ctx, url, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %q: %w", url, err)
	}
	return &Target{
		Type:     TypeGitHub,
		Original: url,
		Dir:      dir,
		cleanup:  func() error { return os.RemoveAll(dir) },
	}, nil
}
