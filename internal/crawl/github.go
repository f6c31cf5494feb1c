package crawl

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchConcurrency bounds parallel blob fetches against the GitHub API.
const DefaultFetchConcurrency = 8

// repoURLPatterns cover the common github.com URL shapes, with or without
// a trailing .git suffix or slash.
var repoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
	regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`),
}

// GitHubCrawler fetches Markdown files from a GitHub repository tree.
type GitHubCrawler struct {
	client      *gh.Client
	concurrency int
}

// NewGitHubCrawler creates a crawler. An empty token uses unauthenticated
// access, which is subject to much lower API rate limits.
func NewGitHubCrawler(ctx context.Context, token string) *GitHubCrawler {
	var client *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = gh.NewClient(nil)
	}
	return &GitHubCrawler{client: client, concurrency: DefaultFetchConcurrency}
}

// ParseRepoURL extracts "owner/name" from a GitHub repository URL.
func ParseRepoURL(repoURL string) (string, error) {
	for _, pattern := range repoURLPatterns {
		if m := pattern.FindStringSubmatch(repoURL); m != nil {
			owner := m[1]
			name := strings.TrimSuffix(m[2], ".git")
			return owner + "/" + name, nil
		}
	}
	return "", fmt.Errorf("invalid GitHub repository URL: %s", repoURL)
}

// Crawl walks the repository tree at HEAD and returns its Markdown files
// in tree order. Files that cannot be fetched or decoded are skipped with
// a warning rather than aborting the crawl.
func (c *GitHubCrawler) Crawl(ctx context.Context, repoURL string) ([]Document, error) {
	fullName, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	owner, name, _ := strings.Cut(fullName, "/")

	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("access repository %s: %w", fullName, err)
	}
	branch := repo.GetDefaultBranch()

	tree, _, err := c.client.Git.GetTree(ctx, owner, name, "HEAD", true)
	if err != nil {
		return nil, fmt.Errorf("get tree for %s: %w", fullName, err)
	}

	// Collect Markdown blob entries first so results can be assembled in
	// tree order regardless of fetch completion order.
	type target struct {
		path string
		sha  string
	}
	var targets []target
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !IsMarkdownPath(entry.GetPath()) {
			continue
		}
		targets = append(targets, target{path: entry.GetPath(), sha: entry.GetSHA()})
	}

	docs := make([]Document, len(targets))
	var mu sync.Mutex
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, tgt := range targets {
		g.Go(func() error {
			content, err := c.fetchBlob(gctx, owner, name, tgt.sha)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("skipping unreadable file",
					slog.String("repo", fullName),
					slog.String("path", tgt.path),
					slog.String("error", err.Error()))
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			docs[i] = Document{
				Path:    tgt.path,
				Content: content,
				URL:     fmt.Sprintf("https://github.com/%s/blob/%s/%s", fullName, branch, tgt.path),
				Repo:    fullName,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Compact out skipped slots.
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Path != "" {
			out = append(out, d)
		}
	}

	slog.Info("github crawl complete",
		slog.String("repo", fullName),
		slog.Int("files", len(out)),
		slog.Int("skipped", skipped))
	return out, nil
}

// fetchBlob retrieves and decodes a blob's content.
func (c *GitHubCrawler) fetchBlob(ctx context.Context, owner, name, sha string) (string, error) {
	blob, _, err := c.client.Git.GetBlob(ctx, owner, name, sha)
	if err != nil {
		return "", err
	}

	raw := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		raw = string(decoded)
	}
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("blob %s is not valid UTF-8", sha)
	}
	return raw, nil
}
