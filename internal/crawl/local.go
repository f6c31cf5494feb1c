package crawl

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// LocalCrawler walks a directory on disk for Markdown files.
// The repository identifier is the directory's base name.
type LocalCrawler struct{}

// NewLocalCrawler creates a local directory crawler.
func NewLocalCrawler() *LocalCrawler {
	return &LocalCrawler{}
}

// Crawl returns the Markdown files under dir, ordered by path.
// Hidden directories (dot-prefixed) are not descended into.
func (c *LocalCrawler) Crawl(dir string) ([]Document, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	repo := filepath.Base(root)
	var docs []Document

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMarkdownPath(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil || !utf8.Valid(content) {
			slog.Warn("skipping unreadable file", slog.String("path", path))
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		docs = append(docs, Document{
			Path:    rel,
			Content: string(content),
			URL:     "file://" + filepath.ToSlash(path),
			Repo:    repo,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	slog.Info("local crawl complete", slog.String("repo", repo), slog.Int("files", len(docs)))
	return docs, nil
}
