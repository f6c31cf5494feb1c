// Package crawl acquires Markdown documents from source repositories.
// It supports the GitHub API and local directories; both produce the same
// Document shape consumed by the indexing pipeline.
package crawl

import "strings"

// Document is a single Markdown file pulled from a repository.
// Immutable once produced by a crawler.
type Document struct {
	Path    string // repo-relative path
	Content string
	URL     string // canonical permalink to the file
	Repo    string // owning repository identifier, e.g. "owner/name"
}

// markdownExtensions are the file suffixes crawlers consider documentation.
var markdownExtensions = []string{".md", ".mdx", ".markdown"}

// IsMarkdownPath reports whether path has a Markdown extension.
func IsMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range markdownExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
