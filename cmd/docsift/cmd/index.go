package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/crawl"
)

func newIndexCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "index <repo-url-or-path>",
		Short: "Index a repository's Markdown documentation",
		Long: `Crawl a repository for Markdown files, chunk them, and add them to the
vector index. Re-indexing the same repository replaces its previous
content chunk by chunk.

Examples:
  docsift index https://github.com/owner/repo
  docsift index ./docs --local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), cmd, args[0], local, cfg)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Treat the argument as a local directory")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, target string, local bool, cfg *config.Config) error {
	var (
		docs []crawl.Document
		err  error
	)
	if local {
		docs, err = crawl.NewLocalCrawler().Crawl(target)
	} else {
		docs, err = crawl.NewGitHubCrawler(ctx, cfg.GitHubToken).Crawl(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("crawl %s: %w", target, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no Markdown files found in %s", target)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.manager.Index(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d chunks) from %s\n", len(docs), chunks, target)
	return nil
}
