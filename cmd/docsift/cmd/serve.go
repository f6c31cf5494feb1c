package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/qa"
	"github.com/docsift/docsift/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the indexing and question-answering pipeline over a JSON HTTP API.

Endpoints:
  POST   /api/index        index a repository
  POST   /api/ask          answer a question with citations
  POST   /api/search       similarity search
  GET    /api/repos        list indexed repositories
  GET    /api/stats        index statistics
  DELETE /api/repos/{name} clear one repository
  DELETE /api/repos        clear everything
  GET    /healthz          health check`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			generator, err := qa.NewGenerator(cfg)
			if err != nil {
				return err
			}
			engine, err := qa.NewEngine(a.retriever, generator)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg.Server.Addr, server.Options{
				Manager:   a.manager,
				Retriever: a.retriever,
				Engine:    engine,
				GitHub:    crawl.NewGitHubCrawler(ctx, cfg.GitHubToken),
				Local:     crawl.NewLocalCrawler(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.Server.Addr)
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}
