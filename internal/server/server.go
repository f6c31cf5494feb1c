// Package server exposes the indexing and question-answering pipeline over a
// JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/qa"
	"github.com/docsift/docsift/internal/search"
)

// Timeouts for the HTTP server itself. Handler work (crawling, embedding,
// generation) is bounded by the request context.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Crawler fetches the Markdown documents of a remote repository.
type Crawler interface {
	Crawl(ctx context.Context, repoURL string) ([]crawl.Document, error)
}

// LocalCrawler fetches the Markdown documents of a local directory.
type LocalCrawler interface {
	Crawl(dir string) ([]crawl.Document, error)
}

// Server wires the pipeline components behind HTTP handlers.
type Server struct {
	manager   *index.Manager
	retriever *search.Retriever
	engine    *qa.Engine
	github    Crawler
	local     LocalCrawler
	logger    *slog.Logger

	httpServer *http.Server
}

// Options configures a Server.
type Options struct {
	Manager   *index.Manager
	Retriever *search.Retriever
	Engine    *qa.Engine
	GitHub    Crawler
	Local     LocalCrawler
	Logger    *slog.Logger
}

// New creates a Server. Manager and Retriever are required; Engine, GitHub
// and Local may be nil, in which case the corresponding endpoints report the
// capability as unavailable.
func New(addr string, opts Options) (*Server, error) {
	if opts.Manager == nil {
		return nil, errors.New("server: index manager is required")
	}
	if opts.Retriever == nil {
		return nil, errors.New("server: retriever is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager:   opts.Manager,
		retriever: opts.Retriever,
		engine:    opts.Engine,
		github:    opts.GitHub,
		local:     opts.Local,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// routes builds the request multiplexer.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/index", s.handleIndex)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/repos", s.handleListRepos)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("DELETE /api/repos/{name...}", s.handleClearRepo)
	mux.HandleFunc("DELETE /api/repos", s.handleClearAll)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// indexRequest asks the server to crawl and index a repository.
type indexRequest struct {
	RepoURL string `json:"repo_url"`
	IsLocal bool   `json:"is_local"`
}

type indexResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FileCount  int    `json:"file_count"`
	ChunkCount int    `json:"chunk_count"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}

	var (
		docs []crawl.Document
		err  error
	)
	if req.IsLocal {
		if s.local == nil {
			writeError(w, http.StatusNotImplemented, "local indexing is not configured")
			return
		}
		docs, err = s.local.Crawl(req.RepoURL)
	} else {
		if s.github == nil {
			writeError(w, http.StatusNotImplemented, "github indexing is not configured")
			return
		}
		docs, err = s.github.Crawl(r.Context(), req.RepoURL)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("crawl: %v", err))
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusNotFound, "no Markdown files found")
		return
	}

	chunks, err := s.manager.Index(r.Context(), docs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("index: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Success:    true,
		Message:    fmt.Sprintf("Indexed %d files (%d chunks)", len(docs), chunks),
		FileCount:  len(docs),
		ChunkCount: chunks,
	})
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusNotImplemented, "question answering is not configured")
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ask: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.retriever.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("search: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.manager.ListRepos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if repos == nil {
		repos = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"repositories": repos})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearRepo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "repository name is required")
		return
	}
	if err := s.manager.ClearRepo(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Cleared repository: %s", name),
	})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cleared all documents",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
