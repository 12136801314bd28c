// Package server exposes a recommendation index over HTTP.
//
// Routes:
//
//	GET /documents/{id}/similar?start=0&size=10   neighbor list of one document
//	GET /healthz                                  liveness, corpus size and training time
//	GET /metrics                                  Prometheus metrics
//
// Every query reads the corpus through a CorpusFunc. The index is retrained
// only when the corpus fingerprint changes; otherwise it comes from cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chriscorrea/related/internal/cache"
	"github.com/chriscorrea/related/internal/corpus"
	"github.com/chriscorrea/related/internal/recommend"
)

// CorpusFunc returns the current corpus.
type CorpusFunc func(ctx context.Context) ([]recommend.Document, error)

// Server serves similar-document queries.
type Server struct {
	corpus       CorpusFunc
	indexes      *cache.Cache
	indexOptions []recommend.Option
	pageSize     int
	logger       *slog.Logger

	serving atomic.Pointer[recommend.Index] // index behind the last query
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithIndexOptions sets the options every trained index is created with.
func WithIndexOptions(opts ...recommend.Option) Option {
	return func(s *Server) { s.indexOptions = opts }
}

// WithPageSize sets the default size of a neighbor page.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// DefaultPageSize is the page size when a query omits size.
const DefaultPageSize = 10

// New creates a server keeping up to cacheSize trained indexes.
func New(corpusFn CorpusFunc, cacheSize int, opts ...Option) (*Server, error) {
	if corpusFn == nil {
		return nil, errors.New("server: corpus function is required")
	}

	s := &Server{
		corpus:   corpusFn,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	indexes, err := cache.New(cacheSize, s.train)
	if err != nil {
		return nil, err
	}
	s.indexes = indexes
	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/documents/{id}/similar", s.handleSimilar)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// train is the cache build function.
func (s *Server) train(ctx context.Context, docs []recommend.Document) (*recommend.Index, error) {
	started := time.Now()

	opts := append([]recommend.Option{recommend.WithLogger(s.logger)}, s.indexOptions...)
	idx, err := recommend.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := idx.Train(ctx, docs); err != nil {
		return nil, err
	}

	elapsed := time.Since(started)
	RecordTraining(len(docs), elapsed)
	s.logger.Info("Trained index", "documents", len(docs), "duration", elapsed)

	return idx, nil
}

// Index loads the current corpus and returns its trained index.
func (s *Server) Index(ctx context.Context) (*recommend.Index, error) {
	docs, err := s.corpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	idx, hit, err := s.indexes.Get(ctx, corpus.Fingerprint(docs), docs)
	RecordCacheLookup(hit)
	if err != nil {
		return nil, fmt.Errorf("failed to train index: %w", err)
	}
	s.serving.Store(idx)
	return idx, nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// The index is trained once before the listener accepts queries.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	if _, err := s.Index(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
