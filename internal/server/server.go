package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chebacca/agentcore/internal/config"
	"github.com/chebacca/agentcore/internal/middleware"
)

type Server struct {
	cfg   *config.Config
	http  *http.Server
	stack *Stack // closed on shutdown

	limiter *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	st, err := NewStack(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build stack: %w", err)
	}

	// the routing budget plus headroom for encoding the response
	var writeTimeout time.Duration
	if cfg.Budget() > 0 {
		writeTimeout = cfg.Budget() + 15*time.Second
	}

	s := &Server{cfg: cfg, stack: st, limiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute)}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           routes(cfg, st, s.limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight requests and closes the tool backends.
func (s *Server) Run(ctx context.Context) error {
	defer s.stack.Close()

	g, gctx := errgroup.WithContext(ctx)

	// warm the tool catalog so the first request does not pay for discovery
	g.Go(func() error {
		s.stack.Registry.All(gctx)
		return nil
	})
	g.Go(func() error {
		s.limiter.Run(gctx, 5*time.Minute)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", s.http.Addr).Strs("tiers", s.cfg.ProviderTiers).Msg("listening")
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	log.Info().Err(err).Msg("server stopped")
	return err
}
