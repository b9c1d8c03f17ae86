package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/services"
)

// Server exposes the ledger operations and read-only queries over HTTP.
// Caller identity is the authenticated account identifier supplied by the
// fronting wallet integration; this server trusts it.
type Server struct {
	cfg *config.ApiConfig
	svc *services.Service
	db  db.DbInterface
}

func New(cfg *config.ApiConfig, svc *services.Service, dbClient db.DbInterface) *Server {
	return &Server{
		cfg: cfg,
		svc: svc,
		db:  dbClient,
	}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down api server")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error shutting down api server")
		}
	}()

	log.Info().Msgf("Starting api server on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracingMiddleware)

	r.Get("/healthcheck", s.handleHealthcheck)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/vault", s.handleVaultStats)
		r.Get("/stakes/{account}", s.handleStakeSnapshot)
		r.Get("/stakes/{account}/eligibility", s.handleUnstakeEligibility)

		r.Post("/stake", s.handleStake)
		r.Post("/restake", s.handleRestake)
		r.Post("/unstake", s.handleUnstake)
		r.Post("/claim", s.handleClaim)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/init", s.handleInitVault)
			r.Post("/deposit", s.handleAdminDeposit)
			r.Post("/withdraw", s.handleAdminWithdraw)
			r.Post("/config", s.handleConfigure)
			r.Post("/pause", s.handlePause)
			r.Post("/unpause", s.handleUnpause)
		})
	})

	return r
}
