package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/anayak07/walletsync/internal/repositories"
	"github.com/anayak07/walletsync/internal/services"
)

// HealthProbe checks a backing dependency.
type HealthProbe func(ctx context.Context) error

type RouterDeps struct {
	Auth     *services.AuthService
	Sync     *services.SyncService
	Wallets  repositories.WalletAdmin
	Dir      repositories.WalletDirectory
	Presence repositories.PresenceRepository
	Probes   map[string]HealthProbe
}

func NewRouter(logger *slog.Logger, deps RouterDeps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		payload := map[string]any{"status": "ok"}
		for name, probe := range deps.Probes {
			if err := probe(ctx); err != nil {
				logger.Error("health probe failed", "probe", name, "error", err)
				status = http.StatusServiceUnavailable
				payload["status"] = "degraded"
				payload[name] = err.Error()
			}
		}
		writeJSON(w, status, payload)
	})

	authHandler := NewAuthHandler(deps.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	walletHandler := NewWalletHandler(deps.Wallets, deps.Dir, logger)
	router.Route("/wallets", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Auth))
		r.Post("/", walletHandler.Create)
		r.Get("/{walletID}", walletHandler.Get)
		r.Post("/{walletID}/accounts", walletHandler.CreateAccount)
		r.Post("/{walletID}/categories", walletHandler.CreateCategory)
		r.Post("/{walletID}/members", walletHandler.AddMember)
	})

	syncHandler := NewSyncHandler(deps.Sync, deps.Dir, deps.Presence, logger)
	router.Route("/sync", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Auth))
		r.Post("/push", syncHandler.Push)
		r.Get("/pull", syncHandler.Pull)
	})

	return router
}
