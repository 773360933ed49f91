// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/checkout"
	"github.com/ucpify/ucpify/internal/handler"
	"github.com/ucpify/ucpify/internal/merchant"
	"github.com/ucpify/ucpify/internal/oauth"
	"github.com/ucpify/ucpify/internal/order"
	"github.com/ucpify/ucpify/internal/payment"
	"github.com/ucpify/ucpify/internal/repository"
	"github.com/ucpify/ucpify/internal/repository/memory"
	"github.com/ucpify/ucpify/pkg/health"
	"github.com/ucpify/ucpify/pkg/httpmiddleware"
)

// stores groups the repository set behind either backend.
type stores struct {
	sessions checkout.Repository
	orders   order.Repository
	catalog  catalog.Repository
	clients  oauth.ClientRepository
	codes    oauth.CodeRepository
	tokens   oauth.TokenRepository
	stats    handler.StatsProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	mcfg, err := merchant.Load(cfg.MerchantConfig)
	if err != nil {
		return errors.Wrap(err, "load merchant config")
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var st stores
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		st = stores{
			sessions: repository.NewSessionRepository(pool),
			orders:   repository.NewOrderRepository(pool),
			catalog:  repository.NewCatalogRepository(pool),
			clients:  repository.NewClientRepository(pool),
			codes:    repository.NewCodeRepository(pool),
			tokens:   repository.NewTokenRepository(pool),
			stats:    repository.NewStatsRepository(pool),
		}
	} else {
		lg.Warn("No database URL configured, using in-memory storage")
		store := memory.NewStore()
		st = stores{
			sessions: store.Sessions(),
			orders:   store.Orders(),
			catalog:  store,
			clients:  store.Clients(),
			codes:    store.Codes(),
			tokens:   store.Tokens(),
			stats:    store,
		}
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Catalog: config items plus anything bulk loaded into the database.
	idx, err := catalog.NewIndexWithRepository(ctx, mcfg.Items, st.catalog)
	if err != nil {
		return errors.Wrap(err, "build catalog index")
	}
	lg.Info("Catalog ready", zap.Int("items", idx.Len()))

	// Domain services.
	checkoutSvc := checkout.NewService(mcfg, idx, st.sessions, payment.Select(mcfg))

	var oauthSvc *oauth.Service
	if mcfg.BuiltInOAuth() {
		oauthSvc = oauth.NewService(st.clients, st.codes, st.tokens)
		lg.Info("Built-in OAuth provider enabled")
	}

	var stripeWebhookSecret string
	if sh := mcfg.PaymentHandlerFor("com.stripe"); sh != nil {
		stripeWebhookSecret = sh.Config["webhook_secret"]
	}

	h := handler.NewHandler(
		handler.Config{StripeWebhookSecret: stripeWebhookSecret},
		mcfg, checkoutSvc, idx, st.orders, st.sessions, oauthSvc, st.stats,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.HandleFunc("/health", healthSvc.LiveEndpoint)
	mux.Handle("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("ucp-server", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
