package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"wellgate/internal/audit"
	"wellgate/internal/guard"
	"wellgate/internal/identity/authclient"
	identityhandler "wellgate/internal/identity/handler"
	identitymetrics "wellgate/internal/identity/metrics"
	"wellgate/internal/identity/ports"
	"wellgate/internal/identity/service"
	credentialstore "wellgate/internal/identity/store/credential"
	profilestore "wellgate/internal/identity/store/profile"
	rolestore "wellgate/internal/identity/store/roles"
	"wellgate/internal/impersonation"
	impersonationhandler "wellgate/internal/impersonation/handler"
	impmetrics "wellgate/internal/impersonation/metrics"
	impstore "wellgate/internal/impersonation/store"
	"wellgate/internal/platform/config"
	"wellgate/internal/platform/httpserver"
	"wellgate/internal/platform/logger"
	"wellgate/internal/platform/postgres"
	platformredis "wellgate/internal/platform/redis"
	"wellgate/pkg/platform/httputil"
	"wellgate/pkg/platform/middleware/device"
	"wellgate/pkg/platform/middleware/metadata"
	"wellgate/pkg/platform/middleware/request"
	"wellgate/pkg/platform/middleware/requesttime"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slogFatal("invalid configuration", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Stores: Postgres when configured, in-memory otherwise (dev mode).
	var (
		creds    authclient.CredentialStore
		roles    ports.RoleStore
		profiles ports.ProfileStore
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		creds = credentialstore.NewPostgres(db)
		roles = rolestore.NewPostgres(db)
		profiles = profilestore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		creds = credentialstore.NewInMemory()
		roles = rolestore.NewInMemory()
		profiles = profilestore.NewInMemory()
		log.Warn("no postgres configured, using in-memory stores")
	}

	var overlayStore impstore.Store
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		overlayStore = impstore.NewRedis(redisClient)
		log.Info("using redis impersonation store")
	} else {
		overlayStore = impstore.NewInMemory()
		log.Warn("no redis configured, using in-memory impersonation store")
	}

	var auditor audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		auditor = kafkaPublisher
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	} else {
		auditor = audit.NewLogPublisher(log)
	}
	defer auditor.Close()

	idMetrics := identitymetrics.New(reg)
	auth := authclient.NewLocal(creds, []byte(cfg.JWTSigningKey), cfg.SessionTTL, log)
	resolver := service.NewResolver(roles, profiles, log, idMetrics)
	overlay := impersonation.New(overlayStore, log,
		impersonation.WithAuditor(auditor),
		impersonation.WithMetrics(impmetrics.New(reg)),
	)
	guards := guard.NewMiddleware(auth, resolver, overlay, log, reg)

	authHandler := identityhandler.New(auth, resolver, profiles, log, idMetrics, auditor, cfg.PasswordResetURL)
	impHandler := impersonationhandler.New(overlay, resolver, log)

	router := newRouter(reg, guards, authHandler, impHandler)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newRouter(reg *prometheus.Registry, guards *guard.Middleware,
	authHandler *identityhandler.Handler, impHandler *impersonationhandler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Mount("/auth", authHandler.Routes(guards.Authenticate))
	r.Mount("/admin/impersonation", impHandler.Routes(guards.Authenticate))

	// Portal subtrees exercise the guards end to end. Real portal content
	// is served elsewhere; these endpoints confirm the decision layer.
	r.Route("/portal", func(r chi.Router) {
		r.With(guards.Require(guard.AdminPortal)).Get("/admin/ping", pong)
		r.With(guards.Require(guard.ManagerPortal)).Get("/manager/ping", pong)
		r.With(guards.Require(guard.ParticipantPortal)).Get("/participant/ping", pong)
	})

	return r
}

func pong(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func slogFatal(msg string, err error) {
	logger.New("info").Error(msg, "error", err)
	os.Exit(1)
}
