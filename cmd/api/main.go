package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/apotekgemini/backend-apotek/internal/auth"
	"github.com/apotekgemini/backend-apotek/internal/catalog"
	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/config"
	"github.com/apotekgemini/backend-apotek/internal/db"
	"github.com/apotekgemini/backend-apotek/internal/health"
	"github.com/apotekgemini/backend-apotek/internal/obs"
	"github.com/apotekgemini/backend-apotek/internal/prescription"
	"github.com/apotekgemini/backend-apotek/internal/promo"
	"github.com/apotekgemini/backend-apotek/internal/ratelimit"
	"github.com/apotekgemini/backend-apotek/internal/report"
	"github.com/apotekgemini/backend-apotek/internal/sale"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "apotek-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if tracingEnabled {
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "apotek-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	authService, err := auth.NewService(auth.Config{
		Store:          &auth.PgStore{Pool: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	loginLimiter, err := ratelimit.New(redisClient, cfg.LoginRateLimit, "ratelimit:login")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login rate limiter")
	}
	loginGuard := ratelimit.Handler{
		Limiter: loginLimiter,
		OnError: func(err error) { logger.Error().Err(err).Msg("login rate limiter") },
	}

	catalogService := catalog.NewService(pool, catalog.NewCache(redisClient, cfg.CatalogCacheTTL), logger)
	catalogHandler := &catalog.Handler{Service: catalogService}

	promoService := promo.NewService(pool)
	promoHandler := &promo.Handler{Service: promoService}

	saleService := sale.NewService(pool, promoService, catalogService, logger)
	saleHandler := &sale.Handler{Service: saleService}

	prescriptionService := prescription.NewService(pool)
	prescriptionHandler := &prescription.Handler{Service: prescriptionService}

	reportService := report.NewService(pool, cfg.LowStockThreshold)
	reportHandler := &report.Handler{Service: reportService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.MetricsBucketsCSV)
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		user := strings.TrimSpace(os.Getenv("PPROF_BASIC_AUTH_USER"))
		pass := strings.TrimSpace(os.Getenv("PPROF_BASIC_AUTH_PASS"))
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Checker: health.Probe{Pool: pool, Redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.With(loginGuard.Middleware).Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
				protected.With(auth.RequireRole(auth.RoleAdmin)).Post("/register", authHandler.Register)
			})
		})

		api.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)

			protected.Route("/products", func(p chi.Router) {
				p.Get("/", catalogHandler.List)
				p.Get("/{id}", catalogHandler.Get)
				p.Get("/sku/{sku}", catalogHandler.GetBySKU)
				p.Group(func(manage chi.Router) {
					manage.Use(auth.RequireRole(auth.RoleAdmin, auth.RolePharmacist))
					manage.Post("/", catalogHandler.Create)
					manage.Put("/{id}", catalogHandler.Update)
					manage.Delete("/{id}", catalogHandler.Delete)
				})
			})

			protected.Route("/promotions", func(p chi.Router) {
				p.Get("/", promoHandler.List)
				p.Get("/{id}", promoHandler.Get)
				p.Group(func(manage chi.Router) {
					manage.Use(auth.RequireRole(auth.RoleAdmin))
					manage.Post("/", promoHandler.Create)
					manage.Put("/{id}", promoHandler.Update)
					manage.Delete("/{id}", promoHandler.Delete)
				})
			})

			protected.Route("/sales", func(s chi.Router) {
				s.Get("/", saleHandler.List)
				s.Get("/{id}", saleHandler.Get)
				s.Post("/quote", saleHandler.Quote)
				s.With(idem.Middleware).Post("/", saleHandler.Create)
			})

			protected.Route("/patients", func(p chi.Router) {
				p.Get("/", prescriptionHandler.ListPatients)
				p.Post("/", prescriptionHandler.CreatePatient)
			})
			protected.Route("/doctors", func(d chi.Router) {
				d.Get("/", prescriptionHandler.ListDoctors)
				d.Post("/", prescriptionHandler.CreateDoctor)
			})
			protected.Route("/prescriptions", func(p chi.Router) {
				p.Get("/", prescriptionHandler.List)
				p.Get("/{id}", prescriptionHandler.Get)
				p.Post("/", prescriptionHandler.Intake)
				p.Patch("/{id}/status", prescriptionHandler.UpdateStatus)
			})

			protected.Route("/reports", func(rep chi.Router) {
				rep.Use(auth.RequireRole(auth.RoleAdmin, auth.RolePharmacist))
				rep.Get("/summary", reportHandler.Summary)
				rep.Get("/top-products", reportHandler.TopProducts)
				rep.Get("/sales-over-time", reportHandler.SalesOverTime)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
