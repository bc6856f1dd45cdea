package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	certhandler "certify/internal/certificate/handler"
	certmetrics "certify/internal/certificate/metrics"
	certservice "certify/internal/certificate/service"
	certstore "certify/internal/certificate/store"
	"certify/internal/directory"
	dirmodels "certify/internal/directory/models"
	dirstore "certify/internal/directory/store"
	jwttoken "certify/internal/jwt_token"
	"certify/internal/ledger"
	boltledger "certify/internal/ledger/bolt"
	"certify/internal/ledger/cache"
	"certify/internal/ledger/ethereum"
	memoryledger "certify/internal/ledger/memory"
	"certify/internal/notify"
	"certify/internal/platform/config"
	"certify/internal/platform/httpserver"
	"certify/internal/platform/kafka"
	"certify/internal/platform/logger"
	"certify/internal/platform/metrics"
	"certify/internal/platform/postgres"
	"certify/internal/platform/redis"
	"certify/internal/scanner"
	audit "certify/pkg/platform/audit"
	"certify/pkg/platform/audit/publishers/compliance"
	"certify/pkg/platform/audit/publishers/security"
	auditmemory "certify/pkg/platform/audit/store/memory"
	auditpostgres "certify/pkg/platform/audit/store/postgres"
	"certify/pkg/platform/audit/worker"
	"certify/pkg/platform/circuit"
	"certify/pkg/platform/httputil"
	adminmw "certify/pkg/platform/middleware/admin"
	authmw "certify/pkg/platform/middleware/auth"
	"certify/pkg/platform/middleware/metadata"
	"certify/pkg/platform/middleware/ratelimit"
	"certify/pkg/platform/middleware/request"
	"certify/pkg/platform/middleware/requesttime"
)

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps, err := connectInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	l, closeLedger, err := buildLedger(ctx, cfg, deps, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	var (
		certificates certservice.Store
		requests     certservice.RequestStore
		accounts     interface {
			directory.Store
			dirstore.Seeder
		}
		auditStore audit.Store
		txRunner   certservice.TxRunner
	)
	if deps.db != nil {
		certificates = certstore.NewPostgres(deps.db)
		requests = certstore.NewPostgresRequests(deps.db)
		accounts = dirstore.NewPostgres(deps.db)
		auditStore = auditpostgres.New(deps.db)
		txRunner = newCertificatePostgresTx(deps.db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory registry")
		certificates = certstore.NewInMemory()
		requests = certstore.NewInMemoryRequests()
		accounts = dirstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		txRunner = certservice.NewInlineTx(0)
	}

	compliancePublisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	securityPublisher := security.New(auditStore, security.WithLogger(log))

	service := certservice.New(certificates, requests, accounts, l,
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New()),
		certservice.WithTxRunner(txRunner),
		certservice.WithComplianceAuditor(compliancePublisher),
		certservice.WithSecurityAuditor(securityPublisher),
		certservice.WithNotifier(notify.NewLogNotifier(log)),
		certservice.WithScanner(scanner.New()),
		certservice.WithLedgerTimeouts(cfg.Ledger.WriteTimeout, cfg.Ledger.ReadTimeout),
		certservice.WithSweep(cfg.Sweep.PageSize, cfg.Sweep.Concurrency),
	)

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	if cfg.Server.SeedDemoData && !cfg.IsProduction() {
		if err := seedDemo(ctx, accounts, tokens, cfg.Auth.TokenTTL, log); err != nil {
			return err
		}
	}

	httpMetrics := metrics.New()
	limiter := ratelimit.New(cfg.RateLimit.VerifyPerSecond, cfg.RateLimit.VerifyBurst, log)
	handler := certhandler.New(service, directory.NewResolver(accounts), log,
		certhandler.WithAuth(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), log)),
		certhandler.WithVerifyLimiter(limiter.Middleware),
		certhandler.WithAdmin(adminmw.RequireAdminToken(cfg.Auth.AdminToken, log)),
	)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Latency(httpMetrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", deps.health)
	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.Server.RequestTimeout))
		handler.Register(r)
	})

	srv := httpserver.New(cfg.Server, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting certify", "addr", cfg.Server.Addr, "ledger", cfg.Ledger.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		securityPublisher.Run(gctx)
		return nil
	})
	if outbox, ok := auditStore.(*auditpostgres.Store); ok && deps.producer != nil {
		if err := deps.producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("audit topic check failed", "error", err)
		}
		relay := worker.NewRelay(outbox, deps.producer, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize, log)
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	scheduler := cron.New()
	if cfg.Sweep.Schedule != "" {
		if _, err := scheduler.AddFunc(cfg.Sweep.Schedule, func() { runSweep(gctx, service, log) }); err != nil {
			return err
		}
		scheduler.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		<-scheduler.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func connectInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.db = db
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.redis = rc

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.producer = producer
	if producer == nil && db != nil {
		log.Warn("KAFKA_BROKERS not set, audit outbox will not be relayed")
	}
	return deps, nil
}

func (d *infra) close() {
	if d.producer != nil {
		d.producer.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func (d *infra) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			status[name] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	if d.db != nil {
		check("postgres", d.db.PingContext)
	}
	if d.redis != nil {
		check("redis", d.redis.Health)
	}
	if d.producer != nil {
		check("kafka", d.producer.Health)
	}
	httputil.WriteJSON(w, code, status)
}

// buildLedger selects the ledger driver and wraps it with the circuit
// breaker and the read cache.
func buildLedger(ctx context.Context, cfg config.Config, deps *infra, log *slog.Logger) (ledger.Ledger, func(), error) {
	var (
		base    ledger.Ledger
		closeFn = func() {}
	)
	switch cfg.Ledger.Driver {
	case config.LedgerDriverBolt:
		bl, err := boltledger.Open(cfg.Ledger.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		base = bl
		closeFn = func() { _ = bl.Close() }
	case config.LedgerDriverEthereum:
		el, err := ethereum.Dial(ctx, ethereum.Config{
			RPCURL:          cfg.Ledger.RPCURL,
			ContractAddress: cfg.Ledger.ContractAddress,
			PrivateKey:      cfg.Ledger.PrivateKey,
			ChainID:         cfg.Ledger.ChainID,
		})
		if err != nil {
			return nil, nil, err
		}
		base = el
		closeFn = el.Close
	default:
		log.Warn("using in-memory ledger, anchors are lost on restart")
		base = memoryledger.New()
	}

	breaker := circuit.New("ledger", circuit.WithFailureThreshold(cfg.Ledger.BreakerFailures))
	guarded := ledger.NewGuarded(base, breaker, log)

	opts := []cache.Option{cache.WithLogger(log)}
	switch {
	case deps.redis == nil:
	case cfg.Ledger.CacheKey == "":
		log.Warn("LEDGER_CACHE_KEY not set, ledger reads are not cached in redis")
	default:
		opts = append(opts, cache.WithRedis(deps.redis.Client, []byte(cfg.Ledger.CacheKey)))
	}
	return cache.New(guarded, cfg.Ledger.CacheTTL, opts...), closeFn, nil
}

func runSweep(ctx context.Context, service *certservice.Service, log *slog.Logger) {
	report, err := service.Sweep(ctx)
	if err != nil {
		log.ErrorContext(ctx, "integrity sweep failed", "error", err)
		return
	}
	log.InfoContext(ctx, "integrity sweep finished",
		"checked", report.Checked,
		"intact", report.Intact,
		"tampered", len(report.Tampered),
		"unanchored", len(report.Unanchored),
		"failed", report.Failed,
	)
}

// seedDemo creates the demo accounts and logs a bearer token for each.
func seedDemo(ctx context.Context, s dirstore.Seeder, tokens *jwttoken.JWTService, ttl time.Duration, log *slog.Logger) error {
	subject, issuer, admin, err := dirstore.SeedDemoAccounts(ctx, s)
	if err != nil {
		return err
	}
	for _, acct := range []dirmodels.Account{subject, issuer, admin} {
		token, err := tokens.GenerateAccessToken(acct.AccountID(), string(acct.Role()), ttl)
		if err != nil {
			return err
		}
		log.Info("demo account", "name", acct.DisplayName(), "role", acct.Role(), "token", token)
	}
	return nil
}
