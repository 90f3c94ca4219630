package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	donationhandler "fasela/internal/donation/handler"
	donationmetrics "fasela/internal/donation/metrics"
	donationservice "fasela/internal/donation/service"
	donationstore "fasela/internal/donation/store"
	handoverhandler "fasela/internal/handover/handler"
	handovermetrics "fasela/internal/handover/metrics"
	handoverservice "fasela/internal/handover/service"
	handoverstore "fasela/internal/handover/store"
	"fasela/internal/identity"
	orgstore "fasela/internal/organization/store"
	outboxmetrics "fasela/internal/outbox/metrics"
	"fasela/internal/outbox/publisher"
	outboxstore "fasela/internal/outbox/store"
	"fasela/internal/outbox/worker"
	"fasela/internal/platform/config"
	"fasela/internal/platform/metrics"
	"fasela/internal/platform/postgres"
	platformredis "fasela/internal/platform/redis"
	ratelimitmetrics "fasela/internal/ratelimit/metrics"
	ratelimit "fasela/internal/ratelimit/middleware"
	ratelimitmodels "fasela/internal/ratelimit/models"
	"fasela/internal/ratelimit/store/bucket"
	"fasela/internal/report/cache"
	reporthandler "fasela/internal/report/handler"
	reportmetrics "fasela/internal/report/metrics"
	reportservice "fasela/internal/report/service"
	reportstore "fasela/internal/report/store"
	"fasela/pkg/platform/httputil"
	"fasela/pkg/platform/middleware/auth"
	"fasela/pkg/platform/middleware/metadata"
	"fasela/pkg/platform/middleware/request"
	"fasela/pkg/platform/tx"
)

const requestTimeout = 30 * time.Second

type caseStore interface {
	donationservice.CaseLookup
	reportstore.CaseReader
}

type donationStore interface {
	donationservice.Store
	handoverservice.DonationStore
	reportstore.DonationReader
}

type handoverStore interface {
	handoverservice.Store
	reportstore.HandoverReader
}

type outboxStore interface {
	donationservice.EventAppender
	worker.Store
}

// app holds the wired router and the resources that outlive a request.
type app struct {
	router  http.Handler
	worker  *worker.Worker
	storage string
	closers []func() error
}

func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close resource", "error", err)
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{storage: "memory"}

	var (
		db        *sql.DB
		runner    tx.Runner
		relay     tx.Runner
		cases     caseStore
		donations donationStore
		handovers handoverStore
		outbox    outboxStore
	)
	if cfg.Database.URL != "" {
		if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
			return nil, err
		}
		var err error
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.storage = "postgres"
		runner = postgres.NewTxRunner(db,
			postgres.WithTimeout(cfg.Database.TxTimeout),
			postgres.WithRole(cfg.Database.AppRole),
		)
		relay = runner
		cases = orgstore.NewPostgres(db)
		donations = donationstore.NewPostgres(db)
		handovers = handoverstore.NewPostgres(db)
		outbox = outboxstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		runner = tx.NewLocking()
		// The relay publishes under its own lock. Outbox events appear only once
		// their ledger unit commits.
		relay = tx.NewLocking()
		cases = orgstore.NewInMemory()
		donations = donationstore.NewInMemory()
		handovers = handoverstore.NewInMemory()
		outbox = outboxstore.NewInMemory()
	}

	reportMetrics := reportmetrics.New()
	reportCache, redisClient, err := buildReportCache(ctx, cfg, reportMetrics, log)
	if err != nil {
		a.close(log)
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
	}

	reports := reportservice.New(
		reportstore.NewSource(cases, donations, handovers),
		reportservice.WithTxRunner(runner),
		reportservice.WithCache(reportCache),
		reportservice.WithMetrics(reportMetrics),
		reportservice.WithLogger(log),
	)
	donationSvc := donationservice.New(donations, cases,
		donationservice.WithTxRunner(runner),
		donationservice.WithEventAppender(outbox),
		donationservice.WithReportInvalidator(reports),
		donationservice.WithMetrics(donationmetrics.New()),
		donationservice.WithLogger(log),
	)
	handoverSvc := handoverservice.New(handovers, donations,
		handoverservice.WithTxRunner(runner),
		handoverservice.WithEventAppender(outbox),
		handoverservice.WithReportInvalidator(reports),
		handoverservice.WithMetrics(handovermetrics.New()),
		handoverservice.WithLogger(log),
	)

	var feed *publisher.Kafka
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			a.close(log)
			return nil, err
		}
		a.closers = append(a.closers, func() error { kafka.Close(); return nil })
		if err := kafka.EnsureTopic(ctx); err != nil {
			a.close(log)
			return nil, fmt.Errorf("ensure ledger events topic: %w", err)
		}
		feed = kafka
		a.worker = worker.New(outbox, kafka,
			worker.WithTxRunner(relay),
			worker.WithPollInterval(cfg.Kafka.PollInterval),
			worker.WithBatchSize(cfg.Kafka.BatchSize),
			worker.WithMetrics(outboxmetrics.New()),
			worker.WithLogger(log),
		)
	} else {
		log.Info("KAFKA_BROKERS not set, ledger events stay in the outbox")
	}

	limiter := buildRateLimiter(cfg, redisClient, log)

	jwt := identity.NewJWTService(cfg.SigningKey(), cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(metadata.ClientMetadata(cfg.Server.TrustProxy))
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Timeout(requestTimeout))
	r.Use(httpMetrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", healthHandler(db, redisClient, feed))

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwt, log))
		donationhandler.New(donationSvc, log,
			donationhandler.WithCreateGuard(limiter.LimitByIP(ratelimitmodels.ClassDonate, ratelimitmodels.Limit{
				Requests: cfg.RateLimit.DonationsPerWindow,
				Window:   cfg.RateLimit.Window,
			})),
		).Register(r)
		handoverhandler.New(handoverSvc, log).Register(r)
		reporthandler.New(reports, log).Register(r)
	})

	a.router = r
	return a, nil
}

// buildReportCache prefers Redis, then an in-process cache. A Redis outage at
// startup is fatal; later outages trip the breaker.
func buildReportCache(ctx context.Context, cfg *config.Config, m *reportmetrics.Metrics, log *slog.Logger) (reportservice.Cache, *platformredis.Client, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return cache.NewMemory(cfg.ReportCache.TTL), nil, nil
	}
	return cache.NewRedis(client.Client,
		cache.WithTTL(cfg.ReportCache.TTL),
		cache.WithMetrics(m),
		cache.WithLogger(log),
	), client, nil
}

// buildRateLimiter shares donor limits through Redis when it is configured and
// keeps an in-process window as the fallback.
func buildRateLimiter(cfg *config.Config, redisClient *platformredis.Client, log *slog.Logger) *ratelimit.Middleware {
	fallback := bucket.NewInMemory()
	var primary ratelimit.Limiter = fallback
	if redisClient != nil {
		primary = bucket.NewRedis(redisClient.Client)
	}
	return ratelimit.New(primary, log,
		ratelimit.WithFallback(fallback),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client, feed *publisher.Kafka) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		if db != nil {
			checks["database"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if redisClient != nil {
			// Reports fall back to building uncached; Redis does not fail the probe.
			checks["redis"] = "ok"
			if err := redisClient.Health(ctx); err != nil {
				checks["redis"] = err.Error()
			}
		}
		if feed != nil {
			// The outbox buffers events while brokers are unreachable.
			checks["event_feed"] = "ok"
			if err := feed.Ping(ctx); err != nil {
				checks["event_feed"] = err.Error()
			}
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
	}
}
