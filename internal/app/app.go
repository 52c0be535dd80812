// Package app wires configuration, storage, services and the HTTP router
// into a runnable server.
package app

import (
	"context"
	"fmt"

	"engagement-rewards/config"
	"engagement-rewards/internal/adapter/http/dto"
	httpHandler "engagement-rewards/internal/adapter/http/handler"
	"engagement-rewards/internal/adapter/http/middleware"
	"engagement-rewards/internal/adapter/imaging"
	"engagement-rewards/internal/adapter/realtime"
	"engagement-rewards/internal/adapter/storage/memory"
	pgStorage "engagement-rewards/internal/adapter/storage/postgres"
	redisStorage "engagement-rewards/internal/adapter/storage/redis"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/internal/service"
	"engagement-rewards/pkg/imagehash"
	"engagement-rewards/pkg/logger"
	"engagement-rewards/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// App is the assembled service.
type App struct {
	Router   *gin.Engine
	Hub      *realtime.Hub
	Registry *prometheus.Registry

	closers []func()
	log     zerolog.Logger
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	fingerprinter ports.Fingerprinter
	payout        ports.PayoutGateway
	openAPI       []byte
}

// WithFingerprinter replaces the HTTP image fetcher.
func WithFingerprinter(f ports.Fingerprinter) Option {
	return func(o *options) { o.fingerprinter = f }
}

// WithPayoutGateway replaces the logging payout gateway.
func WithPayoutGateway(p ports.PayoutGateway) Option {
	return func(o *options) { o.payout = p }
}

// WithOpenAPISpec enables /swagger with the given document.
func WithOpenAPISpec(spec []byte) Option {
	return func(o *options) { o.openAPI = spec }
}

// stores groups the persistence ports of one storage driver.
type stores struct {
	submissions ports.SubmissionRepository
	earnings    ports.EarningsRepository
	withdrawals ports.WithdrawalRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	locker      ports.UserLocker
	health      ports.HealthChecker
	close       func()
}

// New builds the App described by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Storage
	var st *stores
	switch cfg.Storage.Driver {
	case "memory":
		st = openMemory()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		var err error
		if st, err = openPostgres(ctx, cfg.Database, logger.Component(log, "postgres")); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, st.close)
	checkers := []ports.HealthChecker{st.health}

	// Claims, idempotency cache, HTTP throttle
	var (
		guard    ports.SubmissionGuard
		cache    ports.IdempotencyCache
		throttle middleware.Throttle
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, logger.Component(log, "redis"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		guard = redisStorage.NewSubmissionGuard(rdb)
		cache = redisStorage.NewIdempotencyCache(rdb)
		throttle = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("redis disabled, submission claims and idempotency cache are process-local")
		guard = memory.NewGuard()
		cache = memory.NewIdempotencyCache()
	}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption service: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	policies, err := service.NewPolicyTable(cfg.Rewards)
	if err != nil {
		return nil, fmt.Errorf("reward policies: %w", err)
	}
	minimum, err := money.Parse(cfg.Withdrawal.Minimum)
	if err != nil {
		return nil, fmt.Errorf("withdrawal.minimum: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(a.Registry)

	a.Hub = realtime.NewHub(cfg.Realtime, logger.Component(log, "realtime"))
	a.Hub.SetPresenter(dto.Present)
	a.closers = append(a.closers, a.Hub.Close)

	fingerprinter := o.fingerprinter
	if fingerprinter == nil {
		client := imaging.NewHTTPClient(cfg.Fingerprint)
		fingerprinter = imaging.NewFingerprinter(client, cfg.Fingerprint, logger.Component(log, "imaging"))
	}
	payout := o.payout
	if payout == nil {
		payout = service.NewLogPayoutGateway(logger.Component(log, "payout"))
	}

	auditSvc := service.NewAuditService(st.audit, logger.Component(log, "audit"))
	a.closers = append(a.closers, auditSvc.Wait)
	ledger := service.NewEarningsLedger(st.earnings, st.withdrawals, minimum)

	submissionSvc := service.NewSubmissionService(service.SubmissionDeps{
		Submissions:   st.submissions,
		Ledger:        ledger,
		Transactor:    st.transactor,
		Locker:        st.locker,
		Fingerprinter: fingerprinter,
		Matcher:       imagehash.NewMatcher(cfg.Dedup.Threshold),
		Guard:         guard,
		Notifier:      a.Hub,
		Audit:         auditSvc,
		Metrics:       metrics,
	}, policies, service.SubmissionSettings{
		DedupLookback:   cfg.Dedup.Lookback,
		DedupWindow:     cfg.Dedup.Window,
		ClaimTTL:        cfg.Dedup.ClaimTTL,
		RateLimit:       cfg.RateLimit.MaxPerWindow,
		RateWindow:      cfg.RateLimit.Window,
		CompletionRatio: cfg.Video.CompletionRatio,
	}, logger.Component(log, "submissions"))

	withdrawalSvc := service.NewWithdrawalService(service.WithdrawalDeps{
		Ledger:      ledger,
		Withdrawals: st.withdrawals,
		IdempRepo:   st.idempotency,
		IdempCache:  cache,
		Encryption:  encSvc,
		Transactor:  st.transactor,
		Locker:      st.locker,
		Payout:      payout,
		Notifier:    a.Hub,
		Audit:       auditSvc,
		Metrics:     metrics,
	}, logger.Component(log, "withdrawals"))

	reportingSvc := service.NewReportingService(st.earnings, st.submissions, st.withdrawals)

	a.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		SubmissionSvc:  submissionSvc,
		WithdrawalSvc:  withdrawalSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		Realtime:       a.Hub,
		RateLimitStore: throttle,
		HealthCheckers: checkers,
		Metrics:        a.Registry,
		OpenAPISpec:    o.openAPI,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	ok = true
	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openMemory() *stores {
	s := memory.NewStore()
	return &stores{
		submissions: memory.NewSubmissionRepo(s),
		earnings:    memory.NewEarningsRepo(s),
		withdrawals: memory.NewWithdrawalRepo(s),
		idempotency: memory.NewIdempotencyRepo(s),
		audit:       memory.NewAuditRepo(s),
		transactor:  s,
		locker:      s,
		health:      s,
		close:       func() {},
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*stores, error) {
	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("PostgreSQL connected, schema up to date")

	transactor := pgStorage.NewTransactor(pool)
	return &stores{
		submissions: pgStorage.NewSubmissionRepo(pool),
		earnings:    pgStorage.NewEarningsRepo(pool),
		withdrawals: pgStorage.NewWithdrawalRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		audit:       pgStorage.NewAuditRepository(pool),
		transactor:  transactor,
		locker:      transactor,
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}
