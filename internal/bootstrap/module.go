package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mindvault/internal/bootstrap/config"
	"mindvault/internal/bootstrap/database"
	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	aiinfra "mindvault/internal/infrastructure/ai"
	cacheinfra "mindvault/internal/infrastructure/cache"
	ledgerinfra "mindvault/internal/infrastructure/ledger"
	sqliterepo "mindvault/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "mindvault/internal/infrastructure/persistence/sqlite/uow"
	queueinfra "mindvault/internal/infrastructure/queue"
	"mindvault/internal/ports"
	"mindvault/internal/transport/rest"
	"mindvault/internal/usecase/review"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideRegistry),
	fx.Provide(provideDeadLetterSink),
	fx.Provide(provideQueue),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSubmissionRepository,
			fx.As(new(ports.SubmissionRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewAuditLogRepository,
			fx.As(new(ports.AuditLog)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideAIClient),
	fx.Provide(
		fx.Annotate(
			aiinfra.NewMatcher,
			fx.As(new(ports.DuplicateMatcher)),
		),
	),
	fx.Provide(
		fx.Annotate(
			aiinfra.NewScorer,
			fx.As(new(ports.PatentabilityScorer)),
		),
	),
	fx.Provide(providePersonas),
	fx.Provide(provideLedger),
	fx.Provide(provideService),
	fx.Provide(rest.NewHandler),
	fx.Provide(provideRouter),
	fx.Invoke(bindDeadLetterSink),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// DeadLetterSink breaks the construction cycle between the queue, which
// needs a dead-letter hook, and the service, which is built on the queue.
type DeadLetterSink struct {
	mu sync.Mutex
	fn func(ctx context.Context, job ports.Job, cause error)
}

func (s *DeadLetterSink) Bind(fn func(ctx context.Context, job ports.Job, cause error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *DeadLetterSink) call(ctx context.Context, job ports.Job, cause error) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(ctx, job, cause)
	}
}

func provideDeadLetterSink() *DeadLetterSink {
	return &DeadLetterSink{}
}

func provideQueue(lc fx.Lifecycle, ctx context.Context, cfg config.Config, reg *prometheus.Registry, sink *DeadLetterSink) (ports.Queue, error) {
	switch cfg.Queue.Driver {
	case "memory", "":
		q := queueinfra.NewMemoryQueue(queueinfra.Options{
			Stages:      domain.Stages(),
			Attempts:    cfg.Queue.Attempts,
			BaseBackoff: cfg.Queue.BaseBackoff,
			Retryable:   review.Retryable,
			DeadLetter:  sink.call,
			Registerer:  reg,
			BaseCtx:     ctx,
		})
		lc.Append(fx.Hook{
			OnStop: func(stopCtx context.Context) error { return q.Drain(stopCtx) },
		})
		return q, nil

	case "nats":
		q, err := queueinfra.NewNATSQueue(queueinfra.NATSOptions{
			URL:         cfg.Queue.NATSURL,
			Stages:      domain.Stages(),
			Attempts:    cfg.Queue.Attempts,
			BaseBackoff: cfg.Queue.BaseBackoff,
			Retryable:   review.Retryable,
			DeadLetter:  sink.call,
			Registerer:  reg,
			BaseCtx:     ctx,
		})
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(stopCtx context.Context) error { return q.Drain(stopCtx) },
		})
		return q, nil

	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

func provideAIClient(cfg config.Config) *aiinfra.Client {
	return aiinfra.NewClient(cfg.AI)
}

func providePersonas(client *aiinfra.Client) []ports.CouncilPersona {
	return []ports.CouncilPersona{
		aiinfra.NewPersona(client, domain.PersonaExaminer),
		aiinfra.NewPersona(client, domain.PersonaCritic),
		aiinfra.NewPersona(client, domain.PersonaVisionary),
	}
}

func provideLedger(cfg config.Config) ports.Ledger {
	return ledgerinfra.NewRPCLedger(cfg.Ledger)
}

func provideService(
	cfg config.Config,
	repo ports.SubmissionRepository,
	audit ports.AuditLog,
	uow ports.UnitOfWork,
	queue ports.Queue,
	matcher ports.DuplicateMatcher,
	scorer ports.PatentabilityScorer,
	personas []ports.CouncilPersona,
	ledger ports.Ledger,
	cache ports.Cache,
) *review.Service {
	return review.NewService(review.Options{
		Repo:       repo,
		Audit:      audit,
		UnitOfWork: uow,
		Queue:      queue,
		Matcher:    matcher,
		Scorer:     scorer,
		Personas:   personas,
		Ledger:     ledger,
		Cache:      cache,
		Policy: domain.RewardPolicy{
			BaseAmount: cfg.Rewards.BaseAmount,
			MinAmount:  cfg.Rewards.MinAmount,
			MaxAmount:  cfg.Rewards.MaxAmount,
			Decimals:   cfg.Ledger.Decimals,
		},
		CouncilTimeout: cfg.AI.Timeout,
		Concurrency:    cfg.Queue.Concurrency,
	})
}

func provideRouter(handler *rest.Handler, reg *prometheus.Registry) http.Handler {
	return rest.NewRouter(handler, reg)
}

func bindDeadLetterSink(sink *DeadLetterSink, svc *review.Service) {
	sink.Bind(svc.OnJobExhausted)
}
