package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/courtside/refexchange/internal/blob/s3"
	"github.com/courtside/refexchange/internal/cache/redis"
	"github.com/courtside/refexchange/internal/config"
	"github.com/courtside/refexchange/internal/connectivity"
	"github.com/courtside/refexchange/internal/dialog"
	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/executor"
	"github.com/courtside/refexchange/internal/notify"
	"github.com/courtside/refexchange/internal/platform/refbase"
	"github.com/courtside/refexchange/internal/platform/transit"
	"github.com/courtside/refexchange/internal/server/ws"
	"github.com/courtside/refexchange/internal/service"
	"github.com/courtside/refexchange/internal/settings"
	"github.com/courtside/refexchange/internal/store/postgres"
	"github.com/courtside/refexchange/internal/traveltime"
)

// Dependencies bundles every constructed subsystem the engine needs. It is
// built by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	SettingsStore domain.SettingsStore
	OutboxStore   domain.OutboxStore

	// Caches
	ExchangeCache   domain.ExchangeCache
	TravelTimeCache domain.TravelTimeCache
	RateLimiter     domain.RateLimiter

	// System of record + journey planner
	Refbase *refbase.Client
	Monitor *connectivity.Monitor

	// Engine
	Travel      *traveltime.Builder
	Hub         *ws.Hub
	Pool        *service.ExchangeService
	Assignments *service.AssignmentService
	Settings    *settings.Service
	Browse      *service.BrowseService
	Dialogs     map[domain.ActionKind]*dialog.Controller
	Executor    *executor.Executor
	Replayer    *executor.Replayer

	// Archival and notifications
	Archiver domain.Archiver
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL: filter settings and the mutation outbox ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pgPool := pgClient.Pool()
	deps.SettingsStore = postgres.NewSettingsStore(pgPool)
	deps.OutboxStore = postgres.NewOutboxStore(pgPool)

	// --- Redis: pool snapshots, travel-time memo, rate limiting ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ExchangeCache = redis.NewExchangeCache(redisClient)
	deps.TravelTimeCache = redis.NewTravelTimeCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- System of record ---
	var auth *refbase.HMACAuth
	if cfg.Refbase.ClientID != "" {
		auth = &refbase.HMACAuth{
			ClientID: cfg.Refbase.ClientID,
			Secret:   cfg.Refbase.ClientSecret,
		}
	}
	deps.Refbase = refbase.NewClient(cfg.Refbase.BaseURL, cfg.Refbase.BearerToken, auth)
	deps.Monitor = connectivity.NewMonitor(deps.Refbase, cfg.Engine.ProbeInterval.Duration, logger)

	// --- Travel-time table over the public-transit planner ---
	planner := transit.NewClient(cfg.Transit.BaseURL, cfg.Transit.APIKey)
	deps.Travel = traveltime.New(planner, deps.TravelTimeCache, deps.RateLimiter, logger)

	// --- Pool service, change push, and the viewer's browse pipeline ---
	deps.Hub = ws.NewHub(logger)
	deps.Pool = service.NewExchangeService(deps.Refbase, deps.ExchangeCache, deps.Travel, deps.Hub, logger)
	deps.Pool.SetHome(ctx, cfg.Referee.HomeCoord())
	deps.Assignments = service.NewAssignmentService(deps.Refbase, logger)
	deps.Settings = settings.NewService(deps.SettingsStore, logger)

	viewer := domain.Referee{
		ID:              cfg.Referee.ID,
		Gradation:       cfg.Referee.GradationValue(),
		Home:            cfg.Referee.HomeCoord(),
		AssociationCode: cfg.Referee.AssociationCode,
	}
	deps.Browse = service.NewBrowseService(
		deps.Pool,
		deps.Assignments,
		deps.Settings,
		deps.Travel,
		viewer,
		cfg.Engine.StrictUnknown,
		logger,
	)

	// --- Confirmation dialogs, one per action kind ---
	deps.Dialogs = map[domain.ActionKind]*dialog.Controller{
		domain.ActionTakeOver: dialog.NewController(0),
		domain.ActionWithdraw: dialog.NewController(0),
		domain.ActionRemove:   dialog.NewController(0),
	}
	closers = append(closers, func() {
		for _, d := range deps.Dialogs {
			d.Shutdown()
		}
	})

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Mutation executor and outbox replayer ---
	dialogClosers := make(map[domain.ActionKind]executor.DialogCloser, len(deps.Dialogs))
	for kind, d := range deps.Dialogs {
		dialogClosers[kind] = d
	}
	deps.Executor = executor.New(deps.Refbase, deps.OutboxStore, deps.Monitor, deps.Pool, dialogClosers, logger)
	deps.Replayer = executor.NewReplayer(deps.Refbase, deps.OutboxStore, deps.Monitor, deps.Pool, deps.Notifier, logger)

	// --- S3 archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.OutboxStore, logger)
	}

	return deps, cleanup, nil
}
