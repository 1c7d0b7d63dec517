package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	libredis "chargehub/backend/libs/redis"
	"chargehub/backend/services/chargers-service/internal/auth"
	"chargehub/backend/services/chargers-service/internal/config"
	"chargehub/backend/services/chargers-service/internal/db"
	"chargehub/backend/services/chargers-service/internal/events"
	httpserver "chargehub/backend/services/chargers-service/internal/http"
	"chargehub/backend/services/chargers-service/internal/http/handlers"
	"chargehub/backend/services/chargers-service/internal/http/middleware"
	"chargehub/backend/services/chargers-service/internal/lock"
	"chargehub/backend/services/chargers-service/internal/metrics"
	"chargehub/backend/services/chargers-service/internal/models"
	redisstore "chargehub/backend/services/chargers-service/internal/redis"
	"chargehub/backend/services/chargers-service/internal/repository"
	"chargehub/backend/services/chargers-service/internal/repository/memory"
	"chargehub/backend/services/chargers-service/internal/service"
	"chargehub/backend/services/chargers-service/internal/ws"
)

const (
	eventBuffer   = 16
	leasePoll     = 25 * time.Millisecond
	wsWriteWindow = 10 * time.Second
)

// App wires chargers-service dependencies.
type App struct {
	server      *httpserver.Server
	db          *sqlx.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisEnabled() {
		client, err := libredis.Connect(ctx, libredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		switch {
		case err == nil:
			a.redisClient = client
		case cfg.Locking.Backend == config.LockRedis:
			a.Close()
			return nil, fmt.Errorf("app: redis required for locking: %w", err)
		default:
			logger.Warn("redis unavailable, active-session cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	var locker lock.Locker = lock.NewKeyed()
	if cfg.Locking.Backend == config.LockRedis {
		locker = lock.NewRedisLease(a.redisClient, cfg.Locking.LeaseTTL, leasePoll, logger)
	}

	metrics.Register()
	hub := events.NewHub(eventBuffer, logger)
	reservationCache := service.NewReservationCache(cfg.Reservations.ListCacheTTL)

	observers := service.Observers{reservationCache, metrics.Observer{}, hub}
	var sessionCache service.SessionCache
	if a.redisClient != nil {
		active := redisstore.NewStore(a.redisClient, cfg.Redis.SessionTTL, logger)
		observers = append(observers, active)
		sessionCache = active
	}

	clk := clock.System()
	deps := service.Deps{
		Store:    store,
		Locker:   locker,
		Clock:    clk,
		Observer: observers,
		Retry: service.RetryPolicy{
			AcquireTimeout: cfg.Locking.AcquireTimeout,
			MaxRetries:     cfg.Locking.MaxRetries,
			Backoff:        cfg.Locking.RetryBackoff,
		},
		Logger: logger,
	}
	planner := service.NewPlanner(deps, reservationCache, cfg.Reservations.NearTermHorizon)
	machine := service.NewStateMachine(deps)
	queries := service.NewQueries(store, sessionCache, logger)

	stream := ws.NewServer(hub, wsWriteWindow, cfg.HTTP.WSPing, logger)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Chargers:     handlers.NewChargersHandlers(machine, planner, queries, stream, logger),
		Reservations: handlers.NewReservationsHandlers(planner, logger),
		Sessions:     handlers.NewSessionsHandlers(queries, clk, logger),
		Auth:         middleware.AuthMiddleware(auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)),
		RateRPS:      cfg.HTTP.RateRPS,
		RateBurst:    cfg.HTTP.RateBurst,
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger, stream.Shutdown)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store := memory.NewStore()
		if err := seed(ctx, store, cfg.Seed.Chargers); err != nil {
			return nil, err
		}
		a.logger.Info("using in-memory store", zap.Int("chargers", len(cfg.Seed.Chargers)))
		return store, nil
	default:
		sqlDB, err := db.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx, sqlDB); err != nil {
				return nil, err
			}
			a.logger.Info("database schema applied")
		}
		return repository.NewPostgresStore(sqlDB, cfg.Database.LockTimeout), nil
	}
}

func seed(ctx context.Context, store *memory.Store, chargers []config.SeedCharger) error {
	for i, sc := range chargers {
		id, err := uuid.Parse(sc.ID)
		if err != nil {
			return fmt.Errorf("app: seed charger %d id: %w", i, err)
		}
		stationID, err := uuid.Parse(sc.StationID)
		if err != nil {
			return fmt.Errorf("app: seed charger %d station id: %w", i, err)
		}
		c := models.Charger{
			ID:            id,
			StationID:     stationID,
			ConnectorType: sc.ConnectorType,
			Price:         sc.Price,
			ChargingSpeed: sc.ChargingSpeed,
			Status:        models.ChargerAvailable,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := store.Stores().Chargers.Create(ctx, &c); err != nil {
			return fmt.Errorf("app: seed charger %s: %w", id, err)
		}
	}
	return nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
