// Package bootstrap holds the fx providers shared by the binaries: logger,
// schema registry, graph backend selection, cache, events and the planners.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"

	"graphorm/src/graph"
	"graphorm/src/helper/env"
	"graphorm/src/infra/kafka"
	"graphorm/src/infra/memory"
	"graphorm/src/infra/neo4j"
	"graphorm/src/infra/postgres"
	"graphorm/src/infra/redis"
	"graphorm/src/query"
	"graphorm/src/repositories"
	"graphorm/src/schema"
	"graphorm/src/services/events"
	graphservice "graphorm/src/services/graph"
	"graphorm/src/validation"
	"graphorm/src/write"
)

// Module provides a *graphservice.GraphService and everything under it.
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		NewRegistry,
		NewStoreSession,
		NewGraphSession,
		NewCommitObservers,
		NewPlanner,
		NewWriter,
		graphservice.NewGraphService,
	),
)

// StoreSession is the backend session before any decoration.
type StoreSession struct {
	graph.Session
}

// Sessions carries the session used by planners plus the cache layer, when enabled.
type Sessions struct {
	Session graph.Session
	Cache   *repositories.CachedGraphSession
}

type Observers []write.CommitObserver

func NewLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func NewRegistry(logger *slog.Logger) (*schema.Registry, error) {
	path := env.GetString("SCHEMA_FILE", "config/schema.yaml")

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file %s: %w", path, err)
	}
	defer file.Close()

	registry, err := schema.LoadYAML(file)
	if err != nil {
		return nil, err
	}

	logger.Info("Schema loaded", "file", path, "kinds", registry.Kinds())
	return registry, nil
}

// NewStoreSession escolhe o backend por GRAPH_BACKEND (postgres, neo4j ou memory).
func NewStoreSession(lc fx.Lifecycle, logger *slog.Logger) (StoreSession, error) {
	backend := env.GetString("GRAPH_BACKEND", "postgres")

	switch backend {
	case "postgres":
		readWriteClient, err := newReadWriteClient()
		if err != nil {
			return StoreSession{}, err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := readWriteClient.Ping(ctx); err != nil {
					return err
				}
				if !env.GetBool("DB_ENSURE_SCHEMA", true) {
					return nil
				}
				return postgres.EnsureSchema(ctx, readWriteClient.GetWritePool())
			},
			OnStop: func(context.Context) error {
				readWriteClient.Close()
				return nil
			},
		})
		logger.Info("Graph backend selected", "backend", backend)
		return StoreSession{postgres.NewSession(readWriteClient)}, nil

	case "neo4j":
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		driver, err := neo4j.NewDriver(connectCtx,
			env.MustGetString("NEO4J_URI"),
			env.GetString("NEO4J_USER", "neo4j"),
			env.MustGetString("NEO4J_PASSWORD"),
		)
		if err != nil {
			return StoreSession{}, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return driver.Close(ctx)
			},
		})
		logger.Info("Graph backend selected", "backend", backend)
		return StoreSession{neo4j.NewSession(driver, env.GetString("NEO4J_DATABASE", ""))}, nil

	case "memory":
		logger.Warn("Graph backend is in-memory; data is lost on restart")
		return StoreSession{memory.NewSession()}, nil
	}

	return StoreSession{}, fmt.Errorf("unsupported GRAPH_BACKEND %q", backend)
}

func newReadWriteClient() (*postgres.ReadWriteClient, error) {
	dbReadHost := env.MustGetString("DB_READ_HOST")
	dbWriteHost := env.MustGetString("DB_WRITE_HOST")
	dbReadPort := env.GetString("DB_READ_PORT", "5432")
	dbWritePort := env.GetString("DB_WRITE_PORT", "5432")
	dbname := env.MustGetString("DB_NAME")
	dbUser := env.MustGetString("DB_USER")
	dbPassword := env.MustGetString("DB_PASSWORD")
	maxConnections := env.GetInt("DB_MAX_POOL_CONNECTIONS", 25)

	return postgres.NewReadWriteClient(dbReadHost, dbWriteHost, dbReadPort, dbWritePort, dbname, dbUser, dbPassword, maxConnections)
}

// NewGraphSession decora o store com o cache Redis quando REDIS_HOSTS está definido.
func NewGraphSession(lc fx.Lifecycle, logger *slog.Logger, store StoreSession) Sessions {
	redisHosts := env.GetString("REDIS_HOSTS", "")
	if redisHosts == "" {
		logger.Info("Query cache disabled")
		return Sessions{Session: store.Session}
	}

	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTL := env.GetDuration("REDIS_DEFAULT_TTL_SECONDS", 120*time.Second)

	redisClient := redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL).
		WithPrefix(env.GetString("REDIS_KEY_PREFIX", "graphorm:"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// cache fora do ar não impede o start: as leituras caem no store
			if err := redisClient.HealthCheck(ctx); err != nil {
				logger.Warn("Redis health check failed", "error", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return redisClient.Close()
		},
	})

	cached := repositories.NewCachedGraphSession(store.Session, redisClient)
	return Sessions{Session: cached, Cache: cached}
}

// NewCommitObservers junta invalidação de cache e publicação de eventos de domínio.
func NewCommitObservers(lc fx.Lifecycle, logger *slog.Logger, sessions Sessions) (Observers, error) {
	var observers Observers
	if sessions.Cache != nil {
		observers = append(observers, sessions.Cache)
	}

	brokers := env.GetString("KAFKA_BROKERS", "")
	topic := env.GetString("KAFKA_DOMAIN_EVENTS_TOPIC", "")
	if brokers == "" || topic == "" {
		logger.Info("Domain events disabled")
		return observers, nil
	}

	kafkaClient, err := kafka.NewKafkaProducer(brokers)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return kafkaClient.Close()
		},
	})

	return append(observers, events.NewDomainEventPublisher(logger, kafkaClient, topic)), nil
}

func NewPlanner(registry *schema.Registry, sessions Sessions, logger *slog.Logger) *query.Planner {
	return query.NewPlanner(registry, sessions.Session, logger)
}

func NewWriter(registry *schema.Registry, sessions Sessions, observers Observers, logger *slog.Logger) *write.Writer {
	return write.NewWriter(registry, sessions.Session, validation.RequiredFields{}, logger, observers...)
}
