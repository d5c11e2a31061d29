package main

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"graphorm/src/adapters/kafka/consumers"
	"graphorm/src/helper/bootstrap"
	"graphorm/src/helper/env"
	"graphorm/src/infra/kafka"
	"graphorm/src/services/graph"
)

func main() {
	fx.New(
		bootstrap.Module,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.StopTimeout(env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second)),

		fx.Provide(
			newKafkaClient,
			newNestedWriteConsumer,
		),
		fx.Invoke(startConsumer),
	).Run()
}

func newKafkaClient() (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	groupID := env.MustGetString("KAFKA_NESTED_WRITE_CONSUMER_GROUP_ID")
	batchSize := env.GetInt("KAFKA_BATCH_SIZE", 100)

	return kafka.NewKafkaClient(brokers, groupID, batchSize)
}

func newNestedWriteConsumer(
	logger *slog.Logger,
	graphService *graph.GraphService,
) *consumers.NestedWriteConsumer {
	return consumers.NewNestedWriteConsumer(logger, graphService).WithRetry(
		env.GetInt("NESTED_WRITE_MAX_ATTEMPTS", 3),
		env.GetDuration("NESTED_WRITE_RETRY_BACKOFF", 200*time.Millisecond),
	)
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	nestedWriteConsumer *consumers.NestedWriteConsumer,
) {
	// o contexto do OnStart expira junto com o start; o consumer precisa do seu próprio
	consumerCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topic := env.MustGetString("KAFKA_NESTED_WRITE_CONSUMER_TOPIC")
			logger.Info("Starting nested write consumer", "topic", topic)

			// Start consumer in background
			go func() {
				if err := nestedWriteConsumer.Start(consumerCtx, kafkaClient, topic); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			logger.Info("Shutting down Kafka client...")
			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
