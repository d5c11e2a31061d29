// Command seed publishes random nested writes to the nested write topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"

	"graphorm/src/domain"
	"graphorm/src/infra/kafka"
)

// generatePost cria um Post com fotos, vídeos e comentários aleatórios.
func generatePost() domain.CreateGraphRequest {
	request := domain.CreateGraphRequest{
		Kind:       "Post",
		Attributes: map[string]any{"title": faker.Sentence(), "body": faker.Paragraph()},
	}

	photos := make([]domain.RelatedEntityDTO, rand.Intn(4))
	for i := range photos {
		photos[i] = domain.RelatedEntityDTO{Attributes: map[string]any{"url": faker.URL(), "caption": faker.Word()}}
	}
	comments := make([]domain.RelatedEntityDTO, rand.Intn(11))
	for i := range comments {
		comments[i] = domain.RelatedEntityDTO{Attributes: map[string]any{"text": faker.Sentence()}}
	}

	request.Relations = []domain.RelationWriteDTO{
		{Relation: "photos", Entities: photos},
		{Relation: "comments", Entities: comments},
	}
	if rand.Float32() < 0.3 {
		request.Relations = append(request.Relations, domain.RelationWriteDTO{
			Relation: "videos",
			Entities: []domain.RelatedEntityDTO{{Attributes: map[string]any{"title": faker.Sentence(), "stream_url": faker.URL()}}},
		})
	}
	return request
}

// generateUser cria um User com conta e papéis.
func generateUser() domain.CreateGraphRequest {
	aliases := []string{"admin", "editor", "manager", "viewer"}

	roles := make([]domain.RelatedEntityDTO, 1+rand.Intn(2))
	for i := range roles {
		roles[i] = domain.RelatedEntityDTO{Attributes: map[string]any{"alias": aliases[rand.Intn(len(aliases))]}}
	}

	return domain.CreateGraphRequest{
		Kind:       "User",
		Attributes: map[string]any{"name": faker.Name()},
		Relations: []domain.RelationWriteDTO{
			{Relation: "account", Entities: []domain.RelatedEntityDTO{{Attributes: map[string]any{"guid": faker.UUIDHyphenated()}}}},
			{Relation: "roles", Entities: roles},
		},
	}
}

func generateBatch(size int) []kafka.Message {
	messages := make([]kafka.Message, 0, size)
	for range size {
		request := generatePost()
		if rand.Intn(2) == 0 {
			request = generateUser()
		}

		value, err := json.Marshal(request)
		if err != nil {
			log.Printf("Failed to marshal request: %v", err)
			continue
		}
		messages = append(messages, kafka.Message{
			Key:     faker.UUIDHyphenated(),
			Value:   value,
			Headers: map[string]string{"entity_type": request.Kind},
		})
	}
	return messages
}

func main() {
	// Command line flags
	totalMessages := flag.Int("count", 1000, "Total number of messages to generate. Use -1 for infinite.")
	batchSize := flag.Int("batch-size", 100, "Number of messages per batch")
	topic := flag.String("topic", "", "Kafka topic to send messages to (required)")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated) (required)")
	delayMs := flag.Int("delay-ms", 100, "Delay in milliseconds between batches")
	flag.Parse()

	// Validate required flags
	if *topic == "" {
		log.Fatal("The 'topic' flag is required")
	}
	if *brokers == "" {
		log.Fatal("The 'brokers' flag is required")
	}

	kafkaClient, err := kafka.NewKafkaProducer(*brokers)
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}
	defer kafkaClient.Close()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	isInfinite := *totalMessages == -1
	messagesSent := 0
	startTime := time.Now()

	for isInfinite || messagesSent < *totalMessages {
		select {
		case <-ctx.Done():
			log.Println("Shutdown requested, stopping message generation")
			return
		default:
		}

		currentBatchSize := *batchSize
		if !isInfinite {
			currentBatchSize = min(currentBatchSize, *totalMessages-messagesSent)
		}

		if err := kafkaClient.Producer(generateBatch(currentBatchSize), *topic); err != nil {
			log.Printf("Failed to send batch: %v", err)
		} else {
			messagesSent += currentBatchSize
		}

		time.Sleep(time.Duration(*delayMs) * time.Millisecond)
	}

	log.Printf("Sent %d nested writes in %v", messagesSent, time.Since(startTime))
}
