package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

const (
	flushInterval = 2 * time.Second
	retryDelay    = 5 * time.Second

	batchRetryInitial = 500 * time.Millisecond
	batchRetryMax     = 30 * time.Second
)

type KafkaClient struct {
	consumer  sarama.ConsumerGroup
	producer  sarama.SyncProducer
	brokers   []string
	batchSize int
	logger    *slog.Logger
}

// Message é o envelope trocado com o broker. Headers carregam metadados como
// entity_type e correlation_id.
type Message struct {
	Key      string
	Value    []byte
	Headers  map[string]string
	internal *sarama.ConsumerMessage
}

// Handler recebe um lote; retornar erro deixa o lote sem commit de offset.
type Handler func(messages []Message) error

func newConfig(batchSize int) *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.ChannelBufferSize = batchSize * 2

	// nested writes podem levar alguns segundos por lote
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 10 * time.Second
	config.Consumer.MaxProcessingTime = 60 * time.Second
	config.Consumer.MaxWaitTime = 250 * time.Millisecond

	// eventos de domínio: ack de todas as réplicas, sem duplicar
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 200 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1 << 20

	return config
}

func splitBrokers(brokers string) []string {
	var list []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	return list
}

// NewKafkaClient cria consumer group e producer sobre os mesmos brokers.
func NewKafkaClient(brokers string, groupID string, batchSize int) (*KafkaClient, error) {
	brokerList := splitBrokers(brokers)
	config := newConfig(batchSize)

	consumer, err := sarama.NewConsumerGroup(brokerList, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: consumer group %s: %w", groupID, err)
	}

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("kafka: producer: %w", err)
	}

	return NewKafkaClientFrom(consumer, producer, brokerList, batchSize), nil
}

// NewKafkaProducer cria um cliente apenas para publicação.
func NewKafkaProducer(brokers string) (*KafkaClient, error) {
	brokerList := splitBrokers(brokers)

	producer, err := sarama.NewSyncProducer(brokerList, newConfig(1))
	if err != nil {
		return nil, fmt.Errorf("kafka: producer: %w", err)
	}

	return NewKafkaClientFrom(nil, producer, brokerList, 1), nil
}

func NewKafkaClientFrom(consumer sarama.ConsumerGroup, producer sarama.SyncProducer, brokers []string, batchSize int) *KafkaClient {
	return &KafkaClient{
		consumer:  consumer,
		producer:  producer,
		brokers:   brokers,
		batchSize: max(batchSize, 1),
		logger:    slog.Default().With("component", "kafka", "brokers", strings.Join(brokers, ",")),
	}
}

// Consumer bloqueia até ctx ser cancelado, reentrando no grupo após cada
// rebalance ou falha de sessão.
func (k *KafkaClient) Consumer(ctx context.Context, handler Handler, topic string) error {
	if k.consumer == nil {
		return errors.New("kafka: client has no consumer group")
	}

	claims := newBatchingHandler(handler, k.batchSize, k.logger.With("topic", topic))

	for ctx.Err() == nil {
		err := k.consumer.Consume(ctx, []string{topic}, claims)
		if err == nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
			continue
		}

		k.logger.Error("consume failed, rejoining", "topic", topic, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(retryDelay):
		}
	}

	k.logger.Info("consumer stopped", "topic", topic)
	return nil
}

// Producer publica o lote de forma síncrona. Falhas parciais são reportadas
// com o índice de cada mensagem recusada.
func (k *KafkaClient) Producer(messages []Message, topic string) error {
	if len(messages) == 0 {
		return nil
	}

	batch := make([]*sarama.ProducerMessage, len(messages))
	index := make(map[*sarama.ProducerMessage]int, len(messages))
	for i, msg := range messages {
		batch[i] = &sarama.ProducerMessage{
			Topic:   topic,
			Key:     sarama.StringEncoder(msg.Key),
			Value:   sarama.ByteEncoder(msg.Value),
			Headers: recordHeaders(msg.Headers),
		}
		index[batch[i]] = i
	}

	err := k.producer.SendMessages(batch)
	if err == nil {
		k.logger.Debug("batch published", "topic", topic, "count", len(batch))
		return nil
	}

	var produceErrs sarama.ProducerErrors
	if !errors.As(err, &produceErrs) {
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}

	failures := make([]error, 0, len(produceErrs))
	for _, pe := range produceErrs {
		failures = append(failures, fmt.Errorf("message %d: %w", index[pe.Msg], pe.Err))
	}
	k.logger.Error("batch partially published", "topic", topic, "failed", len(failures), "total", len(batch))
	return fmt.Errorf("kafka: publish to %s: %d/%d failed: %w", topic, len(failures), len(batch), errors.Join(failures...))
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	records := make([]sarama.RecordHeader, len(keys))
	for i, k := range keys {
		records[i] = sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])}
	}
	return records
}

func messageHeaders(records []*sarama.RecordHeader) map[string]string {
	headers := make(map[string]string, len(records))
	for _, h := range records {
		if h == nil {
			continue
		}
		headers[string(h.Key)] = string(h.Value)
	}
	return headers
}

func (k *KafkaClient) Close() error {
	var errs []error
	if k.consumer != nil {
		if err := k.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer: %w", err))
		}
	}
	if err := k.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("producer: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("kafka: close: %w", err)
	}
	return nil
}

// batchingHandler acumula mensagens por partição e entrega ao Handler quando
// o lote enche ou o flushInterval expira. Um lote recusado é reentregue até
// passar: o offset da partição é único, marcar um lote posterior pularia o
// recusado.
type batchingHandler struct {
	handler      Handler
	batchSize    int
	logger       *slog.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

func newBatchingHandler(handler Handler, batchSize int, logger *slog.Logger) *batchingHandler {
	return &batchingHandler{
		handler:      handler,
		batchSize:    max(batchSize, 1),
		logger:       logger,
		retryInitial: batchRetryInitial,
		retryMax:     batchRetryMax,
	}
}

func (h *batchingHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("session started", "member", session.MemberID(), "generation", session.GenerationID())
	return nil
}

func (h *batchingHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("session ended", "member", session.MemberID())
	return nil
}

func (h *batchingHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	pending := make([]Message, 0, h.batchSize)
	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		if !h.deliver(session, claim.Partition(), pending) {
			return false
		}
		pending = pending[:0]
		return true
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			pending = append(pending, Message{
				Key:      string(msg.Key),
				Value:    msg.Value,
				Headers:  messageHeaders(msg.Headers),
				internal: msg,
			})
			if len(pending) >= h.batchSize {
				if !flush() {
					return nil
				}
				ticker.Reset(flushInterval)
			}

		case <-ticker.C:
			if !flush() {
				return nil
			}

		case <-session.Context().Done():
			flush()
			return nil
		}
	}
}

// deliver repete o lote com backoff até o handler aceitar ou a sessão acabar.
// Só marca offsets quando o lote inteiro passou; false significa que a sessão
// terminou com o lote pendente e ele volta no próximo rebalance.
func (h *batchingHandler) deliver(session sarama.ConsumerGroupSession, partition int32, messages []Message) bool {
	backoff := h.retryInitial
	for attempt := 1; ; attempt++ {
		err := h.handler(messages)
		if err == nil {
			break
		}

		h.logger.Error("batch rejected, retrying",
			"partition", partition,
			"size", len(messages),
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		select {
		case <-session.Context().Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, h.retryMax)
	}

	for _, msg := range messages {
		if msg.internal != nil {
			session.MarkMessage(msg.internal, "")
		}
	}
	h.logger.Debug("batch handled", "partition", partition, "size", len(messages))
	return true
}
