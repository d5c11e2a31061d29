package kafka_test

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"graphorm/src/infra/kafka"
)

var _ = Describe("KafkaClient", func() {
	var (
		producer *mocks.SyncProducer
		client   *kafka.KafkaClient
	)

	BeforeEach(func() {
		producer = mocks.NewSyncProducer(GinkgoT(), nil)
		client = kafka.NewKafkaClientFrom(nil, producer, []string{"localhost:9092"}, 0)
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
	})

	It("publishes the batch in order with sorted headers", func() {
		// ARRANGE
		var sent []*sarama.ProducerMessage
		for range 2 {
			producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
				sent = append(sent, msg)
				return nil
			})
		}

		// ACT
		err := client.Producer([]kafka.Message{
			{Key: "a", Value: []byte(`{"kind":"User"}`), Headers: map[string]string{"z": "1", "entity_type": "User"}},
			{Key: "b", Value: []byte(`{"kind":"Post"}`)},
		}, "nested-writes")

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(sent).To(HaveLen(2))
		Expect(sent[0].Topic).To(Equal("nested-writes"))
		Expect(sent[0].Key).To(Equal(sarama.StringEncoder("a")))
		Expect(sent[0].Headers).To(Equal([]sarama.RecordHeader{
			{Key: []byte("entity_type"), Value: []byte("User")},
			{Key: []byte("z"), Value: []byte("1")},
		}))
		Expect(sent[1].Headers).To(BeEmpty())
	})

	It("does nothing for an empty batch", func() {
		Expect(client.Producer(nil, "nested-writes")).To(Succeed())
	})

	It("names the topic when the broker refuses the batch", func() {
		producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

		err := client.Producer([]kafka.Message{{Key: "a", Value: []byte("{}")}}, "nested-writes")

		Expect(err).To(MatchError(ContainSubstring("nested-writes")))
		Expect(errors.Is(err, sarama.ErrNotLeaderForPartition)).To(BeTrue())
	})

	It("refuses to consume without a consumer group", func() {
		err := client.Consumer(context.Background(), func([]kafka.Message) error { return nil }, "nested-writes")

		Expect(err).To(MatchError(ContainSubstring("no consumer group")))
	})
})
