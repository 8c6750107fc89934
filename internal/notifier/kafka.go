// Package notifier publishes bed-management events to Kafka so downstream
// systems (dashboards, the hospital HIS) can follow state changes.
package notifier

import (
	"encoding/json"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaNotifier is fire-and-forget: publish failures are logged and dropped,
// never surfaced to the workflow that triggered the event.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaNotifier(brokers, topic string) (*KafkaNotifier, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, err
	}

	n := &KafkaNotifier{producer: producer, topic: topic}
	go n.drainDeliveryReports()
	return n, nil
}

func (n *KafkaNotifier) drainDeliveryReports() {
	for e := range n.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				log.Printf("Event delivery failed: %v", ev.TopicPartition.Error)
			}
		case kafka.Error:
			log.Printf("Kafka producer error: %v", ev)
		}
	}
}

// Notify publishes one event keyed by hospital so per-hospital ordering is
// preserved on the topic.
func (n *KafkaNotifier) Notify(hospitalID, event string, details map[string]interface{}) {
	payload := map[string]interface{}{
		"hospitalId": hospitalID,
		"event":      event,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"details":    details,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling event '%s' for hospital %s: %v", event, hospitalID, err)
		return
	}

	err = n.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &n.topic, Partition: kafka.PartitionAny},
		Key:            []byte(hospitalID),
		Value:          data,
	}, nil)
	if err != nil {
		log.Printf("Error publishing event '%s' for hospital %s: %v", event, hospitalID, err)
	}
}

func (n *KafkaNotifier) Close() {
	n.producer.Flush(3000)
	n.producer.Close()
}
