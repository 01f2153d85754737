package queue

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	BatchQueue    = "batch_queue"
	EventExchange = "dishgraph_events"
	// TopicBatchFinished carries the JSON batch report of every run.
	TopicBatchFinished = "batch.finished"

	retryDelayMs = 10000
)

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares every work queue together with its dead-letter queue
// and a retry queue that routes messages back after a delay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		EventExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", EventExchange, err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}

		dlqName := DeadLetterQueue(name)
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dlqName, err)
		}

		retryName := RetryQueue(name)
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

func DeadLetterQueue(name string) string {
	return name + "_dlq"
}

func RetryQueue(name string) string {
	return name + "_retry"
}

// Publisher is the part of an AMQP channel used for publishing.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	return publish(ch, "", queueName, data, nil)
}

func PublishTopic(ch Publisher, topic string, data []byte) error {
	return publish(ch, EventExchange, topic, data, nil)
}

func publish(ch Publisher, exchange, key string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.Publish(exchange, key, false, false, publishing)
}

// HandleProcessingError moves a failed delivery to the retry queue or, once
// maxRetries is reached or the message can never succeed, to the
// dead-letter queue. The delivery is acked after the republish succeeded.
func HandleProcessingError(ch Publisher, msg amqp091.Delivery, queueName string, maxRetries int, cause error) {
	retries := retryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if cause != nil {
		headers["x-last-error"] = cause.Error()
	}

	target := RetryQueue(queueName)
	if retries >= maxRetries || IsPermanent(cause) {
		target = DeadLetterQueue(queueName)
		logger.Info("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	if err := publish(ch, "", target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
