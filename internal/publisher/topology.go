package publisher

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology shared by the API publisher and the worker consumer.
// Both sides declare it so either can start first.
const (
	ExchangeName = "qsweep.direct"
	RoutingKey   = "sweep"
	QueueName    = "sweep_tasks"

	DeadLetterExchange = "qsweep.dlx"
	DeadLetterQueue    = "sweep_tasks.dlq"
)

// QueueArgs are the arguments of the main sweep queue. Declaring the queue
// with different arguments fails with PRECONDITION_FAILED.
func QueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-type":           "quorum",
		"x-dead-letter-exchange": DeadLetterExchange,
	}
}

// DeclareTopology declares the exchanges, the sweep queue and its dead letter queue.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, QueueArgs()); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
