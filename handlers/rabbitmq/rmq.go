package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chiliseed/build-worker/model"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes the outcome of every run on the response queue, so the
// scheduler that launched the worker does not have to scrape its logs.
type RabbitMQ struct {
	l                 *logrus.Logger
	Connection        *amqp.Connection
	Channel           Channel
	ResponseQueue     amqp.Queue
	uri               string
	responseQueueName string
}

func NewRabbitMQ(uri, responseQueue string, logger *logrus.Logger) *RabbitMQ {
	return &RabbitMQ{
		uri:               uri,
		l:                 logger,
		responseQueueName: responseQueue,
	}
}

func (r *RabbitMQ) Connect() error {
	r.l.Info("connecting to rabbitmq")
	var err error
	r.Connection, err = amqp.Dial(r.uri)
	if err != nil {
		return fmt.Errorf("ampq.Dial: %w", err)
	}

	ch, err := r.Connection.Channel()
	if err != nil {
		return fmt.Errorf("r.Connection.Channel: %w", err)
	}
	r.Channel = ch

	r.ResponseQueue, err = ch.QueueDeclare(
		r.responseQueueName, // name
		true,                // durable
		false,               // delete when unused
		false,               // exclusive
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return fmt.Errorf("r.Channel.QueueDeclare: %w", err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			return fmt.Errorf("r.Channel.Close: %w", err)
		}
	}

	if r.Connection != nil {
		if err := r.Connection.Close(); err != nil {
			return fmt.Errorf("r.Connection.Close: %w", err)
		}
	}

	return nil
}

func (r *RabbitMQ) SendResponse(_ context.Context, response model.BuildResponse) error {
	r.l.Info("sending response to rabbitmq")
	r.l.Debug(response)

	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("r.SendResponse.json.Marshal: %w", err)
	}

	if err := r.Channel.Publish(
		"",                  // exchange
		r.responseQueueName, // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: response.RunID,
			Body:          body,
		}); err != nil {
		return fmt.Errorf("r.SendResponse.Channel.Publish: %w", err)
	}

	r.l.Info("response sent to rabbitmq")
	return nil
}
