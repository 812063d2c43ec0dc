package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/subsentry/dashboard-service/internal/query"
)

type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL string, logger *slog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, logger: logger}, nil
}

// ConsumeWithBindings binds an exclusive, auto-deleted queue so each replica receives every event.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, false, true, true, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]func([]byte) bool)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler, ok := handlers[d.RoutingKey]
			if !ok {
				c.logger.Warn("no handler for routing key; dropping", "routing_key", d.RoutingKey)
				d.Ack(false)
				continue
			}
			if handler(d.Body) {
				d.Ack(false)
			} else {
				// Undecodable events are dropped; a redelivery would fail the same way.
				d.Nack(false, false)
			}
		}
	}()

	return nil
}

// RegistryBindings builds one binding per topic that hands events to registry.Deliver.
func RegistryBindings(registry *query.Registry, logger *slog.Logger) map[string]func([]byte) bool {
	bindings := make(map[string]func([]byte) bool, len(query.Topics))
	for _, topic := range query.Topics {
		bindings[string(topic)] = deliverTo(registry, logger)
	}
	return bindings
}

func deliverTo(registry *query.Registry, logger *slog.Logger) func([]byte) bool {
	return func(body []byte) bool {
		var ev query.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			logger.Error("failed to decode relayed event", "error", err)
			return false
		}
		if ev.UserID == "" {
			logger.Warn("relayed event has no user id", "event_id", ev.ID)
			return false
		}
		if registry.Deliver(context.Background(), ev) {
			logger.Debug("delivered relayed event", "topic", ev.Topic, "origin", ev.Origin)
		}
		return true
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
