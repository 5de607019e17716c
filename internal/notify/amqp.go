package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/streadway/amqp"
)

const DefaultExchange = "session_updates"

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events to a topic exchange with the routing key
// "session.<user id>", or "session.<run id>" for anonymous uploads. It keeps
// one channel open and replaces it after a failed publish.
type AMQPPublisher struct {
	conn        *amqp.Connection
	exchange    string
	openChannel func() (channel, error)

	mu sync.Mutex
	ch channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp url is required")
	}
	if exchange = strings.TrimSpace(exchange); exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		openChannel: func() (channel, error) {
			return conn.Channel()
		},
	}, nil
}

func (p *AMQPPublisher) Publish(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, err := p.openChannel()
		if err != nil {
			return fmt.Errorf("opening amqp channel: %w", err)
		}
		p.ch = ch
	}

	err = p.ch.Publish(p.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.Time,
		Body:        body,
	})
	if err != nil {
		// A failed publish may leave the channel closed by the broker.
		p.ch.Close()
		p.ch = nil
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func RoutingKey(event Event) string {
	id := event.UserID
	if id == "" {
		id = event.RunID
	}
	return fmt.Sprintf("session.%s", id)
}
