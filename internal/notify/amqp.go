package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpDialer opens a connection and a channel with the queue declared.
type amqpDialer func() (amqpChannel, io.Closer, error)

// AMQP publishes messages to a durable queue for an external messaging worker.
// A channel closed by the broker is re-dialed on the next send.
type AMQP struct {
	mu    sync.Mutex
	dial  amqpDialer
	conn  io.Closer
	ch    amqpChannel
	queue string
	cb    *gobreaker.CircuitBreaker
}

func DialAMQP(url, queue string, cb *gobreaker.CircuitBreaker) (*AMQP, error) {
	dial := func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		_, err = ch.QueueDeclare(
			queue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	}
	return newAMQP(dial, queue, cb)
}

func newAMQP(dial amqpDialer, queue string, cb *gobreaker.CircuitBreaker) (*AMQP, error) {
	a := &AMQP{dial: dial, queue: queue, cb: cb}
	if err := a.connect(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AMQP) connect() error {
	ch, conn, err := a.dial()
	if err != nil {
		return err
	}
	a.ch, a.conn = ch, conn
	return nil
}

func (a *AMQP) reset() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.ch, a.conn = nil, nil
}

func (a *AMQP) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}
	_, err = a.cb.Execute(func() (interface{}, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		return nil, a.publish(ctx, publishing)
	})
	return err
}

// publish sends once and, when the channel turns out closed, re-dials and
// sends once more.
func (a *AMQP) publish(ctx context.Context, p amqp.Publishing) error {
	if a.ch == nil {
		if err := a.connect(); err != nil {
			return err
		}
	}
	err := a.ch.PublishWithContext(ctx, "", a.queue, false, false, p)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	a.reset()
	if err := a.connect(); err != nil {
		return err
	}
	return a.ch.PublishWithContext(ctx, "", a.queue, false, false, p)
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			return err
		}
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
