// Package nats binds the Nvisy server to its message broker: JetStream
// key-value buckets (API tokens, sessions, chat history), the object store,
// and the durable work-queue streams that carry webhook deliveries and
// pipeline jobs.
package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/config"
)

var log = common.Component("nats")

// maxReconnectWait caps the exponential reconnect backoff.
const maxReconnectWait = 30 * time.Second

// Client is a clonable handle over a single multiplexed broker connection.
// Clones share the connection; reconnection is automatic with exponential
// backoff capped at 30 seconds.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials the broker and initialises the JetStream context.
func Connect(cfg config.NatsConfig) (*Client, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.CustomReconnectDelay(reconnectDelay),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("broker connection lost")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("broker reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream context: %w", err)
	}

	log.WithField("url", conn.ConnectedUrl()).Info("connected to broker")
	return &Client{conn: conn, js: js}, nil
}

// Close drains and closes the underlying connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		log.WithError(err).Warn("broker drain failed")
	}
}

// reconnectDelay doubles per attempt, capped at maxReconnectWait.
func reconnectDelay(attempts int) time.Duration {
	delay := time.Second
	for i := 0; i < attempts && delay < maxReconnectWait; i++ {
		delay *= 2
	}
	if delay > maxReconnectWait {
		delay = maxReconnectWait
	}
	return delay
}
