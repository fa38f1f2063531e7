package console

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSDialer opens core NATS connections for live channels. Reconnection is
// deliberately disabled on the client: the channel's own loop must observe
// every disconnect so it can reload a snapshot before applying anything
// else, which the transport's transparent reconnect would skip.
type NATSDialer struct {
	url string
}

func NewNATSDialer(url string) *NATSDialer {
	return &NATSDialer{url: url}
}

func (d *NATSDialer) Dial(ctx context.Context) (Conn, error) {
	closed := make(chan struct{})

	conn, err := nats.Connect(d.url,
		nats.NoReconnect(),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &natsConn{conn: conn, closed: closed}, nil
}

type natsConn struct {
	conn   *nats.Conn
	closed chan struct{}
}

func (c *natsConn) Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *natsConn) Closed() <-chan struct{} {
	return c.closed
}

func (c *natsConn) Close() {
	c.conn.Close()
}
