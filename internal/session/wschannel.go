package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridvoice/cli/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// wsDialer resolves the host itself so a broken local resolver falls back to
// public DNS. TLS still verifies against the original hostname.
var wsDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 45 * time.Second,
	NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) == nil {
			if ip, err := dns.Lookup(host); err == nil {
				addr = net.JoinHostPort(ip, port)
			}
		}
		d := new(net.Dialer)
		return d.DialContext(ctx, network, addr)
	},
}

// WSDialer opens WebSocket channels.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, rawURL string) (DuplexChannel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := wsDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &wsChannel{
		conn:     conn,
		incoming: make(chan []byte, 8),
		outgoing: make(chan []byte, 8),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// wsChannel is a DuplexChannel over one WebSocket connection, with read and
// write pumps and ping/pong keepalive.
type wsChannel struct {
	conn     *websocket.Conn
	incoming chan []byte
	outgoing chan []byte
	done     chan struct{}

	closeOnce sync.Once
}

// readPump reads binary frames from the WebSocket connection. It owns the
// incoming channel and closes it when the connection ends.
func (c *wsChannel) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.incoming <- data
	}
}

// writePump writes outbound frames and sends periodic pings.
func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *wsChannel) Send(data []byte) error {
	select {
	case c.outgoing <- data:
		return nil
	case <-c.done:
		return ErrChannelNotReady
	}
}

func (c *wsChannel) Incoming() <-chan []byte {
	return c.incoming
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
