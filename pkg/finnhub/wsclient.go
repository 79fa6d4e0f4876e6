package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SymbolSource supplies the symbols to subscribe to on every (re)connect.
type SymbolSource interface {
	GetAll() []string
}

type subscribeMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// WSClient handles the trade stream connection and message routing.
type WSClient struct {
	url            string
	conn           *websocket.Conn
	handler        func([]byte)
	symbols        SymbolSource
	reconnectDelay time.Duration
	logger         *zap.Logger
}

// NewWSClient creates a trade stream client. The token is appended to baseURL.
func NewWSClient(baseURL, token string, symbols SymbolSource, logger *zap.Logger) *WSClient {
	u := baseURL
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return &WSClient{
		url:            u,
		symbols:        symbols,
		reconnectDelay: 3 * time.Second,
		logger:         logger,
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect dials the stream and subscribes to every symbol from the source.
// It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.Error(err))
		return err
	}
	c.conn = conn
	c.logger.Info("WebSocket connected")

	return c.subscribe()
}

func (c *WSClient) subscribe() error {
	symbols := c.symbols.GetAll()
	for _, sym := range symbols {
		if err := c.conn.WriteJSON(subscribeMessage{Type: "subscribe", Symbol: sym}); err != nil {
			return fmt.Errorf("websocket subscribe %s failed: %w", sym, err)
		}
	}
	c.logger.Info("subscribed to trades", zap.Int("symbols", len(symbols)))
	return nil
}

// Listen reads frames until ctx is cancelled, reconnecting on read errors.
func (c *WSClient) Listen(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("WebSocket read error", zap.Error(err))

			// Retry reconnecting until cancelled
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.reconnectDelay):
				}
				if err := c.reconnectAndResubscribe(ctx); err != nil {
					c.logger.Warn("Retrying reconnect...", zap.Error(err))
					continue
				}
				c.logger.Info("Reconnected successfully")
				break
			}
			continue
		}

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

func (c *WSClient) reconnectAndResubscribe(ctx context.Context) error {
	newConn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = newConn

	// Symbols may have changed since the last connection
	return c.subscribe()
}

func (c *WSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
