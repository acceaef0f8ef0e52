package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"ssiflow/config"
	"ssiflow/internal/model"
)

// Conn is the subset of the websocket connection the adapter needs. The
// production implementation is gorilla's *websocket.Conn; tests substitute a
// scripted fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer establishes the hub connection for one adapter.
type Dialer func(ctx context.Context, cfg config.DataServiceConfig) (Conn, error)

// subscription is the frame sent after connecting. The channel string packs
// the channel tag and the dash-joined key list, e.g. "X:VN30F2407-HPG".
type subscription struct {
	Operation string `json:"op"`
	Channel   string `json:"channel"`
}

func subscribeRequest(ch model.ChannelID, names []string) subscription {
	return subscription{
		Operation: "subscribe",
		Channel:   fmt.Sprintf("%s:%s", ch, strings.Join(names, "-")),
	}
}

// TradingDialer establishes the order notification hub connection for one
// account session.
type TradingDialer func(ctx context.Context, cfg config.TradingServiceConfig) (Conn, error)

// notifySubscription is the frame sent after connecting to the trading hub.
// LastNotifyID resumes delivery after the last event the owner acknowledged.
type notifySubscription struct {
	Operation    string `json:"op"`
	Account      string `json:"account"`
	LastNotifyID string `json:"lastNotifyId"`
}

// dialWebsocket connects to the market data hub streaming endpoint declared
// in the service configuration.
func dialWebsocket(ctx context.Context, cfg config.DataServiceConfig) (Conn, error) {
	endpoint, err := streamEndpoint(cfg.StreamURL)
	if err != nil {
		return nil, err
	}
	return dialEndpoint(ctx, endpoint)
}

// dialTradingWebsocket connects to the trading notification hub of one
// account session.
func dialTradingWebsocket(ctx context.Context, cfg config.TradingServiceConfig) (Conn, error) {
	endpoint, err := notifyEndpoint(cfg.StreamURL)
	if err != nil {
		return nil, err
	}
	return dialEndpoint(ctx, endpoint)
}

func dialEndpoint(ctx context.Context, endpoint string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// streamEndpoint converts the configured market data hub base URL to its
// websocket equivalent.
func streamEndpoint(base string) (string, error) {
	return hubEndpoint(base, "/v2.0/market-stream")
}

// notifyEndpoint converts the configured trading hub base URL to its
// websocket equivalent.
func notifyEndpoint(base string) (string, error) {
	return hubEndpoint(base, "/v2.0/trading-stream")
}

func hubEndpoint(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
