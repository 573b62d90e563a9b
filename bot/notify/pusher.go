package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// pusher wire protocol, version 7. Event payloads arrive double-encoded:
// the Data field of the envelope is itself a JSON string.

const (
	eventConnEstablished = "pusher:connection_established"
	eventSubscribe       = "pusher:subscribe"
	eventSubSucceeded    = "pusher_internal:subscription_succeeded"
	eventPing            = "pusher:ping"
	eventPong            = "pusher:pong"
	eventError           = "pusher:error"

	handshakeTimeout = 15 * time.Second
	pingInterval     = 2 * time.Minute
	readDeadline     = 3 * time.Minute
)

type envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Event is one decoded message from a subscribed channel.
type Event struct {
	Name    string
	Channel string
	Data    json.RawMessage
}

// decodeData unwraps the double-encoded payload into raw JSON.
func decodeData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		return json.RawMessage(inner)
	}
	return raw
}

// Conn is a single websocket connection to the push service.
type Conn struct {
	ws       *websocket.Conn
	socketID string
}

// DialPusher connects to the push service and completes the handshake,
// returning a connection with an assigned socket id.
func DialPusher(ctx context.Context, key, cluster string) (*Conn, error) {
	url := fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=7&client=payoutbot&version=1.0", cluster, key)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("notify: dial push service: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var env envelope
	if err := ws.ReadJSON(&env); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("notify: read handshake: %w", err)
	}
	if env.Event != eventConnEstablished {
		_ = ws.Close()
		return nil, fmt.Errorf("notify: unexpected handshake event %q", env.Event)
	}

	var hello struct {
		SocketID string `json:"socket_id"`
	}
	if err := json.Unmarshal(decodeData(env.Data), &hello); err != nil || hello.SocketID == "" {
		_ = ws.Close()
		return nil, fmt.Errorf("notify: handshake missing socket id")
	}

	return &Conn{ws: ws, socketID: hello.SocketID}, nil
}

// SocketID returns the server-assigned socket id for channel authorization.
func (c *Conn) SocketID() string { return c.socketID }

// Subscribe joins a private channel using the authorization signature and
// waits for the subscription acknowledgement.
func (c *Conn) Subscribe(channel, auth string) error {
	sub := map[string]any{
		"event": eventSubscribe,
		"data": map[string]string{
			"channel": channel,
			"auth":    auth,
		},
	}
	if err := c.ws.WriteJSON(sub); err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", channel, err)
	}

	_ = c.ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return fmt.Errorf("notify: await subscription ack: %w", err)
		}
		switch env.Event {
		case eventSubSucceeded:
			return nil
		case eventError:
			return fmt.Errorf("notify: subscription rejected: %s", string(env.Data))
		}
		// Ignore unrelated events until the ack arrives.
	}
}

// Next blocks until the next channel event, transparently answering pings.
func (c *Conn) Next() (*Event, error) {
	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return nil, fmt.Errorf("notify: read event: %w", err)
		}
		switch env.Event {
		case eventPing:
			if err := c.ws.WriteJSON(envelope{Event: eventPong}); err != nil {
				return nil, fmt.Errorf("notify: answer ping: %w", err)
			}
		case eventPong, eventSubSucceeded:
			// Keepalive traffic, nothing to deliver.
		default:
			return &Event{
				Name:    env.Event,
				Channel: env.Channel,
				Data:    decodeData(env.Data),
			}, nil
		}
	}
}

// Ping sends a keepalive frame.
func (c *Conn) Ping() error {
	return c.ws.WriteJSON(envelope{Event: eventPing})
}

// Close shuts the websocket down.
func (c *Conn) Close() error {
	return c.ws.Close()
}
