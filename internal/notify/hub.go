package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mojgrad-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Topic groups connections by the stream they asked for
type Topic string

const (
	TopicProximity   Topic = "proximity"
	TopicLeaderboard Topic = "leaderboard"
)

// Message types pushed to clients
const (
	MessageChannels    = "channels"
	MessageProximity   = "proximity"
	MessageLeaderboard = "leaderboard"
	MessageLocation    = "location"
)

// ErrHubClosed is returned after the hub stopped running
var ErrHubClosed = errors.New("hub closed")

// Envelope is the JSON frame sent over every connection
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type outbound struct {
	topic     Topic
	userId    string
	client    *Client
	payload   []byte
	delivered chan int
}

// Hub tracks live WebSocket clients and routes messages to them.
type Hub struct {
	clients    map[*Client]bool
	outbound   chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// Client is a single WebSocket connection owned by the hub
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userId    string
	topic     Topic
	onMessage func([]byte)
	done      chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		outbound:   make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run routes messages until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			zap.L().Debug("WebSocket client connected",
				zap.String("user_id", client.userId),
				zap.String("topic", string(client.topic)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				zap.L().Debug("WebSocket client disconnected",
					zap.String("user_id", client.userId),
					zap.String("topic", string(client.topic)))
			}

		case msg := <-h.outbound:
			count := 0
			for client := range h.clients {
				if client.topic != msg.topic || (msg.userId != "" && client.userId != msg.userId) {
					continue
				}
				if msg.client != nil && client != msg.client {
					continue
				}
				select {
				case client.send <- msg.payload:
					count++
				default:
					close(client.send)
					delete(h.clients, client)
					zap.L().Warn("Dropping slow WebSocket client",
						zap.String("user_id", client.userId))
				}
			}
			if msg.delivered != nil {
				msg.delivered <- count
			}

		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Serve attaches an upgraded connection to the hub and starts its pumps.
// onMessage, if set, receives every frame the client sends.
func (h *Hub) Serve(conn *websocket.Conn, userId string, topic Topic, onMessage func([]byte)) *Client {
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		userId:    userId,
		topic:     topic,
		onMessage: onMessage,
		done:      make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		close(client.done)
		return client
	}

	go client.writePump()
	go client.readPump()
	return client
}

// Broadcast sends a frame to every client of topic and returns how many
// clients it was queued for.
func (h *Hub) Broadcast(ctx context.Context, topic Topic, msgType string, data any) (int, error) {
	return h.dispatch(ctx, outbound{topic: topic}, msgType, data)
}

// SendTo sends a frame to the clients of userId on topic
func (h *Hub) SendTo(ctx context.Context, topic Topic, userId, msgType string, data any) (int, error) {
	return h.dispatch(ctx, outbound{topic: topic, userId: userId}, msgType, data)
}

// Notify pushes a proximity notification to the user's open connections.
func (h *Hub) Notify(ctx context.Context, userId string, n models.ProximityNotification) error {
	count, err := h.SendTo(ctx, TopicProximity, userId, MessageProximity, n)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoRecipient
	}
	return nil
}

func (h *Hub) dispatch(ctx context.Context, msg outbound, msgType string, data any) (int, error) {
	payload, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s message: %w", msgType, err)
	}

	msg.payload = payload
	msg.delivered = make(chan int, 1)
	select {
	case h.outbound <- msg:
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case count := <-msg.delivered:
		return count, nil
	case <-h.done:
		return 0, ErrHubClosed
	}
}

// Send queues a frame for this connection only. ErrNoRecipient means the
// connection is already gone.
func (c *Client) Send(ctx context.Context, msgType string, data any) error {
	count, err := c.hub.dispatch(ctx, outbound{topic: c.topic, client: c}, msgType, data)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoRecipient
	}
	return nil
}

// Notify delivers a proximity notification to this connection only
func (c *Client) Notify(ctx context.Context, userId string, n models.ProximityNotification) error {
	if userId != c.userId {
		return ErrNoRecipient
	}
	return c.Send(ctx, MessageProximity, n)
}

// Done is closed once the connection ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) UserId() string {
	return c.userId
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Warn("WebSocket read error",
					zap.String("user_id", c.userId),
					zap.Error(err))
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
