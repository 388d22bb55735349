package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mojgrad-go/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, r.URL.Query().Get("user"), Topic(r.URL.Query().Get("topic")), nil)
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user string, topic Topic) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + user + "&topic=" + string(topic)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame.Type, frame.Data
}

func TestHub_NotifyTargetsUser(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice", TopicProximity)
	dial(t, srv, "bob", TopicProximity)

	n := models.ProximityNotification{ProblemId: "p1", Title: "Problem u blizini!"}
	require.Eventually(t, func() bool {
		return hub.Notify(context.Background(), "alice", n) == nil
	}, 2*time.Second, 10*time.Millisecond)

	msgType, data := readEnvelope(t, alice)
	assert.Equal(t, MessageProximity, msgType)

	var got models.ProximityNotification
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "p1", got.ProblemId)

	err := hub.Notify(context.Background(), "carol", n)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestHub_BroadcastByTopic(t *testing.T) {
	hub, srv := startHub(t)
	board := dial(t, srv, "alice", TopicLeaderboard)
	dial(t, srv, "bob", TopicProximity)

	require.Eventually(t, func() bool {
		count, err := hub.Broadcast(context.Background(), TopicLeaderboard, MessageLeaderboard, map[string]string{"month": "2025-03"})
		return err == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)

	msgType, data := readEnvelope(t, board)
	assert.Equal(t, MessageLeaderboard, msgType)
	assert.JSONEq(t, `{"month":"2025-03"}`, string(data))
}

func TestHub_ClosedHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := hub.Broadcast(context.Background(), TopicLeaderboard, MessageLeaderboard, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestMulti(t *testing.T) {
	ok := NotifierFunc(func(context.Context, string, models.ProximityNotification) error { return nil })
	failing := NotifierFunc(func(context.Context, string, models.ProximityNotification) error { return errors.New("down") })

	assert.NoError(t, Multi{failing, ok}.Notify(context.Background(), "u1", models.ProximityNotification{}))
	assert.Error(t, Multi{failing, failing}.Notify(context.Background(), "u1", models.ProximityNotification{}))
	assert.ErrorIs(t, Multi{}.Notify(context.Background(), "u1", models.ProximityNotification{}), ErrNoRecipient)
}

func TestDefaultChannels(t *testing.T) {
	require.Len(t, DefaultChannels, 2)
	assert.Equal(t, models.PriorityLow, DefaultChannels[0].Importance)
	assert.Equal(t, ProximityChannelId, DefaultChannels[1].Id)
	assert.Equal(t, models.PriorityHigh, DefaultChannels[1].Importance)
}

func TestClient_SendTargetsConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	clients := make(chan *Client, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- hub.Serve(conn, "alice", TopicLeaderboard, nil)
	}))
	defer srv.Close()

	first := dial(t, srv, "alice", TopicLeaderboard)
	firstClient := <-clients
	second := dial(t, srv, "alice", TopicLeaderboard)
	<-clients

	require.NoError(t, firstClient.Send(ctx, MessageLeaderboard, map[string]string{"month": "2025-03"}))
	msgType, _ := readEnvelope(t, first)
	assert.Equal(t, MessageLeaderboard, msgType)

	require.NoError(t, second.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := second.ReadMessage()
	assert.Error(t, err, "other connections of the same user get nothing")

	first.Close()
	<-firstClient.Done()
	assert.ErrorIs(t, firstClient.Send(ctx, MessageLeaderboard, nil), ErrNoRecipient)
}

func TestClient_NotifyReachesOnlyItsConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	clients := make(chan *Client, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- hub.Serve(conn, "alice", TopicProximity, nil)
	}))
	defer srv.Close()

	phone := dial(t, srv, "alice", TopicProximity)
	phoneClient := <-clients
	tablet := dial(t, srv, "alice", TopicProximity)
	<-clients

	var notifier Notifier = phoneClient
	n := models.ProximityNotification{ProblemId: "p1"}
	require.NoError(t, notifier.Notify(ctx, "alice", n))

	msgType, data := readEnvelope(t, phone)
	assert.Equal(t, MessageProximity, msgType)
	assert.Contains(t, string(data), `"p1"`)

	require.NoError(t, tablet.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := tablet.ReadMessage()
	assert.Error(t, err, "the user's other connection gets nothing")

	assert.ErrorIs(t, notifier.Notify(ctx, "bob", n), ErrNoRecipient)
}
