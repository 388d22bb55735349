package server

import (
	"context"
	"encoding/json"
	"net/http"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"

	"go.uber.org/zap"
)

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handleProximityStream registers the notification channels, then runs a
// proximity checker for the caller until the connection closes. Clients
// report their position with {"type":"location","data":{"lat":..,"lng":..}}
// and get every accepted position echoed back as a location frame.
func (s *Server) handleProximityStream(w http.ResponseWriter, r *http.Request) {
	userId := callerId(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("WebSocket upgrade failed", zap.String("user_id", userId), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.streamCtx)
	defer cancel()

	client := s.cfg.Hub.Serve(conn, userId, notify.TopicProximity, func(msg []byte) {
		s.handleClientMessage(ctx, userId, msg)
	})
	if err := client.Send(ctx, notify.MessageChannels, notify.DefaultChannels); err != nil {
		zap.L().Debug("Failed to send notification channels", zap.String("user_id", userId), zap.Error(err))
	}

	s.cfg.Service.RestoreLocation(ctx, userId)
	positions := s.cfg.Service.WatchLocation(ctx, userId)

	checker := s.cfg.Service.NewProximityChecker(userId, notify.Multi{client, s.cfg.Notifier})
	if err := checker.Start(ctx); err != nil {
		zap.L().Error("Failed to start proximity checker", zap.String("user_id", userId), zap.Error(err))
		return
	}
	defer checker.Stop()

	for {
		select {
		case <-client.Done():
			return
		case <-ctx.Done():
			return
		case point, ok := <-positions:
			if !ok {
				return
			}
			if err := client.Send(ctx, notify.MessageLocation, point); err != nil {
				zap.L().Debug("Failed to echo location", zap.String("user_id", userId), zap.Error(err))
			}
		}
	}
}

func (s *Server) handleClientMessage(ctx context.Context, userId string, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		zap.L().Debug("Ignoring malformed client frame", zap.String("user_id", userId), zap.Error(err))
		return
	}

	switch msg.Type {
	case notify.MessageLocation:
		var point models.GeoPoint
		if err := json.Unmarshal(msg.Data, &point); err != nil {
			zap.L().Debug("Ignoring malformed location", zap.String("user_id", userId), zap.Error(err))
			return
		}
		if _, err := s.cfg.Service.UpdateLocation(ctx, userId, point); err != nil {
			zap.L().Debug("Location update rejected", zap.String("user_id", userId), zap.Error(err))
		}
	default:
		zap.L().Debug("Ignoring client frame", zap.String("user_id", userId), zap.String("type", msg.Type))
	}
}

// handleLeaderboardStream pushes a fresh ranking on every points change
func (s *Server) handleLeaderboardStream(w http.ResponseWriter, r *http.Request) {
	userId := callerId(r)

	ctx, cancel := context.WithCancel(s.streamCtx)
	defer cancel()

	updates, err := s.cfg.Service.WatchLeaderboard(ctx, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("WebSocket upgrade failed", zap.String("user_id", userId), zap.Error(err))
		return
	}
	client := s.cfg.Hub.Serve(conn, userId, notify.TopicLeaderboard, nil)

	for {
		select {
		case <-client.Done():
			return
		case board, ok := <-updates:
			if !ok {
				return
			}
			if err := client.Send(ctx, notify.MessageLeaderboard, board); err != nil {
				zap.L().Debug("Leaderboard stream ended", zap.String("user_id", userId), zap.Error(err))
				return
			}
		}
	}
}
