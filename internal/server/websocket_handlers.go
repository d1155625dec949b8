package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"bizdir/internal/middleware"
	"bizdir/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
// Admins additionally receive submission events for the review queue.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			_ = conn.Close()
			return
		}
		isAdmin, _ := conn.Locals("isAdmin").(bool)

		client, err := s.hub.Register(uid, isAdmin, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration failed",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		isAdmin, err := s.isAdmin(c.UserContext(), currentUserID(c))
		if err != nil {
			return respondError(c, err)
		}
		c.Locals("isAdmin", isAdmin)
		return upgrade(c)
	}
}

func (s *Server) isAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, models.NewUnauthorizedError("Account no longer exists")
		}
		return false, err
	}
	return user.IsAdmin(), nil
}
