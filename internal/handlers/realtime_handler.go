package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/middleware"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/utils"
)

// RealtimeHandler serves the change feed and broadcast rooms over
// WebSocket. Browsers cannot set headers on the upgrade, so the token
// may come in ?token=. Without a token the connection is a guest.
type RealtimeHandler struct {
	Session   *realtime.Session
	JWTSecret string
	// Ctx bounds every connection; nil means context.Background.
	Ctx context.Context
}

func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	viewer := realtime.Viewer{Role: models.RoleGuest}
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = middleware.TokenFromRequest(c)
	}
	if tokenStr != "" {
		claims, err := utils.ParseJWT(h.JWTSecret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		uid, err := uuid.Parse(claims.UserID)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		viewer = realtime.Viewer{UserID: uid, Role: models.Role(claims.Role)}
	}

	c.Locals("viewer", viewer)
	return c.Next()
}

func (h *RealtimeHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		viewer, _ := conn.Locals("viewer").(realtime.Viewer)
		ctx := h.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		h.Session.Serve(ctx, conn, viewer)
	})
}
