package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/planmarket/internal/middleware"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// Router holds every handler mounted by Register.
type Router struct {
	Auth      *AuthHandler
	Google    *GoogleOAuthHandler
	Profile   *ProfileHandler
	Plans     *PlanHandler
	Contracts *ContractHandler
	Chat      *ChatHandler
	Realtime  *RealtimeHandler
	JWTSecret string
}

func (r *Router) Register(app *fiber.App) {
	api := app.Group("/api")
	authed := func(roles ...models.Role) []fiber.Handler {
		return []fiber.Handler{middleware.JWT(r.JWTSecret), middleware.AttachJWTLocals(), middleware.RequireRoles(roles...)}
	}
	advisor := authed(models.RoleAdvisor)
	customer := authed(models.RoleCustomer)
	anyRole := authed(models.RoleAdvisor, models.RoleCustomer)

	// public
	api.Post("/auth/register", r.Auth.Register)
	api.Post("/auth/login", r.Auth.Login)
	api.Post("/auth/logout", r.Auth.Logout)
	api.Post("/auth/password/reset", r.Auth.RequestPasswordReset)
	api.Post("/auth/password/reset/confirm", r.Auth.ConfirmPasswordReset)
	api.Get("/auth/email/confirm", r.Auth.ConfirmEmailChange)
	if r.Google != nil {
		api.Get("/auth/google/start", r.Google.GoogleStart)
		api.Get("/auth/google/callback", r.Google.GoogleCallback)
	}
	api.Get("/plans", r.Plans.ListPublic)
	api.Get("/plans/segments", r.Plans.Segments)
	api.Get("/plans/:id", r.Plans.GetPublic)

	// any signed-in user
	api.Get("/auth/session", with(anyRole, r.Auth.Session)...)
	api.Patch("/auth/email", with(anyRole, r.Auth.RequestEmailChange)...)
	api.Get("/profile", with(anyRole, r.Profile.Get)...)
	api.Patch("/profile", with(anyRole, r.Profile.Update)...)
	api.Get("/contracts/:id/messages", with(anyRole, r.Chat.GetMessages)...)
	api.Post("/contracts/:id/messages", with(anyRole, r.Chat.SendMessage)...)

	// customer only
	api.Post("/contracts", with(customer, r.Contracts.Create)...)
	api.Get("/contracts/mine", with(customer, r.Contracts.ListMine)...)

	// advisor only
	adv := api.Group("/advisor", advisor...)
	adv.Get("/plans", r.Plans.ListAll)
	adv.Post("/plans/image", r.Plans.UploadImage)
	adv.Get("/plans/:id", r.Plans.GetAny)
	adv.Post("/plans", r.Plans.Create)
	adv.Put("/plans/:id", r.Plans.Update)
	adv.Delete("/plans/:id", r.Plans.Delete)
	adv.Get("/contracts", r.Contracts.ListAll)
	adv.Patch("/contracts/:id/status", r.Contracts.UpdateStatus)
	adv.Get("/conversations", r.Chat.GetConversations)

	// WebSocket endpoint, authenticated via query param
	app.Get("/ws/realtime", r.Realtime.Upgrade, r.Realtime.Serve())
}

func with(chain []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(chain)+1)
	return append(append(out, chain...), h)
}
