package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
)

type ProfileHandler struct {
	Users repository.UserRepository
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	p, err := h.Users.GetProfile(c.UserContext(), uid)
	if err != nil {
		return storeFail(c, err, "profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

type profileUpdateReq struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Phone     *string `json:"phone" validate:"omitempty,min=8,max=30"`
	PushToken *string `json:"push_token" validate:"omitempty,max=255"`
}

// Update changes only the client-mutable columns; role is never accepted.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req profileUpdateReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	for _, s := range []*string{req.FullName, req.Phone, req.PushToken} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	p, err := h.Users.UpdateProfile(c.UserContext(), uid, models.ProfileUpdate{
		FullName:  req.FullName,
		Phone:     req.Phone,
		PushToken: req.PushToken,
	})
	if err != nil {
		return storeFail(c, err, "profile")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Profile updated", "data": p})
}
