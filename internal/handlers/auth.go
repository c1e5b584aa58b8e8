package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/middleware"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/authtoken"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/mail"
	"github.com/Windi-Fikriyansyah/planmarket/internal/utils"
)

type AuthHandler struct {
	Users     repository.UserRepository
	Tokens    authtoken.Store
	Mailer    mail.Mailer
	JWTSecret string
	Expires   int
	// FrontendBaseURL prefixes the links sent by mail.
	FrontendBaseURL string
	SecureCookie    bool
}

type RegisterReq struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=30"`
}

// sessionData is the body returned by register, login and session.
func sessionData(token string, u *models.User) fiber.Map {
	return fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    u.ID,
			"email": u.Email,
		},
		"profile": u.Profile,
	}
}

func (h *AuthHandler) setTokenCookie(c *fiber.Ctx, token string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *AuthHandler) issue(c *fiber.Ctx, u *models.User) (string, error) {
	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Profile.Role), h.Expires)
	if err != nil {
		return "", err
	}
	h.setTokenCookie(c, token, h.Expires*60)
	return token, nil
}

// Register signs up a customer. The profile row is created in the same
// transaction as the identity.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to process password")
	}

	u := &models.User{Email: req.Email, Password: pw, IsActive: true}
	p := &models.Profile{Role: models.RoleCustomer, FullName: req.FullName, Phone: req.Phone}
	if err := h.Users.CreateWithProfile(c.UserContext(), u, p); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			errs := FieldErrors{}
			errs.Add("email", "is already registered")
			return validationFail(c, errs)
		}
		return storeFail(c, err, "user")
	}

	token, err := h.issue(c, u)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to sign token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registered",
		"data":    sessionData(token, u),
	})
}

type LoginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	u, err := h.Users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusUnauthorized, "invalid email or password")
		}
		return storeFail(c, err, "user")
	}
	if !utils.CheckPassword(u.Password, req.Password) {
		return fail(c, fiber.StatusUnauthorized, "invalid email or password")
	}
	if !u.IsActive {
		return fail(c, fiber.StatusForbidden, "account is disabled")
	}
	if u.Profile == nil {
		return fail(c, fiber.StatusUnauthorized, "profile not found")
	}

	token, err := h.issue(c, u)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to sign token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Signed in",
		"data":    sessionData(token, u),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.setTokenCookie(c, "", -1)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Signed out",
	})
}

// Session returns the caller's identity and profile. A token whose
// profile is gone is rejected so the client signs out.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	u, err := h.Users.GetByID(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusUnauthorized, "session no longer valid")
		}
		return storeFail(c, err, "user")
	}
	if u.Profile == nil || !u.IsActive {
		return fail(c, fiber.StatusUnauthorized, "session no longer valid")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sessionData(middleware.TokenFromRequest(c), u),
	})
}

type resetReq struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestPasswordReset always answers the same way so it cannot be used
// to find out which emails are registered.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req resetReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	sent := func() error {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "If the email is registered, a reset link has been sent",
		})
	}

	u, err := h.Users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Errorf("[Auth] reset lookup: %v", err)
		}
		return sent()
	}

	token, err := h.Tokens.Issue(c.UserContext(), authtoken.PasswordReset, u.ID.String())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	link := h.FrontendBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := h.Mailer.Send(c.UserContext(), u.Email, "Reset your password",
		`<p>Use the link below to choose a new password.</p><p><a href="`+link+`">Reset password</a></p>`); err != nil {
		return fail(c, fiber.StatusBadGateway, "failed to send mail")
	}
	return sent()
}

type resetConfirmReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req resetConfirmReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	subject, err := h.Tokens.Consume(c.UserContext(), authtoken.PasswordReset, req.Token)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, authtoken.ErrInvalidToken.Error())
	}
	uid, err := uuid.Parse(subject)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, authtoken.ErrInvalidToken.Error())
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to process password")
	}
	if err := h.Users.UpdatePassword(c.UserContext(), uid, pw); err != nil {
		return storeFail(c, err, "user")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated",
	})
}

type emailChangeReq struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestEmailChange stores the new address as pending and mails a
// confirmation link to it.
func (h *AuthHandler) RequestEmailChange(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req emailChangeReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	if other, err := h.Users.GetByEmail(c.UserContext(), req.Email); err == nil && other.ID != uid {
		errs := FieldErrors{}
		errs.Add("email", "is already registered")
		return validationFail(c, errs)
	}

	if err := h.Users.SetPendingEmail(c.UserContext(), uid, req.Email); err != nil {
		return storeFail(c, err, "user")
	}
	token, err := h.Tokens.Issue(c.UserContext(), authtoken.EmailChange, uid.String()+"|"+req.Email)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	link := h.FrontendBaseURL + "/confirm-email?token=" + url.QueryEscape(token)
	if err := h.Mailer.Send(c.UserContext(), req.Email, "Confirm your new email",
		`<p>Confirm your new email address.</p><p><a href="`+link+`">Confirm email</a></p>`); err != nil {
		return fail(c, fiber.StatusBadGateway, "failed to send mail")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Confirmation sent to the new email",
	})
}

func (h *AuthHandler) ConfirmEmailChange(c *fiber.Ctx) error {
	subject, err := h.Tokens.Consume(c.UserContext(), authtoken.EmailChange, c.Query("token"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, authtoken.ErrInvalidToken.Error())
	}
	rawID, email, ok := strings.Cut(subject, "|")
	uid, perr := uuid.Parse(rawID)
	if !ok || perr != nil {
		return fail(c, fiber.StatusBadRequest, authtoken.ErrInvalidToken.Error())
	}

	if err := h.Users.ConfirmEmail(c.UserContext(), uid, email); err != nil {
		return storeFail(c, err, "pending email change")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email updated",
	})
}
