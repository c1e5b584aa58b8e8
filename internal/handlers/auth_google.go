package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
	"github.com/Windi-Fikriyansyah/planmarket/internal/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthHandler signs customers in with Google. First-time users get
// a customer profile.
type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.SecureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if h.GoogleClientID == "" {
		return fail(c, fiber.StatusNotImplemented, "Google sign-in is not configured")
	}
	next := c.Query("next", "/")
	st := randomState(32)

	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", next, 10*60)

	return c.Redirect(h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return fail(c, fiber.StatusBadRequest, "missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" || !strings.HasPrefix(next, "/") {
		next = "/"
	}
	if stCookie == "" || stCookie != state {
		return fail(c, fiber.StatusBadRequest, "invalid state")
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "failed to exchange code")
	}

	resp, err := h.oauthCfg().Client(c.Context(), tok).Get(googleUserInfoURL)
	if err != nil {
		return fail(c, fiber.StatusBadGateway, "failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return fail(c, fiber.StatusBadGateway, "failed to decode userinfo")
	}
	email := strings.ToLower(strings.TrimSpace(gu.Email))
	if email == "" || !gu.VerifiedEmail {
		return fail(c, fiber.StatusBadRequest, "Google account has no verified email")
	}

	ctx := c.UserContext()
	u, err := h.Auth.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// never used for password sign-in
		hashed, herr := utils.HashPassword(randomState(24))
		if herr != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to process password")
		}
		u = &models.User{Email: email, Password: hashed, IsActive: true}
		p := &models.Profile{Role: models.RoleCustomer, FullName: strings.TrimSpace(gu.Name)}
		if err := h.Auth.Users.CreateWithProfile(ctx, u, p); err != nil {
			log.Errorf("[Auth] creating user via Google: %v", err)
			return storeFail(c, err, "user")
		}
	} else if err != nil {
		return storeFail(c, err, "user")
	}

	if !u.IsActive || u.Profile == nil {
		return c.Redirect(h.FrontendBaseURL+"/login?err="+url.QueryEscape("account unavailable"), http.StatusTemporaryRedirect)
	}

	if _, err := h.Auth.issue(c, u); err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to sign token")
	}

	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)

	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}
