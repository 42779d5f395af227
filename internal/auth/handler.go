package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"admin-console/internal/engine"
	"admin-console/internal/store"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

// AuthHandler handles the session lifecycle endpoints.
type AuthHandler struct {
	store      *store.Store
	jwtSecret  string
	sessionTTL time.Duration
}

func NewAuthHandler(s *store.Store, jwtSecret string, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

// Login handles POST /api/auth/login. On success it sets the session cookie
// and returns the user record (without the password) plus the token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("email and password are required")
	}

	user, err := h.findUserByEmail(body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.UnauthorizedError("invalid email or password")
		}
		return fmt.Errorf("find user: %w", err)
	}

	password, _ := user["password"].(string)
	if !CheckPassword(strings.TrimSpace(body.Password), password) {
		return engine.UnauthorizedError("invalid email or password")
	}

	userID := store.ToInt(user["id"])
	positionID := store.ToInt(user["position_id"])

	token, err := GenerateSessionToken(userID, positionID, h.jwtSecret, h.sessionTTL)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "failed to create session")
	}

	c.Cookie(&fiber.Cookie{
		Name:    SessionCookie,
		Value:   token,
		Path:    "/",
		Expires: time.Now().Add(h.sessionTTL),
	})

	return c.JSON(fiber.Map{
		"user":  sanitizeUser(user),
		"token": token,
	})
}

// Logout handles POST /api/auth/logout: the cookie is cleared and the
// session ends. Tokens are stateless, so there is nothing to revoke.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:    SessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-time.Hour),
	})
	return c.JSON(fiber.Map{"message": "logged out"})
}

// Me handles GET /api/auth/me, returning the session's user record.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session := GetSession(c)
	if session == nil {
		return engine.UnauthorizedError("not authenticated")
	}
	user, err := h.store.GetByID("users", session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.UnauthorizedError("unknown session user")
		}
		return fmt.Errorf("load session user: %w", err)
	}
	return c.JSON(sanitizeUser(user))
}

// RegisterAuthRoutes mounts the session endpoints. Login stays outside the
// session middleware; me sits behind it.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler, sessionMW fiber.Handler) {
	grp := app.Group("/api/auth")
	grp.Post("/login", h.Login)
	grp.Post("/logout", h.Logout)
	grp.Get("/me", sessionMW, h.Me)
}

func (h *AuthHandler) findUserByEmail(email string) (store.Record, error) {
	users, err := h.store.Read("users")
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(email))
	for _, u := range users {
		if have, _ := u["email"].(string); strings.ToLower(have) == want {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func sanitizeUser(user store.Record) store.Record {
	out := store.Record{}
	for k, v := range user {
		if k == "password" {
			continue
		}
		out[k] = v
	}
	return out
}
