package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"admin-console/internal/engine"
	"admin-console/internal/metadata"
)

// SessionMiddleware resolves the session cookie (or a bearer token) into a
// Session on the request. Requests without a valid session are rejected.
func SessionMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(SessionCookie)
		if tokenStr == "" {
			header := c.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			return engine.UnauthorizedError("missing session")
		}

		session, err := ParseSessionToken(tokenStr, secret)
		if err != nil {
			return engine.UnauthorizedError("invalid or expired session")
		}

		c.Locals("session", session)
		return c.Next()
	}
}

// GetSession extracts the Session from a Fiber context.
func GetSession(c *fiber.Ctx) *Session {
	session, _ := c.Locals("session").(*Session)
	return session
}

// RequirePermission gates resource routes on the session position's
// permission set: view for reads, edit for creates and updates, delete for
// deletes. Entities without a screen key are not gated.
func RequirePermission(reg *metadata.Registry, resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entity := reg.GetEntity(c.Params("entity"))
		if entity == nil || entity.ScreenKey == "" {
			return c.Next()
		}

		session := GetSession(c)
		if session == nil {
			return engine.UnauthorizedError("missing session")
		}

		perms, err := resolver.Resolve(session.PositionID)
		if err != nil {
			return err
		}

		permissionKey := PermissionView
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut:
			permissionKey = PermissionEdit
		case fiber.MethodDelete:
			permissionKey = PermissionDelete
		}

		if !perms.Has(entity.ScreenKey, permissionKey) {
			return engine.ForbiddenError("permission denied for " + entity.ScreenKey)
		}
		return c.Next()
	}
}
