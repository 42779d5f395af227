package engine

import "github.com/gofiber/fiber/v2"

// RegisterResourceRoutes mounts the generic resource handlers under /api,
// behind whatever middleware the caller supplies (session, permissions).
func RegisterResourceRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api")
	for _, mw := range middleware {
		api.Use(mw)
	}

	api.Get("/:entity", h.Get)
	api.Post("/:entity", h.Create)
	api.Put("/:entity", h.Update)
	api.Delete("/:entity", h.Delete)
}
