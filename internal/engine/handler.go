package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"admin-console/internal/metadata"
	"admin-console/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

// Get handles GET /api/:entity. With ?id= it returns a single record,
// otherwise the whole collection filtered by the remaining query params.
func (h *Handler) Get(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	params, err := ParseQueryParams(c)
	if err != nil {
		return err
	}

	if params.HasID {
		rec, err := h.store.GetByID(entity.Table, params.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFoundError(entity.Name, params.ID)
			}
			return fmt.Errorf("get %s/%d: %w", entity.Name, params.ID, err)
		}
		if err := LoadIncludes(h.store, entity, []store.Record{rec}, params.Includes); err != nil {
			return fmt.Errorf("load includes: %w", err)
		}
		return c.JSON(rec)
	}

	records, err := h.store.GetAll(entity.Table, params.Where)
	if err != nil {
		return fmt.Errorf("list %s: %w", entity.Name, err)
	}
	if err := LoadIncludes(h.store, entity, records, params.Includes); err != nil {
		return fmt.Errorf("load includes: %w", err)
	}

	// Ensure non-nil slice for JSON
	if records == nil {
		records = []store.Record{}
	}
	return c.JSON(records)
}

// Create handles POST /api/:entity.
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, err := h.resolveWritableEntity(c)
	if err != nil {
		return err
	}

	var body store.Record
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "invalid JSON body")
	}
	delete(body, "id")

	if appErr := ValidateWrite(entity, body, true); appErr != nil {
		return appErr
	}
	ApplyCreateDefaults(entity, body)

	rec, err := h.store.Create(entity.Table, body)
	if err != nil {
		return fmt.Errorf("create %s: %w", entity.Name, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// Update handles PUT /api/:entity. The body carries the id plus the fields
// to merge over the existing record.
func (h *Handler) Update(c *fiber.Ctx) error {
	entity, err := h.resolveWritableEntity(c)
	if err != nil {
		return err
	}

	var body store.Record
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "invalid JSON body")
	}

	idVal, ok := body["id"]
	if !ok || !store.IsNumber(idVal) {
		return ValidationError("id is required")
	}
	id := store.ToInt(idVal)
	delete(body, "id")

	if appErr := ValidateWrite(entity, body, false); appErr != nil {
		return appErr
	}

	rec, err := h.store.Update(entity.Table, id, body)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(entity.Name, id)
		}
		return fmt.Errorf("update %s/%d: %w", entity.Name, id, err)
	}
	return c.JSON(rec)
}

// Delete handles DELETE /api/:entity?id=. Referenced records cannot be
// deleted; the referencing table's file is left untouched either way.
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveWritableEntity(c)
	if err != nil {
		return err
	}

	params, err := ParseQueryParams(c)
	if err != nil {
		return err
	}
	if !params.HasID {
		return ValidationError("id is required")
	}

	for _, r := range entity.Restrictions {
		referenced, err := h.store.IsReferenced(r.Table, r.Field, params.ID)
		if err != nil {
			return fmt.Errorf("reference check %s.%s: %w", r.Table, r.Field, err)
		}
		if referenced {
			return ReferencedError(r.Message)
		}
	}

	if err := h.store.Delete(entity.Table, params.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(entity.Name, params.ID)
		}
		return fmt.Errorf("delete %s/%d: %w", entity.Name, params.ID, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func (h *Handler) resolveWritableEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return nil, err
	}
	if entity.ReadOnly {
		return nil, ReadOnlyError(entity.Name)
	}
	return entity, nil
}

// ErrorHandler is the central Fiber error handler: AppErrors keep their
// status and message, anything else becomes an opaque 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr.Message})
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(ErrorResponse{Error: "internal server error"})
}
