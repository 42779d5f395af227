package engine

import (
	"fmt"
	"math/rand"

	"admin-console/internal/metadata"
	"admin-console/internal/store"
)

// ValidateWrite checks a create/update payload against the entity definition
// and normalizes field shapes before the store write. Returns an AppError on
// the first violation.
func ValidateWrite(entity *metadata.Entity, body store.Record, creating bool) *AppError {
	if creating {
		for _, f := range entity.Fields {
			if !f.Required {
				continue
			}
			v, ok := body[f.Name]
			if !ok || v == nil || v == "" {
				return ValidationError(fmt.Sprintf("missing required field: %s", f.Name))
			}
		}
	}

	for _, f := range entity.Fields {
		v, ok := body[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case "int":
			if !store.IsNumber(v) {
				return ValidationError(fmt.Sprintf("field %s must be a number", f.Name))
			}
		case "int_set":
			normalized, valid := normalizeIntSet(v)
			if !valid {
				return ValidationError(fmt.Sprintf("invalid %s list", f.Name))
			}
			body[f.Name] = normalized
		}
	}
	return nil
}

// normalizeIntSet accepts a bare number or a list of numbers. A one-element
// list collapses to the bare number, keeping existing data files compatible
// with both shapes of the departments field.
func normalizeIntSet(v any) (any, bool) {
	if store.IsNumber(v) {
		return v, true
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	for _, item := range list {
		if !store.IsNumber(item) {
			return nil, false
		}
	}
	if len(list) == 1 {
		return list[0], true
	}
	return list, true
}

// ApplyCreateDefaults fills in server-side defaults for a create payload.
// Users get a generated random password when none is supplied.
func ApplyCreateDefaults(entity *metadata.Entity, body store.Record) {
	if entity.Name != "users" {
		return
	}
	if pw, ok := body["password"].(string); !ok || pw == "" {
		body["password"] = randomPassword(8)
	}
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomPassword(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = passwordAlphabet[rand.Intn(len(passwordAlphabet))]
	}
	return string(b)
}
