// Package seed bootstraps an empty database directory with the reference
// tables and a first administrator, so a fresh checkout serves logins
// immediately.
package seed

import (
	"log"

	"admin-console/internal/store"
)

var screens = []store.Record{
	{"key": "users", "name": "Users"},
	{"key": "positions", "name": "Positions"},
	{"key": "departments", "name": "Departments"},
}

var permissions = []store.Record{
	{"key": "view", "name": "View"},
	{"key": "edit", "name": "Edit"},
	{"key": "delete", "name": "Delete"},
	{"key": "export", "name": "Export"},
	{"key": "grant", "name": "Grant access"},
}

// Run creates any missing table files. Existing tables are never touched.
func Run(s *store.Store) error {
	if err := ensure(s, "screens", screens); err != nil {
		return err
	}
	if err := ensure(s, "permissions", permissions); err != nil {
		return err
	}
	if err := ensure(s, "departments", []store.Record{
		{"name": "Administration"},
	}); err != nil {
		return err
	}
	if err := ensure(s, "positions", []store.Record{
		{
			"name":        "Administrator",
			"departments": 1,
			"permissions": fullMatrix(),
		},
	}); err != nil {
		return err
	}
	return ensure(s, "users", []store.Record{
		{
			"name":        "Administrator",
			"email":       "admin@example.com",
			"password":    "admin",
			"position_id": 1,
		},
	})
}

func ensure(s *store.Store, table string, records []store.Record) error {
	if s.Exists(table) {
		return nil
	}
	if err := s.Write(table, []store.Record{}); err != nil {
		return err
	}
	if _, err := s.CreateMany(table, records); err != nil {
		return err
	}
	log.Printf("seeded table %s with %d records", table, len(records))
	return nil
}

// fullMatrix grants every permission on every screen.
func fullMatrix() []any {
	var pairs []any
	for _, screen := range screens {
		for _, permission := range permissions {
			pairs = append(pairs, map[string]any{
				"screen_key":     screen["key"],
				"permission_key": permission["key"],
			})
		}
	}
	return pairs
}
