package auth

import (
	"errors"
	"fmt"

	"admin-console/internal/store"
)

// Well-known permission keys.
const (
	PermissionView   = "view"
	PermissionEdit   = "edit"
	PermissionDelete = "delete"
	PermissionExport = "export"
)

type permissionPair struct {
	screen, permission string
}

// PermissionSet is the resolved capability set of one position: the
// screen_key/permission_key pairs stored on the position record. Absence of
// a pair denies the action.
type PermissionSet struct {
	pairs map[permissionPair]bool
}

// EmptyPermissionSet grants nothing.
func EmptyPermissionSet() *PermissionSet {
	return &PermissionSet{pairs: map[permissionPair]bool{}}
}

// NewPermissionSet builds a set from a position's decoded permissions list.
// Entries without both keys are skipped.
func NewPermissionSet(list []any) *PermissionSet {
	set := EmptyPermissionSet()
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		screen, _ := entry["screen_key"].(string)
		permission, _ := entry["permission_key"].(string)
		if screen == "" || permission == "" {
			continue
		}
		set.pairs[permissionPair{screen, permission}] = true
	}
	return set
}

// Has reports whether the set grants the permission on the screen.
func (s *PermissionSet) Has(screenKey, permissionKey string) bool {
	if screenKey == "" || permissionKey == "" {
		return false
	}
	return s.pairs[permissionPair{screenKey, permissionKey}]
}

func (s *PermissionSet) CanView(screenKey string) bool   { return s.Has(screenKey, PermissionView) }
func (s *PermissionSet) CanEdit(screenKey string) bool   { return s.Has(screenKey, PermissionEdit) }
func (s *PermissionSet) CanDelete(screenKey string) bool { return s.Has(screenKey, PermissionDelete) }
func (s *PermissionSet) CanExport(screenKey string) bool { return s.Has(screenKey, PermissionExport) }

// For returns every permission key granted on one screen.
func (s *PermissionSet) For(screenKey string) []string {
	var keys []string
	for pair := range s.pairs {
		if pair.screen == screenKey {
			keys = append(keys, pair.permission)
		}
	}
	return keys
}

// Resolver loads permission sets from the positions table.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the permission set of a position. A zero position id means
// the user has no position, which resolves to the empty set.
func (r *Resolver) Resolve(positionID int) (*PermissionSet, error) {
	if positionID <= 0 {
		return EmptyPermissionSet(), nil
	}
	position, err := r.store.GetByID("positions", positionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return EmptyPermissionSet(), nil
		}
		return nil, fmt.Errorf("resolve position %d: %w", positionID, err)
	}
	list, _ := position["permissions"].([]any)
	return NewPermissionSet(list), nil
}
