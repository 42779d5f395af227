// Package permission resolves the signed-in user's capability set on the
// consumer side: the user's position is looked up in the positions
// collection exactly once and its screen/permission pairs become the set
// every gate checks against. No position, or no resolution yet, means no
// permissions.
package permission

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"admin-console/pkg/client"
)

// Well-known permission keys.
const (
	KeyView   = "view"
	KeyEdit   = "edit"
	KeyDelete = "delete"
	KeyExport = "export"
)

type pair struct {
	screen, permission string
}

// Set holds resolved screen/permission grants. The zero value denies
// everything.
type Set struct {
	pairs map[pair]bool
}

// NewSet builds a Set from a position's decoded permissions list. Entries
// missing either key are skipped.
func NewSet(list []any) *Set {
	s := &Set{pairs: map[pair]bool{}}
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
		s.pairs[pair{screen, permission}] = true
	}
	return s
}

func (s *Set) Has(screenKey, permissionKey string) bool {
	if s == nil || screenKey == "" || permissionKey == "" {
		return false
	}
	return s.pairs[pair{screenKey, permissionKey}]
}

func (s *Set) CanView(screenKey string) bool   { return s.Has(screenKey, KeyView) }
func (s *Set) CanEdit(screenKey string) bool   { return s.Has(screenKey, KeyEdit) }
func (s *Set) CanDelete(screenKey string) bool { return s.Has(screenKey, KeyDelete) }
func (s *Set) CanExport(screenKey string) bool { return s.Has(screenKey, KeyExport) }

// UserFunc yields the signed-in user record, e.g. from /api/auth/me or a
// cached login response.
type UserFunc func(ctx context.Context) (client.Record, error)

// PositionSource is the slice of the positions client the resolver needs.
// *client.Client satisfies it.
type PositionSource interface {
	GetAll(ctx context.Context, params url.Values) ([]client.Record, error)
}

// Resolver loads the user's permission set once and answers every later
// check from it. It satisfies the grid's PermissionChecker.
type Resolver struct {
	user      UserFunc
	positions PositionSource

	once sync.Once

	mu      sync.RWMutex
	set     *Set
	ready   bool
	loading bool
	lastErr error
}

func NewResolver(user UserFunc, positions PositionSource) *Resolver {
	return &Resolver{user: user, positions: positions, set: NewSet(nil)}
}

// Load resolves the set exactly once; repeated calls are no-ops. A user
// without a position resolves to the empty set, which is still "ready".
func (r *Resolver) Load(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.loading = true
		r.mu.Unlock()

		set, err := r.resolve(ctx)

		r.mu.Lock()
		r.loading = false
		r.lastErr = err
		if err == nil {
			r.set = set
			r.ready = true
		}
		r.mu.Unlock()
	})
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Resolver) resolve(ctx context.Context) (*Set, error) {
	user, err := r.user(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}

	positionID := recordInt(user["position_id"])
	if positionID == 0 {
		return NewSet(nil), nil
	}

	positions, err := r.positions.GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	for _, position := range positions {
		if recordInt(position["id"]) == positionID {
			list, _ := position["permissions"].([]any)
			return NewSet(list), nil
		}
	}
	// Dangling position id: closed world, nothing granted.
	return NewSet(nil), nil
}

// Ready is true once resolution finished, even when the result is the empty
// set. It stays false after a failed Load.
func (r *Resolver) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Loading is true while the resolution is in flight.
func (r *Resolver) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Has answers false until Load has resolved the set.
func (r *Resolver) Has(screenKey, permissionKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return false
	}
	return r.set.Has(screenKey, permissionKey)
}

func (r *Resolver) CanView(screenKey string) bool   { return r.Has(screenKey, KeyView) }
func (r *Resolver) CanEdit(screenKey string) bool   { return r.Has(screenKey, KeyEdit) }
func (r *Resolver) CanDelete(screenKey string) bool { return r.Has(screenKey, KeyDelete) }
func (r *Resolver) CanExport(screenKey string) bool { return r.Has(screenKey, KeyExport) }

func recordInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
