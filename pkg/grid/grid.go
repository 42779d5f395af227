package grid

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Column is one declarative grid column. Cell values pass through up to
// three stages, left to right: date formatting when Type is "date", the
// custom Render func, then reference-lookup substitution from Refs.
type Column struct {
	Key    string
	Label  string
	Type   string // "date" formats ISO-8601 values for display
	Render func(value any, row Record) string
}

// Filter describes one control of the filter bar.
type Filter struct {
	Key     string
	Label   string
	Options []FilterOption // non-empty means a select control
}

type FilterOption struct {
	Value any
	Label string
}

// Action is a resolved button: rendered by the caller, enabled per the
// permission checks already folded in.
type Action struct {
	Key     string
	Label   string
	Enabled bool
}

// PermissionChecker gates grid actions. *permission.Resolver satisfies it.
type PermissionChecker interface {
	Has(screenKey, permissionKey string) bool
	CanEdit(screenKey string) bool
	CanDelete(screenKey string) bool
	CanExport(screenKey string) bool
}

// Ref resolves a foreign-key cell to its display label: either a lookup map
// (id -> label) or an arbitrary mapper func.
type Ref interface{ resolve(value any) (string, bool) }

// RefMap is an id -> label lookup map, as produced by Controller.LookupMaps.
type RefMap map[int]string

func (m RefMap) resolve(value any) (string, bool) {
	if !isNumber(value) {
		return "", false
	}
	label, ok := m[toInt(value)]
	return label, ok
}

// RefFunc maps a raw cell value to its display text.
type RefFunc func(value any) string

func (f RefFunc) resolve(value any) (string, bool) {
	return f(value), true
}

// Grid renders declarative column/filter configuration plus a record slice
// into an interactive table view model, with sorting, an optional local
// filter/paging layer, permission-gated actions, and the edit/delete dialog
// state machines.
type Grid struct {
	Columns   []Column
	Filters   []Filter
	ScreenKey string
	Refs      map[string]Ref
	// RowAction contributes custom per-row actions; hasPermission is scoped
	// to the grid's screen key so actions can self-gate.
	RowAction func(row Record, hasPermission func(permissionKey string) bool) []Action
	// HeaderActions are extra actions rendered beside Create.
	HeaderActions []Action
	// CloseOnError controls the delete confirmation after a failed delete:
	// true closes it regardless, false keeps it open with the error.
	CloseOnError bool
	// Exporter receives the rows to serialize; the grid never serializes
	// exports itself.
	Exporter func(format string, rows []Record) error
	// Permissions gates actions. Gating is disabled when ScreenKey is empty.
	Permissions PermissionChecker
	// RowsPerPage sizes the internal paging fallback (default 10), used
	// when no external Pagination is supplied to View.
	RowsPerPage int

	filterValues map[string]any
	internalPage int

	sortKey  string
	sortDesc bool

	editOpen   bool
	editingRow Record

	deleteOpen    bool
	deletingRow   Record
	deleteLoading bool
	deleteErr     string
}

// Row is one rendered table row.
type Row struct {
	Record  Record
	Cells   []string
	Actions []Action
}

// View is the fully rendered table state.
type View struct {
	ColumnLabels  []string
	Rows          []Row
	Empty         bool
	EmptyMessage  string
	Page          int
	TotalPages    int
	CanCreate     bool
	CanExport     bool
	HeaderActions []Action
}

const emptyMessage = "no records found"

// View renders the data through the grid's local filter, sort, and paging
// layers. The external pagination, when given, takes precedence over the
// internal fallback (the rows are then assumed pre-paged).
func (g *Grid) View(data []Record, pagination *Pagination) View {
	filtered := g.applyFilters(data)
	sorted := g.applySort(filtered)

	page, totalPages := 1, 1
	rows := sorted
	if pagination != nil {
		page, totalPages = pagination.Page, pagination.TotalPages
	} else {
		perPage := g.RowsPerPage
		if perPage <= 0 {
			perPage = 10
		}
		totalPages = (len(sorted) + perPage - 1) / perPage
		if totalPages < 1 {
			totalPages = 1
		}
		page = g.internalPage
		if page < 1 {
			page = 1
		}
		start := (page - 1) * perPage
		if start >= len(sorted) {
			rows = []Record{}
		} else {
			end := start + perPage
			if end > len(sorted) {
				end = len(sorted)
			}
			rows = sorted[start:end]
		}
	}

	view := View{
		Page:          page,
		TotalPages:    totalPages,
		CanCreate:     g.allowEdit(),
		CanExport:     g.allowExport(),
		HeaderActions: g.HeaderActions,
	}
	for _, col := range g.Columns {
		view.ColumnLabels = append(view.ColumnLabels, col.Label)
	}

	if len(rows) == 0 {
		// A single full-width placeholder row instead of an empty body.
		view.Empty = true
		view.EmptyMessage = emptyMessage
		return view
	}

	for _, rec := range rows {
		row := Row{Record: rec}
		for _, col := range g.Columns {
			row.Cells = append(row.Cells, g.renderCell(col, rec))
		}
		row.Actions = g.rowActions(rec)
		view.Rows = append(view.Rows, row)
	}
	return view
}

// renderCell runs the cell pipeline: raw value, date formatting, custom
// render, then reference substitution. Stages compose left to right and any
// may be skipped.
func (g *Grid) renderCell(col Column, row Record) string {
	value := row[col.Key]
	text := ""
	if value != nil {
		text = fmt.Sprintf("%v", value)
	}

	if col.Type == "date" {
		if s, ok := value.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				text = t.Format("02/01/2006 15:04")
			} else if t, err := time.Parse(time.RFC3339, s); err == nil {
				text = t.Format("02/01/2006 15:04")
			}
		}
	}

	if col.Render != nil {
		text = col.Render(value, row)
	}

	if ref, ok := g.Refs[col.Key]; ok {
		if label, ok := ref.resolve(value); ok {
			text = label
		}
	}
	return text
}

// SetFilterValue sets one local filter and resets the internal page.
func (g *Grid) SetFilterValue(key string, value any) {
	if g.filterValues == nil {
		g.filterValues = map[string]any{}
	}
	g.filterValues[key] = value
	g.internalPage = 1
}

// ClearFilters drops the local filter values and resets the internal page.
func (g *Grid) ClearFilters() {
	g.filterValues = nil
	g.internalPage = 1
}

// SetPage moves the internal paging fallback.
func (g *Grid) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	g.internalPage = page
}

func (g *Grid) applyFilters(data []Record) []Record {
	if len(g.filterValues) == 0 {
		return data
	}
	out := make([]Record, 0, len(data))
	for _, rec := range data {
		if DefaultFilter(rec, g.filterValues) {
			out = append(out, rec)
		}
	}
	return out
}

// ToggleSort engages sorting on a column: first click ascending, further
// clicks flip the direction. There is no way back to unsorted.
func (g *Grid) ToggleSort(key string) {
	if g.sortKey == key {
		g.sortDesc = !g.sortDesc
		return
	}
	g.sortKey = key
	g.sortDesc = false
}

// SortState returns the engaged sort column ("" before the first toggle)
// and direction.
func (g *Grid) SortState() (key string, desc bool) {
	return g.sortKey, g.sortDesc
}

// applySort orders rows by the raw values of the sort column, not their
// rendered text. The stable sort keeps ties in input order.
func (g *Grid) applySort(data []Record) []Record {
	if g.sortKey == "" {
		return data
	}
	sorted := make([]Record, len(data))
	copy(sorted, data)
	key, desc := g.sortKey, g.sortDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		cmp := compareValues(sorted[i][key], sorted[j][key])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return sorted
}

func (g *Grid) allowEdit() bool {
	if g.ScreenKey == "" {
		return true
	}
	return g.Permissions != nil && g.Permissions.CanEdit(g.ScreenKey)
}

func (g *Grid) allowDelete() bool {
	if g.ScreenKey == "" {
		return true
	}
	return g.Permissions != nil && g.Permissions.CanDelete(g.ScreenKey)
}

func (g *Grid) allowExport() bool {
	if g.ScreenKey == "" {
		return true
	}
	return g.Permissions != nil && g.Permissions.CanExport(g.ScreenKey)
}

func (g *Grid) hasPermission(permissionKey string) bool {
	if g.ScreenKey == "" {
		return true
	}
	return g.Permissions != nil && g.Permissions.Has(g.ScreenKey, permissionKey)
}

func (g *Grid) rowActions(rec Record) []Action {
	actions := []Action{
		{Key: "edit", Label: "Edit", Enabled: g.allowEdit()},
		{Key: "delete", Label: "Delete", Enabled: g.allowDelete()},
	}
	if g.RowAction != nil {
		actions = append(actions, g.RowAction(rec, g.hasPermission)...)
	}
	return actions
}

// Export hands the rows to the configured exporter, gated by the export
// capability.
func (g *Grid) Export(format string, rows []Record) error {
	if !g.allowExport() {
		return fmt.Errorf("export not permitted for %s", g.ScreenKey)
	}
	if g.Exporter == nil {
		return fmt.Errorf("no exporter configured")
	}
	return g.Exporter(format, rows)
}

// OpenCreate opens the edit dialog in create mode: the row is nil and the
// form must submit without an id.
func (g *Grid) OpenCreate() {
	g.editingRow = nil
	g.editOpen = true
}

// OpenEdit opens the edit dialog for an existing row.
func (g *Grid) OpenEdit(row Record) {
	g.editingRow = row
	g.editOpen = true
}

// EditState returns the dialog visibility and the row under edit (nil in
// create mode).
func (g *Grid) EditState() (open bool, row Record) {
	return g.editOpen, g.editingRow
}

// SubmitEdit saves through the given handler and closes the dialog only
// after the save succeeds; a failed save keeps it open so the error stays
// visible.
func (g *Grid) SubmitEdit(ctx context.Context, save func(context.Context, Record) (Record, error), payload Record) error {
	if _, err := save(ctx, payload); err != nil {
		return err
	}
	g.editOpen = false
	g.editingRow = nil
	return nil
}

// CloseEdit dismisses the edit dialog without saving.
func (g *Grid) CloseEdit() {
	g.editOpen = false
	g.editingRow = nil
}

// RequestDelete opens the confirmation dialog for a row.
func (g *Grid) RequestDelete(row Record) {
	g.deletingRow = row
	g.deleteOpen = true
	g.deleteErr = ""
}

// DeleteState returns the confirmation dialog state: visibility, the row
// pending deletion, the in-flight flag, and the retained error message
// (only ever set under CloseOnError=false).
func (g *Grid) DeleteState() (open bool, row Record, loading bool, errMsg string) {
	return g.deleteOpen, g.deletingRow, g.deleteLoading, g.deleteErr
}

// DeletePrompt names the row in the confirmation text, falling back to a
// generic phrase when it has no name.
func (g *Grid) DeletePrompt() string {
	if g.deletingRow != nil {
		if name, ok := g.deletingRow["name"].(string); ok && strings.TrimSpace(name) != "" {
			return fmt.Sprintf("Delete %q? This cannot be undone.", name)
		}
	}
	return "Delete this record? This cannot be undone."
}

// ConfirmDelete runs the delete handler. While in flight the dialog reports
// loading and further confirms are ignored. On failure the CloseOnError
// policy decides whether the dialog closes silently or stays open showing
// the error.
func (g *Grid) ConfirmDelete(ctx context.Context, del func(context.Context, Record) error) error {
	if !g.deleteOpen || g.deleteLoading {
		return nil
	}
	g.deleteLoading = true
	err := del(ctx, g.deletingRow)
	g.deleteLoading = false

	if err != nil && !g.CloseOnError {
		g.deleteErr = err.Error()
		return err
	}

	g.deleteOpen = false
	g.deletingRow = nil
	g.deleteErr = ""
	return err
}

// CancelDelete dismisses the confirmation dialog.
func (g *Grid) CancelDelete() {
	if g.deleteLoading {
		return
	}
	g.deleteOpen = false
	g.deletingRow = nil
	g.deleteErr = ""
}
