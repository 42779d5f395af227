package grid

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubPerms grants a fixed pair set, like a resolved position.
type stubPerms map[string]bool

func (p stubPerms) Has(screenKey, permissionKey string) bool {
	return p[screenKey+"/"+permissionKey]
}
func (p stubPerms) CanEdit(screenKey string) bool   { return p.Has(screenKey, "edit") }
func (p stubPerms) CanDelete(screenKey string) bool { return p.Has(screenKey, "delete") }
func (p stubPerms) CanExport(screenKey string) bool { return p.Has(screenKey, "export") }

func testRows() []Record {
	return []Record{
		{"id": float64(3), "name": "Carol", "created_at": "2024-03-05T10:30:00Z"},
		{"id": float64(1), "name": "Ada", "created_at": "2024-01-01T00:00:00Z"},
		{"id": float64(2), "name": "Bob", "created_at": "2024-02-10T08:00:00Z"},
	}
}

func TestToggleSortAscThenDesc(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}}

	g.ToggleSort("name")
	view := g.View(testRows(), nil)
	if view.Rows[0].Record["name"] != "Ada" {
		t.Fatalf("first toggle must sort ascending, got %v", view.Rows[0].Record["name"])
	}

	g.ToggleSort("name")
	view = g.View(testRows(), nil)
	if view.Rows[0].Record["name"] != "Carol" {
		t.Fatalf("second toggle must sort descending, got %v", view.Rows[0].Record["name"])
	}

	// Further toggles keep flipping; there is no unsorted state.
	g.ToggleSort("name")
	if key, desc := g.SortState(); key != "name" || desc {
		t.Fatalf("third toggle must be ascending again, got %q desc=%v", key, desc)
	}
}

func TestSortUsesRawValues(t *testing.T) {
	rows := []Record{
		{"id": float64(10), "name": "x"},
		{"id": float64(2), "name": "y"},
	}
	g := &Grid{Columns: []Column{{Key: "id", Label: "ID"}}}
	g.ToggleSort("id")
	view := g.View(rows, nil)
	// Numeric compare: 2 before 10, not "10" before "2".
	if toInt(view.Rows[0].Record["id"]) != 2 {
		t.Fatalf("expected numeric sort, got %v first", view.Rows[0].Record["id"])
	}
}

func TestCellPipelineOrder(t *testing.T) {
	g := &Grid{
		Columns: []Column{
			{Key: "created_at", Label: "Created", Type: "date"},
			{
				Key:   "name",
				Label: "Name",
				Render: func(value any, row Record) string {
					return fmt.Sprintf("<%v>", value)
				},
			},
			{Key: "position_id", Label: "Position"},
		},
		Refs: map[string]Ref{
			"position_id": RefMap{2: "Developer"},
		},
	}
	rows := []Record{
		{"id": float64(1), "name": "Ada", "created_at": "2024-01-15T09:00:00Z", "position_id": float64(2)},
	}
	view := g.View(rows, nil)
	cells := view.Rows[0].Cells

	if cells[0] != "15/01/2024 09:00" {
		t.Fatalf("date column must format the timestamp, got %q", cells[0])
	}
	if cells[1] != "<Ada>" {
		t.Fatalf("render func must shape the cell, got %q", cells[1])
	}
	if cells[2] != "Developer" {
		t.Fatalf("ref lookup must replace the raw id, got %q", cells[2])
	}
}

func TestRefMissingIDKeepsRawValue(t *testing.T) {
	g := &Grid{
		Columns: []Column{{Key: "position_id", Label: "Position"}},
		Refs:    map[string]Ref{"position_id": RefMap{1: "Admin"}},
	}
	rows := []Record{{"id": float64(1), "position_id": float64(9)}}
	view := g.View(rows, nil)
	if view.Rows[0].Cells[0] != "9" {
		t.Fatalf("unknown ref id must fall back to the raw value, got %q", view.Rows[0].Cells[0])
	}
}

func TestEmptyStateRow(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}}
	view := g.View(nil, nil)
	if !view.Empty {
		t.Fatal("expected empty state")
	}
	if view.EmptyMessage == "" {
		t.Fatal("expected an empty-state message")
	}
	if len(view.Rows) != 0 {
		t.Fatalf("empty state must not render data rows, got %d", len(view.Rows))
	}
}

func TestInternalPagingFallback(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}, RowsPerPage: 2}
	rows := []Record{
		{"id": float64(1), "name": "a"},
		{"id": float64(2), "name": "b"},
		{"id": float64(3), "name": "c"},
	}
	view := g.View(rows, nil)
	if len(view.Rows) != 2 || view.TotalPages != 2 {
		t.Fatalf("expected 2 rows over 2 pages, got %d rows %d pages", len(view.Rows), view.TotalPages)
	}
	g.SetPage(2)
	view = g.View(rows, nil)
	if len(view.Rows) != 1 {
		t.Fatalf("page 2: expected 1 row, got %d", len(view.Rows))
	}
}

func TestExternalPaginationWins(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}, RowsPerPage: 1}
	rows := []Record{
		{"id": float64(1), "name": "a"},
		{"id": float64(2), "name": "b"},
	}
	view := g.View(rows, &Pagination{Page: 4, TotalPages: 9})
	if view.Page != 4 || view.TotalPages != 9 {
		t.Fatalf("external pagination must pass through, got %d/%d", view.Page, view.TotalPages)
	}
	// Externally paged rows render as-is, without internal slicing.
	if len(view.Rows) != 2 {
		t.Fatalf("expected all rows, got %d", len(view.Rows))
	}
}

func TestLocalFilterResetsInternalPage(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}, RowsPerPage: 1}
	g.SetPage(3)
	g.SetFilterValue("name", "a")
	rows := []Record{
		{"id": float64(1), "name": "Ada"},
		{"id": float64(2), "name": "Bob"},
	}
	view := g.View(rows, nil)
	if view.Page != 1 {
		t.Fatalf("setting a filter must reset to page 1, got %d", view.Page)
	}
	if len(view.Rows) != 1 || view.Rows[0].Record["name"] != "Ada" {
		t.Fatalf("local filter must narrow rows, got %v", view.Rows)
	}
}

func TestPermissionGating(t *testing.T) {
	g := &Grid{
		Columns:     []Column{{Key: "name", Label: "Name"}},
		ScreenKey:   "users",
		Permissions: stubPerms{"users/edit": true},
	}
	view := g.View(testRows(), nil)
	if !view.CanCreate {
		t.Fatal("edit grant must allow create")
	}
	if view.CanExport {
		t.Fatal("export was never granted")
	}
	for _, action := range view.Rows[0].Actions {
		switch action.Key {
		case "edit":
			if !action.Enabled {
				t.Fatal("edit action must be enabled")
			}
		case "delete":
			if action.Enabled {
				t.Fatal("delete action must be disabled")
			}
		}
	}
}

func TestGatingDisabledWithoutScreenKey(t *testing.T) {
	g := &Grid{Columns: []Column{{Key: "name", Label: "Name"}}}
	view := g.View(testRows(), nil)
	if !view.CanCreate || !view.CanExport {
		t.Fatal("grid without a screen key must not gate anything")
	}
}

func TestRowActionScopedPermission(t *testing.T) {
	g := &Grid{
		Columns:     []Column{{Key: "name", Label: "Name"}},
		ScreenKey:   "users",
		Permissions: stubPerms{"users/grant": true},
		RowAction: func(row Record, hasPermission func(string) bool) []Action {
			return []Action{{Key: "grant", Label: "Grant", Enabled: hasPermission("grant")}}
		},
	}
	view := g.View(testRows(), nil)
	var found bool
	for _, action := range view.Rows[0].Actions {
		if action.Key == "grant" {
			found = true
			if !action.Enabled {
				t.Fatal("scoped permission check must see the grant")
			}
		}
	}
	if !found {
		t.Fatal("custom row action missing")
	}
}

func TestSubmitEditClosesOnlyOnSuccess(t *testing.T) {
	g := &Grid{}
	g.OpenEdit(Record{"id": float64(1), "name": "Ada"})

	failing := func(ctx context.Context, rec Record) (Record, error) {
		return nil, errors.New("validation failed")
	}
	if err := g.SubmitEdit(context.Background(), failing, Record{"id": float64(1)}); err == nil {
		t.Fatal("expected save error")
	}
	if open, _ := g.EditState(); !open {
		t.Fatal("dialog must stay open after a failed save")
	}

	ok := func(ctx context.Context, rec Record) (Record, error) { return rec, nil }
	if err := g.SubmitEdit(context.Background(), ok, Record{"id": float64(1)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if open, _ := g.EditState(); open {
		t.Fatal("dialog must close after a successful save")
	}
}

func TestOpenCreateHasNilRow(t *testing.T) {
	g := &Grid{}
	g.OpenCreate()
	open, row := g.EditState()
	if !open || row != nil {
		t.Fatalf("create mode must open with a nil row, got open=%v row=%v", open, row)
	}
}

func TestConfirmDeleteKeepOpenPolicy(t *testing.T) {
	g := &Grid{CloseOnError: false}
	g.RequestDelete(Record{"id": float64(1), "name": "Ada"})

	failing := func(ctx context.Context, rec Record) error { return errors.New("referenced") }
	if err := g.ConfirmDelete(context.Background(), failing); err == nil {
		t.Fatal("expected delete error")
	}
	open, _, loading, msg := g.DeleteState()
	if !open {
		t.Fatal("dialog must stay open under keep-open policy")
	}
	if loading {
		t.Fatal("loading must settle after the call")
	}
	if msg != "referenced" {
		t.Fatalf("expected retained error message, got %q", msg)
	}
}

func TestConfirmDeleteCloseOnErrorPolicy(t *testing.T) {
	g := &Grid{CloseOnError: true}
	g.RequestDelete(Record{"id": float64(1)})

	failing := func(ctx context.Context, rec Record) error { return errors.New("referenced") }
	if err := g.ConfirmDelete(context.Background(), failing); err == nil {
		t.Fatal("expected delete error")
	}
	if open, _, _, _ := g.DeleteState(); open {
		t.Fatal("dialog must close under close-on-error policy")
	}
}

func TestConfirmDeleteSuccessCloses(t *testing.T) {
	g := &Grid{}
	g.RequestDelete(Record{"id": float64(1)})
	ok := func(ctx context.Context, rec Record) error { return nil }
	if err := g.ConfirmDelete(context.Background(), ok); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if open, _, _, _ := g.DeleteState(); open {
		t.Fatal("dialog must close on success")
	}
}

func TestConfirmDeleteIgnoredWhenClosed(t *testing.T) {
	g := &Grid{}
	called := false
	handler := func(ctx context.Context, rec Record) error {
		called = true
		return nil
	}
	if err := g.ConfirmDelete(context.Background(), handler); err != nil {
		t.Fatalf("confirm on closed dialog: %v", err)
	}
	if called {
		t.Fatal("confirm without an open dialog must not call the handler")
	}
}

func TestExportGating(t *testing.T) {
	var exported []Record
	g := &Grid{
		ScreenKey:   "users",
		Permissions: stubPerms{},
		Exporter: func(format string, rows []Record) error {
			exported = rows
			return nil
		},
	}
	if err := g.Export("csv", testRows()); err == nil {
		t.Fatal("export without the grant must fail")
	}

	g.Permissions = stubPerms{"users/export": true}
	if err := g.Export("csv", testRows()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported) != 3 {
		t.Fatalf("exporter must receive the rows, got %d", len(exported))
	}
}

func TestDeletePrompt(t *testing.T) {
	g := &Grid{}
	g.RequestDelete(Record{"id": float64(1), "name": "Ada"})
	if prompt := g.DeletePrompt(); prompt != `Delete "Ada"? This cannot be undone.` {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	g.CancelDelete()
	g.RequestDelete(Record{"id": float64(2)})
	if prompt := g.DeletePrompt(); prompt != "Delete this record? This cannot be undone." {
		t.Fatalf("unexpected fallback prompt %q", prompt)
	}
}
