package engine

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"admin-console/internal/metadata"
	"admin-console/internal/store"
)

func newTestApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, table := range []string{"users", "positions", "departments", "screens", "permissions"} {
		if err := s.Write(table, []store.Record{}); err != nil {
			t.Fatalf("init table %s: %v", table, err)
		}
	}

	reg := metadata.NewRegistry()
	reg.Load(metadata.Builtin())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterResourceRoutes(app, NewHandler(s, reg))
	return app, s
}

func doJSON(t *testing.T, app *fiber.App, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, url, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func TestCreateAssignsNextID(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("departments", []store.Record{
		{"id": 1, "name": "Sales"},
		{"id": 2, "name": "IT"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, raw := doJSON(t, app, "POST", "/api/departments", map[string]any{"name": "HR"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if store.ToInt(rec["id"]) != 3 {
		t.Fatalf("expected id 3, got %v", rec["id"])
	}
}

func TestCreateIgnoresClientSuppliedID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "POST", "/api/departments", map[string]any{"id": 500, "name": "HR"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if store.ToInt(rec["id"]) != 1 {
		t.Fatalf("expected server-assigned id 1, got %v", rec["id"])
	}
}

func TestCreateMissingRequiredField(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "POST", "/api/users", map[string]any{"name": "No Email"})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(errResp.Error, "email") {
		t.Fatalf("expected message to name the field, got %q", errResp.Error)
	}
}

func TestCreateUserGeneratesPassword(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "POST", "/api/users", map[string]any{
		"name": "Ada", "email": "ada@example.com",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	pw, _ := rec["password"].(string)
	if len(pw) != 8 {
		t.Fatalf("expected generated 8-char password, got %q", pw)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("users", []store.Record{
		{"id": 1, "name": "Ada", "email": "ada@example.com", "created_at": "2024-01-01T00:00:00Z"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, raw := doJSON(t, app, "PUT", "/api/users", map[string]any{"id": 1, "name": "Ada L."})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["name"] != "Ada L." {
		t.Fatalf("expected merged name, got %v", rec["name"])
	}
	if rec["email"] != "ada@example.com" {
		t.Fatal("update dropped an untouched field")
	}
	if rec["created_at"] != "2024-01-01T00:00:00Z" {
		t.Fatalf("created_at must survive updates, got %v", rec["created_at"])
	}
}

func TestUpdateWithoutID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, _ := doJSON(t, app, "PUT", "/api/users", map[string]any{"name": "nobody"})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for missing id, got %d", resp.StatusCode)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, _ := doJSON(t, app, "PUT", "/api/users", map[string]any{"id": 77, "name": "ghost"})
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteReferencedPositionRejected(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("positions", []store.Record{
		{"id": 1, "name": "Admin"},
	}); err != nil {
		t.Fatalf("seed positions: %v", err)
	}
	if err := s.Write("users", []store.Record{
		{"id": 1, "name": "Ada", "email": "a@x.com", "position_id": 1},
	}); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	resp, raw := doJSON(t, app, "DELETE", "/api/positions?id=1", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for referenced delete, got %d: %s", resp.StatusCode, raw)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(errResp.Error, "linked users") {
		t.Fatalf("expected referential message, got %q", errResp.Error)
	}

	// The table file must be left untouched.
	data, err := s.Read("positions")
	if err != nil {
		t.Fatalf("read positions: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("referenced position was deleted anyway, %d records left", len(data))
	}
}

func TestDeleteReferencedDepartmentRejected(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("departments", []store.Record{
		{"id": 4, "name": "IT"},
	}); err != nil {
		t.Fatalf("seed departments: %v", err)
	}
	// departments may appear as a list or a bare number; both block deletion.
	if err := s.Write("positions", []store.Record{
		{"id": 1, "name": "Dev", "departments": []any{float64(4)}},
	}); err != nil {
		t.Fatalf("seed positions: %v", err)
	}

	resp, _ := doJSON(t, app, "DELETE", "/api/departments?id=4", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for referenced delete, got %d", resp.StatusCode)
	}
}

func TestDeleteSuccess(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("departments", []store.Record{
		{"id": 1, "name": "Unused"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	resp, _ := doJSON(t, app, "DELETE", "/api/departments?id=1", nil)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	data, err := s.Read("departments")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty table, got %d records", len(data))
	}
}

func TestDeleteWithoutID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, _ := doJSON(t, app, "DELETE", "/api/departments", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for missing id, got %d", resp.StatusCode)
	}
}

func TestGetByIDAndInclude(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("positions", []store.Record{
		{"id": 2, "name": "Dev"},
	}); err != nil {
		t.Fatalf("seed positions: %v", err)
	}
	if err := s.Write("users", []store.Record{
		{"id": 1, "name": "Ada", "email": "a@x.com", "position_id": 2},
	}); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	resp, raw := doJSON(t, app, "GET", "/api/users?id=1&include=position", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	pos, ok := rec["position"].(map[string]any)
	if !ok {
		t.Fatalf("expected embedded position object, got %T", rec["position"])
	}
	if pos["name"] != "Dev" {
		t.Fatalf("expected included position name, got %v", pos["name"])
	}
}

func TestGetUnknownIDReturns404(t *testing.T) {
	app, _ := newTestApp(t)
	resp, _ := doJSON(t, app, "GET", "/api/users?id=123", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetListReturnsEmptyArray(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "GET", "/api/users", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", raw)
	}
}

func TestReadOnlyEntityRejectsWrites(t *testing.T) {
	app, _ := newTestApp(t)
	for _, method := range []string{"POST", "PUT", "DELETE"} {
		url := "/api/screens"
		if method == "DELETE" {
			url += "?id=1"
		}
		var payload any
		if method != "DELETE" {
			payload = map[string]any{"id": 1, "key": "x", "name": "X"}
		}
		resp, _ := doJSON(t, app, method, url, payload)
		if resp.StatusCode != 405 {
			t.Fatalf("%s screens: expected 405, got %d", method, resp.StatusCode)
		}
	}
}

func TestUnknownEntity(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "GET", "/api/widgets", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(errResp.Error, "widgets") {
		t.Fatalf("expected message to name the resource, got %q", errResp.Error)
	}
}

func TestSingleElementDepartmentsCollapses(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "POST", "/api/positions", map[string]any{
		"name": "Dev", "departments": []any{4},
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, isList := rec["departments"].([]any); isList {
		t.Fatalf("expected single-element list to collapse to a number, got %v", rec["departments"])
	}
	if store.ToInt(rec["departments"]) != 4 {
		t.Fatalf("expected departments 4, got %v", rec["departments"])
	}
}

func TestMultiElementDepartmentsStaysList(t *testing.T) {
	app, _ := newTestApp(t)
	resp, raw := doJSON(t, app, "POST", "/api/positions", map[string]any{
		"name": "Dev", "departments": []any{1, 2},
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	list, ok := rec["departments"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected two-element departments list, got %v", rec["departments"])
	}
}

func TestInvalidDepartmentsRejected(t *testing.T) {
	app, _ := newTestApp(t)
	resp, _ := doJSON(t, app, "POST", "/api/positions", map[string]any{
		"name": "Dev", "departments": []any{"not-a-number"},
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for non-numeric departments, got %d", resp.StatusCode)
	}
}

func TestListWithWhereFilter(t *testing.T) {
	app, s := newTestApp(t)
	if err := s.Write("users", []store.Record{
		{"id": 1, "name": "Ada", "email": "a@x.com", "position_id": 1},
		{"id": 2, "name": "Bob", "email": "b@x.com", "position_id": 2},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	resp, raw := doJSON(t, app, "GET", "/api/users?position_id=2", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list []store.Record
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0]["name"] != "Bob" {
		t.Fatalf("expected only Bob, got %v", list)
	}
}
