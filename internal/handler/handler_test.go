// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/sitewarden/sitewarden/internal/auth"
	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/middleware"
	"github.com/sitewarden/sitewarden/internal/registry"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/testutil"
	"github.com/sitewarden/sitewarden/internal/version"
)

const (
	testMainAdminEmail    = "root@example.com"
	testMainAdminPassword = "correct-horse-battery"
)

// apiFixture wires the full handler stack against a temp database and serves
// it over httptest so session cookies behave like production.
type apiFixture struct {
	db      *sql.DB
	queries *store.Queries
	sm      *scs.SessionManager
	server  *httptest.Server
}

func newAPIFixture(t *testing.T) (*apiFixture, func()) {
	t.Helper()

	db, dbCleanup := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()

	if err := store.Seed(context.Background(), db, store.SeedParams{
		MainAdminEmail:    testMainAdminEmail,
		MainAdminPassword: testMainAdminPassword,
		MainAdminName:     "Root",
		PasswordHasher:    auth.HashPassword,
	}); err != nil {
		dbCleanup()
		t.Fatalf("Seed: %v", err)
	}

	sm := scs.New()
	audit := service.NewAuditService(db, nil, logger)
	matrix := governance.NewMatrix(db, audit, testMainAdminEmail)
	engine := governance.NewEngine(db, matrix, governance.NewOverlay(), nil, logger)
	reg := registry.New(db, audit, logger, testMainAdminEmail)
	authSvc := auth.NewService(db, reg, audit, logger)
	protect := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit: 1000, IPBurst: 1000, MaxFailedAttempts: 100,
	})

	h := New(db, sm, engine, reg, authSvc, audit, protect, logger)
	health := NewHealthHandler(db, sm, &version.Info{Version: "test"})

	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Post("/api/signup", h.Signup)
	r.Post("/api/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, db))

		r.Get("/api/me", h.Me)
		r.Post("/api/logout", h.Logout)

		r.Get("/api/sections", h.ListSections)
		r.Get("/api/sections/{section}", h.GetSection)
		r.Get("/api/sections/{section}/edit", h.GetSectionForEditing)
		r.Post("/api/sections/{section}/preview", h.PreviewSection)
		r.Delete("/api/sections/{section}/preview", h.DiscardSection)
		r.Post("/api/sections/{section}/commit", h.CommitSection)
		r.Delete("/api/sections/{section}", h.DeleteSection)

		r.Get("/api/history", h.ListHistory)
		r.Post("/api/history/{id}/revert", h.RevertHistoryEntry)

		r.Get("/api/permissions/check", h.CheckPermission)
		r.Post("/api/permissions", h.AssignPermissions)
		r.Put("/api/users/role", h.SetUserRole)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/api/emails", h.ListAuthorizedEmails)
			r.Post("/api/emails", h.AuthorizeEmail)
			r.Post("/api/emails/{id}/revoke", h.RevokeEmail)
			r.Post("/api/emails/{id}/reactivate", h.ReactivateEmail)
			r.Delete("/api/emails/{id}", h.DeleteEmail)
			r.Get("/api/audit", h.ListAdminActions)
			r.Get("/api/permissions/users/{id}", h.ListUserPermissions)
			r.Get("/api/permissions/users/{id}/summary", h.SummarizePermissions)
		})
	})

	server := httptest.NewServer(sm.LoadAndSave(r))

	f := &apiFixture{db: db, queries: store.New(db), sm: sm, server: server}
	return f, func() {
		server.Close()
		dbCleanup()
	}
}

// client returns an HTTP client with its own cookie jar (its own session).
func (f *apiFixture) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

// do issues a JSON request and returns the response. body may be nil.
func (f *apiFixture) do(t *testing.T, c *http.Client, method, path string, body any) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// expect issues a request and fails unless the status matches. The decoded
// response body is returned.
func (f *apiFixture) expect(t *testing.T, c *http.Client, method, path string, body any, wantStatus int) map[string]any {
	t.Helper()

	resp := f.do(t, c, method, path, body)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (body: %s)", method, path, resp.StatusCode, wantStatus, raw)
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal response %q: %v", raw, err)
		}
	}
	return decoded
}

// login authenticates the client session.
func (f *apiFixture) login(t *testing.T, c *http.Client, email, password string) {
	t.Helper()
	f.expect(t, c, http.MethodPost, "/api/login", LoginRequest{Email: email, Password: password}, http.StatusOK)
}

// provisionUser authorizes the email as adminClient, signs the user up, and
// returns a logged-in client for them.
func (f *apiFixture) provisionUser(t *testing.T, adminClient *http.Client, email, password string) *http.Client {
	t.Helper()

	f.expect(t, adminClient, http.MethodPost, "/api/emails", AuthorizeEmailRequest{Email: email}, http.StatusCreated)
	f.expect(t, f.client(t), http.MethodPost, "/api/signup",
		SignupRequest{Email: email, Password: password, Name: "Test User"}, http.StatusCreated)

	c := f.client(t)
	f.login(t, c, email, password)
	return c
}

func dataField(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return data
}

func TestHealthEndpointsArePublic(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()
	c := f.client(t)

	body := f.expect(t, c, http.MethodGet, "/health", nil, http.StatusOK)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	// Unauthenticated callers never see check details
	if _, ok := body["checks"]; ok {
		t.Error("public health response should not include checks")
	}

	f.expect(t, c, http.MethodGet, "/health/live", nil, http.StatusOK)
	f.expect(t, c, http.MethodGet, "/health/ready", nil, http.StatusOK)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()
	c := f.client(t)

	resp := f.do(t, c, http.MethodGet, "/api/sections", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestSignupRequiresAuthorization(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	f.expect(t, f.client(t), http.MethodPost, "/api/signup",
		SignupRequest{Email: "stranger@example.com", Password: "long-enough-pw", Name: "Stranger"},
		http.StatusForbidden)
}

func TestLoginAndMe(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	c := f.client(t)
	f.login(t, c, testMainAdminEmail, testMainAdminPassword)

	body := f.expect(t, c, http.MethodGet, "/api/me", nil, http.StatusOK)
	data := dataField(t, body)
	if data["email"] != testMainAdminEmail {
		t.Errorf("email = %v, want %v", data["email"], testMainAdminEmail)
	}
	if _, ok := data["password_hash"]; ok {
		t.Error("password hash must not appear in API responses")
	}

	f.expect(t, c, http.MethodPost, "/api/logout", nil, http.StatusOK)
	resp := f.do(t, c, http.MethodGet, "/api/me", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	f.expect(t, f.client(t), http.MethodPost, "/api/login",
		LoginRequest{Email: testMainAdminEmail, Password: "wrong"}, http.StatusUnauthorized)
}

func TestPreviewCommitFlow(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	editor := f.provisionUser(t, admin, "editor@example.com", "editor-password")

	// Grant edit and view on hero
	editorUser, err := f.queries.GetUserByEmail(context.Background(), "editor@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	f.expect(t, admin, http.MethodPost, "/api/permissions", AssignPermissionsRequest{
		UserID: editorUser.ID, Section: "hero", CanView: true, CanEdit: true,
	}, http.StatusOK)

	// Preview stages without persisting
	f.expect(t, editor, http.MethodPost, "/api/sections/hero/preview",
		map[string]any{"title": "Draft"}, http.StatusOK)
	resp := f.do(t, editor, http.MethodGet, "/api/sections/hero", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("persisted section before commit: status = %d, want 404", resp.StatusCode)
	}

	// The editing view shows the staged document
	body := f.expect(t, editor, http.MethodGet, "/api/sections/hero/edit", nil, http.StatusOK)
	if dataField(t, body)["staged"] != true {
		t.Error("editing view should be marked staged")
	}

	// Commit persists section and history
	body = f.expect(t, editor, http.MethodPost, "/api/sections/hero/commit",
		CommitSectionRequest{}, http.StatusOK)
	data := dataField(t, body)
	history, ok := data["history"].(map[string]any)
	if !ok {
		t.Fatalf("commit response has no history: %v", data)
	}
	if history["change_type"] != "create" {
		t.Errorf("change_type = %v, want create", history["change_type"])
	}

	body = f.expect(t, editor, http.MethodGet, "/api/sections/hero", nil, http.StatusOK)
	if dataField(t, body)["section"] != "hero" {
		t.Errorf("section = %v, want hero", dataField(t, body)["section"])
	}
}

func TestEditWithoutViewCannotRead(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	editor := f.provisionUser(t, admin, "editonly@example.com", "editor-password")

	user, err := f.queries.GetUserByEmail(context.Background(), "editonly@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	f.expect(t, admin, http.MethodPost, "/api/permissions", AssignPermissionsRequest{
		UserID: user.ID, Section: "hero", CanEdit: true,
	}, http.StatusOK)

	// Seed the section as main admin
	f.expect(t, admin, http.MethodPost, "/api/sections/hero/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"title":"Live"}`)}, http.StatusOK)

	// Edit alone does not include view
	resp := f.do(t, editor, http.MethodGet, "/api/sections/hero", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	// The check endpoint agrees
	body := f.expect(t, editor, http.MethodGet, "/api/permissions/check?section=hero&capability=view", nil, http.StatusOK)
	if dataField(t, body)["allowed"] != false {
		t.Error("view should not be allowed")
	}
	body = f.expect(t, editor, http.MethodGet, "/api/permissions/check?section=hero&capability=edit", nil, http.StatusOK)
	if dataField(t, body)["allowed"] != true {
		t.Error("edit should be allowed")
	}
}

func TestHistoryAndRevert(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)

	f.expect(t, admin, http.MethodPost, "/api/sections/about/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"title":"v1"}`)}, http.StatusOK)
	f.expect(t, admin, http.MethodPost, "/api/sections/about/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"title":"v2"}`)}, http.StatusOK)

	body := f.expect(t, admin, http.MethodGet, "/api/history?section=about", nil, http.StatusOK)
	entries, ok := body["data"].([]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("history entries = %v, want 2", body["data"])
	}

	// Newest first: entries[0] is the v1->v2 update
	newest := entries[0].(map[string]any)
	if newest["change_type"] != "update" {
		t.Errorf("newest change_type = %v, want update", newest["change_type"])
	}
	entryID := int64(newest["id"].(float64))

	body = f.expect(t, admin, http.MethodPost, fmt.Sprintf("/api/history/%d/revert", entryID), nil, http.StatusOK)
	data := dataField(t, body)
	historyEntry := data["history"].(map[string]any)
	if historyEntry["change_type"] != "update" {
		t.Errorf("revert change_type = %v, want update", historyEntry["change_type"])
	}

	// The creation entry has nothing to revert to
	oldest := entries[1].(map[string]any)
	createID := int64(oldest["id"].(float64))
	f.expect(t, admin, http.MethodPost, fmt.Sprintf("/api/history/%d/revert", createID), nil, http.StatusUnprocessableEntity)
}

func TestCommitConflictMapsTo409(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)

	f.expect(t, admin, http.MethodPost, "/api/sections/banner/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"text":"v1"}`)}, http.StatusOK)

	// Read the live version, then overwrite it out from under ourselves
	body := f.expect(t, admin, http.MethodGet, "/api/sections/banner", nil, http.StatusOK)
	staleRaw, err := json.Marshal(dataField(t, body)["updated_at"])
	if err != nil {
		t.Fatalf("marshal updated_at: %v", err)
	}

	f.expect(t, admin, http.MethodPost, "/api/sections/banner/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"text":"v2"}`)}, http.StatusOK)

	req := map[string]json.RawMessage{
		"payload":      json.RawMessage(`{"text":"v3"}`),
		"base_version": staleRaw,
	}
	f.expect(t, admin, http.MethodPost, "/api/sections/banner/commit", req, http.StatusConflict)
}

func TestEmailLifecycle(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)

	body := f.expect(t, admin, http.MethodPost, "/api/emails",
		AuthorizeEmailRequest{Email: "Guest@Example.com ", Notes: "contractor"}, http.StatusCreated)
	data := dataField(t, body)
	if data["email"] != "guest@example.com" {
		t.Errorf("email = %v, want normalized guest@example.com", data["email"])
	}
	id := int64(data["id"].(float64))

	// Duplicate active authorization
	f.expect(t, admin, http.MethodPost, "/api/emails",
		AuthorizeEmailRequest{Email: "guest@example.com"}, http.StatusConflict)

	// Permanent deletion requires revocation first, and confirm=true
	f.expect(t, admin, http.MethodDelete, fmt.Sprintf("/api/emails/%d?confirm=true", id), nil, http.StatusBadRequest)
	f.expect(t, admin, http.MethodPost, fmt.Sprintf("/api/emails/%d/revoke", id), nil, http.StatusOK)
	f.expect(t, admin, http.MethodDelete, fmt.Sprintf("/api/emails/%d", id), nil, http.StatusBadRequest)
	f.expect(t, admin, http.MethodPost, fmt.Sprintf("/api/emails/%d/reactivate", id), nil, http.StatusOK)
	f.expect(t, admin, http.MethodPost, fmt.Sprintf("/api/emails/%d/revoke", id), nil, http.StatusOK)
	f.expect(t, admin, http.MethodDelete, fmt.Sprintf("/api/emails/%d?confirm=true", id), nil, http.StatusOK)

	body = f.expect(t, admin, http.MethodGet, "/api/emails", nil, http.StatusOK)
	if entries, ok := body["data"].([]any); ok {
		for _, e := range entries {
			if e.(map[string]any)["email"] == "guest@example.com" {
				t.Error("deleted authorization still listed")
			}
		}
	}
}

func TestRegistryRoutesRequireAdminRole(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	regular := f.provisionUser(t, admin, "user@example.com", "user-password")

	resp := f.do(t, regular, http.MethodGet, "/api/emails", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	resp = f.do(t, regular, http.MethodGet, "/api/audit", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("audit status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestSetRoleIsMainAdminOnly(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	f.provisionUser(t, admin, "promotee@example.com", "some-password")
	other := f.provisionUser(t, admin, "other@example.com", "some-password")

	// A plain user cannot change roles
	f.expect(t, other, http.MethodPut, "/api/users/role",
		SetRoleRequest{Email: "promotee@example.com", Role: "admin"}, http.StatusForbidden)

	body := f.expect(t, admin, http.MethodPut, "/api/users/role",
		SetRoleRequest{Email: "promotee@example.com", Role: "admin"}, http.StatusOK)
	if dataField(t, body)["role"] != "admin" {
		t.Errorf("role = %v, want admin", dataField(t, body)["role"])
	}

	// Unknown email maps to 404
	f.expect(t, admin, http.MethodPut, "/api/users/role",
		SetRoleRequest{Email: "ghost@example.com", Role: "admin"}, http.StatusNotFound)
}

func TestAuditLogRecordsPrivilegedOperations(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	f.expect(t, admin, http.MethodPost, "/api/emails",
		AuthorizeEmailRequest{Email: "tracked@example.com"}, http.StatusCreated)

	body := f.expect(t, admin, http.MethodGet, "/api/audit", nil, http.StatusOK)
	entries, ok := body["data"].([]any)
	if !ok || len(entries) == 0 {
		t.Fatalf("audit entries = %v, want at least 1", body["data"])
	}

	var sawAuthorize, sawLogin bool
	for _, e := range entries {
		switch e.(map[string]any)["action_type"] {
		case "authorize_email":
			sawAuthorize = true
		case "login":
			sawLogin = true
		}
	}
	if !sawAuthorize {
		t.Error("authorize_email action not recorded")
	}
	if !sawLogin {
		t.Error("login action not recorded")
	}
}

func TestListSectionsFiltersByViewCapability(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	f.expect(t, admin, http.MethodPost, "/api/sections/public_info/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"a":1}`)}, http.StatusOK)
	f.expect(t, admin, http.MethodPost, "/api/sections/secret_info/commit",
		CommitSectionRequest{Payload: json.RawMessage(`{"b":2}`)}, http.StatusOK)

	viewer := f.provisionUser(t, admin, "viewer@example.com", "viewer-password")
	user, err := f.queries.GetUserByEmail(context.Background(), "viewer@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	f.expect(t, admin, http.MethodPost, "/api/permissions", AssignPermissionsRequest{
		UserID: user.ID, Section: "public_info", CanView: true,
	}, http.StatusOK)

	body := f.expect(t, viewer, http.MethodGet, "/api/sections", nil, http.StatusOK)
	entries, _ := body["data"].([]any)
	if len(entries) != 1 {
		t.Fatalf("visible sections = %d, want 1", len(entries))
	}
	if entries[0].(map[string]any)["section"] != "public_info" {
		t.Errorf("visible section = %v, want public_info", entries[0].(map[string]any)["section"])
	}

	// Main admin sees everything
	body = f.expect(t, admin, http.MethodGet, "/api/sections", nil, http.StatusOK)
	if entries, _ := body["data"].([]any); len(entries) != 2 {
		t.Errorf("admin visible sections = %d, want 2", len(entries))
	}
}

func TestAssignPermissionsIsMainAdminOnly(t *testing.T) {
	f, cleanup := newAPIFixture(t)
	defer cleanup()

	admin := f.client(t)
	f.login(t, admin, testMainAdminEmail, testMainAdminPassword)
	regular := f.provisionUser(t, admin, "plain@example.com", "plain-password")

	user, err := f.queries.GetUserByEmail(context.Background(), "plain@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}

	f.expect(t, regular, http.MethodPost, "/api/permissions", AssignPermissionsRequest{
		UserID: user.ID, Section: "hero", CanView: true,
	}, http.StatusForbidden)
}
