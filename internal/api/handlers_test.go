package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/engine"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/item"
	"github.com/nerrad567/cuelogic-core/internal/module"
)

// ─── Actions ────────────────────────────────────────────────────────────────

func TestActions_CRUD(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"House Lights"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	created := decode[ActionResponse](t, body)
	if created.ShortName != "houseLights" || created.Address != "/actions/houseLights" || !created.Enabled {
		t.Errorf("created = %+v", created)
	}

	_, body = env.do(t, http.MethodGet, "/api/v1/actions", "")
	list := decode[struct {
		Actions []ActionResponse `json:"actions"`
		Count   int              `json:"count"`
	}](t, body)
	if list.Count != 1 || list.Actions[0].NiceName != "House Lights" {
		t.Errorf("list = %+v", list)
	}

	resp, body = env.do(t, http.MethodGet, "/api/v1/actions/houseLights", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"snapshot"`) {
		t.Errorf("get status = %d: %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPatch, "/api/v1/actions/houseLights",
		`{"enabled":false,"role":"both","validation_time":1.5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d: %s", resp.StatusCode, body)
	}
	updated := decode[ActionResponse](t, body)
	if updated.Enabled || updated.Role != "both" || updated.ValidationTime != 1.5 {
		t.Errorf("updated = %+v", updated)
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/v1/actions/houseLights", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/v1/actions/houseLights", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestActions_ConcurrentDelete(t *testing.T) {
	env := newTestEnv(t)
	if resp, body := env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodDelete, env.http.URL+"/api/v1/actions/go", nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Errorf("DELETE: %v", err)
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	deleted := 0
	for code := range codes {
		switch code {
		case http.StatusNoContent:
			deleted++
		case http.StatusNotFound:
		default:
			t.Errorf("delete status = %d, want 204 or 404", code)
		}
	}
	if deleted != 1 {
		t.Errorf("deletes succeeded %d times, want 1", deleted)
	}
}

func TestActions_UpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad role", `{"role":"sideways"}`, http.StatusUnprocessableEntity},
		{"negative time", `{"validation_time":-1}`, http.StatusUnprocessableEntity},
		{"empty name", `{"name":""}`, http.StatusUnprocessableEntity},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPatch, "/api/v1/actions/go", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}

	if resp, _ := env.do(t, http.MethodPatch, "/api/v1/actions/missing", `{}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", resp.StatusCode)
	}
}

func TestActions_TriggerAndExecutions(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)

	resp, body := env.do(t, http.MethodPost, "/api/v1/actions/go/trigger?valid=false", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d: %s", resp.StatusCode, body)
	}
	if got := decode[map[string]any](t, body); got["valid"] != false || got["action"] != "/actions/go" {
		t.Errorf("trigger response = %v", got)
	}

	waitFor(t, "execution record", func() bool {
		recs, err := env.store.Executions(context.Background(), "show", "/actions/go", 0)
		return err == nil && len(recs) == 1
	})

	_, body = env.do(t, http.MethodGet, "/api/v1/actions/go/executions?limit=5", "")
	got := decode[map[string]any](t, body)
	if got["count"] != float64(1) {
		t.Fatalf("executions = %v", got)
	}
	rec := got["executions"].([]any)[0].(map[string]any)
	if rec["trigger"] != "manual" || rec["valid"] != false {
		t.Errorf("record = %v", rec)
	}

	if resp, _ := env.do(t, http.MethodPost, "/api/v1/actions/go/trigger?valid=maybe", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad valid status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/v1/actions/go/executions?limit=-1", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestRoles_Trigger(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Open"}`)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Close"}`)
	env.do(t, http.MethodPatch, "/api/v1/actions/open", `{"role":"activate"}`)
	env.do(t, http.MethodPatch, "/api/v1/actions/close", `{"role":"deactivate"}`)

	resp, body := env.do(t, http.MethodPost, "/api/v1/roles/activate", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if got := decode[map[string]any](t, body); got["triggered"] != float64(1) {
		t.Errorf("response = %v", got)
	}

	if resp, _ := env.do(t, http.MethodPost, "/api/v1/roles/sideways", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown role status = %d, want 400", resp.StatusCode)
	}
}

// ─── Modules ────────────────────────────────────────────────────────────────

func TestModules(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/modules", `{"type":"Virtual","name":"Flags"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	created := decode[ModuleResponse](t, body)
	if created.ShortName != "flags" || created.Type != module.TypeVirtual || !created.Enabled {
		t.Errorf("created = %+v", created)
	}

	_, body = env.do(t, http.MethodGet, "/api/v1/modules", "")
	if got := decode[map[string]any](t, body); got["count"] != float64(1) {
		t.Errorf("list = %v", got)
	}

	_, body = env.do(t, http.MethodGet, "/api/v1/modules/types", "")
	if !strings.Contains(string(body), module.TypeMQTT) || !strings.Contains(string(body), module.TypeVirtual) {
		t.Errorf("types = %s", body)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown type", `{"type":"Teleporter"}`, http.StatusUnprocessableEntity},
		{"missing type", `{"name":"x"}`, http.StatusUnprocessableEntity},
		{"invalid json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp, _ := env.do(t, http.MethodPost, "/api/v1/modules", tt.body); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/v1/modules/flags", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, "/api/v1/modules/flags", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

// ─── Project ────────────────────────────────────────────────────────────────

func TestProject_ExportFormats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)

	tests := []struct {
		name        string
		query       string
		contentType string
		contains    string
	}{
		{"json default", "", "application/json", `"niceName": "Go"`},
		{"yaml", "?format=yaml", "application/yaml", "niceName: Go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/project"+tt.query, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body does not contain %q:\n%s", tt.contains, body)
			}
		})
	}

	if resp, _ := env.do(t, http.MethodGet, "/api/v1/project?format=xml", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("xml status = %d, want 400", resp.StatusCode)
	}
}

func TestProject_ReplaceAndSave(t *testing.T) {
	src := newTestEnv(t)
	src.do(t, http.MethodPost, "/api/v1/modules", `{"type":"Virtual","name":"Flags"}`)
	src.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)
	_, exported := src.do(t, http.MethodGet, "/api/v1/project", "")

	dst := newTestEnv(t)
	resp, body := dst.do(t, http.MethodPut, "/api/v1/project", string(exported))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace status = %d: %s", resp.StatusCode, body)
	}
	got := decode[map[string]any](t, body)
	if got["status"] != "restored" || got["modules"] != float64(1) || got["actions"] != float64(1) {
		t.Errorf("replace response = %v", got)
	}
	if _, ok := got["warnings"]; ok {
		t.Errorf("unexpected warnings: %v", got["warnings"])
	}

	resp, body = dst.do(t, http.MethodPost, "/api/v1/project/save", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d: %s", resp.StatusCode, body)
	}
	stored, err := dst.store.Load(context.Background(), "show")
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	if stored.Containers["actions"] == nil || len(stored.Containers["actions"].Items) != 1 {
		t.Errorf("stored actions = %+v", stored.Containers["actions"])
	}

	if resp, _ := dst.do(t, http.MethodPut, "/api/v1/project", "{"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", resp.StatusCode)
	}
}

func TestProject_Reset(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/modules", `{"type":"Virtual","name":"Flags"}`)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)

	if resp, _ := env.do(t, http.MethodPost, "/api/v1/project/reset", `{"confirm":"yes"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unconfirmed status = %d, want 400", resp.StatusCode)
	}
	if env.engine.Project().Actions().Len() != 1 {
		t.Fatal("unconfirmed reset removed actions")
	}

	resp, body := env.do(t, http.MethodPost, "/api/v1/project/reset", `{"confirm":"RESET PROJECT","save":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d: %s", resp.StatusCode, body)
	}
	got := decode[ResetResponse](t, body)
	if got.Removed["actions"] != 1 || got.Removed["modules"] != 1 {
		t.Errorf("removed = %v", got.Removed)
	}
	if env.engine.Project().Actions().Len() != 0 || env.engine.Project().Modules().Len() != 0 {
		t.Error("project not empty after reset")
	}
	if _, err := env.store.Load(context.Background(), "show"); err != nil {
		t.Errorf("reset with save did not store the project: %v", err)
	}
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func TestAudit_RecordsChanges(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/actions", `{"name":"Go"}`)
	env.do(t, http.MethodPatch, "/api/v1/actions/go", `{"role":"activate"}`)
	env.do(t, http.MethodPost, "/api/v1/roles/activate", "")
	env.do(t, http.MethodDelete, "/api/v1/actions/go", "")

	_, body := env.do(t, http.MethodGet, "/api/v1/audit?entity_type=action", "")
	got := decode[audit.ListResult](t, body)
	if got.Total != 3 {
		t.Fatalf("action entries = %d, want 3: %s", got.Total, body)
	}
	wantActions := []string{audit.ActionDelete, audit.ActionUpdate, audit.ActionCreate}
	for i, e := range got.Entries {
		if e.Action != wantActions[i] || e.EntityID != "/actions/go" {
			t.Errorf("entry %d = (%s, %s), want (%s, /actions/go)", i, e.Action, e.EntityID, wantActions[i])
		}
		if e.RequestID == "" {
			t.Errorf("entry %d has no request id", i)
		}
	}
	if got.Entries[1].Details["role"] != "activate" {
		t.Errorf("update details = %v", got.Entries[1].Details)
	}

	_, body = env.do(t, http.MethodGet, "/api/v1/audit?entity_type=role", "")
	roles := decode[audit.ListResult](t, body)
	if roles.Total != 1 || roles.Entries[0].EntityID != "activate" || roles.Entries[0].Details["triggered"] != float64(1) {
		t.Errorf("role entries = %+v", roles)
	}

	if resp, _ := env.do(t, http.MethodGet, "/api/v1/audit?limit=x", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestAudit_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	srv, err := New(Deps{Logger: env.srv.logger, Engine: env.engine})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}

	// Changes still work without an audit log.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/actions", strings.NewReader(`{"name":"Go"}`)))
	if w.Code != http.StatusCreated {
		t.Errorf("create status = %d, want 201", w.Code)
	}
}

// ─── Console ────────────────────────────────────────────────────────────────

func TestConsole(t *testing.T) {
	env := newTestEnv(t)
	srv, err := New(Deps{
		Config: config.APIConfig{Console: config.ConsoleConfig{Enabled: true}},
		Logger: env.srv.logger,
		Engine: env.engine,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	handler := srv.Handler()

	tests := []struct {
		path     string
		want     int
		contains string
	}{
		{"/console", http.StatusMovedPermanently, ""},
		{"/console/", http.StatusOK, "<!DOCTYPE html>"},
		{"/console/console.js", http.StatusOK, "/api/v1"},
		{"/console/unknown/route", http.StatusOK, "<!DOCTYPE html>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}

	// Disabled by default.
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/console/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("disabled console status = %d, want 404", w.Code)
	}
}

// ─── Errors ─────────────────────────────────────────────────────────────────

func TestWriteDomainError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"action not found", fmt.Errorf("%w: %q", action.ErrActionNotFound, "x"), http.StatusNotFound, ErrCodeNotFound},
		{"wrapped unknown type", fmt.Errorf("%w: %w", item.ErrCreateFailed, module.ErrUnknownType), http.StatusUnprocessableEntity, ErrCodeValidation},
		{"duplicate user", auth.ErrUsernameExists, http.StatusConflict, ErrCodeConflict},
		{"no execution log", engine.ErrNoExecutionLog, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"unmapped", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.srv.writeDomainError(w, tt.err, "fallback")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			got := decode[Error](t, w.Body.Bytes())
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantStatus == http.StatusInternalServerError && got.Message != "fallback" {
				t.Errorf("internal error leaked %q", got.Message)
			}
		})
	}
}

func TestRouterMisses(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/nothing", "")
	if resp.StatusCode != http.StatusNotFound || decode[Error](t, body).Code != ErrCodeNotFound {
		t.Errorf("unknown route = %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodPatch, "/api/v1/health", "")
	if resp.StatusCode != http.StatusMethodNotAllowed || decode[Error](t, body).Code != ErrCodeMethodNotAllowed {
		t.Errorf("wrong method = %d %s", resp.StatusCode, body)
	}
}
