package console

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_Embedded(t *testing.T) {
	h := Handler("")

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "<!DOCTYPE html>"},
		{"/console.js", "WebSocket"},
		{"/console.css", "table"},
		{"/actions/deep/route", "<!DOCTYPE html>"},
		{"/missing.js", "<!DOCTYPE html>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: status %d, want 200", tt.path, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("GET %s: body does not contain %q", tt.path, tt.contains)
			}
			if w.Header().Get("Cache-Control") != "no-cache, must-revalidate" {
				t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestHandler_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(`<!DOCTYPE html><p>dev console</p>`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.js"), []byte("// extra"), 0o600); err != nil {
		t.Fatal(err)
	}
	h := Handler(dir)

	if w := get(t, h, "/"); !strings.Contains(w.Body.String(), "dev console") {
		t.Errorf("GET / = %q, want directory index", w.Body.String())
	}
	if w := get(t, h, "/extra.js"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "extra") {
		t.Errorf("GET /extra.js: %d %q", w.Code, w.Body.String())
	}
	if w := get(t, h, "/some/route"); !strings.Contains(w.Body.String(), "dev console") {
		t.Error("fallback did not serve the directory index")
	}
}

func TestHandler_MissingDirectoryUsesEmbedded(t *testing.T) {
	h := Handler("/nonexistent/console")
	if w := get(t, h, "/"); !strings.Contains(w.Body.String(), "Cue Logic") {
		t.Error("missing directory did not fall back to the embedded console")
	}
}
