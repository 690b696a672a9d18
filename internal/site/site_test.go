package site

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSite_EventDetail(t *testing.T) {
	h, err := New(Config{}, slog.Default())
	require.NoError(t, err)

	tests := []struct {
		url        string
		wantStatus int
		wantBody   string
	}{
		{"/events/42", 200, "<h1>EventDetailPage</h1><p>Event ID: 42</p>"},
		{"/events/7f3c", 200, "<h1>EventDetailPage</h1><p>Event ID: 7f3c</p>"},
		{"/", 200, `<h1>Events</h1><p><a href="/events/1">Event 1</a></p>`},
		{"/events/", 404, "Not Found\n"},
		{"/.lib/error", 404, "Not Found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest("GET", tt.url, nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			require.Equal(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestSite_PagesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.chtml"), []byte("<p>local</p>"), 0o644))

	h, err := New(Config{PagesDir: dir}, slog.Default())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "<p>local</p>", rr.Body.String())

	_, err = New(Config{PagesDir: filepath.Join(dir, "missing")}, slog.Default())
	require.Error(t, err)

	_, err = New(Config{PagesDir: filepath.Join(dir, "index.chtml")}, slog.Default())
	require.Error(t, err)
}

func TestSite_ErrorPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lib", "error.chtml"), []byte("<p>oops</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.chtml"), []byte("<p>${ 1 + }</p>"), 0o644))

	h, err := New(Config{PagesDir: dir}, slog.Default())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/bad", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "<p>oops</p>", rr.Body.String())
}
