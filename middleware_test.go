package pages

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := LoggerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	t.Run("generated id", func(t *testing.T) {
		buf.Reset()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/events/42", nil))

		id := rr.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		require.Contains(t, buf.String(), "id="+id)
		require.Contains(t, buf.String(), "status=418")
		require.Contains(t, buf.String(), "url=/events/42")
	})

	t.Run("client id", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, id)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, id, rr.Header().Get(RequestIDHeader))
	})

	t.Run("invalid client id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "not a uuid")

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.NotEqual(t, "not a uuid", rr.Header().Get(RequestIDHeader))
	})
}
