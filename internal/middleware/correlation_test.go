package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webrag/internal/middleware"
)

func TestCorrelationID(t *testing.T) {
	t.Run("propagates client id", func(t *testing.T) {
		var seen string
		h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.GetCorrelationID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Correlation-ID", "client-id-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "client-id-1", seen)
		assert.Equal(t, "client-id-1", rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		var seen string
		h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.GetCorrelationID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		require.NotEmpty(t, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})

	t.Run("worker contexts carry injected id", func(t *testing.T) {
		ctx := middleware.WithCorrelationID(t.Context(), "job-corr")
		assert.Equal(t, "job-corr", middleware.GetCorrelationID(ctx))
	})
}
