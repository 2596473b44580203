package job_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"webrag/features/job"
	"webrag/internal/ragerr"
)

func TestHandler_Ingest(t *testing.T) {
	t.Run("accepts valid url with 202", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		handler := job.NewHandler(job.NewService(repo, pub))

		created := &job.Job{ID: "job-1", URL: "http://example.com", Status: job.StatusPending}
		repo.On("Create", mock.Anything, "http://example.com", mock.Anything).Return(created, nil)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		req := httptest.NewRequest("POST", "/ingest-url", strings.NewReader(`{"url":"http://example.com"}`))
		rec := httptest.NewRecorder()
		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "job-1", resp["job_id"])
		assert.Equal(t, "pending", resp["status"])
	})

	t.Run("rejects invalid url with 400", func(t *testing.T) {
		handler := job.NewHandler(job.NewService(new(MockRepo), new(MockPublisher)))

		req := httptest.NewRequest("POST", "/ingest-url", strings.NewReader(`{"url":"ftp://example.com"}`))
		rec := httptest.NewRecorder()
		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	})

	t.Run("rejects malformed body with 400", func(t *testing.T) {
		handler := job.NewHandler(job.NewService(new(MockRepo), new(MockPublisher)))

		req := httptest.NewRequest("POST", "/ingest-url", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()
		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ListFailed(t *testing.T) {
	repo := new(MockRepo)
	handler := job.NewHandler(job.NewService(repo, new(MockPublisher)))

	repo.On("ListByStatus", mock.Anything, job.StatusFailed).Return([]job.Job{
		{ID: "job-1", Status: job.StatusFailed, ErrorMessage: "fetch failed"},
	}, nil)

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	rec := httptest.NewRecorder()
	handler.ListFailed(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var jobs []job.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, job.StatusFailed, jobs[0].Status)
}

func TestHandler_Status(t *testing.T) {
	t.Run("returns job state", func(t *testing.T) {
		repo := new(MockRepo)
		handler := job.NewHandler(job.NewService(repo, new(MockPublisher)))

		repo.On("Get", mock.Anything, "job-1").Return(&job.Job{
			ID:              "job-1",
			URL:             "http://example.com",
			Status:          job.StatusProcessing,
			ChunkCount:      20,
			ProcessedChunks: 12,
		}, nil)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /status/{job_id}", handler.Status)

		req := httptest.NewRequest("GET", "/status/job-1", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var got job.Job
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, job.StatusProcessing, got.Status)
		assert.Equal(t, 12, got.ProcessedChunks)
	})

	t.Run("missing job is 404", func(t *testing.T) {
		repo := new(MockRepo)
		handler := job.NewHandler(job.NewService(repo, new(MockPublisher)))

		repo.On("Get", mock.Anything, "missing").Return(nil, ragerr.ErrJobNotFound)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /status/{job_id}", handler.Status)

		req := httptest.NewRequest("GET", "/status/missing", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
