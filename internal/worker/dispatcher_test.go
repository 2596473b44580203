package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"webrag/internal/ingest"
	"webrag/internal/ragerr"
	"webrag/internal/worker"
)

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Begin(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLedger) Release(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLedger) Complete(ctx context.Context, id string, chunkCount int, elapsed time.Duration) error {
	return m.Called(ctx, id, chunkCount, elapsed).Error(0)
}

func (m *MockLedger) Fail(ctx context.Context, id string, message, trace string) error {
	return m.Called(ctx, id, message, trace).Error(0)
}

type MockOrchestrator struct{ mock.Mock }

func (m *MockOrchestrator) Run(ctx context.Context, jobID, url string) (ingest.Result, error) {
	args := m.Called(ctx, jobID, url)
	return args.Get(0).(ingest.Result), args.Error(1)
}

func taskMessage(t *testing.T, jobID, url string, attempts uint16) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(worker.TaskPayload{JobID: jobID, URL: url, CorrelationID: "corr-1"})
	require.NoError(t, err)
	m := nsq.NewMessage(nsq.MessageID{'1'}, body)
	m.Attempts = attempts
	return m
}

func TestDispatcher_HandleMessage(t *testing.T) {
	t.Run("successful run completes the job", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		ledger.On("Begin", mock.Anything, "job-1").Return(nil)
		orch.On("Run", mock.Anything, "job-1", "http://example.com").
			Return(ingest.Result{ChunkCount: 7, Elapsed: time.Second}, nil)
		ledger.On("Complete", mock.Anything, "job-1", 7, time.Second).Return(nil)

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 1))
		assert.NoError(t, err)
		ledger.AssertExpectations(t)
		orch.AssertExpectations(t)
	})

	t.Run("duplicate delivery drops without running", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		ledger.On("Begin", mock.Anything, "job-1").Return(ragerr.ErrAlreadyProcessing)

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 2))
		assert.NoError(t, err)
		orch.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing job drops message", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		ledger.On("Begin", mock.Anything, "job-x").Return(ragerr.ErrJobNotFound)

		err := d.HandleMessage(taskMessage(t, "job-x", "http://example.com", 1))
		assert.NoError(t, err)
	})

	t.Run("transient failure releases job and requeues", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		transient := &ragerr.FetchError{URL: "http://example.com", StatusCode: 503, Transient: true}
		ledger.On("Begin", mock.Anything, "job-1").Return(nil)
		orch.On("Run", mock.Anything, "job-1", "http://example.com").Return(ingest.Result{}, transient)
		ledger.On("Release", mock.Anything, "job-1").Return(nil)

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 1))
		assert.Error(t, err)
		ledger.AssertExpectations(t)
		ledger.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("permanent failure marks job failed and finishes message", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		permanent := &ragerr.FetchError{URL: "http://example.com", StatusCode: 404}
		ledger.On("Begin", mock.Anything, "job-1").Return(nil)
		orch.On("Run", mock.Anything, "job-1", "http://example.com").Return(ingest.Result{}, permanent)
		ledger.On("Fail", mock.Anything, "job-1", permanent.Error(), mock.Anything).Return(nil)

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 1))
		assert.NoError(t, err)
		ledger.AssertExpectations(t)
		ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("exhausted attempts fail even transient errors", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 3)

		transient := &ragerr.EmbeddingError{Transient: true, Err: errors.New("overloaded")}
		ledger.On("Begin", mock.Anything, "job-1").Return(nil)
		orch.On("Run", mock.Anything, "job-1", "http://example.com").Return(ingest.Result{}, transient)
		ledger.On("Fail", mock.Anything, "job-1", transient.Error(), mock.Anything).Return(nil)

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 3))
		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("poison pills are dropped", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		for _, body := range [][]byte{nil, []byte("not json"), []byte(`{"url":"http://x"}`)} {
			m := nsq.NewMessage(nsq.MessageID{'p'}, body)
			assert.NoError(t, d.HandleMessage(m))
		}
		ledger.AssertNotCalled(t, "Begin", mock.Anything, mock.Anything)
	})

	t.Run("unexpected begin error requeues", func(t *testing.T) {
		ledger := new(MockLedger)
		orch := new(MockOrchestrator)
		d := worker.NewDispatcher(ledger, orch, 5)

		ledger.On("Begin", mock.Anything, "job-1").Return(errors.New("db down"))

		err := d.HandleMessage(taskMessage(t, "job-1", "http://example.com", 1))
		assert.Error(t, err)
		orch.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})
}
