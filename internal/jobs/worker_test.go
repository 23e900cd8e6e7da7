package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/substrate-kb/substrate/internal/service"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDecayRunner is a mock implementation of DecayRunner
type MockDecayRunner struct {
	mock.Mock
}

func (m *MockDecayRunner) RunOnce(ctx context.Context) (*service.DecayRunResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DecayRunResult), args.Error(1)
}

// MockSnapshotSink is a mock implementation of SnapshotSink
type MockSnapshotSink struct {
	mock.Mock
}

func (m *MockSnapshotSink) PutSnapshot(ctx context.Context, r io.Reader, takenAt time.Time) (string, error) {
	args := m.Called(ctx, r, takenAt)
	return args.String(0), args.Error(1)
}

type stubSnapshotSource struct {
	payload []byte
	err     error
}

func (s *stubSnapshotSource) WriteSnapshot(w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := w.Write(s.payload)
	return err
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("decay", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("decay", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestDecaySweeper_ProcessJobs(t *testing.T) {
	runner := new(MockDecayRunner)
	runner.On("RunOnce", mock.Anything).Return(&service.DecayRunResult{Updated: 5, Skipped: 1}, nil)

	sweeper := NewDecaySweeper(runner)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestDecaySweeper_ProcessJobs_Error(t *testing.T) {
	runner := new(MockDecayRunner)
	runner.On("RunOnce", mock.Anything).Return(nil, errors.New("store down"))

	sweeper := NewDecaySweeper(runner)
	err := sweeper.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decay sweep failed")
}

func TestSnapshotPublisher_ProcessJobs(t *testing.T) {
	sink := new(MockSnapshotSink)
	sink.On("PutSnapshot", mock.Anything, mock.Anything, mock.Anything).Return("snapshots/x.gob", nil)

	publisher := NewSnapshotPublisher(&stubSnapshotSource{payload: []byte("payload")}, sink)
	err := publisher.ProcessJobs(context.Background())

	assert.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestSnapshotPublisher_ProcessJobs_SerializeError(t *testing.T) {
	sink := new(MockSnapshotSink)

	publisher := NewSnapshotPublisher(&stubSnapshotSource{err: errors.New("boom")}, sink)
	err := publisher.ProcessJobs(context.Background())

	assert.Error(t, err)
	sink.AssertNotCalled(t, "PutSnapshot", mock.Anything, mock.Anything, mock.Anything)
}
