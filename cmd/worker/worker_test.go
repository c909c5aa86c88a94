package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/domain/reports"
)

type fakeDigests struct {
	mu        sync.Mutex
	calls     int
	threshold int64
	window    int
	traced    bool
	err       error
}

func (f *fakeDigests) Digest(ctx context.Context, threshold int64, windowDays int) (*reports.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.threshold = threshold
	f.window = windowDays
	f.traced = appctx.GetRequestID(ctx) != ""
	if f.err != nil {
		return nil, f.err
	}
	return &reports.Digest{LowStock: 2, OutOfStock: 1, ProductsViewed: 5}, nil
}

type fakeSink struct {
	mu   sync.Mutex
	last *reports.Digest
}

func (f *fakeSink) SetDigest(d *reports.Digest, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = d
}

type fakeCleaner struct {
	mu        sync.Mutex
	retention time.Duration
	calls     int
}

func (f *fakeCleaner) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.retention = retention
	return 3, nil
}

type fakeKeys struct{ calls int }

func (f *fakeKeys) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 0, nil
}

func TestWorker_ScanPublishesDigest(t *testing.T) {
	digests := &fakeDigests{}
	sink := &fakeSink{}
	w := NewWorker(WorkerConfig{
		Digests:           digests,
		Sink:              sink,
		LowStockThreshold: 7,
		ExpiryWindowDays:  45,
	})

	w.Scan(context.Background())

	assert.Equal(t, 1, digests.calls)
	assert.Equal(t, int64(7), digests.threshold)
	assert.Equal(t, 45, digests.window)
	assert.True(t, digests.traced)
	require.NotNil(t, sink.last)
	assert.Equal(t, 1, sink.last.OutOfStock)
}

func TestWorker_ScanFailureKeepsPreviousDigest(t *testing.T) {
	sink := &fakeSink{last: &reports.Digest{LowStock: 9}}
	w := NewWorker(WorkerConfig{
		Digests: &fakeDigests{err: errors.New("connection refused")},
		Sink:    sink,
	})

	w.Scan(context.Background())

	assert.Equal(t, 9, sink.last.LowStock)
}

func TestWorker_Cleanup(t *testing.T) {
	cleaner := &fakeCleaner{}

	NewWorker(WorkerConfig{Audit: cleaner, AuditRetention: 48 * time.Hour}).Cleanup(context.Background())
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 48*time.Hour, cleaner.retention)

	keys := &fakeKeys{}
	NewWorker(WorkerConfig{Audit: cleaner, Idempotency: keys}).Cleanup(context.Background())
	assert.Equal(t, 1, cleaner.calls, "zero retention disables audit cleanup")
	assert.Equal(t, 1, keys.calls)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	digests := &fakeDigests{}
	cleaner := &fakeCleaner{}
	w := NewWorker(WorkerConfig{
		Digests:         digests,
		Audit:           cleaner,
		Sink:            &fakeSink{},
		ScanInterval:    time.Hour,
		CleanupInterval: time.Hour,
		AuditRetention:  24 * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		cleaner.mu.Lock()
		defer cleaner.mu.Unlock()
		return cleaner.calls == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	digests.mu.Lock()
	defer digests.mu.Unlock()
	assert.Equal(t, 1, digests.calls)
}
