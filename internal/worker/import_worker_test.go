package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetboard/internal/storage"
)

type fakeImporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeImporter) Import(context.Context) (storage.ImportInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return storage.ImportInfo{}, f.err
	}
	return storage.ImportInfo{ID: int64(f.calls), Source: "test", RecordCount: 3}, nil
}

func (f *fakeImporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestImportWorker_RunOnce(t *testing.T) {
	imp := &fakeImporter{}
	w := NewImportWorker(imp, Config{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	imp.err = errors.New("source unavailable")
	if err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() should return the import error")
	}

	stats := w.Stats()
	if stats.Runs != 2 || stats.Failures != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.LastImport.ID != 1 {
		t.Errorf("LastImport should keep the last success, got %+v", stats.LastImport)
	}
	if stats.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestImportWorker_StartStop(t *testing.T) {
	imp := &fakeImporter{}
	w := NewImportWorker(imp, Config{Interval: 10 * time.Millisecond, RunOnStart: true})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	deadline := time.Now().Add(time.Second)
	for imp.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if imp.count() < 3 {
		t.Fatalf("expected at least 3 imports, got %d", imp.count())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() on a stopped worker error = %v", err)
	}
}

func TestNewImportWorker_DefaultInterval(t *testing.T) {
	w := NewImportWorker(&fakeImporter{}, Config{})
	if w.config.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", w.config.Interval)
	}
}
