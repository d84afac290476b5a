package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecosight/ecosight/pkg/threat"
)

func testModels(t *testing.T) *Models {
	t.Helper()
	m, err := NewModels(&fakeExtractor{dim: 4, frames: 1}, &fakeClassifier{in: 4, scores: []float32{1, 0, 0, 0}}, threat.DefaultLabelTable())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLoader_LoadOnce(t *testing.T) {
	m := testModels(t)
	var calls atomic.Int32
	ld := NewLoader(func(context.Context) (*Models, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return m, nil
	}, WithLoaderLogger(quietLogger))

	if ld.Ready() {
		t.Fatal("Ready before load")
	}
	if _, err := ld.Models(); !errors.Is(err, threat.ErrModelUnavailable) {
		t.Fatalf("Models before load: err = %v, want ErrModelUnavailable", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ld.Load(context.Background())
			if err != nil || got != m {
				t.Errorf("Load = %p, %v", got, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("load called %d times, want 1", n)
	}
	if !ld.Ready() {
		t.Error("not Ready after load")
	}
	if got, err := ld.Models(); err != nil || got != m {
		t.Errorf("Models = %p, %v", got, err)
	}
}

func TestLoader_RunRetries(t *testing.T) {
	m := testModels(t)
	var calls atomic.Int32
	ld := NewLoader(func(context.Context) (*Models, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("not yet")
		}
		return m, nil
	}, WithLoaderLogger(quietLogger))

	err := ld.Run(context.Background(), Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("load called %d times, want 3", n)
	}
	if ld.LastError() != nil {
		t.Errorf("LastError = %v after success", ld.LastError())
	}
}

func TestLoader_RunConfigErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	ld := NewLoader(func(context.Context) (*Models, error) {
		calls.Add(1)
		return nil, threat.ConfigError("labels", errors.New("5 labels for 4 outputs"))
	}, WithLoaderLogger(quietLogger))

	err := ld.Run(context.Background(), Backoff{Initial: time.Millisecond})
	if !errors.Is(err, threat.ErrConfig) {
		t.Fatalf("Run = %v, want ErrConfig", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("load called %d times, want 1", n)
	}
}

func TestLoader_RunCanceled(t *testing.T) {
	ld := NewLoader(func(context.Context) (*Models, error) {
		return nil, errors.New("down")
	}, WithLoaderLogger(quietLogger))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ld.Run(ctx, Backoff{Initial: 5 * time.Millisecond}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want DeadlineExceeded", err)
	}
	if ld.LastError() == nil {
		t.Error("LastError should hold the last failure")
	}
}

func TestLoader_NilModels(t *testing.T) {
	ld := NewLoader(func(context.Context) (*Models, error) { return nil, nil }, WithLoaderLogger(quietLogger))
	if _, err := ld.Load(context.Background()); !errors.Is(err, threat.ErrConfig) {
		t.Errorf("Load = %v, want ErrConfig", err)
	}
}
