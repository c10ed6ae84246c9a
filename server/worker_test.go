package server

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/spacey-js/spacey/engine"
)

func TestWorkerSerializesAccess(t *testing.T) {
	w := NewWorker(engine.New(engine.WithOutput(io.Discard)))
	defer w.Stop()

	if _, err := w.Do(func(e *engine.Engine) any {
		_, err := e.Eval("var n = 0")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Do(func(e *engine.Engine) any {
				_, err := e.Eval("n = n + 1")
				return err
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	v, err := w.Do(func(e *engine.Engine) any {
		n, _ := e.Global("n")
		return n.AsNumber()
	})
	if err != nil || v.(float64) != 20 {
		t.Errorf("n = %v, %v; want 20", v, err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker(engine.New(engine.WithOutput(io.Discard)))
	defer w.Stop()

	if _, err := w.Do(func(*engine.Engine) any { panic("boom") }); err == nil {
		t.Error("panic not reported")
	}
	if v, err := w.Do(func(*engine.Engine) any { return "alive" }); err != nil || v != "alive" {
		t.Errorf("worker dead after panic: %v, %v", v, err)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker(engine.New(engine.WithOutput(io.Discard)))
	w.Stop()
	w.Stop()
	if _, err := w.Do(func(*engine.Engine) any { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v", err)
	}
}
