package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spacey-js/spacey/engine"
)

// ErrStopped is returned by Do after Stop.
var ErrStopped = errors.New("server: worker stopped")

// request is a unit of work to be executed on the engine goroutine.
type request struct {
	fn   func(*engine.Engine) any
	done chan result
}

// result holds the return value from an engine operation.
type result struct {
	value any
	err   error
}

// Worker serializes all engine access through a single goroutine. Editor
// requests arrive concurrently; the engine is single-threaded.
type Worker struct {
	eng      *engine.Engine
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(e *engine.Engine) *Worker {
	w := &Worker{
		eng:      e,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the engine, turning a panic into an error.
func (w *Worker) execute(fn func(*engine.Engine) any) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("server: worker panic: %v", r)
		}
	}()
	res.value = fn(w.eng)
	return res
}

// Do runs fn on the engine goroutine and blocks until it completes.
func (w *Worker) Do(fn func(*engine.Engine) any) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
