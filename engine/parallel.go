package engine

import (
	"context"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spacey-js/spacey/cache"
	"github.com/spacey-js/spacey/compiler"
	"github.com/spacey-js/spacey/vm"
)

// ParallelExecutor compiles independent sources on a bounded pool of
// goroutines. Every job gets its own lexer, parser and compiler, so the
// executor itself holds no compilation state.
type ParallelExecutor struct {
	workers int
	group   singleflight.Group
	log     commonlog.Logger
}

// NewParallelExecutor returns an executor running at most workers jobs at
// once. A non-positive count means one per CPU.
func NewParallelExecutor(workers int) *ParallelExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ParallelExecutor{workers: workers, log: commonlog.GetLogger("spacey.parallel")}
}

// Workers returns the concurrency limit.
func (p *ParallelExecutor) Workers() int { return p.workers }

// CompileParallel compiles each source into a chunk. chunks[i] and errs[i]
// belong to sources[i]. Identical sources compiled at the same time share
// one compilation and therefore one chunk.
func (p *ParallelExecutor) CompileParallel(ctx context.Context, sources []string, ts bool) ([]*vm.Chunk, []error) {
	chunks := make([]*vm.Chunk, len(sources))
	errs := make([]error, len(sources))
	p.run(ctx, len(sources), errs, func(i int) error {
		v, err, shared := p.group.Do(cache.Key(sources[i], ts), func() (interface{}, error) {
			return compiler.CompileSource(sources[i], ts)
		})
		if shared {
			p.log.Debugf("job %d shared a compilation", i)
		}
		if err != nil {
			return err
		}
		chunks[i] = v.(*vm.Chunk)
		return nil
	})
	return chunks, errs
}

// ParseParallel parses each source into a syntax tree, indexed like
// CompileParallel.
func (p *ParallelExecutor) ParseParallel(ctx context.Context, sources []string, ts bool) ([]*compiler.Program, []error) {
	progs := make([]*compiler.Program, len(sources))
	errs := make([]error, len(sources))
	p.run(ctx, len(sources), errs, func(i int) error {
		prog, err := compiler.ParseSource(sources[i], ts)
		if err != nil {
			return err
		}
		progs[i] = prog
		return nil
	})
	return progs, errs
}

// run calls job for every index in [0, n) and stores its error in errs.
// Jobs that have not started when ctx is cancelled record ctx.Err(). A
// failing job does not cancel the others.
func (p *ParallelExecutor) run(ctx context.Context, n int, errs []error, job func(int) error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = job(i)
			return nil
		})
	}
	_ = g.Wait()
}
