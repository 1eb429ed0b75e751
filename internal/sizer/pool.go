package sizer

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// Result is the outcome of one directory size computation. A Cached result
// is provisional: the pool recomputes the directory and delivers a second,
// non-cached result for the same generation and path.
type Result struct {
	Gen    uint64
	Path   string
	Size   int64
	Cached bool
	Err    error
}

type task struct {
	ctx  context.Context
	gen  uint64
	path string
}

// Pool runs size computations on a fixed set of workers. Work is submitted
// in generations: submitting a new generation cancels every task of the
// previous one, so a listing that has been replaced stops costing I/O.
// Results are delivered on Results and carry the generation they belong to.
type Pool struct {
	calc   *Calculator
	logger *slog.Logger

	tasks   chan task
	results chan Result

	root       context.Context
	stop       context.CancelFunc
	mu         sync.Mutex
	gen        uint64
	cancelGen  context.CancelFunc
	dispatchWG sync.WaitGroup
	workerWG   sync.WaitGroup
	closeOnce  sync.Once
}

// ResolveWorkers turns a configured worker count into a usable one:
// zero or less means one worker per CPU.
func ResolveWorkers(n int, logger *slog.Logger) int {
	if n > 0 {
		return n
	}
	n = runtime.NumCPU()
	logger.Debug("Size workers set to auto-detect", "detected_cores", n)
	if n <= 0 {
		n = 1
	}
	return n
}

// NewPool starts workers goroutines computing sizes with calc. The pool stops
// when ctx is cancelled or Close is called.
func NewPool(ctx context.Context, calc *Calculator, workers int, logger *slog.Logger) *Pool {
	workers = ResolveWorkers(workers, logger)
	root, stop := context.WithCancel(ctx)
	p := &Pool{
		calc:      calc,
		logger:    logger,
		tasks:     make(chan task, workers*2),
		results:   make(chan Result, workers*2),
		root:      root,
		stop:      stop,
		cancelGen: func() {},
	}
	for i := 0; i < workers; i++ {
		p.workerWG.Add(1)
		go p.work(i)
	}
	return p
}

// Results returns the channel results are delivered on. It is closed by Close.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Generation returns the most recently submitted generation.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Submit cancels the current generation and queues paths under gen.
// It never blocks the caller.
func (p *Pool) Submit(gen uint64, paths []string) {
	p.mu.Lock()
	p.cancelGen()
	if p.root.Err() != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.root)
	p.gen = gen
	p.cancelGen = cancel
	p.dispatchWG.Add(1)
	p.mu.Unlock()

	queued := append([]string(nil), paths...)
	go func() {
		defer p.dispatchWG.Done()
		for _, path := range queued {
			select {
			case p.tasks <- task{ctx: ctx, gen: gen, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()
	p.logger.Debug("Size generation submitted", "gen", gen, "paths", len(paths))
}

// Cancel abandons the current generation without starting a new one.
func (p *Pool) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelGen()
}

func (p *Pool) work(id int) {
	defer p.workerWG.Done()
	for t := range p.tasks {
		if t.ctx.Err() != nil {
			continue
		}
		size, cached, err := p.calc.DirSize(t.ctx, t.path)
		if !p.deliver(id, t, Result{Gen: t.gen, Path: t.path, Size: size, Cached: cached, Err: err}) || !cached {
			continue
		}
		size, err = p.calc.Fresh(t.ctx, t.path)
		p.deliver(id, t, Result{Gen: t.gen, Path: t.path, Size: size, Err: err})
	}
}

// deliver sends r unless t's generation has been superseded, in which case
// the result would be stale. It reports whether r was sent.
func (p *Pool) deliver(id int, t task, r Result) bool {
	if t.ctx.Err() != nil {
		return false
	}
	if r.Err != nil {
		p.logger.Debug("Directory size failed", "worker", id, "dir", t.path, "error", r.Err)
	}
	select {
	case p.results <- r:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// Close cancels all outstanding work, waits for the workers to exit, persists
// the size cache and closes the results channel.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.cancelGen()
		p.stop()
		p.mu.Unlock()

		p.dispatchWG.Wait()
		close(p.tasks)
		p.workerWG.Wait()
		close(p.results)

		if err := p.calc.Cache.Persist(); err != nil {
			p.logger.Warn("Failed to persist size cache", "error", err)
		}
	})
}
