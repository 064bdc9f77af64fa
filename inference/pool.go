package inference

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/swdee/go-dartscore/postprocess"
)

// Pool is a set of worker processes running the same model so frames can
// be inferred concurrently.  It implements postprocess.Inferencer.
type Pool struct {
	// pool of idle workers
	workers chan *Worker
	// all workers for shutdown
	all   []*Worker
	size  int
	close sync.Once
}

// NewPool spawns size workers from the same configuration
func NewPool(ctx context.Context, size int, cfg Config, log *slog.Logger) (*Pool, error) {

	if size < 1 {
		return nil, fmt.Errorf("invalid pool size %d", size)
	}

	p := &Pool{
		workers: make(chan *Worker, size),
		size:    size,
	}

	for i := 0; i < size; i++ {

		w, err := NewWorker(cfg, log)

		if err == nil {
			err = w.Start(ctx)
		}

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, fmt.Errorf("failed to start pool worker %d: %w", i, err)
		}

		p.add(w)
	}

	return p, nil
}

// NewPoolOf returns a pool over already created workers
func NewPoolOf(workers ...*Worker) *Pool {

	p := &Pool{
		workers: make(chan *Worker, len(workers)),
		size:    len(workers),
	}

	for _, w := range workers {
		p.add(w)
	}

	return p
}

func (p *Pool) add(w *Worker) {
	p.all = append(p.all, w)
	p.Return(w)
}

// Size returns the number of workers in the pool
func (p *Pool) Size() int {
	return p.size
}

// Get waits for an idle worker, ErrStopped is returned once the pool is
// closed
func (p *Pool) Get(ctx context.Context) (*Worker, error) {

	select {
	case w, ok := <-p.workers:
		if !ok {
			return nil, ErrStopped
		}
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return a worker to the pool
func (p *Pool) Return(w *Worker) {
	defer func() {
		// returning to a closed pool
		recover()
	}()

	select {
	case p.workers <- w:
	default:
		// pool is full
	}
}

// Infer runs the image on the next idle worker
func (p *Pool) Infer(ctx context.Context, img image.Image) (postprocess.Tensor, error) {

	w, err := p.Get(ctx)

	if err != nil {
		return postprocess.Tensor{}, err
	}

	defer p.Return(w)

	return w.Infer(ctx, img)
}

// Stats sums the counters of all workers
func (p *Pool) Stats() Stats {

	var total Stats
	var latency float64
	var n int

	for _, w := range p.all {
		s := w.Stats()
		total.Requests += s.Requests
		total.Errors += s.Errors

		if s.AvgLatencyMS > 0 {
			latency += s.AvgLatencyMS
			n++
		}

		if s.LastSeenAt.After(total.LastSeenAt) {
			total.LastSeenAt = s.LastSeenAt
		}
	}

	if n > 0 {
		total.AvgLatencyMS = latency / float64(n)
	}

	return total
}

// Close the pool and stop all workers in it
func (p *Pool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.workers)

		for _, w := range p.all {
			_ = w.Stop()
		}
	})
}
