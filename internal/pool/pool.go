// internal/pool/pool.go
// Package pool schedules blocks from many independent streams across a
// bounded set of goroutines. Each stream owns one processor; blocks of the
// same stream are always processed one at a time and in submission order.
package pool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/rfim/internal/monitoring"
	"github.com/ColonelBlimp/rfim/internal/recovery"
	"github.com/ColonelBlimp/rfim/internal/rfim"
	"github.com/ColonelBlimp/rfim/internal/tf"
)

var (
	// ErrInvalidWorkers indicates the worker count must be positive
	ErrInvalidWorkers = errors.New("workers must be positive")
	// ErrUnknownStream indicates a job names a stream that was never registered
	ErrUnknownStream = errors.New("unknown stream")
	// ErrDuplicateStream indicates a stream id is already registered
	ErrDuplicateStream = errors.New("stream already registered")
	// ErrProcessorRequired indicates a nil processor was registered
	ErrProcessorRequired = errors.New("processor instance is required")
)

// Processor handles the blocks of one stream. *rfim.Rfim satisfies it.
type Processor[T tf.Sample] interface {
	Process(ctx context.Context, block *tf.Block[T]) (rfim.Output[T], error)
}

// Job is one block destined for a stream.
type Job[T tf.Sample] struct {
	Stream string
	Block  *tf.Block[T]
}

// Result is the output for the job at the same index of a Run call.
type Result[T tf.Sample] struct {
	Stream string
	Output rfim.Output[T]
}

type stream[T tf.Sample] struct {
	mu   sync.Mutex
	proc Processor[T]
}

// Pool dispatches jobs to registered streams.
type Pool[T tf.Sample] struct {
	workers int

	mu      sync.RWMutex
	streams map[string]*stream[T]
}

// New creates a pool running at most workers streams concurrently.
func New[T tf.Sample](workers int) (*Pool[T], error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	return &Pool[T]{workers: workers, streams: make(map[string]*stream[T])}, nil
}

// Workers returns the concurrency limit
func (p *Pool[T]) Workers() int { return p.workers }

// Register adds a stream. The processor must not be shared with another stream.
func (p *Pool[T]) Register(id string, proc Processor[T]) error {
	if proc == nil {
		return ErrProcessorRequired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.streams[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStream, id)
	}
	p.streams[id] = &stream[T]{proc: proc}
	return nil
}

// Unregister removes a stream. Jobs already running finish normally.
func (p *Pool[T]) Unregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.streams, id)
}

// Streams returns the registered stream ids, sorted
func (p *Pool[T]) Streams() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.streams))
	for id := range p.streams {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Run processes jobs and returns one result per job, in job order.
//
// Every stream id is checked before any work starts; an unknown id fails the
// whole batch with ErrUnknownStream. Cancellation is honoured between blocks:
// a block already being processed always completes. The first error (including
// a recovered panic) cancels the remaining work and is returned.
func (p *Pool[T]) Run(ctx context.Context, jobs []Job[T]) ([]Result[T], error) {
	order := make(map[string][]int)
	var ids []string
	p.mu.RLock()
	for i, job := range jobs {
		if _, ok := p.streams[job.Stream]; !ok {
			p.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q", ErrUnknownStream, job.Stream)
		}
		if _, seen := order[job.Stream]; !seen {
			ids = append(ids, job.Stream)
		}
		order[job.Stream] = append(order[job.Stream], i)
	}
	streams := make(map[string]*stream[T], len(ids))
	for _, id := range ids {
		streams[id] = p.streams[id]
	}
	p.mu.RUnlock()

	results := make([]Result[T], len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, id := range ids {
		s, indices := streams[id], order[id]
		g.Go(func() (err error) {
			defer recovery.CatchPanic(&err)
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, i := range indices {
				out, err := s.proc.Process(gctx, jobs[i].Block)
				if err != nil {
					return fmt.Errorf("stream %q: %w", id, err)
				}
				results[i] = Result[T]{Stream: id, Output: out}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		monitoring.Logf("pool: batch of %d jobs failed: %v", len(jobs), err)
		return results, err
	}
	monitoring.Debugf("pool: processed %d jobs across %d streams", len(jobs), len(ids))
	return results, nil
}
