package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// errResult is a Result carrying an optional error
type errResult struct {
	err error
}

func (r *errResult) GetError() error {
	return r.err
}

// jobFunc adapts a function to the Job interface
type jobFunc func(ctx context.Context) Result

func (f jobFunc) Execute(ctx context.Context) Result { return f(ctx) }

// countingJob returns a job that bumps n and sleeps for d
func countingJob(n *atomic.Int32, d time.Duration) Job {
	return jobFunc(func(ctx context.Context) Result {
		n.Add(1)
		time.Sleep(d)
		return &errResult{}
	})
}

func TestNewPool_Workers(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, 5},
		{1, 1},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool(context.Background(), tt.in).Workers(); got != tt.want {
			t.Errorf("NewPool(%d).Workers() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPool_RunsEveryJobOnce(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var executed atomic.Int32
	for i := 0; i < 25; i++ {
		pool.Submit(countingJob(&executed, 0))
	}

	if results := pool.Wait(); len(results) != 25 {
		t.Errorf("expected 25 results, got %d", len(results))
	}
	if executed.Load() != 25 {
		t.Errorf("expected 25 executions, got %d", executed.Load())
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, peak atomic.Int32
	for i := 0; i < 40; i++ {
		pool.Submit(jobFunc(func(ctx context.Context) Result {
			cur := current.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return &errResult{}
		}))
	}
	pool.Wait()

	if peak.Load() > workers {
		t.Errorf("peak concurrency %d exceeded %d workers", peak.Load(), workers)
	}
}

func TestPool_ErrorsAreResults(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(jobFunc(func(ctx context.Context) Result { return &errResult{err: errors.New("read failed")} }))
	pool.Submit(jobFunc(func(ctx context.Context) Result { return &errResult{} }))

	failed := 0
	for _, res := range pool.Wait() {
		if res.GetError() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed result, got %d", failed)
	}
}

func TestPool_ManyJobsDoNotDeadlock(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var executed atomic.Int32
	const count = 200

	done := make(chan []Result)
	go func() {
		for i := 0; i < count; i++ {
			pool.Submit(countingJob(&executed, 0))
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != count {
			t.Errorf("expected %d results, got %d", count, len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked with more jobs than buffer capacity")
	}
}

func TestPool_PassesContext(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "batch")
	pool := NewPool(ctx, 1)
	pool.Start()

	var seen atomic.Value
	pool.Submit(jobFunc(func(ctx context.Context) Result {
		seen.Store(ctx.Value(ctxKey{}))
		return &errResult{}
	}))
	pool.Wait()

	if seen.Load() != "batch" {
		t.Errorf("expected job to receive pool context, got %v", seen.Load())
	}
}

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	c.Add(&errResult{})
	c.Add(&errResult{err: errors.New("write failed")})

	if res := c.Results(); len(res) != 2 {
		t.Errorf("expected 2 results, got %d", len(res))
	}
}
