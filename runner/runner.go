// Package runner executes independent tasks concurrently and reports every
// task's outcome individually. One task failing never cancels its siblings.
package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of concurrent work.
type Task[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Result is the outcome of one task.
type Result[T any] struct {
	TaskID   string
	Output   T
	Error    error
	Duration time.Duration
}

// ParallelRunner executes tasks in parallel, at most maxConcurrency at a time.
type ParallelRunner[T any] struct {
	maxConcurrency int
}

// NewParallelRunner creates a parallel runner. A non-positive limit runs
// every task at once.
func NewParallelRunner[T any](maxConcurrency int) *ParallelRunner[T] {
	return &ParallelRunner[T]{maxConcurrency: maxConcurrency}
}

// Stream starts every task and delivers results in completion order. The
// channel is buffered for all results and closed after the last one, so
// abandoning it does not leak goroutines.
func (pr *ParallelRunner[T]) Stream(ctx context.Context, tasks []Task[T]) <-chan Result[T] {
	out := make(chan Result[T], len(tasks))
	g := pr.group()

	go func() {
		defer close(out)
		for _, task := range tasks {
			task := task
			g.Go(func() error {
				out <- run(ctx, task)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}

// RunParallel executes tasks and returns their results in task order.
func (pr *ParallelRunner[T]) RunParallel(ctx context.Context, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	g := pr.group()
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = run(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (pr *ParallelRunner[T]) group() *errgroup.Group {
	g := new(errgroup.Group)
	if pr.maxConcurrency > 0 {
		g.SetLimit(pr.maxConcurrency)
	}
	return g
}

func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	start := time.Now()
	res.TaskID = task.ID
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Errorf("panic in task %s: %v", task.ID, r)
		}
		res.Duration = time.Since(start)
	}()

	if task.Run == nil {
		res.Error = fmt.Errorf("task %s has no run function", task.ID)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}
	res.Output, res.Error = task.Run(ctx)
	return res
}
