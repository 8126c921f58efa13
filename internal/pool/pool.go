// Package pool runs independent scan units under a bounded worker pool.
// A failing or panicking unit is logged and contributes no findings; it never
// aborts the batch.
package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/types"
)

// DefaultWorkers is used when Options.Workers is not positive.
const DefaultWorkers = 4

// Unit is one piece of work. ID identifies it in logs (a file path or a rule
// file path).
type Unit[T any] struct {
	ID    string
	Value T
}

// Source produces units by calling emit. It must stop and return the error
// when emit fails.
type Source[T any] func(emit func(Unit[T]) error) error

// Task evaluates one unit against shared read-only state.
type Task[T any] func(ctx context.Context, v T) ([]types.Finding, error)

// Options configures a Run.
type Options struct {
	Workers int
	Engine  string
	Logger  *zap.Logger
}

// Stats counts units by outcome.
type Stats struct {
	Units     int
	Succeeded int
	Failed    int
}

type outcome struct {
	findings []types.Finding
	err      error
}

// Run dispatches every unit from src to task with at most opts.Workers in
// flight and returns the unordered merge of all findings. When ctx is
// cancelled no further units are started; in-flight units complete. The
// returned error is the source's error, if any.
func Run[T any](ctx context.Context, opts Options, src Source[T], task Task[T]) ([]types.Finding, Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := logging.OrNop(opts.Logger)

	results := make(chan outcome, workers)
	done := make(chan struct{})
	var (
		out   []types.Finding
		stats Stats
	)
	go func() {
		defer close(done)
		for o := range results {
			stats.Units++
			if o.err != nil {
				stats.Failed++
				continue
			}
			stats.Succeeded++
			out = append(out, o.findings...)
		}
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	srcErr := src(func(u Unit[T]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			fs, err := runUnit(ctx, task, u.Value)
			if err != nil {
				log.Warn("scan unit failed",
					zap.String("engine", opts.Engine),
					zap.String("unit", u.ID),
					zap.Error(err))
			}
			results <- outcome{findings: fs, err: err}
			return nil
		})
		return nil
	})
	_ = g.Wait()
	close(results)
	<-done
	return out, stats, srcErr
}

func runUnit[T any](ctx context.Context, task Task[T], v T) (fs []types.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			fs = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx, v)
}

// FromSlice returns a Source over a fixed list of units.
func FromSlice[T any](units []Unit[T]) Source[T] {
	return func(emit func(Unit[T]) error) error {
		for _, u := range units {
			if err := emit(u); err != nil {
				return err
			}
		}
		return nil
	}
}
