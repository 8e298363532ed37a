package poller

import (
	"context"
	"fmt"
	"time"
)

// fetch calls fn under FetchTimeout, turning a panic or a timeout into an
// error and recording the outcome. A result that arrives after ctx is done is
// discarded so that nothing is cached once the loop is shutting down.
func fetch[T any](ctx context.Context, s *Scheduler, source string, fn func(context.Context) (T, error)) (result T, err error) {
	if err := ctx.Err(); err != nil {
		return result, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	result, err = call(callCtx, fn)
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return zero, ctxErr
	}

	s.metrics.ObserveFetch(source, elapsed, err)

	s.mu.Lock()
	if err != nil {
		s.lastErrors[source] = err.Error()
	} else {
		delete(s.lastErrors, source)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("fetch failed, keeping cached data", "source", source, "err", err, "elapsed", elapsed)
		return result, err
	}
	return result, nil
}

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn on its own goroutine and waits at most until ctx is done.
// A collaborator that ignores ctx is abandoned; its late result lands in
// the buffered channel and is dropped.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("panic: %v", r)
			}
			done <- o
		}()
		o.value, o.err = fn(ctx)
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("no response: %w", context.Cause(ctx))
	}
}
