package crawler

import (
	"context"
	"sync"
)

// ItemResult tallies a ForEachLimit pass over the requested items.
type ItemResult struct {
	Processed    int
	Succeeded    int
	Failed       int
	FailureKinds map[string]int
}

func (r *ItemResult) add(err error) {
	if err != nil {
		r.Failed++
		r.FailureKinds = mergeFailureKind(r.FailureKinds, KindOf(err))
		return
	}
	r.Succeeded++
}

// ForEachLimit runs fn for each item with at most limit calls in flight and
// waits for all of them. Items not yet started when ctx ends are skipped and
// not counted as processed. With limit 1 items run strictly in order.
func ForEachLimit[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) ItemResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 1 {
		limit = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out ItemResult
	)
	slots := make(chan struct{}, limit)

	for _, it := range items {
		if !acquire(ctx, slots) {
			break
		}
		mu.Lock()
		out.Processed++
		mu.Unlock()

		wg.Add(1)
		go func(it T) {
			defer wg.Done()
			defer func() { <-slots }()
			err := fn(ctx, it)
			mu.Lock()
			out.add(err)
			mu.Unlock()
		}(it)
	}
	wg.Wait()
	return out
}

func acquire(ctx context.Context, slots chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case slots <- struct{}{}:
		if ctx.Err() != nil {
			<-slots
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func mergeFailureKind(m map[string]int, kind ErrorKind) map[string]int {
	if kind == "" {
		kind = ErrorKindUnknown
	}
	if m == nil {
		m = map[string]int{}
	}
	m[string(kind)]++
	return m
}
