package parallel

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Stats is a snapshot of the Queue counters.
type Stats struct {
	Submitted   int64
	Started     int64
	Completed   int64
	InFlight    int64
	MaxInFlight int64
}

// Queue runs work for every item of a batch with at most limit items in flight.
// Items start in submission order; completion order is not defined. An error
// returned by work cancels the batch: items not started yet are skipped and Run
// returns the first error.
//
//	q := parallel.NewQueue(2, inspect)
//	q.OnDrain(release)
//	err := q.Run(ctx, targets)
type Queue[T any] struct {
	limit   int
	work    func(context.Context, T) error
	onDrain func()
	once    sync.Once

	submitted   atomic.Int64
	started     atomic.Int64
	completed   atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	outstanding atomic.Int64
}

func NewQueue[T any](limit int, work func(context.Context, T) error) *Queue[T] {
	return &Queue[T]{
		limit: max(limit, 1),
		work:  work,
	}
}

// OnDrain registers fn to be called exactly once, when every submitted item
// has either completed or was skipped. It must be called before Run.
func (q *Queue[T]) OnDrain(fn func()) {
	q.onDrain = fn
}

// Run is not reentrant; a Queue runs a single batch.
func (q *Queue[T]) Run(ctx context.Context, items []T) error {
	pending := make(chan T, len(items))
	for _, item := range items {
		pending <- item
	}
	close(pending)
	q.submitted.Add(int64(len(items)))
	q.outstanding.Add(int64(len(items)))

	if len(items) == 0 {
		q.drain()
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for range min(q.limit, len(items)) {
		g.Go(func() error {
			for item := range pending {
				if gctx.Err() != nil {
					q.done()
					continue
				}
				if err := q.run(gctx, item); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	// a failed worker leaves its share of the channel unread
	for range pending {
		q.done()
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (q *Queue[T]) run(ctx context.Context, item T) error {
	q.started.Add(1)
	n := q.inFlight.Add(1)
	for {
		m := q.maxInFlight.Load()
		if n <= m || q.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	defer func() {
		q.inFlight.Add(-1)
		q.completed.Add(1)
		q.done()
	}()
	return q.work(ctx, item)
}

func (q *Queue[T]) done() {
	if q.outstanding.Add(-1) == 0 {
		q.drain()
	}
}

func (q *Queue[T]) drain() {
	q.once.Do(func() {
		if q.onDrain != nil {
			q.onDrain()
		}
	})
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		Submitted:   q.submitted.Load(),
		Started:     q.started.Load(),
		Completed:   q.completed.Load(),
		InFlight:    q.inFlight.Load(),
		MaxInFlight: q.maxInFlight.Load(),
	}
}
