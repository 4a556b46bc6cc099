package evidence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
)

var (
	ErrQueueFull = errors.New("evidence_unavailable: queue full")
	// ErrQueueClosed is a shutdown error: the queue is only closed when the process stops.
	ErrQueueClosed = core.NewShutdownError("evidence_unavailable: queue closed")
)

// Defaults of the queue.
const (
	DefaultWorkers = 2
	DefaultSize    = 64
	DefaultTimeout = 5 * time.Second
)

// Persister stores one snapshot and returns its reference.
type Persister interface {
	Persist(ctx context.Context, snap proctor.Snapshot) (string, error)
}

type job struct {
	snap proctor.Snapshot
	done func(ref string)
}

// Queue persists snapshots on a fixed pool of workers.
// Failures are reported on Errors(); a job is never retried.
type Queue struct {
	sink    Persister
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	errs   chan error
	failed int64
	wg     sync.WaitGroup
	once   sync.Once
}

func NewQueue(sink Persister, workers, size int, timeout time.Duration) *Queue {
	vala.BeginValidation().Validate(
		vala.IsNotNil(sink, "sink"),
	).CheckAndPanic()

	if workers <= 0 {
		workers = DefaultWorkers
	}
	if size <= 0 {
		size = DefaultSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	q := &Queue{
		sink:    sink,
		timeout: timeout,
		jobs:    make(chan job, size),
		errs:    make(chan error, size),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

// Enqueue schedules snap for persistence and returns immediately.
// done, if not nil, receives the artifact reference or proctor.EvidenceUnavailable.
// It is not called when Enqueue fails.
func (q *Queue) Enqueue(snap proctor.Snapshot, done func(ref string)) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{snap: snap, done: done}:
		return nil
	default:
		err := errors.Wrap(ErrQueueFull, snap.StudentID)
		q.report(err)
		return err
	}
}

// Errors reports persistence failures. It is closed by Close.
// Errors are dropped while the channel is full.
func (q *Queue) Errors() <-chan error { return q.errs }

// Failed is the number of snapshots that could not be stored.
func (q *Queue) Failed() int64 { return atomic.LoadInt64(&q.failed) }

// Close stops accepting jobs and waits for the queued ones to finish.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()

		q.wg.Wait()
		close(q.errs)
	})
}

func (q *Queue) report(err error) {
	atomic.AddInt64(&q.failed, 1)
	select {
	case q.errs <- err:
	default:
	}
}

func (q *Queue) work() {
	defer q.wg.Done()

	for j := range q.jobs {
		ref, err := q.persist(j.snap)
		if err != nil {
			q.report(errors.Wrapf(err, "evidence_unavailable: %s", j.snap.StudentID))
			ref = proctor.EvidenceUnavailable
		}
		if j.done != nil {
			j.done(ref)
		}
	}
}

func (q *Queue) persist(snap proctor.Snapshot) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	type result struct {
		ref string
		err error
	}
	res := make(chan result, 1)
	go func() {
		ref, err := q.sink.Persist(ctx, snap)
		res <- result{ref: ref, err: err}
	}()

	select {
	case r := <-res:
		return r.ref, r.err
	case <-ctx.Done():
		return proctor.EvidenceUnavailable, errors.Wrap(ctx.Err(), "persisting snapshot")
	}
}
