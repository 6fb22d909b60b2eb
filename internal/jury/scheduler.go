package jury

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Scheduler owns a single time-ordered queue of pending case deadlines and
// one loop that fires them. Entries are not durable; the startup sweep
// covers deadlines lost to a restart.
type Scheduler struct {
	fire func(ctx context.Context, caseID int64)

	mu      sync.Mutex
	pending deadlineHeap
	wake    chan struct{}

	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

type deadline struct {
	caseID int64
	at     time.Time
}

func NewScheduler(fire func(ctx context.Context, caseID int64)) *Scheduler {
	return &Scheduler{
		fire: fire,
		wake: make(chan struct{}, 1),
	}
}

// Schedule enqueues a deadline. A zero or past deadline fires on the next
// loop iteration.
func (s *Scheduler) Schedule(caseID int64, at time.Time) {
	s.mu.Lock()
	heap.Push(&s.pending, deadline{caseID: caseID, at: at})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.runtimeCtx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(s.runtimeCtx)
	}()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	const idleWait = time.Hour

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		wait := idleWait
		if next, ok := s.peek(); ok {
			wait = time.Until(next.at)
			if wait < 0 {
				wait = 0
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
			for _, due := range s.popDue(time.Now()) {
				s.fire(ctx, due.caseID)
			}
		}
	}
}

func (s *Scheduler) peek() (deadline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return deadline{}, false
	}
	return s.pending[0], true
}

func (s *Scheduler) popDue(now time.Time) []deadline {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []deadline
	for len(s.pending) > 0 && !s.pending[0].at.After(now) {
		due = append(due, heap.Pop(&s.pending).(deadline))
	}
	return due
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
