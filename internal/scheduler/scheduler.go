package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haytac/neighbourhood-emoji/internal/config"
)

const (
	defaultFrequency = 300 * time.Second
	initialDelay     = 5 * time.Second
	idleWait         = 24 * time.Hour
)

// ScheduledTask represents a task in the priority queue.
type ScheduledTask struct {
	Source   *config.Source
	NextRun  time.Time
	index    int // Index in the heap.
	inFlight bool
	taskFunc func(ctx context.Context, src *config.Source)
}

// PriorityQueue implements heap.Interface and holds ScheduledTasks.
type PriorityQueue []*ScheduledTask

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	return pq[i].NextRun.Before(pq[j].NextRun)
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds an item to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	item := x.(*ScheduledTask)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

// Pop removes and returns the item with the earliest NextRun time.
func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// SourceScheduler runs a task per notice source on the source's frequency.
type SourceScheduler struct {
	pq           PriorityQueue
	mu           sync.Mutex
	wakeCh       chan struct{}
	stopCh       chan struct{}
	doneCh       chan struct{}
	tasks        sync.WaitGroup
	running      bool
	cancel       context.CancelFunc
	initialDelay time.Duration
}

// NewSourceScheduler creates a new scheduler.
func NewSourceScheduler() *SourceScheduler {
	return &SourceScheduler{
		pq:           make(PriorityQueue, 0),
		wakeCh:       make(chan struct{}, 1),
		initialDelay: initialDelay,
	}
}

// Add schedules a source for periodic relaying.
func (s *SourceScheduler) Add(src *config.Source, taskFunc func(ctx context.Context, src *config.Source)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src.FrequencySeconds <= 0 {
		src.FrequencySeconds = int(defaultFrequency / time.Second)
		log.Warn().Str("source", src.Name).Str("url", src.URL).Msg("Source frequency is zero or negative, defaulting to 5 minutes.")
	}

	nextRun := time.Now().Add(s.initialDelay)
	heap.Push(&s.pq, &ScheduledTask{Source: src, NextRun: nextRun, taskFunc: taskFunc})
	log.Info().Str("source", src.Name).Str("url", src.URL).Time("initial_run_at", nextRun).Msg("Source added to scheduler")

	s.wake()
	return nil
}

// Len returns the number of scheduled sources.
func (s *SourceScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Len()
}

// Start begins the scheduler loop. The loop ends when ctx is done or Stop is called.
// Tasks receive a context that is cancelled on either.
func (s *SourceScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	log.Info().Msg("Scheduler started")
	go s.loop(ctx)
}

func (s *SourceScheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler context done")
			return
		case <-s.stopCh:
			log.Info().Msg("Scheduler stopping...")
			return
		case <-s.wakeCh:
		case <-timer.C:
			s.runPendingTasks(ctx)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.nextDelay())
	}
}

func (s *SourceScheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *SourceScheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pq.Len() == 0 {
		return idleWait
	}
	return max(time.Until(s.pq[0].NextRun), 0)
}

func (s *SourceScheduler) runPendingTasks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for s.pq.Len() > 0 {
		task := s.pq[0]
		if task.NextRun.After(now) {
			break
		}
		heap.Pop(&s.pq)

		if task.inFlight {
			log.Warn().Str("source", task.Source.Name).Msg("Previous run still in progress, skipping this one")
		} else {
			log.Debug().Str("source", task.Source.Name).Msg("Executing scheduled task")
			task.inFlight = true
			s.tasks.Add(1)
			go s.run(ctx, task)
		}

		task.NextRun = now.Add(task.Source.Frequency())
		heap.Push(&s.pq, task)
		log.Debug().Str("source", task.Source.Name).Time("next_run_at", task.NextRun).Msg("Source rescheduled")
	}
}

func (s *SourceScheduler) run(ctx context.Context, task *ScheduledTask) {
	defer s.tasks.Done()
	defer func() {
		s.mu.Lock()
		task.inFlight = false
		s.mu.Unlock()
	}()
	task.taskFunc(ctx, task.Source)
}

// Stop halts the scheduler, cancels running tasks and waits for them to finish.
func (s *SourceScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.tasks.Wait()
	log.Info().Msg("Scheduler stopped")
}
