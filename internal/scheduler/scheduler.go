package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rocketwin/funnel-bot/types"
)

// Handler receives reminder jobs once their fire time has passed.
type Handler interface {
	HandleReminder(ctx context.Context, job *types.ReminderJob) error
}

type Config struct {
	Workers      int
	PollInterval time.Duration
}

// Scheduler polls the reminder store for due jobs and hands them to a
// small worker pool. Jobs are claimed on read, so delivery is at most
// once; a reminder lost to a crash is accepted.
type Scheduler struct {
	store   types.ReminderStore
	handler Handler

	workers      int
	pollInterval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	jobQueue chan *types.ReminderJob
}

func NewScheduler(store types.ReminderStore, handler Handler, config Config) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	queueSize := config.Workers * 2
	if queueSize < 10 {
		queueSize = 10
	}

	return &Scheduler{
		store:        store,
		handler:      handler,
		workers:      config.Workers,
		pollInterval: config.PollInterval,
		ctx:          ctx,
		cancel:       cancel,
		jobQueue:     make(chan *types.ReminderJob, queueSize),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("Reminder scheduler started with %d workers", s.workers)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go s.poll()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping reminder scheduler...")
	s.cancel()
	s.wg.Wait()
	log.Println("Reminder scheduler stopped")
}

func (s *Scheduler) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			jobs, err := s.store.ClaimDue(s.ctx, time.Now())
			if err != nil {
				log.Printf("Failed to claim due reminders: %v", err)
				continue
			}
			for _, job := range jobs {
				select {
				case s.jobQueue <- job:
				case <-s.ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobQueue:
			if err := s.handler.HandleReminder(s.ctx, job); err != nil {
				log.Printf("Worker %d: reminder %s for user %d failed: %v", id, job.ID, job.UserID, err)
			}
		}
	}
}
