package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"intelplatform/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

type Scheduler struct {
	cron      *cron.Cron
	queue     Enqueuer
	pruneSpec string
	log       zerolog.Logger
}

func NewScheduler(queue Enqueuer, pruneSpec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		queue:     queue,
		pruneSpec: pruneSpec,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.pruneSpec, s.enqueuePrune); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueuePrune() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskPruneSessions}); err != nil {
		s.log.Error().Err(err).Msg("enqueue session prune failed")
	}
}
