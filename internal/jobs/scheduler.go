package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks(sweepCron string) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		log:            log,
	}
}

// RegisterTasks schedules the reconciliation sweep with the provided cron spec.
func (s *scheduler) RegisterTasks(sweepCron string) error {
	if _, err := s.asynqScheduler.Register(sweepCron, NewReconcileSweepTask()); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered reconciliation sweep",
			slog.String("cron", sweepCron))
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
