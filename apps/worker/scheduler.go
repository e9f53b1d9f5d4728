package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

type scheduler struct {
	cron   *cron.Cron
	feeSvc fee.Service
	logger core.Logger
	conf   core.FeesConfig

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func newScheduler(conf core.FeesConfig, feeSvc fee.Service, logger core.Logger) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		// a job still running when its next tick fires is skipped
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		feeSvc: feeSvc,
		logger: logger,
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if _, err := s.cron.AddFunc(s.conf.OverdueSweepSpec, s.sweepOverdue); err != nil {
		return errors.Wrapf(err, "scheduling overdue sweep (%q)", s.conf.OverdueSweepSpec)
	}
	if _, err := s.cron.AddFunc(s.conf.ReminderSpec, s.remindDefaulters); err != nil {
		return errors.Wrapf(err, "scheduling reminders (%q)", s.conf.ReminderSpec)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started")
	return nil
}

// Stop cancels the running jobs and waits for them to return.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

func (s *scheduler) sweepOverdue() {
	n, err := s.feeSvc.SweepOverdue(s.ctx, fee.NowFunc().UTC())
	if err != nil {
		s.logger.Error("overdue sweep failed", err)
		return
	}
	s.logger.Info(fmt.Sprintf("overdue sweep done: %d challan(s) flagged", n))
}

func (s *scheduler) remindDefaulters() {
	res, err := s.feeSvc.RemindAllDefaulters(s.ctx)
	if err != nil {
		s.logger.Error("defaulter reminders failed", err)
		return
	}
	s.logger.Info(fmt.Sprintf("defaulter reminders done: %d sent, %d failed", res.Success, res.Failed))
	for _, e := range res.Errors {
		s.logger.Warn(fmt.Sprintf("reminder for %s failed: %s", e.ID, e.Error))
	}
}
