package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SystemActor is the actor recorded on postings and audit events the
// scheduler produces.
var SystemActor = uuid.MustParse("00000000-0000-0000-0000-00000000c0de")

type BudgetExpirer interface {
	ExpireDue(ctx context.Context, actor uuid.UUID) ([]uuid.UUID, error)
}

type StallReporter interface {
	ReportStalled(ctx context.Context, after time.Duration) (int, error)
}

type Config struct {
	BudgetExpiryCron  string
	StalledStageCron  string
	StalledStageAfter time.Duration
	JobTimeout        time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	budgets BudgetExpirer
	stalls  StallReporter
	log     logrus.FieldLogger
}

// New mendaftarkan job periodik. Cron expression kosong = job dimatikan.
func New(cfg Config, budgets BudgetExpirer, stalls StallReporter, log logrus.FieldLogger) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 4 * time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		cfg:     cfg,
		budgets: budgets,
		stalls:  stalls,
		log:     log.WithField("component", "scheduler"),
	}
	if cfg.BudgetExpiryCron != "" && budgets != nil {
		if _, err := s.cron.AddFunc(cfg.BudgetExpiryCron, s.job(s.ExpireBudgets)); err != nil {
			return nil, err
		}
	}
	if cfg.StalledStageCron != "" && stalls != nil {
		if _, err := s.cron.AddFunc(cfg.StalledStageCron, s.job(s.ReportStalled)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) job(fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()
		_ = fn(ctx)
	}
}

func (s *Scheduler) Start() {
	s.log.WithFields(logrus.Fields{
		"budget_expiry": s.cfg.BudgetExpiryCron,
		"stalled_stage": s.cfg.StalledStageCron,
		"jobs":          len(s.cron.Entries()),
	}).Info("scheduler started")
	s.cron.Start()
}

// Stop menunggu job yang berjalan selesai atau ctx habis.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) ExpireBudgets(ctx context.Context) error {
	ids, err := s.budgets.ExpireDue(ctx, SystemActor)
	if err != nil {
		s.log.WithError(err).Error("budget expiry failed")
		return err
	}
	if len(ids) > 0 {
		s.log.WithField("count", len(ids)).Info("budgets expired")
	}
	return nil
}

func (s *Scheduler) ReportStalled(ctx context.Context) error {
	n, err := s.stalls.ReportStalled(ctx, s.cfg.StalledStageAfter)
	if err != nil {
		s.log.WithError(err).Error("stalled stage report failed")
		return err
	}
	s.log.WithField("applications", n).Debug("stalled stage report done")
	return nil
}

// cronLogger meneruskan log cron ke logrus.
type cronLogger struct{ log logrus.FieldLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(pairs(kv)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithError(err).WithFields(pairs(kv)).Error(msg)
}

func pairs(kv []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out[k] = kv[i+1]
		}
	}
	return out
}
