package daemon

import (
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"reelkeep/internal/api"
	"reelkeep/internal/config"
	"reelkeep/internal/logging"
	"reelkeep/internal/tasks"
)

// starter queues a task and reports its ID.
type starter func() (api.TaskAccepted, error)

type job struct {
	name string
	spec string
	id   cron.EntryID
}

type scheduler struct {
	cron   *cron.Cron
	jobs   []job
	logger *slog.Logger
}

func newScheduler(sched config.Schedule, svc *api.Service, logger *slog.Logger) (*scheduler, error) {
	s := &scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		logger: logging.NewComponentLogger(logger, "scheduler"),
	}
	if err := s.add(api.TaskReconcile, sched.ReconcileCron, func() (api.TaskAccepted, error) {
		return svc.StartReconcile(false)
	}); err != nil {
		return nil, err
	}
	if err := s.add(api.TaskScan, sched.ScanCron, svc.StartScan); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *scheduler) add(name, spec string, start starter) error {
	if spec == "" {
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.fire(name, start) })
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, job{name: name, spec: spec, id: id})
	return nil
}

func (s *scheduler) fire(name string, start starter) {
	accepted, err := start()
	switch {
	case err == nil:
		s.logger.Info("scheduled task started",
			logging.String(logging.FieldTask, name),
			logging.String(logging.FieldTaskID, accepted.TaskID),
			logging.String(logging.FieldEventType, "schedule_fired"))
	case errors.Is(err, tasks.ErrBusy):
		logging.WarnWithContext(s.logger, "scheduled task skipped", "schedule_skipped",
			logging.String(logging.FieldTask, name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "runs again at the next scheduled time"),
			logging.String(logging.FieldErrorHint, "another task was running"))
	default:
		logging.ErrorWithContext(s.logger, "scheduled task failed to start", "schedule_failed",
			logging.String(logging.FieldTask, name),
			logging.Error(err))
	}
}

func (s *scheduler) start() {
	if len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	for _, j := range s.jobs {
		s.logger.Info("job scheduled",
			logging.String(logging.FieldTask, j.name),
			logging.String("spec", j.spec),
			logging.String("next", s.cron.Entry(j.id).Next.Format(time.RFC3339)))
	}
}

func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}

func (s *scheduler) entries() []api.ScheduleJob {
	out := make([]api.ScheduleJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := api.ScheduleJob{Name: j.name, Spec: j.spec}
		if next := s.cron.Entry(j.id).Next; !next.IsZero() {
			entry.Next = next.UTC().Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	return out
}
