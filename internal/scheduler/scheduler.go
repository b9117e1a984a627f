package scheduler

import (
  "context"
  "errors"
  "fmt"
  "sync"
  "time"

  "github.com/robfig/cron/v3"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/services"
  "github.com/cubeapp/cubeapp-backend/internal/utils"
)

// Task names, used both for cron registration and the force-run endpoint.
const (
  TaskProfileScrape     = "profile_scrape"
  TaskCommentCollection = "comment_collection"
  TaskRecollectSweep    = "recollect_sweep"
  TaskSentiment         = "sentiment"
  TaskViability         = "viability"
  TaskScenario          = "scenario"
)

// Batch sizes stay small on purpose: each tick is one bounded sweep, and
// cadence, not parallelism, provides throughput.
const (
  sentimentBatchSize = 3
  viabilityBatchSize = 5
  scenarioBatchSize  = 5
)

// ErrTaskRunning reports a trigger colliding with an in-flight run of the
// same task.
var ErrTaskRunning = errors.New("task is already running")

type taskFunc func(ctx context.Context) error

// task pairs a runner with a single-slot guard. TryLock makes an overlapping
// tick a no-op instead of queueing behind the running one. The running flag
// mirrors the guard for status reads, which must never touch the guard
// themselves: a probe holding it would shadow-skip a tick firing in that
// window.
type task struct {
  name  string
  spec  string
  run   taskFunc
  guard sync.Mutex

  mu      sync.Mutex
  running bool
  lastRun time.Time
  lastErr error
}

func (t *task) setRunning(v bool) {
  t.mu.Lock()
  t.running = v
  t.mu.Unlock()
}

type TaskStatus struct {
  Name      string     `json:"name"`
  Schedule  string     `json:"schedule"`
  Running   bool       `json:"running"`
  LastRun   *time.Time `json:"last_run,omitempty"`
  LastError string     `json:"last_error,omitempty"`
}

type Scheduler struct {
  log   *logger.Logger
  cron  *cron.Cron
  tasks map[string]*task
  order []string
}

type Config struct {
  Scraping  services.ScrapingService
  Comments  services.CommentService
  Sentiment services.SentimentService
  Viability services.ViabilityService
  Scenario  services.ScenarioService
}

func New(baseLog *logger.Logger, cfg Config) *Scheduler {
  log := baseLog.With("service", "Scheduler")

  s := &Scheduler{
    log:   log,
    cron:  cron.New(),
    tasks: map[string]*task{},
  }

  s.register(TaskProfileScrape, utils.GetEnv("SCHEDULE_PROFILE_SCRAPE", "@every 3m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Scraping.ProcessNext(ctx)
    return err
  })
  s.register(TaskCommentCollection, utils.GetEnv("SCHEDULE_COMMENT_COLLECTION", "@every 5m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Comments.ProcessNext(ctx)
    return err
  })
  s.register(TaskRecollectSweep, utils.GetEnv("SCHEDULE_RECOLLECT_SWEEP", "@every 30m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Comments.RecollectSweep(ctx)
    return err
  })
  s.register(TaskSentiment, utils.GetEnv("SCHEDULE_SENTIMENT", "@every 3m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Sentiment.ProcessPending(ctx, sentimentBatchSize)
    return err
  })
  s.register(TaskViability, utils.GetEnv("SCHEDULE_VIABILITY", "@every 5m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Viability.ProcessPending(ctx, viabilityBatchSize)
    return err
  })
  s.register(TaskScenario, utils.GetEnv("SCHEDULE_SCENARIO", "@every 10m", baseLog), func(ctx context.Context) error {
    _, err := cfg.Scenario.ProcessPending(ctx, scenarioBatchSize)
    return err
  })

  return s
}

func (s *Scheduler) register(name, spec string, run taskFunc) {
  t := &task{name: name, spec: spec, run: run}
  s.tasks[name] = t
  s.order = append(s.order, name)
}

func (s *Scheduler) Start() error {
  for _, name := range s.order {
    t := s.tasks[name]
    if _, err := s.cron.AddFunc(t.spec, func() {
      s.execute(context.Background(), t)
    }); err != nil {
      return fmt.Errorf("failed to schedule %s (%s): %w", t.name, t.spec, err)
    }
    s.log.Info("Task scheduled", "task", t.name, "schedule", t.spec)
  }
  s.cron.Start()
  return nil
}

func (s *Scheduler) Stop() {
  ctx := s.cron.Stop()
  <-ctx.Done()
  s.log.Info("Scheduler stopped")
}

// execute runs a task if its slot is free. The guard is released on every
// path, including panics inside the runner, via the deferred unlock.
func (s *Scheduler) execute(ctx context.Context, t *task) {
  if !t.guard.TryLock() {
    s.log.Debug("Task still running, skipping tick", "task", t.name)
    return
  }
  defer t.guard.Unlock()

  t.setRunning(true)
  defer t.setRunning(false)

  started := time.Now()
  err := t.run(ctx)

  t.mu.Lock()
  t.lastRun = started
  t.lastErr = err
  t.mu.Unlock()

  if err != nil {
    s.log.Error("Task failed", "task", t.name, "error", err, "duration", time.Since(started).String())
    return
  }
  s.log.Debug("Task finished", "task", t.name, "duration", time.Since(started).String())
}

// RunNow triggers one task outside its schedule. It shares the task's guard,
// so a force-run cannot overlap a cron tick of the same task.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
  t, ok := s.tasks[name]
  if !ok {
    return fmt.Errorf("unknown task: %s", name)
  }

  if !t.guard.TryLock() {
    return fmt.Errorf("task %s: %w", name, ErrTaskRunning)
  }
  defer t.guard.Unlock()

  t.setRunning(true)
  defer t.setRunning(false)

  started := time.Now()
  err := t.run(ctx)

  t.mu.Lock()
  t.lastRun = started
  t.lastErr = err
  t.mu.Unlock()

  return err
}

func (s *Scheduler) Status() []TaskStatus {
  out := make([]TaskStatus, 0, len(s.order))
  for _, name := range s.order {
    t := s.tasks[name]

    t.mu.Lock()
    status := TaskStatus{
      Name:     t.name,
      Schedule: t.spec,
      Running:  t.running,
    }
    if !t.lastRun.IsZero() {
      lastRun := t.lastRun
      status.LastRun = &lastRun
    }
    if t.lastErr != nil {
      status.LastError = t.lastErr.Error()
    }
    t.mu.Unlock()

    out = append(out, status)
  }
  return out
}
