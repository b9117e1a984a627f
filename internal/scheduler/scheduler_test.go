package scheduler

import (
  "context"
  "errors"
  "sync/atomic"
  "testing"
  "time"

  "github.com/google/uuid"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type stubScraping struct {
  runs    atomic.Int64
  block   chan struct{}
  failErr error
}

func (s *stubScraping) SyncCandidate(ctx context.Context, candidateID uuid.UUID) error { return nil }

func (s *stubScraping) ProcessNext(ctx context.Context) (bool, error) {
  s.runs.Add(1)
  if s.block != nil {
    <-s.block
  }
  if s.failErr != nil {
    return false, s.failErr
  }
  return true, nil
}

func (s *stubScraping) Stats(ctx context.Context) (map[string]int64, error) {
  return map[string]int64{}, nil
}

type stubComments struct{}

func (s *stubComments) CollectForPost(ctx context.Context, postID uuid.UUID) (int, error) {
  return 0, nil
}
func (s *stubComments) ProcessNext(ctx context.Context) (bool, error)     { return false, nil }
func (s *stubComments) RecollectSweep(ctx context.Context) (int, error)   { return 0, nil }

type stubSentiment struct{}

func (s *stubSentiment) AnalyzePost(ctx context.Context, postID uuid.UUID) (*types.SentimentAnalysis, error) {
  return nil, nil
}
func (s *stubSentiment) ProcessPending(ctx context.Context, limit int) (int, error) { return 0, nil }

type stubViability struct{}

func (s *stubViability) AnalyzeCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ViabilityAnalysis, error) {
  return nil, nil
}
func (s *stubViability) ProcessPending(ctx context.Context, limit int) (int, error) { return 0, nil }

type stubScenario struct{}

func (s *stubScenario) SimulateCandidate(ctx context.Context, candidateID uuid.UUID) (*types.ScenarioSimulation, error) {
  return nil, nil
}
func (s *stubScenario) ProcessPending(ctx context.Context, limit int) (int, error) { return 0, nil }

func newTestScheduler(t *testing.T, scraping *stubScraping) *Scheduler {
  t.Helper()

  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("failed to init logger: %v", err)
  }

  return New(log, Config{
    Scraping:  scraping,
    Comments:  &stubComments{},
    Sentiment: &stubSentiment{},
    Viability: &stubViability{},
    Scenario:  &stubScenario{},
  })
}

func TestRunNowUnknownTask(t *testing.T) {
  s := newTestScheduler(t, &stubScraping{})

  if err := s.RunNow(context.Background(), "no_such_task"); err == nil {
    t.Fatal("expected an error for an unknown task")
  }
}

func TestRunNowExecutesTask(t *testing.T) {
  scraping := &stubScraping{}
  s := newTestScheduler(t, scraping)

  if err := s.RunNow(context.Background(), TaskProfileScrape); err != nil {
    t.Fatalf("run failed: %v", err)
  }
  if scraping.runs.Load() != 1 {
    t.Fatalf("task ran %d times, want 1", scraping.runs.Load())
  }
}

func TestRunNowRejectsOverlap(t *testing.T) {
  scraping := &stubScraping{block: make(chan struct{})}
  s := newTestScheduler(t, scraping)

  done := make(chan error, 1)
  go func() {
    done <- s.RunNow(context.Background(), TaskProfileScrape)
  }()

  // Wait until the first run is inside the task body.
  deadline := time.After(2 * time.Second)
  for scraping.runs.Load() == 0 {
    select {
    case <-deadline:
      t.Fatal("first run never started")
    case <-time.After(5 * time.Millisecond):
    }
  }

  if err := s.RunNow(context.Background(), TaskProfileScrape); !errors.Is(err, ErrTaskRunning) {
    t.Fatalf("overlapping run: got %v, want ErrTaskRunning", err)
  }

  close(scraping.block)
  if err := <-done; err != nil {
    t.Fatalf("blocked run failed: %v", err)
  }
  if scraping.runs.Load() != 1 {
    t.Fatalf("task ran %d times, want 1", scraping.runs.Load())
  }
}

func TestGuardReleasedAfterError(t *testing.T) {
  scraping := &stubScraping{failErr: errors.New("upstream down")}
  s := newTestScheduler(t, scraping)

  if err := s.RunNow(context.Background(), TaskProfileScrape); err == nil {
    t.Fatal("expected the task error to surface")
  }

  // The slot must be free again after a failed run.
  scraping.failErr = nil
  if err := s.RunNow(context.Background(), TaskProfileScrape); err != nil {
    t.Fatalf("slot not released after error: %v", err)
  }
  if scraping.runs.Load() != 2 {
    t.Fatalf("task ran %d times, want 2", scraping.runs.Load())
  }
}

func TestStatusReflectsRunningTask(t *testing.T) {
  scraping := &stubScraping{block: make(chan struct{})}
  s := newTestScheduler(t, scraping)

  go func() {
    _ = s.RunNow(context.Background(), TaskProfileScrape)
  }()

  deadline := time.After(2 * time.Second)
  for scraping.runs.Load() == 0 {
    select {
    case <-deadline:
      t.Fatal("run never started")
    case <-time.After(5 * time.Millisecond):
    }
  }

  var running bool
  for _, status := range s.Status() {
    if status.Name == TaskProfileScrape {
      running = status.Running
    }
  }
  if !running {
    t.Fatal("status should report the task as running")
  }

  // Reading status must not touch the slot: the run is still in flight and
  // still holds it.
  if err := s.RunNow(context.Background(), TaskProfileScrape); !errors.Is(err, ErrTaskRunning) {
    t.Fatalf("slot state changed by a status read: got %v, want ErrTaskRunning", err)
  }

  close(scraping.block)
}
