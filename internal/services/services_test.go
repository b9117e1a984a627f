package services

import (
  "context"
  "sync/atomic"
  "testing"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"
  "github.com/cubeapp/cubeapp-backend/internal/db"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
  t.Helper()

  conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("failed to open sqlite: %v", err)
  }
  if err := conn.AutoMigrate(db.AllModels()...); err != nil {
    t.Fatalf("failed to migrate: %v", err)
  }
  return conn
}

func newTestLogger(t *testing.T) *logger.Logger {
  t.Helper()

  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("failed to init logger: %v", err)
  }
  return log
}

// fakeGemini counts calls and replays a canned response.
type fakeGemini struct {
  calls    atomic.Int64
  response map[string]any
  err      error
}

func (f *fakeGemini) GenerateJSON(ctx context.Context, call GeminiCall, prompt string) (map[string]any, error) {
  f.calls.Add(1)
  if f.err != nil {
    return nil, f.err
  }
  return f.response, nil
}

func (f *fakeGemini) Model() string {
  return "fake-model"
}

// fakeApify replays canned comments or an error.
type fakeApify struct {
  calls    atomic.Int64
  comments []ApifyComment
  profile  *ApifyProfile
  err      error
}

func (f *fakeApify) ScrapeProfile(ctx context.Context, handle string) (*ApifyProfile, error) {
  f.calls.Add(1)
  if f.err != nil {
    return nil, f.err
  }
  return f.profile, nil
}

func (f *fakeApify) ScrapeComments(ctx context.Context, postURL string, limit int) ([]ApifyComment, error) {
  if !IsInstagramPostURL(postURL) {
    return nil, ErrInvalidPostURL
  }
  f.calls.Add(1)
  if f.err != nil {
    return nil, f.err
  }
  return f.comments, nil
}
