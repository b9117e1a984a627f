package repos

import (
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
