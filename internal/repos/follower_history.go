package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type FollowerHistoryRepo interface {
  Create(ctx context.Context, tx *gorm.DB, entry *types.FollowerHistory) (*types.FollowerHistory, error)
  LatestByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.FollowerHistory, error)
  ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.FollowerHistory, error)
}

type followerHistoryRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewFollowerHistoryRepo(db *gorm.DB, baseLog *logger.Logger) FollowerHistoryRepo {
  repoLog := baseLog.With("repo", "FollowerHistoryRepo")
  return &followerHistoryRepo{db: db, log: repoLog}
}

func (fr *followerHistoryRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.FollowerHistory) (*types.FollowerHistory, error) {
  transaction := tx
  if transaction == nil {
    transaction = fr.db
  }

  if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
    return nil, err
  }
  return entry, nil
}

func (fr *followerHistoryRepo) LatestByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.FollowerHistory, error) {
  transaction := tx
  if transaction == nil {
    transaction = fr.db
  }

  var result types.FollowerHistory

  err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Order("collected_at DESC").
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (fr *followerHistoryRepo) ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.FollowerHistory, error) {
  transaction := tx
  if transaction == nil {
    transaction = fr.db
  }

  var results []*types.FollowerHistory

  if err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Order("collected_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
