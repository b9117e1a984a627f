package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type ViabilityRepo interface {
  Create(ctx context.Context, tx *gorm.DB, analysis *types.ViabilityAnalysis) (*types.ViabilityAnalysis, error)
  LatestByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.ViabilityAnalysis, error)
  ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.ViabilityAnalysis, error)
}

type viabilityRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewViabilityRepo(db *gorm.DB, baseLog *logger.Logger) ViabilityRepo {
  repoLog := baseLog.With("repo", "ViabilityRepo")
  return &viabilityRepo{db: db, log: repoLog}
}

func (vr *viabilityRepo) Create(ctx context.Context, tx *gorm.DB, analysis *types.ViabilityAnalysis) (*types.ViabilityAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  if err := transaction.WithContext(ctx).Create(analysis).Error; err != nil {
    return nil, err
  }
  return analysis, nil
}

func (vr *viabilityRepo) LatestByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.ViabilityAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  var result types.ViabilityAnalysis

  err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Order("processed_at DESC").
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (vr *viabilityRepo) ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.ViabilityAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  var results []*types.ViabilityAnalysis

  if err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Order("processed_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
