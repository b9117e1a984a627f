package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type SentimentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, analysis *types.SentimentAnalysis) (*types.SentimentAnalysis, error)
  GetByPost(ctx context.Context, tx *gorm.DB, postID uuid.UUID, analysisType string) (*types.SentimentAnalysis, error)
  ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.SentimentAnalysis, error)
}

type sentimentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSentimentRepo(db *gorm.DB, baseLog *logger.Logger) SentimentRepo {
  repoLog := baseLog.With("repo", "SentimentRepo")
  return &sentimentRepo{db: db, log: repoLog}
}

func (sr *sentimentRepo) Create(ctx context.Context, tx *gorm.DB, analysis *types.SentimentAnalysis) (*types.SentimentAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if err := transaction.WithContext(ctx).Create(analysis).Error; err != nil {
    return nil, err
  }
  return analysis, nil
}

func (sr *sentimentRepo) GetByPost(ctx context.Context, tx *gorm.DB, postID uuid.UUID, analysisType string) (*types.SentimentAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var result types.SentimentAnalysis

  err := transaction.WithContext(ctx).
    Where("post_id = ? AND analysis_type = ?", postID, analysisType).
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (sr *sentimentRepo) ListByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.SentimentAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var results []*types.SentimentAnalysis

  if err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Order("processed_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
