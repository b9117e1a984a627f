package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type CommentRepo interface {
  InsertIfAbsent(ctx context.Context, tx *gorm.DB, comments []*types.Comment) (inserted int, skipped int, err error)
  CountByPost(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (int64, error)
  ListForAnalysis(ctx context.Context, tx *gorm.DB, postID uuid.UUID, limit int) ([]*types.Comment, error)
}

type commentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
  repoLog := baseLog.With("repo", "CommentRepo")
  return &commentRepo{db: db, log: repoLog}
}

// InsertIfAbsent writes only comments whose instagram_comment_id is new.
// Duplicates are skipped at the database level, so feeding the same batch
// twice is a no-op for the second call.
func (cmr *commentRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, comments []*types.Comment) (int, int, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  if len(comments) == 0 {
    return 0, 0, nil
  }

  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "instagram_comment_id"}},
      DoNothing: true,
    }).
    Create(&comments)
  if res.Error != nil {
    return 0, 0, res.Error
  }

  inserted := int(res.RowsAffected)
  skipped := len(comments) - inserted
  return inserted, skipped, nil
}

func (cmr *commentRepo) CountByPost(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  var count int64

  if err := transaction.WithContext(ctx).
    Model(&types.Comment{}).
    Where("post_id = ?", postID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

// ListForAnalysis orders by likes then recency so the transcript fed to the
// classifier leads with the comments people actually engaged with.
func (cmr *commentRepo) ListForAnalysis(ctx context.Context, tx *gorm.DB, postID uuid.UUID, limit int) ([]*types.Comment, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  var results []*types.Comment

  if err := transaction.WithContext(ctx).
    Where("post_id = ?", postID).
    Order("likes_count DESC").
    Order("posted_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
