package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type PostRepo interface {
  UpsertSnapshots(ctx context.Context, tx *gorm.DB, posts []*types.Post) error
  GetByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.Post, error)
  NextUnprocessed(ctx context.Context, tx *gorm.DB) (*types.Post, error)
  ListRecollectEligible(ctx context.Context, tx *gorm.DB, window time.Duration, minAge time.Duration, margin int, limit int) ([]*types.Post, error)
  ListRecentWithEngagement(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.Post, error)
  PendingSentiment(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Post, error)
  MarkCommentsProcessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID, at time.Time) error
  MarkReprocessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error
  MarkSentimentProcessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID, at time.Time) error
}

type postRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
  repoLog := baseLog.With("repo", "PostRepo")
  return &postRepo{db: db, log: repoLog}
}

// UpsertSnapshots inserts new posts and refreshes the snapshot columns of
// known ones, keyed on instagram_post_id. Collection watermarks are never
// touched here so a re-scrape cannot reset processing state.
func (pr *postRepo) UpsertSnapshots(ctx context.Context, tx *gorm.DB, posts []*types.Post) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  if len(posts) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "instagram_post_id"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "caption", "likes_count", "comments_count", "video_view_count",
        "comments_disabled", "display_url", "hashtags", "mentions", "updated_at",
      }),
    }).
    Create(&posts).Error
}

func (pr *postRepo) GetByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.Post, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var result types.Post

  if err := transaction.WithContext(ctx).
    Preload("Candidate").
    Where("id = ?", postID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// NextUnprocessed returns the oldest post that never had its comments
// collected, or nil when the backlog is empty.
func (pr *postRepo) NextUnprocessed(ctx context.Context, tx *gorm.DB) (*types.Post, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var result types.Post

  err := transaction.WithContext(ctx).
    Preload("Candidate").
    Where("comments_processed_at IS NULL").
    Where("comments_disabled = ?", false).
    Order("posted_at ASC NULLS LAST").
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

// ListRecollectEligible finds posts worth a second collection pass: published
// inside the window, first pass at least minAge ago, never reprocessed, and
// reporting more than margin comments beyond what we stored.
func (pr *postRepo) ListRecollectEligible(ctx context.Context, tx *gorm.DB, window time.Duration, minAge time.Duration, margin int, limit int) ([]*types.Post, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  now := time.Now()
  windowStart := now.Add(-window)
  ageCutoff := now.Add(-minAge)

  var results []*types.Post

  if err := transaction.WithContext(ctx).
    Preload("Candidate").
    Where("reprocessed = ?", false).
    Where("comments_processed_at IS NOT NULL AND comments_processed_at < ?", ageCutoff).
    Where("posted_at IS NOT NULL AND posted_at >= ?", windowStart).
    Where("comments_count IS NOT NULL").
    Where(`comments_count - (
      SELECT COUNT(*) FROM comment c WHERE c.post_id = post.id
    ) > ?`, margin).
    Order("posted_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// ListRecentWithEngagement returns the newest posts carrying both engagement
// counters. Posts missing either value are excluded from averages upstream.
func (pr *postRepo) ListRecentWithEngagement(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, limit int) ([]*types.Post, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var results []*types.Post

  if err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    Where("likes_count IS NOT NULL AND comments_count IS NOT NULL").
    Order("posted_at DESC NULLS LAST").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// PendingSentiment lists posts whose comments were collected but never
// analyzed, oldest collection first.
func (pr *postRepo) PendingSentiment(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Post, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var results []*types.Post

  if err := transaction.WithContext(ctx).
    Preload("Candidate").
    Where("comments_processed_at IS NOT NULL").
    Where("sentiment_processed_at IS NULL").
    Order("comments_processed_at ASC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *postRepo) MarkCommentsProcessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Post{}).
    Where("id = ?", postID).
    Where("comments_processed_at IS NULL").
    Update("comments_processed_at", at).Error
}

// MarkReprocessed stamps the second-pass flag. It flips regardless of how the
// pass went, so a post is retried at most once.
func (pr *postRepo) MarkReprocessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Post{}).
    Where("id = ?", postID).
    Update("reprocessed", true).Error
}

func (pr *postRepo) MarkSentimentProcessed(ctx context.Context, tx *gorm.DB, postID uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Post{}).
    Where("id = ?", postID).
    Update("sentiment_processed_at", at).Error
}
