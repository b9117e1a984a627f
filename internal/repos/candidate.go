package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type CandidateRepo interface {
  Create(ctx context.Context, tx *gorm.DB, candidates []*types.Candidate) ([]*types.Candidate, error)
  GetByID(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.Candidate, error)
  ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Candidate, error)
  NextDueForScrape(ctx context.Context, tx *gorm.DB, cooldown time.Duration) (*types.Candidate, error)
  DueForViability(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Candidate, error)
  DueForScenario(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Candidate, error)
  UpdateInstagramSnapshot(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, fields map[string]any) error
  UpdateViabilityScore(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, score float64) error
  ScrapeStats(ctx context.Context, tx *gorm.DB, cooldown time.Duration) (total int64, scraped int64, due int64, err error)
}

type candidateRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCandidateRepo(db *gorm.DB, baseLog *logger.Logger) CandidateRepo {
  repoLog := baseLog.With("repo", "CandidateRepo")
  return &candidateRepo{db: db, log: repoLog}
}

func (cr *candidateRepo) Create(ctx context.Context, tx *gorm.DB, candidates []*types.Candidate) ([]*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if len(candidates) == 0 {
    return []*types.Candidate{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&candidates).Error; err != nil {
    return nil, err
  }

  return candidates, nil
}

func (cr *candidateRepo) GetByID(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var result types.Candidate

  if err := transaction.WithContext(ctx).
    Preload("Office").
    Preload("IntendedOffice").
    Preload("Region").
    Where("id = ?", candidateID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (cr *candidateRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Candidate

  if err := transaction.WithContext(ctx).
    Where("active = ?", true).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// NextDueForScrape picks the single most overdue active candidate: never
// scraped first, then oldest last_scraped_at, skipping anyone refreshed
// inside the cooldown window.
func (cr *candidateRepo) NextDueForScrape(ctx context.Context, tx *gorm.DB, cooldown time.Duration) (*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  cutoff := time.Now().Add(-cooldown)

  var result types.Candidate

  err := transaction.WithContext(ctx).
    Preload("IntendedOffice").
    Preload("Region").
    Where("active = ?", true).
    Where("instagram_handle <> ''").
    Where("last_scraped_at IS NULL OR last_scraped_at < ?", cutoff).
    Order("last_scraped_at ASC NULLS FIRST").
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

// DueForViability returns active candidates with follower data whose newest
// viability analysis is missing or older than since. Candidates the engine
// would only skip must not occupy the bounded batch, or a handful of
// data-poor profiles would starve everyone created after them.
func (cr *candidateRepo) DueForViability(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Candidate

  sub := transaction.Model(&types.ViabilityAnalysis{}).
    Select("candidate_id").
    Where("processed_at >= ?", since)

  if err := transaction.WithContext(ctx).
    Preload("IntendedOffice").
    Preload("Region").
    Where("active = ?", true).
    Where("followers_count > 0").
    Where("id NOT IN (?)", sub).
    Order("created_at ASC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// DueForScenario returns active candidates in a simulated tier (federal or
// state, via either office slot) with follower data and a viability score,
// whose simulation is missing, older than since, or stale against a newer
// viability analysis. The since cutoff keeps simulations refreshing on their
// own cooldown even when the viability queue stalls.
func (cr *candidateRepo) DueForScenario(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Candidate, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  tiers := []string{types.OfficeLevelFederal, types.OfficeLevelState}

  var results []*types.Candidate

  if err := transaction.WithContext(ctx).
    Preload("IntendedOffice").
    Preload("Region").
    Where("active = ?", true).
    Where("followers_count > 0").
    Where("viability_score IS NOT NULL").
    Where(`EXISTS (
      SELECT 1 FROM office o
      WHERE (o.id = candidate.intended_office_id OR o.id = candidate.office_id)
        AND o.level IN ?
    )`, tiers).
    Where(`id NOT IN (
      SELECT s.candidate_id FROM scenario_simulation s
      WHERE s.processed_at >= ?
        AND s.processed_at >= (
          SELECT COALESCE(MAX(v.processed_at), '1970-01-01') FROM viability_analysis v
          WHERE v.candidate_id = s.candidate_id
        )
    )`, since).
    Order("created_at ASC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cr *candidateRepo) UpdateInstagramSnapshot(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.Candidate{}).
    Where("id = ?", candidateID).
    Updates(fields).Error
}

func (cr *candidateRepo) UpdateViabilityScore(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID, score float64) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Candidate{}).
    Where("id = ?", candidateID).
    Update("viability_score", score).Error
}

func (cr *candidateRepo) ScrapeStats(ctx context.Context, tx *gorm.DB, cooldown time.Duration) (int64, int64, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  cutoff := time.Now().Add(-cooldown)

  var total, scraped, due int64

  base := transaction.WithContext(ctx).Model(&types.Candidate{}).Where("active = ?", true)

  if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
    return 0, 0, 0, err
  }
  if err := base.Session(&gorm.Session{}).Where("last_scraped_at IS NOT NULL").Count(&scraped).Error; err != nil {
    return 0, 0, 0, err
  }
  if err := base.Session(&gorm.Session{}).
    Where("last_scraped_at IS NULL OR last_scraped_at < ?", cutoff).
    Count(&due).Error; err != nil {
    return 0, 0, 0, err
  }
  return total, scraped, due, nil
}
