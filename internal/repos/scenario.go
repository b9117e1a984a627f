package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/cubeapp/cubeapp-backend/internal/logger"
  "github.com/cubeapp/cubeapp-backend/internal/types"
)

type ScenarioRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, sim *types.ScenarioSimulation) (*types.ScenarioSimulation, error)
  GetByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.ScenarioSimulation, error)
  List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ScenarioSimulation, error)
}

type scenarioRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewScenarioRepo(db *gorm.DB, baseLog *logger.Logger) ScenarioRepo {
  repoLog := baseLog.With("repo", "ScenarioRepo")
  return &scenarioRepo{db: db, log: repoLog}
}

// Upsert keeps exactly one live simulation per candidate. The conflict target
// is the unique candidate_id index, and every projection column is replaced
// atomically in a single statement.
func (scr *scenarioRepo) Upsert(ctx context.Context, tx *gorm.DB, sim *types.ScenarioSimulation) (*types.ScenarioSimulation, error) {
  transaction := tx
  if transaction == nil {
    transaction = scr.db
  }

  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "candidate_id"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "tier", "candidate_type", "score_cube", "electoral_gap",
        "engagement_deficit", "uncertainty", "optimistic", "realistic",
        "pessimistic", "parameters", "algorithm_version", "processed_at",
        "updated_at",
      }),
    }).
    Create(sim).Error; err != nil {
    return nil, err
  }
  return sim, nil
}

func (scr *scenarioRepo) GetByCandidate(ctx context.Context, tx *gorm.DB, candidateID uuid.UUID) (*types.ScenarioSimulation, error) {
  transaction := tx
  if transaction == nil {
    transaction = scr.db
  }

  var result types.ScenarioSimulation

  err := transaction.WithContext(ctx).
    Where("candidate_id = ?", candidateID).
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (scr *scenarioRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ScenarioSimulation, error) {
  transaction := tx
  if transaction == nil {
    transaction = scr.db
  }

  var results []*types.ScenarioSimulation

  if err := transaction.WithContext(ctx).
    Order("processed_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
