package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  CandidateTypeVeteran  = "VETERAN"
  CandidateTypeNewcomer = "NEWCOMER"
)

// ScenarioSimulation holds the single live projection per candidate. Repeated
// runs upsert on candidate_id instead of appending history.
type ScenarioSimulation struct {
  ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  CandidateID uuid.UUID  `gorm:"type:uuid;not null;column:candidate_id;uniqueIndex" json:"candidate_id"`
  Candidate   *Candidate `gorm:"constraint:OnDelete:CASCADE;foreignKey:CandidateID;references:ID" json:"candidate,omitempty"`

  Tier          string `gorm:"column:tier" json:"tier"`
  CandidateType string `gorm:"not null;column:candidate_type" json:"candidate_type"`

  ScoreCube         float64 `gorm:"not null;column:score_cube" json:"score_cube"`
  ElectoralGap      float64 `gorm:"not null;column:electoral_gap" json:"electoral_gap"`
  EngagementDeficit float64 `gorm:"not null;column:engagement_deficit" json:"engagement_deficit"`
  Uncertainty       float64 `gorm:"not null;column:uncertainty" json:"uncertainty"`

  Optimistic  int `gorm:"not null;column:optimistic" json:"optimistic"`
  Realistic   int `gorm:"not null;column:realistic" json:"realistic"`
  Pessimistic int `gorm:"not null;column:pessimistic" json:"pessimistic"`

  Parameters       datatypes.JSON `gorm:"type:jsonb;column:parameters" json:"parameters,omitempty"`
  AlgorithmVersion string         `gorm:"column:algorithm_version" json:"algorithm_version"`
  ProcessedAt      time.Time      `gorm:"column:processed_at;not null" json:"processed_at"`
  CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (ScenarioSimulation) TableName() string {
  return "scenario_simulation"
}

func (s *ScenarioSimulation) BeforeCreate(tx *gorm.DB) error {
  if s.ID == uuid.Nil {
    s.ID = uuid.New()
  }
  return nil
}
