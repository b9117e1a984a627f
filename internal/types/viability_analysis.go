package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  ViabilityCategoryHigh     = "HIGH"
  ViabilityCategoryMedium   = "MEDIUM"
  ViabilityCategoryAtRisk   = "AT_RISK"
  ViabilityCategoryCritical = "CRITICAL"
)

type ViabilityAnalysis struct {
  ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  CandidateID uuid.UUID  `gorm:"type:uuid;not null;column:candidate_id;index" json:"candidate_id"`
  Candidate   *Candidate `gorm:"constraint:OnDelete:CASCADE;foreignKey:CandidateID;references:ID" json:"candidate,omitempty"`

  Score      float64 `gorm:"not null;column:score" json:"score"`
  Category   string  `gorm:"not null;column:category" json:"category"`
  Confidence float64 `gorm:"not null;column:confidence" json:"confidence"`

  QuantitativeInputs datatypes.JSON `gorm:"type:jsonb;column:quantitative_inputs" json:"quantitative_inputs,omitempty"`
  SentimentSummary   datatypes.JSON `gorm:"type:jsonb;column:sentiment_summary" json:"sentiment_summary,omitempty"`
  Strengths          datatypes.JSON `gorm:"type:jsonb;column:strengths" json:"strengths,omitempty"`
  Concerns           datatypes.JSON `gorm:"type:jsonb;column:concerns" json:"concerns,omitempty"`
  Rationale          string         `gorm:"column:rationale" json:"rationale"`

  Model         string    `gorm:"column:model" json:"model"`
  PromptVersion string    `gorm:"column:prompt_version" json:"prompt_version"`
  ProcessedAt   time.Time `gorm:"column:processed_at;not null;index" json:"processed_at"`
  CreatedAt     time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (ViabilityAnalysis) TableName() string {
  return "viability_analysis"
}

func (v *ViabilityAnalysis) BeforeCreate(tx *gorm.DB) error {
  if v.ID == uuid.Nil {
    v.ID = uuid.New()
  }
  return nil
}

// CategoryForScore maps a 0-100 score onto its band. The thresholds are
// authoritative: whatever category a model suggests is discarded in favor of
// this mapping.
func CategoryForScore(score float64) string {
  switch {
  case score >= 75:
    return ViabilityCategoryHigh
  case score >= 50:
    return ViabilityCategoryMedium
  case score >= 25:
    return ViabilityCategoryAtRisk
  default:
    return ViabilityCategoryCritical
  }
}
