package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  SentimentTypeComments = "COMMENTS"

  SentimentLabelPositive = "POSITIVE"
  SentimentLabelNegative = "NEGATIVE"
  SentimentLabelNeutral  = "NEUTRAL"
)

type SentimentAnalysis struct {
  ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  PostID       uuid.UUID  `gorm:"type:uuid;not null;column:post_id;index:idx_post_analysis_type,unique" json:"post_id"`
  Post         *Post      `gorm:"constraint:OnDelete:CASCADE;foreignKey:PostID;references:ID" json:"post,omitempty"`
  CandidateID  uuid.UUID  `gorm:"type:uuid;not null;column:candidate_id;index" json:"candidate_id"`
  Candidate    *Candidate `gorm:"constraint:OnDelete:CASCADE;foreignKey:CandidateID;references:ID" json:"candidate,omitempty"`
  AnalysisType string     `gorm:"not null;column:analysis_type;index:idx_post_analysis_type,unique" json:"analysis_type"`

  Label string  `gorm:"not null;column:label" json:"label"`
  Score float64 `gorm:"not null;column:score" json:"score"`

  // Confidence is recomputed from the evidence, never taken from the
  // classifier. The classifier's own value is kept inside Insights for audit.
  Confidence float64 `gorm:"not null;column:confidence" json:"confidence"`

  TotalComments int            `gorm:"column:total_comments;not null;default:0" json:"total_comments"`
  Insights      datatypes.JSON `gorm:"type:jsonb;column:insights" json:"insights,omitempty"`

  Model         string    `gorm:"column:model" json:"model"`
  PromptVersion string    `gorm:"column:prompt_version" json:"prompt_version"`
  ProcessedAt   time.Time `gorm:"column:processed_at;not null;index" json:"processed_at"`
  CreatedAt     time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (SentimentAnalysis) TableName() string {
  return "sentiment_analysis"
}

func (s *SentimentAnalysis) BeforeCreate(tx *gorm.DB) error {
  if s.ID == uuid.Nil {
    s.ID = uuid.New()
  }
  return nil
}
