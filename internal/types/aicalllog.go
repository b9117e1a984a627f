package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

const (
  AICallTypeSentiment = "SENTIMENT"
  AICallTypeViability = "VIABILITY"
)

// AICallLog records every model invocation, successful or not. Rows are
// best-effort: a failed insert never fails the calling pipeline.
type AICallLog struct {
  ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  CandidateID *uuid.UUID `gorm:"type:uuid;column:candidate_id;index" json:"candidate_id,omitempty"`
  PostID      *uuid.UUID `gorm:"type:uuid;column:post_id;index" json:"post_id,omitempty"`

  CallType string `gorm:"not null;column:call_type;index" json:"call_type"`
  Model    string `gorm:"column:model" json:"model"`
  Prompt   string `gorm:"column:prompt" json:"prompt"`
  Response string `gorm:"column:response" json:"response"`

  Success    bool   `gorm:"column:success;not null;default:false" json:"success"`
  Error      string `gorm:"column:error" json:"error"`
  DurationMS int64  `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (AICallLog) TableName() string {
  return "ai_call_log"
}

func (a *AICallLog) BeforeCreate(tx *gorm.DB) error {
  if a.ID == uuid.Nil {
    a.ID = uuid.New()
  }
  return nil
}
