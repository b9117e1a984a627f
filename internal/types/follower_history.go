package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type FollowerHistory struct {
  ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  CandidateID    uuid.UUID  `gorm:"type:uuid;not null;column:candidate_id;index" json:"candidate_id"`
  Candidate      *Candidate `gorm:"constraint:OnDelete:CASCADE;foreignKey:CandidateID;references:ID" json:"candidate,omitempty"`
  FollowersCount int        `gorm:"column:followers_count;not null" json:"followers_count"`
  FollowsCount   int        `gorm:"column:follows_count;not null;default:0" json:"follows_count"`
  PostsCount     int        `gorm:"column:posts_count;not null;default:0" json:"posts_count"`

  // Deltas against the previous measurement; nil on the first row.
  FollowerDelta *int     `gorm:"column:follower_delta" json:"follower_delta,omitempty"`
  DeltaPercent  *float64 `gorm:"column:delta_percent" json:"delta_percent,omitempty"`
  DaysBetween   *int     `gorm:"column:days_between" json:"days_between,omitempty"`

  CollectionType string    `gorm:"column:collection_type;not null;default:'AUTOMATIC'" json:"collection_type"`
  CollectedAt    time.Time `gorm:"column:collected_at;not null;index" json:"collected_at"`
  CreatedAt      time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (FollowerHistory) TableName() string {
  return "follower_history"
}

func (f *FollowerHistory) BeforeCreate(tx *gorm.DB) error {
  if f.ID == uuid.Nil {
    f.ID = uuid.New()
  }
  return nil
}
