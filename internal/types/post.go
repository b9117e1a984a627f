package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Post struct {
  ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  CandidateID     uuid.UUID  `gorm:"type:uuid;not null;column:candidate_id;index" json:"candidate_id"`
  Candidate       *Candidate `gorm:"constraint:OnDelete:CASCADE;foreignKey:CandidateID;references:ID" json:"candidate,omitempty"`
  InstagramPostID string     `gorm:"not null;uniqueIndex;column:instagram_post_id" json:"instagram_post_id"`
  ShortCode       string     `gorm:"column:short_code" json:"short_code"`
  Type            string     `gorm:"column:type" json:"type"`
  Caption         string     `gorm:"column:caption" json:"caption"`
  URL             string     `gorm:"column:url" json:"url"`
  Hashtags        datatypes.JSON `gorm:"type:jsonb;column:hashtags" json:"hashtags,omitempty"`
  Mentions        datatypes.JSON `gorm:"type:jsonb;column:mentions" json:"mentions,omitempty"`
  DisplayURL      string     `gorm:"column:display_url" json:"display_url"`
  OwnerUsername   string     `gorm:"column:owner_username" json:"owner_username"`

  // Engagement counters are nullable on purpose: a post without both values
  // is excluded from engagement averages.
  LikesCount     *int `gorm:"column:likes_count" json:"likes_count,omitempty"`
  CommentsCount  *int `gorm:"column:comments_count" json:"comments_count,omitempty"`
  VideoViewCount *int `gorm:"column:video_view_count" json:"video_view_count,omitempty"`

  CommentsDisabled bool       `gorm:"column:comments_disabled;not null;default:false" json:"comments_disabled"`
  PostedAt         *time.Time `gorm:"column:posted_at;index" json:"posted_at,omitempty"`

  // Collection watermarks. CommentsProcessedAt is stamped on the first
  // successful collection; Reprocessed flips false->true at most once ever.
  CommentsProcessedAt  *time.Time `gorm:"column:comments_processed_at" json:"comments_processed_at,omitempty"`
  SentimentProcessedAt *time.Time `gorm:"column:sentiment_processed_at" json:"sentiment_processed_at,omitempty"`
  Reprocessed          bool       `gorm:"column:reprocessed;not null;default:false" json:"reprocessed"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Post) TableName() string {
  return "post"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
  if p.ID == uuid.Nil {
    p.ID = uuid.New()
  }
  return nil
}
