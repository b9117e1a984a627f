package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Comment struct {
  ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  PostID             uuid.UUID `gorm:"type:uuid;not null;column:post_id;index" json:"post_id"`
  Post               *Post     `gorm:"constraint:OnDelete:CASCADE;foreignKey:PostID;references:ID" json:"post,omitempty"`
  InstagramCommentID string    `gorm:"not null;uniqueIndex;column:instagram_comment_id" json:"instagram_comment_id"`
  Text               string    `gorm:"not null;column:text" json:"text"`
  LikesCount         int       `gorm:"column:likes_count;not null;default:0" json:"likes_count"`
  OwnerUsername      string    `gorm:"column:owner_username" json:"owner_username"`
  OwnerIsVerified    bool      `gorm:"column:owner_is_verified;not null;default:false" json:"owner_is_verified"`
  PostedAt           time.Time `gorm:"column:posted_at" json:"posted_at"`
  CreatedAt          time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

func (Comment) TableName() string {
  return "comment"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
  if c.ID == uuid.Nil {
    c.ID = uuid.New()
  }
  return nil
}
