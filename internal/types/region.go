package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Region struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  Name      string    `gorm:"not null;column:name" json:"name"`
  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Region) TableName() string {
  return "region"
}

func (r *Region) BeforeCreate(tx *gorm.DB) error {
  if r.ID == uuid.Nil {
    r.ID = uuid.New()
  }
  return nil
}
