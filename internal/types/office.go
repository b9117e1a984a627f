package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Office levels. FEDERAL and STATE route to the deterministic Score Cube;
// everything else goes through the qualitative path.
const (
  OfficeLevelFederal   = "FEDERAL"
  OfficeLevelState     = "STATE"
  OfficeLevelMunicipal = "MUNICIPAL"
  OfficeLevelDistrict  = "DISTRICT"
)

type Office struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  Name      string    `gorm:"not null;column:name" json:"name"`
  Level     string    `gorm:"not null;column:level;index" json:"level"`
  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Office) TableName() string {
  return "office"
}

func (o *Office) BeforeCreate(tx *gorm.DB) error {
  if o.ID == uuid.Nil {
    o.ID = uuid.New()
  }
  return nil
}
