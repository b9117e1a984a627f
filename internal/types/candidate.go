package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Candidate struct {
  ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  Name              string     `gorm:"not null;column:name" json:"name"`
  InstagramHandle   string     `gorm:"column:instagram_handle;index" json:"instagram_handle"`
  InstagramID       string     `gorm:"column:instagram_id" json:"instagram_id"`
  InstagramURL      string     `gorm:"column:instagram_url" json:"instagram_url"`
  FullName          string     `gorm:"column:full_name" json:"full_name"`
  Biography         string     `gorm:"column:biography" json:"biography"`
  FollowersCount    int        `gorm:"column:followers_count;not null;default:0" json:"followers_count"`
  FollowsCount      int        `gorm:"column:follows_count;not null;default:0" json:"follows_count"`
  PostsCount        int        `gorm:"column:posts_count;not null;default:0" json:"posts_count"`
  Verified          bool       `gorm:"column:verified;not null;default:false" json:"verified"`
  Private           bool       `gorm:"column:private;not null;default:false" json:"private"`
  IsBusinessAccount bool       `gorm:"column:is_business_account;not null;default:false" json:"is_business_account"`
  BusinessCategory  string     `gorm:"column:business_category" json:"business_category"`
  ProfilePicURL     string     `gorm:"column:profile_pic_url" json:"profile_pic_url"`

  OfficeID         *uuid.UUID `gorm:"type:uuid;column:office_id;index" json:"office_id,omitempty"`
  Office           *Office    `gorm:"foreignKey:OfficeID;references:ID" json:"office,omitempty"`
  IntendedOfficeID *uuid.UUID `gorm:"type:uuid;column:intended_office_id;index" json:"intended_office_id,omitempty"`
  IntendedOffice   *Office    `gorm:"foreignKey:IntendedOfficeID;references:ID" json:"intended_office,omitempty"`
  RegionID         *uuid.UUID `gorm:"type:uuid;column:region_id;index" json:"region_id,omitempty"`
  Region           *Region    `gorm:"foreignKey:RegionID;references:ID" json:"region,omitempty"`

  VotesLastElection int      `gorm:"column:votes_last_election;not null;default:0" json:"votes_last_election"`
  VotesRequired     int      `gorm:"column:votes_required;not null;default:0" json:"votes_required"`
  CityPopulation    int      `gorm:"column:city_population;not null;default:0" json:"city_population"`
  ValidVotes        int      `gorm:"column:valid_votes;not null;default:0" json:"valid_votes"`

  // Denormalized copy of the most recent viability score. Owned by the
  // viability engine; overwritten on every run.
  ViabilityScore *float64 `gorm:"column:viability_score" json:"viability_score,omitempty"`

  // No default tag: gorm skips zero-value fields that have one, and an
  // explicit Active=false must reach the database.
  Active        bool       `gorm:"column:active;not null" json:"active"`
  LastScrapedAt *time.Time `gorm:"column:last_scraped_at" json:"last_scraped_at,omitempty"`
  CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
  UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (Candidate) TableName() string {
  return "candidate"
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
  if c.ID == uuid.Nil {
    c.ID = uuid.New()
  }
  return nil
}
