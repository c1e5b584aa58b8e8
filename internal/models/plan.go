package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Plan is a purchasable mobile plan in the catalog.
type Plan struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Price float64   `gorm:"not null;index" json:"price"`

	ShortDescription *string `json:"short_description"`
	Promotion        *string `json:"promotion"`

	// first-level columns used by filters and cards
	DataGB         *int    `json:"data_gb"`
	Minutes        *int    `json:"minutes"`
	Segment        *string `gorm:"index" json:"segment"`
	TargetAudience *string `json:"target_audience"`

	ImageURL *string `json:"image_url"`
	Active   bool    `gorm:"not null;index" json:"active"`

	// mobile data, voice minutes, sms, 4g/5g speed, social networks, roaming ...
	TechnicalDetails datatypes.JSONMap `json:"technical_details"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanSummary is the slice of a plan embedded in request listings.
type PlanSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Price   float64   `json:"price"`
	DataGB  *int      `json:"data_gb,omitempty"`
	Minutes *int      `json:"minutes,omitempty"`
}

func (p *Plan) Summary() *PlanSummary {
	if p == nil {
		return nil
	}
	return &PlanSummary{ID: p.ID, Name: p.Name, Price: p.Price, DataGB: p.DataGB, Minutes: p.Minutes}
}
