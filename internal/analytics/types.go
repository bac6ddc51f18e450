package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FetchEvent is one served (or refused) image request
type FetchEvent struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Route         string    `json:"route" gorm:"size:16;not null;index"`
	RequestedPath string    `json:"requested_path" gorm:"not null"`
	DefaultName   string    `json:"default_name,omitempty"`
	ServedKey     string    `json:"served_key,omitempty"`
	Step          string    `json:"step" gorm:"size:32;not null;index"`
	StatusCode    int       `json:"status_code" gorm:"not null"`
	ClientIP      string    `json:"client_ip,omitempty" gorm:"size:64"`
	UserAgent     string    `json:"user_agent,omitempty"`
	FetchedAt     time.Time `json:"fetched_at" gorm:"not null;index"`
}

// TableName pins the table name used by migrations
func (FetchEvent) TableName() string {
	return "fetch_events"
}

// BeforeCreate fills in the ID and timestamp
func (e *FetchEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	return nil
}

// StepCount is the number of requests a fallback step served
type StepCount struct {
	Step  string `json:"step"`
	Count int64  `json:"count"`
}

// MissedPath is a requested path that had to be served from a fallback
type MissedPath struct {
	RequestedPath string `json:"requested_path"`
	Count         int64  `json:"count"`
}

// Stats summarises fetch events since a point in time
type Stats struct {
	Since       time.Time    `json:"since"`
	Total       int64        `json:"total"`
	Steps       []StepCount  `json:"steps"`
	TopFallback []MissedPath `json:"top_fallback"`
}
