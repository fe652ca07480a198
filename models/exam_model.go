package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ExamStatusDraft  = "draft"
	ExamStatusActive = "active"
	ExamStatusEnded  = "ended"
)

type Exam struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	Status          string    `gorm:"size:20;not null;default:'draft'" json:"status"`
	TotalPoints     int       `gorm:"not null;default:0" json:"total_points"`
	CreatedBy       uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`

	StartedAt *time.Time `json:"started_at"`
	Deadline  *time.Time `json:"deadline"`
	EndedAt   *time.Time `json:"ended_at"`

	Questions   []Question   `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	Submissions []Submission `gorm:"foreignKey:ExamID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Exam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
