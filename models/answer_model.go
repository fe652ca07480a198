package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Answer struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	SubmissionID   uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	QuestionNumber int       `gorm:"not null" json:"question_number"`
	Response       string    `gorm:"type:text" json:"response"`
	IsCorrect      *bool     `json:"is_correct"`
	PointsAwarded  int       `gorm:"not null;default:0" json:"points_awarded"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
