package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QuestionKindObjective  = "objective"
	QuestionKindSubjective = "subjective"
)

type QuestionOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Question struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ExamID         uuid.UUID `gorm:"type:uuid;not null;index" json:"exam_id"`
	QuestionNumber int       `gorm:"not null" json:"question_number"`
	Kind           string    `gorm:"size:20;not null" json:"kind"`
	Prompt         string    `gorm:"type:text;not null" json:"prompt"`
	Points         int       `gorm:"not null;default:1" json:"points"`

	Options       datatypes.JSONSlice[QuestionOption] `json:"options,omitempty"`
	CorrectAnswer string                              `gorm:"type:text" json:"correct_answer,omitempty"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
