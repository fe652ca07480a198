package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Submission struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ExamID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submissions_exam_student" json:"exam_id"`
	StudentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submissions_exam_student" json:"student_id"`
	TotalScore  int       `gorm:"not null;default:0" json:"total_score"`
	AutoGraded  bool      `gorm:"not null;default:false" json:"auto_graded"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`

	Answers []Answer `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
