package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuslink/university_portal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnswerInput struct {
	QuestionNumber int
	Response       string
}

// Submit records and scores a participant's one and only submission for an
// exam. The wall-clock deadline is checked independently of the status column:
// the sweeper only runs once a minute, so an exam past its deadline can still
// read as active.
func (s *ExamService) Submit(ctx context.Context, studentID, examID uuid.UUID, answers []AnswerInput) (*models.Submission, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: at least one answer is required", ErrValidation)
	}

	exam, err := s.examWithQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamStatusActive || exam.StartedAt == nil {
		return nil, fmt.Errorf("%w: exam is not open for submissions", ErrStateConflict)
	}

	now := s.now()
	deadline := exam.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	if !now.Before(deadline) {
		return nil, fmt.Errorf("%w: the submission window has closed", ErrStateConflict)
	}

	byNumber := make(map[int]models.Question, len(exam.Questions))
	for _, q := range exam.Questions {
		byNumber[q.QuestionNumber] = q
	}

	submission := models.Submission{
		ExamID:      exam.ID,
		StudentID:   studentID,
		SubmittedAt: now,
		AutoGraded:  true,
	}

	answered := make(map[int]bool, len(answers))
	total := 0
	for _, in := range answers {
		question, ok := byNumber[in.QuestionNumber]
		if !ok {
			return nil, fmt.Errorf("%w: question %d", ErrQuestionNotFound, in.QuestionNumber)
		}
		if answered[in.QuestionNumber] {
			return nil, fmt.Errorf("%w: question %d answered twice", ErrValidation, in.QuestionNumber)
		}
		answered[in.QuestionNumber] = true

		answer := models.Answer{
			QuestionNumber: in.QuestionNumber,
			Response:       in.Response,
		}
		switch question.Kind {
		case models.QuestionKindObjective:
			correct := in.Response == question.CorrectAnswer
			answer.IsCorrect = &correct
			if correct {
				answer.PointsAwarded = question.Points
			}
		case models.QuestionKindSubjective:
			// Waits for manual grading; IsCorrect stays unknown.
			submission.AutoGraded = false
		}
		total += answer.PointsAwarded
		submission.Answers = append(submission.Answers, answer)
	}
	submission.TotalScore = total

	// The unique index on (exam_id, student_id) is what enforces one
	// submission per participant; a prior existence check would race.
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: already submitted", ErrStateConflict)
		}
		return nil, err
	}
	return &submission, nil
}

// GradeAnswer assigns points to a single answer and rebuilds the submission
// total from all stored answers, so retrying the same grade call converges on
// the same total instead of drifting.
func (s *ExamService) GradeAnswer(ctx context.Context, ownerID, examID, studentID uuid.UUID, questionNumber, pointsAwarded int) (*models.Submission, error) {
	exam, err := s.ownedExam(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}

	var question models.Question
	err = s.db.WithContext(ctx).
		First(&question, "exam_id = ? AND question_number = ?", exam.ID, questionNumber).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: question %d", ErrQuestionNotFound, questionNumber)
		}
		return nil, err
	}
	if pointsAwarded < 0 || pointsAwarded > question.Points {
		return nil, fmt.Errorf("%w: points_awarded must be between 0 and %d", ErrValidation, question.Points)
	}

	var submission models.Submission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, "exam_id = ? AND student_id = ?", exam.ID, studentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrSubmissionNotFound
			}
			return err
		}

		var answer models.Answer
		if err := tx.First(&answer, "submission_id = ? AND question_number = ?", submission.ID, questionNumber).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: no answer recorded for question %d", ErrAnswerNotFound, questionNumber)
			}
			return err
		}

		// Any partial credit counts as correct for display purposes.
		isCorrect := pointsAwarded > 0
		err := tx.Model(&answer).Updates(map[string]interface{}{
			"points_awarded": pointsAwarded,
			"is_correct":     isCorrect,
		}).Error
		if err != nil {
			return err
		}

		var total int
		err = tx.Model(&models.Answer{}).
			Where("submission_id = ?", submission.ID).
			Select("COALESCE(SUM(points_awarded), 0)").
			Scan(&total).Error
		if err != nil {
			return err
		}
		return tx.Model(&submission).UpdateColumn("total_score", total).Error
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_number ASC")
		}).
		First(&submission, "id = ?", submission.ID).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// ExamForStudent returns an exam as participants are allowed to see it:
// drafts are invisible, and correct answers stay hidden until the exam has
// ended.
func (s *ExamService) ExamForStudent(ctx context.Context, examID uuid.UUID) (*models.Exam, error) {
	exam, err := s.examWithQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status == models.ExamStatusDraft {
		return nil, ErrExamNotFound
	}
	if exam.Status != models.ExamStatusEnded {
		for i := range exam.Questions {
			exam.Questions[i].CorrectAnswer = ""
		}
	}
	return exam, nil
}

// Results returns every submission for an exam, answers included.
func (s *ExamService) Results(ctx context.Context, ownerID, examID uuid.UUID) ([]models.Submission, error) {
	exam, err := s.ownedExam(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}

	var submissions []models.Submission
	err = s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_number ASC")
		}).
		Where("exam_id = ?", exam.ID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}
