package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campuslink/university_portal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExamNotifier is told about an exam exactly once, by whichever caller wins
// the active -> ended transition.
type ExamNotifier interface {
	ExamClosed(exam *models.Exam)
}

type ExamService struct {
	db       *gorm.DB
	notifier ExamNotifier
	now      func() time.Time
}

func NewExamService(db *gorm.DB, notifier ExamNotifier) *ExamService {
	return &ExamService{db: db, notifier: notifier, now: time.Now}
}

var Exams *ExamService

func Init(db *gorm.DB, notifier ExamNotifier) {
	Exams = NewExamService(db, notifier)
}

func (s *ExamService) CreateExam(ctx context.Context, ownerID uuid.UUID, title string, durationMinutes int) (*models.Exam, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	}

	exam := models.Exam{
		Title:           strings.TrimSpace(title),
		DurationMinutes: durationMinutes,
		Status:          models.ExamStatusDraft,
		CreatedBy:       ownerID,
	}
	if err := s.db.WithContext(ctx).Create(&exam).Error; err != nil {
		return nil, err
	}
	exam.Questions = []models.Question{}
	return &exam, nil
}

func (s *ExamService) ListExams(ctx context.Context, ownerID uuid.UUID) ([]models.Exam, error) {
	var exams []models.Exam
	err := s.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC").
		Find(&exams).Error
	return exams, err
}

type QuestionInput struct {
	Kind          string
	Prompt        string
	Points        int
	Options       []models.QuestionOption
	CorrectAnswer string
}

func validateQuestionInput(in *QuestionInput) error {
	if strings.TrimSpace(in.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if in.Points == 0 {
		in.Points = 1
	}
	if in.Points < 1 {
		return fmt.Errorf("%w: points must be at least 1", ErrValidation)
	}

	switch in.Kind {
	case models.QuestionKindSubjective:
		in.Options = nil
		in.CorrectAnswer = ""
	case models.QuestionKindObjective:
		if len(in.Options) < 2 {
			return fmt.Errorf("%w: an objective question needs at least two options", ErrValidation)
		}
		if in.CorrectAnswer == "" {
			return fmt.Errorf("%w: correct_answer is required for objective questions", ErrValidation)
		}
		found := false
		seen := make(map[string]bool, len(in.Options))
		for _, opt := range in.Options {
			if strings.TrimSpace(opt.Label) == "" {
				return fmt.Errorf("%w: every option needs a label", ErrValidation)
			}
			if seen[opt.Label] {
				return fmt.Errorf("%w: duplicate option label %q", ErrValidation, opt.Label)
			}
			seen[opt.Label] = true
			if opt.Label == in.CorrectAnswer {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: correct_answer %q is not one of the option labels", ErrValidation, in.CorrectAnswer)
		}
	default:
		return fmt.Errorf("%w: kind must be %q or %q", ErrValidation, models.QuestionKindObjective, models.QuestionKindSubjective)
	}
	return nil
}

// AddQuestion appends a question to a draft exam. Question numbers are dense
// 1..N, so the new question always takes number N+1.
func (s *ExamService) AddQuestion(ctx context.Context, ownerID, examID uuid.UUID, in QuestionInput) (*models.Exam, error) {
	if err := validateQuestionInput(&in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := draftExamForWrite(tx, examID, ownerID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Question{}).Where("exam_id = ?", exam.ID).Count(&count).Error; err != nil {
			return err
		}

		question := models.Question{
			ExamID:         exam.ID,
			QuestionNumber: int(count) + 1,
			Kind:           in.Kind,
			Prompt:         strings.TrimSpace(in.Prompt),
			Points:         in.Points,
			Options:        datatypes.NewJSONSlice(in.Options),
			CorrectAnswer:  in.CorrectAnswer,
		}
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		return recomputeTotalPoints(tx, exam.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.examWithQuestions(ctx, examID)
}

// RemoveQuestion deletes a question from a draft exam and closes the gap so
// the remaining questions are numbered 1..N in their original order.
func (s *ExamService) RemoveQuestion(ctx context.Context, ownerID, examID uuid.UUID, questionNumber int) (*models.Exam, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := draftExamForWrite(tx, examID, ownerID)
		if err != nil {
			return err
		}

		res := tx.Where("exam_id = ? AND question_number = ?", exam.ID, questionNumber).
			Delete(&models.Question{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: question %d", ErrQuestionNotFound, questionNumber)
		}

		// Numbers are dense, so shifting everything above the gap down by one
		// restores 1..N without reordering.
		err = tx.Model(&models.Question{}).
			Where("exam_id = ? AND question_number > ?", exam.ID, questionNumber).
			UpdateColumn("question_number", gorm.Expr("question_number - 1")).Error
		if err != nil {
			return err
		}
		return recomputeTotalPoints(tx, exam.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.examWithQuestions(ctx, examID)
}

// StartExam freezes the question set and the clock: started_at is set once and
// the deadline derived from it never changes afterwards. The draft -> active
// flip is a conditional update so a double start cannot happen.
func (s *ExamService) StartExam(ctx context.Context, ownerID, examID uuid.UUID) (*models.Exam, error) {
	exam, err := s.ownedExam(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Question{}).Where("exam_id = ?", exam.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: cannot start an exam with no questions", ErrStateConflict)
	}

	now := s.now()
	deadline := now.Add(time.Duration(exam.DurationMinutes) * time.Minute)

	res := s.db.WithContext(ctx).Model(&models.Exam{}).
		Where("id = ? AND status = ?", exam.ID, models.ExamStatusDraft).
		Updates(map[string]interface{}{
			"status":     models.ExamStatusActive,
			"started_at": now,
			"deadline":   deadline,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: exam is already %s", ErrStateConflict, exam.Status)
	}
	return s.examWithQuestions(ctx, examID)
}

// EndExam closes an active exam. Ending an exam the sweeper already closed is
// a no-op success; the notification fires only for the caller that actually
// performed the transition.
func (s *ExamService) EndExam(ctx context.Context, ownerID, examID uuid.UUID) (*models.Exam, error) {
	exam, err := s.ownedExam(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}
	if exam.Status == models.ExamStatusDraft {
		return nil, fmt.Errorf("%w: exam has not been started", ErrStateConflict)
	}

	if _, err := s.closeExam(ctx, examID, s.now()); err != nil {
		return nil, err
	}
	return s.examWithQuestions(ctx, examID)
}

// closeExam is the single active -> ended transition, shared by manual end
// calls and the expiry sweeper. The WHERE clause on status makes it atomic:
// exactly one of any number of racing callers sees RowsAffected == 1, and only
// that caller notifies.
func (s *ExamService) closeExam(ctx context.Context, examID uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Exam{}).
		Where("id = ? AND status = ?", examID, models.ExamStatusActive).
		Updates(map[string]interface{}{
			"status":   models.ExamStatusEnded,
			"ended_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if s.notifier != nil {
		var exam models.Exam
		if err := s.db.WithContext(ctx).First(&exam, "id = ?", examID).Error; err != nil {
			log.Printf("Failed to load exam %s for close notification: %v", examID, err)
		} else {
			s.notifier.ExamClosed(&exam)
		}
	}
	return true, nil
}

// SweepExpired force-ends every active exam whose deadline has passed. The
// deadline is recomputed from started_at rather than trusted from the stored
// column. One broken record must not stop the sweep for the rest.
func (s *ExamService) SweepExpired(ctx context.Context) {
	now := s.now()

	var exams []models.Exam
	if err := s.db.WithContext(ctx).Where("status = ?", models.ExamStatusActive).Find(&exams).Error; err != nil {
		log.Printf("Expiry sweep: failed to list active exams: %v", err)
		return
	}

	closed := 0
	for _, exam := range exams {
		if exam.StartedAt == nil {
			log.Printf("Expiry sweep: active exam %s has no started_at, skipping", exam.ID)
			continue
		}
		deadline := exam.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
		if now.Before(deadline) {
			continue
		}
		won, err := s.closeExam(ctx, exam.ID, now)
		if err != nil {
			log.Printf("Expiry sweep: failed to close exam %s: %v", exam.ID, err)
			continue
		}
		if won {
			closed++
		}
	}

	if closed > 0 {
		log.Printf("Expiry sweep closed %d exam(s).", closed)
	}
}

func (s *ExamService) ownedExam(ctx context.Context, examID, ownerID uuid.UUID) (*models.Exam, error) {
	var exam models.Exam
	if err := s.db.WithContext(ctx).First(&exam, "id = ?", examID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.CreatedBy != ownerID {
		return nil, ErrForbidden
	}
	return &exam, nil
}

func (s *ExamService) examWithQuestions(ctx context.Context, examID uuid.UUID) (*models.Exam, error) {
	var exam models.Exam
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_number ASC")
		}).
		First(&exam, "id = ?", examID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return &exam, nil
}

func draftExamForWrite(tx *gorm.DB, examID, ownerID uuid.UUID) (*models.Exam, error) {
	var exam models.Exam
	if err := tx.First(&exam, "id = ?", examID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.CreatedBy != ownerID {
		return nil, ErrForbidden
	}
	if exam.Status != models.ExamStatusDraft {
		return nil, fmt.Errorf("%w: questions can only be changed while the exam is a draft", ErrStateConflict)
	}
	return &exam, nil
}

func recomputeTotalPoints(tx *gorm.DB, examID uuid.UUID) error {
	var total int
	err := tx.Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Exam{}).Where("id = ?", examID).
		UpdateColumn("total_points", total).Error
}
