package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campuslink/university_portal/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingNotifier struct {
	mu     sync.Mutex
	closed []uuid.UUID
}

func (n *recordingNotifier) ExamClosed(exam *models.Exam) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, exam.ID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.closed)
}

func newTestService(t *testing.T) (*ExamService, *recordingNotifier) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to unwrap sql.DB: %v", err)
	}
	// A single connection keeps the in-memory database alive and serializes
	// concurrent writers the way the Postgres row store would.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Exam{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	notifier := &recordingNotifier{}
	return NewExamService(db, notifier), notifier
}

func objectiveInput(prompt, correct string, points int) QuestionInput {
	return QuestionInput{
		Kind:   models.QuestionKindObjective,
		Prompt: prompt,
		Points: points,
		Options: []models.QuestionOption{
			{Label: "A", Text: "first"},
			{Label: "B", Text: "second"},
			{Label: "C", Text: "third"},
		},
		CorrectAnswer: correct,
	}
}

func subjectiveInput(prompt string, points int) QuestionInput {
	return QuestionInput{
		Kind:   models.QuestionKindSubjective,
		Prompt: prompt,
		Points: points,
	}
}

func mustCreateExam(t *testing.T, svc *ExamService, owner uuid.UUID, duration int) *models.Exam {
	t.Helper()
	exam, err := svc.CreateExam(context.Background(), owner, "CSC101 Midterm", duration)
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return exam
}

func mustAddQuestion(t *testing.T, svc *ExamService, owner, examID uuid.UUID, in QuestionInput) *models.Exam {
	t.Helper()
	exam, err := svc.AddQuestion(context.Background(), owner, examID, in)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	return exam
}

func mustStart(t *testing.T, svc *ExamService, owner, examID uuid.UUID) *models.Exam {
	t.Helper()
	exam, err := svc.StartExam(context.Background(), owner, examID)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	return exam
}

func TestCreateExamValidation(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	if _, err := svc.CreateExam(context.Background(), owner, "  ", 30); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty title, got %v", err)
	}
	if _, err := svc.CreateExam(context.Background(), owner, "Quiz", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero duration, got %v", err)
	}
	if _, err := svc.CreateExam(context.Background(), owner, "Quiz", -5); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for negative duration, got %v", err)
	}

	exam, err := svc.CreateExam(context.Background(), owner, "Quiz", 30)
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if exam.Status != models.ExamStatusDraft {
		t.Errorf("new exam status = %q, want draft", exam.Status)
	}
	if exam.TotalPoints != 0 || len(exam.Questions) != 0 {
		t.Errorf("new exam should be empty, got %d points and %d questions", exam.TotalPoints, len(exam.Questions))
	}
}

func TestAddQuestionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	cases := []struct {
		name string
		in   QuestionInput
	}{
		{"unknown kind", QuestionInput{Kind: "essay", Prompt: "p"}},
		{"empty prompt", objectiveInput("  ", "A", 1)},
		{"objective without options", QuestionInput{Kind: models.QuestionKindObjective, Prompt: "p", CorrectAnswer: "A"}},
		{"correct answer outside option set", objectiveInput("p", "Z", 1)},
		{"objective without correct answer", QuestionInput{
			Kind:   models.QuestionKindObjective,
			Prompt: "p",
			Options: []models.QuestionOption{
				{Label: "A"}, {Label: "B"},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddQuestion(context.Background(), owner, exam.ID, tc.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAddQuestionDefaultsPointsToOne(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	updated := mustAddQuestion(t, svc, owner, exam.ID, subjectiveInput("Explain gorm hooks", 0))
	if updated.Questions[0].Points != 1 {
		t.Errorf("points = %d, want default 1", updated.Questions[0].Points)
	}
	if updated.TotalPoints != 1 {
		t.Errorf("total_points = %d, want 1", updated.TotalPoints)
	}
}

func TestTotalPointsTracksQuestionSet(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q1", "A", 5))
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q2", "B", 3))
	updated := mustAddQuestion(t, svc, owner, exam.ID, subjectiveInput("q3", 10))
	if updated.TotalPoints != 18 {
		t.Fatalf("total_points = %d, want 18", updated.TotalPoints)
	}

	updated, err := svc.RemoveQuestion(context.Background(), owner, exam.ID, 2)
	if err != nil {
		t.Fatalf("RemoveQuestion: %v", err)
	}
	if updated.TotalPoints != 15 {
		t.Errorf("total_points after removal = %d, want 15", updated.TotalPoints)
	}
}

func TestRemoveQuestionRenumbers(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("first", "A", 1))
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("second", "B", 1))
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("third", "C", 1))

	updated, err := svc.RemoveQuestion(context.Background(), owner, exam.ID, 2)
	if err != nil {
		t.Fatalf("RemoveQuestion: %v", err)
	}
	if len(updated.Questions) != 2 {
		t.Fatalf("question count = %d, want 2", len(updated.Questions))
	}
	if updated.Questions[0].QuestionNumber != 1 || updated.Questions[0].Prompt != "first" {
		t.Errorf("question 1 = (%d, %q), want (1, first)", updated.Questions[0].QuestionNumber, updated.Questions[0].Prompt)
	}
	if updated.Questions[1].QuestionNumber != 2 || updated.Questions[1].Prompt != "third" {
		t.Errorf("question 2 = (%d, %q), want (2, third)", updated.Questions[1].QuestionNumber, updated.Questions[1].Prompt)
	}

	if _, err := svc.RemoveQuestion(context.Background(), owner, exam.ID, 9); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound for missing number, got %v", err)
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	if _, err := svc.StartExam(context.Background(), owner, exam.ID); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for empty exam, got %v", err)
	}
}

func TestStartSetsTimingOnce(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 45)
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q1", "A", 1))

	startAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return startAt }

	started := mustStart(t, svc, owner, exam.ID)
	if started.Status != models.ExamStatusActive {
		t.Fatalf("status = %q, want active", started.Status)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(startAt) {
		t.Errorf("started_at = %v, want %v", started.StartedAt, startAt)
	}
	wantDeadline := startAt.Add(45 * time.Minute)
	if started.Deadline == nil || !started.Deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", started.Deadline, wantDeadline)
	}

	if _, err := svc.StartExam(context.Background(), owner, exam.ID); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict on double start, got %v", err)
	}
}

func TestQuestionsLockedOnceStarted(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q1", "A", 1))
	mustStart(t, svc, owner, exam.ID)

	if _, err := svc.AddQuestion(context.Background(), owner, exam.ID, objectiveInput("late", "A", 1)); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict adding to active exam, got %v", err)
	}
	if _, err := svc.RemoveQuestion(context.Background(), owner, exam.ID, 1); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict removing from active exam, got %v", err)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	stranger := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)

	if _, err := svc.AddQuestion(context.Background(), stranger, exam.ID, objectiveInput("q", "A", 1)); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.StartExam(context.Background(), stranger, exam.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.AddQuestion(context.Background(), owner, uuid.New(), objectiveInput("q", "A", 1)); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}
}

func TestEndExam(t *testing.T) {
	svc, notifier := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 30)
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q1", "A", 1))

	if _, err := svc.EndExam(context.Background(), owner, exam.ID); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict ending a draft, got %v", err)
	}

	mustStart(t, svc, owner, exam.ID)
	ended, err := svc.EndExam(context.Background(), owner, exam.ID)
	if err != nil {
		t.Fatalf("EndExam: %v", err)
	}
	if ended.Status != models.ExamStatusEnded || ended.EndedAt == nil {
		t.Fatalf("exam not ended: status=%q ended_at=%v", ended.Status, ended.EndedAt)
	}
	firstEndedAt := *ended.EndedAt

	// A second end call is a no-op success and must not re-notify or move
	// ended_at.
	again, err := svc.EndExam(context.Background(), owner, exam.ID)
	if err != nil {
		t.Fatalf("EndExam (repeat): %v", err)
	}
	if !again.EndedAt.Equal(firstEndedAt) {
		t.Errorf("ended_at moved on repeat end: %v -> %v", firstEndedAt, again.EndedAt)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want exactly 1", notifier.count())
	}
}

func TestSweepClosesOnlyExpiredExams(t *testing.T) {
	svc, notifier := newTestService(t)
	owner := uuid.New()

	short := mustCreateExam(t, svc, owner, 1)
	long := mustCreateExam(t, svc, owner, 60)
	mustAddQuestion(t, svc, owner, short.ID, objectiveInput("q", "A", 1))
	mustAddQuestion(t, svc, owner, long.ID, objectiveInput("q", "A", 1))

	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	mustStart(t, svc, owner, short.ID)
	mustStart(t, svc, owner, long.ID)

	// First tick: nothing has expired yet.
	svc.SweepExpired(context.Background())
	if notifier.count() != 0 {
		t.Fatalf("sweep closed an unexpired exam")
	}

	current = current.Add(2 * time.Minute)
	svc.SweepExpired(context.Background())

	swept, err := svc.examWithQuestions(context.Background(), short.ID)
	if err != nil {
		t.Fatalf("reload short exam: %v", err)
	}
	if swept.Status != models.ExamStatusEnded {
		t.Errorf("short exam status = %q, want ended", swept.Status)
	}
	if swept.EndedAt == nil || !swept.EndedAt.Equal(current) {
		t.Errorf("ended_at = %v, want sweep time %v", swept.EndedAt, current)
	}

	untouched, err := svc.examWithQuestions(context.Background(), long.ID)
	if err != nil {
		t.Fatalf("reload long exam: %v", err)
	}
	if untouched.Status != models.ExamStatusActive {
		t.Errorf("long exam status = %q, want active", untouched.Status)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}

	// The sweep is idempotent across ticks.
	svc.SweepExpired(context.Background())
	if notifier.count() != 1 {
		t.Errorf("repeated sweep re-notified: %d", notifier.count())
	}
}

func TestManualEndRacesSweep(t *testing.T) {
	svc, notifier := newTestService(t)
	owner := uuid.New()
	exam := mustCreateExam(t, svc, owner, 1)
	mustAddQuestion(t, svc, owner, exam.ID, objectiveInput("q", "A", 1))

	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	mustStart(t, svc, owner, exam.ID)
	current = current.Add(5 * time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := svc.EndExam(context.Background(), owner, exam.ID); err != nil {
			t.Errorf("EndExam during race: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		svc.SweepExpired(context.Background())
	}()
	wg.Wait()

	ended, err := svc.examWithQuestions(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("reload exam: %v", err)
	}
	if ended.Status != models.ExamStatusEnded || ended.EndedAt == nil {
		t.Fatalf("exam not ended after race: status=%q", ended.Status)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want exactly 1 despite the race", notifier.count())
	}
}
