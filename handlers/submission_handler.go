package handlers

import (
	"strconv"

	"github.com/campuslink/university_portal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type SubmitRequest struct {
	Answers []struct {
		QuestionNumber int    `json:"question_number" validate:"required,gte=1"`
		Response       string `json:"response"`
	} `json:"answers" validate:"required,min=1,dive"`
}

type GradeAnswerRequest struct {
	PointsAwarded *int `json:"points_awarded" validate:"required,gte=0"`
}

func GetExamForStudent(c *fiber.Ctx) error {
	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	exam, err := services.Exams.ExamForStudent(c.Context(), examID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(exam)
}

func SubmitExam(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	studentID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	answers := make([]services.AnswerInput, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = services.AnswerInput{
			QuestionNumber: a.QuestionNumber,
			Response:       a.Response,
		}
	}

	submission, err := services.Exams.Submit(c.Context(), studentID, examID, answers)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Exam submitted successfully",
		"total_score":  submission.TotalScore,
		"auto_graded":  submission.AutoGraded,
		"submitted_at": submission.SubmittedAt,
		"answers":      submission.Answers,
	})
}

func GradeAnswer(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}
	studentID, err := uuid.Parse(c.Params("studentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
	}
	questionNumber, err := strconv.Atoi(c.Params("questionNumber"))
	if err != nil || questionNumber < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question number"})
	}

	var req GradeAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	submission, err := services.Exams.GradeAnswer(c.Context(), lecturerID, examID, studentID, questionNumber, *req.PointsAwarded)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(submission)
}
