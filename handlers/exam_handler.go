package handlers

import (
	"strconv"

	"github.com/campuslink/university_portal/models"
	"github.com/campuslink/university_portal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type CreateExamRequest struct {
	Title           string `json:"title" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
}

type OptionRequest struct {
	Label string `json:"label" validate:"required"`
	Text  string `json:"text"`
}

type AddQuestionRequest struct {
	Kind          string          `json:"kind" validate:"required,oneof=objective subjective"`
	Prompt        string          `json:"prompt" validate:"required"`
	Points        int             `json:"points" validate:"gte=0"`
	Options       []OptionRequest `json:"options" validate:"dive"`
	CorrectAnswer string          `json:"correct_answer"`
}

func CreateExam(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	var req CreateExamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	exam, err := services.Exams.CreateExam(c.Context(), lecturerID, req.Title, req.DurationMinutes)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(exam)
}

func ListExams(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	exams, err := services.Exams.ListExams(c.Context(), lecturerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(exams)
}

func AddQuestion(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	var req AddQuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	options := make([]models.QuestionOption, len(req.Options))
	for i, opt := range req.Options {
		options[i] = models.QuestionOption{Label: opt.Label, Text: opt.Text}
	}

	exam, err := services.Exams.AddQuestion(c.Context(), lecturerID, examID, services.QuestionInput{
		Kind:          req.Kind,
		Prompt:        req.Prompt,
		Points:        req.Points,
		Options:       options,
		CorrectAnswer: req.CorrectAnswer,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(exam)
}

func RemoveQuestion(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}
	questionNumber, err := strconv.Atoi(c.Params("questionNumber"))
	if err != nil || questionNumber < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question number"})
	}

	exam, err := services.Exams.RemoveQuestion(c.Context(), lecturerID, examID, questionNumber)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(exam)
}

func StartExam(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	exam, err := services.Exams.StartExam(c.Context(), lecturerID, examID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(exam)
}

func EndExam(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	exam, err := services.Exams.EndExam(c.Context(), lecturerID, examID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(exam)
}

func GetResults(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	lecturerID, _ := uuid.Parse(claims["user_id"].(string))

	examID, err := uuid.Parse(c.Params("examId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam ID"})
	}

	submissions, err := services.Exams.Results(c.Context(), lecturerID, examID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(submissions)
}
