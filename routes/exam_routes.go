package routes

import (
	"github.com/campuslink/university_portal/handlers"
	"github.com/campuslink/university_portal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func ExamRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	lecturer := api.Group("/lecturer/exams", middleware.Protected(), middleware.LecturerRequired())
	lecturer.Post("", handlers.CreateExam)
	lecturer.Get("", handlers.ListExams)
	lecturer.Post("/:examId/questions", handlers.AddQuestion)
	lecturer.Delete("/:examId/questions/:questionNumber", handlers.RemoveQuestion)
	lecturer.Post("/:examId/start", handlers.StartExam)
	lecturer.Post("/:examId/end", handlers.EndExam)
	lecturer.Get("/:examId/results", handlers.GetResults)
	lecturer.Post("/:examId/submissions/:studentId/answers/:questionNumber/grade", handlers.GradeAnswer)

	student := api.Group("/exams", middleware.Protected())
	student.Get("/:examId", handlers.GetExamForStudent)
	student.Post("/:examId/submit", handlers.SubmitExam)

	api.Use("/events", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/events", websocket.New(handlers.ServeEvents))
}
