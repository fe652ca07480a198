package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	config "github.com/campuslink/university_portal/configs"
	"github.com/campuslink/university_portal/models"
	"github.com/campuslink/university_portal/websocket"
)

// Notifier tells the outside world that an exam has closed and its results
// are on the way: connected websocket clients get the event immediately, and
// an optional webhook is called fire-and-forget.
type Notifier struct {
	WebhookURL string
	httpClient *http.Client
}

var Client *Notifier

func InitNotifier() {
	webhookURL := config.Config("NOTIFY_WEBHOOK_URL")
	if webhookURL == "" {
		log.Println("⚠️ No NOTIFY_WEBHOOK_URL configured. Exam-closed events will only reach websocket clients.")
	}

	Client = &Notifier{
		WebhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	log.Println("✅ Notification service initialized successfully.")
}

type examClosedPayload struct {
	Event       string `json:"event"`
	ExamID      string `json:"exam_id"`
	Title       string `json:"title"`
	TotalPoints int    `json:"total_points"`
	EndedAt     string `json:"ended_at,omitempty"`
}

func (n *Notifier) ExamClosed(exam *models.Exam) {
	event := websocket.ExamEvent{
		Event:  "exam_closed",
		ExamID: exam.ID.String(),
		Title:  exam.Title,
	}
	if exam.EndedAt != nil {
		event.EndedAt = exam.EndedAt.Format(time.RFC3339)
	}
	select {
	case websocket.Broadcast <- event:
	default:
		log.Printf("Event hub busy, dropping exam_closed broadcast for exam %s", exam.ID)
	}

	if n.WebhookURL == "" {
		return
	}
	payload := examClosedPayload{
		Event:       "exam_closed",
		ExamID:      exam.ID.String(),
		Title:       exam.Title,
		TotalPoints: exam.TotalPoints,
		EndedAt:     event.EndedAt,
	}
	go func() {
		if err := n.post(payload); err != nil {
			log.Printf("🔥 Failed to deliver exam_closed webhook for exam %s: %v", exam.ID, err)
		}
	}()
}

func (n *Notifier) post(payload examClosedPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
