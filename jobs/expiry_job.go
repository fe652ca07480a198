package jobs

import (
	"context"
	"log"

	"github.com/campuslink/university_portal/services"
)

// CloseExpiredExams force-ends every active exam whose deadline has passed.
// It runs on the cron schedule in main, independent of any request.
func CloseExpiredExams() {
	log.Println("Running job: CloseExpiredExams...")
	services.Exams.SweepExpired(context.Background())
}
