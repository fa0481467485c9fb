package attendance

import (
	"context"
	"time"
)

type AttendanceRepository interface {
	// ListByEmployeeAndRange returns records with start <= date < end.
	ListByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]Attendance, error)
}
