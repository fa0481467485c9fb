package leave

import (
	"context"
	"time"
)

type LeaveRepository interface {
	// ListApprovedByEmployeeAndRange returns approved requests overlapping [start, end).
	ListApprovedByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]LeaveRequest, error)
}
