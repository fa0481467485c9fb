package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type leaveRequestRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRequestRepository(db *database.DB) leave.LeaveRepository {
	return &leaveRequestRepositoryImpl{db: db}
}

// ListApprovedByEmployeeAndRange implements leave.LeaveRepository.
func (r *leaveRequestRepositoryImpl) ListApprovedByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	// end_date is inclusive, end is exclusive
	query := `
		SELECT lr.id, lr.employee_id, e.company_id, lr.leave_type_id, lt.name, lt.is_paid,
			   lr.start_date, lr.end_date, lr.total_days, lr.status
		FROM leave_requests lr
		INNER JOIN employees e ON lr.employee_id = e.id
		INNER JOIN leave_types lt ON lr.leave_type_id = lt.id
		WHERE lr.employee_id = $1 AND e.company_id = $2
			AND lr.status = $3
			AND lr.start_date < $5 AND lr.end_date >= $4
		ORDER BY lr.start_date
	`

	rows, err := q.Query(ctx, query, employeeID, companyID, leave.LeaveRequestStatusApproved, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved leave: %w", err)
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		var lr leave.LeaveRequest
		if err := rows.Scan(
			&lr.ID, &lr.EmployeeID, &lr.CompanyID, &lr.LeaveTypeID, &lr.LeaveTypeName, &lr.IsPaid,
			&lr.StartDate, &lr.EndDate, &lr.TotalDays, &lr.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, lr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list approved leave: %w", err)
	}

	return requests, nil
}
