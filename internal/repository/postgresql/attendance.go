package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

// ListByEmployeeAndRange implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]attendance.Attendance, error) {
	if !end.After(start) {
		return nil, attendance.ErrInvalidRange
	}

	q := GetQuerier(ctx, a.db)

	query := `
		SELECT a.id, a.employee_id, a.company_id, a.date, a.status, a.overtime_minutes
		FROM attendances a
		WHERE a.employee_id = $1 AND a.company_id = $2
			AND a.date >= $3 AND a.date < $4
		ORDER BY a.date
	`

	rows, err := q.Query(ctx, query, employeeID, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Attendance
	for rows.Next() {
		var att attendance.Attendance
		if err := rows.Scan(
			&att.ID, &att.EmployeeID, &att.CompanyID, &att.Date, &att.Status, &att.OvertimeMinutes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	return records, nil
}
