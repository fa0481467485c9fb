package attendance

import (
	"time"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half_day"
)

// Attendance is the payroll view of one attendance record.
type Attendance struct {
	ID              string
	EmployeeID      string
	CompanyID       string
	Date            time.Time
	Status          Status
	OvertimeMinutes *int
}

// CountsAsAttended reports whether the day counts toward attendance days.
func (a Attendance) CountsAsAttended() bool {
	return a.Status == StatusPresent || a.Status == StatusLate
}
