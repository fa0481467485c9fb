package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveRequestStatus string

const (
	LeaveRequestStatusWaitingApproval LeaveRequestStatus = "waiting_approval"
	LeaveRequestStatusApproved        LeaveRequestStatus = "approved"
	LeaveRequestStatusRejected        LeaveRequestStatus = "rejected"
	LeaveRequestStatusCancelled       LeaveRequestStatus = "cancelled"
)

// LeaveRequest is the payroll view of an approved leave request.
type LeaveRequest struct {
	ID            string
	EmployeeID    string
	CompanyID     string
	LeaveTypeID   string
	LeaveTypeName string
	IsPaid        bool
	StartDate     time.Time
	EndDate       time.Time // inclusive
	TotalDays     decimal.Decimal
	Status        LeaveRequestStatus
}

// DaysWithin returns the leave days of r falling in [start, end). Requests
// entirely inside the range count TotalDays so half days survive. Requests
// crossing a bound get the share of TotalDays whose weekdays fall inside.
func (r LeaveRequest) DaysWithin(start, end time.Time) decimal.Decimal {
	from, to := dateOnly(r.StartDate), dateOnly(r.EndDate)
	if to.Before(from) {
		return decimal.Zero
	}
	if !from.Before(start) && to.Before(end) {
		return r.TotalDays
	}
	clipFrom, clipTo := from, to
	if clipFrom.Before(start) {
		clipFrom = start
	}
	last := end.AddDate(0, 0, -1)
	if clipTo.After(last) {
		clipTo = last
	}
	if clipTo.Before(clipFrom) {
		return decimal.Zero
	}

	inside, total := weekdays(clipFrom, clipTo), weekdays(from, to)
	if total == 0 {
		// weekend-only request
		inside, total = calendarDays(clipFrom, clipTo), calendarDays(from, to)
	}
	return r.TotalDays.Mul(decimal.NewFromInt(int64(inside))).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}

// weekdays counts Monday through Friday in [from, to].
func weekdays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
