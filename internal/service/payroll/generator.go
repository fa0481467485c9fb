package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// Inputs are the resolved generation inputs for one employee and period.
type Inputs struct {
	AttendanceDays int
	WorkingDays    int
	LeaveDays      decimal.Decimal // unpaid
	OvertimeHours  decimal.Decimal
	PaymentMethod  *string
}

// DeriveInputs counts attendance, overtime and unpaid leave for period, then
// applies overrides field by field.
func DeriveInputs(period payroll.Period, settings payroll.PayrollSettings, records []attendance.Attendance, leaves []leave.LeaveRequest, overrides *payroll.Overrides) Inputs {
	in := Inputs{
		WorkingDays:   settings.WorkingDays(period),
		LeaveDays:     decimal.Zero,
		OvertimeHours: decimal.Zero,
	}

	overtimeMinutes := 0
	for _, a := range records {
		if a.CountsAsAttended() {
			in.AttendanceDays++
		}
		if a.OvertimeMinutes != nil && *a.OvertimeMinutes > 0 {
			overtimeMinutes += *a.OvertimeMinutes
		}
	}
	in.OvertimeHours = decimal.NewFromInt(int64(overtimeMinutes)).Div(decimal.NewFromInt(60)).Round(2)

	for _, l := range leaves {
		if l.IsPaid || l.Status != leave.LeaveRequestStatusApproved {
			continue
		}
		in.LeaveDays = in.LeaveDays.Add(l.DaysWithin(period.Start(), period.End()))
	}

	if overrides != nil {
		if overrides.AttendanceDays != nil {
			in.AttendanceDays = *overrides.AttendanceDays
		}
		if overrides.LeaveDays != nil {
			in.LeaveDays = *overrides.LeaveDays
		}
		if overrides.OvertimeHours != nil {
			in.OvertimeHours = *overrides.OvertimeHours
		}
		in.PaymentMethod = overrides.PaymentMethod
	}
	return in
}

// BuildStandardComponents computes Basic Salary, Overtime Pay and, when
// unpaid leave was taken, Leave Deduction. Income Tax is added by Reconcile.
func BuildStandardComponents(baseSalary decimal.Decimal, settings payroll.PayrollSettings, in Inputs) ([]payroll.PayrollComponent, error) {
	if baseSalary.IsNegative() {
		return nil, fmt.Errorf("%w: base salary %s", payroll.ErrNegativeAmount, baseSalary)
	}
	if in.WorkingDays <= 0 {
		return nil, fmt.Errorf("%w: no working days in period", payroll.ErrInvalidPeriod)
	}
	workingDays := decimal.NewFromInt(int64(in.WorkingDays))

	basic := baseSalary.Round(2)
	if settings.ProrateByAttendance {
		attended := in.AttendanceDays
		if attended > in.WorkingDays {
			attended = in.WorkingDays
		}
		basic = baseSalary.Mul(decimal.NewFromInt(int64(attended))).Div(workingDays).Round(2)
	}

	overtime := decimal.Zero
	if in.OvertimeHours.IsPositive() && settings.StandardMonthlyHours.IsPositive() {
		hourly := baseSalary.Div(settings.StandardMonthlyHours)
		overtime = in.OvertimeHours.Mul(hourly).Mul(settings.OvertimeMultiplier).Round(2)
	}

	components := []payroll.PayrollComponent{
		{
			Type:              payroll.ComponentTypeEarning,
			Name:              payroll.ComponentBasicSalary,
			BaseAmount:        baseSalary.Round(2),
			CalculationMethod: payroll.CalculationMethodFixed,
			CalculatedAmount:  basic,
			IsTaxable:         true,
			IsRecurring:       true,
		},
		{
			Type:              payroll.ComponentTypeEarning,
			Name:              payroll.ComponentOvertimePay,
			BaseAmount:        in.OvertimeHours,
			CalculationMethod: payroll.CalculationMethodFormula,
			CalculatedAmount:  overtime,
			IsTaxable:         true,
			IsRecurring:       false,
		},
	}
	if settings.ProrateByAttendance {
		components[0].CalculationMethod = payroll.CalculationMethodFormula
	}

	if in.LeaveDays.IsPositive() {
		deduction := baseSalary.Mul(in.LeaveDays).Div(workingDays).Round(2)
		components = append(components, payroll.PayrollComponent{
			Type:              payroll.ComponentTypeDeduction,
			Name:              payroll.ComponentLeaveDeduction,
			BaseAmount:        in.LeaveDays,
			CalculationMethod: payroll.CalculationMethodFormula,
			CalculatedAmount:  deduction,
			IsTaxable:         false,
			IsRecurring:       true,
		})
	}

	for _, c := range components {
		if c.CalculatedAmount.IsNegative() {
			return nil, fmt.Errorf("%w: %s = %s", payroll.ErrNegativeAmount, c.Name, c.CalculatedAmount)
		}
	}
	return components, nil
}
