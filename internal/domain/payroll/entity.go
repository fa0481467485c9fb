package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollSettings - Company payroll generation policy
type PayrollSettings struct {
	CompanyID            string
	ProrateByAttendance  bool
	StandardMonthlyHours decimal.Decimal
	OvertimeMultiplier   decimal.Decimal
	WorkingDaysPerMonth  int // 0 = count Monday-Friday in the period
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// WorkingDays returns the number of working days used for proration and
// daily rates in the given period.
func (s PayrollSettings) WorkingDays(p Period) int {
	if s.WorkingDaysPerMonth > 0 {
		return s.WorkingDaysPerMonth
	}
	return p.Weekdays()
}

// TaxBracket - one marginal slice of a company's progressive tax table.
// Upper == nil means unbounded.
type TaxBracket struct {
	Lower decimal.Decimal
	Upper *decimal.Decimal
	Rate  decimal.Decimal
}

// ComponentType enum
type ComponentType string

const (
	ComponentTypeEarning   ComponentType = "earning"
	ComponentTypeDeduction ComponentType = "deduction"
	ComponentTypeBenefit   ComponentType = "benefit"
)

func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeEarning, ComponentTypeDeduction, ComponentTypeBenefit:
		return true
	}
	return false
}

// CalculationMethod enum
type CalculationMethod string

const (
	CalculationMethodFixed      CalculationMethod = "fixed"
	CalculationMethodPercentage CalculationMethod = "percentage"
	CalculationMethodFormula    CalculationMethod = "formula"
	CalculationMethodCustom     CalculationMethod = "custom"
)

func (m CalculationMethod) Valid() bool {
	switch m {
	case CalculationMethodFixed, CalculationMethodPercentage, CalculationMethodFormula, CalculationMethodCustom:
		return true
	}
	return false
}

// Standard component names
const (
	ComponentBasicSalary    = "Basic Salary"
	ComponentOvertimePay    = "Overtime Pay"
	ComponentLeaveDeduction = "Leave Deduction"
	ComponentIncomeTax      = "Income Tax"
)

// IsStandardComponentName reports whether name belongs to a component the
// generator owns.
func IsStandardComponentName(name string) bool {
	switch name {
	case ComponentBasicSalary, ComponentOvertimePay, ComponentLeaveDeduction, ComponentIncomeTax:
		return true
	}
	return false
}

// IsProtectedComponentName reports whether a recurring component with this
// name is protected from deletion.
func IsProtectedComponentName(name string) bool {
	return name == ComponentBasicSalary || name == ComponentIncomeTax
}

// PayrollComponent - one line item of a payroll run. Deductions are stored as
// positive magnitudes.
type PayrollComponent struct {
	ID                string
	PayrollRunID      string
	CompanyID         string
	Type              ComponentType
	Name              string
	BaseAmount        decimal.Decimal
	CalculationMethod CalculationMethod
	CalculatedAmount  decimal.Decimal
	IsTaxable         bool
	IsRecurring       bool
	Description       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsProtected reports whether the component may not be deleted.
func (c PayrollComponent) IsProtected() bool {
	return c.IsRecurring && IsProtectedComponentName(c.Name)
}

// PayrollStatus enum
type PayrollStatus string

const (
	PayrollStatusPending  PayrollStatus = "pending"
	PayrollStatusApproved PayrollStatus = "approved"
	PayrollStatusPaid     PayrollStatus = "paid"
)

// PayrollRun - computed pay record for one employee and one period
type PayrollRun struct {
	ID              string
	CompanyID       string
	EmployeeID      string
	Period          string
	BaseSalary      decimal.Decimal
	Allowances      decimal.Decimal
	Deductions      decimal.Decimal
	GrossSalary     decimal.Decimal
	TotalDeductions decimal.Decimal
	TaxAmount       decimal.Decimal
	NetSalary       decimal.Decimal
	AttendanceDays  int
	WorkingDays     int
	LeaveDays       decimal.Decimal
	OvertimeHours   decimal.Decimal
	Status          PayrollStatus
	GeneratedBy     string
	ApprovedBy      *string
	ApprovedAt      *time.Time
	PaymentDate     *time.Time
	PaymentMethod   *string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Joined fields
	EmployeeName *string
}

// RunTotals - aggregate over a range of periods
type RunTotals struct {
	TotalRuns       int
	TotalGross      decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalTax        decimal.Decimal
	TotalNet        decimal.Decimal
	PendingCount    int
	ApprovedCount   int
	PaidCount       int
}

// PeriodTotals - aggregate for one period
type PeriodTotals struct {
	Period     string
	Runs       int
	TotalGross decimal.Decimal
	TotalTax   decimal.Decimal
	TotalNet   decimal.Decimal
}
