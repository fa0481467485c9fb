package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the payroll view of an employee record.
type Employee struct {
	ID               string
	UserID           *string
	CompanyID        string
	EmployeeCode     string
	FullName         string
	EmploymentStatus EmploymentStatus
	BaseSalary       *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Joined fields
	Email *string
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// IsActive checks if the employee can be paid
func (e Employee) IsActive() bool {
	return e.EmploymentStatus == EmploymentStatusActive
}
