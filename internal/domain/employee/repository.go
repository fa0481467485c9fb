package employee

import "context"

// EmployeeRepository is a read-only view of the employee store.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id, companyID string) (Employee, error)
	ListActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
}
