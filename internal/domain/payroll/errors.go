package payroll

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

var (
	ErrPayrollSettingsNotFound = errors.New("payroll settings not found")
	ErrPayrollRunNotFound      = errors.New("payroll run not found")
	ErrComponentNotFound       = errors.New("payroll component not found")
	ErrEmployeeNotFound        = errors.New("employee not found")
	ErrEmployeeHasNoBaseSalary = errors.New("employee has no base salary configured")
	ErrDuplicateRun            = errors.New("payroll run already exists for this period")
	ErrRunNotPending           = errors.New("payroll run is not pending")
	ErrRunNotApproved          = errors.New("payroll run is not approved")
	ErrRunAlreadyPaid          = errors.New("payroll run already paid")
	ErrProtectedComponent      = errors.New("component is protected")
	ErrSelfApproval            = errors.New("approver cannot be the generator of the payroll run")
	ErrConcurrentModification  = errors.New("payroll run was modified concurrently, retry the request")
	ErrInternalInconsistency   = errors.New("payroll totals are inconsistent")
	ErrNegativeAmount          = errors.New("computed amount is negative")
	ErrNegativeTaxableAmount   = errors.New("taxable amount must not be negative")
	ErrDeductionsExceedGross   = errors.New("deductions exceed gross salary")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrInvalidTaxBrackets      = errors.New("invalid tax brackets")
)

// DuplicateRunError carries the run that already exists for the
// (employee, period) pair.
type DuplicateRunError struct {
	Existing PayrollRun
}

func (e *DuplicateRunError) Error() string {
	return fmt.Sprintf("payroll run %s already exists for employee %s in %s",
		e.Existing.ID, e.Existing.EmployeeID, e.Existing.Period)
}

func (e *DuplicateRunError) Unwrap() error { return ErrDuplicateRun }

// InternalInconsistencyError reports totals that do not match the component
// set. It indicates a bug and is never returned as a success.
type InternalInconsistencyError struct {
	RunID      string
	EmployeeID string
	Period     string
	Detail     string
}

func (e *InternalInconsistencyError) Error() string {
	return fmt.Sprintf("payroll run %s (employee %s, %s): %s", e.RunID, e.EmployeeID, e.Period, e.Detail)
}

func (e *InternalInconsistencyError) Unwrap() error { return ErrInternalInconsistency }

// Error kinds reported at the request boundary and in bulk results.
const (
	KindValidation             = "validation_error"
	KindNotFound               = "not_found"
	KindDuplicateRun           = "duplicate_run"
	KindInvalidState           = "invalid_state"
	KindAlreadyPaid            = "already_paid"
	KindProtectedComponent     = "protected_component"
	KindSelfApproval           = "self_approval"
	KindConcurrentModification = "concurrent_modification"
	KindInternalInconsistency  = "internal_inconsistency"
	KindInternal               = "internal_error"
)

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErrs),
		errors.Is(err, ErrNegativeTaxableAmount),
		errors.Is(err, ErrNegativeAmount),
		errors.Is(err, ErrDeductionsExceedGross),
		errors.Is(err, ErrEmployeeHasNoBaseSalary),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidTaxBrackets):
		return KindValidation
	case errors.Is(err, ErrPayrollRunNotFound),
		errors.Is(err, ErrComponentNotFound),
		errors.Is(err, ErrEmployeeNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateRun):
		return KindDuplicateRun
	case errors.Is(err, ErrRunAlreadyPaid):
		return KindAlreadyPaid
	case errors.Is(err, ErrRunNotPending), errors.Is(err, ErrRunNotApproved):
		return KindInvalidState
	case errors.Is(err, ErrProtectedComponent):
		return KindProtectedComponent
	case errors.Is(err, ErrSelfApproval):
		return KindSelfApproval
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrInternalInconsistency):
		return KindInternalInconsistency
	}
	return KindInternal
}
