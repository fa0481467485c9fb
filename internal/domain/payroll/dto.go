package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== SETTINGS DTOs ==========

type PayrollSettingsResponse struct {
	CompanyID            string `json:"company_id"`
	ProrateByAttendance  bool   `json:"prorate_by_attendance"`
	StandardMonthlyHours string `json:"standard_monthly_hours"`
	OvertimeMultiplier   string `json:"overtime_multiplier"`
	WorkingDaysPerMonth  int    `json:"working_days_per_month"`
}

type UpdatePayrollSettingsRequest struct {
	CompanyID            string           `json:"-"`
	ProrateByAttendance  *bool            `json:"prorate_by_attendance,omitempty"`
	StandardMonthlyHours *decimal.Decimal `json:"standard_monthly_hours,omitempty"`
	OvertimeMultiplier   *decimal.Decimal `json:"overtime_multiplier,omitempty"`
	WorkingDaysPerMonth  *int             `json:"working_days_per_month,omitempty"`
}

func (r *UpdatePayrollSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.StandardMonthlyHours != nil && !r.StandardMonthlyHours.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "standard_monthly_hours", Message: "must be greater than zero"})
	}
	if r.OvertimeMultiplier != nil && r.OvertimeMultiplier.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "overtime_multiplier", Message: "must be non-negative"})
	}
	if r.WorkingDaysPerMonth != nil && (*r.WorkingDaysPerMonth < 0 || *r.WorkingDaysPerMonth > 31) {
		errs = append(errs, validator.ValidationError{Field: "working_days_per_month", Message: "must be between 0 and 31"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== TAX BRACKET DTOs ==========

type TaxBracketRequest struct {
	Lower decimal.Decimal  `json:"lower"`
	Upper *decimal.Decimal `json:"upper,omitempty"`
	Rate  decimal.Decimal  `json:"rate"`
}

type ReplaceTaxBracketsRequest struct {
	CompanyID string              `json:"-"`
	Brackets  []TaxBracketRequest `json:"brackets"`
}

func (r *ReplaceTaxBracketsRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.Brackets) == 0 {
		errs = append(errs, validator.ValidationError{Field: "brackets", Message: "at least one bracket is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToBrackets converts the request into domain brackets, preserving order.
func (r *ReplaceTaxBracketsRequest) ToBrackets() []TaxBracket {
	brackets := make([]TaxBracket, len(r.Brackets))
	for i, b := range r.Brackets {
		brackets[i] = TaxBracket{Lower: b.Lower, Upper: b.Upper, Rate: b.Rate}
	}
	return brackets
}

type TaxBracketResponse struct {
	Lower string  `json:"lower"`
	Upper *string `json:"upper"`
	Rate  string  `json:"rate"`
}

type TaxBracketsResponse struct {
	CompanyID string               `json:"company_id"`
	Brackets  []TaxBracketResponse `json:"brackets"`
}

// ========== RUN DTOs ==========

// Overrides replace individual generation inputs that would otherwise be
// derived from attendance and leave records.
type Overrides struct {
	AttendanceDays *int             `json:"attendance_days,omitempty"`
	LeaveDays      *decimal.Decimal `json:"leave_days,omitempty"`
	OvertimeHours  *decimal.Decimal `json:"overtime_hours,omitempty"`
	PaymentMethod  *string          `json:"payment_method,omitempty"`
}

func (o *Overrides) validate(errs validator.ValidationErrors) validator.ValidationErrors {
	if o == nil {
		return errs
	}
	if o.AttendanceDays != nil && *o.AttendanceDays < 0 {
		errs = append(errs, validator.ValidationError{Field: "overrides.attendance_days", Message: "must be non-negative"})
	}
	if o.LeaveDays != nil && o.LeaveDays.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "overrides.leave_days", Message: "must be non-negative"})
	}
	if o.OvertimeHours != nil && o.OvertimeHours.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "overrides.overtime_hours", Message: "must be non-negative"})
	}
	if o.PaymentMethod != nil && validator.IsEmpty(*o.PaymentMethod) {
		errs = append(errs, validator.ValidationError{Field: "overrides.payment_method", Message: "must not be empty"})
	}
	return errs
}

type GeneratePayrollRequest struct {
	CompanyID   string     `json:"-"`
	GeneratedBy string     `json:"-"`
	EmployeeID  string     `json:"employee_id"`
	Period      string     `json:"period"`
	Overrides   *Overrides `json:"overrides,omitempty"`
}

func (r *GeneratePayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}
	if !validator.IsValidPeriod(r.Period) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be in YYYY-MM format"})
	}
	if validator.IsEmpty(r.GeneratedBy) {
		errs = append(errs, validator.ValidationError{Field: "generated_by", Message: "is required"})
	}
	errs = r.Overrides.validate(errs)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BulkGeneratePayrollRequest struct {
	CompanyID   string   `json:"-"`
	GeneratedBy string   `json:"-"`
	Period      string   `json:"period"`
	EmployeeIDs []string `json:"employee_ids,omitempty"` // Empty = all active employees
}

func (r *BulkGeneratePayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidPeriod(r.Period) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be in YYYY-MM format"})
	}
	if validator.IsEmpty(r.GeneratedBy) {
		errs = append(errs, validator.ValidationError{Field: "generated_by", Message: "is required"})
	}
	for _, id := range r.EmployeeIDs {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must contain valid UUIDs"})
			break
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// BulkItemError describes one failed item of a bulk operation.
type BulkItemError struct {
	EmployeeID string `json:"employee_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type BulkGeneratePayrollResponse struct {
	Period       string               `json:"period"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	Succeeded    []PayrollRunResponse `json:"succeeded"`
	Failed       []BulkItemError      `json:"failed"`
}

type RecalculatePayrollRequest struct {
	CompanyID string     `json:"-"`
	RunID     string     `json:"-"`
	Overrides *Overrides `json:"overrides,omitempty"`
}

func (r *RecalculatePayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	errs = r.Overrides.validate(errs)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ApprovePayrollRequest struct {
	CompanyID  string `json:"-"`
	RunID      string `json:"-"`
	ApproverID string `json:"-"`
}

func (r *ApprovePayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	if validator.IsEmpty(r.ApproverID) {
		errs = append(errs, validator.ValidationError{Field: "approver_id", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type MarkPaidRequest struct {
	CompanyID     string  `json:"-"`
	RunID         string  `json:"-"`
	PaymentDate   string  `json:"payment_date"` // YYYY-MM-DD
	PaymentMethod *string `json:"payment_method,omitempty"`
}

func (r *MarkPaidRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	errs = validatePayment(errs, r.PaymentDate, r.PaymentMethod)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BulkMarkPaidRequest struct {
	CompanyID     string   `json:"-"`
	RunIDs        []string `json:"run_ids"`
	PaymentDate   string   `json:"payment_date"`
	PaymentMethod *string  `json:"payment_method,omitempty"`
}

func (r *BulkMarkPaidRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.RunIDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "run_ids", Message: "at least one run is required"})
	}
	for _, id := range r.RunIDs {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: "run_ids", Message: "must contain valid UUIDs"})
			break
		}
	}
	errs = validatePayment(errs, r.PaymentDate, r.PaymentMethod)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePayment(errs validator.ValidationErrors, date string, method *string) validator.ValidationErrors {
	if validator.IsEmpty(date) {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "is required"})
	} else if _, ok := validator.IsValidDate(date); !ok {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "must be in YYYY-MM-DD format"})
	}
	if method != nil && validator.IsEmpty(*method) {
		errs = append(errs, validator.ValidationError{Field: "payment_method", Message: "must not be empty"})
	}
	return errs
}

type BulkMarkPaidResponse struct {
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	Paid         []PayrollRunResponse `json:"paid"`
	Failed       []BulkItemError      `json:"failed"`
}

type PayrollRunResponse struct {
	ID              string                     `json:"id"`
	CompanyID       string                     `json:"company_id"`
	EmployeeID      string                     `json:"employee_id"`
	EmployeeName    *string                    `json:"employee_name,omitempty"`
	Period          string                     `json:"period"`
	BaseSalary      string                     `json:"base_salary"`
	Allowances      string                     `json:"allowances"`
	Deductions      string                     `json:"deductions"`
	GrossSalary     string                     `json:"gross_salary"`
	TotalDeductions string                     `json:"total_deductions"`
	TaxAmount       string                     `json:"tax_amount"`
	NetSalary       string                     `json:"net_salary"`
	AttendanceDays  int                        `json:"attendance_days"`
	WorkingDays     int                        `json:"working_days"`
	LeaveDays       string                     `json:"leave_days"`
	OvertimeHours   string                     `json:"overtime_hours"`
	Status          string                     `json:"status"`
	GeneratedBy     string                     `json:"generated_by"`
	ApprovedBy      *string                    `json:"approved_by,omitempty"`
	ApprovedAt      *string                    `json:"approved_at,omitempty"`
	PaymentDate     *string                    `json:"payment_date,omitempty"`
	PaymentMethod   *string                    `json:"payment_method,omitempty"`
	Version         int                        `json:"version"`
	Components      []PayrollComponentResponse `json:"components,omitempty"`
}

type PayrollFilter struct {
	Period     *string `json:"period,omitempty"`
	Status     *string `json:"status,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

func (f *PayrollFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Period != nil && !validator.IsValidPeriod(*f.Period) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be in YYYY-MM format"})
	}
	if f.Status != nil {
		switch PayrollStatus(*f.Status) {
		case PayrollStatusPending, PayrollStatusApproved, PayrollStatusPaid:
		default:
			errs = append(errs, validator.ValidationError{Field: "status", Message: "must be 'pending', 'approved' or 'paid'"})
		}
	}
	if f.EmployeeID != nil && !validator.IsValidUUID(*f.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ListPayrollRunResponse struct {
	Data       []PayrollRunResponse `json:"data"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

// ========== COMPONENT DTOs ==========

type AddComponentRequest struct {
	CompanyID         string           `json:"-"`
	RunID             string           `json:"-"`
	Type              string           `json:"type"` // "earning", "deduction" or "benefit"
	Name              string           `json:"name"`
	BaseAmount        decimal.Decimal  `json:"base_amount"`
	CalculationMethod string           `json:"calculation_method,omitempty"` // default "fixed"
	CalculatedAmount  *decimal.Decimal `json:"calculated_amount,omitempty"`
	IsTaxable         bool             `json:"is_taxable"`
	IsRecurring       bool             `json:"is_recurring"`
	Description       *string          `json:"description,omitempty"`
}

func (r *AddComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "is required"})
	}
	if validator.IsEmpty(r.Type) {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateComponentRequest struct {
	CompanyID         string           `json:"-"`
	RunID             string           `json:"-"`
	ComponentID       string           `json:"-"`
	Name              *string          `json:"name,omitempty"`
	BaseAmount        *decimal.Decimal `json:"base_amount,omitempty"`
	CalculationMethod *string          `json:"calculation_method,omitempty"`
	CalculatedAmount  *decimal.Decimal `json:"calculated_amount,omitempty"`
	IsTaxable         *bool            `json:"is_taxable,omitempty"`
	IsRecurring       *bool            `json:"is_recurring,omitempty"`
	Description       *string          `json:"description,omitempty"`
}

func (r *UpdateComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	if !validator.IsValidUUID(r.ComponentID) {
		errs = append(errs, validator.ValidationError{Field: "component_id", Message: "must be a valid UUID"})
	}
	if r.Name != nil && validator.IsEmpty(*r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "must not be empty"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type DeleteComponentRequest struct {
	CompanyID   string
	RunID       string
	ComponentID string
}

func (r *DeleteComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "must be a valid UUID"})
	}
	if !validator.IsValidUUID(r.ComponentID) {
		errs = append(errs, validator.ValidationError{Field: "component_id", Message: "must be a valid UUID"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayrollComponentResponse struct {
	ID                string  `json:"id"`
	PayrollRunID      string  `json:"payroll_run_id"`
	Type              string  `json:"type"`
	Name              string  `json:"name"`
	BaseAmount        string  `json:"base_amount"`
	CalculationMethod string  `json:"calculation_method"`
	CalculatedAmount  string  `json:"calculated_amount"`
	IsTaxable         bool    `json:"is_taxable"`
	IsRecurring       bool    `json:"is_recurring"`
	Description       *string `json:"description,omitempty"`
}

// ========== SUMMARY DTOs ==========

type PayrollSummaryRequest struct {
	CompanyID   string `json:"-"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

func (r *PayrollSummaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidPeriod(r.PeriodStart) {
		errs = append(errs, validator.ValidationError{Field: "period_start", Message: "must be in YYYY-MM format"})
	}
	if !validator.IsValidPeriod(r.PeriodEnd) {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must be in YYYY-MM format"})
	}
	if len(errs) == 0 && r.PeriodEnd < r.PeriodStart {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must not be before period_start"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PeriodSummaryResponse struct {
	Period           string `json:"period"`
	Runs             int    `json:"runs"`
	TotalGrossSalary string `json:"total_gross_salary"`
	TotalTax         string `json:"total_tax"`
	TotalNetSalary   string `json:"total_net_salary"`
}

type PayrollSummaryResponse struct {
	PeriodStart      string                  `json:"period_start"`
	PeriodEnd        string                  `json:"period_end"`
	TotalRuns        int                     `json:"total_runs"`
	TotalGrossSalary string                  `json:"total_gross_salary"`
	TotalDeductions  string                  `json:"total_deductions"`
	TotalTax         string                  `json:"total_tax"`
	TotalNetSalary   string                  `json:"total_net_salary"`
	PendingCount     int                     `json:"pending_count"`
	ApprovedCount    int                     `json:"approved_count"`
	PaidCount        int                     `json:"paid_count"`
	Periods          []PeriodSummaryResponse `json:"periods"`
}

// ========== MAPPERS ==========

// Money formats an amount as a two-digit decimal string.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t *time.Time, layout string) *string {
	if t == nil {
		return nil
	}
	s := t.Format(layout)
	return &s
}

func NewPayrollRunResponse(run PayrollRun, components []PayrollComponent) PayrollRunResponse {
	resp := PayrollRunResponse{
		ID:              run.ID,
		CompanyID:       run.CompanyID,
		EmployeeID:      run.EmployeeID,
		EmployeeName:    run.EmployeeName,
		Period:          run.Period,
		BaseSalary:      Money(run.BaseSalary),
		Allowances:      Money(run.Allowances),
		Deductions:      Money(run.Deductions),
		GrossSalary:     Money(run.GrossSalary),
		TotalDeductions: Money(run.TotalDeductions),
		TaxAmount:       Money(run.TaxAmount),
		NetSalary:       Money(run.NetSalary),
		AttendanceDays:  run.AttendanceDays,
		WorkingDays:     run.WorkingDays,
		LeaveDays:       run.LeaveDays.String(),
		OvertimeHours:   run.OvertimeHours.String(),
		Status:          string(run.Status),
		GeneratedBy:     run.GeneratedBy,
		ApprovedBy:      run.ApprovedBy,
		ApprovedAt:      formatTime(run.ApprovedAt, time.RFC3339),
		PaymentDate:     formatTime(run.PaymentDate, "2006-01-02"),
		PaymentMethod:   run.PaymentMethod,
		Version:         run.Version,
	}
	for _, c := range components {
		resp.Components = append(resp.Components, NewPayrollComponentResponse(c))
	}
	return resp
}

func NewPayrollComponentResponse(c PayrollComponent) PayrollComponentResponse {
	return PayrollComponentResponse{
		ID:                c.ID,
		PayrollRunID:      c.PayrollRunID,
		Type:              string(c.Type),
		Name:              c.Name,
		BaseAmount:        Money(c.BaseAmount),
		CalculationMethod: string(c.CalculationMethod),
		CalculatedAmount:  Money(c.CalculatedAmount),
		IsTaxable:         c.IsTaxable,
		IsRecurring:       c.IsRecurring,
		Description:       c.Description,
	}
}

func NewPayrollSettingsResponse(s PayrollSettings) PayrollSettingsResponse {
	return PayrollSettingsResponse{
		CompanyID:            s.CompanyID,
		ProrateByAttendance:  s.ProrateByAttendance,
		StandardMonthlyHours: s.StandardMonthlyHours.String(),
		OvertimeMultiplier:   s.OvertimeMultiplier.String(),
		WorkingDaysPerMonth:  s.WorkingDaysPerMonth,
	}
}

func NewTaxBracketsResponse(companyID string, brackets []TaxBracket) TaxBracketsResponse {
	resp := TaxBracketsResponse{CompanyID: companyID, Brackets: make([]TaxBracketResponse, 0, len(brackets))}
	for _, b := range brackets {
		item := TaxBracketResponse{Lower: Money(b.Lower), Rate: b.Rate.String()}
		if b.Upper != nil {
			upper := Money(*b.Upper)
			item.Upper = &upper
		}
		resp.Brackets = append(resp.Brackets, item)
	}
	return resp
}
