package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type PayrollServiceImpl struct {
	tx             database.Transactor
	payrollRepo    payroll.PayrollRepository
	employeeRepo   employee.EmployeeRepository
	attendanceRepo attendance.AttendanceRepository
	leaveRepo      leave.LeaveRepository
	tax            *TaxCalculator
	notifier       payroll.PayslipNotifier
	defaults       config.PayrollConfig
	now            func() time.Time
}

func NewPayrollService(
	tx database.Transactor,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	attendanceRepo attendance.AttendanceRepository,
	leaveRepo leave.LeaveRepository,
	notifier payroll.PayslipNotifier,
	defaults config.PayrollConfig,
) payroll.PayrollService {
	if defaults.BulkConcurrency < 1 {
		defaults.BulkConcurrency = 1
	}
	return &PayrollServiceImpl{
		tx:             tx,
		payrollRepo:    payrollRepo,
		employeeRepo:   employeeRepo,
		attendanceRepo: attendanceRepo,
		leaveRepo:      leaveRepo,
		tax:            NewTaxCalculator(payrollRepo),
		notifier:       notifier,
		defaults:       defaults,
		now:            time.Now,
	}
}

// ========== SETTINGS ==========

func (s *PayrollServiceImpl) defaultSettings(companyID string) payroll.PayrollSettings {
	return payroll.PayrollSettings{
		CompanyID:            companyID,
		ProrateByAttendance:  false,
		StandardMonthlyHours: s.defaults.StandardMonthlyHours,
		OvertimeMultiplier:   s.defaults.OvertimeMultiplier,
		WorkingDaysPerMonth:  0,
	}
}

// loadSettings returns the company settings or the configured defaults.
func (s *PayrollServiceImpl) loadSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	settings, err := s.payrollRepo.GetSettings(ctx, companyID)
	if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
		return s.defaultSettings(companyID), nil
	}
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("load payroll settings: %w", err)
	}
	return settings, nil
}

func (s *PayrollServiceImpl) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettingsResponse, error) {
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	return payroll.NewPayrollSettingsResponse(settings), nil
}

func (s *PayrollServiceImpl) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	current, err := s.loadSettings(ctx, req.CompanyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	// Apply updates
	if req.ProrateByAttendance != nil {
		current.ProrateByAttendance = *req.ProrateByAttendance
	}
	if req.StandardMonthlyHours != nil {
		current.StandardMonthlyHours = *req.StandardMonthlyHours
	}
	if req.OvertimeMultiplier != nil {
		current.OvertimeMultiplier = *req.OvertimeMultiplier
	}
	if req.WorkingDaysPerMonth != nil {
		current.WorkingDaysPerMonth = *req.WorkingDaysPerMonth
	}

	updated, err := s.payrollRepo.UpsertSettings(ctx, current)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, fmt.Errorf("save payroll settings: %w", err)
	}
	return payroll.NewPayrollSettingsResponse(updated), nil
}

// ========== TAX BRACKETS ==========

func (s *PayrollServiceImpl) GetTaxBrackets(ctx context.Context, companyID string) (payroll.TaxBracketsResponse, error) {
	brackets, err := s.payrollRepo.GetTaxBrackets(ctx, companyID)
	if err != nil {
		return payroll.TaxBracketsResponse{}, fmt.Errorf("load tax brackets: %w", err)
	}
	return payroll.NewTaxBracketsResponse(companyID, brackets), nil
}

func (s *PayrollServiceImpl) ReplaceTaxBrackets(ctx context.Context, req payroll.ReplaceTaxBracketsRequest) (payroll.TaxBracketsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxBracketsResponse{}, err
	}
	brackets := req.ToBrackets()
	if err := ValidateBrackets(brackets); err != nil {
		return payroll.TaxBracketsResponse{}, err
	}

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		return s.payrollRepo.ReplaceTaxBrackets(txCtx, req.CompanyID, brackets)
	})
	if err != nil {
		return payroll.TaxBracketsResponse{}, fmt.Errorf("save tax brackets: %w", err)
	}
	return payroll.NewTaxBracketsResponse(req.CompanyID, brackets), nil
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, companyID, runID string) (payroll.PayrollRunResponse, error) {
	if !validator.IsValidUUID(runID) {
		return payroll.PayrollRunResponse{}, payroll.ErrPayrollRunNotFound
	}
	run, err := s.payrollRepo.GetRunByID(ctx, runID, companyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	components, err := s.payrollRepo.ListComponents(ctx, run.ID, companyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, fmt.Errorf("list components: %w", err)
	}
	return payroll.NewPayrollRunResponse(run, components), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, companyID string, filter payroll.PayrollFilter) (payroll.ListPayrollRunResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	runs, total, err := s.payrollRepo.ListRuns(ctx, companyID, filter)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, fmt.Errorf("list payroll runs: %w", err)
	}

	data := make([]payroll.PayrollRunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, payroll.NewPayrollRunResponse(run, nil))
	}
	return payroll.ListPayrollRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// ========== HELPERS ==========

// lockPendingRun loads the run under a row lock and requires it to be pending.
func (s *PayrollServiceImpl) lockPendingRun(ctx context.Context, runID, companyID string) (payroll.PayrollRun, *Ledger, error) {
	run, err := s.payrollRepo.GetRunForUpdate(ctx, runID, companyID)
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}
	if run.Status != payroll.PayrollStatusPending {
		return payroll.PayrollRun{}, nil, fmt.Errorf("%w: status is %s", payroll.ErrRunNotPending, run.Status)
	}
	components, err := s.payrollRepo.ListComponents(ctx, run.ID, companyID)
	if err != nil {
		return payroll.PayrollRun{}, nil, fmt.Errorf("list components: %w", err)
	}
	return run, NewLedger(run.ID, companyID, components), nil
}

// reconcileAndPersist reconciles run against ledger and writes the Income
// Tax component and the run totals. Must run inside a transaction holding
// the run lock.
func (s *PayrollServiceImpl) reconcileAndPersist(ctx context.Context, run payroll.PayrollRun, ledger *Ledger) (payroll.PayrollRun, error) {
	for _, c := range ledger.RefreshPercentages() {
		if _, err := s.payrollRepo.UpdateComponent(ctx, c); err != nil {
			return payroll.PayrollRun{}, fmt.Errorf("update component: %w", err)
		}
	}

	brackets, err := s.tax.Brackets(ctx, run.CompanyID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	_, hadTax := ledger.TaxComponent()
	next, err := Reconcile(run, ledger, brackets)
	if errors.Is(err, payroll.ErrNegativeAmount) {
		return payroll.PayrollRun{}, fmt.Errorf("%w: %v", payroll.ErrDeductionsExceedGross, err)
	}
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := VerifyTotals(next, ledger); err != nil {
		reportInconsistency(err)
		return payroll.PayrollRun{}, err
	}

	taxComponent, _ := ledger.TaxComponent()
	if hadTax {
		_, err = s.payrollRepo.UpdateComponent(ctx, taxComponent)
	} else {
		_, err = s.payrollRepo.CreateComponent(ctx, taxComponent)
	}
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("save income tax component: %w", err)
	}

	saved, err := s.payrollRepo.UpdateRun(ctx, next)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	return saved, nil
}

// reportInconsistency logs invariant violations at error level so operators
// are alerted.
func reportInconsistency(err error) {
	var inconsistency *payroll.InternalInconsistencyError
	if errors.As(err, &inconsistency) {
		slog.Error("payroll internal inconsistency",
			"run_id", inconsistency.RunID,
			"employee_id", inconsistency.EmployeeID,
			"period", inconsistency.Period,
			"detail", inconsistency.Detail,
		)
		return
	}
	slog.Error("payroll internal inconsistency", "error", err)
}
