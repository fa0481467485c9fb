package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"golang.org/x/sync/errgroup"
)

// resolveInputs reads attendance and leave for the period unless overrides
// already cover what those reads would provide.
func (s *PayrollServiceImpl) resolveInputs(ctx context.Context, employeeID, companyID string, period payroll.Period, settings payroll.PayrollSettings, overrides *payroll.Overrides) (Inputs, error) {
	var records []attendance.Attendance
	var leaves []leave.LeaveRequest
	var err error

	if overrides == nil || overrides.AttendanceDays == nil || overrides.OvertimeHours == nil {
		records, err = s.attendanceRepo.ListByEmployeeAndRange(ctx, employeeID, companyID, period.Start(), period.End())
		if err != nil {
			return Inputs{}, fmt.Errorf("load attendance: %w", err)
		}
	}
	if overrides == nil || overrides.LeaveDays == nil {
		leaves, err = s.leaveRepo.ListApprovedByEmployeeAndRange(ctx, employeeID, companyID, period.Start(), period.End())
		if err != nil {
			return Inputs{}, fmt.Errorf("load leave: %w", err)
		}
	}
	return DeriveInputs(period, settings, records, leaves, overrides), nil
}

// ========== GENERATE ==========

func (s *PayrollServiceImpl) Generate(ctx context.Context, req payroll.GeneratePayrollRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	run, components, err := s.generate(ctx, req)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewPayrollRunResponse(run, components), nil
}

func (s *PayrollServiceImpl) generate(ctx context.Context, req payroll.GeneratePayrollRequest) (payroll.PayrollRun, []payroll.PayrollComponent, error) {
	period, err := payroll.ParsePeriod(req.Period)
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, req.CompanyID)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return payroll.PayrollRun{}, nil, payroll.ErrEmployeeNotFound
	}
	if err != nil {
		return payroll.PayrollRun{}, nil, fmt.Errorf("load employee: %w", err)
	}
	if !emp.IsActive() {
		return payroll.PayrollRun{}, nil, fmt.Errorf("%w: employee %s is %s", payroll.ErrEmployeeNotFound, emp.ID, emp.EmploymentStatus)
	}
	if emp.BaseSalary == nil {
		return payroll.PayrollRun{}, nil, payroll.ErrEmployeeHasNoBaseSalary
	}

	existing, err := s.payrollRepo.GetRunByEmployeePeriod(ctx, emp.ID, period.String(), req.CompanyID)
	if err == nil {
		return payroll.PayrollRun{}, nil, &payroll.DuplicateRunError{Existing: existing}
	}
	if !errors.Is(err, payroll.ErrPayrollRunNotFound) {
		return payroll.PayrollRun{}, nil, fmt.Errorf("check existing payroll run: %w", err)
	}

	settings, err := s.loadSettings(ctx, req.CompanyID)
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}
	inputs, err := s.resolveInputs(ctx, emp.ID, req.CompanyID, period, settings, req.Overrides)
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}
	brackets, err := s.tax.Brackets(ctx, req.CompanyID)
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}

	run := payroll.PayrollRun{
		ID:             newID(),
		CompanyID:      req.CompanyID,
		EmployeeID:     emp.ID,
		Period:         period.String(),
		BaseSalary:     emp.BaseSalary.Round(2),
		AttendanceDays: inputs.AttendanceDays,
		WorkingDays:    inputs.WorkingDays,
		LeaveDays:      inputs.LeaveDays,
		OvertimeHours:  inputs.OvertimeHours,
		Status:         payroll.PayrollStatusPending,
		GeneratedBy:    req.GeneratedBy,
		PaymentMethod:  inputs.PaymentMethod,
		EmployeeName:   &emp.FullName,
	}

	inconsistent := func(detail string) error {
		err := &payroll.InternalInconsistencyError{RunID: run.ID, EmployeeID: run.EmployeeID, Period: run.Period, Detail: detail}
		reportInconsistency(err)
		return err
	}

	standard, err := BuildStandardComponents(*emp.BaseSalary, settings, inputs)
	if errors.Is(err, payroll.ErrNegativeAmount) {
		return payroll.PayrollRun{}, nil, inconsistent(err.Error())
	}
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}

	ledger := NewLedger(run.ID, req.CompanyID, nil)
	ledger.ApplyStandard(standard)

	run, err = Reconcile(run, ledger, brackets)
	if errors.Is(err, payroll.ErrNegativeAmount) {
		return payroll.PayrollRun{}, nil, inconsistent(err.Error())
	}
	if err != nil {
		return payroll.PayrollRun{}, nil, err
	}
	if err := VerifyTotals(run, ledger); err != nil {
		reportInconsistency(err)
		return payroll.PayrollRun{}, nil, err
	}

	components := ledger.Components()
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, err := s.payrollRepo.CreateRun(txCtx, run)
		if err != nil {
			return err
		}
		for i, c := range components {
			saved, err := s.payrollRepo.CreateComponent(txCtx, c)
			if err != nil {
				return fmt.Errorf("create component %q: %w", c.Name, err)
			}
			components[i] = saved
		}
		created.EmployeeName = run.EmployeeName
		run = created
		return nil
	})
	if errors.Is(err, payroll.ErrDuplicateRun) {
		// lost a race with a concurrent generator
		existing, getErr := s.payrollRepo.GetRunByEmployeePeriod(ctx, emp.ID, period.String(), req.CompanyID)
		if getErr == nil {
			return payroll.PayrollRun{}, nil, &payroll.DuplicateRunError{Existing: existing}
		}
		return payroll.PayrollRun{}, nil, err
	}
	if err != nil {
		return payroll.PayrollRun{}, nil, fmt.Errorf("save payroll run: %w", err)
	}

	return run, components, nil
}

func (s *PayrollServiceImpl) BulkGenerate(ctx context.Context, req payroll.BulkGeneratePayrollRequest) (payroll.BulkGeneratePayrollResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkGeneratePayrollResponse{}, err
	}

	employeeIDs := req.EmployeeIDs
	if len(employeeIDs) == 0 {
		employees, err := s.employeeRepo.ListActiveByCompanyID(ctx, req.CompanyID)
		if err != nil {
			return payroll.BulkGeneratePayrollResponse{}, fmt.Errorf("list active employees: %w", err)
		}
		for _, e := range employees {
			employeeIDs = append(employeeIDs, e.ID)
		}
	}

	type outcome struct {
		run        payroll.PayrollRun
		components []payroll.PayrollComponent
		err        error
	}
	outcomes := make([]outcome, len(employeeIDs))

	// Failures are collected per employee, so workers never return an error.
	var g errgroup.Group
	g.SetLimit(s.defaults.BulkConcurrency)
	for i, employeeID := range employeeIDs {
		g.Go(func() error {
			run, components, err := s.generate(ctx, payroll.GeneratePayrollRequest{
				CompanyID:   req.CompanyID,
				GeneratedBy: req.GeneratedBy,
				EmployeeID:  employeeID,
				Period:      req.Period,
			})
			outcomes[i] = outcome{run: run, components: components, err: err}
			return nil
		})
	}
	_ = g.Wait()

	resp := payroll.BulkGeneratePayrollResponse{
		Period:    req.Period,
		Succeeded: []payroll.PayrollRunResponse{},
		Failed:    []payroll.BulkItemError{},
	}
	for i, o := range outcomes {
		if o.err != nil {
			resp.Failed = append(resp.Failed, payroll.BulkItemError{
				EmployeeID: employeeIDs[i],
				Kind:       payroll.ErrorKind(o.err),
				Message:    o.err.Error(),
			})
			continue
		}
		resp.Succeeded = append(resp.Succeeded, payroll.NewPayrollRunResponse(o.run, o.components))
	}
	resp.SuccessCount = len(resp.Succeeded)
	resp.FailureCount = len(resp.Failed)
	return resp, nil
}

// ========== RECALCULATE ==========

func (s *PayrollServiceImpl) Recalculate(ctx context.Context, req payroll.RecalculatePayrollRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	var result payroll.PayrollRun
	var components []payroll.PayrollComponent
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		run, ledger, err := s.lockPendingRun(txCtx, req.RunID, req.CompanyID)
		if err != nil {
			return err
		}

		period, err := payroll.ParsePeriod(run.Period)
		if err != nil {
			return err
		}
		settings, err := s.loadSettings(txCtx, req.CompanyID)
		if err != nil {
			return err
		}
		inputs, err := s.resolveInputs(txCtx, run.EmployeeID, req.CompanyID, period, settings, req.Overrides)
		if err != nil {
			return err
		}
		standard, err := BuildStandardComponents(run.BaseSalary, settings, inputs)
		if err != nil {
			return err
		}

		diff := ledger.ApplyStandard(standard)
		for _, c := range diff.Removed {
			if err := s.payrollRepo.DeleteComponent(txCtx, c.ID, run.ID, req.CompanyID); err != nil {
				return fmt.Errorf("delete component %q: %w", c.Name, err)
			}
		}
		for _, c := range diff.Updated {
			if _, err := s.payrollRepo.UpdateComponent(txCtx, c); err != nil {
				return fmt.Errorf("update component %q: %w", c.Name, err)
			}
		}
		for _, c := range diff.Created {
			if _, err := s.payrollRepo.CreateComponent(txCtx, c); err != nil {
				return fmt.Errorf("create component %q: %w", c.Name, err)
			}
		}

		run.AttendanceDays = inputs.AttendanceDays
		run.WorkingDays = inputs.WorkingDays
		run.LeaveDays = inputs.LeaveDays
		run.OvertimeHours = inputs.OvertimeHours
		if inputs.PaymentMethod != nil {
			run.PaymentMethod = inputs.PaymentMethod
		}

		result, err = s.reconcileAndPersist(txCtx, run, ledger)
		components = ledger.Components()
		return err
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewPayrollRunResponse(result, components), nil
}
