package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"golang.org/x/sync/errgroup"
)

// ========== APPROVAL WORKFLOW ==========

func (s *PayrollServiceImpl) Approve(ctx context.Context, req payroll.ApprovePayrollRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	var approved payroll.PayrollRun
	var components []payroll.PayrollComponent
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		run, ledger, err := s.lockPendingRun(txCtx, req.RunID, req.CompanyID)
		if err != nil {
			return err
		}
		if run.GeneratedBy == req.ApproverID {
			return payroll.ErrSelfApproval
		}
		if err := VerifyTotals(run, ledger); err != nil {
			reportInconsistency(err)
			return err
		}

		now := s.now().UTC()
		run.Status = payroll.PayrollStatusApproved
		run.ApprovedBy = &req.ApproverID
		run.ApprovedAt = &now

		approved, err = s.payrollRepo.UpdateRun(txCtx, run)
		components = ledger.Components()
		return err
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	s.notifyApproved(ctx, approved, components)
	return payroll.NewPayrollRunResponse(approved, components), nil
}

// notifyApproved sends the payslip to the employee. Failures are logged and
// never affect the approval.
func (s *PayrollServiceImpl) notifyApproved(ctx context.Context, run payroll.PayrollRun, components []payroll.PayrollComponent) {
	if s.notifier == nil {
		return
	}
	emp, err := s.employeeRepo.GetByID(ctx, run.EmployeeID, run.CompanyID)
	if err != nil {
		slog.Warn("payslip notification skipped: employee lookup failed", "run_id", run.ID, "error", err)
		return
	}
	if emp.Email == nil || validator.IsEmpty(*emp.Email) {
		slog.Warn("payslip notification skipped: employee has no email", "run_id", run.ID, "employee_id", emp.ID)
		return
	}
	if run.EmployeeName == nil {
		run.EmployeeName = &emp.FullName
	}

	notice := payroll.PayslipNotice{
		Recipient:    *emp.Email,
		EmployeeName: emp.FullName,
		Period:       run.Period,
		Payslip:      buildPayslipDocument(run, components),
	}
	if err := s.notifier.NotifyPayslip(ctx, notice); err != nil {
		slog.Warn("payslip notification failed", "run_id", run.ID, "employee_id", emp.ID, "error", err)
		return
	}
	slog.Info("payslip notification sent", "run_id", run.ID, "employee_id", emp.ID)
}

func (s *PayrollServiceImpl) MarkPaid(ctx context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	paymentDate, _ := validator.IsValidDate(req.PaymentDate)

	run, err := s.markPaid(ctx, req.CompanyID, req.RunID, paymentDate, req.PaymentMethod)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewPayrollRunResponse(run, nil), nil
}

func (s *PayrollServiceImpl) markPaid(ctx context.Context, companyID, runID string, paymentDate time.Time, method *string) (payroll.PayrollRun, error) {
	var paid payroll.PayrollRun
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		run, err := s.payrollRepo.GetRunForUpdate(txCtx, runID, companyID)
		if err != nil {
			return err
		}
		switch run.Status {
		case payroll.PayrollStatusPaid:
			return payroll.ErrRunAlreadyPaid
		case payroll.PayrollStatusApproved:
		default:
			return fmt.Errorf("%w: status is %s", payroll.ErrRunNotApproved, run.Status)
		}

		run.Status = payroll.PayrollStatusPaid
		run.PaymentDate = &paymentDate
		if method != nil {
			run.PaymentMethod = method
		}
		paid, err = s.payrollRepo.UpdateRun(txCtx, run)
		return err
	})
	return paid, err
}

func (s *PayrollServiceImpl) BulkMarkPaid(ctx context.Context, req payroll.BulkMarkPaidRequest) (payroll.BulkMarkPaidResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkMarkPaidResponse{}, err
	}
	paymentDate, _ := validator.IsValidDate(req.PaymentDate)

	type outcome struct {
		run payroll.PayrollRun
		err error
	}
	outcomes := make([]outcome, len(req.RunIDs))

	var g errgroup.Group
	g.SetLimit(s.defaults.BulkConcurrency)
	for i, runID := range req.RunIDs {
		g.Go(func() error {
			run, err := s.markPaid(ctx, req.CompanyID, runID, paymentDate, req.PaymentMethod)
			outcomes[i] = outcome{run: run, err: err}
			return nil
		})
	}
	_ = g.Wait()

	resp := payroll.BulkMarkPaidResponse{
		Paid:   []payroll.PayrollRunResponse{},
		Failed: []payroll.BulkItemError{},
	}
	for i, o := range outcomes {
		if o.err != nil {
			resp.Failed = append(resp.Failed, payroll.BulkItemError{
				RunID:   req.RunIDs[i],
				Kind:    payroll.ErrorKind(o.err),
				Message: o.err.Error(),
			})
			continue
		}
		resp.Paid = append(resp.Paid, payroll.NewPayrollRunResponse(o.run, nil))
	}
	resp.SuccessCount = len(resp.Paid)
	resp.FailureCount = len(resp.Failed)
	return resp, nil
}

func (s *PayrollServiceImpl) DeleteRun(ctx context.Context, companyID, runID string) error {
	if !validator.IsValidUUID(runID) {
		return payroll.ErrPayrollRunNotFound
	}
	return s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		run, err := s.payrollRepo.GetRunForUpdate(txCtx, runID, companyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.PayrollStatusPending {
			return fmt.Errorf("%w: only pending runs can be deleted", payroll.ErrRunNotPending)
		}
		return s.payrollRepo.DeleteRun(txCtx, run.ID, companyID)
	})
}
