package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/payslip"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"golang.org/x/sync/errgroup"
)

// ========== REPORTING ==========

func (s *PayrollServiceImpl) Summary(ctx context.Context, req payroll.PayrollSummaryRequest) (payroll.PayrollSummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	var totals payroll.RunTotals
	var periods []payroll.PeriodTotals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.payrollRepo.SummarizeRuns(gctx, req.CompanyID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return fmt.Errorf("summarize runs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		periods, err = s.payrollRepo.SummarizeByPeriod(gctx, req.CompanyID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return fmt.Errorf("summarize periods: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	resp := payroll.PayrollSummaryResponse{
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		TotalRuns:        totals.TotalRuns,
		TotalGrossSalary: payroll.Money(totals.TotalGross),
		TotalDeductions:  payroll.Money(totals.TotalDeductions),
		TotalTax:         payroll.Money(totals.TotalTax),
		TotalNetSalary:   payroll.Money(totals.TotalNet),
		PendingCount:     totals.PendingCount,
		ApprovedCount:    totals.ApprovedCount,
		PaidCount:        totals.PaidCount,
		Periods:          make([]payroll.PeriodSummaryResponse, 0, len(periods)),
	}
	for _, p := range periods {
		resp.Periods = append(resp.Periods, payroll.PeriodSummaryResponse{
			Period:           p.Period,
			Runs:             p.Runs,
			TotalGrossSalary: payroll.Money(p.TotalGross),
			TotalTax:         payroll.Money(p.TotalTax),
			TotalNetSalary:   payroll.Money(p.TotalNet),
		})
	}
	return resp, nil
}

// RenderPayslip returns the PDF payslip of an approved or paid run.
func (s *PayrollServiceImpl) RenderPayslip(ctx context.Context, companyID, runID string) (string, []byte, error) {
	if !validator.IsValidUUID(runID) {
		return "", nil, payroll.ErrPayrollRunNotFound
	}
	run, err := s.payrollRepo.GetRunByID(ctx, runID, companyID)
	if err != nil {
		return "", nil, err
	}
	if run.Status == payroll.PayrollStatusPending {
		return "", nil, fmt.Errorf("%w: payslips are issued after approval", payroll.ErrRunNotApproved)
	}
	components, err := s.payrollRepo.ListComponents(ctx, run.ID, companyID)
	if err != nil {
		return "", nil, fmt.Errorf("list components: %w", err)
	}

	doc := buildPayslipDocument(run, components)
	pdf, err := payslip.Render(doc)
	if err != nil {
		return "", nil, err
	}
	return doc.Filename(), pdf, nil
}

func buildPayslipDocument(run payroll.PayrollRun, components []payroll.PayrollComponent) payslip.Document {
	doc := payslip.Document{
		RunID:           run.ID,
		Period:          run.Period,
		Status:          string(run.Status),
		GrossSalary:     payroll.Money(run.GrossSalary),
		TotalDeductions: payroll.Money(run.TotalDeductions),
		TaxAmount:       payroll.Money(run.TaxAmount),
		NetSalary:       payroll.Money(run.NetSalary),
	}
	if run.EmployeeName != nil {
		doc.EmployeeName = *run.EmployeeName
	} else {
		doc.EmployeeName = run.EmployeeID
	}
	if run.ApprovedAt != nil {
		doc.ApprovedAt = run.ApprovedAt.Format(time.RFC3339)
	}
	if run.PaymentDate != nil {
		doc.PaymentDate = run.PaymentDate.Format("2006-01-02")
	}
	if run.PaymentMethod != nil {
		doc.PaymentMethod = *run.PaymentMethod
	}
	for _, c := range components {
		doc.Lines = append(doc.Lines, payslip.Line{
			Name:   c.Name,
			Type:   string(c.Type),
			Amount: payroll.Money(c.CalculatedAmount),
		})
	}
	return doc
}
