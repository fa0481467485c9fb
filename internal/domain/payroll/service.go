package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/payslip"
)

type PayrollService interface {
	// Settings
	GetSettings(ctx context.Context, companyID string) (PayrollSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdatePayrollSettingsRequest) (PayrollSettingsResponse, error)
	GetTaxBrackets(ctx context.Context, companyID string) (TaxBracketsResponse, error)
	ReplaceTaxBrackets(ctx context.Context, req ReplaceTaxBracketsRequest) (TaxBracketsResponse, error)

	// Generation
	Generate(ctx context.Context, req GeneratePayrollRequest) (PayrollRunResponse, error)
	BulkGenerate(ctx context.Context, req BulkGeneratePayrollRequest) (BulkGeneratePayrollResponse, error)
	Recalculate(ctx context.Context, req RecalculatePayrollRequest) (PayrollRunResponse, error)

	// Runs
	GetRun(ctx context.Context, companyID, runID string) (PayrollRunResponse, error)
	ListRuns(ctx context.Context, companyID string, filter PayrollFilter) (ListPayrollRunResponse, error)
	DeleteRun(ctx context.Context, companyID, runID string) error

	// Components, each returning the reconciled run
	AddComponent(ctx context.Context, req AddComponentRequest) (PayrollRunResponse, error)
	UpdateComponent(ctx context.Context, req UpdateComponentRequest) (PayrollRunResponse, error)
	DeleteComponent(ctx context.Context, req DeleteComponentRequest) (PayrollRunResponse, error)

	// Workflow
	Approve(ctx context.Context, req ApprovePayrollRequest) (PayrollRunResponse, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (PayrollRunResponse, error)
	BulkMarkPaid(ctx context.Context, req BulkMarkPaidRequest) (BulkMarkPaidResponse, error)

	// Reporting
	Summary(ctx context.Context, req PayrollSummaryRequest) (PayrollSummaryResponse, error)
	RenderPayslip(ctx context.Context, companyID, runID string) (filename string, pdf []byte, err error)
}

// PayslipNotice is the payload handed to a PayslipNotifier after approval.
type PayslipNotice struct {
	Recipient    string
	EmployeeName string
	Period       string
	Payslip      payslip.Document
}

// PayslipNotifier delivers a payslip to an employee. Delivery is best-effort.
type PayslipNotifier interface {
	NotifyPayslip(ctx context.Context, notice PayslipNotice) error
}
