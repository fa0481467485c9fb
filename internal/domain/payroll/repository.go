package payroll

import "context"

type PayrollRepository interface {
	// Settings
	GetSettings(ctx context.Context, companyID string) (PayrollSettings, error)
	UpsertSettings(ctx context.Context, settings PayrollSettings) (PayrollSettings, error)

	// Tax brackets, returned in ascending order
	GetTaxBrackets(ctx context.Context, companyID string) ([]TaxBracket, error)
	ReplaceTaxBrackets(ctx context.Context, companyID string, brackets []TaxBracket) error

	// Runs
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id, companyID string) (PayrollRun, error)
	// GetRunForUpdate locks the run row until the surrounding transaction ends.
	GetRunForUpdate(ctx context.Context, id, companyID string) (PayrollRun, error)
	GetRunByEmployeePeriod(ctx context.Context, employeeID, period, companyID string) (PayrollRun, error)
	ListRuns(ctx context.Context, companyID string, filter PayrollFilter) ([]PayrollRun, int64, error)
	// UpdateRun writes totals, inputs and workflow fields when run.Version
	// matches the stored version and returns the run with its new version.
	UpdateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	DeleteRun(ctx context.Context, id, companyID string) error

	// Components
	ListComponents(ctx context.Context, runID, companyID string) ([]PayrollComponent, error)
	CreateComponent(ctx context.Context, component PayrollComponent) (PayrollComponent, error)
	UpdateComponent(ctx context.Context, component PayrollComponent) (PayrollComponent, error)
	DeleteComponent(ctx context.Context, id, runID, companyID string) error

	// Aggregates, period bounds inclusive
	SummarizeRuns(ctx context.Context, companyID, periodStart, periodEnd string) (RunTotals, error)
	SummarizeByPeriod(ctx context.Context, companyID, periodStart, periodEnd string) ([]PeriodTotals, error)
}
