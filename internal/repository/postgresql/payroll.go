package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	constraintRunEmployeePeriod = "uk_payroll_runs_employee_period"
	constraintComponentName     = "uk_payroll_components_run_name"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports whether err is a unique violation of constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// ========== SETTINGS ==========

func (r *payrollRepository) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT company_id, prorate_by_attendance, standard_monthly_hours,
			   overtime_multiplier, working_days_per_month, created_at, updated_at
		FROM payroll_settings
		WHERE company_id = $1
	`

	var s payroll.PayrollSettings
	err := q.QueryRow(ctx, query, companyID).Scan(
		&s.CompanyID, &s.ProrateByAttendance, &s.StandardMonthlyHours,
		&s.OvertimeMultiplier, &s.WorkingDaysPerMonth, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
		}
		return payroll.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollRepository) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_settings (
			company_id, prorate_by_attendance, standard_monthly_hours,
			overtime_multiplier, working_days_per_month
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			prorate_by_attendance = EXCLUDED.prorate_by_attendance,
			standard_monthly_hours = EXCLUDED.standard_monthly_hours,
			overtime_multiplier = EXCLUDED.overtime_multiplier,
			working_days_per_month = EXCLUDED.working_days_per_month,
			updated_at = NOW()
		RETURNING company_id, prorate_by_attendance, standard_monthly_hours,
			overtime_multiplier, working_days_per_month, created_at, updated_at
	`

	var s payroll.PayrollSettings
	err := q.QueryRow(ctx, query,
		settings.CompanyID, settings.ProrateByAttendance, settings.StandardMonthlyHours,
		settings.OvertimeMultiplier, settings.WorkingDaysPerMonth,
	).Scan(
		&s.CompanyID, &s.ProrateByAttendance, &s.StandardMonthlyHours,
		&s.OvertimeMultiplier, &s.WorkingDaysPerMonth, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to upsert payroll settings: %w", err)
	}

	return s, nil
}

// ========== TAX BRACKETS ==========

func (r *payrollRepository) GetTaxBrackets(ctx context.Context, companyID string) ([]payroll.TaxBracket, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT lower_bound, upper_bound, rate
		FROM tax_brackets
		WHERE company_id = $1
		ORDER BY lower_bound
	`

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax brackets: %w", err)
	}
	defer rows.Close()

	var brackets []payroll.TaxBracket
	for rows.Next() {
		var b payroll.TaxBracket
		if err := rows.Scan(&b.Lower, &b.Upper, &b.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan tax bracket: %w", err)
		}
		brackets = append(brackets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tax brackets: %w", err)
	}

	return brackets, nil
}

// ReplaceTaxBrackets swaps the whole table. Callers run it in a transaction.
func (r *payrollRepository) ReplaceTaxBrackets(ctx context.Context, companyID string, brackets []payroll.TaxBracket) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM tax_brackets WHERE company_id = $1`, companyID); err != nil {
		return fmt.Errorf("failed to clear tax brackets: %w", err)
	}

	query := `
		INSERT INTO tax_brackets (company_id, lower_bound, upper_bound, rate)
		VALUES ($1, $2, $3, $4)
	`
	for _, b := range brackets {
		if _, err := q.Exec(ctx, query, companyID, b.Lower, b.Upper, b.Rate); err != nil {
			return fmt.Errorf("failed to insert tax bracket: %w", err)
		}
	}

	return nil
}

// ========== RUNS ==========

const runColumns = `
	pr.id, pr.company_id, pr.employee_id, pr.period, pr.base_salary,
	pr.allowances, pr.deductions, pr.gross_salary, pr.total_deductions,
	pr.tax_amount, pr.net_salary, pr.attendance_days, pr.working_days,
	pr.leave_days, pr.overtime_hours, pr.status, pr.generated_by,
	pr.approved_by, pr.approved_at, pr.payment_date, pr.payment_method,
	pr.version, pr.created_at, pr.updated_at, e.full_name
`

func scanRun(row rowScanner) (payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	err := row.Scan(
		&run.ID, &run.CompanyID, &run.EmployeeID, &run.Period, &run.BaseSalary,
		&run.Allowances, &run.Deductions, &run.GrossSalary, &run.TotalDeductions,
		&run.TaxAmount, &run.NetSalary, &run.AttendanceDays, &run.WorkingDays,
		&run.LeaveDays, &run.OvertimeHours, &run.Status, &run.GeneratedBy,
		&run.ApprovedBy, &run.ApprovedAt, &run.PaymentDate, &run.PaymentMethod,
		&run.Version, &run.CreatedAt, &run.UpdatedAt, &run.EmployeeName,
	)
	return run, err
}

func (r *payrollRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (
			id, company_id, employee_id, period, base_salary,
			allowances, deductions, gross_salary, total_deductions,
			tax_amount, net_salary, attendance_days, working_days,
			leave_days, overtime_hours, status, generated_by, payment_method
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING version, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.EmployeeID, run.Period, run.BaseSalary,
		run.Allowances, run.Deductions, run.GrossSalary, run.TotalDeductions,
		run.TaxAmount, run.NetSalary, run.AttendanceDays, run.WorkingDays,
		run.LeaveDays, run.OvertimeHours, run.Status, run.GeneratedBy, run.PaymentMethod,
	).Scan(&run.Version, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, constraintRunEmployeePeriod) {
			return payroll.PayrollRun{}, payroll.ErrDuplicateRun
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) GetRunByID(ctx context.Context, id, companyID string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + runColumns + `
		FROM payroll_runs pr
		LEFT JOIN employees e ON pr.employee_id = e.id
		WHERE pr.id = $1 AND pr.company_id = $2
	`

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) GetRunForUpdate(ctx context.Context, id, companyID string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + runColumns + `
		FROM payroll_runs pr
		LEFT JOIN employees e ON pr.employee_id = e.id
		WHERE pr.id = $1 AND pr.company_id = $2
		FOR UPDATE OF pr
	`

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to lock payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) GetRunByEmployeePeriod(ctx context.Context, employeeID, period, companyID string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + runColumns + `
		FROM payroll_runs pr
		LEFT JOIN employees e ON pr.employee_id = e.id
		WHERE pr.employee_id = $1 AND pr.period = $2 AND pr.company_id = $3
	`

	run, err := scanRun(q.QueryRow(ctx, query, employeeID, period, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) ListRuns(ctx context.Context, companyID string, filter payroll.PayrollFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM payroll_runs pr
		LEFT JOIN employees e ON pr.employee_id = e.id
		WHERE pr.company_id = $1
	`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.Period != nil {
		baseQuery += fmt.Sprintf(" AND pr.period = $%d", argIdx)
		args = append(args, *filter.Period)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND pr.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil {
		baseQuery += fmt.Sprintf(" AND pr.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}

	// Count query
	var totalCount int64
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY pr.period DESC, e.full_name, pr.id
		LIMIT $%d OFFSET $%d
	`, runColumns, baseQuery, argIdx, argIdx+1)

	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}

	return runs, totalCount, nil
}

func (r *payrollRepository) UpdateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			allowances = $4, deductions = $5, gross_salary = $6, total_deductions = $7,
			tax_amount = $8, net_salary = $9, attendance_days = $10, working_days = $11,
			leave_days = $12, overtime_hours = $13, status = $14, approved_by = $15,
			approved_at = $16, payment_date = $17, payment_method = $18,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND version = $3
		RETURNING version, updated_at
	`

	err := q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.Version,
		run.Allowances, run.Deductions, run.GrossSalary, run.TotalDeductions,
		run.TaxAmount, run.NetSalary, run.AttendanceDays, run.WorkingDays,
		run.LeaveDays, run.OvertimeHours, run.Status, run.ApprovedBy,
		run.ApprovedAt, run.PaymentDate, run.PaymentMethod,
	).Scan(&run.Version, &run.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, fmt.Errorf("failed to update payroll run: %w", err)
		}
		// Either the run is gone or its version moved on
		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM payroll_runs WHERE id = $1 AND company_id = $2)`,
			run.ID, run.CompanyID,
		).Scan(&exists); err != nil {
			return payroll.PayrollRun{}, fmt.Errorf("failed to check payroll run: %w", err)
		}
		if !exists {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, payroll.ErrConcurrentModification
	}

	return run, nil
}

// DeleteRun removes the run. Components go with it (ON DELETE CASCADE).
func (r *payrollRepository) DeleteRun(ctx context.Context, id, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `DELETE FROM payroll_runs WHERE id = $1 AND company_id = $2 RETURNING id`

	var deletedID string
	err := q.QueryRow(ctx, query, id, companyID).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrPayrollRunNotFound
		}
		return fmt.Errorf("failed to delete payroll run: %w", err)
	}

	return nil
}

// ========== COMPONENTS ==========

const componentColumns = `
	id, payroll_run_id, company_id, type, name, base_amount,
	calculation_method, calculated_amount, is_taxable, is_recurring,
	description, created_at, updated_at
`

func scanComponent(row rowScanner) (payroll.PayrollComponent, error) {
	var c payroll.PayrollComponent
	err := row.Scan(
		&c.ID, &c.PayrollRunID, &c.CompanyID, &c.Type, &c.Name, &c.BaseAmount,
		&c.CalculationMethod, &c.CalculatedAmount, &c.IsTaxable, &c.IsRecurring,
		&c.Description, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *payrollRepository) ListComponents(ctx context.Context, runID, companyID string) ([]payroll.PayrollComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + componentColumns + `
		FROM payroll_components
		WHERE payroll_run_id = $1 AND company_id = $2
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, runID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll components: %w", err)
	}
	defer rows.Close()

	var components []payroll.PayrollComponent
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payroll components: %w", err)
	}

	return components, nil
}

func (r *payrollRepository) CreateComponent(ctx context.Context, component payroll.PayrollComponent) (payroll.PayrollComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_components (
			id, payroll_run_id, company_id, type, name, base_amount,
			calculation_method, calculated_amount, is_taxable, is_recurring, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + componentColumns

	c, err := scanComponent(q.QueryRow(ctx, query,
		component.ID, component.PayrollRunID, component.CompanyID, component.Type, component.Name, component.BaseAmount,
		component.CalculationMethod, component.CalculatedAmount, component.IsTaxable, component.IsRecurring, component.Description,
	))
	if err != nil {
		if isUniqueViolation(err, constraintComponentName) {
			return payroll.PayrollComponent{}, fmt.Errorf("component %q: %w", component.Name, payroll.ErrInternalInconsistency)
		}
		return payroll.PayrollComponent{}, fmt.Errorf("failed to create payroll component: %w", err)
	}

	return c, nil
}

func (r *payrollRepository) UpdateComponent(ctx context.Context, component payroll.PayrollComponent) (payroll.PayrollComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_components SET
			name = $4, base_amount = $5, calculation_method = $6, calculated_amount = $7,
			is_taxable = $8, is_recurring = $9, description = $10, updated_at = NOW()
		WHERE id = $1 AND payroll_run_id = $2 AND company_id = $3
		RETURNING ` + componentColumns

	c, err := scanComponent(q.QueryRow(ctx, query,
		component.ID, component.PayrollRunID, component.CompanyID,
		component.Name, component.BaseAmount, component.CalculationMethod, component.CalculatedAmount,
		component.IsTaxable, component.IsRecurring, component.Description,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollComponent{}, payroll.ErrComponentNotFound
		}
		return payroll.PayrollComponent{}, fmt.Errorf("failed to update payroll component: %w", err)
	}

	return c, nil
}

func (r *payrollRepository) DeleteComponent(ctx context.Context, id, runID, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		DELETE FROM payroll_components
		WHERE id = $1 AND payroll_run_id = $2 AND company_id = $3
		RETURNING id
	`

	var deletedID string
	err := q.QueryRow(ctx, query, id, runID, companyID).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrComponentNotFound
		}
		return fmt.Errorf("failed to delete payroll component: %w", err)
	}

	return nil
}

// ========== AGGREGATIONS ==========

func (r *payrollRepository) SummarizeRuns(ctx context.Context, companyID, periodStart, periodEnd string) (payroll.RunTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) as total_runs,
			COALESCE(SUM(gross_salary), 0) as total_gross,
			COALESCE(SUM(total_deductions), 0) as total_deductions,
			COALESCE(SUM(tax_amount), 0) as total_tax,
			COALESCE(SUM(net_salary), 0) as total_net,
			COUNT(*) FILTER (WHERE status = 'pending') as pending_count,
			COUNT(*) FILTER (WHERE status = 'approved') as approved_count,
			COUNT(*) FILTER (WHERE status = 'paid') as paid_count
		FROM payroll_runs
		WHERE company_id = $1 AND period BETWEEN $2 AND $3
	`

	var t payroll.RunTotals
	err := q.QueryRow(ctx, query, companyID, periodStart, periodEnd).Scan(
		&t.TotalRuns, &t.TotalGross, &t.TotalDeductions, &t.TotalTax, &t.TotalNet,
		&t.PendingCount, &t.ApprovedCount, &t.PaidCount,
	)
	if err != nil {
		return payroll.RunTotals{}, fmt.Errorf("failed to summarize payroll runs: %w", err)
	}

	return t, nil
}

func (r *payrollRepository) SummarizeByPeriod(ctx context.Context, companyID, periodStart, periodEnd string) ([]payroll.PeriodTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			period,
			COUNT(*) as runs,
			COALESCE(SUM(gross_salary), 0) as total_gross,
			COALESCE(SUM(tax_amount), 0) as total_tax,
			COALESCE(SUM(net_salary), 0) as total_net
		FROM payroll_runs
		WHERE company_id = $1 AND period BETWEEN $2 AND $3
		GROUP BY period
		ORDER BY period
	`

	rows, err := q.Query(ctx, query, companyID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payroll periods: %w", err)
	}
	defer rows.Close()

	var periods []payroll.PeriodTotals
	for rows.Next() {
		var p payroll.PeriodTotals
		if err := rows.Scan(&p.Period, &p.Runs, &p.TotalGross, &p.TotalTax, &p.TotalNet); err != nil {
			return nil, fmt.Errorf("failed to scan payroll period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to summarize payroll periods: %w", err)
	}

	return periods, nil
}
