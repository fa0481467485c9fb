package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// memPayrollRepo is an in-memory PayrollRepository. Transactions are
// emulated by memTransactor through snapshot and restore.
type memPayrollRepo struct {
	mu         sync.Mutex
	settings   map[string]payroll.PayrollSettings
	brackets   map[string][]payroll.TaxBracket
	runs       map[string]payroll.PayrollRun
	components map[string][]payroll.PayrollComponent // by run ID
}

func newMemPayrollRepo() *memPayrollRepo {
	return &memPayrollRepo{
		settings:   map[string]payroll.PayrollSettings{},
		brackets:   map[string][]payroll.TaxBracket{},
		runs:       map[string]payroll.PayrollRun{},
		components: map[string][]payroll.PayrollComponent{},
	}
}

type memSnapshot struct {
	settings   map[string]payroll.PayrollSettings
	brackets   map[string][]payroll.TaxBracket
	runs       map[string]payroll.PayrollRun
	components map[string][]payroll.PayrollComponent
}

func (r *memPayrollRepo) snapshot() memSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := memSnapshot{
		settings:   map[string]payroll.PayrollSettings{},
		brackets:   map[string][]payroll.TaxBracket{},
		runs:       map[string]payroll.PayrollRun{},
		components: map[string][]payroll.PayrollComponent{},
	}
	for k, v := range r.settings {
		s.settings[k] = v
	}
	for k, v := range r.brackets {
		s.brackets[k] = append([]payroll.TaxBracket(nil), v...)
	}
	for k, v := range r.runs {
		s.runs[k] = v
	}
	for k, v := range r.components {
		s.components[k] = append([]payroll.PayrollComponent(nil), v...)
	}
	return s
}

func (r *memPayrollRepo) restore(s memSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings, r.brackets, r.runs, r.components = s.settings, s.brackets, s.runs, s.components
}

func (r *memPayrollRepo) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[companyID]
	if !ok {
		return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
	}
	return s, nil
}

func (r *memPayrollRepo) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings.UpdatedAt = time.Now()
	r.settings[settings.CompanyID] = settings
	return settings, nil
}

func (r *memPayrollRepo) GetTaxBrackets(ctx context.Context, companyID string) ([]payroll.TaxBracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payroll.TaxBracket(nil), r.brackets[companyID]...), nil
}

func (r *memPayrollRepo) ReplaceTaxBrackets(ctx context.Context, companyID string, brackets []payroll.TaxBracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brackets[companyID] = append([]payroll.TaxBracket(nil), brackets...)
	return nil
}

func (r *memPayrollRepo) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.runs {
		if existing.EmployeeID == run.EmployeeID && existing.Period == run.Period {
			return payroll.PayrollRun{}, payroll.ErrDuplicateRun
		}
	}
	run.Version = 1
	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	r.runs[run.ID] = run
	return run, nil
}

func (r *memPayrollRepo) getRun(id, companyID string) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.CompanyID != companyID {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	return run, nil
}

func (r *memPayrollRepo) GetRunByID(ctx context.Context, id, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(id, companyID)
}

func (r *memPayrollRepo) GetRunForUpdate(ctx context.Context, id, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(id, companyID)
}

func (r *memPayrollRepo) GetRunByEmployeePeriod(ctx context.Context, employeeID, period, companyID string) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.EmployeeID == employeeID && run.Period == period && run.CompanyID == companyID {
			return run, nil
		}
	}
	return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
}

func (r *memPayrollRepo) ListRuns(ctx context.Context, companyID string, filter payroll.PayrollFilter) ([]payroll.PayrollRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []payroll.PayrollRun
	for _, run := range r.runs {
		if run.CompanyID != companyID {
			continue
		}
		if filter.Period != nil && run.Period != *filter.Period {
			continue
		}
		if filter.Status != nil && string(run.Status) != *filter.Status {
			continue
		}
		if filter.EmployeeID != nil && run.EmployeeID != *filter.EmployeeID {
			continue
		}
		matched = append(matched, run)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Period != matched[j].Period {
			return matched[i].Period > matched[j].Period
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	offset := (filter.Page - 1) * filter.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memPayrollRepo) UpdateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.runs[run.ID]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	if stored.Version != run.Version {
		return payroll.PayrollRun{}, payroll.ErrConcurrentModification
	}
	run.Version++
	run.UpdatedAt = time.Now()
	r.runs[run.ID] = run
	return run, nil
}

func (r *memPayrollRepo) DeleteRun(ctx context.Context, id, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; !ok || run.CompanyID != companyID {
		return payroll.ErrPayrollRunNotFound
	}
	delete(r.runs, id)
	delete(r.components, id)
	return nil
}

func (r *memPayrollRepo) ListComponents(ctx context.Context, runID, companyID string) ([]payroll.PayrollComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payroll.PayrollComponent(nil), r.components[runID]...), nil
}

func (r *memPayrollRepo) CreateComponent(ctx context.Context, c payroll.PayrollComponent) (payroll.PayrollComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.components[c.PayrollRunID] = append(r.components[c.PayrollRunID], c)
	return c, nil
}

func (r *memPayrollRepo) UpdateComponent(ctx context.Context, c payroll.PayrollComponent) (payroll.PayrollComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.components[c.PayrollRunID]
	for i := range list {
		if list[i].ID == c.ID {
			c.UpdatedAt = time.Now()
			list[i] = c
			return c, nil
		}
	}
	return payroll.PayrollComponent{}, payroll.ErrComponentNotFound
}

func (r *memPayrollRepo) DeleteComponent(ctx context.Context, id, runID, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.components[runID]
	for i := range list {
		if list[i].ID == id {
			r.components[runID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return payroll.ErrComponentNotFound
}

func (r *memPayrollRepo) SummarizeRuns(ctx context.Context, companyID, periodStart, periodEnd string) (payroll.RunTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var totals payroll.RunTotals
	for _, run := range r.runs {
		if run.CompanyID != companyID || run.Period < periodStart || run.Period > periodEnd {
			continue
		}
		totals.TotalRuns++
		totals.TotalGross = totals.TotalGross.Add(run.GrossSalary)
		totals.TotalDeductions = totals.TotalDeductions.Add(run.TotalDeductions)
		totals.TotalTax = totals.TotalTax.Add(run.TaxAmount)
		totals.TotalNet = totals.TotalNet.Add(run.NetSalary)
		switch run.Status {
		case payroll.PayrollStatusPending:
			totals.PendingCount++
		case payroll.PayrollStatusApproved:
			totals.ApprovedCount++
		case payroll.PayrollStatusPaid:
			totals.PaidCount++
		}
	}
	return totals, nil
}

func (r *memPayrollRepo) SummarizeByPeriod(ctx context.Context, companyID, periodStart, periodEnd string) ([]payroll.PeriodTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPeriod := map[string]payroll.PeriodTotals{}
	for _, run := range r.runs {
		if run.CompanyID != companyID || run.Period < periodStart || run.Period > periodEnd {
			continue
		}
		p := byPeriod[run.Period]
		p.Period = run.Period
		p.Runs++
		p.TotalGross = p.TotalGross.Add(run.GrossSalary)
		p.TotalTax = p.TotalTax.Add(run.TaxAmount)
		p.TotalNet = p.TotalNet.Add(run.NetSalary)
		byPeriod[run.Period] = p
	}
	out := make([]payroll.PeriodTotals, 0, len(byPeriod))
	for _, p := range byPeriod {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// memTransactor serializes transactions and rolls the repo back when fn
// fails.
type memTransactor struct {
	mu   sync.Mutex
	repo *memPayrollRepo
}

type inTxKey struct{}

func (t *memTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.repo.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		t.repo.restore(snap)
		return err
	}
	return nil
}

type memEmployeeRepo struct {
	employees map[string]employee.Employee
}

func (r *memEmployeeRepo) GetByID(ctx context.Context, id, companyID string) (employee.Employee, error) {
	e, ok := r.employees[id]
	if !ok || e.CompanyID != companyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *memEmployeeRepo) ListActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range r.employees {
		if e.CompanyID == companyID && e.IsActive() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAttendanceRepo struct {
	mu      sync.Mutex
	records map[string][]attendance.Attendance // by employee ID
	calls   int
}

func (r *memAttendanceRepo) ListByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var out []attendance.Attendance
	for _, a := range r.records[employeeID] {
		if !a.Date.Before(start) && a.Date.Before(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

type memLeaveRepo struct {
	mu       sync.Mutex
	requests map[string][]leave.LeaveRequest // by employee ID
	calls    int
}

func (r *memLeaveRepo) ListApprovedByEmployeeAndRange(ctx context.Context, employeeID, companyID string, start, end time.Time) ([]leave.LeaveRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var out []leave.LeaveRequest
	for _, l := range r.requests[employeeID] {
		if l.Status == leave.LeaveRequestStatusApproved && l.StartDate.Before(end) && !l.EndDate.Before(start) {
			out = append(out, l)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []payroll.PayslipNotice
	err     error
}

func (n *recordingNotifier) NotifyPayslip(ctx context.Context, notice payroll.PayslipNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []payroll.PayslipNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]payroll.PayslipNotice(nil), n.notices...)
}

var errSMTPDown = errors.New("smtp unavailable")
