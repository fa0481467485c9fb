package payroll

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc        *PayrollServiceImpl
	payroll    *memPayrollRepo
	employees  *memEmployeeRepo
	attendance *memAttendanceRepo
	leave      *memLeaveRepo
	notifier   *recordingNotifier

	companyID  string
	hrUserID   string
	ownerID    string
	employeeID string
}

var fixedNow = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

// newServiceFixture seeds one company with standard brackets, settings of
// 160 hours / 2x overtime / 30 working days and one active employee earning
// 20000.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		payroll:    newMemPayrollRepo(),
		employees:  &memEmployeeRepo{employees: map[string]employee.Employee{}},
		attendance: &memAttendanceRepo{records: map[string][]attendance.Attendance{}},
		leave:      &memLeaveRepo{requests: map[string][]leave.LeaveRequest{}},
		notifier:   &recordingNotifier{},
		companyID:  newID(),
		hrUserID:   newID(),
		ownerID:    newID(),
	}

	f.payroll.settings[f.companyID] = payroll.PayrollSettings{
		CompanyID:            f.companyID,
		StandardMonthlyHours: dec("160"),
		OvertimeMultiplier:   dec("2"),
		WorkingDaysPerMonth:  30,
	}
	f.payroll.brackets[f.companyID] = standardBrackets()
	f.employeeID = f.addEmployee("Siti Rahma", "20000", employee.EmploymentStatusActive)

	svc := NewPayrollService(
		&memTransactor{repo: f.payroll},
		f.payroll,
		f.employees,
		f.attendance,
		f.leave,
		f.notifier,
		config.PayrollConfig{
			StandardMonthlyHours: dec("173"),
			OvertimeMultiplier:   dec("1.5"),
			BulkConcurrency:      4,
		},
	)
	f.svc = svc.(*PayrollServiceImpl)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *serviceFixture) addEmployee(name, baseSalary string, status employee.EmploymentStatus) string {
	id := newID()
	email := "employee-" + id[:8] + "@example.com"
	e := employee.Employee{
		ID:               id,
		CompanyID:        f.companyID,
		FullName:         name,
		EmploymentStatus: status,
		Email:            &email,
	}
	if baseSalary != "" {
		e.BaseSalary = decPtr(baseSalary)
	}
	f.employees.employees[id] = e
	return id
}

// seedScenarioInputs records two overtime hours and one unpaid leave day in
// June 2025 for the fixture employee.
func (f *serviceFixture) seedScenarioInputs() {
	f.attendance.records[f.employeeID] = []attendance.Attendance{
		{Date: day(2), Status: attendance.StatusPresent, OvertimeMinutes: intPtr(60)},
		{Date: day(3), Status: attendance.StatusPresent, OvertimeMinutes: intPtr(60)},
		{Date: day(4), Status: attendance.StatusLate},
	}
	f.leave.requests[f.employeeID] = []leave.LeaveRequest{
		{StartDate: day(10), EndDate: day(10), TotalDays: dec("1"), Status: leave.LeaveRequestStatusApproved},
	}
}

func (f *serviceFixture) generate(t *testing.T, employeeID string) payroll.PayrollRunResponse {
	t.Helper()
	resp, err := f.svc.Generate(context.Background(), payroll.GeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		EmployeeID:  employeeID,
		Period:      "2025-06",
	})
	require.NoError(t, err)
	return resp
}

func (f *serviceFixture) approve(t *testing.T, runID string) payroll.PayrollRunResponse {
	t.Helper()
	resp, err := f.svc.Approve(context.Background(), payroll.ApprovePayrollRequest{
		CompanyID:  f.companyID,
		RunID:      runID,
		ApproverID: f.ownerID,
	})
	require.NoError(t, err)
	return resp
}

func componentByName(t *testing.T, resp payroll.PayrollRunResponse, name string) payroll.PayrollComponentResponse {
	t.Helper()
	for _, c := range resp.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %q not in response", name)
	return payroll.PayrollComponentResponse{}
}

func assertConsistent(t *testing.T, f *serviceFixture, runID string) {
	t.Helper()
	run, err := f.payroll.GetRunByID(context.Background(), runID, f.companyID)
	require.NoError(t, err)
	components, err := f.payroll.ListComponents(context.Background(), runID, f.companyID)
	require.NoError(t, err)
	assert.NoError(t, VerifyTotals(run, NewLedger(runID, f.companyID, components)))
}

// ===== GENERATE TESTS =====

func TestPayrollService_Generate_Scenario(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()

	// Act
	resp := f.generate(t, f.employeeID)

	// Assert
	assert.True(t, validator.IsValidUUID(resp.ID))
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "2025-06", resp.Period)
	assert.Equal(t, 3, resp.AttendanceDays)
	assert.Equal(t, 30, resp.WorkingDays)
	assert.Equal(t, "20000.00", resp.BaseSalary)
	assert.Equal(t, "20500.00", resp.GrossSalary)
	assert.Equal(t, "500.00", resp.Allowances)
	assert.Equal(t, "50.00", resp.TaxAmount)
	assert.Equal(t, "666.67", resp.Deductions)
	assert.Equal(t, "716.67", resp.TotalDeductions)
	assert.Equal(t, "19783.33", resp.NetSalary)
	assert.Equal(t, 1, resp.Version)

	assert.Len(t, resp.Components, 4)
	assert.Equal(t, "20000.00", componentByName(t, resp, payroll.ComponentBasicSalary).CalculatedAmount)
	assert.Equal(t, "500.00", componentByName(t, resp, payroll.ComponentOvertimePay).CalculatedAmount)
	assert.Equal(t, "666.67", componentByName(t, resp, payroll.ComponentLeaveDeduction).CalculatedAmount)
	assert.Equal(t, "50.00", componentByName(t, resp, payroll.ComponentIncomeTax).CalculatedAmount)

	assertConsistent(t, f, resp.ID)
}

func TestPayrollService_Generate_OverridesSkipStoreReads(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()

	resp, err := f.svc.Generate(context.Background(), payroll.GeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		EmployeeID:  f.employeeID,
		Period:      "2025-06",
		Overrides: &payroll.Overrides{
			AttendanceDays: intPtr(30),
			LeaveDays:      decPtr("0"),
			OvertimeHours:  decPtr("0"),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, f.attendance.calls)
	assert.Equal(t, 0, f.leave.calls)
	assert.Equal(t, "20000.00", resp.GrossSalary)
	// 20000 taxable, first bracket only
	assert.Equal(t, "0.00", resp.TaxAmount)
	assert.Equal(t, "20000.00", resp.NetSalary)
	assert.Len(t, resp.Components, 3, "no leave deduction without leave days")
}

func TestPayrollService_Generate_DefaultSettings(t *testing.T) {
	f := newServiceFixture(t)
	delete(f.payroll.settings, f.companyID)

	resp := f.generate(t, f.employeeID)

	// June 2025 has 21 weekdays
	assert.Equal(t, 21, resp.WorkingDays)
	assert.Equal(t, "20000.00", resp.GrossSalary)
}

func TestPayrollService_Generate_Duplicate(t *testing.T) {
	f := newServiceFixture(t)
	first := f.generate(t, f.employeeID)

	_, err := f.svc.Generate(context.Background(), payroll.GeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		EmployeeID:  f.employeeID,
		Period:      "2025-06",
	})

	var dup *payroll.DuplicateRunError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing.ID)
	assert.ErrorIs(t, err, payroll.ErrDuplicateRun)
	assert.Len(t, f.payroll.runs, 1)
}

func TestPayrollService_Generate_EmployeeErrors(t *testing.T) {
	f := newServiceFixture(t)
	resigned := f.addEmployee("Budi", "15000", employee.EmploymentStatusResigned)
	unpaid := f.addEmployee("Dewi", "", employee.EmploymentStatusActive)

	tests := []struct {
		name       string
		employeeID string
		wantErr    error
	}{
		{"unknown employee", newID(), payroll.ErrEmployeeNotFound},
		{"inactive employee", resigned, payroll.ErrEmployeeNotFound},
		{"no base salary", unpaid, payroll.ErrEmployeeHasNoBaseSalary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Generate(context.Background(), payroll.GeneratePayrollRequest{
				CompanyID:   f.companyID,
				GeneratedBy: f.hrUserID,
				EmployeeID:  tt.employeeID,
				Period:      "2025-06",
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.payroll.runs)
}

func TestPayrollService_Generate_Validation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Generate(context.Background(), payroll.GeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		EmployeeID:  "not-a-uuid",
		Period:      "2025-13",
	})

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Len(t, validationErrs, 2)
}

func TestPayrollService_BulkGenerate_IsolatesFailures(t *testing.T) {
	f := newServiceFixture(t)
	second := f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	resigned := f.addEmployee("Budi", "15000", employee.EmploymentStatusResigned)
	f.generate(t, second)

	resp, err := f.svc.BulkGenerate(context.Background(), payroll.BulkGeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		Period:      "2025-06",
		EmployeeIDs: []string{f.employeeID, second, resigned},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 2, resp.FailureCount)
	assert.Equal(t, f.employeeID, resp.Succeeded[0].EmployeeID)

	kinds := map[string]string{}
	for _, item := range resp.Failed {
		kinds[item.EmployeeID] = item.Kind
	}
	assert.Equal(t, payroll.KindDuplicateRun, kinds[second])
	assert.Equal(t, payroll.KindNotFound, kinds[resigned])
	assert.Len(t, f.payroll.runs, 2)
}

func TestPayrollService_BulkGenerate_AllActive(t *testing.T) {
	f := newServiceFixture(t)
	f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	f.addEmployee("Budi", "15000", employee.EmploymentStatusResigned)

	resp, err := f.svc.BulkGenerate(context.Background(), payroll.BulkGeneratePayrollRequest{
		CompanyID:   f.companyID,
		GeneratedBy: f.hrUserID,
		Period:      "2025-06",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 0, resp.FailureCount)
}

// ===== COMPONENT TESTS =====

func TestPayrollService_AddComponent_Reconciles(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	resp, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "earning",
		Name:       "Performance Bonus",
		BaseAmount: dec("10000"),
		IsTaxable:  true,
	})

	require.NoError(t, err)
	// taxable 30000 -> 1000 tax
	assert.Equal(t, "30000.00", resp.GrossSalary)
	assert.Equal(t, "1000.00", resp.TaxAmount)
	assert.Equal(t, "29000.00", resp.NetSalary)
	assert.Equal(t, "1000.00", componentByName(t, resp, payroll.ComponentIncomeTax).CalculatedAmount)
	assert.Equal(t, run.Version+1, resp.Version)
	assertConsistent(t, f, run.ID)
}

func TestPayrollService_AddComponent_DeductionsExceedGross(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	_, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "deduction",
		Name:       "Loan Repayment",
		BaseAmount: dec("25000"),
	})

	assert.ErrorIs(t, err, payroll.ErrDeductionsExceedGross)
	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))

	// nothing persisted
	stored, getErr := f.svc.GetRun(context.Background(), f.companyID, run.ID)
	require.NoError(t, getErr)
	assert.Len(t, stored.Components, len(run.Components))
	assert.Equal(t, run.NetSalary, stored.NetSalary)
	assert.Equal(t, run.Version, stored.Version)
}

func TestPayrollService_AddComponent_ReservedName(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	_, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "deduction",
		Name:       payroll.ComponentIncomeTax,
		BaseAmount: dec("1"),
	})

	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))
}

func TestPayrollService_UpdateComponent(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	withBonus, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "benefit",
		Name:       "Meal Allowance",
		BaseAmount: dec("400"),
	})
	require.NoError(t, err)
	meal := componentByName(t, withBonus, "Meal Allowance")

	resp, err := f.svc.UpdateComponent(context.Background(), payroll.UpdateComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: meal.ID,
		BaseAmount:  decPtr("600"),
	})

	require.NoError(t, err)
	assert.Equal(t, "20600.00", resp.GrossSalary)
	assert.Equal(t, "20600.00", resp.NetSalary)
	assertConsistent(t, f, run.ID)
}

func TestPayrollService_UpdateComponent_IncomeTaxProtected(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	tax := componentByName(t, run, payroll.ComponentIncomeTax)

	_, err := f.svc.UpdateComponent(context.Background(), payroll.UpdateComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: tax.ID,
		BaseAmount:  decPtr("0"),
	})

	assert.ErrorIs(t, err, payroll.ErrProtectedComponent)
}

func TestPayrollService_DeleteComponent_Protected(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	basic := componentByName(t, run, payroll.ComponentBasicSalary)

	_, err := f.svc.DeleteComponent(context.Background(), payroll.DeleteComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: basic.ID,
	})

	assert.ErrorIs(t, err, payroll.ErrProtectedComponent)
	assert.Equal(t, payroll.KindProtectedComponent, payroll.ErrorKind(err))
}

func TestPayrollService_DeleteComponent_BasicSalaryAfterRecurringFlip(t *testing.T) {
	f := newServiceFixture(t)
	f.payroll.brackets[f.companyID] = nil
	run := f.generate(t, f.employeeID)
	basic := componentByName(t, run, payroll.ComponentBasicSalary)

	notRecurring := false
	_, err := f.svc.UpdateComponent(context.Background(), payroll.UpdateComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: basic.ID,
		IsRecurring: &notRecurring,
	})
	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))

	_, err = f.svc.DeleteComponent(context.Background(), payroll.DeleteComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: basic.ID,
	})
	assert.ErrorIs(t, err, payroll.ErrProtectedComponent)

	current, err := f.svc.GetRun(context.Background(), f.companyID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "20000.00", current.GrossSalary)
	assert.Len(t, current.Components, len(run.Components))
}

func TestPayrollService_UpdateComponent_OvertimeQuantityRequiresRecalculate(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()
	run := f.generate(t, f.employeeID)
	overtime := componentByName(t, run, payroll.ComponentOvertimePay)

	_, err := f.svc.UpdateComponent(context.Background(), payroll.UpdateComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: overtime.ID,
		BaseAmount:  decPtr("3"),
	})
	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))

	three := dec("3")
	resp, err := f.svc.Recalculate(context.Background(), payroll.RecalculatePayrollRequest{
		CompanyID: f.companyID,
		RunID:     run.ID,
		Overrides: &payroll.Overrides{OvertimeHours: &three},
	})
	require.NoError(t, err)
	assert.Equal(t, "3.00", componentByName(t, resp, payroll.ComponentOvertimePay).BaseAmount)
	assert.Equal(t, "750.00", componentByName(t, resp, payroll.ComponentOvertimePay).CalculatedAmount)
	assert.Equal(t, "20750.00", resp.GrossSalary)
	assertConsistent(t, f, run.ID)
}

func TestPayrollService_DeleteComponent(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()
	run := f.generate(t, f.employeeID)
	overtime := componentByName(t, run, payroll.ComponentOvertimePay)

	resp, err := f.svc.DeleteComponent(context.Background(), payroll.DeleteComponentRequest{
		CompanyID:   f.companyID,
		RunID:       run.ID,
		ComponentID: overtime.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, "20000.00", resp.GrossSalary)
	assert.Equal(t, "0.00", resp.TaxAmount)
	assert.Equal(t, "19333.33", resp.NetSalary)
	assertConsistent(t, f, run.ID)
}

func TestPayrollService_MutationsRequirePending(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	f.approve(t, run.ID)

	_, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "earning",
		Name:       "Late Bonus",
		BaseAmount: dec("1"),
	})
	assert.ErrorIs(t, err, payroll.ErrRunNotPending)

	_, err = f.svc.Recalculate(context.Background(), payroll.RecalculatePayrollRequest{
		CompanyID: f.companyID,
		RunID:     run.ID,
	})
	assert.ErrorIs(t, err, payroll.ErrRunNotPending)
	assert.Equal(t, payroll.KindInvalidState, payroll.ErrorKind(err))
}

// ===== RECALCULATE TESTS =====

func TestPayrollService_Recalculate_Idempotent(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()
	run := f.generate(t, f.employeeID)

	first, err := f.svc.Recalculate(context.Background(), payroll.RecalculatePayrollRequest{CompanyID: f.companyID, RunID: run.ID})
	require.NoError(t, err)
	second, err := f.svc.Recalculate(context.Background(), payroll.RecalculatePayrollRequest{CompanyID: f.companyID, RunID: run.ID})
	require.NoError(t, err)

	for _, resp := range []payroll.PayrollRunResponse{first, second} {
		assert.Equal(t, run.GrossSalary, resp.GrossSalary)
		assert.Equal(t, run.TaxAmount, resp.TaxAmount)
		assert.Equal(t, run.NetSalary, resp.NetSalary)
		assert.Len(t, resp.Components, len(run.Components))
	}
}

func TestPayrollService_Recalculate_OverridesKeepCustomComponents(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()
	run := f.generate(t, f.employeeID)
	_, err := f.svc.AddComponent(context.Background(), payroll.AddComponentRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		Type:       "benefit",
		Name:       "Meal Allowance",
		BaseAmount: dec("400"),
	})
	require.NoError(t, err)

	method := "bank_transfer"
	resp, err := f.svc.Recalculate(context.Background(), payroll.RecalculatePayrollRequest{
		CompanyID: f.companyID,
		RunID:     run.ID,
		Overrides: &payroll.Overrides{
			LeaveDays:     decPtr("0"),
			OvertimeHours: decPtr("4"),
			PaymentMethod: &method,
		},
	})

	require.NoError(t, err)
	// 20000 + 1000 overtime + 400 meal, taxable 21000 -> 100 tax
	assert.Equal(t, "21400.00", resp.GrossSalary)
	assert.Equal(t, "100.00", resp.TaxAmount)
	assert.Equal(t, "21300.00", resp.NetSalary)
	assert.Equal(t, "0", resp.LeaveDays)
	assert.Equal(t, &method, resp.PaymentMethod)
	componentByName(t, resp, "Meal Allowance")
	for _, c := range resp.Components {
		assert.NotEqual(t, payroll.ComponentLeaveDeduction, c.Name)
	}
	assertConsistent(t, f, run.ID)
}

// ===== WORKFLOW TESTS =====

func TestPayrollService_Approve_SendsPayslip(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	resp := f.approve(t, run.ID)

	assert.Equal(t, "approved", resp.Status)
	require.NotNil(t, resp.ApprovedBy)
	assert.Equal(t, f.ownerID, *resp.ApprovedBy)
	require.NotNil(t, resp.ApprovedAt)
	assert.Equal(t, fixedNow.Format(time.RFC3339), *resp.ApprovedAt)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, *f.employees.employees[f.employeeID].Email, sent[0].Recipient)
	assert.Equal(t, "2025-06", sent[0].Period)
	assert.Equal(t, resp.NetSalary, sent[0].Payslip.NetSalary)
}

func TestPayrollService_Approve_NotificationFailureKeepsApproval(t *testing.T) {
	f := newServiceFixture(t)
	f.notifier.err = errSMTPDown
	run := f.generate(t, f.employeeID)

	resp := f.approve(t, run.ID)

	assert.Equal(t, "approved", resp.Status)
	stored, err := f.payroll.GetRunByID(context.Background(), run.ID, f.companyID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayrollStatusApproved, stored.Status)
}

func TestPayrollService_Approve_SelfApproval(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	_, err := f.svc.Approve(context.Background(), payroll.ApprovePayrollRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		ApproverID: f.hrUserID,
	})

	assert.ErrorIs(t, err, payroll.ErrSelfApproval)
	assert.Equal(t, payroll.KindSelfApproval, payroll.ErrorKind(err))
	assert.Empty(t, f.notifier.sent())
}

func TestPayrollService_Approve_Twice(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	f.approve(t, run.ID)

	_, err := f.svc.Approve(context.Background(), payroll.ApprovePayrollRequest{
		CompanyID:  f.companyID,
		RunID:      run.ID,
		ApproverID: f.ownerID,
	})

	assert.ErrorIs(t, err, payroll.ErrRunNotPending)
}

func TestPayrollService_MarkPaid(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)
	req := payroll.MarkPaidRequest{CompanyID: f.companyID, RunID: run.ID, PaymentDate: "2025-07-05"}

	// pending runs cannot be paid
	_, err := f.svc.MarkPaid(context.Background(), req)
	assert.ErrorIs(t, err, payroll.ErrRunNotApproved)

	f.approve(t, run.ID)
	paid, err := f.svc.MarkPaid(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, "2025-07-05", *paid.PaymentDate)

	_, err = f.svc.MarkPaid(context.Background(), req)
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyPaid)
	assert.Equal(t, payroll.KindAlreadyPaid, payroll.ErrorKind(err))
}

func TestPayrollService_MarkPaid_RequiresDate(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.MarkPaid(context.Background(), payroll.MarkPaidRequest{CompanyID: f.companyID, RunID: newID()})

	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))
}

func TestPayrollService_BulkMarkPaid(t *testing.T) {
	f := newServiceFixture(t)
	second := f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	approved := f.generate(t, f.employeeID)
	f.approve(t, approved.ID)
	pending := f.generate(t, second)
	missing := newID()

	resp, err := f.svc.BulkMarkPaid(context.Background(), payroll.BulkMarkPaidRequest{
		CompanyID:   f.companyID,
		RunIDs:      []string{approved.ID, pending.ID, missing},
		PaymentDate: "2025-07-05",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 2, resp.FailureCount)
	assert.Equal(t, approved.ID, resp.Paid[0].ID)

	kinds := map[string]string{}
	for _, item := range resp.Failed {
		kinds[item.RunID] = item.Kind
	}
	assert.Equal(t, payroll.KindInvalidState, kinds[pending.ID])
	assert.Equal(t, payroll.KindNotFound, kinds[missing])
}

func TestPayrollService_DeleteRun(t *testing.T) {
	f := newServiceFixture(t)
	second := f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	pending := f.generate(t, f.employeeID)
	approved := f.generate(t, second)
	f.approve(t, approved.ID)

	require.NoError(t, f.svc.DeleteRun(context.Background(), f.companyID, pending.ID))
	_, err := f.svc.GetRun(context.Background(), f.companyID, pending.ID)
	assert.ErrorIs(t, err, payroll.ErrPayrollRunNotFound)

	err = f.svc.DeleteRun(context.Background(), f.companyID, approved.ID)
	assert.ErrorIs(t, err, payroll.ErrRunNotPending)
}

// ===== QUERY TESTS =====

func TestPayrollService_GetRun_OtherCompany(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	_, err := f.svc.GetRun(context.Background(), newID(), run.ID)

	assert.ErrorIs(t, err, payroll.ErrPayrollRunNotFound)
}

func TestPayrollService_ListRuns(t *testing.T) {
	f := newServiceFixture(t)
	second := f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	first := f.generate(t, f.employeeID)
	f.generate(t, second)
	f.approve(t, first.ID)

	status := "approved"
	resp, err := f.svc.ListRuns(context.Background(), f.companyID, payroll.PayrollFilter{Status: &status})

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalCount)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, first.ID, resp.Data[0].ID)

	bad := "archived"
	_, err = f.svc.ListRuns(context.Background(), f.companyID, payroll.PayrollFilter{Status: &bad})
	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))
}

func TestPayrollService_Summary(t *testing.T) {
	f := newServiceFixture(t)
	f.seedScenarioInputs()
	second := f.addEmployee("Andi", "10000", employee.EmploymentStatusActive)
	first := f.generate(t, f.employeeID)
	f.generate(t, second)
	f.approve(t, first.ID)

	resp, err := f.svc.Summary(context.Background(), payroll.PayrollSummaryRequest{
		CompanyID:   f.companyID,
		PeriodStart: "2025-01",
		PeriodEnd:   "2025-12",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalRuns)
	assert.Equal(t, "30500.00", resp.TotalGrossSalary)
	assert.Equal(t, "50.00", resp.TotalTax)
	assert.Equal(t, "29783.33", resp.TotalNetSalary)
	assert.Equal(t, 1, resp.PendingCount)
	assert.Equal(t, 1, resp.ApprovedCount)
	require.Len(t, resp.Periods, 1)
	assert.Equal(t, "2025-06", resp.Periods[0].Period)
	assert.Equal(t, 2, resp.Periods[0].Runs)
}

func TestPayrollService_Summary_InvalidRange(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Summary(context.Background(), payroll.PayrollSummaryRequest{
		CompanyID:   f.companyID,
		PeriodStart: "2025-06",
		PeriodEnd:   "2025-01",
	})

	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))
}

func TestPayrollService_RenderPayslip(t *testing.T) {
	f := newServiceFixture(t)
	run := f.generate(t, f.employeeID)

	_, _, err := f.svc.RenderPayslip(context.Background(), f.companyID, run.ID)
	assert.ErrorIs(t, err, payroll.ErrRunNotApproved)

	f.approve(t, run.ID)
	filename, pdf, err := f.svc.RenderPayslip(context.Background(), f.companyID, run.ID)

	require.NoError(t, err)
	assert.Equal(t, "payslip-2025-06-"+run.ID+".pdf", filename)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

// ===== SETTINGS TESTS =====

func TestPayrollService_Settings(t *testing.T) {
	f := newServiceFixture(t)
	otherCompany := newID()

	defaults, err := f.svc.GetSettings(context.Background(), otherCompany)
	require.NoError(t, err)
	assert.False(t, defaults.ProrateByAttendance)
	assert.Equal(t, "173", defaults.StandardMonthlyHours)
	assert.Equal(t, "1.5", defaults.OvertimeMultiplier)

	prorate := true
	updated, err := f.svc.UpdateSettings(context.Background(), payroll.UpdatePayrollSettingsRequest{
		CompanyID:           otherCompany,
		ProrateByAttendance: &prorate,
	})
	require.NoError(t, err)
	assert.True(t, updated.ProrateByAttendance)
	assert.Equal(t, "173", updated.StandardMonthlyHours)

	zero := decimal.Zero
	_, err = f.svc.UpdateSettings(context.Background(), payroll.UpdatePayrollSettingsRequest{
		CompanyID:            otherCompany,
		StandardMonthlyHours: &zero,
	})
	assert.Equal(t, payroll.KindValidation, payroll.ErrorKind(err))
}

func TestPayrollService_ReplaceTaxBrackets(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.svc.ReplaceTaxBrackets(context.Background(), payroll.ReplaceTaxBracketsRequest{
		CompanyID: f.companyID,
		Brackets: []payroll.TaxBracketRequest{
			{Lower: dec("0"), Upper: decPtr("10000"), Rate: dec("0")},
			{Lower: dec("10000"), Rate: dec("0.05")},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Brackets, 2)
	assert.Nil(t, resp.Brackets[1].Upper)

	run := f.generate(t, f.employeeID)
	assert.Equal(t, "500.00", run.TaxAmount)

	_, err = f.svc.ReplaceTaxBrackets(context.Background(), payroll.ReplaceTaxBracketsRequest{
		CompanyID: f.companyID,
		Brackets: []payroll.TaxBracketRequest{
			{Lower: dec("5"), Rate: dec("0.05")},
		},
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidTaxBrackets)
}
