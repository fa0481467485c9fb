package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// Reconcile re-derives the run totals from ledger and brings the Income Tax
// component in line with the taxable subtotal. The returned run is a copy;
// nothing is persisted.
func Reconcile(run payroll.PayrollRun, ledger *Ledger, brackets []payroll.TaxBracket) (payroll.PayrollRun, error) {
	if run.Status != payroll.PayrollStatusPending {
		return run, fmt.Errorf("%w: reconcile needs a pending run, got %s", payroll.ErrRunNotPending, run.Status)
	}

	tax, err := ProgressiveTax(brackets, ledger.TaxableSubtotal())
	if err != nil {
		return run, err
	}
	ledger.SetTax(tax)

	gross := ledger.Subtotal(payroll.ComponentTypeEarning).Add(ledger.Subtotal(payroll.ComponentTypeBenefit))
	other := ledger.Subtotal(payroll.ComponentTypeDeduction).Sub(tax)
	net := gross.Sub(other).Sub(tax)

	if gross.IsNegative() || other.IsNegative() || net.IsNegative() {
		return run, fmt.Errorf("%w: gross %s, deductions %s, tax %s, net %s",
			payroll.ErrNegativeAmount, payroll.Money(gross), payroll.Money(other), payroll.Money(tax), payroll.Money(net))
	}

	run.GrossSalary = gross
	run.Deductions = other
	run.TaxAmount = tax
	run.TotalDeductions = other.Add(tax)
	run.NetSalary = net
	run.Allowances = gross.Sub(ledger.BasicSalary())
	if run.Allowances.IsNegative() {
		run.Allowances = decimal.Zero
	}
	return run, nil
}

// VerifyTotals checks the run totals against its components.
func VerifyTotals(run payroll.PayrollRun, ledger *Ledger) error {
	gross := ledger.Subtotal(payroll.ComponentTypeEarning).Add(ledger.Subtotal(payroll.ComponentTypeBenefit))
	deductions := ledger.Subtotal(payroll.ComponentTypeDeduction)

	fail := func(detail string) error {
		return &payroll.InternalInconsistencyError{
			RunID:      run.ID,
			EmployeeID: run.EmployeeID,
			Period:     run.Period,
			Detail:     detail,
		}
	}

	if !run.GrossSalary.Equal(gross) {
		return fail(fmt.Sprintf("gross %s does not match components %s", payroll.Money(run.GrossSalary), payroll.Money(gross)))
	}
	if !run.TotalDeductions.Equal(deductions) {
		return fail(fmt.Sprintf("total deductions %s does not match components %s", payroll.Money(run.TotalDeductions), payroll.Money(deductions)))
	}
	if !run.NetSalary.Equal(gross.Sub(deductions)) {
		return fail(fmt.Sprintf("net %s does not equal gross minus deductions %s", payroll.Money(run.NetSalary), payroll.Money(gross.Sub(deductions))))
	}
	tax, ok := ledger.TaxComponent()
	if ok && !tax.CalculatedAmount.Equal(run.TaxAmount) {
		return fail(fmt.Sprintf("tax %s does not match income tax component %s", payroll.Money(run.TaxAmount), payroll.Money(tax.CalculatedAmount)))
	}
	for _, c := range ledger.Components() {
		if c.CalculatedAmount.IsNegative() {
			return fail(fmt.Sprintf("component %q is negative", c.Name))
		}
	}
	return nil
}
