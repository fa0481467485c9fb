package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComponentSpec describes a component to add to a run.
type ComponentSpec struct {
	Type              payroll.ComponentType
	Name              string
	BaseAmount        decimal.Decimal
	CalculationMethod payroll.CalculationMethod // empty = fixed
	CalculatedAmount  *decimal.Decimal          // formula and custom methods
	IsTaxable         bool
	IsRecurring       bool
	Description       *string
}

// ComponentPatch holds the fields to change on an existing component.
type ComponentPatch struct {
	Name              *string
	BaseAmount        *decimal.Decimal
	CalculationMethod *payroll.CalculationMethod
	CalculatedAmount  *decimal.Decimal
	IsTaxable         *bool
	IsRecurring       *bool
	Description       *string
}

// Ledger is the component set of a single payroll run. It never touches
// storage; callers persist what it returns.
type Ledger struct {
	runID      string
	companyID  string
	components []payroll.PayrollComponent
	newID      func() string
}

func NewLedger(runID, companyID string, components []payroll.PayrollComponent) *Ledger {
	l := &Ledger{runID: runID, companyID: companyID, newID: newID}
	l.components = append(l.components, components...)
	return l
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Components returns a copy of the current component set.
func (l *Ledger) Components() []payroll.PayrollComponent {
	out := make([]payroll.PayrollComponent, len(l.components))
	copy(out, l.components)
	return out
}

func (l *Ledger) Len() int { return len(l.components) }

// Subtotal sums calculated amounts of components of type t.
func (l *Ledger) Subtotal(t payroll.ComponentType) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range l.components {
		if c.Type == t {
			sum = sum.Add(c.CalculatedAmount)
		}
	}
	return sum
}

// TaxableSubtotal sums taxable components with the sign implied by their
// type, floored at zero.
func (l *Ledger) TaxableSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range l.components {
		if !c.IsTaxable {
			continue
		}
		if c.Type == payroll.ComponentTypeDeduction {
			sum = sum.Sub(c.CalculatedAmount)
		} else {
			sum = sum.Add(c.CalculatedAmount)
		}
	}
	if sum.IsNegative() {
		return decimal.Zero
	}
	return sum
}

// Find returns the component with the given name.
func (l *Ledger) Find(name string) (payroll.PayrollComponent, bool) {
	for _, c := range l.components {
		if c.Name == name {
			return c, true
		}
	}
	return payroll.PayrollComponent{}, false
}

func (l *Ledger) index(id string) int {
	for i, c := range l.components {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// BasicSalary returns the calculated Basic Salary amount, zero if absent.
func (l *Ledger) BasicSalary() decimal.Decimal {
	c, ok := l.Find(payroll.ComponentBasicSalary)
	if !ok {
		return decimal.Zero
	}
	return c.CalculatedAmount
}

// resolveAmount computes the calculated amount of a component.
func resolveAmount(method payroll.CalculationMethod, base decimal.Decimal, calculated *decimal.Decimal, basicSalary decimal.Decimal) decimal.Decimal {
	switch method {
	case payroll.CalculationMethodPercentage:
		return basicSalary.Mul(base).Div(decimal.NewFromInt(100)).Round(2)
	case payroll.CalculationMethodFormula, payroll.CalculationMethodCustom:
		if calculated != nil {
			return calculated.Round(2)
		}
	}
	return base.Round(2)
}

func validateSpec(spec ComponentSpec) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if !spec.Type.Valid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "must be 'earning', 'deduction' or 'benefit'"})
	}
	if validator.IsEmpty(spec.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "is required"})
	}
	if !spec.CalculationMethod.Valid() {
		errs = append(errs, validator.ValidationError{Field: "calculation_method", Message: "must be 'fixed', 'percentage', 'formula' or 'custom'"})
	}
	if spec.BaseAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "base_amount", Message: "must be non-negative"})
	}
	if spec.CalculatedAmount != nil && spec.CalculatedAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "calculated_amount", Message: "must be non-negative"})
	}
	return errs
}

// Add appends a custom component. Standard component names are reserved.
func (l *Ledger) Add(spec ComponentSpec) (payroll.PayrollComponent, error) {
	if spec.CalculationMethod == "" {
		spec.CalculationMethod = payroll.CalculationMethodFixed
	}
	errs := validateSpec(spec)
	if payroll.IsStandardComponentName(spec.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: fmt.Sprintf("%q is reserved", spec.Name)})
	} else if _, exists := l.Find(spec.Name); exists {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "already exists on this payroll run"})
	}
	if len(errs) > 0 {
		return payroll.PayrollComponent{}, errs
	}

	c := payroll.PayrollComponent{
		ID:                l.newID(),
		PayrollRunID:      l.runID,
		CompanyID:         l.companyID,
		Type:              spec.Type,
		Name:              spec.Name,
		BaseAmount:        spec.BaseAmount.Round(2),
		CalculationMethod: spec.CalculationMethod,
		CalculatedAmount:  resolveAmount(spec.CalculationMethod, spec.BaseAmount, spec.CalculatedAmount, l.BasicSalary()),
		IsTaxable:         spec.IsTaxable,
		IsRecurring:       spec.IsRecurring,
		Description:       spec.Description,
	}
	l.components = append(l.components, c)
	return c, nil
}

// isQuantityComponent reports whether the generator stores a quantity in the
// component's base amount.
func isQuantityComponent(name string) bool {
	return name == payroll.ComponentOvertimePay || name == payroll.ComponentLeaveDeduction
}

// Update applies patch to the component with the given id.
func (l *Ledger) Update(id string, patch ComponentPatch) (payroll.PayrollComponent, error) {
	i := l.index(id)
	if i < 0 {
		return payroll.PayrollComponent{}, payroll.ErrComponentNotFound
	}
	c := l.components[i]

	if c.Name == payroll.ComponentIncomeTax {
		return payroll.PayrollComponent{}, fmt.Errorf("%w: income tax is derived from the taxable subtotal", payroll.ErrProtectedComponent)
	}

	var errs validator.ValidationErrors
	if patch.Name != nil && *patch.Name != c.Name {
		switch {
		case payroll.IsStandardComponentName(c.Name):
			errs = append(errs, validator.ValidationError{Field: "name", Message: "standard components cannot be renamed"})
		case payroll.IsStandardComponentName(*patch.Name):
			errs = append(errs, validator.ValidationError{Field: "name", Message: fmt.Sprintf("%q is reserved", *patch.Name)})
		default:
			if _, exists := l.Find(*patch.Name); exists {
				errs = append(errs, validator.ValidationError{Field: "name", Message: "already exists on this payroll run"})
			}
		}
	}
	if payroll.IsStandardComponentName(c.Name) {
		if patch.IsRecurring != nil && *patch.IsRecurring != c.IsRecurring {
			errs = append(errs, validator.ValidationError{Field: "is_recurring", Message: "cannot be changed on standard components"})
		}
	}
	if isQuantityComponent(c.Name) {
		// base_amount holds hours or days, not money
		if patch.BaseAmount != nil && !patch.BaseAmount.Round(2).Equal(c.BaseAmount) {
			errs = append(errs, validator.ValidationError{Field: "base_amount", Message: "holds a generated quantity; use recalculate with overrides"})
		}
		if patch.CalculationMethod != nil && *patch.CalculationMethod != c.CalculationMethod {
			errs = append(errs, validator.ValidationError{Field: "calculation_method", Message: "cannot be changed on standard components"})
		}
	}
	if len(errs) > 0 {
		return payroll.PayrollComponent{}, errs
	}

	spec := ComponentSpec{
		Type:              c.Type,
		Name:              c.Name,
		BaseAmount:        c.BaseAmount,
		CalculationMethod: c.CalculationMethod,
		IsTaxable:         c.IsTaxable,
		IsRecurring:       c.IsRecurring,
		Description:       c.Description,
	}
	if patch.Name != nil {
		spec.Name = *patch.Name
	}
	if patch.BaseAmount != nil {
		spec.BaseAmount = *patch.BaseAmount
	}
	if patch.CalculationMethod != nil {
		spec.CalculationMethod = *patch.CalculationMethod
	}
	if patch.IsTaxable != nil {
		spec.IsTaxable = *patch.IsTaxable
	}
	if patch.IsRecurring != nil {
		spec.IsRecurring = *patch.IsRecurring
	}
	if patch.Description != nil {
		spec.Description = patch.Description
	}
	spec.CalculatedAmount = patch.CalculatedAmount
	if spec.CalculatedAmount == nil && (patch.BaseAmount == nil || isQuantityComponent(c.Name)) {
		// keep a previously supplied custom amount
		existing := c.CalculatedAmount
		spec.CalculatedAmount = &existing
	}

	if errs := validateSpec(spec); len(errs) > 0 {
		return payroll.PayrollComponent{}, errs
	}

	basic := l.BasicSalary()
	if c.Name == payroll.ComponentBasicSalary {
		basic = decimal.Zero
	}
	c.Name = spec.Name
	c.BaseAmount = spec.BaseAmount.Round(2)
	c.CalculationMethod = spec.CalculationMethod
	c.CalculatedAmount = resolveAmount(spec.CalculationMethod, spec.BaseAmount, spec.CalculatedAmount, basic)
	c.IsTaxable = spec.IsTaxable
	c.IsRecurring = spec.IsRecurring
	c.Description = spec.Description

	l.components[i] = c
	return c, nil
}

// Remove deletes the component with the given id. Protected recurring
// components are refused.
func (l *Ledger) Remove(id string) (payroll.PayrollComponent, error) {
	i := l.index(id)
	if i < 0 {
		return payroll.PayrollComponent{}, payroll.ErrComponentNotFound
	}
	c := l.components[i]
	if c.IsProtected() {
		return payroll.PayrollComponent{}, fmt.Errorf("%w: %q cannot be deleted", payroll.ErrProtectedComponent, c.Name)
	}
	l.components = append(l.components[:i], l.components[i+1:]...)
	return c, nil
}

// TaxComponent returns the Income Tax component if present.
func (l *Ledger) TaxComponent() (payroll.PayrollComponent, bool) {
	return l.Find(payroll.ComponentIncomeTax)
}

// SetTax updates the Income Tax component, creating it when missing, and
// reports whether it was created.
func (l *Ledger) SetTax(amount decimal.Decimal) (payroll.PayrollComponent, bool) {
	amount = amount.Round(2)
	for i, c := range l.components {
		if c.Name == payroll.ComponentIncomeTax {
			c.BaseAmount = amount
			c.CalculatedAmount = amount
			l.components[i] = c
			return c, false
		}
	}
	c := payroll.PayrollComponent{
		ID:                l.newID(),
		PayrollRunID:      l.runID,
		CompanyID:         l.companyID,
		Type:              payroll.ComponentTypeDeduction,
		Name:              payroll.ComponentIncomeTax,
		BaseAmount:        amount,
		CalculationMethod: payroll.CalculationMethodCustom,
		CalculatedAmount:  amount,
		IsTaxable:         false,
		IsRecurring:       true,
	}
	l.components = append(l.components, c)
	return c, true
}

// StandardDiff lists persistence work produced by ApplyStandard.
type StandardDiff struct {
	Created []payroll.PayrollComponent
	Updated []payroll.PayrollComponent
	Removed []payroll.PayrollComponent
}

// ApplyStandard replaces the generator-owned components (everything but
// Income Tax) with standard, keeping existing IDs. A standard component
// absent from standard is removed.
func (l *Ledger) ApplyStandard(standard []payroll.PayrollComponent) StandardDiff {
	var diff StandardDiff
	wanted := make(map[string]payroll.PayrollComponent, len(standard))
	for _, s := range standard {
		wanted[s.Name] = s
	}

	kept := l.components[:0]
	for _, c := range l.components {
		if !payroll.IsStandardComponentName(c.Name) || c.Name == payroll.ComponentIncomeTax {
			kept = append(kept, c)
			continue
		}
		s, ok := wanted[c.Name]
		if !ok {
			diff.Removed = append(diff.Removed, c)
			continue
		}
		delete(wanted, c.Name)
		if !c.CalculatedAmount.Equal(s.CalculatedAmount) || !c.BaseAmount.Equal(s.BaseAmount) || c.IsTaxable != s.IsTaxable {
			c.BaseAmount = s.BaseAmount
			c.CalculatedAmount = s.CalculatedAmount
			c.CalculationMethod = s.CalculationMethod
			c.IsTaxable = s.IsTaxable
			c.IsRecurring = s.IsRecurring
			c.Description = s.Description
			diff.Updated = append(diff.Updated, c)
		}
		kept = append(kept, c)
	}
	l.components = kept

	for _, s := range standard {
		if _, ok := wanted[s.Name]; !ok {
			continue
		}
		s.ID = l.newID()
		s.PayrollRunID = l.runID
		s.CompanyID = l.companyID
		l.components = append(l.components, s)
		diff.Created = append(diff.Created, s)
	}
	return diff
}

// RefreshPercentages re-resolves percentage components against the current
// Basic Salary and returns the ones whose amount changed.
func (l *Ledger) RefreshPercentages() []payroll.PayrollComponent {
	basic := l.BasicSalary()
	var changed []payroll.PayrollComponent
	for i, c := range l.components {
		if c.CalculationMethod != payroll.CalculationMethodPercentage || c.Name == payroll.ComponentBasicSalary {
			continue
		}
		amount := resolveAmount(c.CalculationMethod, c.BaseAmount, nil, basic)
		if amount.Equal(c.CalculatedAmount) {
			continue
		}
		c.CalculatedAmount = amount
		l.components[i] = c
		changed = append(changed, c)
	}
	return changed
}
