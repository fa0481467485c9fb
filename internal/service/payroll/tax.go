package payroll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ProgressiveTax applies marginal rates to successive slices of taxable.
// brackets must be sorted ascending; an empty table yields zero tax.
func ProgressiveTax(brackets []payroll.TaxBracket, taxable decimal.Decimal) (decimal.Decimal, error) {
	if taxable.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", payroll.ErrNegativeTaxableAmount, taxable)
	}

	tax := decimal.Zero
	for _, b := range brackets {
		if taxable.LessThanOrEqual(b.Lower) {
			break
		}
		top := taxable
		if b.Upper != nil && b.Upper.LessThan(taxable) {
			top = *b.Upper
		}
		tax = tax.Add(top.Sub(b.Lower).Mul(b.Rate))
	}
	return tax.Round(2), nil
}

// ValidateBrackets checks that brackets start at zero, are contiguous and
// ascending, carry rates within [0, 1] and end with an unbounded bracket.
func ValidateBrackets(brackets []payroll.TaxBracket) error {
	var errs validator.ValidationErrors
	add := func(i int, field, msg string) {
		errs = append(errs, validator.ValidationError{
			Field:   fmt.Sprintf("brackets[%d].%s", i, field),
			Message: msg,
		})
	}

	if len(brackets) == 0 {
		return validator.ValidationErrors{{Field: "brackets", Message: "at least one bracket is required"}}
	}

	one := decimal.NewFromInt(1)
	for i, b := range brackets {
		if i == 0 && !b.Lower.IsZero() {
			add(i, "lower", "first bracket must start at 0")
		}
		if i > 0 {
			prev := brackets[i-1]
			if prev.Upper == nil {
				add(i-1, "upper", "only the last bracket may be unbounded")
			} else if !prev.Upper.Equal(b.Lower) {
				add(i, "lower", "must equal the previous bracket's upper bound")
			}
		}
		if b.Upper != nil && !b.Upper.GreaterThan(b.Lower) {
			add(i, "upper", "must be greater than lower")
		}
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			add(i, "rate", "must be between 0 and 1")
		}
	}
	if last := brackets[len(brackets)-1]; last.Upper != nil {
		add(len(brackets)-1, "upper", "last bracket must be unbounded")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", payroll.ErrInvalidTaxBrackets, errs)
	}
	return nil
}

// BracketSource provides a company's tax table.
type BracketSource interface {
	GetTaxBrackets(ctx context.Context, companyID string) ([]payroll.TaxBracket, error)
}

// TaxCalculator computes income tax from the company's bracket table.
type TaxCalculator struct {
	source BracketSource
}

func NewTaxCalculator(source BracketSource) *TaxCalculator {
	return &TaxCalculator{source: source}
}

// Brackets loads the table for companyID. A missing table is not an error:
// tax fails open to zero and a warning is logged.
func (c *TaxCalculator) Brackets(ctx context.Context, companyID string) ([]payroll.TaxBracket, error) {
	brackets, err := c.source.GetTaxBrackets(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load tax brackets: %w", err)
	}
	if len(brackets) == 0 {
		slog.Warn("no tax brackets configured, income tax will be zero", "company_id", companyID)
	}
	return brackets, nil
}

// ComputeTax returns the tax owed on taxable for companyID.
func (c *TaxCalculator) ComputeTax(ctx context.Context, companyID string, taxable decimal.Decimal) (decimal.Decimal, error) {
	brackets, err := c.Brackets(ctx, companyID)
	if err != nil {
		return decimal.Zero, err
	}
	return ProgressiveTax(brackets, taxable)
}
