package payroll

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// ========== COMPONENTS ==========

func (s *PayrollServiceImpl) AddComponent(ctx context.Context, req payroll.AddComponentRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	spec := ComponentSpec{
		Type:              payroll.ComponentType(req.Type),
		Name:              req.Name,
		BaseAmount:        req.BaseAmount,
		CalculationMethod: payroll.CalculationMethod(req.CalculationMethod),
		CalculatedAmount:  req.CalculatedAmount,
		IsTaxable:         req.IsTaxable,
		IsRecurring:       req.IsRecurring,
		Description:       req.Description,
	}

	return s.mutateComponents(ctx, req.CompanyID, req.RunID, func(txCtx context.Context, ledger *Ledger) error {
		c, err := ledger.Add(spec)
		if err != nil {
			return err
		}
		if _, err := s.payrollRepo.CreateComponent(txCtx, c); err != nil {
			return fmt.Errorf("create component: %w", err)
		}
		return nil
	})
}

func (s *PayrollServiceImpl) UpdateComponent(ctx context.Context, req payroll.UpdateComponentRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	patch := ComponentPatch{
		Name:             req.Name,
		BaseAmount:       req.BaseAmount,
		CalculatedAmount: req.CalculatedAmount,
		IsTaxable:        req.IsTaxable,
		IsRecurring:      req.IsRecurring,
		Description:      req.Description,
	}
	if req.CalculationMethod != nil {
		method := payroll.CalculationMethod(*req.CalculationMethod)
		patch.CalculationMethod = &method
	}

	return s.mutateComponents(ctx, req.CompanyID, req.RunID, func(txCtx context.Context, ledger *Ledger) error {
		c, err := ledger.Update(req.ComponentID, patch)
		if err != nil {
			return err
		}
		if _, err := s.payrollRepo.UpdateComponent(txCtx, c); err != nil {
			return fmt.Errorf("update component: %w", err)
		}
		return nil
	})
}

func (s *PayrollServiceImpl) DeleteComponent(ctx context.Context, req payroll.DeleteComponentRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	return s.mutateComponents(ctx, req.CompanyID, req.RunID, func(txCtx context.Context, ledger *Ledger) error {
		c, err := ledger.Remove(req.ComponentID)
		if err != nil {
			return err
		}
		return s.payrollRepo.DeleteComponent(txCtx, c.ID, req.RunID, req.CompanyID)
	})
}

// mutateComponents locks a pending run, applies fn to its ledger and
// reconciles the totals, all in one transaction.
func (s *PayrollServiceImpl) mutateComponents(ctx context.Context, companyID, runID string, fn func(ctx context.Context, ledger *Ledger) error) (payroll.PayrollRunResponse, error) {
	var result payroll.PayrollRun
	var components []payroll.PayrollComponent

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		run, ledger, err := s.lockPendingRun(txCtx, runID, companyID)
		if err != nil {
			return err
		}
		if err := fn(txCtx, ledger); err != nil {
			return err
		}
		result, err = s.reconcileAndPersist(txCtx, run, ledger)
		components = ledger.Components()
		return err
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return payroll.NewPayrollRunResponse(result, components), nil
}
