package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Settings
	GetSettings(w http.ResponseWriter, r *http.Request)
	UpdateSettings(w http.ResponseWriter, r *http.Request)
	GetTaxBrackets(w http.ResponseWriter, r *http.Request)
	ReplaceTaxBrackets(w http.ResponseWriter, r *http.Request)

	// Runs
	Generate(w http.ResponseWriter, r *http.Request)
	BulkGenerate(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	DeleteRun(w http.ResponseWriter, r *http.Request)
	Recalculate(w http.ResponseWriter, r *http.Request)

	// Components
	AddComponent(w http.ResponseWriter, r *http.Request)
	UpdateComponent(w http.ResponseWriter, r *http.Request)
	DeleteComponent(w http.ResponseWriter, r *http.Request)

	// Workflow
	Approve(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	BulkMarkPaid(w http.ResponseWriter, r *http.Request)

	// Reporting
	Summary(w http.ResponseWriter, r *http.Request)
	Payslip(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

func currentActor(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, user.ErrInvalidClaims.Error())
	}
	return actor, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// ========== SETTINGS ==========

func (h *payrollHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.GetSettings(r.Context(), actor.CompanyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.UpdatePayrollSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID

	result, err := h.payrollService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll settings updated", result)
}

func (h *payrollHandlerImpl) GetTaxBrackets(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.GetTaxBrackets(r.Context(), actor.CompanyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ReplaceTaxBrackets(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.ReplaceTaxBracketsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID

	result, err := h.payrollService.ReplaceTaxBrackets(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Tax brackets replaced", result)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) Generate(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.GeneratePayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.GeneratedBy = actor.UserID

	result, err := h.payrollService.Generate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll generated", result)
}

func (h *payrollHandlerImpl) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.BulkGeneratePayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.GeneratedBy = actor.UserID

	result, err := h.payrollService.BulkGenerate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	filter := payroll.PayrollFilter{
		Page:  1,
		Limit: 20,
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if period := query.Get("period"); period != "" {
		filter.Period = &period
	}
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}

	result, err := h.payrollService.ListRuns(r.Context(), actor.CompanyID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), actor.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) DeleteRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.payrollService.DeleteRun(r.Context(), actor.CompanyID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run deleted successfully", nil)
}

func (h *payrollHandlerImpl) Recalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	// Body is optional
	var req payroll.RecalculatePayrollRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.RunID = chi.URLParam(r, "id")

	result, err := h.payrollService.Recalculate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== COMPONENTS ==========

func (h *payrollHandlerImpl) AddComponent(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.AddComponentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.RunID = chi.URLParam(r, "id")

	result, err := h.payrollService.AddComponent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll component added", result)
}

func (h *payrollHandlerImpl) UpdateComponent(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.UpdateComponentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.RunID = chi.URLParam(r, "id")
	req.ComponentID = chi.URLParam(r, "componentId")

	result, err := h.payrollService.UpdateComponent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.DeleteComponent(r.Context(), payroll.DeleteComponentRequest{
		CompanyID:   actor.CompanyID,
		RunID:       chi.URLParam(r, "id"),
		ComponentID: chi.URLParam(r, "componentId"),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll component deleted successfully", result)
}

// ========== WORKFLOW ==========

func (h *payrollHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.Approve(r.Context(), payroll.ApprovePayrollRequest{
		CompanyID:  actor.CompanyID,
		RunID:      chi.URLParam(r, "id"),
		ApproverID: actor.UserID,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run approved", result)
}

func (h *payrollHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.MarkPaidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID
	req.RunID = chi.URLParam(r, "id")

	result, err := h.payrollService.MarkPaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run marked as paid", result)
}

func (h *payrollHandlerImpl) BulkMarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req payroll.BulkMarkPaidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyID = actor.CompanyID

	result, err := h.payrollService.BulkMarkPaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== REPORTING ==========

func (h *payrollHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := payroll.PayrollSummaryRequest{
		CompanyID:   actor.CompanyID,
		PeriodStart: query.Get("period_start"),
		PeriodEnd:   query.Get("period_end"),
	}
	// A single period may be given as period
	if period := query.Get("period"); period != "" && req.PeriodStart == "" && req.PeriodEnd == "" {
		req.PeriodStart, req.PeriodEnd = period, period
	}

	result, err := h.payrollService.Summary(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) Payslip(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	filename, pdf, err := h.payrollService.RenderPayslip(r.Context(), actor.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.PDF(w, filename, pdf)
}
