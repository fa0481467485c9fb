package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// The existing run is returned so callers can continue with it
	var duplicate *payroll.DuplicateRunError
	if errors.As(err, &duplicate) {
		writeJSON(w, http.StatusConflict, Response{
			Success: false,
			Data:    payroll.NewPayrollRunResponse(duplicate.Existing, nil),
			Error: &ErrorDetail{
				Code:    payroll.KindDuplicateRun,
				Message: duplicate.Error(),
			},
		})
		return
	}

	kind := payroll.ErrorKind(err)
	switch kind {
	case payroll.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, kind, err.Error())
	case payroll.KindNotFound:
		writeError(w, http.StatusNotFound, kind, err.Error())
	case payroll.KindSelfApproval:
		writeError(w, http.StatusForbidden, kind, err.Error())
	case payroll.KindDuplicateRun,
		payroll.KindInvalidState,
		payroll.KindAlreadyPaid,
		payroll.KindProtectedComponent,
		payroll.KindConcurrentModification:
		writeError(w, http.StatusConflict, kind, err.Error())
	case payroll.KindInternalInconsistency:
		slog.Error("payroll inconsistency reached the request boundary", "error", err)
		writeError(w, http.StatusInternalServerError, kind, "Payroll totals are inconsistent")
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
