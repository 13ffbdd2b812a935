package httpx

import (
	"errors"
	"net/http"

	"github.com/stockline/stockline/internal/shared"
)

// Problem codes returned in the "code" member.
const (
	CodeValidation        = "validation_error"
	CodeInsufficientStock = "insufficient_stock"
	CodeNotFound          = "not_found"
	CodeTransaction       = "transaction_error"
	CodeMalformed         = "malformed_request"
	CodeInternal          = "internal_error"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	WriteProblem(w, ProblemFor(err))
}

// ProblemFor builds the problem body for err.
func ProblemFor(err error) ProblemDetail {
	var (
		validationErr *shared.ValidationError
		stockErr      *shared.InsufficientStockError
		notFoundErr   *shared.NotFoundError
		txErr         *shared.TransactionError
	)
	switch {
	case errors.As(err, &validationErr):
		p := ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: validationErr.Error(), Code: CodeValidation, Field: validationErr.Field}
		if validationErr.Item >= 0 {
			p.Item = intPtr(validationErr.Item)
		}
		return p
	case errors.As(err, &stockErr):
		return ProblemDetail{
			Title:     "Insufficient Stock",
			Status:    http.StatusConflict,
			Detail:    stockErr.Error(),
			Code:      CodeInsufficientStock,
			Item:      intPtr(stockErr.Item),
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: intPtr(stockErr.Available),
		}
	case errors.As(err, &notFoundErr):
		p := ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: notFoundErr.Error(), Code: CodeNotFound}
		if notFoundErr.Item >= 0 {
			p.Item = intPtr(notFoundErr.Item)
			p.ProductID = notFoundErr.ID
		}
		return p
	case errors.As(err, &txErr):
		return ProblemDetail{
			Title:     "Transaction Failed",
			Status:    http.StatusInternalServerError,
			Detail:    "the operation was rolled back; no changes were saved",
			Code:      CodeTransaction,
			Retryable: txErr.Retryable,
		}
	case errors.Is(err, shared.ErrValidation):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error(), Code: CodeValidation}
	case errors.Is(err, shared.ErrInsufficientStock):
		return ProblemDetail{Title: "Insufficient Stock", Status: http.StatusConflict, Detail: err.Error(), Code: CodeInsufficientStock}
	case errors.Is(err, shared.ErrNotFound):
		return ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error(), Code: CodeNotFound}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError, Code: CodeInternal}
	}
}

// Malformed responds to a body that could not be decoded.
func Malformed(w http.ResponseWriter, err error) {
	WriteProblem(w, ProblemDetail{Title: "Malformed Request", Status: http.StatusBadRequest, Detail: err.Error(), Code: CodeMalformed})
}

func intPtr(v int) *int { return &v }
