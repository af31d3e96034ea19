package http

import (
	"errors"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/log"
)

// expenseJSON is the wire form of a stored expense.
type expenseJSON struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	out := expenseJSON{
		ID:          e.ID,
		Amount:      e.Amount.Float(),
		Category:    e.Category,
		Date:        e.Date.String(),
		Description: e.Description,
	}
	if !e.CreatedAt.IsZero() {
		out.CreatedAt = e.CreatedAt.UTC().Format(core.CreatedAtLayout)
	}
	return out
}

func toExpenseList(items []core.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseJSON(e))
	}
	return out
}

// writeError maps service errors onto status codes. Validation problems are
// reported back; anything else is logged and answered with opaque.
func writeError(w http.ResponseWriter, r *http.Request, err error, opaque string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequestError(verr.Error(), verr.Field).Write(w)
	case errors.Is(err, errInvalidBody):
		BadRequestError(errInvalidBody.Error(), "").Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), opaque,
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeInternal)
		InternalServerError(opaque).Write(w)
	}
}
