package http

import (
	"bytes"
	"net/http"

	"gastos/internal/export"
	"gastos/internal/log"
)

type createdExpense struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Message     string  `json:"message"`
}

// handleCreateExpense records a new expense from a JSON or form body.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := ParseCreateExpense(w, r)
	if err != nil {
		writeError(w, r, err, "Failed to save expense")
		return
	}

	e, err := s.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "Failed to save expense")
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+formatID(e.ID)).
		Body(createdExpense{
			ID:          e.ID,
			Amount:      e.Amount.Float(),
			Category:    e.Category,
			Date:        e.Date.String(),
			Description: e.Description,
			Message:     "Expense saved successfully",
		}).
		Write(w)
}

// handleListExpenses returns expenses newest first, optionally filtered by
// startDate and endDate.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "Failed to fetch expenses")
		return
	}

	items, err := s.svc.List(r.Context(), rng)
	if err != nil {
		writeError(w, r, err, "Failed to fetch expenses")
		return
	}
	NewJSONResponse().Body(toExpenseList(items)).Write(w)
}

// handleTodayTotal returns the sum of today's expenses.
func (s *Server) handleTodayTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.svc.DailyTotal(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to calculate total")
		return
	}
	NewJSONResponse().Body(map[string]any{
		"date":  total.Date.String(),
		"total": total.Total.Float(),
	}).Write(w)
}

// handleExportExpenses streams every matching expense as a CSV or XLSX attachment.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := export.ParseFormat(query.Get("format"))
	if err != nil {
		BadRequestError("format must be csv or xlsx", "format").Write(w)
		return
	}
	rng, err := ParseDateRange(query)
	if err != nil {
		writeError(w, r, err, "Failed to export expenses")
		return
	}

	items, err := s.svc.Export(r.Context(), rng)
	if err != nil {
		writeError(w, r, err, "Failed to export expenses")
		return
	}

	// Render fully before committing to a 200 so a failure can still be reported.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		writeError(w, r, err, "Failed to export expenses")
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expenses exported",
		log.FieldFormat, format, log.FieldCount, len(items), log.FieldOperation, log.OpExport)

	h := w.Header()
	h.Set("Content-Type", export.ContentType(format))
	h.Set("Content-Disposition", "attachment; filename="+export.Filename(format))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleDeleteExpense removes one expense by id.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		writeError(w, r, err, "Failed to delete expense")
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete expense")
		return
	}
	NewJSONResponse().Body(map[string]any{
		"message": "Expense deleted successfully",
		"id":      id,
	}).Write(w)
}
