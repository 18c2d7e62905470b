package handler

import (
	"net/http"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Apartments
// ============================================================

func listApartmentsHandler(svc *service.ApartmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/apartments")
		defer span.End()

		apartments, err := svc.ListApartments(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, apartments)
	}
}

func createApartmentHandler(svc *service.ApartmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/apartments")
		defer span.End()

		var req domain.CreateApartmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		apartment, err := svc.CreateApartment(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, apartment)
	}
}

func updateApartmentHandler(svc *service.ApartmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/apartments/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req domain.UpdateApartmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		apartment, err := svc.UpdateApartment(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, apartment)
	}
}

func deleteApartmentHandler(svc *service.ApartmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/apartments/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteApartment(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{OK: true, ID: id})
	}
}

// ============================================================
// Expenses
// ============================================================

func listExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/expenses")
		defer span.End()

		year, err := queryInt(r, "year", 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		month, err := queryInt(r, "month", 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		expenses, err := svc.ListExpenses(ctx, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	}
}

func createExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/expenses")
		defer span.End()

		var req domain.CreateExpenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		expense, err := svc.CreateExpense(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, expense)
	}
}

func updateExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/expenses/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req domain.UpdateExpenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		expense, err := svc.UpdateExpense(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, expense)
	}
}

func deleteExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/expenses/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteExpense(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{OK: true, ID: id})
	}
}
