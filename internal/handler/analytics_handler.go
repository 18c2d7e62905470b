package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Analytics (cache reads + refresh)
// ============================================================

// reportPeriod reads ?year (default: current year) and ?month (default: 0, whole year).
func reportPeriod(r *http.Request) (year, month int, err error) {
	if year, err = queryInt(r, "year", time.Now().Year()); err != nil {
		return 0, 0, err
	}
	if month, err = queryInt(r, "month", 0); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func monthlyHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/monthly")
		defer span.End()

		year, err := queryInt(r, "year", time.Now().Year())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("year", year))

		report, err := svc.Monthly(ctx, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func byApartmentHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/by-apartment")
		defer span.End()

		year, month, err := reportPeriod(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("year", year), attribute.Int("month", month))

		report, err := svc.ByApartment(ctx, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func expensesByCategoryHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/expenses-by-category")
		defer span.End()

		year, month, err := reportPeriod(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		categories, err := svc.ExpensesByCategory(ctx, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

// refreshHandler recomputes one year inline, or queues it with ?async=true.
// The year comes from the JSON body, then ?year, then the current year.
func refreshHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/analytics/refresh")
		defer span.End()

		var req domain.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
			return
		}
		if req.Year == 0 {
			year, err := queryInt(r, "year", time.Now().Year())
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			req.Year = year
		}
		span.SetAttributes(attribute.Int("year", req.Year))

		async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
		if async {
			accepted, err := svc.RequestRefresh(ctx, req.Year)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusAccepted, accepted)
			return
		}

		result, err := svc.Refresh(ctx, req.Year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
