package handler

import (
	"net/http"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bookings
// ============================================================

func listBookingsHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/bookings")
		defer span.End()

		start, err := queryDate(r, "start")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		end, err := queryDate(r, "end")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bookings, err := svc.ListBookings(ctx, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bookings)
	}
}

func getBookingHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/bookings/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int64("booking.id", id))

		booking, err := svc.GetBooking(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

func createBookingHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/bookings")
		defer span.End()

		var req domain.CreateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.Int64("apartment.id", req.ApartmentID))

		booking, err := svc.CreateBooking(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, booking)
	}
}

func updateBookingHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/bookings/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int64("booking.id", id))

		var req domain.UpdateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		booking, err := svc.UpdateBooking(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

func patchBookingFlagsHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/bookings/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req domain.BookingFlagsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		booking, err := svc.UpdateBookingFlags(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

func deleteBookingHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/bookings/{id}")
		defer span.End()

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteBooking(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{OK: true, ID: id})
	}
}

// ============================================================
// Booking payments
// ============================================================

func listPaymentsHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/bookings/{id}/payments")
		defer span.End()

		bookingID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		payments, err := svc.ListPayments(ctx, bookingID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, payments)
	}
}

func createPaymentHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/bookings/{id}/payments")
		defer span.End()

		bookingID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req domain.CreatePaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		payment, err := svc.CreatePayment(ctx, bookingID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, payment)
	}
}

func updatePaymentHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/bookings/{id}/payments/{paymentId}")
		defer span.End()

		bookingID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		paymentID, ok := pathID(w, r, "paymentId")
		if !ok {
			return
		}

		var req domain.UpdatePaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		payment, err := svc.UpdatePayment(ctx, bookingID, paymentID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, payment)
	}
}

func deletePaymentHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/bookings/{id}/payments/{paymentId}")
		defer span.End()

		bookingID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		paymentID, ok := pathID(w, r, "paymentId")
		if !ok {
			return
		}

		if err := svc.DeletePayment(ctx, bookingID, paymentID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{OK: true, ID: paymentID})
	}
}
