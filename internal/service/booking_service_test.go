package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/port/porttest"
	"github.com/boddenberg/hatacrm/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func date(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newBookingService(store *porttest.Store) (*service.BookingService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return service.NewBookingService(store, store, metrics, zap.NewNop()), metrics
}

func createReq(apartmentID int64, start, end string) *domain.CreateBookingRequest {
	return &domain.CreateBookingRequest{
		ApartmentID: apartmentID,
		ClientName:  "Guest",
		ClientPhone: "+7 900 000 00 00",
		StartDate:   date(start),
		EndDate:     date(end),
		TotalPrice:  1000,
	}
}

func TestCreateBooking_Defaults(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("Loft")
	svc, _ := newBookingService(store)

	b, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-01", "2024-05-05"))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, "Direct", b.BookingSource)
	assert.Equal(t, 1, b.Adults)
}

func TestCreateBooking_RejectsOverlap(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	existing := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	svc, metrics := newBookingService(store)

	_, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-04", "2024-05-06"))

	var conflict *domain.ErrBookingConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int64{existing.ID}, conflict.ConflictingIDs)
	assert.Len(t, store.ActiveBookings(apt.ID), 1)
	assert.Equal(t, int64(1), metrics.RefreshStats().BookingConflicts)
}

func TestCreateBooking_BackToBackAllowed(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-06-05"), EndDate: date("2024-06-10"),
	})
	svc, _ := newBookingService(store)

	_, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	_, err = svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-06-01", "2024-06-05"))
	require.NoError(t, err)
	assert.Len(t, store.ActiveBookings(apt.ID), 3)
}

func TestCreateBooking_CancelledBookingsDoNotBlock(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingCancelled,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-10"),
	})
	svc, _ := newBookingService(store)

	_, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-03", "2024-05-04"))
	assert.NoError(t, err)
}

func TestCreateBooking_OtherApartmentDoesNotBlock(t *testing.T) {
	store := porttest.NewStore()
	a := store.AddApartment("A")
	b := store.AddApartment("B")
	store.AddBooking(domain.Booking{
		ApartmentID: a.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-10"),
	})
	svc, _ := newBookingService(store)

	_, err := svc.CreateBooking(context.Background(), createReq(b.ID, "2024-05-03", "2024-05-04"))
	assert.NoError(t, err)
}

func TestCreateBooking_Validation(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	svc, _ := newBookingService(store)

	tests := []struct {
		name  string
		req   *domain.CreateBookingRequest
		field string
	}{
		{"end equals start", createReq(apt.ID, "2024-05-01", "2024-05-01"), "end_date"},
		{"end before start", createReq(apt.ID, "2024-05-03", "2024-05-01"), "end_date"},
		{"missing phone", func() *domain.CreateBookingRequest {
			r := createReq(apt.ID, "2024-05-01", "2024-05-02")
			r.ClientPhone = " "
			return r
		}(), "client_phone"},
		{"negative price", func() *domain.CreateBookingRequest {
			r := createReq(apt.ID, "2024-05-01", "2024-05-02")
			r.TotalPrice = -1
			return r
		}(), "total_price"},
		{"unknown status", func() *domain.CreateBookingRequest {
			r := createReq(apt.ID, "2024-05-01", "2024-05-02")
			r.Status = "MAYBE"
			return r
		}(), "status"},
		{"unknown apartment", createReq(999, "2024-05-01", "2024-05-02"), "apartment_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tt.req)
			var ve *domain.ErrValidation
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, store.ActiveBookings(apt.ID))
}

func TestCreateBooking_ConcurrentOverlapsYieldOneBooking(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	svc, metrics := newBookingService(store)

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-07-01", "2024-07-04")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.ActiveBookings(apt.ID), 1)
	assert.Equal(t, int64(writers-1), metrics.RefreshStats().BookingConflicts)
}

func TestUpdateBooking_ExcludesItself(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	svc, _ := newBookingService(store)
	b, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-01", "2024-05-05"))
	require.NoError(t, err)

	end := date("2024-05-06")
	updated, err := svc.UpdateBooking(context.Background(), b.ID, &domain.UpdateBookingRequest{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", updated.EndDate.String())
}

func TestUpdateBooking_ConflictLeavesBookingUnchanged(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	svc, _ := newBookingService(store)
	first, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-01", "2024-05-05"))
	require.NoError(t, err)
	second, err := svc.CreateBooking(context.Background(), createReq(apt.ID, "2024-05-05", "2024-05-08"))
	require.NoError(t, err)

	start := date("2024-05-03")
	_, err = svc.UpdateBooking(context.Background(), second.ID, &domain.UpdateBookingRequest{StartDate: &start})
	var conflict *domain.ErrBookingConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int64{first.ID}, conflict.ConflictingIDs)

	got, err := svc.GetBooking(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-05", got.StartDate.String())
}

func TestUpdateBooking_MoveToOtherApartmentChecksTarget(t *testing.T) {
	store := porttest.NewStore()
	a := store.AddApartment("A")
	b := store.AddApartment("B")
	svc, _ := newBookingService(store)
	store.AddBooking(domain.Booking{
		ApartmentID: b.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	mine, err := svc.CreateBooking(context.Background(), createReq(a.ID, "2024-05-02", "2024-05-03"))
	require.NoError(t, err)

	_, err = svc.UpdateBooking(context.Background(), mine.ID, &domain.UpdateBookingRequest{ApartmentID: &b.ID})
	var conflict *domain.ErrBookingConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateBooking_ReactivatingCancelledChecksOverlap(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	cancelled := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingCancelled, ClientPhone: "1",
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-02"), EndDate: date("2024-05-04"),
	})
	svc, _ := newBookingService(store)

	status := domain.BookingConfirmed
	_, err := svc.UpdateBooking(context.Background(), cancelled.ID, &domain.UpdateBookingRequest{Status: &status})
	var conflict *domain.ErrBookingConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateBooking_NotFound(t *testing.T) {
	svc, _ := newBookingService(porttest.NewStore())
	notes := "late arrival"
	_, err := svc.UpdateBooking(context.Background(), 42, &domain.UpdateBookingRequest{Notes: &notes})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestUpdateBookingFlags(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	b := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	svc, _ := newBookingService(store)

	_, err := svc.UpdateBookingFlags(context.Background(), b.ID, &domain.BookingFlagsRequest{})
	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)

	yes := true
	updated, err := svc.UpdateBookingFlags(context.Background(), b.ID, &domain.BookingFlagsRequest{PrepaymentPaid: &yes})
	require.NoError(t, err)
	assert.True(t, updated.PrepaymentPaid)
	assert.False(t, updated.FullAmountPaid)
}

func TestListBookings_WindowIncludesCheckoutDay(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-04-28"), EndDate: date("2024-05-01"),
	})
	store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-06-01"), EndDate: date("2024-06-03"),
	})
	svc, _ := newBookingService(store)

	views, err := svc.ListBookings(context.Background(), date("2024-05-01"), date("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "2024-04-28", views[0].StartDate.String())

	all, err := svc.ListBookings(context.Background(), domain.Date{}, domain.Date{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListBookings(context.Background(), date("2024-06-01"), date("2024-05-01"))
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)
}

func TestDeleteBooking_CascadesPayments(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	b := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
		Payments: []domain.Payment{{Type: domain.PaymentMain, Amount: 100, Paid: true}},
	})
	svc, _ := newBookingService(store)

	require.NoError(t, svc.DeleteBooking(context.Background(), b.ID))

	_, err := svc.ListPayments(context.Background(), b.ID)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, svc.DeleteBooking(context.Background(), b.ID), &nf)
}

func TestPayments_Lifecycle(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	b := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	svc, _ := newBookingService(store)
	ctx := context.Background()

	p, err := svc.CreatePayment(ctx, b.ID, &domain.CreatePaymentRequest{
		Type: domain.PaymentMain, Amount: 400, PaymentMethod: "cash",
		PeriodStart: date("2024-05-01"), PeriodEnd: date("2024-05-03"),
	})
	require.NoError(t, err)
	assert.False(t, p.PaymentDate.IsZero())
	require.NotNil(t, p.PaymentMethod)
	assert.Equal(t, domain.MethodCash, *p.PaymentMethod)

	paid := true
	updated, err := svc.UpdatePayment(ctx, b.ID, p.ID, &domain.UpdatePaymentRequest{Paid: &paid})
	require.NoError(t, err)
	assert.True(t, updated.Paid)
	assert.Equal(t, 400.0, updated.Amount)

	empty := ""
	cleared, err := svc.UpdatePayment(ctx, b.ID, p.ID, &domain.UpdatePaymentRequest{PaymentMethod: &empty})
	require.NoError(t, err)
	assert.Nil(t, cleared.PaymentMethod)

	list, err := svc.ListPayments(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeletePayment(ctx, b.ID, p.ID))
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, svc.DeletePayment(ctx, b.ID, p.ID), &nf)
}

func TestPayments_Validation(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("X")
	b := store.AddBooking(domain.Booking{
		ApartmentID: apt.ID, Status: domain.BookingConfirmed,
		StartDate: date("2024-05-01"), EndDate: date("2024-05-05"),
	})
	svc, _ := newBookingService(store)

	tests := []struct {
		name  string
		req   domain.CreatePaymentRequest
		field string
	}{
		{"unknown type", domain.CreatePaymentRequest{Type: "tip", Amount: 10}, "type"},
		{"unknown method", domain.CreatePaymentRequest{Type: domain.PaymentExtra, Amount: 10, PaymentMethod: "crypto"}, "payment_method"},
		{"negative amount", domain.CreatePaymentRequest{Type: domain.PaymentExtra, Amount: -5}, "amount"},
		{"period on non-main", domain.CreatePaymentRequest{
			Type: domain.PaymentCleaning, Amount: 10,
			PeriodStart: date("2024-05-01"), PeriodEnd: date("2024-05-02"),
		}, "period_start"},
		{"half period", domain.CreatePaymentRequest{
			Type: domain.PaymentMain, Amount: 10, PeriodStart: date("2024-05-01"),
		}, "period_end"},
		{"inverted period", domain.CreatePaymentRequest{
			Type: domain.PaymentMain, Amount: 10,
			PeriodStart: date("2024-05-03"), PeriodEnd: date("2024-05-01"),
		}, "period_end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePayment(context.Background(), b.ID, &tt.req)
			var ve *domain.ErrValidation
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := svc.CreatePayment(context.Background(), 999, &domain.CreatePaymentRequest{Type: domain.PaymentExtra})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}
