// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (PostgreSQL, RabbitMQ, in-memory caches).
package port

import (
	"context"

	"github.com/boddenberg/hatacrm/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ============================================================
// Bookings & payments
// ============================================================

// BookingStore reads and deletes bookings, and opens write transactions.
// Every create or edit of a booking must go through WithinTx so the overlap
// check and the write see the same committed state.
type BookingStore interface {
	ListBookings(ctx context.Context, window domain.Period) ([]domain.BookingView, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateBookingFlags(ctx context.Context, id int64, req *domain.BookingFlagsRequest) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error

	WithinTx(ctx context.Context, fn func(tx BookingTx) error) error
}

// BookingTx is a booking write transaction.
type BookingTx interface {
	// LockApartment serializes booking writes of one apartment until commit.
	LockApartment(ctx context.Context, apartmentID int64) error
	// FindOverlapping returns ids of active bookings of the apartment whose
	// stay intersects the period, excluding excludeID (0 excludes nothing).
	FindOverlapping(ctx context.Context, apartmentID int64, stay domain.Period, excludeID int64) ([]int64, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	InsertBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
}

// PaymentStore persists booking payments.
type PaymentStore interface {
	BookingExists(ctx context.Context, bookingID int64) (bool, error)
	ListPayments(ctx context.Context, bookingID int64) ([]domain.Payment, error)
	GetPayment(ctx context.Context, bookingID, paymentID int64) (*domain.Payment, error)
	CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	DeletePayment(ctx context.Context, bookingID, paymentID int64) error
}

// ============================================================
// Apartments & expenses
// ============================================================

type ApartmentStore interface {
	ListApartments(ctx context.Context) ([]domain.Apartment, error)
	GetApartment(ctx context.Context, id int64) (*domain.Apartment, error)
	CreateApartment(ctx context.Context, a *domain.Apartment) (*domain.Apartment, error)
	UpdateApartment(ctx context.Context, a *domain.Apartment) (*domain.Apartment, error)
	SoftDeleteApartment(ctx context.Context, id int64) error
}

type ExpenseStore interface {
	// ListExpenses returns expenses in the period, or all of them when period is nil.
	ListExpenses(ctx context.Context, period *domain.Period) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id int64) (*domain.Expense, error)
	CreateExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// ============================================================
// Analytics
// ============================================================

// LedgerReader loads the snapshot a refresh computes from.
type LedgerReader interface {
	LoadLedger(ctx context.Context, period domain.Period) (*domain.Ledger, error)
}

// AggregateCache stores precomputed report payloads by key.
// Upsert replaces a key atomically; Read reports absence with ok=false.
type AggregateCache interface {
	UpsertAggregate(ctx context.Context, key string, payload []byte) error
	ReadAggregate(ctx context.Context, key string) (payload []byte, ok bool, err error)
}

// RefreshPublisher queues refresh jobs for a background worker.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, job *domain.RefreshJob) error
}
