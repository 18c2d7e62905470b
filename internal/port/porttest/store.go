// Package porttest provides in-memory implementations of the ports for
// tests. Store enforces the same invariants as the PostgreSQL schema,
// including the booking overlap constraint.
package porttest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port"
)

var (
	_ port.BookingStore   = (*Store)(nil)
	_ port.PaymentStore   = (*Store)(nil)
	_ port.ApartmentStore = (*Store)(nil)
	_ port.ExpenseStore   = (*Store)(nil)
	_ port.LedgerReader   = (*Store)(nil)
	_ port.AggregateCache = (*Store)(nil)
	_ port.Pinger         = (*Store)(nil)
)

// Store keeps every table in maps. WithinTx serializes writers the way the
// apartment row lock does and restores bookings when fn fails.
type Store struct {
	writeMu sync.Mutex
	mu      sync.Mutex

	seq        int64
	apartments map[int64]domain.Apartment
	bookings   map[int64]domain.Booking
	payments   map[int64]domain.Payment
	expenses   map[int64]domain.Expense
	aggregates map[string][]byte

	// Err, when set, is returned by Ping, ListBookings, WithinTx, LoadLedger and ReadAggregate.
	Err error
	// FailUpsert makes UpsertAggregate fail for that key.
	FailUpsert string
}

func NewStore() *Store {
	return &Store{
		apartments: map[int64]domain.Apartment{},
		bookings:   map[int64]domain.Booking{},
		payments:   map[int64]domain.Payment{},
		expenses:   map[int64]domain.Expense{},
		aggregates: map[string][]byte{},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func (s *Store) Ping(context.Context) error { return s.Err }

// ============================================================
// Seeding helpers
// ============================================================

func (s *Store) AddApartment(name string) domain.Apartment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := domain.Apartment{ID: s.nextID(), Name: name, CreatedAt: time.Now()}
	s.apartments[a.ID] = a
	return a
}

// AddBooking stores b as given, without the overlap check.
func (s *Store) AddBooking(b domain.Booking) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID()
	b.CreatedAt = time.Now()
	payments := b.Payments
	b.Payments = nil
	s.bookings[b.ID] = b
	for _, p := range payments {
		p.ID = s.nextID()
		p.BookingID = b.ID
		s.payments[p.ID] = p
	}
	return b
}

func (s *Store) AddExpense(e domain.Expense) domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	e.CreatedAt = time.Now()
	s.expenses[e.ID] = e
	return e
}

// Aggregate returns the stored payload of key.
func (s *Store) Aggregate(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.aggregates[key]
	return p, ok
}

// ActiveBookings returns the non-cancelled bookings of an apartment.
func (s *Store) ActiveBookings(apartmentID int64) []domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.ApartmentID == apartmentID && b.Status.Active() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ============================================================
// Bookings
// ============================================================

func (s *Store) ListBookings(_ context.Context, window domain.Period) ([]domain.BookingView, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.BookingView{}
	for _, b := range s.bookings {
		if !b.StartDate.Before(window.End) || b.EndDate.Before(window.Start) {
			continue
		}
		v := domain.BookingView{Booking: b}
		for _, p := range s.payments {
			if p.BookingID == b.ID && p.Paid {
				v.PaidAmount += p.Amount
				v.PaidPaymentCount++
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, bookingID int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "booking", ID: id(bookingID)}
	}
	b.Payments = s.paymentsOf(bookingID)
	return &b, nil
}

func (s *Store) UpdateBookingFlags(_ context.Context, bookingID int64, req *domain.BookingFlagsRequest) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "booking", ID: id(bookingID)}
	}
	if req.PrepaymentPaid != nil {
		b.PrepaymentPaid = *req.PrepaymentPaid
	}
	if req.FullAmountPaid != nil {
		b.FullAmountPaid = *req.FullAmountPaid
	}
	s.bookings[bookingID] = b
	return &b, nil
}

func (s *Store) DeleteBooking(_ context.Context, bookingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return &domain.ErrNotFound{Resource: "booking", ID: id(bookingID)}
	}
	delete(s.bookings, bookingID)
	for pid, p := range s.payments {
		if p.BookingID == bookingID {
			delete(s.payments, pid)
		}
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx port.BookingTx) error) error {
	if s.Err != nil {
		return s.Err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[int64]domain.Booking, len(s.bookings))
	for k, v := range s.bookings {
		snapshot[k] = v
	}
	s.mu.Unlock()

	if err := fn(&memTx{s: s}); err != nil {
		s.mu.Lock()
		s.bookings = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

type memTx struct {
	s *Store
}

func (t *memTx) LockApartment(_ context.Context, apartmentID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.apartments[apartmentID]; !ok {
		return &domain.ErrValidation{Field: "apartment_id", Message: fmt.Sprintf("apartment %d does not exist", apartmentID)}
	}
	return nil
}

func (t *memTx) FindOverlapping(_ context.Context, apartmentID int64, stay domain.Period, excludeID int64) ([]int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.overlapping(apartmentID, stay, excludeID), nil
}

func (s *Store) overlapping(apartmentID int64, stay domain.Period, excludeID int64) []int64 {
	var ids []int64
	for _, b := range s.bookings {
		if b.ID == excludeID || b.ApartmentID != apartmentID || !b.Status.Active() {
			continue
		}
		if b.StartDate.Before(stay.End) && b.EndDate.After(stay.Start) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *memTx) GetBookingForUpdate(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "booking", ID: id(bookingID)}
	}
	return &b, nil
}

// InsertBooking enforces the overlap constraint as a backstop.
func (t *memTx) InsertBooking(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if b.Status.Active() && len(t.s.overlapping(b.ApartmentID, b.Stay(), 0)) > 0 {
		return nil, &domain.ErrBookingConflict{ApartmentID: b.ApartmentID, Start: b.StartDate, End: b.EndDate}
	}
	saved := *b
	saved.ID = t.s.nextID()
	saved.CreatedAt = time.Now()
	saved.Payments = nil
	t.s.bookings[saved.ID] = saved
	return &saved, nil
}

func (t *memTx) UpdateBooking(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.bookings[b.ID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "booking", ID: id(b.ID)}
	}
	if b.Status.Active() && len(t.s.overlapping(b.ApartmentID, b.Stay(), b.ID)) > 0 {
		return nil, &domain.ErrBookingConflict{ApartmentID: b.ApartmentID, Start: b.StartDate, End: b.EndDate}
	}
	saved := *b
	saved.Payments = nil
	t.s.bookings[b.ID] = saved
	return &saved, nil
}

// ============================================================
// Payments
// ============================================================

// paymentsOf must be called with mu held.
func (s *Store) paymentsOf(bookingID int64) []domain.Payment {
	out := []domain.Payment{}
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) BookingExists(_ context.Context, bookingID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bookings[bookingID]
	return ok, nil
}

func (s *Store) ListPayments(_ context.Context, bookingID int64) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentsOf(bookingID), nil
}

func (s *Store) GetPayment(_ context.Context, bookingID, paymentID int64) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.BookingID != bookingID {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: id(paymentID)}
	}
	return &p, nil
}

func (s *Store) CreatePayment(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[p.BookingID]; !ok {
		return nil, &domain.ErrValidation{Field: "booking_id", Message: "references a record that does not exist"}
	}
	saved := *p
	saved.ID = s.nextID()
	saved.CreatedAt = time.Now()
	s.payments[saved.ID] = saved
	return &saved, nil
}

func (s *Store) UpdatePayment(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.payments[p.ID]
	if !ok || current.BookingID != p.BookingID {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: id(p.ID)}
	}
	saved := *p
	s.payments[p.ID] = saved
	return &saved, nil
}

func (s *Store) DeletePayment(_ context.Context, bookingID, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.BookingID != bookingID {
		return &domain.ErrNotFound{Resource: "payment", ID: id(paymentID)}
	}
	delete(s.payments, paymentID)
	return nil
}

// ============================================================
// Apartments
// ============================================================

func (s *Store) liveApartments() []domain.Apartment {
	out := []domain.Apartment{}
	for _, a := range s.apartments {
		if a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListApartments(context.Context) ([]domain.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveApartments(), nil
}

func (s *Store) GetApartment(_ context.Context, apartmentID int64) (*domain.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apartments[apartmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "apartment", ID: id(apartmentID)}
	}
	return &a, nil
}

func (s *Store) nameTaken(name string, exceptID int64) bool {
	for _, a := range s.apartments {
		if a.DeletedAt == nil && a.Name == name && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateApartment(_ context.Context, a *domain.Apartment) (*domain.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(a.Name, 0) {
		return nil, &domain.ErrValidation{Field: "name", Message: "already exists"}
	}
	saved := *a
	saved.ID = s.nextID()
	saved.CreatedAt = time.Now()
	s.apartments[saved.ID] = saved
	return &saved, nil
}

func (s *Store) UpdateApartment(_ context.Context, a *domain.Apartment) (*domain.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.apartments[a.ID]
	if !ok || current.DeletedAt != nil {
		return nil, &domain.ErrNotFound{Resource: "apartment", ID: id(a.ID)}
	}
	if s.nameTaken(a.Name, a.ID) {
		return nil, &domain.ErrValidation{Field: "name", Message: "already exists"}
	}
	saved := *a
	s.apartments[a.ID] = saved
	return &saved, nil
}

func (s *Store) SoftDeleteApartment(_ context.Context, apartmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apartments[apartmentID]
	if !ok || a.DeletedAt != nil {
		return &domain.ErrNotFound{Resource: "apartment", ID: id(apartmentID)}
	}
	now := time.Now()
	a.DeletedAt = &now
	s.apartments[apartmentID] = a
	return nil
}

// ============================================================
// Expenses
// ============================================================

func (s *Store) ListExpenses(_ context.Context, period *domain.Period) ([]domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Expense{}
	for _, e := range s.expenses {
		if period == nil || period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, expenseID int64) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id(expenseID)}
	}
	return &e, nil
}

func (s *Store) CreateExpense(_ context.Context, e *domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ApartmentID != nil {
		if _, ok := s.apartments[*e.ApartmentID]; !ok {
			return nil, &domain.ErrValidation{Field: "apartment_id", Message: "references a record that does not exist"}
		}
	}
	saved := *e
	saved.ID = s.nextID()
	saved.CreatedAt = time.Now()
	s.expenses[saved.ID] = saved
	return &saved, nil
}

func (s *Store) UpdateExpense(_ context.Context, e *domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id(e.ID)}
	}
	saved := *e
	s.expenses[e.ID] = saved
	return &saved, nil
}

func (s *Store) DeleteExpense(_ context.Context, expenseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[expenseID]; !ok {
		return &domain.ErrNotFound{Resource: "expense", ID: id(expenseID)}
	}
	delete(s.expenses, expenseID)
	return nil
}

// ============================================================
// Analytics
// ============================================================

func (s *Store) LoadLedger(_ context.Context, period domain.Period) (*domain.Ledger, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &domain.Ledger{Bookings: []domain.Booking{}, Expenses: []domain.Expense{}}
	for _, b := range s.bookings {
		if b.Status.Active() && b.Stay().Overlaps(period) {
			var payments []domain.Payment
			for _, p := range s.payments {
				if p.BookingID == b.ID {
					payments = append(payments, p)
				}
			}
			sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
			b.Payments = payments
			l.Bookings = append(l.Bookings, b)
		}
	}
	sort.Slice(l.Bookings, func(i, j int) bool { return l.Bookings[i].ID < l.Bookings[j].ID })

	for _, e := range s.expenses {
		if period.Contains(e.Date) {
			l.Expenses = append(l.Expenses, e)
		}
	}
	sort.Slice(l.Expenses, func(i, j int) bool {
		if !l.Expenses[i].Date.Equal(l.Expenses[j].Date) {
			return l.Expenses[i].Date.Before(l.Expenses[j].Date)
		}
		return l.Expenses[i].ID < l.Expenses[j].ID
	})

	l.Apartments = s.liveApartments()
	return l, nil
}

func (s *Store) UpsertAggregate(_ context.Context, key string, payload []byte) error {
	if key == s.FailUpsert {
		return &domain.ErrStorage{Op: "upsert_aggregate", Err: fmt.Errorf("injected failure for %s", key)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[key] = append([]byte(nil), payload...)
	return nil
}

func (s *Store) ReadAggregate(_ context.Context, key string) ([]byte, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.aggregates[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), p...), true, nil
}

// ============================================================
// Publisher
// ============================================================

// Publisher records published refresh jobs.
type Publisher struct {
	mu   sync.Mutex
	jobs []*domain.RefreshJob
	Err  error
}

func (p *Publisher) PublishRefresh(_ context.Context, job *domain.RefreshJob) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *Publisher) Jobs() []*domain.RefreshJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.RefreshJob(nil), p.jobs...)
}
