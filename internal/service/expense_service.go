package service

import (
	"context"
	"strconv"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port"

	"go.uber.org/zap"
)

// ExpenseService manages expenses. Expenses carry no allocation logic; they
// only feed the reports on refresh.
type ExpenseService struct {
	store  port.ExpenseStore
	logger *zap.Logger
}

func NewExpenseService(store port.ExpenseStore, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{store: store, logger: logger}
}

// ListExpenses returns every expense when year is 0, the year's when month
// is 0, and the month's otherwise.
func (s *ExpenseService) ListExpenses(ctx context.Context, year, month int) ([]domain.Expense, error) {
	ctx, span := catalogTracer.Start(ctx, "ExpenseService.ListExpenses")
	defer span.End()

	if year == 0 {
		if month != 0 {
			return nil, &domain.ErrValidation{Field: "year", Message: "required when month is set"}
		}
		return s.store.ListExpenses(ctx, nil)
	}
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}
	if err := domain.ValidateMonth(month); err != nil {
		return nil, err
	}
	period := domain.ReportPeriod(year, month)
	return s.store.ListExpenses(ctx, &period)
}

func (s *ExpenseService) CreateExpense(ctx context.Context, req *domain.CreateExpenseRequest) (*domain.Expense, error) {
	ctx, span := catalogTracer.Start(ctx, "ExpenseService.CreateExpense")
	defer span.End()

	e, err := req.ToExpense()
	if err != nil {
		return nil, err
	}
	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return nil, err
	}
	s.logger.Info("expense created",
		zap.Int64("expense_id", saved.ID),
		zap.String("category", saved.Category),
		zap.Float64("amount", saved.Amount),
	)
	return saved, nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, req *domain.UpdateExpenseRequest) (*domain.Expense, error) {
	ctx, span := catalogTracer.Start(ctx, "ExpenseService.UpdateExpense")
	defer span.End()

	current, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, err := req.Apply(*current)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateExpense(ctx, merged)
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	ctx, span := catalogTracer.Start(ctx, "ExpenseService.DeleteExpense")
	defer span.End()

	return s.store.DeleteExpense(ctx, id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
