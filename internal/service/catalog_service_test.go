package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port/porttest"
	"github.com/boddenberg/hatacrm/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApartments_Lifecycle(t *testing.T) {
	store := porttest.NewStore()
	svc := service.NewApartmentService(store, zap.NewNop())
	ctx := context.Background()

	b, err := svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: " Sea View ", BasePrice: 120})
	require.NoError(t, err)
	assert.Equal(t, "Sea View", b.Name)
	_, err = svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: "City Loft"})
	require.NoError(t, err)

	list, err := svc.ListApartments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "City Loft", list[0].Name)

	price := 150.0
	updated, err := svc.UpdateApartment(ctx, b.ID, &domain.UpdateApartmentRequest{BasePrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.BasePrice)

	require.NoError(t, svc.DeleteApartment(ctx, b.ID))
	list, err = svc.ListApartments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	var nf *domain.ErrNotFound
	_, err = svc.UpdateApartment(ctx, b.ID, &domain.UpdateApartmentRequest{BasePrice: &price})
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, svc.DeleteApartment(ctx, b.ID), &nf)
}

func TestApartments_Validation(t *testing.T) {
	svc := service.NewApartmentService(porttest.NewStore(), zap.NewNop())
	ctx := context.Background()
	var ve *domain.ErrValidation

	_, err := svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: "  "})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, err = svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: "A", BasePrice: -1})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "base_price", ve.Field)

	_, err = svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: "A"})
	require.NoError(t, err)
	_, err = svc.CreateApartment(ctx, &domain.CreateApartmentRequest{Name: "A"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
}

func TestExpenses_FilterAndUpdate(t *testing.T) {
	store := porttest.NewStore()
	apt := store.AddApartment("Loft")
	svc := service.NewExpenseService(store, zap.NewNop())
	ctx := context.Background()

	march, err := svc.CreateExpense(ctx, &domain.CreateExpenseRequest{
		Category: "util", Amount: 50, Date: date("2024-03-10"), ApartmentID: &apt.ID,
	})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, &domain.CreateExpenseRequest{Category: "tax", Amount: 20, Date: date("2024-07-01")})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, &domain.CreateExpenseRequest{Category: "tax", Amount: 20, Date: date("2023-07-01")})
	require.NoError(t, err)

	all, err := svc.ListExpenses(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "2024-07-01", all[0].Date.String())

	year, err := svc.ListExpenses(ctx, 2024, 0)
	require.NoError(t, err)
	assert.Len(t, year, 2)

	month, err := svc.ListExpenses(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, month, 1)
	assert.Equal(t, march.ID, month[0].ID)

	var detach int64
	updated, err := svc.UpdateExpense(ctx, march.ID, &domain.UpdateExpenseRequest{ApartmentID: &detach})
	require.NoError(t, err)
	assert.Nil(t, updated.ApartmentID)

	require.NoError(t, svc.DeleteExpense(ctx, march.ID))
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, svc.DeleteExpense(ctx, march.ID), &nf)
}

func TestExpenses_Validation(t *testing.T) {
	svc := service.NewExpenseService(porttest.NewStore(), zap.NewNop())
	ctx := context.Background()
	var ve *domain.ErrValidation

	_, err := svc.ListExpenses(ctx, 0, 5)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "year", ve.Field)

	_, err = svc.ListExpenses(ctx, 2024, 13)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "month", ve.Field)

	_, err = svc.CreateExpense(ctx, &domain.CreateExpenseRequest{Amount: 5})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category", ve.Field)

	missing := int64(404)
	_, err = svc.CreateExpense(ctx, &domain.CreateExpenseRequest{Category: "x", ApartmentID: &missing})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "apartment_id", ve.Field)

	e, err := svc.CreateExpense(ctx, &domain.CreateExpenseRequest{Category: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.Today(), e.Date)
}
