package service

import (
	"context"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("service/catalog")

// ApartmentService manages the apartment catalog.
type ApartmentService struct {
	store  port.ApartmentStore
	logger *zap.Logger
}

func NewApartmentService(store port.ApartmentStore, logger *zap.Logger) *ApartmentService {
	return &ApartmentService{store: store, logger: logger}
}

func (s *ApartmentService) ListApartments(ctx context.Context) ([]domain.Apartment, error) {
	ctx, span := catalogTracer.Start(ctx, "ApartmentService.ListApartments")
	defer span.End()

	return s.store.ListApartments(ctx)
}

func (s *ApartmentService) CreateApartment(ctx context.Context, req *domain.CreateApartmentRequest) (*domain.Apartment, error) {
	ctx, span := catalogTracer.Start(ctx, "ApartmentService.CreateApartment")
	defer span.End()

	a, err := req.ToApartment()
	if err != nil {
		return nil, err
	}
	saved, err := s.store.CreateApartment(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info("apartment created", zap.Int64("apartment_id", saved.ID), zap.String("name", saved.Name))
	return saved, nil
}

// UpdateApartment edits a live apartment; a soft-deleted one is not found.
func (s *ApartmentService) UpdateApartment(ctx context.Context, id int64, req *domain.UpdateApartmentRequest) (*domain.Apartment, error) {
	ctx, span := catalogTracer.Start(ctx, "ApartmentService.UpdateApartment")
	defer span.End()

	current, err := s.store.GetApartment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.DeletedAt != nil {
		return nil, s.notFound(id)
	}
	merged, err := req.Apply(*current)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateApartment(ctx, merged)
}

// DeleteApartment soft-deletes. Historical bookings and expenses keep the reference.
func (s *ApartmentService) DeleteApartment(ctx context.Context, id int64) error {
	ctx, span := catalogTracer.Start(ctx, "ApartmentService.DeleteApartment")
	defer span.End()

	if err := s.store.SoftDeleteApartment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("apartment deleted", zap.Int64("apartment_id", id))
	return nil
}

func (s *ApartmentService) notFound(id int64) error {
	return &domain.ErrNotFound{Resource: "apartment", ID: formatID(id)}
}
