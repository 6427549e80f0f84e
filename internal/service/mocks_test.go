package service

import (
	"context"

	"spacebook/internal/domain"
	"spacebook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockSpaceRepo struct {
	mock.Mock
}

func (m *mockSpaceRepo) CreateSpace(ctx context.Context, s *models.Space) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSpaceRepo) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Space), args.Error(1)
}
func (m *mockSpaceRepo) ListSpaces(ctx context.Context) ([]*models.Space, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Space), args.Error(1)
}
func (m *mockSpaceRepo) UpdateSpace(ctx context.Context, s *models.Space) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSpaceRepo) DeleteSpace(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) GetBookingByMerchantRequestID(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) SettleBooking(ctx context.Context, id int64, status, receipt string) error {
	return m.Called(ctx, id, status, receipt).Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) STKPush(ctx context.Context, req domain.STKPushRequest) (*domain.STKPushResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.STKPushResult), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}
