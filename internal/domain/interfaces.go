package domain

import (
	"context"
	"io"
	"time"

	"spacebook/internal/models"

	"golang.org/x/oauth2"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type SpaceRepository interface {
	CreateSpace(ctx context.Context, space *models.Space) error
	GetSpace(ctx context.Context, id int64) (*models.Space, error)
	ListSpaces(ctx context.Context) ([]*models.Space, error)
	UpdateSpace(ctx context.Context, space *models.Space) error
	DeleteSpace(ctx context.Context, id int64) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByMerchantRequestID(ctx context.Context, merchantRequestID string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	SettleBooking(ctx context.Context, id int64, status, receipt string) error
}

// TokenStore caches provider access tokens between requests.
type TokenStore interface {
	GetToken(ctx context.Context, key string) (*oauth2.Token, error)
	SetToken(ctx context.Context, key string, token *oauth2.Token) error
	DeleteToken(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ImageStore persists uploaded space images and returns their public path.
type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(publicPath string) error
}

// STKPushRequest is the orchestrator's view of a payment prompt.
type STKPushRequest struct {
	PhoneNumber string
	Amount      int64
	Reference   string
	Description string
	Timestamp   time.Time
}

type STKPushResult struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// PaymentGateway initiates mobile-money payments.
type PaymentGateway interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResult, error)
}
