package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/apperr"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/models"
	"spacebook/internal/mpesa"

	"github.com/rs/zerolog"
)

const BookingInitiatedMessage = "Payment initiated. Please check your phone to complete the transaction."

// CallbackOutcome says what a provider callback did to the store.
type CallbackOutcome string

const (
	CallbackCompleted  CallbackOutcome = "completed"
	CallbackFailed     CallbackOutcome = "failed"
	CallbackDuplicate  CallbackOutcome = "duplicate"
	CallbackUnmatched  CallbackOutcome = "unmatched"
	CallbackInvalid    CallbackOutcome = "invalid"
	CallbackIncomplete CallbackOutcome = "incomplete"
	CallbackError      CallbackOutcome = "error"
)

type BookingRequest struct {
	SpaceID     int64
	UserID      int64
	Hours       int64
	PhoneNumber string
}

type BookingService struct {
	spaces   domain.SpaceRepository
	bookings domain.BookingRepository
	gateway  domain.PaymentGateway
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(
	spaces domain.SpaceRepository,
	bookings domain.BookingRepository,
	gateway domain.PaymentGateway,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		spaces:   spaces,
		bookings: bookings,
		gateway:  gateway,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestBooking prices the booking, asks the customer to pay through an
// STK push and stores a pending booking once the provider accepts it.
// Nothing is written when any step before that fails.
func (s *BookingService) RequestBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	space, err := s.spaces.GetSpace(ctx, req.SpaceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("Space not found")
	}
	if err != nil {
		return nil, err
	}

	// advisory only; nothing sets the flag during booking
	if space.Booked {
		return nil, apperr.Conflict("Space is already booked")
	}

	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	if req.Hours <= 0 {
		return nil, apperr.Validation("Hours must be a positive number")
	}
	total := float64(req.Hours) * space.Ratecard
	amount := int64(total)
	if amount < 1 {
		return nil, apperr.Validation("Amount must be at least 1")
	}

	result, err := s.gateway.STKPush(ctx, domain.STKPushRequest{
		PhoneNumber: phone,
		Amount:      amount,
		Reference:   fmt.Sprintf("Space Booking %d", space.ID),
		Description: fmt.Sprintf("Payment for Space %d", space.ID),
		Timestamp:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		UserID:            req.UserID,
		SpaceID:           space.ID,
		Hours:             req.Hours,
		TotalAmount:       total,
		PaymentStatus:     models.PaymentPending,
		MerchantRequestID: result.MerchantRequestID,
		CheckoutRequestID: result.CheckoutRequestID,
		PhoneNumber:       phone,
	}
	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		// the customer already has a prompt on their phone
		s.logger.Error().Err(err).
			Str("merchant_request_id", result.MerchantRequestID).
			Int64("space_id", space.ID).
			Int64("user_id", req.UserID).
			Msg("stk push accepted but booking not stored")
		return nil, fmt.Errorf("failed to store booking: %w", err)
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("space_id", space.ID).
		Int64("user_id", req.UserID).
		Float64("total_amount", total).
		Str("merchant_request_id", result.MerchantRequestID).
		Msg("booking created, awaiting payment")
	s.publish(events.EventBookingCreated, events.BookingEventPayload{
		BookingID:         booking.ID,
		UserID:            booking.UserID,
		SpaceID:           booking.SpaceID,
		Status:            booking.PaymentStatus,
		Amount:            booking.TotalAmount,
		MerchantRequestID: booking.MerchantRequestID,
	})

	return booking, nil
}

// HandlePaymentCallback reconciles a provider callback with the stored
// booking. It never fails; the outcome is reported for logging and metrics.
// Only a pending booking is changed, so replays are no-ops.
func (s *BookingService) HandlePaymentCallback(ctx context.Context, cb mpesa.STKCallback) CallbackOutcome {
	log := s.logger.With().
		Str("merchant_request_id", cb.MerchantRequestID).
		Str("checkout_request_id", cb.CheckoutRequestID).
		Str("result_code", cb.ResultCode.String()).
		Logger()

	if cb.MerchantRequestID == "" {
		log.Warn().Msg("callback without merchant request id")
		return CallbackInvalid
	}

	booking, err := s.bookings.GetBookingByMerchantRequestID(ctx, cb.MerchantRequestID)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn().Msg("callback for unknown booking")
		s.publishUnmatched(cb)
		return CallbackUnmatched
	}
	if err != nil {
		log.Error().Err(err).Msg("callback lookup failed")
		return CallbackError
	}

	log = log.With().Int64("booking_id", booking.ID).Logger()
	if booking.CheckoutRequestID != "" && cb.CheckoutRequestID != "" && booking.CheckoutRequestID != cb.CheckoutRequestID {
		log.Warn().Str("stored_checkout_request_id", booking.CheckoutRequestID).Msg("checkout request id mismatch")
	}

	status := models.PaymentFailed
	eventType := events.EventPaymentFailed
	outcome := CallbackFailed
	var receipt string
	if cb.Succeeded() {
		status = models.PaymentCompleted
		eventType = events.EventPaymentCompleted
		outcome = CallbackCompleted

		var ok bool
		receipt, ok = cb.ReceiptNumber()
		if !ok || receipt == "" {
			// stay pending so a complete replay can still settle with the receipt
			log.Warn().Msg("successful callback without receipt number, booking left pending")
			s.publishUnmatched(cb)
			return CallbackIncomplete
		}
	}

	err = s.bookings.SettleBooking(ctx, booking.ID, status, receipt)
	switch {
	case errors.Is(err, database.ErrAlreadySettled):
		log.Info().Str("status", booking.PaymentStatus).Msg("callback replay ignored")
		return CallbackDuplicate
	case errors.Is(err, database.ErrNotFound):
		log.Warn().Msg("booking vanished before settlement")
		s.publishUnmatched(cb)
		return CallbackUnmatched
	case err != nil:
		log.Error().Err(err).Msg("failed to settle booking")
		return CallbackError
	}

	if outcome == CallbackCompleted {
		log.Info().Str("receipt", receipt).Msg("payment completed")
	} else {
		log.Warn().Str("result_desc", cb.ResultDesc).Msg("payment failed")
	}
	s.publish(eventType, events.BookingEventPayload{
		BookingID:         booking.ID,
		UserID:            booking.UserID,
		SpaceID:           booking.SpaceID,
		Status:            status,
		Amount:            booking.TotalAmount,
		Receipt:           receipt,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode.String(),
		ResultDesc:        cb.ResultDesc,
	})
	return outcome
}

// CheckStatus returns the payment status of a booking.
func (s *BookingService) CheckStatus(ctx context.Context, bookingID int64) (string, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return "", apperr.NotFound("Booking not found")
	}
	if err != nil {
		return "", err
	}
	return booking.PaymentStatus, nil
}

func (s *BookingService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.bookings.ListBookings(ctx)
}

func (s *BookingService) publishUnmatched(cb mpesa.STKCallback) {
	s.publish(events.EventCallbackUnmatched, events.BookingEventPayload{
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode.String(),
		ResultDesc:        cb.ResultDesc,
	})
}

func (s *BookingService) publish(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", payload.BookingID).Msg("publish event error")
	}
}
