package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/models"
)

const bookingColumns = `id, user_id, space_id, hours, total_amount, booking_date, payment_status,
        mpesa_receipt_number, merchant_request_id, checkout_request_id, phone_number, updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                               models.Booking
		receipt, merchant, checkout, ph sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.SpaceID, &b.Hours, &b.TotalAmount, &b.BookingDate, &b.PaymentStatus,
		&receipt, &merchant, &checkout, &ph, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.MpesaReceiptNumber = receipt.String
	b.MerchantRequestID = merchant.String
	b.CheckoutRequestID = checkout.String
	b.PhoneNumber = ph.String
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				user_id, space_id, hours, total_amount, booking_date, payment_status,
				mpesa_receipt_number, merchant_request_id, checkout_request_id, phone_number, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentPending
	}
	result, err := db.ExecContext(ctx, query,
		booking.UserID,
		booking.SpaceID,
		booking.Hours,
		booking.TotalAmount,
		now,
		booking.PaymentStatus,
		nullString(booking.MpesaReceiptNumber),
		nullString(booking.MerchantRequestID),
		nullString(booking.CheckoutRequestID),
		nullString(booking.PhoneNumber),
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.BookingDate = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return db.queryBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

func (db *DB) GetBookingByMerchantRequestID(ctx context.Context, merchantRequestID string) (*models.Booking, error) {
	return db.queryBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE merchant_request_id = ?`, merchantRequestID)
}

func (db *DB) queryBooking(ctx context.Context, query string, args ...any) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListBookings returns every booking, newest first.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY booking_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// SettleBooking moves a pending booking to a terminal payment status.
// It returns ErrAlreadySettled when the booking left pending earlier, so
// replayed callbacks never overwrite a settled row.
func (db *DB) SettleBooking(ctx context.Context, id int64, status, receipt string) error {
	if status != models.PaymentCompleted && status != models.PaymentFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	query := `UPDATE bookings SET payment_status = ?, mpesa_receipt_number = ?, updated_at = ?
              WHERE id = ? AND payment_status = ?`
	result, err := db.ExecContext(ctx, query, status, nullString(receipt), time.Now().UTC(), id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to settle booking: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check booking: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrAlreadySettled
}
