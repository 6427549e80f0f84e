package models

import "time"

type Booking struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	SpaceID            int64     `json:"space_id"`
	Hours              int64     `json:"hours"`
	TotalAmount        float64   `json:"total_amount"`
	BookingDate        time.Time `json:"booking_date"`
	PaymentStatus      string    `json:"payment_status"` // pending, completed, failed
	MpesaReceiptNumber string    `json:"mpesa_receipt_number,omitempty"`
	MerchantRequestID  string    `json:"-"`
	CheckoutRequestID  string    `json:"-"`
	PhoneNumber        string    `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

// IsSettled reports whether the payment reached a terminal state.
func (b *Booking) IsSettled() bool {
	return b.PaymentStatus == PaymentCompleted || b.PaymentStatus == PaymentFailed
}
