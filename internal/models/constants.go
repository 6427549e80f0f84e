package models

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

const (
	RoleUser  = "users"
	RoleAdmin = "admin"
)

// UploadsURLPrefix is the public path under which space images are served.
const UploadsURLPrefix = "/uploads/"
