package models

import "time"

// Space is a bookable resource. Ratecard is the hourly price.
type Space struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  int64     `json:"capacity"`
	Amenities string    `json:"amenities"`
	Ratecard  float64   `json:"ratecard"`
	Image     string    `json:"image"`
	Booked    bool      `json:"isBooked"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// SpacePatch lists the fields a partial update may touch. Nil means unchanged.
type SpacePatch struct {
	Name      *string  `json:"name"`
	Location  *string  `json:"location"`
	Capacity  *int64   `json:"capacity"`
	Amenities *string  `json:"amenities"`
	Ratecard  *float64 `json:"ratecard"`
	Image     *string  `json:"image"`
	Booked    *bool    `json:"booked"`
}

// Apply copies every non-nil field onto s.
func (p SpacePatch) Apply(s *Space) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
	if p.Capacity != nil {
		s.Capacity = *p.Capacity
	}
	if p.Amenities != nil {
		s.Amenities = *p.Amenities
	}
	if p.Ratecard != nil {
		s.Ratecard = *p.Ratecard
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
	if p.Booked != nil {
		s.Booked = *p.Booked
	}
}
