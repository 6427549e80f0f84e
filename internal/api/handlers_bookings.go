package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"spacebook/internal/auth"
	"spacebook/internal/metrics"
	"spacebook/internal/mpesa"
	"spacebook/internal/report"
	"spacebook/internal/service"
)

type bookRequest struct {
	Hours       json.Number `json:"hours"`
	PhoneNumber string      `json:"phone_number"`
}

func (s *HTTPServer) handleBookSpace(w http.ResponseWriter, r *http.Request) {
	spaceID, ok := pathID(w, r)
	if !ok {
		return
	}
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	hours, err := strconv.ParseInt(req.Hours.String(), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Hours must be a positive number")
		return
	}

	booking, err := s.deps.Bookings.RequestBooking(r.Context(), service.BookingRequest{
		SpaceID:     spaceID,
		UserID:      identity.UserID,
		Hours:       hours,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   service.BookingInitiatedMessage,
		"bookingId": booking.ID,
	})
}

// handleMPesaCallback always acknowledges; Daraja retries anything else.
func (s *HTTPServer) handleMPesaCallback(w http.ResponseWriter, r *http.Request) {
	var env mpesa.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.log.Warn().Err(err).Msg("unreadable mpesa callback")
		metrics.IncCallback(string(service.CallbackInvalid))
	} else {
		outcome := s.deps.Bookings.HandlePaymentCallback(r.Context(), env.Body.STKCallback)
		metrics.IncCallback(string(outcome))
	}

	writeMessage(w, http.StatusOK, "Callback received")
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status, err := s.deps.Bookings.CheckStatus(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.ListBookings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.ListBookings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteBookings(&buf, bookings); err != nil {
		s.fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
