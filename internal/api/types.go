package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/appointment"
	"github.com/medbook/clinic-scheduling/internal/schedule"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

type ProposeAppointmentRequest struct {
	DoctorID        string `json:"doctor_id"`
	PatientID       string `json:"patient_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Kind            string `json:"kind"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type TransitionAppointmentRequest struct {
	Event string `json:"event"`
}

type InvoiceResponse struct {
	ID            uuid.UUID `json:"id"`
	AmountCents   int64     `json:"amount_cents"`
	PaymentStatus string    `json:"payment_status"`
	PaymentLink   *string   `json:"payment_link,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID        `json:"id"`
	DoctorID     uuid.UUID        `json:"doctor_id"`
	PatientID    uuid.UUID        `json:"patient_id"`
	Date         string           `json:"date"`
	Start        string           `json:"start"`
	End          string           `json:"end"`
	Duration     int              `json:"duration_minutes"`
	Kind         string           `json:"kind"`
	State        string           `json:"state"`
	CancelReason *string          `json:"cancel_reason,omitempty"`
	Invoice      *InvoiceResponse `json:"invoice,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

type SlotResponse struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Free   bool   `json:"free"`
	Reason string `json:"reason,omitempty"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func appointmentResponse(a *appointment.Appointment, inv *appointment.Invoice) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		Date:         timeofday.FormatDate(a.Date),
		Start:        a.Start.String(),
		End:          a.End().String(),
		Duration:     a.Duration,
		Kind:         string(a.Kind),
		State:        string(a.State),
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
	}
	if inv != nil {
		resp.Invoice = &InvoiceResponse{
			ID:            inv.ID,
			AmountCents:   inv.AmountCents,
			PaymentStatus: string(inv.PaymentStatus),
			PaymentLink:   inv.PaymentLink,
		}
	}
	return resp
}

func slotsResponse(doctorID uuid.UUID, date string, slots []schedule.CandidateSlot) SlotsResponse {
	resp := SlotsResponse{DoctorID: doctorID, Date: date, Slots: make([]SlotResponse, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start:  s.Start.String(),
			End:    s.End.String(),
			Free:   s.Free,
			Reason: string(s.Reason),
		})
	}
	return resp
}
