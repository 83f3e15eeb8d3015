package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

type State string

const (
	StatePendingPayment State = "pending-payment"
	StateScheduled      State = "scheduled"
	StateCheckedIn      State = "checked-in"
	StateInProgress     State = "in-progress"
	StateCompleted      State = "completed"
	StateCancelled      State = "cancelled"
	StateNoShow         State = "no-show"
)

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateNoShow
}

// OccupiesSlot reports whether an appointment in this state still holds its
// interval against new bookings.
func (s State) OccupiesSlot() bool {
	return s != StateCancelled && s != StateNoShow && s != StateCompleted
}

type Kind string

const (
	KindInPerson         Kind = "in-person"
	KindTeleconsultation Kind = "teleconsultation"
)

func (k Kind) Valid() bool {
	return k == KindInPerson || k == KindTeleconsultation
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentPaidCash   PaymentStatus = "paid-cash"
	PaymentPaidOnline PaymentStatus = "paid-online"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is a booked slot on a doctor's day. Date is midnight of the
// calendar day in the clinic timezone; Start and Duration place the booking
// on the day's slot grid.
type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	Date         time.Time
	Start        timeofday.Minute
	Duration     int
	Kind         Kind
	State        State
	InvoiceID    *uuid.UUID
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// End is the exclusive end minute of the booked interval.
func (a *Appointment) End() timeofday.Minute {
	return a.Start.Add(a.Duration)
}

// Invoice is the booking-linked billing slice: one active invoice per
// appointment, carrying the appointment id as a lookup back-reference only.
type Invoice struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	AmountCents   int64
	PaymentStatus PaymentStatus
	PaymentLink   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
	Invoice *Invoice
}
