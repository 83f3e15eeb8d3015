package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")

	// ErrStaleState is returned by compare-and-set state updates when the
	// stored state no longer matches the expected one.
	ErrStaleState = errors.New("appointment state changed concurrently")

	// ErrOverlapConflict is returned by InsertAppointment when the storage
	// overlap guard finds a live appointment on the same interval.
	ErrOverlapConflict = errors.New("appointment interval overlaps an existing booking")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// ListAppointmentsForDay returns every appointment of (doctor, date),
	// terminal states included; callers filter through the day index.
	ListAppointmentsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// InsertAppointment persists a new appointment together with its seeded
	// invoice, guarded against interval overlap with live appointments of
	// the same (doctor, date).
	InsertAppointment(ctx context.Context, appt *Appointment, inv *Invoice) error

	// UpdateAppointmentState is a compare-and-set transition write.
	UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to State, cancelReason *string) (*Appointment, error)

	GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	UpdateInvoicePayment(ctx context.Context, appointmentID uuid.UUID, status PaymentStatus) error

	// VoidInvoiceIfPending cancels the appointment's invoice only while its
	// payment is still pending. Paid and missing invoices are left untouched;
	// a settled invoice survives the appointment's cancellation.
	VoidInvoiceIfPending(ctx context.Context, appointmentID uuid.UUID) error

	SetInvoicePaymentLink(ctx context.Context, invoiceID uuid.UUID, link string) error

	// FindExpiredHolds returns pending-payment appointments created before
	// cutoff, for the hold-expiry worker.
	FindExpiredHolds(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
