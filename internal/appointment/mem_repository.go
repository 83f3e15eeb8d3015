package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/interval"
)

// MemRepository is an in-memory Repository used by tests and local runs
// without Postgres. It mirrors the Pg implementation's semantics, including
// the overlap guard on insert and compare-and-set state updates.
type MemRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	invoices     map[uuid.UUID]Invoice // keyed by appointment id
	events       []EventLog
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
		invoices:     make(map[uuid.UUID]Invoice),
	}
}

func (r *MemRepository) AddDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	detail := &AppointmentDetail{Appointment: a}
	if d, ok := r.doctors[a.DoctorID]; ok {
		detail.Doctor = &d
	}
	if p, ok := r.patients[a.PatientID]; ok {
		detail.Patient = &p
	}
	if inv, ok := r.invoices[a.ID]; ok {
		detail.Invoice = &inv
	}
	return detail, nil
}

func (r *MemRepository) ListAppointmentsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemRepository) InsertAppointment(ctx context.Context, appt *Appointment, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := interval.Span{Start: int(appt.Start), End: int(appt.End())}
	for _, a := range r.appointments {
		if a.DoctorID != appt.DoctorID || !a.Date.Equal(appt.Date) || !a.State.OccupiesSlot() {
			continue
		}
		if span.Overlaps(interval.Span{Start: int(a.Start), End: int(a.End())}) {
			return ErrOverlapConflict
		}
	}

	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = *appt

	inv.CreatedAt = now
	inv.UpdatedAt = now
	r.invoices[appt.ID] = *inv
	return nil
}

func (r *MemRepository) UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to State, cancelReason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.State != from {
		return nil, ErrStaleState
	}

	a.State = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemRepository) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[appointmentID]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func (r *MemRepository) UpdateInvoicePayment(ctx context.Context, appointmentID uuid.UUID, status PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[appointmentID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.PaymentStatus = status
	inv.UpdatedAt = time.Now()
	r.invoices[appointmentID] = inv
	return nil
}

func (r *MemRepository) VoidInvoiceIfPending(ctx context.Context, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[appointmentID]
	if !ok || inv.PaymentStatus != PaymentPending {
		return nil
	}
	inv.PaymentStatus = PaymentCancelled
	inv.UpdatedAt = time.Now()
	r.invoices[appointmentID] = inv
	return nil
}

func (r *MemRepository) SetInvoicePaymentLink(ctx context.Context, invoiceID uuid.UUID, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for apptID, inv := range r.invoices {
		if inv.ID == invoiceID {
			inv.PaymentLink = &link
			inv.UpdatedAt = time.Now()
			r.invoices[apptID] = inv
			return nil
		}
	}
	return ErrInvoiceNotFound
}

func (r *MemRepository) FindExpiredHolds(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.State == StatePendingPayment && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
