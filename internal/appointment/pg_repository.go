package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email, phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	p.Phone = phone
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var startMin int
	var invoiceID *uuid.UUID
	var cancelReason *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&startMin,
		&a.Duration,
		&a.Kind,
		&a.State,
		&invoiceID,
		&cancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = timeofday.Minute(startMin)
	a.InvoiceID = invoiceID
	a.CancelReason = cancelReason
	return &a, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var link *string

	err := row.Scan(
		&inv.ID,
		&inv.AppointmentID,
		&inv.AmountCents,
		&inv.PaymentStatus,
		&link,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.PaymentLink = link
	return &inv, nil
}

const appointmentColumns = `id, doctor_id, patient_id, date, start_min, duration_min, kind, state, invoice_id, cancel_reason, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	if detail.Doctor, err = r.GetDoctorByID(ctx, appt.DoctorID); err != nil {
		return nil, err
	}
	if detail.Patient, err = r.GetPatientByID(ctx, appt.PatientID); err != nil {
		return nil, err
	}

	inv, err := r.GetInvoiceByAppointment(ctx, appt.ID)
	if err != nil && !errors.Is(err, ErrInvoiceNotFound) {
		return nil, err
	}
	detail.Invoice = inv

	return detail, nil
}

func (r *PgRepository) ListAppointmentsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_min
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt *Appointment, inv *Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// The WHERE NOT EXISTS guard is the storage half of the non-overlap
	// invariant; the Redis day lock is the fast path, this is the backstop.
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, start_min, duration_min, kind, state, invoice_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $2
			  AND date = $4
			  AND state NOT IN ('cancelled', 'no-show', 'completed')
			  AND start_min < $5 + $6
			  AND $5 < start_min + duration_min
		)
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.Date, int(appt.Start), appt.Duration,
		appt.Kind, appt.State, appt.InvoiceID)

	inserted, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrOverlapConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (id, appointment_id, amount_cents, payment_status, payment_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, inv.ID, inv.AppointmentID, inv.AmountCents, inv.PaymentStatus, inv.PaymentLink)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}

	*appt = *inserted
	return nil
}

func (r *PgRepository) UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to State, cancelReason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET state = $2,
		    cancel_reason = COALESCE($4, cancel_reason),
		    updated_at = now()
		WHERE id = $1
		  AND state = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, cancelReason)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStaleState
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, amount_cents, payment_status, payment_link, created_at, updated_at
		FROM invoices
		WHERE appointment_id = $1
	`, appointmentID)
	return scanInvoice(row)
}

func (r *PgRepository) UpdateInvoicePayment(ctx context.Context, appointmentID uuid.UUID, status PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET payment_status = $2,
		    updated_at = now()
		WHERE appointment_id = $1
	`, appointmentID, status)
	if err != nil {
		return fmt.Errorf("update invoice payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *PgRepository) VoidInvoiceIfPending(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET payment_status = 'cancelled',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND payment_status = 'pending'
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("void pending invoice: %w", err)
	}
	return nil
}

func (r *PgRepository) SetInvoicePaymentLink(ctx context.Context, invoiceID uuid.UUID, link string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET payment_link = $2,
		    updated_at = now()
		WHERE id = $1
	`, invoiceID, link)
	if err != nil {
		return fmt.Errorf("set invoice payment link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *PgRepository) FindExpiredHolds(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE state = 'pending-payment'
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
