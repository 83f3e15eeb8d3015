package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-scheduling/internal/config"
	"github.com/medbook/clinic-scheduling/internal/interval"
	"github.com/medbook/clinic-scheduling/internal/payments"
	redisclient "github.com/medbook/clinic-scheduling/internal/redis"
	"github.com/medbook/clinic-scheduling/internal/schedule"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

const (
	EventAppointmentBooked       = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled    = "APPOINTMENT_CANCELLED"
	EventAppointmentStateChanged = "APPOINTMENT_STATE_CHANGED"
	EventPaymentHoldExpired      = "PAYMENT_HOLD_EXPIRED"
)

var (
	ErrInvalidInput        = errors.New("invalid booking input")
	ErrDoctorInactive      = errors.New("doctor is not active")
	ErrOutsideWorkingHours = errors.New("slot lies outside the doctor's working hours")
	ErrSlotMisaligned      = errors.New("slot start is not on the day's slot grid")
	ErrSlotInPast          = errors.New("slot start is not in the future")
	ErrSlotTaken           = errors.New("slot already has a booking")
	ErrDayBeingBooked      = errors.New("doctor's day is currently being booked, please retry")
)

// Service is the booking admission controller: it validates proposals
// against the resolved availability, admits them under the doctor-day lock,
// and drives the appointment lifecycle.
type Service struct {
	repo      Repository
	schedRepo schedule.Repository
	locker    redisclient.Locker
	linker    payments.Linker
	cfg       config.Config
	log       zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, schedRepo schedule.Repository, locker redisclient.Locker, linker payments.Linker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		schedRepo: schedRepo,
		locker:    locker,
		linker:    linker,
		cfg:       cfg,
		log:       log.With().Str("component", "appointment-service").Logger(),
		now:       time.Now,
	}
}

// ProposeRequest carries the raw inputs of a booking proposal. Date and
// Start stay strings so that format validation belongs to the core, not
// the transport.
type ProposeRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	Date            string // YYYY-MM-DD
	Start           string // HH:MM
	DurationMinutes int
	Kind            Kind
}

// Propose validates and admits a booking. On success the appointment is
// persisted atomically with its seeded invoice and exactly one proposal per
// slot can ever succeed: the doctor-day lock serializes admissions and the
// storage overlap guard backstops it.
func (s *Service) Propose(ctx context.Context, req ProposeRequest) (*AppointmentDetail, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	date, err := timeofday.ParseDate(req.Date, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	start, err := timeofday.Parse(req.Start)
	if err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	day, err := s.resolveDay(ctx, req.DoctorID, date)
	if err != nil {
		return nil, err
	}

	if req.DurationMinutes != day.SlotMinutes {
		return nil, fmt.Errorf("%w: duration must equal the day's %d-minute slot", ErrInvalidInput, day.SlotMinutes)
	}

	span := interval.Span{Start: int(start), End: int(start) + req.DurationMinutes}
	if !day.Windows.Contains(span) {
		return nil, ErrOutsideWorkingHours
	}
	if !start.OnGrid(day.SlotMinutes, day.Anchor) {
		return nil, ErrSlotMisaligned
	}
	if !timeofday.At(date, start).After(s.now().In(s.cfg.Location)) {
		return nil, ErrSlotInPast
	}

	state := StatePendingPayment
	if req.Kind == KindInPerson && s.cfg.PayLaterInPerson {
		state = StateScheduled
	}

	invoiceID := uuid.New()
	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      date,
		Start:     start,
		Duration:  req.DurationMinutes,
		Kind:      req.Kind,
		State:     state,
		InvoiceID: &invoiceID,
	}
	inv := &Invoice{
		ID:            invoiceID,
		AppointmentID: appt.ID,
		AmountCents:   s.cfg.ConsultationFee,
		PaymentStatus: PaymentPending,
	}

	if err := s.admit(ctx, appt, inv, span); err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
		"date":       timeofday.FormatDate(appt.Date),
		"start":      appt.Start.String(),
		"kind":       string(appt.Kind),
		"state":      string(appt.State),
	})

	if appt.State == StatePendingPayment {
		s.attachPaymentLink(ctx, doctor, inv)
	}

	return &AppointmentDetail{Appointment: *appt, Doctor: doctor, Invoice: inv}, nil
}

// admit runs the critical section: re-read the day under the lock, check
// for overlap, insert. A busy lock is retried once before surfacing.
func (s *Service) admit(ctx context.Context, appt *Appointment, inv *Invoice, span interval.Span) error {
	attempt := func() error {
		return s.locker.WithDayLock(ctx, appt.DoctorID, appt.Date, func(lockCtx context.Context) error {
			existing, err := s.repo.ListAppointmentsForDay(lockCtx, appt.DoctorID, appt.Date)
			if err != nil {
				return fmt.Errorf("list day appointments: %w", err)
			}
			if NewDayIndex(existing).Conflicts(span.Start, span.End) {
				return ErrSlotTaken
			}

			if err := s.repo.InsertAppointment(lockCtx, appt, inv); err != nil {
				if errors.Is(err, ErrOverlapConflict) {
					return ErrSlotTaken
				}
				return fmt.Errorf("insert appointment: %w", err)
			}
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		err = attempt()
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrDayBeingBooked
	}
	return err
}

func (s *Service) attachPaymentLink(ctx context.Context, doctor *Doctor, inv *Invoice) {
	desc := fmt.Sprintf("Consultation with %s", doctor.Name)
	link, err := s.linker.CreatePaymentLink(ctx, inv.ID, inv.AmountCents, desc)
	if err != nil {
		// Booking stands either way; the patient can still pay cash.
		s.log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("payment link creation failed")
		return
	}
	if link == "" {
		return
	}
	if err := s.repo.SetInvoicePaymentLink(ctx, inv.ID, link); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("store payment link failed")
		return
	}
	inv.PaymentLink = &link
}

// ListAvailableSlots returns the full candidate slot sequence for a doctor
// and date, free and blocked positions alike.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, dateStr string) ([]schedule.CandidateSlot, error) {
	date, err := timeofday.ParseDate(dateStr, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	day, err := s.resolveDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListAppointmentsForDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	now := s.now().In(s.cfg.Location)
	return schedule.GenerateSlots(day, NewDayIndex(existing).Booked(), date, now), nil
}

func (s *Service) resolveDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (schedule.EffectiveDay, error) {
	weekly, err := s.schedRepo.GetWeeklyAvailability(ctx, doctorID)
	if err != nil {
		return schedule.EffectiveDay{}, fmt.Errorf("load weekly availability: %w", err)
	}
	exceptions, err := s.schedRepo.GetExceptions(ctx, doctorID, date)
	if err != nil {
		return schedule.EffectiveDay{}, fmt.Errorf("load availability exceptions: %w", err)
	}
	return schedule.Resolve(weekly, exceptions, date, s.cfg.DefaultSlotMinutes)
}

// Cancel transitions an appointment to cancelled and voids a still-pending
// invoice; an already-settled payment is kept for reconciliation. The freed
// interval becomes proposable again immediately.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	appt, err := s.applyEvent(ctx, id, EventCancel, reasonPtr)
	if err != nil {
		return nil, err
	}

	if err := s.repo.VoidInvoiceIfPending(ctx, appt.ID); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("cancel invoice failed")
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"reason": reason,
	})

	return appt, nil
}

// Transition applies a lifecycle event to an appointment. Payment events
// also update the linked invoice.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, ev Event) (*Appointment, error) {
	appt, err := s.applyEvent(ctx, id, ev, nil)
	if err != nil {
		return nil, err
	}

	switch ev {
	case EventPayOnline:
		err = s.repo.UpdateInvoicePayment(ctx, appt.ID, PaymentPaidOnline)
	case EventMarkCashPaid:
		err = s.repo.UpdateInvoicePayment(ctx, appt.ID, PaymentPaidCash)
	case EventCancel:
		err = s.repo.VoidInvoiceIfPending(ctx, appt.ID)
	}
	if err != nil && !errors.Is(err, ErrInvoiceNotFound) {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("invoice update failed")
	}

	s.logEvent(ctx, appt.ID, EventAppointmentStateChanged, map[string]any{
		"event": string(ev),
		"state": string(appt.State),
	})

	return appt, nil
}

// applyEvent computes the target state and writes it with compare-and-set.
// A stale read races with another transition; one reload-and-retry keeps
// honest callers moving without coercing illegal paths.
func (s *Service) applyEvent(ctx context.Context, id uuid.UUID, ev Event, cancelReason *string) (*Appointment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, err
		}

		target, err := Next(appt, ev, s.now().In(s.cfg.Location), s.cfg.CheckInGrace)
		if err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateAppointmentState(ctx, appt.ID, appt.State, target, cancelReason)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrStaleState) {
			return nil, fmt.Errorf("update appointment state: %w", err)
		}
	}
	return nil, ErrIllegalTransition
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ExpirePaymentHolds cancels pending-payment appointments whose hold TTL
// has lapsed, freeing their slots. Intended for the periodic worker.
func (s *Service) ExpirePaymentHolds(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.PaymentHoldTTL)
	holds, err := s.repo.FindExpiredHolds(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find expired payment holds: %w", err)
	}

	reason := "payment_hold_expired"
	for _, appt := range holds {
		_, err := s.repo.UpdateAppointmentState(ctx, appt.ID, StatePendingPayment, StateCancelled, &reason)
		if err != nil {
			if !errors.Is(err, ErrStaleState) && !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("expire hold failed")
			}
			continue
		}
		if err := s.repo.VoidInvoiceIfPending(ctx, appt.ID); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("cancel invoice failed")
		}
		s.logEvent(ctx, appt.ID, EventPaymentHoldExpired, map[string]any{
			"held_since": appt.CreatedAt,
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload failed")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appointmentID.String()).Msg("insert event log failed")
	}
}
