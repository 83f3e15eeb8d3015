package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/clinic-scheduling/internal/config"
	"github.com/medbook/clinic-scheduling/internal/payments"
	redisclient "github.com/medbook/clinic-scheduling/internal/redis"
	"github.com/medbook/clinic-scheduling/internal/schedule"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

type fixture struct {
	svc     *Service
	repo    *MemRepository
	sched   *schedule.MemRepository
	doctor  Doctor
	patient Patient
	date    time.Time // Monday 2026-03-02
}

// newFixture wires the service against in-memory stores with a doctor working
// Monday 09:00-12:00 on a 30-minute grid and the clock frozen at 08:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemRepository()
	sched := schedule.NewMemRepository()

	cfg := config.Config{
		Location:           time.UTC,
		DefaultSlotMinutes: 30,
		CheckInGrace:       15 * time.Minute,
		PaymentHoldTTL:     30 * time.Minute,
		PayLaterInPerson:   true,
		ConsultationFee:    50000,
	}

	svc := NewService(repo, sched, redisclient.NewLocalDayLocker(), payments.Disabled{}, cfg, zerolog.Nop())

	date, err := timeofday.ParseDate("2026-03-02", time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Monday, date.Weekday())
	svc.now = func() time.Time { return timeofday.At(date, 480) } // 08:00

	doctor := Doctor{ID: uuid.New(), Name: "Dr. Asha Rao", Active: true}
	patient := Patient{ID: uuid.New(), Name: "Ravi Kumar"}
	repo.AddDoctor(doctor)
	repo.AddPatient(patient)

	sched.SetWeekly(&schedule.WeeklyAvailability{
		DoctorID: doctor.ID,
		Days: map[time.Weekday][]schedule.WorkingWindow{
			time.Monday: {{Start: 540, End: 720, SlotMinutes: 30}},
		},
	})

	return &fixture{svc: svc, repo: repo, sched: sched, doctor: doctor, patient: patient, date: date}
}

func (f *fixture) propose(start string) (*AppointmentDetail, error) {
	return f.svc.Propose(context.Background(), ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           start,
		DurationMinutes: 30,
		Kind:            KindInPerson,
	})
}

func TestProposeInPerson(t *testing.T) {
	f := newFixture(t)

	detail, err := f.propose("10:00")
	require.NoError(t, err)

	assert.Equal(t, StateScheduled, detail.State)
	assert.Equal(t, KindInPerson, detail.Kind)
	assert.Equal(t, timeofday.Minute(600), detail.Start)
	assert.Equal(t, timeofday.Minute(630), detail.End())

	require.NotNil(t, detail.Invoice)
	assert.Equal(t, int64(50000), detail.Invoice.AmountCents)
	assert.Equal(t, PaymentPending, detail.Invoice.PaymentStatus)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
}

func TestProposeTeleconsultationPendsPayment(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.Propose(context.Background(), ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "09:30",
		DurationMinutes: 30,
		Kind:            KindTeleconsultation,
	})
	require.NoError(t, err)
	assert.Equal(t, StatePendingPayment, detail.State)
}

func TestProposeRejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.propose("10:00")
	require.NoError(t, err)

	cases := []struct {
		name    string
		mutate  func(*ProposeRequest)
		wantErr error
	}{
		{"duplicate slot", func(r *ProposeRequest) { r.Start = "10:00" }, ErrSlotTaken},
		{"off grid", func(r *ProposeRequest) { r.Start = "09:45" }, ErrSlotMisaligned},
		{"outside hours", func(r *ProposeRequest) { r.Start = "13:00" }, ErrOutsideWorkingHours},
		{"straddles closing", func(r *ProposeRequest) { r.Start = "11:45" }, ErrOutsideWorkingHours},
		{"wrong duration", func(r *ProposeRequest) { r.DurationMinutes = 45 }, ErrInvalidInput},
		{"zero duration", func(r *ProposeRequest) { r.DurationMinutes = 0 }, ErrInvalidInput},
		{"bad kind", func(r *ProposeRequest) { r.Kind = "house-call" }, ErrInvalidInput},
		{"bad date", func(r *ProposeRequest) { r.Date = "03/02/2026" }, ErrInvalidInput},
		{"bad time", func(r *ProposeRequest) { r.Start = "9:30" }, timeofday.ErrInvalidTimeFormat},
		{"unknown doctor", func(r *ProposeRequest) { r.DoctorID = uuid.New() }, ErrDoctorNotFound},
		{"unknown patient", func(r *ProposeRequest) { r.PatientID = uuid.New() }, ErrPatientNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := ProposeRequest{
				DoctorID:        f.doctor.ID,
				PatientID:       f.patient.ID,
				Date:            "2026-03-02",
				Start:           "09:00",
				DurationMinutes: 30,
				Kind:            KindInPerson,
			}
			tc.mutate(&req)
			_, err := f.svc.Propose(context.Background(), req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestProposePastSlot(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return timeofday.At(f.date, 600) } // 10:00

	_, err := f.propose("10:00")
	require.ErrorIs(t, err, ErrSlotInPast)

	_, err = f.propose("09:30")
	require.ErrorIs(t, err, ErrSlotInPast)

	_, err = f.propose("10:30")
	require.NoError(t, err)
}

func TestProposeInactiveDoctor(t *testing.T) {
	f := newFixture(t)

	f.doctor.Active = false
	f.repo.AddDoctor(f.doctor)

	_, err := f.propose("10:00")
	require.ErrorIs(t, err, ErrDoctorInactive)
}

func TestProposeNoAvailability(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Propose(context.Background(), ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-03", // Tuesday, no weekly windows
		Start:           "10:00",
		DurationMinutes: 30,
		Kind:            KindInPerson,
	})
	require.ErrorIs(t, err, schedule.ErrNoAvailability)
}

func TestProposeOnOverrideGrid(t *testing.T) {
	f := newFixture(t)

	f.sched.AddException(schedule.AvailabilityException{
		DoctorID: f.doctor.ID,
		Date:     f.date,
		Kind:     schedule.ExceptionOverride,
		Windows:  []schedule.WorkingWindow{{Start: 840, End: 900, SlotMinutes: 15}},
	})

	// The override replaces the weekly windows entirely: the usual morning
	// grid is gone and its 30-minute duration no longer matches.
	_, err := f.propose("10:00")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Propose(context.Background(), ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "10:00",
		DurationMinutes: 15,
		Kind:            KindInPerson,
	})
	require.ErrorIs(t, err, ErrOutsideWorkingHours)

	detail, err := f.svc.Propose(context.Background(), ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "14:15",
		DurationMinutes: 15,
		Kind:            KindInPerson,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, detail.Duration)
}

func TestListAvailableSlots(t *testing.T) {
	f := newFixture(t)

	_, err := f.propose("09:30")
	require.NoError(t, err)

	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, slots, 6)

	var free, booked []string
	for _, sl := range slots {
		if sl.Free {
			free = append(free, sl.Start.String())
		} else if sl.Reason == schedule.ReasonBooked {
			booked = append(booked, sl.Start.String())
		}
	}
	assert.Equal(t, []string{"09:00", "10:00", "10:30", "11:00", "11:30"}, free)
	assert.Equal(t, []string{"09:30"}, booked)
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)

	first, err := f.propose("10:00")
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), first.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "patient request", *cancelled.CancelReason)

	inv, err := f.repo.GetInvoiceByAppointment(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentCancelled, inv.PaymentStatus)

	// The interval is free again for a fresh proposal.
	second, err := f.propose("10:00")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCancelKeepsSettledInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paidOnline, err := f.svc.Propose(ctx, ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "10:00",
		DurationMinutes: 30,
		Kind:            KindTeleconsultation,
	})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, paidOnline.ID, EventPayOnline)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, paidOnline.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, cancelled.State)

	// The settled payment survives cancellation for reconciliation.
	inv, err := f.repo.GetInvoiceByAppointment(ctx, paidOnline.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaidOnline, inv.PaymentStatus)

	paidCash, err := f.propose("10:30")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, paidCash.ID, EventMarkCashPaid)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, paidCash.ID, EventCancel)
	require.NoError(t, err)

	inv, err = f.repo.GetInvoiceByAppointment(ctx, paidCash.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaidCash, inv.PaymentStatus)
}

func TestTransitionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.Propose(ctx, ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "10:00",
		DurationMinutes: 30,
		Kind:            KindTeleconsultation,
	})
	require.NoError(t, err)
	require.Equal(t, StatePendingPayment, detail.State)

	appt, err := f.svc.Transition(ctx, detail.ID, EventPayOnline)
	require.NoError(t, err)
	assert.Equal(t, StateScheduled, appt.State)

	inv, err := f.repo.GetInvoiceByAppointment(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaidOnline, inv.PaymentStatus)

	// 09:50 is inside the 15-minute grace window before a 10:00 slot.
	f.svc.now = func() time.Time { return timeofday.At(f.date, 590) }
	appt, err = f.svc.Transition(ctx, detail.ID, EventCheckIn)
	require.NoError(t, err)
	assert.Equal(t, StateCheckedIn, appt.State)

	f.svc.now = func() time.Time { return timeofday.At(f.date, 600) }
	appt, err = f.svc.Transition(ctx, detail.ID, EventStart)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, appt.State)

	appt, err = f.svc.Transition(ctx, detail.ID, EventComplete)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, appt.State)

	_, err = f.svc.Transition(ctx, detail.ID, EventCancel)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTransitionCashPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.propose("11:00")
	require.NoError(t, err)

	appt, err := f.svc.Transition(ctx, detail.ID, EventMarkCashPaid)
	require.NoError(t, err)
	assert.Equal(t, StateScheduled, appt.State)

	inv, err := f.repo.GetInvoiceByAppointment(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaidCash, inv.PaymentStatus)
}

func TestTransitionNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.propose("10:00")
	require.NoError(t, err)

	// Too early: the slot has not ended yet.
	f.svc.now = func() time.Time { return timeofday.At(f.date, 620) }
	_, err = f.svc.Transition(ctx, detail.ID, EventMarkNoShow)
	require.ErrorIs(t, err, ErrIllegalTransition)

	f.svc.now = func() time.Time { return timeofday.At(f.date, 630) }
	appt, err := f.svc.Transition(ctx, detail.ID, EventMarkNoShow)
	require.NoError(t, err)
	assert.Equal(t, StateNoShow, appt.State)
}

func TestTransitionUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), uuid.New(), EventCheckIn)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestExpirePaymentHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.svc.Propose(ctx, ProposeRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Date:            "2026-03-02",
		Start:           "10:00",
		DurationMinutes: 30,
		Kind:            KindTeleconsultation,
	})
	require.NoError(t, err)

	scheduled, err := f.propose("10:30")
	require.NoError(t, err)

	// Advance the clock past the 30-minute hold TTL.
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, f.svc.ExpirePaymentHolds(ctx))

	expired, err := f.repo.GetAppointmentByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, expired.State)
	require.NotNil(t, expired.CancelReason)
	assert.Equal(t, "payment_hold_expired", *expired.CancelReason)

	inv, err := f.repo.GetInvoiceByAppointment(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentCancelled, inv.PaymentStatus)

	// Scheduled appointments are untouched by hold expiry.
	kept, err := f.repo.GetAppointmentByID(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, StateScheduled, kept.State)
}

func TestConcurrentProposalsSingleWinner(t *testing.T) {
	f := newFixture(t)

	const racers = 16

	patients := make([]Patient, racers)
	for i := range patients {
		patients[i] = Patient{ID: uuid.New(), Name: "Racer"}
		f.repo.AddPatient(patients[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Propose(context.Background(), ProposeRequest{
				DoctorID:        f.doctor.ID,
				PatientID:       patients[i].ID,
				Date:            "2026-03-02",
				Start:           "10:00",
				DurationMinutes: 30,
				Kind:            KindInPerson,
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrSlotTaken)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	appts, err := f.repo.ListAppointmentsForDay(context.Background(), f.doctor.ID, f.date)
	require.NoError(t, err)
	require.Len(t, appts, 1)
}
