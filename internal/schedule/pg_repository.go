package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (*WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_min, end_min, slot_minutes
		FROM weekly_availability
		WHERE doctor_id = $1
		ORDER BY weekday, start_min
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weekly := &WeeklyAvailability{
		DoctorID: doctorID,
		Days:     make(map[time.Weekday][]WorkingWindow),
	}

	for rows.Next() {
		var weekday, startMin, endMin, slotMinutes int
		if err := rows.Scan(&weekday, &startMin, &endMin, &slotMinutes); err != nil {
			return nil, err
		}
		day := time.Weekday(weekday)
		weekly.Days[day] = append(weekly.Days[day], WorkingWindow{
			Start:       timeofday.Minute(startMin),
			End:         timeofday.Minute(endMin),
			SlotMinutes: slotMinutes,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return weekly, nil
}

func (r *PgRepository) GetExceptions(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AvailabilityException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, start_min, end_min, slot_minutes
		FROM availability_exceptions
		WHERE doctor_id = $1 AND date = $2
		ORDER BY kind, start_min
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Each row is one window; rows sharing a kind are grouped into a single
	// exception carrying all of that kind's windows.
	byKind := make(map[ExceptionKind]*AvailabilityException)
	var order []ExceptionKind

	for rows.Next() {
		var kind string
		var startMin, endMin int
		var slotMinutes *int
		if err := rows.Scan(&kind, &startMin, &endMin, &slotMinutes); err != nil {
			return nil, err
		}

		k := ExceptionKind(kind)
		exc, ok := byKind[k]
		if !ok {
			exc = &AvailabilityException{DoctorID: doctorID, Date: date, Kind: k}
			byKind[k] = exc
			order = append(order, k)
		}

		win := WorkingWindow{
			Start: timeofday.Minute(startMin),
			End:   timeofday.Minute(endMin),
		}
		if slotMinutes != nil {
			win.SlotMinutes = *slotMinutes
		}
		exc.Windows = append(exc.Windows, win)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]AvailabilityException, 0, len(order))
	for _, k := range order {
		out = append(out, *byKind[k])
	}
	return out, nil
}
