package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is an in-memory schedule store for tests and local runs.
type MemRepository struct {
	mu         sync.Mutex
	weekly     map[uuid.UUID]*WeeklyAvailability
	exceptions map[string][]AvailabilityException
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		weekly:     make(map[uuid.UUID]*WeeklyAvailability),
		exceptions: make(map[string][]AvailabilityException),
	}
}

func (r *MemRepository) SetWeekly(w *WeeklyAvailability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weekly[w.DoctorID] = w
}

func (r *MemRepository) AddException(e AvailabilityException) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := exceptionKey(e.DoctorID, e.Date)
	r.exceptions[key] = append(r.exceptions[key], e)
}

func (r *MemRepository) GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (*WeeklyAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.weekly[doctorID]; ok {
		return w, nil
	}
	return &WeeklyAvailability{DoctorID: doctorID, Days: map[time.Weekday][]WorkingWindow{}}, nil
}

func (r *MemRepository) GetExceptions(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AvailabilityException, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exceptions[exceptionKey(doctorID, date)], nil
}

func exceptionKey(doctorID uuid.UUID, date time.Time) string {
	return doctorID.String() + ":" + date.Format("2006-01-02")
}
