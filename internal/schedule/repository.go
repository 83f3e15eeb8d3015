package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository loads the read-only scheduling policy for the admission hot
// path. Changes to availability are rare admin writes and take effect for
// subsequent proposals only.
type Repository interface {
	GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (*WeeklyAvailability, error)
	GetExceptions(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AvailabilityException, error)
}
