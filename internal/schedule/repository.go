package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrPolicyNotFound   = errors.New("booking policy not found")
)

// Repository reads the schedule source: businesses, resources, weekly
// operating hours, calendar exceptions, and the booking policy. The engine
// only reads; CreateException exists for the caller-side auto-protect
// mitigation and is never invoked from inside an engine run.
type Repository interface {
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)

	ListActiveResources(ctx context.Context, businessID uuid.UUID) ([]Resource, error)

	GetWeekSchedule(ctx context.Context, businessID uuid.UUID) (WeekSchedule, error)
	ListExceptions(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]CalendarException, error)
	GetBookingPolicy(ctx context.Context, businessID uuid.UUID) (*BookingPolicy, error)

	CreateException(ctx context.Context, ex CalendarException) error
}
