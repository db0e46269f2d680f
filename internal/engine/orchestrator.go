package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotgrid/availability-engine/internal/config"
	"github.com/slotgrid/availability-engine/internal/metrics"
	redisclient "github.com/slotgrid/availability-engine/internal/redis"
	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// maxDeleteBatch bounds every delete statement the engine issues.
const maxDeleteBatch = 500

// Options tune a single engine run. Zero From/To means today through the
// policy horizon (cleanup defaults to the business's full slot range).
type Options struct {
	From      time.Time
	To        time.Time
	Force     bool // skip the conflict halt; callers use this after resolving conflicts
	BatchSize int  // rows per write batch, capped at maxDeleteBatch
}

// Report is the structured result of one engine run.
type Report struct {
	Created       int        // new slot rows inserted
	Deleted       int        // slot rows removed
	Preserved     int        // existing rows left untouched
	Protected     int        // rows kept because a reservation shields them
	Skipped       int        // desired slots whose key held a non-free row
	DaysProcessed int        // distinct open dates the run touched
	Conflicts     []Conflict // populated when the run halts on conflicts
}

func (r *Report) add(other Report) {
	r.Created += other.Created
	r.Deleted += other.Deleted
	r.Preserved += other.Preserved
	r.Protected += other.Protected
	r.Skipped += other.Skipped
	r.DaysProcessed += other.DaysProcessed
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
}

// Service sequences the four engine operations against the slot store.
// Every entry operation runs under the per-business advisory lock; within a
// run, the ledger read always happens before the deletion batches it
// authorizes.
type Service struct {
	schedules schedule.Repository
	ledger    reservation.Repository
	slots     slot.Repository
	resolver  *Resolver
	detector  *Detector
	locker    redisclient.Locker
	log       zerolog.Logger
	batchSize int
	now       func() time.Time
}

func NewService(
	schedules schedule.Repository,
	ledger reservation.Repository,
	slots slot.Repository,
	locker redisclient.Locker,
	cfg config.Config,
	logger zerolog.Logger,
) *Service {
	batch := cfg.DeleteBatchSize
	if batch <= 0 || batch > maxDeleteBatch {
		batch = maxDeleteBatch
	}
	return &Service{
		schedules: schedules,
		ledger:    ledger,
		slots:     slots,
		resolver:  NewResolver(ledger),
		detector:  NewDetector(ledger),
		locker:    locker,
		log:       logger,
		batchSize: batch,
		now:       time.Now,
	}
}

// Generate materializes missing slots for the window without touching any
// existing row. Re-running it with nothing changed is a no-op.
func (s *Service) Generate(ctx context.Context, businessID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, businessID, "generate", func(ctx context.Context) (Report, error) {
		return s.generate(ctx, businessID, opts, false)
	})
}

// Regenerate rebuilds the window on the current grid: free slots that fell
// off the new grid are deleted (through the resolver), missing ones are
// created. Reserved, occupied and blocked rows survive regardless.
func (s *Service) Regenerate(ctx context.Context, businessID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, businessID, "regenerate", func(ctx context.Context) (Report, error) {
		return s.generate(ctx, businessID, opts, true)
	})
}

// Cleanup deletes every unprotected slot in the window and creates nothing.
// With no reservations in range, zero slots remain afterwards.
func (s *Service) Cleanup(ctx context.Context, businessID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, businessID, "cleanup", func(ctx context.Context) (Report, error) {
		return s.cleanup(ctx, businessID, opts)
	})
}

// CleanupAndRegenerate runs cleanup then generate under a single lock
// acquisition. Each phase commits its own batches; a conflict halt in the
// generate phase does not undo the cleanup.
func (s *Service) CleanupAndRegenerate(ctx context.Context, businessID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, businessID, "cleanup_and_regenerate", func(ctx context.Context) (Report, error) {
		rep, err := s.cleanup(ctx, businessID, opts)
		if err != nil {
			return rep, err
		}
		genRep, err := s.generate(ctx, businessID, opts, false)
		rep.add(genRep)
		return rep, err
	})
}

// DetectConflicts is the pre-flight check: would the candidate weekly
// schedule orphan active reservations within the policy horizon? Read-only,
// so it takes no lock.
func (s *Service) DetectConflicts(ctx context.Context, businessID uuid.UUID, candidate schedule.WeekSchedule, opts Options) ([]Conflict, error) {
	policy, err := s.loadPolicy(ctx, businessID)
	if err != nil {
		return nil, err
	}

	from, to := s.window(opts, policy)

	exceptions, err := s.schedules.ListExceptions(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	return s.detector.Detect(ctx, businessID, candidate, exceptions, from, to)
}

func (s *Service) run(ctx context.Context, businessID uuid.UUID, op string, fn func(ctx context.Context) (Report, error)) (Report, error) {
	started := s.now()

	var rep Report
	var runErr error

	lockErr := s.locker.WithBusinessLock(ctx, businessID, func(ctx context.Context) error {
		rep, runErr = fn(ctx)
		return nil
	})
	if lockErr != nil {
		if errors.Is(lockErr, redisclient.ErrLockNotAcquired) {
			metrics.ObserveRun(op, "busy")
			return Report{}, ErrBusinessBusy
		}
		metrics.ObserveRun(op, "lock_error")
		return Report{}, fmt.Errorf("business lock: %w", lockErr)
	}

	outcome := "ok"
	var conflictErr *ConflictError
	var configErr *ConfigError
	switch {
	case runErr == nil:
	case errors.As(runErr, &conflictErr):
		outcome = "conflict"
		metrics.IncConflictHalt()
	case errors.As(runErr, &configErr):
		outcome = "config_incomplete"
	case errors.Is(runErr, ErrProtectionQuery):
		outcome = "protection_query_failed"
	default:
		outcome = "error"
	}

	metrics.ObserveRun(op, outcome)
	metrics.AddSlotsCreated(rep.Created)
	metrics.AddSlotsDeleted(rep.Deleted)
	metrics.AddSlotsProtected(rep.Protected)

	evt := s.log.Info()
	if runErr != nil && outcome != "conflict" && outcome != "config_incomplete" {
		evt = s.log.Error().Err(runErr)
	}
	evt.
		Str("operation", op).
		Str("business_id", businessID.String()).
		Str("outcome", outcome).
		Int("created", rep.Created).
		Int("deleted", rep.Deleted).
		Int("preserved", rep.Preserved).
		Int("protected", rep.Protected).
		Int("skipped", rep.Skipped).
		Int("days", rep.DaysProcessed).
		Dur("elapsed", s.now().Sub(started)).
		Msg("engine run finished")

	return rep, runErr
}

func (s *Service) generate(ctx context.Context, businessID uuid.UUID, opts Options, replace bool) (Report, error) {
	var rep Report

	now := s.now()

	policy, err := s.loadPolicy(ctx, businessID)
	if err != nil {
		return rep, err
	}

	resources, err := s.schedules.ListActiveResources(ctx, businessID)
	if err != nil {
		return rep, fmt.Errorf("list active resources: %w", err)
	}
	if len(resources) == 0 {
		return rep, &ConfigError{Missing: "active resources"}
	}

	from, to := s.window(opts, policy)

	week, err := s.schedules.GetWeekSchedule(ctx, businessID)
	if err != nil {
		return rep, fmt.Errorf("get week schedule: %w", err)
	}

	exceptions, err := s.schedules.ListExceptions(ctx, businessID, from, to)
	if err != nil {
		return rep, fmt.Errorf("list exceptions: %w", err)
	}

	if !opts.Force {
		conflicts, err := s.detector.Detect(ctx, businessID, week, exceptions, from, to)
		if err != nil {
			return rep, fmt.Errorf("detect conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			rep.Conflicts = conflicts
			return rep, &ConflictError{Conflicts: conflicts}
		}
	}

	batch := s.batch(opts)

	// Slots beyond the policy horizon are leftovers from a previously
	// larger advance_booking_days. Unprotected ones go; protected ones stay
	// until the ledger releases them. The boundary is the policy horizon,
	// never the run window: a narrow Options.To tops up a few days, it does
	// not shrink what the business sells.
	horizon := DateOnly(s.now()).AddDate(0, 0, policy.AdvanceBookingDays-1)
	beyond, err := s.slots.ListBeyond(ctx, businessID, horizon)
	if err != nil {
		return rep, fmt.Errorf("list slots beyond horizon: %w", err)
	}
	if len(beyond) > 0 {
		res, err := s.resolver.Resolve(ctx, businessID, beyond)
		if err != nil {
			return rep, err
		}
		rep.Protected += len(res.Protected)
		if err := s.deleteBatched(ctx, res.Deletable, batch, &rep); err != nil {
			return rep, err
		}
	}

	desired, err := BuildDesiredSlots(businessID, resources, from, to, *policy, week, exceptions, now)
	if err != nil {
		return rep, err
	}

	existing, err := s.slots.ListByRange(ctx, businessID, from, to)
	if err != nil {
		return rep, fmt.Errorf("list slots in window: %w", err)
	}

	existingByKey := make(map[string]slot.Slot, len(existing))
	for _, e := range existing {
		existingByKey[e.Key()] = e
	}

	desiredKeys := make(map[string]struct{}, len(desired))
	days := make(map[string]struct{})
	var toInsert []slot.Slot
	var stale []slot.Slot

	for _, d := range desired {
		desiredKeys[d.Key()] = struct{}{}
		days[d.SlotDate.Format("2006-01-02")] = struct{}{}

		e, ok := existingByKey[d.Key()]
		if !ok {
			toInsert = append(toInsert, d)
			continue
		}
		switch {
		case e.Status != slot.StatusFree || e.Referenced():
			// The key is taken by a reserved, occupied or blocked row; the
			// new grid never overwrites it.
			rep.Skipped++
			if e.Referenced() {
				rep.Protected++
			}
		case replace && (e.DurationMinutes != d.DurationMinutes || !e.EndTime.Equal(d.EndTime)):
			// Same start, different grid: replace the free row.
			stale = append(stale, e)
			toInsert = append(toInsert, d)
		default:
			rep.Preserved++
		}
	}

	if replace {
		for _, e := range existing {
			if _, ok := desiredKeys[e.Key()]; ok {
				continue
			}
			if e.Status != slot.StatusFree || e.Referenced() {
				rep.Preserved++
				if e.Referenced() {
					rep.Protected++
				}
				continue
			}
			stale = append(stale, e)
		}
	}

	if len(stale) > 0 {
		res, err := s.resolver.Resolve(ctx, businessID, stale)
		if err != nil {
			return rep, err
		}
		rep.Protected += len(res.Protected)
		if err := s.deleteBatched(ctx, res.Deletable, batch, &rep); err != nil {
			return rep, err
		}
	}

	if err := s.insertBatched(ctx, toInsert, batch, &rep); err != nil {
		return rep, err
	}

	rep.DaysProcessed = len(days)
	return rep, nil
}

func (s *Service) cleanup(ctx context.Context, businessID uuid.UUID, opts Options) (Report, error) {
	var rep Report

	from, to := opts.From, opts.To
	if from.IsZero() {
		from = farPast
	} else {
		from = DateOnly(from)
	}
	if to.IsZero() {
		to = farFuture
	} else {
		to = DateOnly(to)
	}

	existing, err := s.slots.ListByRange(ctx, businessID, from, to)
	if err != nil {
		return rep, fmt.Errorf("list slots in window: %w", err)
	}
	if len(existing) == 0 {
		return rep, nil
	}

	res, err := s.resolver.Resolve(ctx, businessID, existing)
	if err != nil {
		return rep, err
	}
	rep.Protected = len(res.Protected)

	days := make(map[string]struct{})
	for _, e := range existing {
		days[e.SlotDate.Format("2006-01-02")] = struct{}{}
	}
	rep.DaysProcessed = len(days)

	if err := s.deleteBatched(ctx, res.Deletable, s.batch(opts), &rep); err != nil {
		return rep, err
	}

	return rep, nil
}

var (
	farPast   = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	farFuture = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

func (s *Service) loadPolicy(ctx context.Context, businessID uuid.UUID) (*schedule.BookingPolicy, error) {
	policy, err := s.schedules.GetBookingPolicy(ctx, businessID)
	if err != nil {
		if errors.Is(err, schedule.ErrPolicyNotFound) {
			return nil, &ConfigError{Missing: "booking policy"}
		}
		return nil, fmt.Errorf("get booking policy: %w", err)
	}
	if policy.SlotDurationMinutes <= 0 {
		return nil, &ConfigError{Missing: "slot_duration_minutes"}
	}
	if policy.AdvanceBookingDays <= 0 {
		return nil, &ConfigError{Missing: "advance_booking_days"}
	}
	return policy, nil
}

func (s *Service) window(opts Options, policy *schedule.BookingPolicy) (from, to time.Time) {
	today := DateOnly(s.now())

	from = today
	if !opts.From.IsZero() && DateOnly(opts.From).After(today) {
		from = DateOnly(opts.From)
	}

	// advance_booking_days counts calendar days starting today, so the
	// inclusive horizon end is today + (days - 1).
	to = today.AddDate(0, 0, policy.AdvanceBookingDays-1)
	if !opts.To.IsZero() && DateOnly(opts.To).Before(to) {
		to = DateOnly(opts.To)
	}
	return from, to
}

func (s *Service) batch(opts Options) int {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.batchSize
	}
	if batch > maxDeleteBatch {
		batch = maxDeleteBatch
	}
	return batch
}

// deleteBatched removes the given slots in fixed-size batches. A failed
// batch stops the run; earlier batches stay committed and rep.Deleted
// carries the partial progress.
func (s *Service) deleteBatched(ctx context.Context, victims []slot.Slot, batch int, rep *Report) error {
	for start := 0; start < len(victims); start += batch {
		end := start + batch
		if end > len(victims) {
			end = len(victims)
		}

		ids := make([]uuid.UUID, 0, end-start)
		for _, v := range victims[start:end] {
			ids = append(ids, v.ID)
		}

		n, err := s.slots.DeleteByIDs(ctx, ids)
		rep.Deleted += n
		if err != nil {
			return &BatchError{Op: "delete", Completed: rep.Deleted, Err: err}
		}
	}
	return nil
}

func (s *Service) insertBatched(ctx context.Context, slots []slot.Slot, batch int, rep *Report) error {
	for start := 0; start < len(slots); start += batch {
		end := start + batch
		if end > len(slots) {
			end = len(slots)
		}

		n, err := s.slots.UpsertFree(ctx, slots[start:end])
		rep.Created += n
		if err != nil {
			return &BatchError{Op: "insert", Completed: rep.Created, Err: err}
		}
	}
	return nil
}
