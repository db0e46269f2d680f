package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/reservation"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// WildcardResource marks a protection key that covers every resource on its
// date. A reservation without a resource assignment gets one: the engine
// cannot know which physical resource will ultimately serve it, so it
// over-protects the whole day rather than risk deleting the one slot the
// booking needs.
const WildcardResource = "*"

// ProtectionKey identifies what an active reservation shields: one date for
// one resource, or one date for all resources.
type ProtectionKey struct {
	Date     string // 2006-01-02
	Resource string // resource uuid or WildcardResource
}

// Resolution splits a candidate deletion set into slots that must be kept
// and slots that may go.
type Resolution struct {
	Keys      map[ProtectionKey]struct{}
	Protected []slot.Slot
	Deletable []slot.Slot
}

// Resolver decides, for any candidate slot deletion, whether an active
// reservation forbids it.
type Resolver struct {
	ledger reservation.Repository
}

func NewResolver(ledger reservation.Repository) *Resolver {
	return &Resolver{ledger: ledger}
}

// Resolve queries active reservations across the candidates' date range and
// partitions the candidates. A slot is protected if it carries a
// reservation reference, or if (date, resource) or (date, wildcard) appears
// in the key set.
//
// If the ledger query fails the error wraps ErrProtectionQuery and no
// partition is returned; callers must treat that as "everything protected"
// and abort the deletion.
func (r *Resolver) Resolve(ctx context.Context, businessID uuid.UUID, candidates []slot.Slot) (*Resolution, error) {
	res := &Resolution{Keys: make(map[ProtectionKey]struct{})}
	if len(candidates) == 0 {
		return res, nil
	}

	from, to := dateBounds(candidates)

	reservations, err := r.ledger.ListActiveInRange(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtectionQuery, err)
	}

	for _, rv := range reservations {
		key := ProtectionKey{Date: DateOnly(rv.Date).Format("2006-01-02"), Resource: WildcardResource}
		if rv.ResourceID != nil {
			key.Resource = rv.ResourceID.String()
		}
		res.Keys[key] = struct{}{}
	}

	for _, s := range candidates {
		if r.isProtected(res.Keys, s) {
			res.Protected = append(res.Protected, s)
		} else {
			res.Deletable = append(res.Deletable, s)
		}
	}

	return res, nil
}

func (r *Resolver) isProtected(keys map[ProtectionKey]struct{}, s slot.Slot) bool {
	if s.Referenced() {
		return true
	}

	date := s.SlotDate.Format("2006-01-02")
	if _, ok := keys[ProtectionKey{Date: date, Resource: WildcardResource}]; ok {
		return true
	}
	if s.ResourceID != nil {
		if _, ok := keys[ProtectionKey{Date: date, Resource: s.ResourceID.String()}]; ok {
			return true
		}
	}
	return false
}

func dateBounds(slots []slot.Slot) (from, to time.Time) {
	from, to = slots[0].SlotDate, slots[0].SlotDate
	for _, s := range slots[1:] {
		if s.SlotDate.Before(from) {
			from = s.SlotDate
		}
		if s.SlotDate.After(to) {
			to = s.SlotDate
		}
	}
	return from, to
}
