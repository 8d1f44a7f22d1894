package queue

import (
	"context"
	"fmt"

	"quotebot/internal/storage"
	"quotebot/pkg/logx"
	"quotebot/pkg/randx"
)

// Store is the part of storage.Store the rotator needs.
type Store interface {
	Length(ctx context.Context) (int, error)
	ApplyRotation(ctx context.Context, target int) error
}

// Rotation describes one applied (or skipped) rotation.
type Rotation struct {
	// Length is the queue length read before rotating.
	Length int
	// Target is the 1-based position the former head now occupies.
	Target int
	// Skipped is set when the queue has a single item and the store was not touched.
	Skipped bool
}

// TargetPosition draws the new position of the head item for a queue of
// length n: uniformly in [n/2+1, n], or 1 when n == 1.
func TargetPosition(n int, rng randx.Source) int {
	if n <= 1 {
		return 1
	}
	return randx.IntRange(rng, n/2+1, n)
}

// Rotator moves the posted head item to a random position in the queue.
type Rotator struct {
	store Store
	rng   randx.Source
	log   logx.Logger
}

// NewRotator returns a Rotator over store. A nil rng draws from a
// time-seeded source.
func NewRotator(store Store, rng randx.Source, log logx.Logger) *Rotator {
	if rng == nil {
		rng = randx.New(0)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Rotator{store: store, rng: rng, log: log}
}

// Rotate moves the head item into the back half of the queue.
// Store errors are returned as is; the caller decides whether to stop.
func (r *Rotator) Rotate(ctx context.Context) (Rotation, error) {
	n, err := r.store.Length(ctx)
	if err != nil {
		return Rotation{}, fmt.Errorf("queue length: %w", err)
	}
	if n == 0 {
		return Rotation{}, storage.ErrEmptyQueue
	}

	rot := Rotation{Length: n, Target: TargetPosition(n, r.rng)}
	if n == 1 {
		rot.Skipped = true
		r.log.Debug("single item queue, rotation skipped")
		return rot, nil
	}
	if err := r.store.ApplyRotation(ctx, rot.Target); err != nil {
		return Rotation{}, fmt.Errorf("apply rotation to %d: %w", rot.Target, err)
	}
	r.log.Debug("queue rotated", logx.Int("length", n), logx.Int("target", rot.Target))
	return rot, nil
}
