// README: Capacity ledger contract, in-memory backend and a directory wrapper that overlays live counts.
package capacity

import (
	"context"
	"sync"

	"routebite/internal/modules/restaurant"
	"routebite/internal/types"
)

// Ledger tracks active orders per restaurant.
// TryReserve admits one more order only while the count is below limit.
// Release decrements, floored at 0, so a repeated release is a no-op.
type Ledger interface {
	TryReserve(ctx context.Context, id types.ID, limit int) (bool, error)
	Release(ctx context.Context, id types.ID) error
	Counts(ctx context.Context, ids []types.ID) (map[types.ID]int, error)
}

type MemoryLedger struct {
	mu     sync.Mutex
	counts map[types.ID]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counts: make(map[types.ID]int)}
}

func (l *MemoryLedger) TryReserve(_ context.Context, id types.ID, limit int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[id] >= limit {
		return false, nil
	}
	l.counts[id]++
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, id types.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[id] > 0 {
		l.counts[id]--
	}
	return nil
}

func (l *MemoryLedger) Counts(_ context.Context, ids []types.ID) (map[types.ID]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[types.ID]int, len(ids))
	for _, id := range ids {
		out[id] = l.counts[id]
	}
	return out, nil
}

// Source is the read side of the restaurant directory.
type Source interface {
	Get(ctx context.Context, id types.ID) (restaurant.Snapshot, error)
	ListActive(ctx context.Context) ([]restaurant.Snapshot, error)
	GetMany(ctx context.Context, ids []types.ID) ([]restaurant.Snapshot, error)
}

// Directory serves snapshots whose CurrentOrders come from a ledger that lives
// outside the restaurants table (redis, memory).
type Directory struct {
	src    Source
	ledger Ledger
}

func NewDirectory(src Source, ledger Ledger) *Directory {
	return &Directory{src: src, ledger: ledger}
}

func (d *Directory) Get(ctx context.Context, id types.ID) (restaurant.Snapshot, error) {
	snap, err := d.src.Get(ctx, id)
	if err != nil {
		return restaurant.Snapshot{}, err
	}
	snaps := []restaurant.Snapshot{snap}
	if err := d.overlay(ctx, snaps); err != nil {
		return restaurant.Snapshot{}, err
	}
	return snaps[0], nil
}

func (d *Directory) ListActive(ctx context.Context) ([]restaurant.Snapshot, error) {
	snaps, err := d.src.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return snaps, d.overlay(ctx, snaps)
}

func (d *Directory) GetMany(ctx context.Context, ids []types.ID) ([]restaurant.Snapshot, error) {
	snaps, err := d.src.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return snaps, d.overlay(ctx, snaps)
}

func (d *Directory) overlay(ctx context.Context, snaps []restaurant.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	ids := make([]types.ID, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	counts, err := d.ledger.Counts(ctx, ids)
	if err != nil {
		return err
	}
	for i := range snaps {
		snaps[i].CurrentOrders = counts[snaps[i].ID]
	}
	return nil
}
