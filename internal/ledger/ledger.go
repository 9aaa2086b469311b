// Package ledger implements the Scoped Allocation Ledger (C5): an ordered
// list of allocation ids that is released by Release unless the caller has
// already transferred the ids elsewhere. Grounded directly on the original
// C++ ScopedAllocations class (ApplicationFactory_impl.cpp): push_back,
// transfer, and a destructor-equivalent deallocate that never raises.
package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

// Ledger is not safe for concurrent use; each deployment pipeline run
// (C6/C8) owns exactly one.
type Ledger struct {
	allocator ports.AllocationManager
	ids       []string
	logger    *zap.Logger
}

// New returns a Ledger bound to the given allocation manager.
func New(allocator ports.AllocationManager, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{allocator: allocator, logger: logger}
}

// Push records an allocation id as owned by this ledger.
func (l *Ledger) Push(id string) {
	l.ids = append(l.ids, id)
}

// Transfer moves every id this ledger owns to dest and clears this ledger,
// mirroring the C++ ScopedAllocations::transfer overload that hands off to
// another ScopedAllocations. Used when a sub-step succeeds and its
// allocations become owned by the enclosing scope.
func (l *Ledger) Transfer(dest *Ledger) {
	dest.ids = append(dest.ids, l.ids...)
	l.ids = nil
}

// IDs returns a copy of the allocation ids currently owned by this ledger.
func (l *Ledger) IDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Release deallocates every id this ledger still owns and clears it. It
// never returns an error to the caller by design — a release failure is
// diagnostic only (mirroring the C++ destructor's "must not throw"
// discipline) and is logged instead.
func (l *Ledger) Release(ctx context.Context) {
	if len(l.ids) == 0 {
		return
	}
	l.logger.Debug("releasing scoped allocations", zap.Strings("allocationIds", l.ids))
	if err := l.allocator.Deallocate(ctx, l.ids); err != nil {
		l.logger.Warn("failed to release scoped allocations", zap.Strings("allocationIds", l.ids), zap.Error(err))
	}
	l.ids = nil
}
