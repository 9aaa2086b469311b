package ledger

import (
	"context"
	"testing"

	"github.com/anvil-platform/wavefactory/internal/fakes"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

func TestLedger_ReleaseDeallocatesPushedIDs(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	ctx := context.Background()

	resp1, _ := allocator.AllocateDeployment(ctx, allocReq("dev-1"))
	resp2, _ := allocator.AllocateDeployment(ctx, allocReq("dev-2"))
	if allocator.Outstanding() != 2 {
		t.Fatalf("expected 2 outstanding allocations before release, got %d", allocator.Outstanding())
	}

	l := New(allocator, nil)
	l.Push(resp1.AllocationID)
	l.Push(resp2.AllocationID)

	l.Release(ctx)

	if allocator.Outstanding() != 0 {
		t.Fatalf("expected 0 outstanding allocations after release, got %d", allocator.Outstanding())
	}
	if len(l.IDs()) != 0 {
		t.Fatalf("expected ledger to be empty after release, got %v", l.IDs())
	}
}

func TestLedger_TransferMovesOwnershipAndClears(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	ctx := context.Background()

	resp, _ := allocator.AllocateDeployment(ctx, allocReq("dev-1"))

	src := New(allocator, nil)
	dst := New(allocator, nil)
	src.Push(resp.AllocationID)

	src.Transfer(dst)

	if len(src.IDs()) != 0 {
		t.Fatalf("expected source ledger to be empty after transfer, got %v", src.IDs())
	}
	if len(dst.IDs()) != 1 || dst.IDs()[0] != resp.AllocationID {
		t.Fatalf("expected destination ledger to own the transferred id, got %v", dst.IDs())
	}

	dst.Release(ctx)
	if allocator.Outstanding() != 0 {
		t.Fatalf("expected the transferred allocation to be released via the destination ledger")
	}
}

func allocReq(deviceID string) ports.AllocationRequest {
	return ports.AllocationRequest{CandidateDevices: []string{deviceID}}
}
