package planner

import (
	"context"
	"testing"

	"github.com/anvil-platform/wavefactory/internal/fakes"
	"github.com/anvil-platform/wavefactory/internal/ledger"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

func compInfo(id string) *model.ComponentInfo {
	return &model.ComponentInfo{
		InstanceID: id,
		Implementations: []*model.ImplementationInfo{
			{ID: id + "_impl"},
		},
	}
}

func devNode(id string, executable bool, state ports.DeviceUsageState) *model.DeviceNode {
	return &model.DeviceNode{ID: id, IsExecutable: executable, UsageState: state, Ref: ports.DeviceRef{DeviceID: id}}
}

func TestAllocateComponent_Success(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	p := New(allocator, nil)
	led := ledger.New(allocator, nil)

	devices := []*model.DeviceNode{devNode("dev-a", true, ports.DeviceIdle), devNode("dev-b", true, ports.DeviceIdle)}

	res, rotated, err := p.AllocateComponent(context.Background(), compInfo("comp-1"), devices, led)
	if err != nil {
		t.Fatalf("AllocateComponent error: %v", err)
	}
	if res.Device.ID != "dev-a" {
		t.Fatalf("expected the first candidate device to be chosen, got %q", res.Device.ID)
	}
	if rotated[0].ID != "dev-a" {
		t.Fatalf("expected the chosen device to be rotated to the front, got order %v", deviceIDs(rotated))
	}
	if len(led.IDs()) != 1 {
		t.Fatalf("expected exactly one allocation pushed to the ledger, got %v", led.IDs())
	}
}

func TestAllocateComponent_NoExecutableDevices(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	p := New(allocator, nil)
	led := ledger.New(allocator, nil)

	devices := []*model.DeviceNode{devNode("dev-a", false, ports.DeviceIdle)}

	_, _, err := p.AllocateComponent(context.Background(), compInfo("comp-1"), devices, led)
	if _, ok := err.(*ports.NoExecutableDevicesError); !ok {
		t.Fatalf("expected *ports.NoExecutableDevicesError, got %T (%v)", err, err)
	}
}

func TestAllocateComponent_AllBusy(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	p := New(allocator, nil)
	led := ledger.New(allocator, nil)

	devices := []*model.DeviceNode{devNode("dev-a", true, ports.DeviceBusy)}

	_, _, err := p.AllocateComponent(context.Background(), compInfo("comp-1"), devices, led)
	if _, ok := err.(*ports.AllExecutableDevicesBusyError); !ok {
		t.Fatalf("expected *ports.AllExecutableDevicesBusyError, got %T (%v)", err, err)
	}
}

func TestAllocateComponent_NoDeviceSatisfiesDependencies(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	p := New(allocator, nil)
	led := ledger.New(allocator, nil)

	ci := compInfo("comp-1")
	ci.Implementations[0].ProcessorDeps = []string{"exotic_cpu"}
	devices := []*model.DeviceNode{devNode("dev-a", true, ports.DeviceIdle)}

	_, _, err := p.AllocateComponent(context.Background(), ci, devices, led)
	if _, ok := err.(*ports.NoDeviceSatisfiesDependenciesError); !ok {
		t.Fatalf("expected *ports.NoDeviceSatisfiesDependenciesError, got %T (%v)", err, err)
	}
}

func TestPlaceCollocation_AllMembersOnOneDevice(t *testing.T) {
	allocator := fakes.NewAllocationManager()
	p := New(allocator, nil)
	led := ledger.New(allocator, nil)

	members := []*model.ComponentInfo{compInfo("comp-1"), compInfo("comp-2")}
	devices := []*model.DeviceNode{devNode("dev-a", true, ports.DeviceIdle)}
	group := model.HostCollocationGroup{ID: "group-1", Members: []string{"comp-1", "comp-2"}}

	results, rotated, err := p.PlaceCollocation(context.Background(), group, members, devices, led, nil)
	if err != nil {
		t.Fatalf("PlaceCollocation error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both members placed, got %d", len(results))
	}
	for _, m := range members {
		if results[m.InstanceID].Device.ID != "dev-a" {
			t.Fatalf("expected both members on dev-a, got %q for %q", results[m.InstanceID].Device.ID, m.InstanceID)
		}
	}
	if rotated[0].ID != "dev-a" {
		t.Fatalf("expected identical rotation after collocation placement, got order %v", deviceIDs(rotated))
	}
}

func deviceIDs(devices []*model.DeviceNode) []string {
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	return ids
}
