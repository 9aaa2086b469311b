package factory

import (
	"context"
	"sync"
	"testing"

	"github.com/anvil-platform/wavefactory/internal/fakes"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/pipeline"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

func buildTestFactory(t *testing.T, executableDevices int) (*Factory, *fakes.AllocationManager) {
	t.Helper()

	sad := &model.SADDocument{
		ID:                   "DCE:test-app",
		AssemblyControllerID: "ac",
		Placements: []model.ComponentPlacement{
			{FileRefID: "spd-ac", Instantiations: []model.Instantiation{{InstanceID: "ac"}}},
			{FileRefID: "spd-dsp", Instantiations: []model.Instantiation{{InstanceID: "dsp"}}},
		},
	}
	assembly, err := model.BuildAssembly(sad)
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}

	catalog := model.SPDCatalog{
		"spd-ac": {
			ID: "spd-ac", IsScaCompliant: true,
			Implementations: []*model.ImplementationInfo{{ID: "ac_impl", EntryPoint: "/bin/ac", LocalFile: "/ac"}},
		},
		"spd-dsp": {
			ID: "spd-dsp", IsScaCompliant: true,
			Implementations: []*model.ImplementationInfo{{ID: "dsp_impl", EntryPoint: "/bin/dsp", LocalFile: "/dsp"}},
		},
	}

	devices := make([]*model.DeviceNode, 0, executableDevices)
	deviceHandles := make(map[string]ports.Device, executableDevices)
	for i := 0; i < executableDevices; i++ {
		id := "dev-" + string(rune('a'+i))
		devices = append(devices, &model.DeviceNode{ID: id, IsExecutable: true, Ref: ports.DeviceRef{DeviceID: id}})
		deviceHandles[id] = fakes.NewDevice(id)
	}

	allocator := fakes.NewAllocationManager()
	naming := fakes.NewNamingContext()
	instanceIDs := assembly.InstanceIDs()

	f, err := New(assembly, catalog, func() []*model.DeviceNode { return devices }, pipeline.Deps{
		Allocator: allocator,
		Devices:   deviceHandles,
		Naming:    naming,
		NewApplication: func(_, waveformContext string) ports.Application {
			registerable := make([]string, len(instanceIDs))
			for i, id := range instanceIDs {
				registerable[i] = id + ":" + waveformContext
			}
			return fakes.NewApplication(registerable...)
		},
	})
	if err != nil {
		t.Fatalf("factory.New error: %v", err)
	}
	return f, allocator
}

func TestFactory_CreateSucceeds(t *testing.T) {
	f, allocator := buildTestFactory(t, 2)

	res, err := f.Create(context.Background(), "myapp", nil, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if res.AppID != "myapp" {
		t.Fatalf("expected AppID %q, got %q", "myapp", res.AppID)
	}
	if res.WaveformContext != "myapp_1" {
		t.Fatalf("expected waveform context %q, got %q", "myapp_1", res.WaveformContext)
	}
	if allocator.Outstanding() != 2 {
		t.Fatalf("expected 2 outstanding allocations (ac + dsp), got %d", allocator.Outstanding())
	}
}

func TestFactory_CreateUnwindsOnNoDevices(t *testing.T) {
	f, allocator := buildTestFactory(t, 0)

	_, err := f.Create(context.Background(), "myapp", nil, nil)
	if err == nil {
		t.Fatalf("expected Create to fail with no executable devices")
	}
	if allocator.Outstanding() != 0 {
		t.Fatalf("expected unwind to leave zero outstanding allocations, got %d", allocator.Outstanding())
	}
}

func TestFactory_ConcurrentCreatesGetDistinctWaveformContexts(t *testing.T) {
	f, _ := buildTestFactory(t, 4)

	const n = 20
	var wg sync.WaitGroup
	contexts := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := f.Create(context.Background(), "concurrent", nil, nil)
			if err != nil {
				t.Errorf("Create error: %v", err)
				return
			}
			contexts[idx] = res.WaveformContext
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, c := range contexts {
		if c == "" {
			continue
		}
		if seen[c] {
			t.Fatalf("expected every concurrent Create to produce a distinct waveform context, saw duplicate %q", c)
		}
		seen[c] = true
	}
}

func TestFactory_BadDeviceAssignmentRejected(t *testing.T) {
	f, _ := buildTestFactory(t, 1)

	_, err := f.Create(context.Background(), "myapp", nil, map[string]string{"ac": "no-such-device"})
	if _, ok := err.(*ports.BadDeviceAssignmentError); !ok {
		if unwrapped := wrappedBadDeviceAssignment(err); unwrapped == nil {
			t.Fatalf("expected a bad device assignment error, got %T (%v)", err, err)
		}
	}
}

func wrappedBadDeviceAssignment(err error) *ports.BadDeviceAssignmentError {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*ports.BadDeviceAssignmentError); ok {
			return e
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
