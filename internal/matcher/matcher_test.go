package matcher

import (
	"testing"

	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

func TestMatch_FiltersByProcessorAndOS(t *testing.T) {
	implX86 := &model.ImplementationInfo{ID: "impl-x86", ProcessorDeps: []string{"x86_64"}}
	implARM := &model.ImplementationInfo{ID: "impl-arm", ProcessorDeps: []string{"arm64"}}
	implAny := &model.ImplementationInfo{ID: "impl-any"}

	devX86 := &model.DeviceNode{ID: "dev-x86", Processor: "x86_64"}
	devARM := &model.DeviceNode{ID: "dev-arm", Processor: "arm64"}

	candidates := Match([]*model.ImplementationInfo{implX86, implARM, implAny}, []*model.DeviceNode{devX86, devARM})

	got := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		got[c.Implementation.ID+"/"+c.Device.ID] = true
	}

	want := []string{"impl-x86/dev-x86", "impl-arm/dev-arm", "impl-any/dev-x86", "impl-any/dev-arm"}
	for _, w := range want {
		if !got[w] {
			t.Errorf("expected surviving candidate %q, candidates were: %v", w, got)
		}
	}
	if got["impl-x86/dev-arm"] || got["impl-arm/dev-x86"] {
		t.Fatalf("expected incompatible processor tuples to be filtered out, candidates were: %v", got)
	}
}

func TestMatch_OSDependencyVersionNarrowing(t *testing.T) {
	impl := &model.ImplementationInfo{
		ID:     "impl-1",
		OSDeps: []ports.OSDependency{{Name: "linux", Version: "5.0.0"}},
	}
	compatible := &model.DeviceNode{ID: "dev-new", OSCapabilities: []ports.OSDependency{{Name: "linux", Version: "5.10.0"}}}
	incompatible := &model.DeviceNode{ID: "dev-old", OSCapabilities: []ports.OSDependency{{Name: "linux", Version: "4.9.0"}}}
	stringOnly := &model.DeviceNode{ID: "dev-string", OSCapabilities: []ports.OSDependency{{Name: "linux", Version: "rolling"}}}
	implStringOnly := &model.ImplementationInfo{ID: "impl-string", OSDeps: []ports.OSDependency{{Name: "linux", Version: "rolling"}}}

	candidates := Match([]*model.ImplementationInfo{impl, implStringOnly}, []*model.DeviceNode{compatible, incompatible, stringOnly})

	found := make(map[string]bool)
	for _, c := range candidates {
		found[c.Implementation.ID+"/"+c.Device.ID] = true
	}

	if !found["impl-1/dev-new"] {
		t.Fatalf("expected a newer device version to satisfy an older OS dependency requirement")
	}
	if found["impl-1/dev-old"] {
		t.Fatalf("did not expect an older device version to satisfy a newer OS dependency requirement")
	}
	if !found["impl-string/dev-string"] {
		t.Fatalf("expected exact string match to satisfy a non-semver OS dependency")
	}
}

func TestMergeOSDeps(t *testing.T) {
	a := []ports.OSDependency{{Name: "linux", Version: "5.0.0"}}
	b := []ports.OSDependency{{Name: "linux", Version: "5.5.0"}, {Name: "rtems", Version: "4.10"}}

	merged := MergeOSDeps(a, b)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged entries, got %d: %+v", len(merged), merged)
	}
	for _, m := range merged {
		if m.Name == "linux" && m.Version != "5.5.0" {
			t.Fatalf("expected merged linux dependency to narrow to the higher version, got %q", m.Version)
		}
	}
}

func TestMergeProcessorDeps_Dedupes(t *testing.T) {
	merged := MergeProcessorDeps([]string{"x86_64", "arm64"}, []string{"arm64", "ppc64"})
	if len(merged) != 3 {
		t.Fatalf("expected 3 deduplicated entries, got %d: %v", len(merged), merged)
	}
}
