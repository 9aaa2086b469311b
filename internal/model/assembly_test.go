package model

import (
	"testing"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

func placement(fileRef, instanceID string) ComponentPlacement {
	return ComponentPlacement{FileRefID: fileRef, Instantiations: []Instantiation{{InstanceID: instanceID}}}
}

func TestBuildAssembly_Valid(t *testing.T) {
	sad := &SADDocument{
		ID:                   "DCE:app-1",
		AssemblyControllerID: "ac",
		Placements:           []ComponentPlacement{placement("spd-ac", "ac"), placement("spd-dsp", "dsp")},
	}
	a, err := BuildAssembly(sad)
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}
	if !a.IsValidated() {
		t.Fatalf("expected a successfully built assembly to be marked validated")
	}
	if len(a.InstanceIDs()) != 2 {
		t.Fatalf("expected 2 instance ids, got %v", a.InstanceIDs())
	}
}

func TestBuildAssembly_DuplicateInstanceID(t *testing.T) {
	sad := &SADDocument{
		Placements: []ComponentPlacement{placement("spd-a", "dup"), placement("spd-b", "dup")},
	}
	if _, err := BuildAssembly(sad); err == nil {
		t.Fatalf("expected a duplicate instance id to be rejected")
	}
}

func TestBuildAssembly_UnknownAssemblyController(t *testing.T) {
	sad := &SADDocument{
		AssemblyControllerID: "missing",
		Placements:           []ComponentPlacement{placement("spd-a", "comp-1")},
	}
	if _, err := BuildAssembly(sad); err == nil {
		t.Fatalf("expected an unknown assembly controller reference to be rejected")
	}
}

func TestBuildAssembly_DuplicateExternalPortAlias(t *testing.T) {
	sad := &SADDocument{
		Placements: []ComponentPlacement{placement("spd-a", "comp-1"), placement("spd-b", "comp-2")},
		ExternalPorts: []ExternalPort{
			{ComponentInstanceID: "comp-1", PortName: "out", ExternalAlias: "shared"},
			{ComponentInstanceID: "comp-2", PortName: "out", ExternalAlias: "shared"},
		},
	}
	if _, err := BuildAssembly(sad); err == nil {
		t.Fatalf("expected duplicate external port aliases to be rejected")
	}
}

func TestBuildComponentInfos_MissingSPDRef(t *testing.T) {
	sad := &SADDocument{Placements: []ComponentPlacement{placement("spd-missing", "comp-1")}}
	a, err := BuildAssembly(sad)
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}
	if _, err := BuildComponentInfos(a, "ctx-1", SPDCatalog{}); err == nil {
		t.Fatalf("expected a missing SPD catalog entry to be rejected")
	}
}

func TestBuildComponentInfos_ExternalPropertyAliasCollidesWithACProperty(t *testing.T) {
	sad := &SADDocument{
		AssemblyControllerID: "ac",
		Placements:           []ComponentPlacement{placement("spd-ac", "ac"), placement("spd-dsp", "dsp")},
		ExternalProperties:   []ExternalProperty{{ComponentInstanceID: "dsp", PropertyID: "gain", ExternalAlias: "rate"}},
	}
	a, err := BuildAssembly(sad)
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}
	catalog := SPDCatalog{
		"spd-ac":  {ID: "spd-ac", PRFProperties: []ports.PropertyValue{ports.Simple("rate", 1.0)}},
		"spd-dsp": {ID: "spd-dsp", PRFProperties: []ports.PropertyValue{ports.Simple("gain", 1.0)}},
	}
	if _, err := BuildComponentInfos(a, "ctx-1", catalog); err == nil {
		t.Fatalf("expected an external property alias colliding with an AC property id to be rejected")
	}
}

func TestBuildComponentInfos_AppliesInstantiationOverrides(t *testing.T) {
	sad := &SADDocument{
		Placements: []ComponentPlacement{{
			FileRefID: "spd-dsp",
			Instantiations: []Instantiation{{
				InstanceID: "dsp",
				Overrides:  []PropertyOverride{{PropertyID: "gain", Value: ports.Simple("gain", 2.0)}},
			}},
		}},
	}
	a, err := BuildAssembly(sad)
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}
	catalog := SPDCatalog{"spd-dsp": {ID: "spd-dsp", PRFProperties: []ports.PropertyValue{ports.Simple("gain", 1.0)}}}

	infos, err := BuildComponentInfos(a, "ctx-1", catalog)
	if err != nil {
		t.Fatalf("BuildComponentInfos error: %v", err)
	}
	got, ok := ports.Find(infos[0].ConfigureProps, "gain")
	if !ok || got.Simple.(float64) != 2.0 {
		t.Fatalf("expected the instantiation override to win, got %+v", got)
	}
}
