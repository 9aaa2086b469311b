// Package model is the typed in-memory view of a Software Assembly
// Descriptor (C1, §4.1). It owns no side effects: loading builds the model,
// validating freezes it, and every later component (matcher, planner,
// pipeline) only ever reads from it.
package model

import (
	"github.com/anvil-platform/wavefactory/internal/ports"
)

// ExternalPortKind mirrors §3's External Port kind enumeration.
type ExternalPortKind int

const (
	PortUses ExternalPortKind = iota
	PortProvides
	PortSupportedInterface
)

// Instantiation is one instantiation of a Component Placement. In practice
// only the first instantiation of a placement is used (§3).
type Instantiation struct {
	InstanceID    string
	BindingName   string // optional naming-service binding name
	UsageName     string // optional usage name
	StartOrder    *int   // optional; declared as a string in the SAD, parsed to an int by the SAD parser
	Overrides     []PropertyOverride
}

// PropertyOverride is a property-id/value override applied at instantiation
// or external-property-override time.
type PropertyOverride struct {
	PropertyID string
	Value      ports.PropertyValue
}

// ComponentPlacement is one <componentplacement> entry: a file ref plus one
// or more instantiations.
type ComponentPlacement struct {
	FileRefID      string
	Instantiations []Instantiation
}

// FirstInstantiation returns the instantiation this placement actually
// uses — the first one, per §3.
func (p ComponentPlacement) FirstInstantiation() (Instantiation, bool) {
	if len(p.Instantiations) == 0 {
		return Instantiation{}, false
	}
	return p.Instantiations[0], true
}

// HostCollocationGroup names a subset of placements (by instance id) that
// must share one device.
type HostCollocationGroup struct {
	ID      string
	Members []string // instance ids
}

// ExternalPort is an externally exposed component port.
type ExternalPort struct {
	ComponentInstanceID string
	PortName            string
	ExternalAlias       string // optional
	Kind                ExternalPortKind
}

// Alias returns the identifier external callers see: the alias if set,
// otherwise the port name itself (§4.6 step 14).
func (p ExternalPort) Alias() string {
	if p.ExternalAlias != "" {
		return p.ExternalAlias
	}
	return p.PortName
}

// ExternalProperty is an externally exposed component property.
type ExternalProperty struct {
	ComponentInstanceID string
	PropertyID          string
	ExternalAlias       string // optional
}

// Alias returns the identifier external callers see.
func (p ExternalProperty) Alias() string {
	if p.ExternalAlias != "" {
		return p.ExternalAlias
	}
	return p.PropertyID
}

// UsesDeviceClause is an assembly-scoped or component-scoped uses-device
// requirement.
type UsesDeviceClause struct {
	ID         string
	Properties []ports.PropertyValue
}

// Assembly is the validated, immutable in-memory view of the SAD (§3).
type Assembly struct {
	AppID                 string
	Name                  string
	Placements            []ComponentPlacement
	CollocationGroups      []HostCollocationGroup
	ExternalPorts         []ExternalPort
	ExternalProperties    []ExternalProperty
	Connections           []ports.Connection
	UsesDeviceClauses     []UsesDeviceClause
	AssemblyControllerID  string

	validated bool
}

// ComponentFlags mirrors the SCA-relevant booleans carried on Component Info.
type ComponentFlags struct {
	SCACompliant       bool
	Resource           bool
	Configurable       bool
	IsAssemblyController bool
	IsNamingService    bool
}

// SoftPkgDependency is one nested SPD dependency of an implementation.
type SoftPkgDependency struct {
	SPD *SPDDocument
}

// PropertyRequest is a request for a dependency property to be resolved
// (possibly via __MATH__) and included in an allocation request.
type PropertyRequest struct {
	Value ports.PropertyValue
}

// ImplementationInfo is one candidate implementation of a component (§3).
type ImplementationInfo struct {
	ID                   string
	CodeType             ports.CodeType
	EntryPoint           string // may be empty
	LocalFile            string
	OSDeps               []ports.OSDependency
	ProcessorDeps        []string
	DependencyProperties []PropertyRequest
	SoftPkgDeps          []*SoftPkgDependency

	// SelectedSoftPkgImpl records, once resolved, which sub-implementation
	// of each soft-package dependency was chosen (parallel to SoftPkgDeps).
	SelectedSoftPkgImpl []*ImplementationInfo
}

// DeviceAssignment is recorded on a Component Info once the planner (C4)
// places it.
type DeviceAssignment struct {
	DeviceID  string
	DeviceRef ports.DeviceRef
}

// ComponentInfo is the working object mutated during deployment (§3).
type ComponentInfo struct {
	InstanceID      string
	WaveformContext string // composite id is InstanceID:WaveformContext
	SPD             *SPDDocument
	PRFProperties   []ports.PropertyValue
	Flags           ComponentFlags
	ExecParams      ports.ExecParams
	ConfigureProps  []ports.PropertyValue
	Implementations []*ImplementationInfo

	SelectedImplementation *ImplementationInfo
	AssignedDevice         *DeviceAssignment

	StartOrder *int
	BindingName string
	UsageName   string

	Resource ports.Resource // set once Initialize (§4.6 step 11) succeeds
}

// CompositeID returns "<instanceId>:<waveformContext>" (§3).
func (c *ComponentInfo) CompositeID() string {
	return c.InstanceID + ":" + c.WaveformContext
}

// DeviceNode is one entry of the device catalog (§3).
type DeviceNode struct {
	ID             string
	Label          string
	IsExecutable   bool
	Ref            ports.DeviceRef
	PRFSnapshot    []ports.PropertyValue
	UsageState     ports.DeviceUsageState
	Processor      string
	OSCapabilities []ports.OSDependency
}
