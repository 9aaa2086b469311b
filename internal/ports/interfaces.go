package ports

import "context"

// PropertyValue is a tagged variant over the four shapes an SCA property
// value can take, replacing the dynamic-cast chain the original C++ used to
// build allocation-property requests (see design note in SPEC_FULL.md §9).
type PropertyValueKind int

const (
	// KindSimple is a single scalar value (string, bool, numeric...).
	KindSimple PropertyValueKind = iota
	// KindSimpleSequence is a sequence of scalar values.
	KindSimpleSequence
	// KindStruct is a named bag of PropertyValues.
	KindStruct
	// KindStructSequence is a sequence of structs.
	KindStructSequence
)

// PropertyValue is the single variant type every configure/allocation
// property is cast into, dispatched by Kind rather than a chain of type
// assertions.
type PropertyValue struct {
	Kind     PropertyValueKind
	ID       string
	Simple   any
	Sequence []any
	Fields   map[string]PropertyValue
	Structs  []map[string]PropertyValue
}

// Simple constructs a scalar PropertyValue.
func Simple(id string, v any) PropertyValue {
	return PropertyValue{Kind: KindSimple, ID: id, Simple: v}
}

// Find looks up id at top level, then inside any struct-valued property —
// the same two-level search the Property Expression Evaluator (§4.3) uses
// to resolve a __MATH__ reference against the component's configure
// properties.
func Find(props []PropertyValue, id string) (PropertyValue, bool) {
	for _, p := range props {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range props {
		if p.Kind == KindStruct {
			for fid, fv := range p.Fields {
				if fid == id {
					return fv, true
				}
			}
		}
	}
	return PropertyValue{}, false
}

// AllocationRequest is the property/processor/OS-dep bundle a single
// allocateDeployment call carries.
type AllocationRequest struct {
	RequestID       string
	Properties      []PropertyValue
	CandidateDevices []string
	ProcessorDeps   []string
	OSDeps          []OSDependency
}

// OSDependency is an (name, version) pair as found in an SPD implementation.
type OSDependency struct {
	Name    string
	Version string
}

// AllocationResponse is what allocateDeployment returns for one request; Ok
// is false on an empty response (no device could satisfy the request).
type AllocationResponse struct {
	Ok           bool
	AllocationID string
	DeviceRef    DeviceRef
}

// BulkAllocationRequest is one element of the batch passed to allocate(),
// used for uses-device resolution.
type BulkAllocationRequest struct {
	RequestID  string
	Properties []PropertyValue
}

// BulkAllocationResult is one element returned by allocate().
type BulkAllocationResult struct {
	AllocationID string
	DeviceRef    DeviceRef
	RequestID    string
}

// DeviceRef is an opaque handle to a device, resolvable back to a DeviceNode
// via the device catalog.
type DeviceRef struct {
	DeviceID string
}

// AllocationManager is the single authority for device-capacity
// arbitration. It is thread-safe; the factory never needs to hold a lock
// around calls into it.
type AllocationManager interface {
	AllocateDeployment(ctx context.Context, req AllocationRequest) (AllocationResponse, error)
	Allocate(ctx context.Context, reqs []BulkAllocationRequest) ([]BulkAllocationResult, error)
	Deallocate(ctx context.Context, allocationIDs []string) error
}

// ExecParams is the exec-parameter bag injected into a component process at
// execute() time (§4.6 "Exec parameter injection").
type ExecParams map[string]string

// Device is the per-device side of load/execute/unload. Implementations
// live on the device itself; the factory only ever talks to this interface.
type Device interface {
	ID() string
	Label() string
	IsExecutable() bool
	UsageState() DeviceUsageState
	Load(ctx context.Context, path string, codeType CodeType) error
	Unload(ctx context.Context, path string) error
	Execute(ctx context.Context, entryPoint string, options map[string]string, execParams ExecParams) (pid int64, err error)
}

// DeviceUsageState mirrors §3's Device Node usage state.
type DeviceUsageState int

const (
	DeviceIdle DeviceUsageState = iota
	DeviceActive
	DeviceBusy
)

// CodeType mirrors §3's Implementation Info code type.
type CodeType int

const (
	CodeExecutable CodeType = iota
	CodeSharedLibrary
	CodeDriver
	CodeKernelModule
)

// StartOrderEntry is one slot of the start sequence vector built in §4.6
// step 11.
type StartOrderEntry struct {
	ComponentID string
	Resource    Resource
}

// Resource is the narrowed SCA resource reference stored on a Component
// Info once Initialize (§4.6 step 11) succeeds.
type Resource interface {
	Initialize(ctx context.Context) error
	Configure(ctx context.Context, props []PropertyValue) (ConfigureResult, error)
}

// ConfigureResult mirrors the broker's configure() response mapping in
// §4.6 step 13.
type ConfigureResult struct {
	Outcome      ConfigureOutcome
	InvalidProps []string
}

type ConfigureOutcome int

const (
	ConfigureOK ConfigureOutcome = iota
	ConfigureInvalid
	ConfigurePartial
)

// Application is the servant that tracks one instantiated waveform.
type Application interface {
	AddComponent(componentID string)
	SetComponentImplementation(componentID, implID string)
	SetComponentNamingContext(componentID, nameBinding string)
	SetComponentDevice(componentID, deviceID string)
	SetComponentPid(componentID string, pid int64)
	AddComponentLoadedFile(componentID, file string)
	AddExternalPort(alias string, componentID, portName string)
	AddExternalProperty(alias string, componentID, propertyID string)
	AppReg() NamingContext
	WaitForComponents(ctx context.Context, ids []string, timeout int) (bool, string)
	// Resource looks up componentID in the Application's registered-components
	// table and narrows it to the SCA Resource interface (§4.6 step 11). Ok is
	// false until the component has registered itself (after
	// WaitForComponents succeeds) or if it never implements Resource.
	Resource(componentID string) (res Resource, ok bool)
	PopulateApplication(ac Resource, devices []DeviceRef, startSeq []StartOrderEntry, connections []Connection, allocationIDs []string)
	ReleaseComponents(ctx context.Context)
	TerminateComponents(ctx context.Context)
	UnloadComponents(ctx context.Context)
}

// Connection is an assembly connection as passed to the connection manager
// collaborator in §4.6 step 12.
type Connection struct {
	ID   string
	Spec any
}

// NamingContext is the hierarchical naming service abstraction (bind,
// resolve, unbind, destroy) from §6.
type NamingContext interface {
	Bind(ctx context.Context, name string, obj any) error
	Resolve(ctx context.Context, name string) (any, error)
	Unbind(ctx context.Context, name string) error
	BindNewContext(ctx context.Context, name string) (NamingContext, error)
	Destroy(ctx context.Context) error
}

// FileManager is the file-manager I/O collaborator used to resolve a
// LOGGING_CONFIG_URI's filesystem reference (§4.6).
type FileManager interface {
	IOR() string
}

// EventPublisher emits domain events; APPLICATION_ADDED is the only event
// the base spec names (§4.6 step 15).
type EventPublisher interface {
	PublishApplicationAdded(ctx context.Context, appID, waveformContext string, componentCount int) error
}
