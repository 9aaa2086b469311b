// Package fakes provides in-memory implementations of every internal/ports
// interface, used by the load-test CLI and by package tests
// across the repo so the deployment pipeline can be exercised end to end
// without a real Allocation Manager, device fleet, or naming service.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

// AllocationManager is an in-memory ports.AllocationManager that hands out
// incrementing allocation ids. AllocateDeployment succeeds for any request
// naming at least one candidate device (placing it on the first one) and
// returns an empty response otherwise.
type AllocationManager struct {
	mu        sync.Mutex
	nextID    int
	allocated map[string]bool
}

// NewAllocationManager returns a ready-to-use fake allocation manager.
func NewAllocationManager() *AllocationManager {
	return &AllocationManager{allocated: make(map[string]bool)}
}

func (m *AllocationManager) AllocateDeployment(_ context.Context, req ports.AllocationRequest) (ports.AllocationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(req.CandidateDevices) == 0 {
		return ports.AllocationResponse{Ok: false}, nil
	}
	m.nextID++
	id := fmt.Sprintf("alloc-%d", m.nextID)
	m.allocated[id] = true
	return ports.AllocationResponse{Ok: true, AllocationID: id, DeviceRef: ports.DeviceRef{DeviceID: req.CandidateDevices[0]}}, nil
}

func (m *AllocationManager) Allocate(_ context.Context, reqs []ports.BulkAllocationRequest) ([]ports.BulkAllocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.BulkAllocationResult, 0, len(reqs))
	for _, r := range reqs {
		m.nextID++
		id := fmt.Sprintf("alloc-%d", m.nextID)
		m.allocated[id] = true
		out = append(out, ports.BulkAllocationResult{AllocationID: id, RequestID: r.RequestID})
	}
	return out, nil
}

func (m *AllocationManager) Deallocate(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.allocated, id)
	}
	return nil
}

// Outstanding returns the number of allocations not yet released — used by
// tests asserting that unwind actually released everything.
func (m *AllocationManager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocated)
}

// Device is an in-memory ports.Device.
type Device struct {
	id           string
	label        string
	isExecutable bool
	usageState   ports.DeviceUsageState
	nextPid      int64
}

// NewDevice returns a fake executable, idle device with the given id.
func NewDevice(id string) *Device {
	return &Device{id: id, label: id, isExecutable: true, usageState: ports.DeviceIdle}
}

func (d *Device) ID() string                        { return d.id }
func (d *Device) Label() string                      { return d.label }
func (d *Device) IsExecutable() bool                 { return d.isExecutable }
func (d *Device) UsageState() ports.DeviceUsageState { return d.usageState }
func (d *Device) Load(context.Context, string, ports.CodeType) error { return nil }
func (d *Device) Unload(context.Context, string) error               { return nil }
func (d *Device) Execute(context.Context, string, map[string]string, ports.ExecParams) (int64, error) {
	d.nextPid++
	return d.nextPid, nil
}

// Application is an in-memory ports.Application that records calls instead
// of driving a real servant.
type Application struct {
	mu             sync.Mutex
	components     []string
	loadedFiles    map[string][]string
	registerable   map[string]bool
	resources      map[string]ports.Resource
	TerminateCalls int
	UnloadCalls    int
	ReleaseCalls   int
}

// NewApplication returns a fake application tracker; registerable names
// the SCA-compliant component ids WaitForComponents should consider already
// registered.
func NewApplication(registerable ...string) *Application {
	reg := make(map[string]bool, len(registerable))
	for _, id := range registerable {
		reg[id] = true
	}
	return &Application{loadedFiles: make(map[string][]string), registerable: reg, resources: make(map[string]ports.Resource)}
}

// RegisterResource makes componentID resolvable through Resource, simulating
// a component registering itself back with the Application after execute().
func (a *Application) RegisterResource(componentID string, r ports.Resource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resources[componentID] = r
}

func (a *Application) Resource(componentID string) (ports.Resource, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.resources[componentID]
	return r, ok
}

func (a *Application) AddComponent(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, id)
}
func (a *Application) SetComponentImplementation(string, string) {}
func (a *Application) SetComponentNamingContext(string, string)  {}
func (a *Application) SetComponentDevice(string, string)         {}
func (a *Application) SetComponentPid(string, int64)             {}
func (a *Application) AddComponentLoadedFile(id, file string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadedFiles[id] = append(a.loadedFiles[id], file)
}
func (a *Application) AddExternalPort(string, string, string)     {}
func (a *Application) AddExternalProperty(string, string, string) {}
func (a *Application) AppReg() ports.NamingContext                { return nil }
func (a *Application) WaitForComponents(_ context.Context, ids []string, _ int) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if !a.registerable[id] {
			return false, id
		}
	}
	return true, ""
}
func (a *Application) PopulateApplication(ports.Resource, []ports.DeviceRef, []ports.StartOrderEntry, []ports.Connection, []string) {
}
func (a *Application) ReleaseComponents(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ReleaseCalls++
}
func (a *Application) TerminateComponents(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.TerminateCalls++
}
func (a *Application) UnloadComponents(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.UnloadCalls++
}

// NamingContext is an in-memory ports.NamingContext.
type NamingContext struct {
	mu       sync.Mutex
	bindings map[string]any
}

// NewNamingContext returns a fresh, empty fake naming context.
func NewNamingContext() *NamingContext {
	return &NamingContext{bindings: make(map[string]any)}
}

func (n *NamingContext) Bind(_ context.Context, name string, obj any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.bindings[name]; exists {
		return fmt.Errorf("name %q already bound", name)
	}
	n.bindings[name] = obj
	return nil
}

func (n *NamingContext) Resolve(_ context.Context, name string) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	obj, ok := n.bindings[name]
	if !ok {
		return nil, fmt.Errorf("name %q not bound", name)
	}
	return obj, nil
}

func (n *NamingContext) Unbind(_ context.Context, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.bindings, name)
	return nil
}

func (n *NamingContext) BindNewContext(_ context.Context, name string) (ports.NamingContext, error) {
	child := NewNamingContext()
	n.mu.Lock()
	n.bindings[name] = child
	n.mu.Unlock()
	return child, nil
}

func (n *NamingContext) Destroy(context.Context) error { return nil }

var (
	_ ports.AllocationManager = (*AllocationManager)(nil)
	_ ports.Device            = (*Device)(nil)
	_ ports.Application       = (*Application)(nil)
	_ ports.NamingContext     = (*NamingContext)(nil)
)
