// Package planner implements the Allocation Planner (C4): placing one
// component, a host-collocation group, or a set of uses-device clauses onto
// the device catalog, consuming Allocation Manager capacity as it goes.
// Grounded on ApplicationFactory_impl.cpp's createHelper::allocateComponent
// and the collocation placement loop, including the device-rotation
// warm-start heuristic (rotateDeviceList).
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anvil-platform/wavefactory/internal/ledger"
	"github.com/anvil-platform/wavefactory/internal/matcher"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

// Planner places components and uses-device clauses against a device
// catalog via an Allocation Manager. It holds no state of its own between
// calls; all mutable placement state lives in the caller's device list and
// ledger.
type Planner struct {
	allocator ports.AllocationManager
	logger    *zap.Logger
}

// New returns a Planner bound to the given allocation manager.
func New(allocator ports.AllocationManager, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{allocator: allocator, logger: logger}
}

// PlaceResult is the outcome of successfully placing one component.
type PlaceResult struct {
	Implementation *model.ImplementationInfo
	Device         *model.DeviceNode
	AllocationID   string
}

// AllocateComponent selects an implementation and device for ci, allocating
// capacity through the Allocation Manager. On success the returned device
// list has the chosen device rotated to the front (§9 design note); the
// allocation id is pushed onto led.
func (p *Planner) AllocateComponent(ctx context.Context, ci *model.ComponentInfo, devices []*model.DeviceNode, led *ledger.Ledger) (*PlaceResult, []*model.DeviceNode, error) {
	if len(devices) == 0 {
		return nil, devices, &ports.NoExecutableDevicesError{}
	}
	executable := filterExecutable(devices)
	if len(executable) == 0 {
		return nil, devices, &ports.NoExecutableDevicesError{}
	}
	available := filterAvailable(executable)
	if len(available) == 0 {
		return nil, devices, &ports.AllExecutableDevicesBusyError{}
	}

	candidates := matcher.Match(ci.Implementations, available)
	if len(candidates) == 0 {
		return nil, devices, &ports.NoDeviceSatisfiesDependenciesError{ComponentID: ci.InstanceID}
	}

	for _, c := range candidates {
		req := ports.AllocationRequest{
			RequestID:        ci.InstanceID,
			Properties:       ci.ConfigureProps,
			CandidateDevices: []string{c.Device.ID},
			ProcessorDeps:    c.Implementation.ProcessorDeps,
			OSDeps:           c.Implementation.OSDeps,
		}
		resp, err := p.allocator.AllocateDeployment(ctx, req)
		if err != nil {
			p.logger.Debug("allocation attempt failed", zap.String("componentId", ci.InstanceID), zap.String("deviceId", c.Device.ID), zap.Error(err))
			continue
		}
		if !resp.Ok {
			continue
		}
		led.Push(resp.AllocationID)
		rotated := rotateDeviceList(devices, c.Device.ID)
		return &PlaceResult{Implementation: c.Implementation, Device: c.Device, AllocationID: resp.AllocationID}, rotated, nil
	}

	return nil, devices, &ports.NoDeviceSatisfiesDependenciesError{ComponentID: ci.InstanceID}
}

// PlaceCollocation enumerates the cross product of implementation tuples
// across the group's unpinned members (§4.2), merges each surviving tuple's
// processor/OS dependencies by intersection, and issues a single
// allocateDeployment call per tuple with every member's configure properties
// consolidated onto it (§4.4 steps 1-3). deviceAssignments partitions the
// group into pinned members (a caller-supplied device id, fed into the
// request as the sole preferredDevices constraint) and unpinned members
// (left to the Allocation Manager to place from candidateDevices). Pinned
// members take their first declared implementation: the spec's tuple
// enumeration is defined only over the unpinned members, so a pinned
// member's implementation choice isn't something this step resolves. On
// success the returned device list has the chosen device rotated to the
// front, same as the single-component case.
func (p *Planner) PlaceCollocation(ctx context.Context, group model.HostCollocationGroup, members []*model.ComponentInfo, devices []*model.DeviceNode, led *ledger.Ledger, deviceAssignments map[string]string) (map[string]*PlaceResult, []*model.DeviceNode, error) {
	available := filterAvailable(filterExecutable(devices))
	if len(available) == 0 {
		return nil, devices, &ports.AllExecutableDevicesBusyError{}
	}

	var pinned, unpinned []*model.ComponentInfo
	preferredIDs := make(map[string]bool)
	for _, m := range members {
		if devID, ok := deviceAssignments[m.InstanceID]; ok && devID != "" {
			pinned = append(pinned, m)
			preferredIDs[devID] = true
			continue
		}
		unpinned = append(unpinned, m)
	}

	candidateDevices := available
	if len(preferredIDs) > 0 {
		preferred := make([]*model.DeviceNode, 0, len(preferredIDs))
		for _, d := range available {
			if preferredIDs[d.ID] {
				preferred = append(preferred, d)
			}
		}
		if len(preferred) == 0 {
			return nil, devices, &ports.CollocationUnsatisfiableError{GroupID: group.ID}
		}
		candidateDevices = preferred
	}

	memberImpls := make([][]*model.ImplementationInfo, len(unpinned))
	for i, m := range unpinned {
		memberImpls[i] = m.Implementations
	}
	tuples := matcher.MatchGroup(memberImpls)

	candidateIDs := make([]string, len(candidateDevices))
	for i, d := range candidateDevices {
		candidateIDs[i] = d.ID
	}

	for _, tuple := range tuples {
		req := ports.AllocationRequest{
			RequestID:        group.ID,
			Properties:       consolidatedProperties(pinned, unpinned),
			CandidateDevices: candidateIDs,
			ProcessorDeps:    tuple.ProcessorDeps,
			OSDeps:           tuple.OSDeps,
		}
		resp, err := p.allocator.AllocateDeployment(ctx, req)
		if err != nil {
			p.logger.Debug("collocation allocation attempt failed", zap.String("groupId", group.ID), zap.Error(err))
			continue
		}
		if !resp.Ok {
			continue
		}
		dev := findDevice(devices, resp.DeviceRef.DeviceID)
		if dev == nil {
			continue
		}

		results := make(map[string]*PlaceResult, len(members))
		for i, m := range unpinned {
			results[m.InstanceID] = &PlaceResult{Implementation: tuple.Implementations[i], Device: dev, AllocationID: resp.AllocationID}
		}
		for _, m := range pinned {
			var impl *model.ImplementationInfo
			if len(m.Implementations) > 0 {
				impl = m.Implementations[0]
			}
			results[m.InstanceID] = &PlaceResult{Implementation: impl, Device: dev, AllocationID: resp.AllocationID}
		}

		led.Push(resp.AllocationID)
		rotated := rotateDeviceList(devices, dev.ID)
		return results, rotated, nil
	}

	return nil, devices, &ports.CollocationUnsatisfiableError{GroupID: group.ID}
}

// consolidatedProperties concatenates every group member's configure
// properties into one list, pinned members first. Duplicates across members
// are preserved rather than deduplicated, matching the base algorithm's
// "consolidated properties" step.
func consolidatedProperties(pinned, unpinned []*model.ComponentInfo) []ports.PropertyValue {
	out := make([]ports.PropertyValue, 0)
	for _, m := range pinned {
		out = append(out, m.ConfigureProps...)
	}
	for _, m := range unpinned {
		out = append(out, m.ConfigureProps...)
	}
	return out
}

// findDevice locates a device by id in the catalog.
func findDevice(devices []*model.DeviceNode, id string) *model.DeviceNode {
	for _, d := range devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// AllocateUsesDevices resolves a batch of uses-device clauses via the
// Allocation Manager's bulk allocate() entry point. Any clause that the
// manager doesn't return a result for is reported in the returned error.
func (p *Planner) AllocateUsesDevices(ctx context.Context, clauses []model.UsesDeviceClause, led *ledger.Ledger) (map[string]ports.DeviceRef, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	reqs := make([]ports.BulkAllocationRequest, 0, len(clauses))
	for _, c := range clauses {
		reqs = append(reqs, ports.BulkAllocationRequest{RequestID: c.ID, Properties: c.Properties})
	}

	results, err := p.allocator.Allocate(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("uses-device allocation failed: %w", err)
	}

	byRequest := make(map[string]ports.BulkAllocationResult, len(results))
	for _, r := range results {
		byRequest[r.RequestID] = r
		led.Push(r.AllocationID)
	}

	out := make(map[string]ports.DeviceRef, len(clauses))
	var failed []string
	for _, c := range clauses {
		r, ok := byRequest[c.ID]
		if !ok {
			failed = append(failed, c.ID)
			continue
		}
		out[c.ID] = r.DeviceRef
	}
	if len(failed) > 0 {
		return nil, &ports.UsesDeviceUnsatisfiedError{OwnerID: "assembly", FailedUsesIDs: failed}
	}
	return out, nil
}

func filterExecutable(devices []*model.DeviceNode) []*model.DeviceNode {
	out := make([]*model.DeviceNode, 0, len(devices))
	for _, d := range devices {
		if d.IsExecutable {
			out = append(out, d)
		}
	}
	return out
}

func filterAvailable(devices []*model.DeviceNode) []*model.DeviceNode {
	out := make([]*model.DeviceNode, 0, len(devices))
	for _, d := range devices {
		if d.UsageState != ports.DeviceBusy {
			out = append(out, d)
		}
	}
	return out
}

// rotateDeviceList moves the device identified by id to the front of the
// list, preserving the relative order of everything else. This is a
// warm-start heuristic: a device that just accepted a placement is likely
// to have capacity for the next one too, so later lookups try it first.
func rotateDeviceList(devices []*model.DeviceNode, id string) []*model.DeviceNode {
	rotated := make([]*model.DeviceNode, 0, len(devices))
	var chosen *model.DeviceNode
	for _, d := range devices {
		if d.ID == id && chosen == nil {
			chosen = d
			continue
		}
		rotated = append(rotated, d)
	}
	if chosen == nil {
		return devices
	}
	return append([]*model.DeviceNode{chosen}, rotated...)
}
