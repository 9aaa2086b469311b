// Package ports declares the factory's external collaborators (Allocation
// Manager, Device, Application, Naming Service, File Manager) and the error
// taxonomy the Deployment Pipeline raises. Everything here is an interface
// or a value type: the concrete implementations live outside this module,
// the way REDHAWK's ApplicationFactory_impl depends on AllocationManager_impl,
// Device, and the CORBA naming service without owning any of them.
package ports

import "fmt"

// AssemblyInvalidError is raised when the Assembly Model fails validation:
// a duplicate external port/property alias, an alias colliding with the
// Assembly Controller's own property ids, or a component file ref with no
// matching SPD.
type AssemblyInvalidError struct {
	Reason string
}

func (e *AssemblyInvalidError) Error() string {
	return fmt.Sprintf("assembly invalid: %s", e.Reason)
}

// NoExecutableDevicesError is raised when the device snapshot contains no
// executable device at all.
type NoExecutableDevicesError struct{}

func (e *NoExecutableDevicesError) Error() string { return "no executable devices available" }

// AllExecutableDevicesBusyError is raised when executable devices exist but
// every one of them is in the busy usage state.
type AllExecutableDevicesBusyError struct{}

func (e *AllExecutableDevicesBusyError) Error() string { return "all executable devices are busy" }

// UsesDeviceUnsatisfiedError is raised when at least one uses-device clause
// could not be satisfied by any candidate device.
type UsesDeviceUnsatisfiedError struct {
	OwnerID        string
	FailedUsesIDs  []string
}

func (e *UsesDeviceUnsatisfiedError) Error() string {
	return fmt.Sprintf("uses-device unsatisfied for %q: %v", e.OwnerID, e.FailedUsesIDs)
}

// BadComponentAssignmentError is raised when a caller-supplied device
// assignment names a component id that does not exist in the assembly.
type BadComponentAssignmentError struct {
	ComponentID string
}

func (e *BadComponentAssignmentError) Error() string {
	return fmt.Sprintf("bad component assignment: unknown component %q", e.ComponentID)
}

// BadDeviceAssignmentError is raised when a caller-supplied device
// assignment names a device id that does not exist in the device catalog.
type BadDeviceAssignmentError struct {
	ComponentID string
	DeviceID    string
}

func (e *BadDeviceAssignmentError) Error() string {
	return fmt.Sprintf("bad device assignment: component %q requested unknown device %q", e.ComponentID, e.DeviceID)
}

// CollocationUnsatisfiableError is raised when no device can host an entire
// host-collocation group.
type CollocationUnsatisfiableError struct {
	GroupID string
}

func (e *CollocationUnsatisfiableError) Error() string {
	return fmt.Sprintf("collocation group %q is unsatisfiable", e.GroupID)
}

// NoDeviceSatisfiesDependenciesError is raised when every implementation of
// a component was tried against every candidate device and none succeeded.
type NoDeviceSatisfiesDependenciesError struct {
	ComponentID string
}

func (e *NoDeviceSatisfiesDependenciesError) Error() string {
	return fmt.Sprintf("no device satisfies dependencies for component %q", e.ComponentID)
}

// LoadFailedError is raised when a device's load operation fails for a
// component's code file or one of its soft-package dependency files.
type LoadFailedError struct {
	ComponentID string
	File        string
	Cause       error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("load failed for component %q file %q: %v", e.ComponentID, e.File, e.Cause)
}

func (e *LoadFailedError) Unwrap() error { return e.Cause }

// ExecuteFailedError is raised when a device's execute operation fails.
type ExecuteFailedError struct {
	ComponentID string
	Reason      string
}

func (e *ExecuteFailedError) Error() string {
	return fmt.Sprintf("execute failed for component %q: %s", e.ComponentID, e.Reason)
}

// ComponentRegistrationTimeoutError is raised when waitForComponents times
// out before every SCA-compliant component registered back.
type ComponentRegistrationTimeoutError struct {
	ComponentID string
}

func (e *ComponentRegistrationTimeoutError) Error() string {
	return fmt.Sprintf("component %q did not register before the timeout", e.ComponentID)
}

// ConnectionFailedError is raised when a connection in the assembly's
// connection list could not be resolved/established.
type ConnectionFailedError struct {
	ConnectionID string
	Cause        error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("connection %q failed: %v", e.ConnectionID, e.Cause)
}

func (e *ConnectionFailedError) Unwrap() error { return e.Cause }

// InvalidInitConfigurationError is raised when configure() reports an
// invalid or partially-invalid configuration. Partial configuration is
// treated as invalid per §7.
type InvalidInitConfigurationError struct {
	ComponentID   string
	InvalidProps  []string
}

func (e *InvalidInitConfigurationError) Error() string {
	return fmt.Sprintf("invalid init configuration for %q: %v", e.ComponentID, e.InvalidProps)
}

// PropertyExpressionError is raised by the Property Expression Evaluator
// when a __MATH__ payload is malformed or references an unknown property.
type PropertyExpressionError struct {
	Expression string
	Reason     string
}

func (e *PropertyExpressionError) Error() string {
	return fmt.Sprintf("property expression error in %q: %s", e.Expression, e.Reason)
}

// ExternalWiringError is raised when an external port or property cannot be
// resolved against its referenced component at wiring time (§4.6 step 14):
// the component id is unknown, or an external property's id does not exist
// in the referenced component's PRF.
type ExternalWiringError struct {
	Alias  string
	Reason string
}

func (e *ExternalWiringError) Error() string {
	return fmt.Sprintf("external wiring failed for alias %q: %s", e.Alias, e.Reason)
}

// NameBindingFailedError is raised when the factory cannot bind the
// waveform context name into the domain naming context.
type NameBindingFailedError struct {
	Name  string
	Cause error
}

func (e *NameBindingFailedError) Error() string {
	return fmt.Sprintf("name binding failed for %q: %v", e.Name, e.Cause)
}

func (e *NameBindingFailedError) Unwrap() error { return e.Cause }
