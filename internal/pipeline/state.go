package pipeline

// State is one stage of the deployment pipeline (C6). The sequence below
// runs assembly validation first, then NameBinding (the waveform context
// name is allocated beforehand under the factory's mutex; the bind itself
// runs outside that mutex), application-scope uses-device satisfaction
// before any component
// placement, then placement, load/execute, registration, lifecycle, and
// external wiring before commit. Unwind (C7) runs the teardown actions
// recorded by whichever of these completed, in reverse order.
type State int

const (
	StateValidateAssembly State = iota
	StateBindWaveformContext
	StateApplicationServant
	StateMatchImplementations
	StateEvaluatePropertyExpressions
	StatePlaceUsesDevices
	StatePlaceCollocations
	StatePlaceComponents
	StateLoadCode
	StateLoadSoftPackageDeps
	StateExecute
	StateWaitForRegistration
	StateInitialize
	StateConnect
	StateConfigure
	StateExternalWiring
	StateCommit
)

func (s State) String() string {
	switch s {
	case StateValidateAssembly:
		return "validate_assembly"
	case StateBindWaveformContext:
		return "bind_waveform_context"
	case StateApplicationServant:
		return "application_servant"
	case StateMatchImplementations:
		return "match_implementations"
	case StateEvaluatePropertyExpressions:
		return "evaluate_property_expressions"
	case StatePlaceUsesDevices:
		return "place_uses_devices"
	case StatePlaceCollocations:
		return "place_collocations"
	case StatePlaceComponents:
		return "place_components"
	case StateLoadCode:
		return "load_code"
	case StateLoadSoftPackageDeps:
		return "load_soft_package_deps"
	case StateExecute:
		return "execute"
	case StateWaitForRegistration:
		return "wait_for_registration"
	case StateInitialize:
		return "initialize"
	case StateConnect:
		return "connect"
	case StateConfigure:
		return "configure"
	case StateExternalWiring:
		return "external_wiring"
	case StateCommit:
		return "commit"
	default:
		return "unknown"
	}
}
