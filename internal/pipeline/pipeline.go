// Package pipeline implements the Deployment Pipeline (C6) and its Failure
// Unwind (C7): a linear state machine from name-binding through commit,
// where any failed state triggers a strict reverse-order teardown of every
// side effect the preceding states produced. Grounded on
// ApplicationFactory_impl.cpp's createHelper::create and
// createHelper::_cleanupFailedCreate.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anvil-platform/wavefactory/internal/ledger"
	"github.com/anvil-platform/wavefactory/internal/matcher"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/planner"
	"github.com/anvil-platform/wavefactory/internal/ports"
	"github.com/anvil-platform/wavefactory/internal/propexpr"
	"github.com/anvil-platform/wavefactory/internal/telemetry"
)

// Deps bundles every external collaborator the pipeline drives (§6).
type Deps struct {
	Allocator   ports.AllocationManager
	Devices     map[string]ports.Device // device id -> live handle
	Naming      ports.NamingContext
	FileManager ports.FileManager
	// NewApplication builds a fresh Application Servant for one waveform
	// (§4.6 step 8). Called once per Run, never shared across concurrent
	// creates of the same assembly. May be nil in collaborators that don't
	// model the Application table (e.g. a dry pipeline run).
	NewApplication func(assemblyID, waveformContext string) ports.Application
	Events         ports.EventPublisher
	Metrics        *telemetry.Metrics
	Logger         *zap.Logger
	// DomainName feeds the DOM_PATH exec parameter.
	DomainName string
	// LoggingConfigURI feeds the conditional LOGGING_CONFIG_URI exec
	// parameter; an "sca:" URI gets "?fs=<fileSystemIOR>" appended via
	// FileManager.IOR().
	LoggingConfigURI string
}

// Pipeline runs one deployment attempt end to end.
type Pipeline struct {
	deps    Deps
	planner *planner.Planner
}

// New returns a Pipeline bound to the given collaborators.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.New()
	}
	return &Pipeline{deps: deps, planner: planner.New(deps.Allocator, deps.Logger)}
}

// Input is everything one Create call needs to run the pipeline.
type Input struct {
	Assembly           *model.Assembly
	Components         []*model.ComponentInfo // placement order
	Devices            []*model.DeviceNode
	WaveformContext    string
	AppID              string
	DeviceAssignments  map[string]string // componentID -> caller-pinned deviceID
	TrustedApplication bool              // extracted from initConfiguration's TRUSTED_APPLICATION key (§4.6 step 3)
}

// Result is what a successful Create produces.
type Result struct {
	AppID              string
	WaveformContext    string
	TrustedApplication bool
}

// run carries the mutable state one pipeline execution accumulates:
// allocations (via the ledger), the naming bind, the per-waveform
// Application Servant, and which components have been loaded/executed so
// unwind knows what to undo.
type run struct {
	in          Input
	led         *ledger.Ledger
	devices     []*model.DeviceNode
	byID        map[string]*model.ComponentInfo
	app         ports.Application
	boundName   string
	namingBound bool
	anyLoaded   bool
	anyExecuted bool
	startSeq    []ports.StartOrderEntry
}

// Run executes the full pipeline. On any error every side effect produced
// so far is unwound before the error is returned.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	r := &run{
		in:      in,
		led:     ledger.New(p.deps.Allocator, p.deps.Logger),
		devices: in.Devices,
		byID:    make(map[string]*model.ComponentInfo, len(in.Components)),
	}
	for _, ci := range in.Components {
		r.byID[ci.InstanceID] = ci
	}

	steps := []struct {
		state State
		fn    func(context.Context, *run) error
	}{
		{StateValidateAssembly, p.stepValidateAssembly},
		{StateBindWaveformContext, p.stepBindWaveformContext},
		{StateApplicationServant, p.stepApplicationServant},
		{StateMatchImplementations, p.stepMergeSoftPkgDeps},
		{StateEvaluatePropertyExpressions, p.stepEvaluatePropertyExpressions},
		{StatePlaceUsesDevices, p.stepPlaceUsesDevices},
		{StatePlaceCollocations, p.stepPlaceCollocations},
		{StatePlaceComponents, p.stepPlaceComponents},
		{StateLoadCode, p.stepLoadCode},
		{StateLoadSoftPackageDeps, p.stepLoadSoftPackageDeps},
		{StateExecute, p.stepExecute},
		{StateWaitForRegistration, p.stepWaitForRegistration},
		{StateInitialize, p.stepInitialize},
		{StateConnect, p.stepConnect},
		{StateConfigure, p.stepConfigure},
		{StateExternalWiring, p.stepExternalWiring},
		{StateCommit, p.stepCommit},
	}

	log := p.deps.Logger.With(zap.String("appId", in.AppID), zap.String("waveformContext", in.WaveformContext))

	for _, step := range steps {
		started := time.Now()
		err := step.fn(ctx, r)
		elapsed := time.Since(started).Seconds()
		p.deps.Metrics.PipelineDuration.WithLabelValues(step.state.String()).Observe(elapsed)
		p.deps.Metrics.PipelineStateTotal.WithLabelValues(step.state.String()).Inc()

		if err != nil {
			p.deps.Metrics.PipelineStateErrorTotal.WithLabelValues(step.state.String()).Inc()
			log.Error("deployment pipeline state failed", zap.String("state", step.state.String()), zap.Error(err))
			p.unwind(ctx, r, log)
			return nil, fmt.Errorf("state %s: %w", step.state, err)
		}
		log.Debug("deployment pipeline state completed", zap.String("state", step.state.String()))
	}

	return &Result{AppID: in.AppID, WaveformContext: in.WaveformContext, TrustedApplication: in.TrustedApplication}, nil
}

// unwind reverses every side effect this run produced, in the strict
// reverse of the order it was created: terminate, unload, release
// allocations, unbind name. It never returns an error — failures here are
// diagnostic only (§9), matching _cleanupFailedCreate's "best effort"
// discipline.
func (p *Pipeline) unwind(ctx context.Context, r *run, log *zap.Logger) {
	p.deps.Metrics.UnwindTotal.Inc()

	if r.anyExecuted && r.app != nil {
		r.app.TerminateComponents(ctx)
	}
	if r.anyLoaded && r.app != nil {
		r.app.UnloadComponents(ctx)
	}
	r.led.Release(ctx)
	if r.namingBound && p.deps.Naming != nil {
		if err := p.deps.Naming.Unbind(ctx, r.boundName); err != nil {
			log.Warn("unwind: failed to unbind waveform context name", zap.String("name", r.boundName), zap.Error(err))
		}
	}
}

func (p *Pipeline) stepValidateAssembly(_ context.Context, r *run) error {
	if !r.in.Assembly.IsValidated() {
		return &ports.AssemblyInvalidError{Reason: "assembly was not validated before deployment"}
	}
	return nil
}

// stepMergeSoftPkgDeps resolves each implementation's soft-package
// dependencies by choosing the first declared sub-implementation of each
// dependency and merging its OS/processor requirements into the parent, so
// the later placement step can match against one flattened dependency set
// instead of walking the dependency tree at match time. The choice is made
// before any device is selected and without a compatibility check, and the
// chosen sub-implementation's own soft-package dependencies are not resolved.
func (p *Pipeline) stepMergeSoftPkgDeps(_ context.Context, r *run) error {
	for _, ci := range r.in.Components {
		for _, impl := range ci.Implementations {
			for depIdx, dep := range impl.SoftPkgDeps {
				if dep == nil || dep.SPD == nil || len(dep.SPD.Implementations) == 0 {
					continue
				}
				chosen := dep.SPD.Implementations[0]
				impl.OSDeps = matcher.MergeOSDeps(impl.OSDeps, chosen.OSDeps)
				impl.ProcessorDeps = matcher.MergeProcessorDeps(impl.ProcessorDeps, chosen.ProcessorDeps)
				for len(impl.SelectedSoftPkgImpl) <= depIdx {
					impl.SelectedSoftPkgImpl = append(impl.SelectedSoftPkgImpl, nil)
				}
				impl.SelectedSoftPkgImpl[depIdx] = chosen
			}
		}
	}
	return nil
}

// stepApplicationServant creates the per-waveform Application Servant
// (§4.6 step 8). One fresh instance is built for every Run so concurrent
// creates of the same assembly never register components into a shared
// table under colliding ids.
func (p *Pipeline) stepApplicationServant(_ context.Context, r *run) error {
	if p.deps.NewApplication == nil {
		return nil
	}
	r.app = p.deps.NewApplication(r.in.AppID, r.in.WaveformContext)
	return nil
}

func (p *Pipeline) stepEvaluatePropertyExpressions(_ context.Context, r *run) error {
	for _, ci := range r.in.Components {
		for i, pv := range ci.ConfigureProps {
			raw, ok := pv.Simple.(string)
			if !ok || !propexpr.IsExpression(raw) {
				continue
			}
			evaluated, err := propexpr.Evaluate(pv.ID, raw, ci.ConfigureProps)
			if err != nil {
				return err
			}
			ci.ConfigureProps[i] = evaluated
		}
	}
	return nil
}

func (p *Pipeline) stepPlaceCollocations(ctx context.Context, r *run) error {
	for _, group := range r.in.Assembly.CollocationGroups {
		members := make([]*model.ComponentInfo, 0, len(group.Members))
		for _, id := range group.Members {
			ci, ok := r.byID[id]
			if !ok {
				return &ports.BadComponentAssignmentError{ComponentID: id}
			}
			members = append(members, ci)
		}
		results, devices, err := p.planner.PlaceCollocation(ctx, group, members, r.devices, r.led, r.in.DeviceAssignments)
		if err != nil {
			return err
		}
		r.devices = devices
		for id, res := range results {
			ci := r.byID[id]
			ci.SelectedImplementation = res.Implementation
			ci.AssignedDevice = &model.DeviceAssignment{DeviceID: res.Device.ID, DeviceRef: res.Device.Ref}
		}
	}
	return nil
}

func (p *Pipeline) stepPlaceComponents(ctx context.Context, r *run) error {
	for _, ci := range r.in.Components {
		if ci.AssignedDevice != nil {
			continue // already placed by collocation
		}
		candidateDevices := r.devices
		pinnedID, isPinned := r.in.DeviceAssignments[ci.InstanceID]
		if isPinned {
			dev := findDevice(r.devices, pinnedID)
			if dev == nil {
				return &ports.BadDeviceAssignmentError{ComponentID: ci.InstanceID, DeviceID: pinnedID}
			}
			candidateDevices = []*model.DeviceNode{dev}
		}
		res, devices, err := p.planner.AllocateComponent(ctx, ci, candidateDevices, r.led)
		if err != nil {
			return err
		}
		if !isPinned {
			r.devices = devices
		}
		ci.SelectedImplementation = res.Implementation
		ci.AssignedDevice = &model.DeviceAssignment{DeviceID: res.Device.ID, DeviceRef: res.Device.Ref}
	}
	return nil
}

func (p *Pipeline) stepPlaceUsesDevices(ctx context.Context, r *run) error {
	_, err := p.planner.AllocateUsesDevices(ctx, r.in.Assembly.UsesDeviceClauses, r.led)
	return err
}

func (p *Pipeline) stepBindWaveformContext(ctx context.Context, r *run) error {
	if p.deps.Naming == nil {
		return nil
	}
	if err := p.deps.Naming.Bind(ctx, r.in.WaveformContext, r.in.AppID); err != nil {
		return &ports.NameBindingFailedError{Name: r.in.WaveformContext, Cause: err}
	}
	r.boundName = r.in.WaveformContext
	r.namingBound = true
	return nil
}

func (p *Pipeline) stepLoadCode(ctx context.Context, r *run) error {
	for _, ci := range r.in.Components {
		dev := p.deps.Devices[ci.AssignedDevice.DeviceID]
		if dev == nil {
			continue
		}
		if err := dev.Load(ctx, ci.SelectedImplementation.LocalFile, ci.SelectedImplementation.CodeType); err != nil {
			return &ports.LoadFailedError{ComponentID: ci.InstanceID, File: ci.SelectedImplementation.LocalFile, Cause: err}
		}
		r.anyLoaded = true
		if r.app != nil {
			r.app.AddComponentLoadedFile(ci.CompositeID(), ci.SelectedImplementation.LocalFile)
		}
	}
	return nil
}

func (p *Pipeline) stepLoadSoftPackageDeps(ctx context.Context, r *run) error {
	for _, ci := range r.in.Components {
		dev := p.deps.Devices[ci.AssignedDevice.DeviceID]
		if dev == nil || ci.SelectedImplementation == nil {
			continue
		}
		for _, sub := range ci.SelectedImplementation.SelectedSoftPkgImpl {
			if sub == nil {
				continue
			}
			if err := dev.Load(ctx, sub.LocalFile, sub.CodeType); err != nil {
				return &ports.LoadFailedError{ComponentID: ci.InstanceID, File: sub.LocalFile, Cause: err}
			}
			r.anyLoaded = true
			if r.app != nil {
				r.app.AddComponentLoadedFile(ci.CompositeID(), sub.LocalFile)
			}
		}
	}
	return nil
}

func (p *Pipeline) stepExecute(ctx context.Context, r *run) error {
	for _, ci := range r.in.Components {
		dev := p.deps.Devices[ci.AssignedDevice.DeviceID]
		if dev == nil {
			continue
		}
		execParams := p.buildExecParams(r, ci)
		pid, err := dev.Execute(ctx, ci.SelectedImplementation.EntryPoint, nil, execParams)
		if err != nil {
			return &ports.ExecuteFailedError{ComponentID: ci.InstanceID, Reason: err.Error()}
		}
		r.anyExecuted = true
		if r.app != nil {
			r.app.AddComponent(ci.CompositeID())
			r.app.SetComponentImplementation(ci.CompositeID(), ci.SelectedImplementation.ID)
			r.app.SetComponentDevice(ci.CompositeID(), ci.AssignedDevice.DeviceID)
			r.app.SetComponentPid(ci.CompositeID(), pid)
		}
	}
	return nil
}

// buildExecParams assembles the exec-parameter bag injected into a
// component process at execute() time (§4.6 "Exec parameter injection").
// NAMING_CONTEXT_IOR has no CORBA IOR concept in this model, so the bound
// waveform context name stands in for it.
func (p *Pipeline) buildExecParams(r *run, ci *model.ComponentInfo) ports.ExecParams {
	params := make(ports.ExecParams, len(ci.ExecParams)+6)
	for k, v := range ci.ExecParams {
		params[k] = v
	}
	params["NAMING_CONTEXT_IOR"] = r.boundName
	params["COMPONENT_IDENTIFIER"] = ci.CompositeID()
	params["NAME_BINDING"] = componentNameBinding(ci)
	params["DOM_PATH"] = p.deps.DomainName
	if ci.SPD != nil {
		params["PROFILE_NAME"] = ci.SPD.ID
	}
	if p.deps.LoggingConfigURI != "" {
		params["LOGGING_CONFIG_URI"] = p.loggingConfigURI()
	}
	return params
}

// loggingConfigURI appends the file manager's IOR as a query parameter when
// the configured URI uses the "sca:" scheme, the way the original resolves
// a logging config file reference through the file system.
func (p *Pipeline) loggingConfigURI() string {
	uri := p.deps.LoggingConfigURI
	if strings.HasPrefix(uri, "sca:") && p.deps.FileManager != nil {
		uri = uri + "?fs=" + p.deps.FileManager.IOR()
	}
	return uri
}

// componentNameBinding is the name a component binds itself under in the
// waveform's naming context: the declared binding name, falling back to the
// instance id when none was declared.
func componentNameBinding(ci *model.ComponentInfo) string {
	if ci.BindingName != "" {
		return ci.BindingName
	}
	return ci.InstanceID
}

func (p *Pipeline) stepWaitForRegistration(ctx context.Context, r *run) error {
	if r.app == nil {
		return nil
	}
	var ids []string
	for _, ci := range r.in.Components {
		if ci.Flags.SCACompliant {
			ids = append(ids, ci.CompositeID())
		}
	}
	if len(ids) == 0 {
		return nil
	}
	ok, failedID := r.app.WaitForComponents(ctx, ids, 0)
	if !ok {
		return &ports.ComponentRegistrationTimeoutError{ComponentID: failedID}
	}
	return nil
}

// stepInitialize looks each Resource-flagged component up in the
// Application's registered-components table, narrowed to the Resource
// interface, and initializes it (§4.6 step 11). A component that hasn't
// registered back yet (Resource not found) is left unstarted rather than
// treated as an error: non-SCA-compliant components and components with no
// servant never register at all. The Assembly Controller is excluded from
// the start sequence; it starts implicitly via configure().
func (p *Pipeline) stepInitialize(ctx context.Context, r *run) error {
	if r.app != nil {
		for _, ci := range r.in.Components {
			if !ci.Flags.Resource {
				continue
			}
			res, ok := r.app.Resource(ci.CompositeID())
			if !ok {
				continue
			}
			ci.Resource = res
			if err := ci.Resource.Initialize(ctx); err != nil {
				return fmt.Errorf("initialize component %q: %w", ci.InstanceID, err)
			}
		}
	}
	r.startSeq = buildStartSequence(r.in.Components, r.in.Assembly.AssemblyControllerID)
	return nil
}

// buildStartSequence orders every non-AC component with a registered
// Resource ascending by declared StartOrder. A nil StartOrder sorts last;
// ties (including two nils) keep SAD declaration order, since
// sort.SliceStable never reorders equal elements.
func buildStartSequence(components []*model.ComponentInfo, assemblyControllerID string) []ports.StartOrderEntry {
	eligible := make([]*model.ComponentInfo, 0, len(components))
	for _, ci := range components {
		if ci.InstanceID == assemblyControllerID || ci.Resource == nil {
			continue
		}
		eligible = append(eligible, ci)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].StartOrder, eligible[j].StartOrder
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	seq := make([]ports.StartOrderEntry, 0, len(eligible))
	for _, ci := range eligible {
		seq = append(seq, startOrderEntry(ci))
	}
	return seq
}

func (p *Pipeline) stepConnect(_ context.Context, r *run) error {
	for _, conn := range r.in.Assembly.Connections {
		if conn.ID == "" {
			return &ports.ConnectionFailedError{ConnectionID: conn.ID, Cause: fmt.Errorf("empty connection id")}
		}
	}
	return nil
}

// stepConfigure configures every non-AC component in SAD declaration order,
// then the Assembly Controller last (§4.6 step 13): the AC's own
// configuration often depends on its child components already being live.
func (p *Pipeline) stepConfigure(ctx context.Context, r *run) error {
	ac := r.byID[r.in.Assembly.AssemblyControllerID]
	for _, ci := range r.in.Components {
		if ci == ac || ci.Resource == nil || !ci.Flags.Configurable {
			continue
		}
		if err := configureResource(ctx, ci); err != nil {
			return err
		}
	}
	if ac != nil && ac.Resource != nil && ac.Flags.Configurable {
		if err := configureResource(ctx, ac); err != nil {
			return err
		}
	}
	return nil
}

func configureResource(ctx context.Context, ci *model.ComponentInfo) error {
	res, err := ci.Resource.Configure(ctx, ci.ConfigureProps)
	if err != nil {
		return fmt.Errorf("configure component %q: %w", ci.InstanceID, err)
	}
	if res.Outcome != ports.ConfigureOK {
		return &ports.InvalidInitConfigurationError{ComponentID: ci.InstanceID, InvalidProps: res.InvalidProps}
	}
	return nil
}

// stepExternalWiring resolves the assembly's external ports and properties
// against the components they reference (§4.6 step 14), then registers each
// one under its alias on the Application. A reference to a component that
// doesn't exist, or an external property id absent from both the
// component's configure properties and its declared PRF, fails the state —
// the assembly validator checks alias collisions and component references,
// but not whether a referenced property id exists.
func (p *Pipeline) stepExternalWiring(_ context.Context, r *run) error {
	if r.app == nil {
		return nil
	}
	for _, ep := range r.in.Assembly.ExternalPorts {
		ci, ok := r.byID[ep.ComponentInstanceID]
		if !ok {
			return &ports.ExternalWiringError{Alias: ep.Alias(), Reason: fmt.Sprintf("unknown component %q", ep.ComponentInstanceID)}
		}
		r.app.AddExternalPort(ep.Alias(), ci.CompositeID(), ep.PortName)
	}
	for _, ep := range r.in.Assembly.ExternalProperties {
		ci, ok := r.byID[ep.ComponentInstanceID]
		if !ok {
			return &ports.ExternalWiringError{Alias: ep.Alias(), Reason: fmt.Sprintf("unknown component %q", ep.ComponentInstanceID)}
		}
		if _, found := ports.Find(ci.ConfigureProps, ep.PropertyID); !found {
			if _, found = ports.Find(ci.PRFProperties, ep.PropertyID); !found {
				return &ports.ExternalWiringError{Alias: ep.Alias(), Reason: fmt.Sprintf("component %q has no property %q", ep.ComponentInstanceID, ep.PropertyID)}
			}
		}
		r.app.AddExternalProperty(ep.Alias(), ci.CompositeID(), ep.PropertyID)
	}
	return nil
}

func (p *Pipeline) stepCommit(ctx context.Context, r *run) error {
	if r.app != nil {
		devices := make([]ports.DeviceRef, 0, len(r.in.Components))
		for _, ci := range r.in.Components {
			if ci.AssignedDevice != nil {
				devices = append(devices, ci.AssignedDevice.DeviceRef)
			}
		}
		var ac ports.Resource
		if acCI, ok := r.byID[r.in.Assembly.AssemblyControllerID]; ok {
			ac = acCI.Resource
		}
		r.app.PopulateApplication(ac, devices, r.startSeq, r.in.Assembly.Connections, r.led.IDs())
	}
	if p.deps.Events != nil {
		if err := p.deps.Events.PublishApplicationAdded(ctx, r.in.AppID, r.in.WaveformContext, len(r.in.Components)); err != nil {
			p.deps.Logger.Warn("failed to publish APPLICATION_ADDED", zap.Error(err))
		}
	}
	return nil
}

func startOrderEntry(ci *model.ComponentInfo) ports.StartOrderEntry {
	return ports.StartOrderEntry{ComponentID: ci.CompositeID(), Resource: ci.Resource}
}

func findDevice(devices []*model.DeviceNode, id string) *model.DeviceNode {
	for _, d := range devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}
