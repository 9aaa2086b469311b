// Package factory implements the Factory Front (C8): the single entry
// point that turns a create() call into one pipeline run, handing out a
// unique waveform context name and serializing the name-binding critical
// section. Grounded on ApplicationFactory_impl's create() and its
// _lastWaveformUniqueId/_pendingCreate instance members — kept here as
// fields on Factory, never as package-level globals, so multiple factories
// in one process (e.g. in tests) never share state.
package factory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/pipeline"
	"github.com/anvil-platform/wavefactory/internal/ports"
	"github.com/anvil-platform/wavefactory/internal/telemetry"
)

// Factory instantiates waveform applications from one fixed Assembly. One
// Factory corresponds to one REDHAWK ApplicationFactory: built once per
// assembly, reused across many Create calls.
type Factory struct {
	assembly      *model.Assembly
	catalog       model.SPDCatalog
	deviceCatalog func() []*model.DeviceNode
	pipeline      *pipeline.Pipeline
	logger        *zap.Logger
	metrics       *telemetry.Metrics

	mu             sync.Mutex // guards waveform-context name allocation (pendingCreate)
	nextWaveformID uint64
}

// New checks that the assembly was validated by model.BuildAssembly and
// returns a Factory ready to serve Create calls. No Assembly Controller
// properties are cached here: the SPD-dependent checks (including the
// external-property alias check against the AC's property ids) run on every
// Create, in model.BuildComponentInfos.
func New(assembly *model.Assembly, catalog model.SPDCatalog, deviceCatalog func() []*model.DeviceNode, deps pipeline.Deps) (*Factory, error) {
	if !assembly.IsValidated() {
		return nil, &ports.AssemblyInvalidError{Reason: "assembly must be built via model.BuildAssembly before use"}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.New()
	}
	deps.Logger = logger
	deps.Metrics = metrics

	return &Factory{
		assembly:      assembly,
		catalog:       catalog,
		deviceCatalog: deviceCatalog,
		pipeline:      pipeline.New(deps),
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Create instantiates one waveform application: a fresh, unique waveform
// context name, a fresh set of Component Info objects built from the
// Factory's assembly and SPD catalog, and one full deployment pipeline run.
// Safe for concurrent use; concurrent calls produce distinct waveform
// contexts and run independent pipelines (§5).
func (f *Factory) Create(ctx context.Context, name string, initConfiguration []ports.PropertyValue, deviceAssignments map[string]string) (*pipeline.Result, error) {
	f.metrics.CreateTotal.Inc()

	waveformContext := f.nextWaveformContext(name)

	components, err := model.BuildComponentInfos(f.assembly, waveformContext, f.catalog)
	if err != nil {
		f.metrics.CreateErrorTotal.Inc()
		return nil, err
	}

	trustedApplication, reducedInitConfig := extractTrustedApplication(initConfiguration)

	if err := applyInitConfiguration(components, f.assembly.AssemblyControllerID, reducedInitConfig); err != nil {
		f.metrics.CreateErrorTotal.Inc()
		return nil, err
	}

	componentIDs := make(map[string]bool, len(components))
	for _, ci := range components {
		componentIDs[ci.InstanceID] = true
	}
	for compID := range deviceAssignments {
		if !componentIDs[compID] {
			f.metrics.CreateErrorTotal.Inc()
			return nil, &ports.BadComponentAssignmentError{ComponentID: compID}
		}
	}

	in := pipeline.Input{
		Assembly:           f.assembly,
		Components:         components,
		Devices:            f.deviceCatalog(),
		WaveformContext:    waveformContext,
		AppID:              name,
		DeviceAssignments:  deviceAssignments,
		TrustedApplication: trustedApplication,
	}

	res, err := f.pipeline.Run(ctx, in)
	if err != nil {
		f.metrics.CreateErrorTotal.Inc()
		return nil, err
	}
	return res, nil
}

// nextWaveformContext allocates a unique waveform context name under the
// pendingCreate critical section.
func (f *Factory) nextWaveformContext(name string) string {
	f.mu.Lock()
	f.nextWaveformID++
	id := f.nextWaveformID
	f.mu.Unlock()
	return fmt.Sprintf("%s_%d", name, id)
}

const trustedApplicationKey = "TRUSTED_APPLICATION"

// extractTrustedApplication pulls the reserved TRUSTED_APPLICATION key out of
// the caller-supplied init configuration (§4.6 step 3, InitConfigExtraction),
// yielding a boolean flag plus the remaining property list with that key
// removed — the AC never sees TRUSTED_APPLICATION as one of its own
// configure properties.
func extractTrustedApplication(initConfiguration []ports.PropertyValue) (trusted bool, reduced []ports.PropertyValue) {
	reduced = make([]ports.PropertyValue, 0, len(initConfiguration))
	for _, p := range initConfiguration {
		if p.ID == trustedApplicationKey {
			if b, ok := p.Simple.(bool); ok {
				trusted = b
			}
			continue
		}
		reduced = append(reduced, p)
	}
	return trusted, reduced
}

// applyInitConfiguration layers the caller-supplied initial configuration
// over the Assembly Controller's configure properties.
func applyInitConfiguration(components []*model.ComponentInfo, assemblyControllerID string, initConfiguration []ports.PropertyValue) error {
	if len(initConfiguration) == 0 {
		return nil
	}
	for _, ci := range components {
		if ci.InstanceID != assemblyControllerID {
			continue
		}
		for _, override := range initConfiguration {
			replaced := false
			for i, p := range ci.ConfigureProps {
				if p.ID == override.ID {
					ci.ConfigureProps[i] = override
					replaced = true
					break
				}
			}
			if !replaced {
				ci.ConfigureProps = append(ci.ConfigureProps, override)
			}
		}
		return nil
	}
	return &ports.BadComponentAssignmentError{ComponentID: assemblyControllerID}
}
