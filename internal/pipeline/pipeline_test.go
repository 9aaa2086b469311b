package pipeline

import (
	"context"
	"testing"

	"github.com/anvil-platform/wavefactory/internal/fakes"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

// failingResource initializes cleanly but always fails configuration, so
// tests can exercise unwind after Execute/LoadCode have already run.
type failingResource struct{}

func (failingResource) Initialize(context.Context) error { return nil }
func (failingResource) Configure(context.Context, []ports.PropertyValue) (ports.ConfigureResult, error) {
	return ports.ConfigureResult{Outcome: ports.ConfigureInvalid, InvalidProps: []string{"gain"}}, nil
}

func basicComponent(id string) *model.ComponentInfo {
	return &model.ComponentInfo{
		InstanceID: id,
		Flags:      model.ComponentFlags{SCACompliant: true, Resource: true, Configurable: true},
		Implementations: []*model.ImplementationInfo{
			{ID: id + "_impl", EntryPoint: "/bin/" + id, LocalFile: "/" + id},
		},
	}
}

func TestPipeline_ConfigureFailureUnwindsLoadAndExecute(t *testing.T) {
	ctx := context.Background()

	ci := basicComponent("dsp")
	ci.WaveformContext = "wf_1"

	assembly, err := model.BuildAssembly(&model.SADDocument{
		Placements: []model.ComponentPlacement{{FileRefID: "spd-dsp", Instantiations: []model.Instantiation{{InstanceID: "dsp"}}}},
	})
	if err != nil {
		t.Fatalf("BuildAssembly error: %v", err)
	}

	allocator := fakes.NewAllocationManager()
	device := fakes.NewDevice("dev-a")
	naming := fakes.NewNamingContext()
	var app *fakes.Application

	p := New(Deps{
		Allocator: allocator,
		Devices:   map[string]ports.Device{"dev-a": device},
		Naming:    naming,
		NewApplication: func(_, waveformContext string) ports.Application {
			app = fakes.NewApplication("dsp:" + waveformContext)
			app.RegisterResource(ci.InstanceID+":"+waveformContext, failingResource{})
			return app
		},
	})

	in := Input{
		Assembly:        assembly,
		Components:      []*model.ComponentInfo{ci},
		Devices:         []*model.DeviceNode{{ID: "dev-a", IsExecutable: true, Ref: ports.DeviceRef{DeviceID: "dev-a"}}},
		WaveformContext: "wf_1",
		AppID:           "myapp",
	}

	_, err = p.Run(ctx, in)
	if err == nil {
		t.Fatalf("expected Configure failure to propagate")
	}

	if app.TerminateCalls != 1 {
		t.Fatalf("expected unwind to call TerminateComponents once, got %d", app.TerminateCalls)
	}
	if app.UnloadCalls != 1 {
		t.Fatalf("expected unwind to call UnloadComponents once, got %d", app.UnloadCalls)
	}
	if allocator.Outstanding() != 0 {
		t.Fatalf("expected unwind to release the placement allocation, got %d outstanding", allocator.Outstanding())
	}
}

func TestPipeline_InvalidAssemblyRejectedBeforeAnySideEffect(t *testing.T) {
	ctx := context.Background()

	assembly := &model.Assembly{} // never built via BuildAssembly, so unvalidated

	allocator := fakes.NewAllocationManager()
	var app *fakes.Application
	p := New(Deps{
		Allocator: allocator,
		NewApplication: func(_, _ string) ports.Application {
			app = fakes.NewApplication()
			return app
		},
	})

	_, err := p.Run(ctx, Input{Assembly: assembly, WaveformContext: "wf_1", AppID: "myapp"})
	if _, ok := errorsAs(err); !ok {
		t.Fatalf("expected an AssemblyInvalidError, got %T (%v)", err, err)
	}
	if app != nil {
		t.Fatalf("expected the pipeline to fail before the application servant was ever created")
	}
}

func errorsAs(err error) (*ports.AssemblyInvalidError, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*ports.AssemblyInvalidError); ok {
			return e, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
