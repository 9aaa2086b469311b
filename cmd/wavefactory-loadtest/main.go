// Command wavefactory-loadtest drives internal/factory.Factory.Create
// concurrently against an in-memory fake deployment stack, reporting
// throughput and startup latency. Grounded on the teacher's
// cmd/anvil-load-test: the same flag-configured worker count, WaitGroup
// fan-out, and latency channel, now driving the waveform factory in-process
// instead of a Kubernetes API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anvil-platform/wavefactory/internal/factory"
	"github.com/anvil-platform/wavefactory/internal/fakes"
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/pipeline"
	"github.com/anvil-platform/wavefactory/internal/ports"
	"github.com/anvil-platform/wavefactory/internal/telemetry"
)

func main() {
	var (
		numCreates  int
		appName     string
		numDevices  int
		numComps    int
	)
	flag.IntVar(&numCreates, "creates", 10, "Number of concurrent Create calls to issue")
	flag.StringVar(&appName, "app", "loadtest-waveform", "Base application name")
	flag.IntVar(&numDevices, "devices", 4, "Number of fake executable devices")
	flag.IntVar(&numComps, "components", 3, "Number of components in the synthetic assembly")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("failed to build logger: %v\n", err)
		return
	}
	defer logger.Sync()

	assembly, catalog := syntheticAssembly(numComps)
	devices := syntheticDevices(numDevices)

	metrics := telemetry.New()
	allocator := fakes.NewAllocationManager()
	naming := fakes.NewNamingContext()
	instanceIDs := assembly.InstanceIDs()

	deviceHandles := make(map[string]ports.Device, len(devices))
	for _, d := range devices {
		deviceHandles[d.ID] = fakes.NewDevice(d.ID)
	}

	f, err := factory.New(assembly, catalog, func() []*model.DeviceNode { return devices }, pipeline.Deps{
		Allocator: allocator,
		Devices:   deviceHandles,
		Naming:    naming,
		NewApplication: func(_, waveformContext string) ports.Application {
			registerable := make([]string, len(instanceIDs))
			for i, id := range instanceIDs {
				registerable[i] = id + ":" + waveformContext
			}
			return fakes.NewApplication(registerable...)
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to build factory", zap.Error(err))
	}

	fmt.Printf("Starting load test: %d creates against %d devices (%d components each)\n", numCreates, numDevices, numComps)

	var wg sync.WaitGroup
	start := time.Now()
	latencies := make(chan time.Duration, numCreates)

	for i := 0; i < numCreates; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("%s-%d", appName, id)

			createStart := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if _, err := f.Create(ctx, name, nil, nil); err != nil {
				fmt.Printf("Error creating waveform %s: %v\n", name, err)
				return
			}
			latency := time.Since(createStart)
			latencies <- latency
			fmt.Printf("Waveform %s created in %v\n", name, latency)
		}(i)
	}

	wg.Wait()
	close(latencies)
	totalDuration := time.Since(start)

	var totalLatency time.Duration
	count := 0
	for l := range latencies {
		totalLatency += l
		count++
	}

	if count > 0 {
		avgLatency := totalLatency / time.Duration(count)
		fmt.Printf("Load test completed in %v. Avg create latency: %v (%d/%d succeeded)\n", totalDuration, avgLatency, count, numCreates)
	} else {
		fmt.Printf("Load test completed in %v. No waveforms created successfully.\n", totalDuration)
	}
}

// syntheticAssembly builds a minimal valid Assembly with n components, the
// first of which is the Assembly Controller, each with exactly one
// implementation requiring no processor/OS dependencies (so it matches any
// fake device).
func syntheticAssembly(n int) (*model.Assembly, model.SPDCatalog) {
	if n < 1 {
		n = 1
	}
	sad := &model.SADDocument{ID: "DCE:loadtest", Name: "loadtest-assembly"}
	catalog := make(model.SPDCatalog, n)

	for i := 0; i < n; i++ {
		instanceID := fmt.Sprintf("comp_%d", i)
		fileRef := fmt.Sprintf("spd_%d", i)
		sad.Placements = append(sad.Placements, model.ComponentPlacement{
			FileRefID: fileRef,
			Instantiations: []model.Instantiation{{InstanceID: instanceID}},
		})
		catalog[fileRef] = &model.SPDDocument{
			ID:             fileRef,
			Name:           instanceID,
			IsScaCompliant: true,
			Implementations: []*model.ImplementationInfo{
				{ID: fileRef + "_impl", EntryPoint: "/bin/" + instanceID, LocalFile: "/" + instanceID},
			},
		}
		if i == 0 {
			sad.AssemblyControllerID = instanceID
		}
	}

	assembly, err := model.BuildAssembly(sad)
	if err != nil {
		panic(fmt.Sprintf("synthetic assembly failed validation: %v", err))
	}
	return assembly, catalog
}

func syntheticDevices(n int) []*model.DeviceNode {
	if n < 1 {
		n = 1
	}
	devices := make([]*model.DeviceNode, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("dev_%d", i)
		devices = append(devices, &model.DeviceNode{
			ID:           id,
			Label:        id,
			IsExecutable: true,
			Ref:          ports.DeviceRef{DeviceID: id},
		})
	}
	return devices
}
