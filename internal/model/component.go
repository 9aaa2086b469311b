package model

import (
	"fmt"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

// SPDCatalog maps a placement's FileRefID to its resolved SPDDocument. The
// caller builds it (for example by driving a SPDParser over every
// placement's file ref) and hands it to factory.New, which keeps it for
// every Create.
type SPDCatalog map[string]*SPDDocument

// BuildComponentInfos resolves every placement against the SPD catalog and
// produces the working Component Info objects the deployment pipeline
// mutates (§3). It is the second half of assembly validation: the part that
// needs a resolved SPD catalog (a missing file ref, or an external property
// alias colliding with the Assembly Controller's own property ids).
func BuildComponentInfos(a *Assembly, waveformContext string, catalog SPDCatalog) ([]*ComponentInfo, error) {
	infos := make([]*ComponentInfo, 0, len(a.Placements))
	byID := make(map[string]*ComponentInfo, len(a.Placements))

	for _, p := range a.Placements {
		inst, _ := p.FirstInstantiation()
		spd, ok := catalog[p.FileRefID]
		if !ok {
			return nil, &ports.AssemblyInvalidError{Reason: fmt.Sprintf("no SPD resolved for file ref %q (component %q)", p.FileRefID, inst.InstanceID)}
		}

		ci := &ComponentInfo{
			InstanceID:      inst.InstanceID,
			WaveformContext: waveformContext,
			SPD:             spd,
			PRFProperties:   spd.PRFProperties,
			ConfigureProps:  applyOverrides(spd.PRFProperties, inst.Overrides),
			Flags: ComponentFlags{
				SCACompliant:         spd.IsScaCompliant,
				Resource:             spd.IsScaCompliant,
				Configurable:         spd.IsScaCompliant,
				IsAssemblyController: inst.InstanceID == a.AssemblyControllerID,
			},
			Implementations: spd.Implementations,
			StartOrder:      inst.StartOrder,
			BindingName:     inst.BindingName,
			UsageName:       inst.UsageName,
			ExecParams:      ports.ExecParams{},
		}
		infos = append(infos, ci)
		byID[ci.InstanceID] = ci
	}

	if err := validateExternalPropertyAliases(a, byID); err != nil {
		return nil, err
	}

	return infos, nil
}

// applyOverrides layers instantiation-level property overrides on top of
// the SPD's declared PRF properties, matching the original's "instantiation
// overrides win" precedence.
func applyOverrides(base []ports.PropertyValue, overrides []PropertyOverride) []ports.PropertyValue {
	if len(overrides) == 0 {
		return base
	}
	out := make([]ports.PropertyValue, len(base))
	copy(out, base)
	for _, o := range overrides {
		replaced := false
		for i, p := range out {
			if p.ID == o.PropertyID {
				out[i] = o.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o.Value)
		}
	}
	return out
}

// validateExternalPropertyAliases rejects an external property alias that
// collides with one of the Assembly Controller's own property ids — the AC
// is addressable both through its own properties and through assembly-level
// aliases, so a collision would make one of the two unreachable.
func validateExternalPropertyAliases(a *Assembly, byID map[string]*ComponentInfo) error {
	ac, ok := byID[a.AssemblyControllerID]
	if !ok {
		return nil
	}
	acPropIDs := make(map[string]bool, len(ac.PRFProperties))
	for _, p := range ac.PRFProperties {
		acPropIDs[p.ID] = true
	}
	for _, ep := range a.ExternalProperties {
		if ep.ComponentInstanceID == a.AssemblyControllerID {
			continue
		}
		if acPropIDs[ep.Alias()] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("external property alias %q collides with assembly controller property id", ep.Alias())}
		}
	}
	return nil
}
