package model

import (
	"fmt"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

// BuildAssembly converts a parsed SADDocument into a validated Assembly.
// It is the only constructor for Assembly; every invariant in §4.1 that can
// be checked without a resolved SPD catalog is enforced here.
func BuildAssembly(sad *SADDocument) (*Assembly, error) {
	a := &Assembly{
		AppID:                sad.ID,
		Name:                 sad.Name,
		Placements:           sad.Placements,
		CollocationGroups:    sad.CollocationGroups,
		ExternalPorts:        sad.ExternalPorts,
		ExternalProperties:   sad.ExternalProperties,
		Connections:          sad.Connections,
		UsesDeviceClauses:    sad.UsesDeviceClauses,
		AssemblyControllerID: sad.AssemblyControllerID,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	a.validated = true
	return a, nil
}

func (a *Assembly) validate() error {
	instanceIDs := make(map[string]bool)
	for _, p := range a.Placements {
		inst, ok := p.FirstInstantiation()
		if !ok {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("placement %q has no instantiation", p.FileRefID)}
		}
		if instanceIDs[inst.InstanceID] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("duplicate component instance id %q", inst.InstanceID)}
		}
		instanceIDs[inst.InstanceID] = true
	}

	if a.AssemblyControllerID != "" && !instanceIDs[a.AssemblyControllerID] {
		return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("assembly controller %q is not a placed component", a.AssemblyControllerID)}
	}

	for _, g := range a.CollocationGroups {
		for _, m := range g.Members {
			if !instanceIDs[m] {
				return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("collocation group %q references unknown component %q", g.ID, m)}
			}
		}
	}

	seenPortAlias := make(map[string]bool)
	for _, ep := range a.ExternalPorts {
		alias := ep.Alias()
		if seenPortAlias[alias] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("duplicate external port alias %q", alias)}
		}
		seenPortAlias[alias] = true
		if !instanceIDs[ep.ComponentInstanceID] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("external port %q references unknown component %q", alias, ep.ComponentInstanceID)}
		}
	}

	seenPropAlias := make(map[string]bool)
	for _, ep := range a.ExternalProperties {
		alias := ep.Alias()
		if seenPropAlias[alias] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("duplicate external property alias %q", alias)}
		}
		seenPropAlias[alias] = true
		if !instanceIDs[ep.ComponentInstanceID] {
			return &ports.AssemblyInvalidError{Reason: fmt.Sprintf("external property %q references unknown component %q", alias, ep.ComponentInstanceID)}
		}
	}

	return nil
}

// IsValidated reports whether this Assembly passed BuildAssembly's
// invariant checks. Always true for any Assembly obtained via BuildAssembly.
func (a *Assembly) IsValidated() bool { return a.validated }

// InstanceIDs returns every component instance id placed by this assembly,
// in declaration order.
func (a *Assembly) InstanceIDs() []string {
	ids := make([]string, 0, len(a.Placements))
	for _, p := range a.Placements {
		if inst, ok := p.FirstInstantiation(); ok {
			ids = append(ids, inst.InstanceID)
		}
	}
	return ids
}
