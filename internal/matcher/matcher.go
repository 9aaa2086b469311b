// Package matcher implements the Implementation Matcher (C2): the
// cross-product of a component's candidate implementations against the
// device catalog, filtered down to the (implementation, device) tuples
// whose processor and OS dependencies are actually satisfiable. Grounded on
// ApplicationFactory_impl.cpp's _resolveImplementations /
// _removeUnmatchedImplementations pair, and on the cross-product +
// compatibility-filter shape of the teacher's
// internal/resolver/default_resolver.go.
package matcher

import (
	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
	"github.com/anvil-platform/wavefactory/internal/semverdep"
)

// Candidate is one surviving (implementation, device) tuple.
type Candidate struct {
	Implementation *model.ImplementationInfo
	Device         *model.DeviceNode
}

// Match enumerates the cross product of implementations x devices and
// returns only the tuples that pass both the processor and OS dependency
// filters. Per the design note in §9, this is two-pass: the candidate set
// is built first, then filtered, rather than mutated while iterating.
func Match(implementations []*model.ImplementationInfo, devices []*model.DeviceNode) []Candidate {
	candidates := make([]Candidate, 0, len(implementations)*len(devices))
	for _, impl := range implementations {
		for _, dev := range devices {
			candidates = append(candidates, Candidate{Implementation: impl, Device: dev})
		}
	}

	survivors := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !processorCompatible(c.Implementation, c.Device) {
			continue
		}
		if !osCompatible(c.Implementation, c.Device) {
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors
}

// processorCompatible reports whether the device's processor name appears
// in the implementation's processor dependency list, or whether the
// implementation declares no processor dependency at all (unconstrained).
func processorCompatible(impl *model.ImplementationInfo, dev *model.DeviceNode) bool {
	if len(impl.ProcessorDeps) == 0 {
		return true
	}
	for _, p := range impl.ProcessorDeps {
		if p == dev.Processor {
			return true
		}
	}
	return false
}

// osCompatible reports whether every OS dependency the implementation
// declares is satisfiable by the device's advertised OS capabilities.
// Version comparison narrows to semver range overlap when both sides parse
// as semantic versions (internal/semverdep); otherwise it falls back to
// plain name+version string equality, exactly as the distilled algorithm
// describes.
func osCompatible(impl *model.ImplementationInfo, dev *model.DeviceNode) bool {
	if len(impl.OSDeps) == 0 {
		return true
	}
	for _, need := range impl.OSDeps {
		if !deviceSatisfiesOSDep(need, dev.OSCapabilities) {
			return false
		}
	}
	return true
}

func deviceSatisfiesOSDep(need ports.OSDependency, have []ports.OSDependency) bool {
	for _, h := range have {
		if h.Name != need.Name {
			continue
		}
		if need.Version == "" || h.Version == "" {
			return true
		}
		if need.Version == h.Version {
			return true
		}
		if semverdep.Comparable(need.Version, h.Version) {
			// The device satisfies the need if its advertised version is the
			// higher (or equal) of the two — it is at least what's required.
			return semverdep.Higher(need.Version, h.Version) == h.Version
		}
	}
	return false
}

// MergeOSDeps combines two implementations' OS dependency lists the way a
// soft-package-dependency merge does: union by name, narrowing version
// where both declare a parseable semver version for the same OS name,
// otherwise carrying both entries forward as the base algorithm would.
// Grounded on original_source's mergeOsDeps.
func MergeOSDeps(a, b []ports.OSDependency) []ports.OSDependency {
	merged := make([]ports.OSDependency, 0, len(a)+len(b))
	merged = append(merged, a...)
	for _, candidate := range b {
		matched := false
		for i, existing := range merged {
			if existing.Name != candidate.Name {
				continue
			}
			if existing.Version != "" && candidate.Version != "" && semverdep.Comparable(existing.Version, candidate.Version) {
				merged[i].Version = semverdep.Higher(existing.Version, candidate.Version)
				matched = true
			} else if existing.Version == candidate.Version {
				matched = true
			}
		}
		if !matched {
			merged = append(merged, candidate)
		}
	}
	return merged
}

// MergeProcessorDeps unions two processor-dependency lists, de-duplicating
// by name. Grounded on original_source's mergeProcessorDeps.
func MergeProcessorDeps(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	merged := make([]string, 0, len(a)+len(b))
	for _, p := range a {
		if !seen[p] {
			seen[p] = true
			merged = append(merged, p)
		}
	}
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			merged = append(merged, p)
		}
	}
	return merged
}

// GroupCandidate is one surviving cross-product tuple across a collocation
// group's components: one implementation choice per component, filtered
// down to tuples whose processor and OS dependencies have a non-empty
// running intersection (§4.2). Unlike MergeOSDeps/MergeProcessorDeps (union,
// used for soft-package-dependency merging), this is an intersection: the
// group needs a single device that satisfies every member at once, not the
// sum of what each member asks for.
type GroupCandidate struct {
	Implementations []*model.ImplementationInfo
	ProcessorDeps    []string
	OSDeps           []ports.OSDependency
}

// MatchGroup enumerates the cross product of implementation tuples
// (J1...Jn) over a collocation group's members — one candidate-implementation
// slice per member — and returns only the tuples that are A-compatible for
// both processor and OS dependencies: the running intersection across
// members with a non-empty dependency set must itself be non-empty. Members
// that declare no dependency at all for an attribute are unconstrained and
// never narrow the intersection. Grounded on the cross-product shape of
// Match, extended across components instead of components x devices, per
// §4.2's tuple definition.
func MatchGroup(memberImpls [][]*model.ImplementationInfo) []GroupCandidate {
	if len(memberImpls) == 0 {
		return []GroupCandidate{{}}
	}

	tuples := [][]*model.ImplementationInfo{{}}
	for _, impls := range memberImpls {
		next := make([][]*model.ImplementationInfo, 0, len(tuples)*len(impls))
		for _, prefix := range tuples {
			for _, impl := range impls {
				tuple := make([]*model.ImplementationInfo, len(prefix), len(prefix)+1)
				copy(tuple, prefix)
				tuple = append(tuple, impl)
				next = append(next, tuple)
			}
		}
		tuples = next
	}

	survivors := make([]GroupCandidate, 0, len(tuples))
	for _, tuple := range tuples {
		procDeps, procOK := intersectProcessorDeps(tuple)
		if !procOK {
			continue
		}
		osDeps, osOK := intersectOSDeps(tuple)
		if !osOK {
			continue
		}
		survivors = append(survivors, GroupCandidate{Implementations: tuple, ProcessorDeps: procDeps, OSDeps: osDeps})
	}
	return survivors
}

// intersectProcessorDeps returns the running intersection of every tuple
// member's non-empty processor-dependency list. ok is false once the
// intersection has gone empty after having been narrowed at least once.
func intersectProcessorDeps(tuple []*model.ImplementationInfo) ([]string, bool) {
	var current []string
	started := false
	for _, impl := range tuple {
		if len(impl.ProcessorDeps) == 0 {
			continue
		}
		if !started {
			current = append([]string(nil), impl.ProcessorDeps...)
			started = true
			continue
		}
		current = intersectStrings(current, impl.ProcessorDeps)
		if len(current) == 0 {
			return nil, false
		}
	}
	return current, true
}

func intersectStrings(a, b []string) []string {
	bset := make(map[string]bool, len(b))
	for _, v := range b {
		bset[v] = true
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if bset[v] {
			out = append(out, v)
		}
	}
	return out
}

// intersectOSDeps returns the running intersection of every tuple member's
// non-empty OS-dependency list, narrowing version the same way
// deviceSatisfiesOSDep does when both sides parse as comparable versions.
func intersectOSDeps(tuple []*model.ImplementationInfo) ([]ports.OSDependency, bool) {
	var current []ports.OSDependency
	started := false
	for _, impl := range tuple {
		if len(impl.OSDeps) == 0 {
			continue
		}
		if !started {
			current = append([]ports.OSDependency(nil), impl.OSDeps...)
			started = true
			continue
		}
		current = intersectOSDepSets(current, impl.OSDeps)
		if len(current) == 0 {
			return nil, false
		}
	}
	return current, true
}

func intersectOSDepSets(a, b []ports.OSDependency) []ports.OSDependency {
	out := make([]ports.OSDependency, 0, len(a))
	for _, x := range a {
		for _, y := range b {
			if x.Name != y.Name {
				continue
			}
			if x.Version == "" || y.Version == "" || x.Version == y.Version {
				out = append(out, x)
				break
			}
			if semverdep.Comparable(x.Version, y.Version) {
				out = append(out, ports.OSDependency{Name: x.Name, Version: semverdep.Higher(x.Version, y.Version)})
				break
			}
		}
	}
	return out
}
