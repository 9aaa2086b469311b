package model

import "github.com/anvil-platform/wavefactory/internal/ports"

// SPDDocument is the parsed Software Package Descriptor for one component
// (§3 Implementation Info's container). Only the fields the factory
// actually reads are carried; this is not a general-purpose SPD model.
type SPDDocument struct {
	ID                   string
	Name                 string
	PRFProperties        []ports.PropertyValue
	Implementations      []*ImplementationInfo
	IsScaCompliant       bool
}

// SADDocument is the parsed Software Assembly Descriptor, one level below
// the validated Assembly: it still carries raw file refs that need to be
// resolved against a catalog of SPDDocuments before becoming an Assembly.
type SADDocument struct {
	ID                    string
	Name                  string
	Placements            []ComponentPlacement
	CollocationGroups     []HostCollocationGroup
	ExternalPorts         []ExternalPort
	ExternalProperties    []ExternalProperty
	Connections           []ports.Connection
	UsesDeviceClauses     []UsesDeviceClause
	AssemblyControllerID  string
}

// SADParser produces a SADDocument from a source the caller identifies
// (typically a file path or URI). Out of scope per §1: the factory only
// depends on this interface, never on a concrete XML grammar.
type SADParser interface {
	ParseSAD(source string) (*SADDocument, error)
}

// SPDParser produces a SPDDocument from a source. Implementations are also
// responsible for resolving nested soft-package dependency SPDs.
type SPDParser interface {
	ParseSPD(source string) (*SPDDocument, error)
}
