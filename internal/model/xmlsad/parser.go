// Package xmlsad is a minimal stdlib-encoding/xml adapter that implements
// model.SADParser and model.SPDParser. The SAD/SPD/PRF grammars are out of
// scope for the factory itself (§1); this package exists so the CLI driver
// and integration tests have a real file-backed parser to run against,
// without committing the factory to any particular XML schema.
package xmlsad

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/anvil-platform/wavefactory/internal/model"
	"github.com/anvil-platform/wavefactory/internal/ports"
)

// sadXML is a reduced SAD grammar: enough to round-trip the fields
// model.SADDocument carries.
type sadXML struct {
	XMLName      xml.Name `xml:"softwareassembly"`
	ID           string   `xml:"id,attr"`
	Name         string   `xml:"name,attr"`
	AssemblyCtrl struct {
		ComponentInstantiationRef struct {
			RefID string `xml:"refid,attr"`
		} `xml:"componentinstantiationref"`
	} `xml:"assemblycontroller"`
	Partitioning struct {
		ComponentPlacement []componentPlacementXML `xml:"componentplacement"`
		HostCollocation    []struct {
			ID                 string   `xml:"id,attr"`
			ComponentInstances []string `xml:"componentplacement>componentinstantiation>id"`
		} `xml:"hostcollocation"`
	} `xml:"partitioning"`
	Connections struct {
		Connection []struct {
			ID string `xml:"id,attr"`
		} `xml:"connectinterface"`
	} `xml:"connections"`
	ExternalPorts struct {
		Port []struct {
			ComponentRefID string `xml:"componentinstantiationref>refid"`
			ProvidesPortID string `xml:"identifier"`
			ExternalName   string `xml:"externalname,attr"`
		} `xml:"port"`
	} `xml:"externalports"`
	ExternalProperties struct {
		Property []struct {
			ComponentRefID string `xml:"comprefid,attr"`
			PropID         string `xml:"propid,attr"`
			ExternalID     string `xml:"externalpropid,attr"`
		} `xml:"property"`
	} `xml:"externalproperties"`
}

type componentPlacementXML struct {
	ComponentFileRef struct {
		RefID string `xml:"refid,attr"`
	} `xml:"componentfileref"`
	ComponentInstantiation []struct {
		ID          string `xml:"id,attr"`
		UsageName   string `xml:"usagename"`
		StartOrder  string `xml:"startorder"`
		NamingService struct {
			Name string `xml:"name,attr"`
		} `xml:"findcomponent>namingservice"`
	} `xml:"componentinstantiation"`
}

// Parser parses SAD/SPD documents from the local filesystem.
type Parser struct{}

// New returns a filesystem-backed Parser.
func New() *Parser { return &Parser{} }

// ParseSAD implements model.SADParser.
func (p *Parser) ParseSAD(source string) (*model.SADDocument, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read SAD %q: %w", source, err)
	}
	var raw sadXML
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse SAD %q: %w", source, err)
	}

	doc := &model.SADDocument{
		ID:                   raw.ID,
		Name:                 raw.Name,
		AssemblyControllerID: raw.AssemblyCtrl.ComponentInstantiationRef.RefID,
	}

	for _, cp := range raw.Partitioning.ComponentPlacement {
		placement := model.ComponentPlacement{FileRefID: cp.ComponentFileRef.RefID}
		for _, ci := range cp.ComponentInstantiation {
			inst := model.Instantiation{
				InstanceID:  ci.ID,
				UsageName:   ci.UsageName,
				BindingName: ci.NamingService.Name,
			}
			if ci.StartOrder != "" {
				var order int
				if _, err := fmt.Sscanf(ci.StartOrder, "%d", &order); err == nil {
					inst.StartOrder = &order
				}
			}
			placement.Instantiations = append(placement.Instantiations, inst)
		}
		doc.Placements = append(doc.Placements, placement)
	}

	for _, hc := range raw.Partitioning.HostCollocation {
		doc.CollocationGroups = append(doc.CollocationGroups, model.HostCollocationGroup{
			ID:      hc.ID,
			Members: hc.ComponentInstances,
		})
	}

	for _, ep := range raw.ExternalPorts.Port {
		doc.ExternalPorts = append(doc.ExternalPorts, model.ExternalPort{
			ComponentInstanceID: ep.ComponentRefID,
			PortName:            ep.ProvidesPortID,
			ExternalAlias:       ep.ExternalName,
		})
	}

	for _, prop := range raw.ExternalProperties.Property {
		doc.ExternalProperties = append(doc.ExternalProperties, model.ExternalProperty{
			ComponentInstanceID: prop.ComponentRefID,
			PropertyID:          prop.PropID,
			ExternalAlias:       prop.ExternalID,
		})
	}

	for _, c := range raw.Connections.Connection {
		doc.Connections = append(doc.Connections, ports.Connection{ID: c.ID})
	}

	return doc, nil
}

// spdXML is a reduced SPD/PRF grammar.
type spdXML struct {
	XMLName xml.Name `xml:"softpkg"`
	ID      string   `xml:"id,attr"`
	Name    string   `xml:"name,attr"`
	PRF     struct {
		SimpleRef []struct {
			ID    string `xml:"id,attr"`
			Value string `xml:"value,attr"`
		} `xml:"simple"`
	} `xml:"propertyfile>properties"`
	Implementation []struct {
		ID          string `xml:"id,attr"`
		Code        struct {
			LocalFile struct {
				Name string `xml:"name,attr"`
			} `xml:"localfile"`
			EntryPoint string `xml:"entrypoint"`
			Type       string `xml:"type"`
		} `xml:"code"`
		OSDependency []struct {
			Name    string `xml:"name"`
			Version string `xml:"version"`
		} `xml:"dependency>os"`
		ProcessorDependency []string `xml:"processor>name"`
	} `xml:"implementation"`
}

// ParseSPD implements model.SPDParser. Nested soft-package dependencies are
// not resolved here; callers needing them run ParseSPD again against the
// dependency's own file ref and attach the result to
// ImplementationInfo.SoftPkgDeps themselves.
func (p *Parser) ParseSPD(source string) (*model.SPDDocument, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read SPD %q: %w", source, err)
	}
	var raw spdXML
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse SPD %q: %w", source, err)
	}

	doc := &model.SPDDocument{
		ID:             raw.ID,
		Name:           raw.Name,
		IsScaCompliant: true,
	}
	for _, s := range raw.PRF.SimpleRef {
		doc.PRFProperties = append(doc.PRFProperties, ports.Simple(s.ID, s.Value))
	}
	for _, impl := range raw.Implementation {
		ii := &model.ImplementationInfo{
			ID:         impl.ID,
			LocalFile:  impl.Code.LocalFile.Name,
			EntryPoint: impl.Code.EntryPoint,
			CodeType:   codeTypeFromString(impl.Code.Type),
		}
		for _, os := range impl.OSDependency {
			ii.OSDeps = append(ii.OSDeps, ports.OSDependency{Name: os.Name, Version: os.Version})
		}
		ii.ProcessorDeps = append(ii.ProcessorDeps, impl.ProcessorDependency...)
		doc.Implementations = append(doc.Implementations, ii)
	}
	return doc, nil
}

func codeTypeFromString(s string) ports.CodeType {
	switch s {
	case "SharedLibrary":
		return ports.CodeSharedLibrary
	case "Driver":
		return ports.CodeDriver
	case "KernelModule":
		return ports.CodeKernelModule
	default:
		return ports.CodeExecutable
	}
}
