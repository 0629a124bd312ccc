// Package types provides common type definitions used throughout templaudit.
// This package contains shared types to avoid circular dependencies between packages.
package types

import "time"

// ModuleInfo is the scanned form of a single source file: every templ
// component it declares plus the data used for change detection.
type ModuleInfo struct {
	// Path is the absolute, cleaned path of the scanned file
	Path string
	// Package is the Go package name declared by the file
	Package string
	// Components lists the components in declaration order
	Components []ComponentInfo
	// LastMod tracks the last modification time of the file
	LastMod time.Time
	// Hash provides a CRC32 checksum of the file content
	Hash string
}

// Component returns the component with the given name.
func (m *ModuleInfo) Component(name string) (*ComponentInfo, bool) {
	for i := range m.Components {
		if m.Components[i].Name == name {
			return &m.Components[i], true
		}
	}
	return nil, false
}

// ComponentInfo contains metadata about a discovered templ component,
// including its parameters and the components it renders.
type ComponentInfo struct {
	// Name is the component identifier (e.g., "Button", "CardHeader")
	Name string
	// Package is the Go package name where the component is defined
	Package string
	// FilePath is the absolute path to the file containing the component
	FilePath string
	// Parameters describes the component's input parameters in declaration order
	Parameters []ParameterInfo
	// Imports lists Go packages imported by the declaring file
	Imports []string
	// ImportAliases maps explicit import names to their import paths
	ImportAliases map[string]string
	// Dependencies lists other components this component renders
	Dependencies []string
	// IsExported indicates if the component function is exported (public)
	IsExported bool
}

// ParameterInfo describes a component parameter extracted from the templ
// function signature.
type ParameterInfo struct {
	// Name is the parameter name as declared in the templ function
	Name string
	// Type is the Go type of the parameter (e.g., "string", "*User", "[]Item")
	Type string
	// Optional indicates the parameter is a pointer or variadic
	Optional bool
}

// PropDecl is one entry of a component's declared input contract.
type PropDecl struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Contract is the declared input contract of a component, in declaration order.
type Contract struct {
	Props []PropDecl `json:"props"`
}

// ContractOf derives the declared contract from a component's parameters.
func ContractOf(c *ComponentInfo) Contract {
	contract := Contract{Props: make([]PropDecl, 0, len(c.Parameters))}
	for _, p := range c.Parameters {
		contract.Props = append(contract.Props, PropDecl{
			Name:     p.Name,
			Type:     p.Type,
			Required: !p.Optional,
		})
	}
	return contract
}

// Missing returns the required prop names absent from props, in declaration
// order. Matching is exact and case-sensitive.
func (c Contract) Missing(props map[string]any) []string {
	var missing []string
	for _, p := range c.Props {
		if !p.Required {
			continue
		}
		if _, ok := props[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}
