// Package tools defines the Tool type, the process-wide tool Registry and the
// external sources tools are discovered from.
package tools

import (
	"context"
	"slices"
)

// Capability is an explicit label attached to a tool at registration time.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// Schema is the JSON-schema-like parameter declaration handed to providers.
type Schema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required"`
}

// ObjectSchema builds an object schema from properties and required names.
func ObjectSchema(properties map[string]interface{}, required ...string) Schema {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	if required == nil {
		required = []string{}
	}
	return Schema{Type: "object", Properties: properties, Required: required}
}

// Map returns the schema as a plain map, the form provider SDKs expect.
func (s Schema) Map() map[string]interface{} {
	m := map[string]interface{}{
		"type":       s.Type,
		"properties": s.Properties,
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// Executor runs a tool with decoded model-supplied input.
type Executor func(ctx context.Context, input map[string]interface{}) (string, error)

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name         string
	Description  string
	InputSchema  Schema
	Capabilities []Capability
	Execute      Executor
}

// HasCapability reports whether the tool carries the explicit label c.
func (t Tool) HasCapability(c Capability) bool {
	return slices.Contains(t.Capabilities, c)
}

// Declaration is the wire shape of a tool offered to a tool-calling provider.
type Declaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Declaration returns the provider-facing declaration of t.
func (t Tool) Declaration() Declaration {
	return Declaration{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}
}

// Source discovers tools from an external system.
type Source interface {
	Name() string
	Tools(ctx context.Context) ([]Tool, error)
}

// StaticSource serves a fixed tool list. Useful for builtins and tests.
type StaticSource struct {
	SourceName string
	List       []Tool
}

func (s StaticSource) Name() string { return s.SourceName }

func (s StaticSource) Tools(context.Context) ([]Tool, error) {
	return s.List, nil
}
