// Package probe defines schema-validated smoke tests for the hub's outbound
// integrations. A probe declares its input/output contract as JSON Schema
// plus the permissions it needs; SafeRun enforces all three so an endpoint
// can expose probes without trusting their implementations.
package probe

import (
	"context"
)

// Permission describes a capability a probe requires.
// Example: network:outbound, model:generate
type Permission struct {
	// Name is a stable, lower_snake identifier of the permission.
	Name string `json:"name"`
	// Description explains what the permission allows.
	Description string `json:"description,omitempty"`
}

// Descriptor declares the static interface of a probe.
// InputSchema and OutputSchema are JSON Schemas (draft 2020-12) in UTF-8 bytes.
type Descriptor struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	InputSchema  []byte       `json:"input_schema"`
	OutputSchema []byte       `json:"output_schema"`
	Permissions  []Permission `json:"permissions,omitempty"`
}

// Probe is a callable integration check. Args must conform to InputSchema;
// the returned map must conform to OutputSchema.
type Probe interface {
	Describe() Descriptor
	Run(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Describe is a nil-safe descriptor accessor.
func Describe(p Probe) Descriptor {
	if p == nil {
		return Descriptor{}
	}
	return p.Describe()
}
