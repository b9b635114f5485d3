package grain

import "fmt"

// Reference addresses a remote grain for invocation. References are values:
// copying one is cheap and safe.
type Reference struct {
	GrainID ID `json:"grain_id"`

	// TargetSilo is set only for system targets, which are bound to a
	// specific silo and never rebound by the gateway.
	TargetSilo *SiloAddress `json:"target_silo,omitempty"`

	// GenericType carries the concrete type arguments for generic grain
	// interfaces, empty otherwise.
	GenericType string `json:"generic_type,omitempty"`
}

// NewReference builds a reference to a placement-managed grain.
func NewReference(id ID) Reference {
	return Reference{GrainID: id}
}

// NewSystemTargetReference builds a reference to a system target bound to
// the given silo.
func NewSystemTargetReference(id ID, silo SiloAddress) Reference {
	id.Kind = KindSystemTarget
	return Reference{GrainID: id, TargetSilo: &silo}
}

// IsSystemTarget reports whether the reference addresses a system target.
func (r Reference) IsSystemTarget() bool {
	return r.GrainID.IsSystemTarget()
}

// String returns a printable form for logs.
func (r Reference) String() string {
	if r.TargetSilo != nil {
		return fmt.Sprintf("%s->%s", r.GrainID, r.TargetSilo)
	}
	return r.GrainID.String()
}

// InvokeRequest is the body of a grain method invocation.
type InvokeRequest struct {
	InterfaceID int32  `json:"interface_id"`
	MethodID    int32  `json:"method_id"`
	Arguments   []any  `json:"arguments,omitempty"`
	DebugName   string `json:"debug_name,omitempty"`
}

// InterfaceDescriptor describes one grain interface in the type-code map.
type InterfaceDescriptor struct {
	InterfaceID int32            `json:"interface_id"`
	TypeCode    int32            `json:"type_code"`
	Name        string           `json:"name"`
	Methods     map[int32]string `json:"methods,omitempty"`
}

// InterfaceMap is the interface/type-code map fetched from the gateway at
// startup. It is immutable once fetched.
type InterfaceMap struct {
	Interfaces map[int32]InterfaceDescriptor `json:"interfaces"`
}

// Lookup returns the descriptor for an interface id.
func (m InterfaceMap) Lookup(interfaceID int32) (InterfaceDescriptor, bool) {
	d, ok := m.Interfaces[interfaceID]
	return d, ok
}

// Len returns the number of known interfaces.
func (m InterfaceMap) Len() int {
	return len(m.Interfaces)
}
