// Package serializer provides the deep-copy serializer the runtime uses to
// detach response payloads from caller-owned memory before they cross the
// pump boundary.
//
// The wire model encodes exceptions as first-class response variants; the
// serializer only ever sees plain payload values.
package serializer

import (
	"bytes"
	"encoding/json"

	"github.com/muntasirraihan/orleans/errors"
)

// DeepCopier produces a detached copy of a payload value.
type DeepCopier interface {
	DeepCopy(value any) (any, error)
}

// Serializer is the full contract the runtime consumes: deep copy plus
// wire-level encode/decode for payload bodies.
type Serializer interface {
	DeepCopier
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, out any) error
}

// jsonSerializer implements Serializer over encoding/json. The standard
// flavor round-trips numbers as json.Number so integer payloads survive
// copying without float conversion; the compact flavor accepts the default
// float64 mapping.
type jsonSerializer struct {
	useNumber bool
}

// NewStandard returns the standard serializer flavor.
func NewStandard() Serializer {
	return &jsonSerializer{useNumber: true}
}

// NewCompact returns the compact serializer flavor.
func NewCompact() Serializer {
	return &jsonSerializer{useNumber: false}
}

// FromConfig selects the serializer flavor.
func FromConfig(useStandard bool) Serializer {
	if useStandard {
		return NewStandard()
	}
	return NewCompact()
}

// DeepCopy detaches a value by serializing and deserializing it. nil
// passes through unchanged.
func (s *jsonSerializer) DeepCopy(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	data, err := s.Marshal(value)
	if err != nil {
		return nil, err
	}

	var out any
	if err := s.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Marshal serializes a payload value.
func (s *jsonSerializer) Marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.WrapInvalid(err, "serializer", "Marshal", "payload serialization")
	}
	return data, nil
}

// Unmarshal deserializes a payload value.
func (s *jsonSerializer) Unmarshal(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if s.useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(out); err != nil {
		return errors.WrapInvalid(err, "serializer", "Unmarshal", "payload deserialization")
	}
	return nil
}
