package serializer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepCopyDetaches(t *testing.T) {
	s := NewStandard()

	original := map[string]any{"name": "chirper", "tags": []any{"a", "b"}}
	copied, err := s.DeepCopy(original)
	require.NoError(t, err)

	// Mutating the original must not affect the copy
	original["name"] = "mutated"
	original["tags"].([]any)[0] = "z"

	m, ok := copied.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chirper", m["name"])
	assert.Equal(t, "a", m["tags"].([]any)[0])
}

func TestDeepCopyNil(t *testing.T) {
	s := NewStandard()
	copied, err := s.DeepCopy(nil)
	require.NoError(t, err)
	assert.Nil(t, copied)
}

func TestDeepCopyFailure(t *testing.T) {
	s := NewStandard()
	_, err := s.DeepCopy(make(chan int))
	require.Error(t, err)
}

func TestStandardPreservesIntegers(t *testing.T) {
	s := NewStandard()
	copied, err := s.DeepCopy(map[string]any{"count": 9007199254740993})
	require.NoError(t, err)

	m := copied.(map[string]any)
	n, ok := m["count"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", n.String())
}

func TestCompactUsesFloats(t *testing.T) {
	s := NewCompact()
	copied, err := s.DeepCopy(map[string]any{"count": 3})
	require.NoError(t, err)

	m := copied.(map[string]any)
	_, ok := m["count"].(float64)
	assert.True(t, ok)
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, NewStandard(), FromConfig(true))
	assert.Equal(t, NewCompact(), FromConfig(false))
}
