package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "CallbackRegistry", "Register", "timer start")
	require.Error(t, err)
	assert.Equal(t, "CallbackRegistry.Register: timer start failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, Wrap(nil, "a", "b", "c"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"fatal", WrapFatal, ErrorFatal},
		{"invalid", WrapInvalid, ErrorInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Runtime", "Start", "transport start")
			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Runtime", ce.Component)
			assert.True(t, stderrors.Is(err, base))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrResponseTimeout))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrNoGateways))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: connection refused")))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrInvalidContext))
	assert.False(t, IsTransient(WrapFatal(stderrors.New("x"), "a", "b", "c")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrAlreadyRunning))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.False(t, IsFatal(ErrResponseTimeout))
	assert.False(t, IsFatal(nil))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrNotLocal))
	assert.True(t, IsInvalid(ErrInvalidContext))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(ErrResponseTimeout))
	assert.Equal(t, ErrorFatal, Classify(ErrAlreadyRunning))
	assert.Equal(t, ErrorInvalid, Classify(ErrNotLocal))
	// Unknown errors default to transient so callers may retry
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("mystery")))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}
