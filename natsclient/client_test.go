package natsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, -1, c.maxReconnects)
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(5),
		WithReconnectWait(time.Second),
		WithPingInterval(10*time.Second),
		WithTimeout(2*time.Second),
		WithClientName("grain-client"),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 10*time.Second, c.pingInterval)
	assert.Equal(t, 2*time.Second, c.timeout)
	assert.Equal(t, "grain-client", c.clientName)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Publish("subject", []byte("data")), ErrNotConnected)

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.LocalAddress()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnectHandlerRecordsFailure(t *testing.T) {
	var gotErr error
	c, err := NewClient("nats://localhost:4222",
		WithDisconnectCallback(func(err error) { gotErr = err }),
	)
	require.NoError(t, err)

	c.handleDisconnect(nil, assert.AnError)

	assert.Equal(t, StatusReconnecting, c.Status())
	assert.Equal(t, int32(1), c.Failures())
	assert.Equal(t, assert.AnError, gotErr)
	assert.False(t, c.GetStatus().LastFailureTime.IsZero())
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.Equal(t, StatusClosed, c.Status())
}

func TestDrainWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.NoError(t, c.Drain())
}
