package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	ms := ToUnixMs(now)
	assert.True(t, now.Equal(FromUnixMs(ms)))
}

func TestZeroValues(t *testing.T) {
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, "", Format(0))
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(1))
	assert.Equal(t, time.Duration(0), Since(0))
	assert.Equal(t, int64(0), Add(0, time.Hour))
	assert.Equal(t, time.Duration(0), Between(0, 100))
}

func TestFormat(t *testing.T) {
	ts := time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "2023-01-15T12:30:45Z", Format(ToUnixMs(ts)))
}

func TestUTCDate(t *testing.T) {
	// Local zones must not shift the date
	loc := time.FixedZone("UTC+13", 13*3600)
	ts := time.Date(2024, 3, 1, 5, 0, 0, 0, loc)
	assert.Equal(t, "2024-02-29", UTCDate(ts))
	assert.Equal(t, "2024-03-01", UTCDate(time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)))
}

func TestAddAndBetween(t *testing.T) {
	base := int64(1673785845000)
	assert.Equal(t, base+60000, Add(base, time.Minute))
	assert.Equal(t, time.Minute, Between(base, base+60000))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Now()))
	require.Error(t, Validate(-1))
	require.Error(t, Validate(32503680000001))
}
