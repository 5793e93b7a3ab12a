package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSDLCache_PutGetExpire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := OpenWSDLCache(ctx, filepath.Join(t.TempDir(), "nested", "wsdl.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "https://example.test/wsdl")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "https://example.test/wsdl", []byte("<definitions/>")))
	body, ok, err := c.Get(ctx, "https://example.test/wsdl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<definitions/>", string(body))

	now = now.Add(2 * time.Hour)
	_, ok, err = c.Get(ctx, "https://example.test/wsdl")
	require.NoError(t, err)
	assert.False(t, ok, "entry older than ttl must be ignored")

	require.NoError(t, c.Put(ctx, "https://example.test/wsdl", []byte("<definitions v='2'/>")))
	body, ok, err = c.Get(ctx, "https://example.test/wsdl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<definitions v='2'/>", string(body))
}

func TestWSDLCache_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := OpenWSDLCache(ctx, filepath.Join(t.TempDir(), "wsdl.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Put(ctx, "u", []byte("b")))
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }

	_, ok, err := c.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
}
