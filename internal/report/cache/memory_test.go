package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fasela/pkg/domain"
)

func TestMemory_GenerationsHideOldEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	orgID, other := id.NewOrganizationID(), id.NewOrganizationID()

	gen, err := c.Generation(ctx, orgID)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, c.Set(ctx, orgID, gen, "summary", []byte("v0")))
	require.NoError(t, c.Set(ctx, other, 0, "summary", []byte("other")))
	raw, ok, err := c.Get(ctx, orgID, gen, "summary")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v0", string(raw))

	c.Invalidate(ctx, orgID)
	next, _ := c.Generation(ctx, orgID)
	assert.Equal(t, int64(1), next)
	_, ok, _ = c.Get(ctx, orgID, gen, "summary")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, orgID, next, "summary")
	assert.False(t, ok)

	_, ok, _ = c.Get(ctx, other, 0, "summary")
	assert.True(t, ok, "other organizations keep their entries")
}

func TestMemory_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }
	orgID := id.NewOrganizationID()

	require.NoError(t, c.Set(ctx, orgID, 0, "k", []byte("v")))
	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, orgID, 0, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, orgID, 0, "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Noop
	require.NoError(t, c.Set(ctx, id.NewOrganizationID(), 0, "k", []byte("v")))
	_, ok, err := c.Get(ctx, id.NewOrganizationID(), 0, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
