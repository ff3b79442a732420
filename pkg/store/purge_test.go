package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		// tx0 is the newest.
		m := sampleManifest(fmt.Sprintf("tx%d", i), t0.Add(-time.Duration(i)*24*time.Hour))
		require.NoError(t, f.store.SaveManifest(context.Background(), m))
	}
}

func remaining(t *testing.T, f *fixture) []string {
	t.Helper()
	list, err := f.store.ListAllManifests(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, m := range list {
		ids[i] = m.ID
	}
	return ids
}

func TestPurge(t *testing.T) {
	tests := []struct {
		name    string
		opts    PurgeOptions
		deleted int
		left    []string
	}{
		{"unlimited", PurgeOptions{}, 0, []string{"tx0", "tx1", "tx2", "tx3", "tx4"}},
		{"by count", PurgeOptions{MaxCount: 2}, 3, []string{"tx0", "tx1"}},
		{"by age", PurgeOptions{MaxAge: 36 * time.Hour}, 3, []string{"tx0", "tx1"}},
		{"union", PurgeOptions{MaxAge: 60 * time.Hour, MaxCount: 1}, 4, []string{"tx0"}},
		{"overlap counted once", PurgeOptions{MaxAge: 12 * time.Hour, MaxCount: 1}, 4, []string{"tx0"}},
		{"count above total", PurgeOptions{MaxCount: 10}, 0, []string{"tx0", "tx1", "tx2", "tx3", "tx4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, FailOpen)
			seed(t, f, 5)

			n, err := f.store.Purge(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, n)
			assert.Equal(t, tt.left, remaining(t, f))
		})
	}
}

func TestPurge_UsesClock(t *testing.T) {
	f := newFixture(t, FailOpen)
	seed(t, f, 3)
	f.clock.Advance(30 * 24 * time.Hour)

	n, err := f.store.Purge(context.Background(), PurgeOptions{MaxAge: 7 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, remaining(t, f))
}

func TestPurge_Canceled(t *testing.T) {
	f := newFixture(t, FailOpen)
	seed(t, f, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.store.Purge(ctx, PurgeOptions{MaxCount: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, remaining(t, f), 3)
}
