package store

import (
	"context"
	"time"
)

// PurgeOptions bounds retention. A zero field means unlimited.
type PurgeOptions struct {
	MaxAge   time.Duration // remove transactions older than now-MaxAge
	MaxCount int           // keep at most the MaxCount most recent
}

// Purge deletes every transaction that is older than MaxAge or falls beyond
// the MaxCount most recent, and returns how many were deleted. Transactions
// whose manifest cannot be loaded are left alone.
func (s *Store) Purge(ctx context.Context, opts PurgeOptions) (int, error) {
	if opts.MaxAge <= 0 && opts.MaxCount <= 0 {
		return 0, nil
	}
	manifests, err := s.ListAllManifests(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-opts.MaxAge)
	deleted := 0
	for i, m := range manifests {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		tooMany := opts.MaxCount > 0 && i >= opts.MaxCount
		tooOld := opts.MaxAge > 0 && m.Timestamp.Before(cutoff)
		if !tooMany && !tooOld {
			continue
		}
		if err := s.DeleteTransaction(m.ID); err != nil {
			return deleted, err
		}
		s.log.Debug("purged transaction", "id", m.ID, "timestamp", m.Timestamp, "age", tooOld, "count", tooMany)
		deleted++
	}
	s.metrics.Purged(deleted)
	return deleted, nil
}
