package store

import (
	"context"
	"hash/fnv"
	"time"
)

// WatchChanges polls the three definition tables every interval and emits
// the current time whenever their combined (id, updated_at) fingerprint
// changes. It is the ticker-driven counterpart to the teacher's
// fsnotify-event-driven HotReloadSystem: here there is no filesystem event
// to hook, so a cheap hash diff stands in for one.
//
// The returned channel is closed when ctx is cancelled.
func (s *Store) WatchChanges(ctx context.Context, interval time.Duration) <-chan time.Time {
	out := make(chan time.Time, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSum uint64
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sum, err := s.fingerprint(ctx)
				if err != nil {
					s.log.WarnCtx(ctx, "store: watch fingerprint failed, retrying next tick", "error", err)
					continue
				}
				if first || sum != lastSum {
					first = false
					lastSum = sum
					select {
					case out <- time.Now():
					case <-ctx.Done():
						return
					default:
						// a change notification is already pending; the
						// next resync pass will pick up this change too.
					}
				}
			}
		}
	}()
	return out
}

type idStamp struct {
	ID        string    `db:"id"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) fingerprint(ctx context.Context) (uint64, error) {
	h := fnv.New64a()
	for _, table := range []string{"metric", "scaling_component", "plan"} {
		var rows []idStamp
		if err := s.db.SelectContext(ctx, &rows, "SELECT id, updated_at FROM "+table+" ORDER BY id"); err != nil {
			return 0, err
		}
		for _, r := range rows {
			_, _ = h.Write([]byte(table))
			_, _ = h.Write([]byte(r.ID))
			_, _ = h.Write([]byte(r.UpdatedAt.UTC().Format(time.RFC3339Nano)))
		}
	}
	return h.Sum64(), nil
}
