package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// EventRepo stores explorer session events for later analysis.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert appends one session event.
func (r *EventRepo) Insert(ctx context.Context, ev *domain.SessionEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO session_events (session_id, type, poi_id, detail, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
	`, ev.SessionID, string(ev.Type), ev.POIID, ev.Detail, ev.At)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// POICount is a POI and how often it was selected.
type POICount struct {
	POIID string `json:"poi_id"`
	Count int64  `json:"count"`
}

// TopSelected returns the most selected POIs since the given time.
func (r *EventRepo) TopSelected(ctx context.Context, since time.Time, limit int) ([]POICount, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT poi_id, COUNT(*) AS n
		FROM session_events
		WHERE type = $1 AND occurred_at >= $2 AND poi_id IS NOT NULL
		GROUP BY poi_id
		ORDER BY n DESC, poi_id
		LIMIT $3
	`, string(domain.EventPOISelected), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []POICount
	for rows.Next() {
		var c POICount
		if err := rows.Scan(&c.POIID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
