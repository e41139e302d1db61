package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AuditEvent records a single credential or session lifecycle event for
// later inspection: handshake success/failure, session destruction, and
// similar occurrences that are not part of the hot RPC path.
type AuditEvent struct {
	ID         int64
	PeerID     string
	EventType  string
	Detail     string
	OccurredAt time.Time
}

// AuditRepo persists audit events to PostgreSQL.
type AuditRepo struct {
	db     *DB
	logger zerolog.Logger
}

// NewAuditRepo creates a new PostgreSQL-backed audit event repository.
func NewAuditRepo(db *DB, logger zerolog.Logger) *AuditRepo {
	return &AuditRepo{
		db:     db,
		logger: logger.With().Str("component", "pg_audit_repo").Logger(),
	}
}

// Record appends an audit event. It never returns a retryable condition to
// the caller; write failures are returned as an error so the
// caller can decide whether to treat audit logging as best-effort.
func (r *AuditRepo) Record(ctx context.Context, peerID, eventType, detail string) error {
	query := `
		INSERT INTO audit_events (peer_id, event_type, detail, occurred_at)
		VALUES (@peer_id, @event_type, @detail, @occurred_at)`

	args := pgx.NamedArgs{
		"peer_id":     peerID,
		"event_type":  eventType,
		"detail":      detail,
		"occurred_at": time.Now(),
	}

	if _, err := r.db.pool.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	r.logger.Debug().
		Str("peer_id", peerID).
		Str("event_type", eventType).
		Msg("audit event recorded")

	return nil
}

// ListByPeer returns the most recent audit events for a peer, newest first.
// Complexity: O(log n) -- index lookup on peer_id plus a bounded scan
func (r *AuditRepo) ListByPeer(ctx context.Context, peerID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, peer_id, event_type, detail, occurred_at
		FROM audit_events
		WHERE peer_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := r.db.pool.Query(ctx, query, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.PeerID, &ev.EventType, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}
