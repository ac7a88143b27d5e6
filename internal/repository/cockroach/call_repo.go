package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatlink-backend/internal/domain"
)

// CallRepository handles durable call-history records
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create inserts a new call record. The call_id is generated by the caller so
// the in-memory session can reference the record before this write completes.
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (
			call_id, caller_id, receiver_id, call_type, status, duration, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.CallType,
		call.Status,
		call.Duration,
		call.StartedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// UpdateStatus records the final (or accepted) status and duration of a call
func (r *CallRepository) UpdateStatus(ctx context.Context, callID uuid.UUID, status string, duration int) error {
	query := `
		UPDATE calls
		SET status = $2, duration = $3
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID, status, duration)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	return nil
}

// ListBetween retrieves the call history between two users, newest first.
// The match is unordered: either user may have been the caller.
func (r *CallRepository) ListBetween(ctx context.Context, userA, userB uuid.UUID, limit int) ([]*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status, duration, started_at
		FROM calls
		WHERE (caller_id = $1 AND receiver_id = $2)
		   OR (caller_id = $2 AND receiver_id = $1)
		ORDER BY started_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		call := &domain.Call{}
		err := rows.Scan(
			&call.CallID,
			&call.CallerID,
			&call.ReceiverID,
			&call.CallType,
			&call.Status,
			&call.Duration,
			&call.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, nil
}
