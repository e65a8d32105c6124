package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActionKind classifies activity log entries.
type ActionKind string

const (
	// ActionSale is recorded when a sale is committed.
	ActionSale ActionKind = "SALE"
	// ActionCancellation is recorded when a sale is cancelled.
	ActionCancellation ActionKind = "CANCELLATION"
)

// ActivityEntry represents a row in activity_log.
type ActivityEntry struct {
	ID          int64      `json:"id"`
	ActorID     int64      `json:"actor_id"`
	Action      ActionKind `json:"action"`
	Entity      string     `json:"entity"`
	EntityID    int64      `json:"entity_id"`
	Description string     `json:"description"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Execer is satisfied by both pgxpool.Pool and pgx.Tx, so entries can be
// appended standalone or inside an enclosing transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ActivityLog writes and reads the append-only activity_log table.
type ActivityLog struct {
	pool *pgxpool.Pool
}

// NewActivityLog returns a new ActivityLog.
func NewActivityLog(pool *pgxpool.Pool) *ActivityLog {
	return &ActivityLog{pool: pool}
}

const insertEntrySQL = `INSERT INTO activity_log (actor_id, action, entity, entity_id, description, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

// RecordIn appends an entry using the given executor, typically a pgx.Tx, so
// the entry commits or rolls back with the surrounding writes.
func (l *ActivityLog) RecordIn(ctx context.Context, q Execer, entry ActivityEntry) error {
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("activity log requires action and entity")
	}
	var occurredAt any
	if !entry.OccurredAt.IsZero() {
		occurredAt = entry.OccurredAt
	}
	_, err := q.Exec(ctx, insertEntrySQL,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Description, occurredAt)
	return err
}

// Record appends an entry outside any transaction.
func (l *ActivityLog) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil || l.pool == nil {
		return errors.New("activity log not initialised")
	}
	return l.RecordIn(ctx, l.pool, entry)
}

// ActivityFilter narrows List results.
type ActivityFilter struct {
	ActorID int64
	Action  ActionKind
	Page    int
	PerPage int
}

// List returns entries newest first along with pagination metadata.
func (l *ActivityLog) List(ctx context.Context, filter ActivityFilter) ([]ActivityEntry, Pagination, error) {
	if l == nil || l.pool == nil {
		return nil, Pagination{}, errors.New("activity log not initialised")
	}
	var total int
	err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_log WHERE ($1 = 0 OR actor_id = $1) AND ($2 = '' OR action = $2)`,
		filter.ActorID, string(filter.Action)).Scan(&total)
	if err != nil {
		return nil, Pagination{}, err
	}
	page := NewPagination(filter.Page, filter.PerPage, total)

	rows, err := l.pool.Query(ctx,
		`SELECT id, actor_id, action, entity, entity_id, description, occurred_at
		 FROM activity_log
		 WHERE ($1 = 0 OR actor_id = $1) AND ($2 = '' OR action = $2)
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		filter.ActorID, string(filter.Action), page.PerPage, (page.Page-1)*page.PerPage)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var action string
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.Entity, &e.EntityID, &e.Description, &e.OccurredAt); err != nil {
			return nil, Pagination{}, err
		}
		e.Action = ActionKind(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Pagination{}, err
	}
	return entries, page, nil
}
