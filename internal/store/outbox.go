package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/giantswarm/agentcatalog/internal/api"
)

const outboxColumns = `seq, tenant_id, resource_id, agent_type, op, install_id, created_at, attempts`

// Enqueue appends a notification to the outbox and returns it with Seq and
// CreatedAt filled in. The row becomes visible to the dispatcher only when
// the surrounding transaction commits.
func (tx *Tx) Enqueue(n api.Notification) (api.Notification, error) {
	if err := tx.writable(); err != nil {
		return api.Notification{}, err
	}
	n.CreatedAt = tx.now()
	n.Attempts = 0

	err := tx.exec(`INSERT INTO outbox (tenant_id, resource_id, agent_type, op, install_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.TenantID, n.ResourceID, string(n.AgentType), string(n.Op), n.InstallID, toUnix(n.CreatedAt))
	if err != nil {
		return api.Notification{}, fmt.Errorf("store: enqueue %s %s for %s: %w", n.Op, n.AgentType, n.Key(), err)
	}
	n.Seq = tx.conn.LastInsertRowID()
	tx.enqueued++
	return n, nil
}

// PendingNotifications returns up to limit undelivered notifications in
// Seq order.
func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]api.Notification, error) {
	var pending []api.Notification
	err := s.View(ctx, func(tx *Tx) error {
		return tx.query(`SELECT `+outboxColumns+` FROM outbox
			WHERE delivered_at IS NULL ORDER BY seq LIMIT ?`, func(stmt *sqlite.Stmt) error {
			pending = append(pending, scanNotification(stmt))
			return nil
		}, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("store: pending notifications: %w", err)
	}
	return pending, nil
}

// OutboxEntry is an outbox row with its delivery state.
type OutboxEntry struct {
	api.Notification `yaml:",inline"`

	Attempts    int        `json:"attempts" yaml:"attempts"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty" yaml:"deliveredAt,omitempty"`
	LastError   string     `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// ListNotifications returns outbox rows with Seq greater than afterSeq,
// delivered or not, in Seq order. pendingOnly restricts the result to
// undelivered rows.
func (s *Store) ListNotifications(ctx context.Context, afterSeq int64, limit int, pendingOnly bool) ([]OutboxEntry, error) {
	query := `SELECT ` + outboxColumns + `, delivered_at, last_error FROM outbox WHERE seq > ?`
	if pendingOnly {
		query += ` AND delivered_at IS NULL`
	}
	query += ` ORDER BY seq LIMIT ?`

	var out []OutboxEntry
	err := s.View(ctx, func(tx *Tx) error {
		return tx.query(query, func(stmt *sqlite.Stmt) error {
			entry := OutboxEntry{Notification: scanNotification(stmt)}
			entry.Attempts = entry.Notification.Attempts
			if stmt.ColumnType(8) != sqlite.TypeNull {
				delivered := fromUnix(stmt.ColumnInt64(8))
				entry.DeliveredAt = &delivered
			}
			entry.LastError = stmt.ColumnText(9)
			out = append(out, entry)
			return nil
		}, afterSeq, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	return out, nil
}

// MarkDelivered records a successful publish.
func (s *Store) MarkDelivered(ctx context.Context, seq int64) error {
	return s.writeConn(ctx, `UPDATE outbox SET delivered_at = ?, attempts = attempts + 1 WHERE seq = ?`,
		toUnix(s.now()), seq)
}

// MarkFailed records a failed publish attempt.
func (s *Store) MarkFailed(ctx context.Context, seq int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.writeConn(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE seq = ?`, msg, seq)
}

// PurgeDelivered deletes delivered notifications older than the cutoff and
// returns how many rows were removed.
func (s *Store) PurgeDelivered(ctx context.Context, olderThan time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM outbox WHERE delivered_at IS NOT NULL AND delivered_at < ?`,
		&sqlitex.ExecOptions{Args: []any{toUnix(olderThan)}})
	if err != nil {
		return 0, fmt.Errorf("store: purge delivered notifications: %w", err)
	}
	return conn.Changes(), nil
}

// CountPending returns the number of undelivered notifications.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.View(ctx, func(tx *Tx) error {
		return tx.query(`SELECT COUNT(*) FROM outbox WHERE delivered_at IS NULL`, func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("store: count pending notifications: %w", err)
	}
	return count, nil
}

func (s *Store) writeConn(ctx context.Context, query string, args ...any) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("store: update outbox: %w", err)
	}
	return nil
}

func scanNotification(stmt *sqlite.Stmt) api.Notification {
	return api.Notification{
		Seq:        stmt.ColumnInt64(0),
		TenantID:   stmt.ColumnText(1),
		ResourceID: stmt.ColumnText(2),
		AgentType:  api.AgentType(stmt.ColumnText(3)),
		Op:         api.Operation(stmt.ColumnText(4)),
		InstallID:  stmt.ColumnText(5),
		CreatedAt:  fromUnix(stmt.ColumnInt64(6)),
		Attempts:   stmt.ColumnInt(7),
	}
}
