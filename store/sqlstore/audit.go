package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/brokerdesk/brokerage"
)

// AppendAudit writes one entry outside any business transaction. The
// timestamp is assigned by the database.
func (s *Store) AppendAudit(ctx context.Context, e brokerage.AuditEntry) (int64, error) {
	id, err := lastInsertID(s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (employee_id, action, entity, entity_id, description)
		VALUES (?, ?, ?, ?, ?)`,
		int64Arg(e.EmployeeID), string(e.Action), string(e.Entity), e.EntityID, e.Description,
	))
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return id, nil
}

// ListAudit returns every entry with the actor's first name, newest first.
// Entries whose employee is unknown keep an empty name.
func (s *Store) ListAudit(ctx context.Context) ([]brokerage.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.log_id, a.employee_id, COALESCE(e.employee_first_name, ''), a.action, a.entity,
			COALESCE(a.entity_id, 0), a.description, a.timestamp
		FROM audit_logs a
		LEFT JOIN employee_info e ON e.employee_id = a.employee_id
		ORDER BY a.timestamp DESC, a.log_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []brokerage.AuditEntry{}
	for rows.Next() {
		var (
			e          brokerage.AuditEntry
			employeeID sql.NullInt64
			ts         string
		)
		if err := rows.Scan(&e.ID, &employeeID, &e.ActorName, &e.Action, &e.Entity,
			&e.EntityID, &e.Description, &ts); err != nil {
			return nil, err
		}
		e.EmployeeID = nullInt64(employeeID)
		if e.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
