package sqlstore

import (
	"context"
	"fmt"

	"github.com/warp/brokerdesk/brokerage"
)

// dimensionTable describes the table backing one dimension. Table and column
// names come only from this fixed list, never from input.
type dimensionTable struct {
	table string
	id    string
	name  string
}

var dimensionTables = map[brokerage.Dimension]dimensionTable{
	brokerage.DimInsured:     {table: "insured", id: "insured_id", name: "insured_name"},
	brokerage.DimInsurer:     {table: "insurer", id: "insurer_id", name: "insurer_name"},
	brokerage.DimPolicyType:  {table: "policy_type", id: "policy_type_id", name: "type_name"},
	brokerage.DimClaimStatus: {table: "claim_status", id: "status_id", name: "status_name"},
	brokerage.DimSubjectType: {table: "claim_subject_type", id: "subject_type_id", name: "type_name"},
}

func tableFor(d brokerage.Dimension) (dimensionTable, error) {
	t, ok := dimensionTables[d]
	if !ok {
		return dimensionTable{}, fmt.Errorf("unknown dimension %d", d)
	}
	return t, nil
}

func (t *txStore) LookupDimension(ctx context.Context, d brokerage.Dimension, value string) (int64, bool, error) {
	return t.lookupDimension(ctx, d, value, "")
}

// LookupDimensionLocked is LookupDimension as a locking read. On MySQL a
// plain SELECT keeps reading the transaction's snapshot, which cannot see a
// row another transaction committed after the snapshot was taken.
func (t *txStore) LookupDimensionLocked(ctx context.Context, d brokerage.Dimension, value string) (int64, bool, error) {
	return t.lookupDimension(ctx, d, value, t.dialect.LockingRead())
}

func (t *txStore) lookupDimension(ctx context.Context, d brokerage.Dimension, value, suffix string) (int64, bool, error) {
	dt, err := tableFor(d)
	if err != nil {
		return 0, false, err
	}
	var id int64
	err = t.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?%s", dt.id, dt.table, dt.name, suffix), value,
	).Scan(&id)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up %s: %w", d, err)
	}
	return id, true, nil
}

// InsertDimension inserts value unless a row with that name already exists.
// A concurrent insert of the same name is absorbed by the unique index.
func (t *txStore) InsertDimension(ctx context.Context, d brokerage.Dimension, value string) error {
	dt, err := tableFor(d)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx,
		fmt.Sprintf("%s INTO %s (%s) VALUES (?)", t.dialect.InsertIgnore(), dt.table, dt.name), value)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", d, err)
	}
	return nil
}

func (s *Store) ListDimension(ctx context.Context, d brokerage.Dimension) ([]brokerage.DimensionRow, error) {
	dt, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s", dt.id, dt.name, dt.table, dt.name))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d, err)
	}
	defer rows.Close()

	out := []brokerage.DimensionRow{}
	for rows.Next() {
		var r brokerage.DimensionRow
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
