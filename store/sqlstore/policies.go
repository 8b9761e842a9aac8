package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/brokerdesk/brokerage"
)

// =============================================================================
// POLICY WRITES
// =============================================================================

func (t *txStore) InsertPolicy(ctx context.Context, p brokerage.PolicyRecord) (brokerage.PolicyID, error) {
	id, err := lastInsertID(t.q.ExecContext(ctx, `
		INSERT INTO policy (policy_number, insured_id, insurer_id, policy_type_id,
			expire_date, premium, commission, provisional)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stringArg(p.PolicyNumber), int64Arg(p.InsuredID), int64Arg(p.InsurerID), int64Arg(p.PolicyTypeID),
		dateArg(p.ExpireDate), p.Premium, p.Commission, p.Provisional,
	))
	if err != nil {
		return 0, fmt.Errorf("failed to insert policy: %w", err)
	}
	return brokerage.PolicyID(id), nil
}

// UpdatePolicy overwrites every editable column. The commission status is
// kept; the provisional flag is taken from p.
func (t *txStore) UpdatePolicy(ctx context.Context, p brokerage.PolicyRecord) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE policy SET policy_number = ?, insured_id = ?, insurer_id = ?, policy_type_id = ?,
			expire_date = ?, premium = ?, commission = ?, provisional = ?
		WHERE policy_id = ?`,
		stringArg(p.PolicyNumber), int64Arg(p.InsuredID), int64Arg(p.InsurerID), int64Arg(p.PolicyTypeID),
		dateArg(p.ExpireDate), p.Premium, p.Commission, p.Provisional, int64(p.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

func (t *txStore) DeletePolicy(ctx context.Context, id brokerage.PolicyID) (int64, error) {
	n, err := rowsAffected(t.q.ExecContext(ctx, "DELETE FROM policy WHERE policy_id = ?", int64(id)))
	if err != nil {
		return 0, fmt.Errorf("failed to delete policy: %w", err)
	}
	return n, nil
}

func (t *txStore) GetPolicy(ctx context.Context, id brokerage.PolicyID) (*brokerage.PolicyRecord, error) {
	var (
		p                            brokerage.PolicyRecord
		number, expire               sql.NullString
		insuredID, insurerID, typeID sql.NullInt64
	)
	err := t.q.QueryRowContext(ctx, `
		SELECT policy_id, policy_number, insured_id, insurer_id, policy_type_id,
			expire_date, premium, commission, provisional
		FROM policy WHERE policy_id = ?`, int64(id),
	).Scan(&p.ID, &number, &insuredID, &insurerID, &typeID, &expire, &p.Premium, &p.Commission, &p.Provisional)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	p.PolicyNumber = nullString(number)
	p.InsuredID = nullInt64(insuredID)
	p.InsurerID = nullInt64(insurerID)
	p.PolicyTypeID = nullInt64(typeID)
	if p.ExpireDate, err = parseDate(expire); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPolicyByNumber returns the oldest policy carrying number.
func (t *txStore) FindPolicyByNumber(ctx context.Context, number string) (brokerage.PolicyID, bool, error) {
	var id int64
	err := t.q.QueryRowContext(ctx,
		"SELECT policy_id FROM policy WHERE policy_number = ? ORDER BY policy_id LIMIT 1", number,
	).Scan(&id)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find policy: %w", err)
	}
	return brokerage.PolicyID(id), true, nil
}

// InsuredName returns the name of an insured party, or "" when it is gone.
func (t *txStore) InsuredName(ctx context.Context, insuredID int64) (string, error) {
	var name string
	err := t.q.QueryRowContext(ctx,
		"SELECT insured_name FROM insured WHERE insured_id = ?", insuredID,
	).Scan(&name)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get insured: %w", err)
	}
	return name, nil
}

// =============================================================================
// VEHICLES
// =============================================================================

func (t *txStore) InsertVehicle(ctx context.Context, v brokerage.VehicleRecord) (int64, error) {
	id, err := lastInsertID(t.q.ExecContext(ctx,
		"INSERT INTO vehicle (insured_id, policy_id, plate_number) VALUES (?, ?, ?)",
		int64Arg(v.InsuredID), policyIDArg(v.PolicyID), v.PlateNumber,
	))
	if err != nil {
		return 0, fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return id, nil
}

func (t *txStore) DeleteVehiclesByPolicy(ctx context.Context, id brokerage.PolicyID) (int64, error) {
	n, err := rowsAffected(t.q.ExecContext(ctx, "DELETE FROM vehicle WHERE policy_id = ?", int64(id)))
	if err != nil {
		return 0, fmt.Errorf("failed to delete vehicles: %w", err)
	}
	return n, nil
}

// FindVehicleByPlate searches every vehicle, whatever policy or insured
// party it belongs to, and returns the oldest match.
func (t *txStore) FindVehicleByPlate(ctx context.Context, plate string) (int64, bool, error) {
	var id int64
	err := t.q.QueryRowContext(ctx,
		"SELECT vehicle_id FROM vehicle WHERE plate_number = ? ORDER BY vehicle_id LIMIT 1", plate,
	).Scan(&id)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return id, true, nil
}

// ClaimPlatesByPolicy returns the plate each claim points at, for claims
// whose vehicle belongs to policy id.
func (t *txStore) ClaimPlatesByPolicy(ctx context.Context, id brokerage.PolicyID) (map[brokerage.ClaimID]string, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT c.claim_id, v.plate_number
		FROM claim c
		JOIN vehicle v ON v.vehicle_id = c.vehicle_id
		WHERE v.policy_id = ?`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query claim plates: %w", err)
	}
	defer rows.Close()

	out := make(map[brokerage.ClaimID]string)
	for rows.Next() {
		var claimID int64
		var plate string
		if err := rows.Scan(&claimID, &plate); err != nil {
			return nil, fmt.Errorf("failed to scan claim plate: %w", err)
		}
		out[brokerage.ClaimID(claimID)] = plate
	}
	return out, rows.Err()
}

func (t *txStore) SetClaimVehicle(ctx context.Context, id brokerage.ClaimID, vehicleID *int64) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE claim SET vehicle_id = ? WHERE claim_id = ?", int64Arg(vehicleID), int64(id))
	if err != nil {
		return fmt.Errorf("failed to repoint claim: %w", err)
	}
	return nil
}

// =============================================================================
// POLICY READS
// =============================================================================

const policyViewSelect = `
	SELECT p.policy_id, COALESCE(p.policy_number, ''), COALESCE(i.insured_name, ''),
		COALESCE(r.insurer_name, ''), COALESCE(pt.type_name, ''),
		p.expire_date, p.premium, p.commission, p.commission_status, p.provisional
	FROM policy p
	LEFT JOIN insured i ON i.insured_id = p.insured_id
	LEFT JOIN insurer r ON r.insurer_id = p.insurer_id
	LEFT JOIN policy_type pt ON pt.policy_type_id = p.policy_type_id`

func (s *Store) ListPolicies(ctx context.Context) ([]brokerage.PolicyView, error) {
	rows, err := s.db.QueryContext(ctx, policyViewSelect+" ORDER BY p.policy_id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	views := []brokerage.PolicyView{}
	index := map[brokerage.PolicyID]int{}
	for rows.Next() {
		var (
			v      brokerage.PolicyView
			expire sql.NullString
			status string
		)
		if err := rows.Scan(&v.ID, &v.PolicyNumber, &v.InsuredName, &v.InsurerName, &v.PolicyType,
			&expire, &v.Premium, &v.Commission, &status, &v.Provisional); err != nil {
			return nil, err
		}
		if v.ExpireDate, err = parseDate(expire); err != nil {
			return nil, err
		}
		v.CommissionStatus = brokerage.CommissionStatus(status)
		v.Plates = []string{}
		index[v.ID] = len(views)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.attachPlates(ctx, views, index); err != nil {
		return nil, err
	}
	return views, nil
}

// attachPlates loads every policy-linked plate in one query, in insertion
// order.
func (s *Store) attachPlates(ctx context.Context, views []brokerage.PolicyView, index map[brokerage.PolicyID]int) error {
	if len(views) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT policy_id, plate_number FROM vehicle WHERE policy_id IS NOT NULL ORDER BY vehicle_id")
	if err != nil {
		return fmt.Errorf("failed to list plates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    brokerage.PolicyID
			plate string
		)
		if err := rows.Scan(&id, &plate); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			views[i].Plates = append(views[i].Plates, plate)
		}
	}
	return rows.Err()
}

func (s *Store) ListExpiringPolicies(ctx context.Context, windowDays int) ([]brokerage.ExpiringPolicyView, error) {
	end, arg := s.dialect.TodayPlus(windowDays)
	query := fmt.Sprintf(`
		SELECT p.policy_id, COALESCE(p.policy_number, ''), COALESCE(i.insured_name, ''),
			COALESCE(r.insurer_name, ''), COALESCE(pt.type_name, ''),
			p.expire_date, %s, p.premium, p.commission
		FROM policy p
		LEFT JOIN insured i ON i.insured_id = p.insured_id
		LEFT JOIN insurer r ON r.insurer_id = p.insurer_id
		LEFT JOIN policy_type pt ON pt.policy_type_id = p.policy_type_id
		WHERE p.expire_date IS NOT NULL
			AND p.expire_date >= %s
			AND p.expire_date <= %s
		ORDER BY p.expire_date ASC, p.policy_id ASC`,
		s.dialect.DaysUntil("p.expire_date"), s.dialect.Today(), end)

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring policies: %w", err)
	}
	defer rows.Close()

	views := []brokerage.ExpiringPolicyView{}
	for rows.Next() {
		var (
			v      brokerage.ExpiringPolicyView
			expire sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.PolicyNumber, &v.InsuredName, &v.InsurerName, &v.PolicyType,
			&expire, &v.DaysRemaining, &v.Premium, &v.Commission); err != nil {
			return nil, err
		}
		d, err := parseDate(expire)
		if err != nil {
			return nil, err
		}
		if d != nil {
			v.ExpireDate = *d
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *Store) CurrentDate(ctx context.Context) (time.Time, error) {
	var today sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT "+s.dialect.Today()).Scan(&today); err != nil {
		return time.Time{}, fmt.Errorf("failed to read current date: %w", err)
	}
	d, err := parseDate(today)
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return time.Time{}, fmt.Errorf("database returned no current date")
	}
	return *d, nil
}
