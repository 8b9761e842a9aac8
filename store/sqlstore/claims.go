package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/brokerdesk/brokerage"
)

func (t *txStore) InsertClaim(ctx context.Context, c brokerage.ClaimRecord) (brokerage.ClaimID, error) {
	id, err := lastInsertID(t.q.ExecContext(ctx, `
		INSERT INTO claim (policy_id, insured_id, vehicle_id, accident_date, accident_time,
			accident_place, accident_reason, status_id, subject_type_id, subject_detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		policyIDArg(c.PolicyID), int64Arg(c.InsuredID), int64Arg(c.VehicleID), dateArg(c.AccidentDate),
		stringArg(c.AccidentTime), stringArg(c.AccidentPlace), stringArg(c.AccidentReason),
		int64Arg(c.StatusID), int64Arg(c.SubjectTypeID), stringArg(c.SubjectDetail),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to insert claim: %w", err)
	}
	return brokerage.ClaimID(id), nil
}

func (t *txStore) GetClaim(ctx context.Context, id brokerage.ClaimID) (*brokerage.ClaimRecord, error) {
	var (
		c                                      brokerage.ClaimRecord
		policyID, insuredID, vehicleID         sql.NullInt64
		statusID, subjectTypeID                sql.NullInt64
		date, tm, place, reason, subjectDetail sql.NullString
	)
	err := t.q.QueryRowContext(ctx, `
		SELECT claim_id, policy_id, insured_id, vehicle_id, accident_date, accident_time,
			accident_place, accident_reason, status_id, subject_type_id, subject_detail
		FROM claim WHERE claim_id = ?`, int64(id),
	).Scan(&c.ID, &policyID, &insuredID, &vehicleID, &date, &tm,
		&place, &reason, &statusID, &subjectTypeID, &subjectDetail)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	c.PolicyID = nullPolicyID(policyID)
	c.InsuredID = nullInt64(insuredID)
	c.VehicleID = nullInt64(vehicleID)
	c.StatusID = nullInt64(statusID)
	c.SubjectTypeID = nullInt64(subjectTypeID)
	c.AccidentTime = nullString(tm)
	c.AccidentPlace = nullString(place)
	c.AccidentReason = nullString(reason)
	c.SubjectDetail = nullString(subjectDetail)
	if c.AccidentDate, err = parseDate(date); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *txStore) UpdateClaim(ctx context.Context, c brokerage.ClaimRecord) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE claim SET policy_id = ?, insured_id = ?, vehicle_id = ?, accident_date = ?,
			accident_time = ?, accident_place = ?, accident_reason = ?, status_id = ?,
			subject_type_id = ?, subject_detail = ?
		WHERE claim_id = ?`,
		policyIDArg(c.PolicyID), int64Arg(c.InsuredID), int64Arg(c.VehicleID), dateArg(c.AccidentDate),
		stringArg(c.AccidentTime), stringArg(c.AccidentPlace), stringArg(c.AccidentReason),
		int64Arg(c.StatusID), int64Arg(c.SubjectTypeID), stringArg(c.SubjectDetail), int64(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	return nil
}

func (t *txStore) DeleteClaim(ctx context.Context, id brokerage.ClaimID) (int64, error) {
	n, err := rowsAffected(t.q.ExecContext(ctx, "DELETE FROM claim WHERE claim_id = ?", int64(id)))
	if err != nil {
		return 0, fmt.Errorf("failed to delete claim: %w", err)
	}
	return n, nil
}

const claimViewSelect = `
	SELECT c.claim_id, c.accident_date, COALESCE(c.accident_time, ''), COALESCE(c.accident_place, ''),
		COALESCE(c.accident_reason, ''), COALESCE(c.subject_detail, ''),
		c.insured_id, COALESCE(i.insured_name, ''),
		c.policy_id, COALESCE(p.policy_number, ''), COALESCE(p.provisional, 0),
		COALESCE(v.plate_number, ''), COALESCE(cs.status_name, ''), COALESCE(st.type_name, '')
	FROM claim c
	LEFT JOIN insured i ON i.insured_id = c.insured_id
	LEFT JOIN policy p ON p.policy_id = c.policy_id
	LEFT JOIN vehicle v ON v.vehicle_id = c.vehicle_id
	LEFT JOIN claim_status cs ON cs.status_id = c.status_id
	LEFT JOIN claim_subject_type st ON st.subject_type_id = c.subject_type_id`

func (s *Store) ListClaims(ctx context.Context) ([]brokerage.ClaimView, error) {
	return s.queryClaims(ctx, claimViewSelect+" ORDER BY c.claim_id DESC")
}

func (s *Store) ListClaimsByInsured(ctx context.Context, insuredID int64) ([]brokerage.ClaimView, error) {
	return s.queryClaims(ctx, claimViewSelect+" WHERE c.insured_id = ? ORDER BY c.claim_id DESC", insuredID)
}

func (s *Store) queryClaims(ctx context.Context, query string, args ...any) ([]brokerage.ClaimView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	views := []brokerage.ClaimView{}
	for rows.Next() {
		var (
			v                   brokerage.ClaimView
			date                sql.NullString
			insuredID, policyID sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &date, &v.AccidentTime, &v.AccidentPlace, &v.AccidentReason,
			&v.SubjectDetail, &insuredID, &v.InsuredName, &policyID, &v.PolicyNumber, &v.Provisional,
			&v.PlateNumber, &v.StatusName, &v.SubjectTypeName); err != nil {
			return nil, err
		}
		if v.AccidentDate, err = parseDate(date); err != nil {
			return nil, err
		}
		v.InsuredID = nullInt64(insuredID)
		v.PolicyID = nullPolicyID(policyID)
		views = append(views, v)
	}
	return views, rows.Err()
}
