package sqlstore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerdesk/brokerage"
)

func (t *txStore) UpdateCommissionStatus(ctx context.Context, id brokerage.PolicyID, status brokerage.CommissionStatus) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE policy SET commission_status = ? WHERE policy_id = ?", string(status), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update commission status: %w", err)
	}
	return nil
}

// UpdateCommissionDetails changes only the columns editable from the
// commission list. Policy type, expiry and plates are left alone.
func (t *txStore) UpdateCommissionDetails(ctx context.Context, p brokerage.PolicyRecord) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE policy SET policy_number = ?, insured_id = ?, insurer_id = ?, premium = ?, commission = ?
		WHERE policy_id = ?`,
		stringArg(p.PolicyNumber), int64Arg(p.InsuredID), int64Arg(p.InsurerID), p.Premium, p.Commission, int64(p.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update commission details: %w", err)
	}
	return nil
}

func (t *txStore) InsertCommissionPayment(ctx context.Context, id brokerage.PolicyID, amount decimal.Decimal, paidBy string) (int64, error) {
	paymentID, err := lastInsertID(t.q.ExecContext(ctx,
		"INSERT INTO commission_payment (policy_id, payment_amount, paid_by) VALUES (?, ?, ?)",
		int64(id), amount, paidBy,
	))
	if err != nil {
		return 0, fmt.Errorf("failed to insert commission payment: %w", err)
	}
	return paymentID, nil
}

// ListCommissions lists every policy, newest first. Policies without an
// insured party or insurer are included with empty names.
func (s *Store) ListCommissions(ctx context.Context) ([]brokerage.CommissionView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.policy_id, COALESCE(p.policy_number, ''), COALESCE(i.insured_name, ''),
			COALESCE(r.insurer_name, ''), p.premium, p.commission, p.commission_status,
			(SELECT COALESCE(SUM(cp.payment_amount), 0) FROM commission_payment cp
				WHERE cp.policy_id = p.policy_id)
		FROM policy p
		LEFT JOIN insured i ON i.insured_id = p.insured_id
		LEFT JOIN insurer r ON r.insurer_id = p.insurer_id
		ORDER BY p.policy_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	defer rows.Close()

	views := []brokerage.CommissionView{}
	for rows.Next() {
		var (
			v      brokerage.CommissionView
			status string
		)
		if err := rows.Scan(&v.PolicyID, &v.PolicyNumber, &v.InsuredName, &v.InsurerName,
			&v.Premium, &v.TotalCommission, &status, &v.AmountPaid); err != nil {
			return nil, err
		}
		v.Status = brokerage.CommissionStatus(status)
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *Store) ListCommissionPayments(ctx context.Context, id brokerage.PolicyID) ([]brokerage.CommissionPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, policy_id, payment_amount, paid_by, paid_at
		FROM commission_payment WHERE policy_id = ?
		ORDER BY paid_at DESC, payment_id DESC`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list commission payments: %w", err)
	}
	defer rows.Close()

	payments := []brokerage.CommissionPayment{}
	for rows.Next() {
		var (
			p      brokerage.CommissionPayment
			paidAt string
		)
		if err := rows.Scan(&p.ID, &p.PolicyID, &p.Amount, &p.PaidBy, &paidAt); err != nil {
			return nil, err
		}
		if p.PaidAt, err = parseTimestamp(paidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
