/*
commission.go - Commission overlay on policies

PURPOSE:
  Reads and writes the commission fields of existing policies: settlement
  status (Paid/Unpaid), inline edits of premium/commission/names, and
  commission payment receipts.

NAME EDITS:
  Editing the insured or insurer name re-points the policy to the dimension
  row with that name (resolve-or-create). It never renames the shared row,
  which would silently rename the party on every other policy.
*/
package brokerage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionService manages commission state on policies.
type CommissionService struct {
	store    Store
	audit    *AuditLog
	observer Observer
}

// NewCommissionService creates a commission service over store.
func NewCommissionService(store Store, audit *AuditLog, observer Observer) *CommissionService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &CommissionService{store: store, audit: audit, observer: observer}
}

// List returns the commission status of every policy, newest first.
func (s *CommissionService) List(ctx context.Context) ([]CommissionView, error) {
	views, err := s.store.ListCommissions(ctx)
	if err != nil {
		return nil, storageErr("list commissions", err)
	}
	return views, nil
}

// Payments returns the payments recorded against a policy.
func (s *CommissionService) Payments(ctx context.Context, id PolicyID) ([]CommissionPayment, error) {
	payments, err := s.store.ListCommissionPayments(ctx, id)
	if err != nil {
		return nil, storageErr("list commission payments", err)
	}
	return payments, nil
}

// UpdateStatus sets the commission status of a policy.
func (s *CommissionService) UpdateStatus(ctx context.Context, id PolicyID, status CommissionStatus, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityCommission, AuditUpdate, start, err) }()

	if !status.Valid() {
		return WriteResult{}, NewValidationError("commission_status", "oneof=Paid Unpaid")
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := requirePolicy(ctx, tx, id); err != nil {
			return err
		}
		return tx.UpdateCommissionStatus(ctx, id, status)
	})
	if err != nil {
		return WriteResult{}, storageErr("update commission status", err)
	}

	return s.audit.record(ctx, actor, AuditUpdate, EntityCommission, int64(id),
		fmt.Sprintf("Set commission status of policy %d to %s", id, status)), nil
}

// UpdateDetails applies an inline edit of the commission list to a policy.
func (s *CommissionService) UpdateDetails(ctx context.Context, id PolicyID, in CommissionDetails, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityCommission, AuditUpdate, start, err) }()

	if err := ValidateStruct(in); err != nil {
		return WriteResult{}, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := requirePolicy(ctx, tx, id); err != nil {
			return err
		}
		r := NewResolver(tx)
		rec := PolicyRecord{
			ID:           id,
			PolicyNumber: optionalString(in.PolicyNumber),
			Premium:      ParseAmount(in.Premium),
			Commission:   ParseAmount(in.TotalCommission),
		}
		var err error
		if rec.InsuredID, err = r.Resolve(ctx, DimInsured, in.InsuredName); err != nil {
			return err
		}
		if rec.InsurerID, err = r.Resolve(ctx, DimInsurer, in.InsurerName); err != nil {
			return err
		}
		return tx.UpdateCommissionDetails(ctx, rec)
	})
	if err != nil {
		return WriteResult{}, storageErr("update commission details", err)
	}

	return s.audit.record(ctx, actor, AuditUpdate, EntityCommission, int64(id),
		fmt.Sprintf("Updated commission details of policy %d", id)), nil
}

// AddPayment records a commission payment against a policy.
func (s *CommissionService) AddPayment(ctx context.Context, id PolicyID, amount decimal.Decimal, paidBy string, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityCommissionPayment, AuditCreate, start, err) }()

	if !amount.IsPositive() {
		return WriteResult{}, NewValidationError("payment_amount", "gt=0")
	}
	if isBlank(paidBy) {
		paidBy = SystemActorName
	}

	var paymentID int64
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := requirePolicy(ctx, tx, id); err != nil {
			return err
		}
		var err error
		paymentID, err = tx.InsertCommissionPayment(ctx, id, amount, paidBy)
		return err
	})
	if err != nil {
		return WriteResult{}, storageErr("add commission payment", err)
	}

	return s.audit.record(ctx, actor, AuditCreate, EntityCommissionPayment, paymentID,
		fmt.Sprintf("Recorded commission payment of %s for policy %d", amount.StringFixed(2), id)), nil
}

func requirePolicy(ctx context.Context, tx Tx, id PolicyID) error {
	p, err := tx.GetPolicy(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return &NotFoundError{Entity: "policy", ID: int64(id)}
	}
	return nil
}
