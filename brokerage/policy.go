/*
policy.go - Policy service

PURPOSE:
  Creates, updates and deletes policies and serves the policy list and the
  expiry report.

WRITE FLOW (create/update):
  1. Validate input (no transaction yet)
  2. Open transaction
  3. Resolve insured, insurer, policy type (create on first use)
  4. Insert/update the policy row
  5. Replace the policy's plate set
  6. Commit
  7. Append one audit entry

LENIENT AMOUNTS:
  Premium and commission that are blank or unparsable are stored as NULL.
  Rejecting malformed amounts is the presentation layer's job.

EXPIRY REPORT:
  Uses the database's current date, not the application host's clock, so
  every replica and report agrees on "today".
*/
package brokerage

import (
	"context"
	"time"
)

// DefaultExpiryWindowDays is the look-ahead of the expiry report.
const DefaultExpiryWindowDays = 30

// PolicyService orchestrates policy writes and reads.
type PolicyService struct {
	store    Store
	audit    *AuditLog
	observer Observer
}

// NewPolicyService creates a policy service over store.
func NewPolicyService(store Store, audit *AuditLog, observer Observer) *PolicyService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &PolicyService{store: store, audit: audit, observer: observer}
}

// Create inserts a policy and its plates, then records a CREATE audit entry.
func (s *PolicyService) Create(ctx context.Context, in PolicyInput, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityPolicy, AuditCreate, start, err) }()

	rec, err := in.record()
	if err != nil {
		return WriteResult{}, err
	}

	var id PolicyID
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := resolvePolicyRefs(ctx, NewResolver(tx), in, &rec); err != nil {
			return err
		}
		var err error
		id, err = tx.InsertPolicy(ctx, rec)
		if err != nil {
			return err
		}
		_, err = insertPlates(ctx, tx, id, nil, NormalizePlates(in.Plates))
		return err
	})
	if err != nil {
		return WriteResult{}, storageErr("create policy", err)
	}

	return s.audit.record(ctx, actor, AuditCreate, EntityPolicy, int64(id),
		"Created insured "+insuredLabel(in.InsuredName)), nil
}

// Update overwrites a policy, re-resolving its references and replacing its
// plate set, then records an UPDATE audit entry. A full update also clears
// the provisional flag of a placeholder policy.
func (s *PolicyService) Update(ctx context.Context, id PolicyID, in PolicyInput, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityPolicy, AuditUpdate, start, err) }()

	rec, err := in.record()
	if err != nil {
		return WriteResult{}, err
	}
	rec.ID = id

	err = s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.GetPolicy(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "policy", ID: int64(id)}
		}
		if err := resolvePolicyRefs(ctx, NewResolver(tx), in, &rec); err != nil {
			return err
		}
		if err := tx.UpdatePolicy(ctx, rec); err != nil {
			return err
		}
		return ReplacePlates(ctx, tx, id, in.Plates)
	})
	if err != nil {
		return WriteResult{}, storageErr("update policy", err)
	}

	return s.audit.record(ctx, actor, AuditUpdate, EntityPolicy, int64(id),
		"Updated insured "+insuredLabel(in.InsuredName)), nil
}

// Delete removes a policy's plates and then the policy, and records a DELETE
// audit entry. Claims that referenced the policy keep existing with no policy.
func (s *PolicyService) Delete(ctx context.Context, id PolicyID, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityPolicy, AuditDelete, start, err) }()

	var insuredName string
	err = s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.GetPolicy(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "policy", ID: int64(id)}
		}
		if existing.InsuredID != nil {
			if insuredName, err = tx.InsuredName(ctx, *existing.InsuredID); err != nil {
				return err
			}
		}
		if _, err := tx.DeleteVehiclesByPolicy(ctx, id); err != nil {
			return err
		}
		n, err := tx.DeletePolicy(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Entity: "policy", ID: int64(id)}
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, storageErr("delete policy", err)
	}

	return s.audit.record(ctx, actor, AuditDelete, EntityPolicy, int64(id),
		"Deleted insured "+insuredLabel(insuredName)), nil
}

// List returns every policy with joined names and aggregated plates, newest
// first.
func (s *PolicyService) List(ctx context.Context) ([]PolicyView, error) {
	views, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, storageErr("list policies", err)
	}
	return views, nil
}

// ListExpiring returns policies expiring between today and today+windowDays
// inclusive, soonest first. A non-positive window uses the default.
func (s *PolicyService) ListExpiring(ctx context.Context, windowDays int) ([]ExpiringPolicyView, error) {
	if windowDays <= 0 {
		windowDays = DefaultExpiryWindowDays
	}
	views, err := s.store.ListExpiringPolicies(ctx, windowDays)
	if err != nil {
		return nil, storageErr("list expiring policies", err)
	}
	return views, nil
}

// record validates the input and converts everything that does not need the
// database into a PolicyRecord.
func (in PolicyInput) record() (PolicyRecord, error) {
	if err := ValidateStruct(in); err != nil {
		return PolicyRecord{}, err
	}
	expire, err := ParseDate(in.ExpireDate)
	if err != nil {
		return PolicyRecord{}, NewValidationError("expire_date", "datetime="+DateLayout)
	}
	return PolicyRecord{
		PolicyNumber: optionalString(in.PolicyNumber),
		ExpireDate:   expire,
		Premium:      ParseAmount(in.Premium),
		Commission:   ParseAmount(in.Commission),
	}, nil
}

func resolvePolicyRefs(ctx context.Context, r *Resolver, in PolicyInput, rec *PolicyRecord) error {
	var err error
	if rec.InsuredID, err = r.Resolve(ctx, DimInsured, in.InsuredName); err != nil {
		return err
	}
	if rec.InsurerID, err = r.Resolve(ctx, DimInsurer, in.InsurerName); err != nil {
		return err
	}
	if rec.PolicyTypeID, err = r.Resolve(ctx, DimPolicyType, in.PolicyType); err != nil {
		return err
	}
	return nil
}

func insuredLabel(name string) string {
	if isBlank(name) {
		return "(no insured)"
	}
	return name
}
