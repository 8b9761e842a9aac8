/*
claim.go - Claim service

PURPOSE:
  Creates, updates and deletes claims. A claim links an insured party, an
  optional policy, an optional vehicle, a status and a subject type.

CREATE FLOW (one transaction):
  1. Resolve insured party by name (optional)
  2. Resolve vehicle by plate, creating it linked to the insured (optional)
  3. Resolve policy by number; if unknown, create a provisional policy
  4. Resolve status (default "Open") and subject type (default "Vehicle")
  5. Insert the claim
  Then one CREATE audit entry.

PROVISIONAL POLICIES:
  A claim may cite a policy number before the policy is on file. Claim
  creation then inserts a placeholder policy (type "Auto", far-future
  expiry, default premium and commission) with provisional=true so reports
  can tell it apart from a real policy. A later full policy update clears
  the flag.

DELETE:
  Removes only the claim. The policy, vehicle and insured party it
  referenced are untouched.
*/
package brokerage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProvisionalPolicyType is the policy type given to placeholder policies.
const ProvisionalPolicyType = "Auto"

// Placeholder values for policies created on behalf of a claim.
var (
	ProvisionalExpireDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
	ProvisionalPremium    = decimal.NewFromInt(5000)
	ProvisionalCommission = decimal.NewFromInt(500)
)

// ClaimService orchestrates claim writes and reads.
type ClaimService struct {
	store    Store
	audit    *AuditLog
	observer Observer
}

// NewClaimService creates a claim service over store.
func NewClaimService(store Store, audit *AuditLog, observer Observer) *ClaimService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ClaimService{store: store, audit: audit, observer: observer}
}

// Create inserts a claim, resolving or creating everything it references.
func (s *ClaimService) Create(ctx context.Context, in ClaimInput, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityClaim, AuditCreate, start, err) }()

	if err := ValidateStruct(in); err != nil {
		return WriteResult{}, err
	}
	accidentDate, err := ParseDate(in.AccidentDate)
	if err != nil {
		return WriteResult{}, NewValidationError("accident_date", "datetime="+DateLayout)
	}

	rec := ClaimRecord{
		AccidentDate:   accidentDate,
		AccidentTime:   optionalString(in.AccidentTime),
		AccidentPlace:  optionalString(in.AccidentPlace),
		AccidentReason: optionalString(in.AccidentReason),
		SubjectDetail:  optionalString(in.SubjectDetail),
	}

	var id ClaimID
	err = s.store.WithTx(ctx, func(tx Tx) error {
		r := NewResolver(tx)
		var err error
		if rec.InsuredID, err = r.Resolve(ctx, DimInsured, in.InsuredName); err != nil {
			return err
		}
		if rec.VehicleID, err = resolveVehicle(ctx, tx, in.PlateNumber, rec.InsuredID); err != nil {
			return err
		}
		if rec.PolicyID, err = resolvePolicyNumber(ctx, tx, r, in.PolicyNumber, rec.InsuredID); err != nil {
			return err
		}
		if rec.StatusID, err = r.ResolveDefault(ctx, DimClaimStatus, in.StatusName, DefaultClaimStatus); err != nil {
			return err
		}
		if rec.SubjectTypeID, err = r.ResolveDefault(ctx, DimSubjectType, in.SubjectTypeName, DefaultClaimSubjectType); err != nil {
			return err
		}
		id, err = tx.InsertClaim(ctx, rec)
		return err
	})
	if err != nil {
		return WriteResult{}, storageErr("create claim", err)
	}

	return s.audit.record(ctx, actor, AuditCreate, EntityClaim, int64(id),
		fmt.Sprintf("Created claim for insured %s", claimInsuredLabel(in.InsuredName))), nil
}

// Update changes the supplied fields of a claim. Name fields are resolved
// only when present in the update.
func (s *ClaimService) Update(ctx context.Context, id ClaimID, in ClaimUpdate, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityClaim, AuditUpdate, start, err) }()

	if err := ValidateStruct(in); err != nil {
		return WriteResult{}, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		rec, err := tx.GetClaim(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Entity: "claim", ID: int64(id)}
		}
		if err := applyClaimUpdate(ctx, tx, NewResolver(tx), rec, in); err != nil {
			return err
		}
		return tx.UpdateClaim(ctx, *rec)
	})
	if err != nil {
		return WriteResult{}, storageErr("update claim", err)
	}

	return s.audit.record(ctx, actor, AuditUpdate, EntityClaim, int64(id),
		fmt.Sprintf("Updated claim ID %d", id)), nil
}

// Delete removes a claim without touching what it referenced.
func (s *ClaimService) Delete(ctx context.Context, id ClaimID, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { s.observer.ObserveWrite(EntityClaim, AuditDelete, start, err) }()

	err = s.store.WithTx(ctx, func(tx Tx) error {
		n, err := tx.DeleteClaim(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Entity: "claim", ID: int64(id)}
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, storageErr("delete claim", err)
	}

	return s.audit.record(ctx, actor, AuditDelete, EntityClaim, int64(id),
		fmt.Sprintf("Deleted claim ID %d", id)), nil
}

// List returns every claim, newest first.
func (s *ClaimService) List(ctx context.Context) ([]ClaimView, error) {
	views, err := s.store.ListClaims(ctx)
	if err != nil {
		return nil, storageErr("list claims", err)
	}
	return views, nil
}

// ListByInsured returns the claims of one insured party, newest first.
func (s *ClaimService) ListByInsured(ctx context.Context, insuredID int64) ([]ClaimView, error) {
	views, err := s.store.ListClaimsByInsured(ctx, insuredID)
	if err != nil {
		return nil, storageErr("list claims", err)
	}
	return views, nil
}

func applyClaimUpdate(ctx context.Context, tx Tx, r *Resolver, rec *ClaimRecord, in ClaimUpdate) error {
	var err error
	if in.InsuredName != nil {
		if rec.InsuredID, err = r.Resolve(ctx, DimInsured, *in.InsuredName); err != nil {
			return err
		}
	}
	if in.PlateNumber != nil {
		if rec.VehicleID, err = resolveVehicle(ctx, tx, *in.PlateNumber, rec.InsuredID); err != nil {
			return err
		}
	}
	if in.PolicyNumber != nil {
		if rec.PolicyID, err = resolvePolicyNumber(ctx, tx, r, *in.PolicyNumber, rec.InsuredID); err != nil {
			return err
		}
	}
	if in.StatusName != nil {
		if rec.StatusID, err = r.ResolveDefault(ctx, DimClaimStatus, *in.StatusName, DefaultClaimStatus); err != nil {
			return err
		}
	}
	if in.SubjectTypeName != nil {
		if rec.SubjectTypeID, err = r.ResolveDefault(ctx, DimSubjectType, *in.SubjectTypeName, DefaultClaimSubjectType); err != nil {
			return err
		}
	}
	if in.AccidentDate != nil {
		d, err := ParseDate(*in.AccidentDate)
		if err != nil {
			return NewValidationError("accident_date", "datetime="+DateLayout)
		}
		rec.AccidentDate = d
	}
	if in.AccidentTime != nil {
		rec.AccidentTime = optionalString(*in.AccidentTime)
	}
	if in.AccidentPlace != nil {
		rec.AccidentPlace = optionalString(*in.AccidentPlace)
	}
	if in.AccidentReason != nil {
		rec.AccidentReason = optionalString(*in.AccidentReason)
	}
	if in.SubjectDetail != nil {
		rec.SubjectDetail = optionalString(*in.SubjectDetail)
	}
	return nil
}

// resolveVehicle returns the vehicle registered under plate, creating one
// linked to insuredID when none exists. A blank plate yields nil.
func resolveVehicle(ctx context.Context, tx Tx, plate string, insuredID *int64) (*int64, error) {
	normalized := NormalizePlates([]string{plate})
	if len(normalized) == 0 {
		return nil, nil
	}
	plate = normalized[0]

	id, found, err := tx.FindVehicleByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if !found {
		id, err = tx.InsertVehicle(ctx, VehicleRecord{InsuredID: insuredID, PlateNumber: plate})
		if err != nil {
			return nil, err
		}
	}
	return &id, nil
}

// resolvePolicyNumber returns the policy carrying number, creating a
// provisional policy when none exists. A blank number yields nil.
func resolvePolicyNumber(ctx context.Context, tx Tx, r *Resolver, number string, insuredID *int64) (*PolicyID, error) {
	if isBlank(number) {
		return nil, nil
	}
	id, found, err := tx.FindPolicyByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if found {
		return &id, nil
	}

	typeID, err := r.Resolve(ctx, DimPolicyType, ProvisionalPolicyType)
	if err != nil {
		return nil, err
	}
	expire := ProvisionalExpireDate
	id, err = tx.InsertPolicy(ctx, PolicyRecord{
		PolicyNumber: &number,
		InsuredID:    insuredID,
		PolicyTypeID: typeID,
		ExpireDate:   &expire,
		Premium:      decimal.NewNullDecimal(ProvisionalPremium),
		Commission:   decimal.NewNullDecimal(ProvisionalCommission),
		Provisional:  true,
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func claimInsuredLabel(name string) string {
	if isBlank(name) {
		return "Unknown"
	}
	return name
}
