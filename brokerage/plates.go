/*
plates.go - Vehicle/plate registry

PURPOSE:
  Associates license plates with a policy (and, for additive linkage, the
  policy's insured party).

OPERATIONS:
  ReplacePlates: delete every plate of the policy, insert the new set.
                 Runs inside the caller's transaction. No diffing, but a
                 claim whose plate is still in the new set follows it to
                 the new vehicle row.
  AddPlates:     append plates to an existing policy without touching the
                 current ones. Runs in its own transaction and links each
                 new vehicle to the policy's insured party.

NORMALIZATION:
  Plates are trimmed; blank entries are dropped; repeats within one call
  collapse to the first occurrence.
*/
package brokerage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NormalizePlates trims plates, drops blanks and collapses repeats while
// keeping the caller's order.
func NormalizePlates(plates []string) []string {
	out := make([]string, 0, len(plates))
	seen := make(map[string]bool, len(plates))
	for _, p := range plates {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ReplacePlates makes plates the complete plate set of policy id. Claims on
// a plate that survives the replacement are pointed at its new vehicle row;
// claims on a removed plate lose their vehicle.
func ReplacePlates(ctx context.Context, tx Tx, id PolicyID, plates []string) error {
	claimPlates, err := tx.ClaimPlatesByPolicy(ctx, id)
	if err != nil {
		return fmt.Errorf("read claim plates: %w", err)
	}
	if _, err := tx.DeleteVehiclesByPolicy(ctx, id); err != nil {
		return fmt.Errorf("clear plates: %w", err)
	}
	vehicles, err := insertPlates(ctx, tx, id, nil, NormalizePlates(plates))
	if err != nil {
		return err
	}
	for claimID, plate := range claimPlates {
		vehicleID, ok := vehicles[plate]
		if !ok {
			continue
		}
		if err := tx.SetClaimVehicle(ctx, claimID, &vehicleID); err != nil {
			return fmt.Errorf("repoint claim %d: %w", claimID, err)
		}
	}
	return nil
}

// insertPlates returns the new vehicle id of each plate.
func insertPlates(ctx context.Context, tx Tx, id PolicyID, insuredID *int64, plates []string) (map[string]int64, error) {
	vehicles := make(map[string]int64, len(plates))
	for _, plate := range plates {
		policyID := id
		vehicleID, err := tx.InsertVehicle(ctx, VehicleRecord{
			InsuredID:   insuredID,
			PolicyID:    &policyID,
			PlateNumber: plate,
		})
		if err != nil {
			return nil, fmt.Errorf("insert plate: %w", err)
		}
		vehicles[plate] = vehicleID
	}
	return vehicles, nil
}

// PlateRegistry exposes the additive plate operation as a service.
type PlateRegistry struct {
	store    Store
	audit    *AuditLog
	observer Observer
}

// NewPlateRegistry creates a registry over store.
func NewPlateRegistry(store Store, audit *AuditLog, observer Observer) *PlateRegistry {
	if observer == nil {
		observer = nopObserver{}
	}
	return &PlateRegistry{store: store, audit: audit, observer: observer}
}

// AddPlates appends plates to an existing policy, linking each new vehicle
// to the policy's insured party.
func (r *PlateRegistry) AddPlates(ctx context.Context, id PolicyID, plates []string, actor Actor) (res WriteResult, err error) {
	start := time.Now()
	defer func() { r.observer.ObserveWrite(EntityPolicy, AuditUpdate, start, err) }()

	normalized := NormalizePlates(plates)
	if len(normalized) == 0 {
		return WriteResult{}, NewValidationError("plates", "required")
	}

	err = r.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetPolicy(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: "policy", ID: int64(id)}
		}
		_, err = insertPlates(ctx, tx, id, p.InsuredID, normalized)
		return err
	})
	if err != nil {
		return WriteResult{}, storageErr("add plates", err)
	}

	return r.audit.record(ctx, actor, AuditUpdate, EntityPolicy, int64(id),
		fmt.Sprintf("Added plates %s to policy %d", strings.Join(normalized, ", "), id)), nil
}
