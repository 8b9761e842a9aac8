/*
store.go - Persistence interfaces for the brokerage core

PURPOSE:
  Defines the boundary between the services and the database. Services
  receive a Store at construction; there is no process-wide handle.

KEY INTERFACES:
  Store:      Transactions, read projections, audit persistence
  Tx:         Writes that must share one atomic unit
  Reader:     Pure projections (no transaction, no audit)
  AuditStore: Append-only audit persistence

TRANSACTIONS:
  WithTx commits when fn returns nil and rolls back otherwise. The context
  is bound to the transaction: a cancelled request rolls back everything,
  including dimension rows created along the way.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite (development, tests) and MySQL (production)
*/
package brokerage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the full persistence surface used by the services.
type Store interface {
	Reader
	AuditStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	// Dimensions
	LookupDimension(ctx context.Context, d Dimension, value string) (int64, bool, error)
	InsertDimension(ctx context.Context, d Dimension, value string) error
	// LookupDimensionLocked sees rows committed by concurrent transactions.
	LookupDimensionLocked(ctx context.Context, d Dimension, value string) (int64, bool, error)

	// Policies
	InsertPolicy(ctx context.Context, p PolicyRecord) (PolicyID, error)
	UpdatePolicy(ctx context.Context, p PolicyRecord) error
	DeletePolicy(ctx context.Context, id PolicyID) (int64, error)
	GetPolicy(ctx context.Context, id PolicyID) (*PolicyRecord, error)
	FindPolicyByNumber(ctx context.Context, number string) (PolicyID, bool, error)
	InsuredName(ctx context.Context, insuredID int64) (string, error)

	// Vehicles
	InsertVehicle(ctx context.Context, v VehicleRecord) (int64, error)
	DeleteVehiclesByPolicy(ctx context.Context, id PolicyID) (int64, error)
	FindVehicleByPlate(ctx context.Context, plate string) (int64, bool, error)
	ClaimPlatesByPolicy(ctx context.Context, id PolicyID) (map[ClaimID]string, error)
	SetClaimVehicle(ctx context.Context, id ClaimID, vehicleID *int64) error

	// Claims
	InsertClaim(ctx context.Context, c ClaimRecord) (ClaimID, error)
	GetClaim(ctx context.Context, id ClaimID) (*ClaimRecord, error)
	UpdateClaim(ctx context.Context, c ClaimRecord) error
	DeleteClaim(ctx context.Context, id ClaimID) (int64, error)

	// Commission overlay
	UpdateCommissionStatus(ctx context.Context, id PolicyID, status CommissionStatus) error
	UpdateCommissionDetails(ctx context.Context, p PolicyRecord) error
	InsertCommissionPayment(ctx context.Context, id PolicyID, amount decimal.Decimal, paidBy string) (int64, error)
}

// Reader serves the read-only projections.
type Reader interface {
	ListPolicies(ctx context.Context) ([]PolicyView, error)
	ListExpiringPolicies(ctx context.Context, windowDays int) ([]ExpiringPolicyView, error)
	ListClaims(ctx context.Context) ([]ClaimView, error)
	ListClaimsByInsured(ctx context.Context, insuredID int64) ([]ClaimView, error)
	ListCommissions(ctx context.Context) ([]CommissionView, error)
	ListCommissionPayments(ctx context.Context, id PolicyID) ([]CommissionPayment, error)
	ListDimension(ctx context.Context, d Dimension) ([]DimensionRow, error)

	// CurrentDate returns the database's notion of today.
	CurrentDate(ctx context.Context) (time.Time, error)
}

// AuditStore persists audit entries. Append-only.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) (int64, error)
	ListAudit(ctx context.Context) ([]AuditEntry, error)
}

// DimensionRow is one row of a dimension table.
type DimensionRow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
