/*
dimension.go - Resolve-or-create for dimension entities

PURPOSE:
  Primary records reference small name-keyed tables (insured party,
  insurer, policy type, claim status, claim subject type). Callers supply
  names; the Resolver turns each name into a row id, creating the row on
  first use.

DIMENSIONS:
  Dimension is a closed enum. The store maps each value to a fixed table
  descriptor, so no caller-supplied string ever becomes part of a query's
  structure.

SEMANTICS:
  - Blank value          -> nil id, no row created
  - Exact match exists   -> existing id
  - No match             -> insert-ignore, then re-select (the unique index
                            on the name column turns a concurrent insert of
                            the same name into a no-op instead of a duplicate)
  - Matching is exact and case-sensitive: "acme" and "Acme" are two rows.

TRANSACTION SCOPE:
  A Resolver is bound to one Tx and memoizes results, so each name is
  looked up or inserted at most once per transaction. A failure aborts the
  caller's transaction; no dimension row outlives a failed parent write.
*/
package brokerage

import (
	"context"
	"fmt"
)

// Dimension enumerates the name-keyed reference tables.
type Dimension int

const (
	DimInsured Dimension = iota
	DimInsurer
	DimPolicyType
	DimClaimStatus
	DimSubjectType

	dimensionCount
)

var dimensionLabels = [dimensionCount]string{
	DimInsured:     "insured party",
	DimInsurer:     "insurer",
	DimPolicyType:  "policy type",
	DimClaimStatus: "claim status",
	DimSubjectType: "claim subject type",
}

// Dimensions lists every dimension kind.
func Dimensions() []Dimension {
	return []Dimension{DimInsured, DimInsurer, DimPolicyType, DimClaimStatus, DimSubjectType}
}

// String returns the human-readable label of the dimension.
func (d Dimension) String() string {
	if d.Valid() {
		return dimensionLabels[d]
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	return d >= 0 && d < dimensionCount
}

type dimensionKey struct {
	dim   Dimension
	value string
}

// Resolver performs resolve-or-create lookups within a single transaction.
type Resolver struct {
	tx   Tx
	memo map[dimensionKey]int64
}

// NewResolver binds a resolver to tx.
func NewResolver(tx Tx) *Resolver {
	return &Resolver{tx: tx, memo: make(map[dimensionKey]int64)}
}

// Resolve returns the id of the dimension row named value, creating it if no
// exact match exists. A blank value returns nil.
func (r *Resolver) Resolve(ctx context.Context, d Dimension, value string) (*int64, error) {
	if isBlank(value) {
		return nil, nil
	}
	if !d.Valid() {
		return nil, &ResolutionError{Dimension: d, Value: value, Err: fmt.Errorf("unknown dimension")}
	}

	key := dimensionKey{dim: d, value: value}
	if id, ok := r.memo[key]; ok {
		return &id, nil
	}

	id, found, err := r.tx.LookupDimension(ctx, d, value)
	if err != nil {
		return nil, &ResolutionError{Dimension: d, Value: value, Err: err}
	}
	if !found {
		if err := r.tx.InsertDimension(ctx, d, value); err != nil {
			return nil, &ResolutionError{Dimension: d, Value: value, Err: err}
		}
		// The insert may have been skipped for a row a concurrent
		// transaction committed, so re-read past the snapshot.
		id, found, err = r.tx.LookupDimensionLocked(ctx, d, value)
		if err != nil {
			return nil, &ResolutionError{Dimension: d, Value: value, Err: err}
		}
		if !found {
			return nil, &ResolutionError{Dimension: d, Value: value, Err: fmt.Errorf("row missing after insert")}
		}
	}

	r.memo[key] = id
	return &id, nil
}

// ResolveDefault resolves value, falling back to def when value is blank.
func (r *Resolver) ResolveDefault(ctx context.Context, d Dimension, value, def string) (*int64, error) {
	if isBlank(value) {
		value = def
	}
	return r.Resolve(ctx, d, value)
}
