package brokerage

import (
	"context"
	"time"
)

// dimensionSlugs are the URL names of the dimension lists.
var dimensionSlugs = map[string]Dimension{
	"insured":        DimInsured,
	"insurers":       DimInsurer,
	"policy-types":   DimPolicyType,
	"claim-statuses": DimClaimStatus,
	"subject-types":  DimSubjectType,
}

// ParseDimension maps a URL slug such as "policy-types" to its dimension.
func ParseDimension(slug string) (Dimension, bool) {
	d, ok := dimensionSlugs[slug]
	return d, ok
}

// LookupService serves the dimension lists that back the form dropdowns.
type LookupService struct {
	store Reader
}

// NewLookupService creates a lookup service over store.
func NewLookupService(store Reader) *LookupService {
	return &LookupService{store: store}
}

// List returns every row of dimension d ordered by name.
func (s *LookupService) List(ctx context.Context, d Dimension) ([]DimensionRow, error) {
	if !d.Valid() {
		return nil, NewValidationError("dimension", "oneof")
	}
	rows, err := s.store.ListDimension(ctx, d)
	if err != nil {
		return nil, storageErr("list "+d.String(), err)
	}
	return rows, nil
}

// Today returns the database's current date.
func (s *LookupService) Today(ctx context.Context) (time.Time, error) {
	t, err := s.store.CurrentDate(ctx)
	if err != nil {
		return time.Time{}, storageErr("read current date", err)
	}
	return t, nil
}
