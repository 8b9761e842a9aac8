/*
sqlstore_test.go - Store tests against an in-memory SQLite database

Tests for:
- Dimension insert-ignore and case-sensitive lookup
- Policy round trip with NULL amounts and dates
- Plate aggregation in the policy list
- Expiry window relative to the database date
- Claim references surviving policy deletion
- Commission totals and payments
- Audit ordering and actor names
- Transaction rollback
*/
package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/store/sqlstore"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func inTx(t *testing.T, store *sqlstore.Store, fn func(tx brokerage.Tx)) {
	t.Helper()
	require.NoError(t, store.WithTx(context.Background(), func(tx brokerage.Tx) error {
		fn(tx)
		return nil
	}))
}

func ptr[T any](v T) *T { return &v }

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// =============================================================================
// DIMENSIONS
// =============================================================================

func TestDimension_InsertIgnoreIsIdempotent(t *testing.T) {
	// GIVEN: An empty store
	store := newStore(t)
	ctx := context.Background()

	// WHEN: The same insurer is inserted twice
	inTx(t, store, func(tx brokerage.Tx) {
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsurer, "Allianz"))
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsurer, "Allianz"))
	})

	// THEN: Exactly one row exists
	rows, err := store.ListDimension(ctx, brokerage.DimInsurer)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Allianz", rows[0].Name)
}

func TestDimension_LookupIsCaseSensitive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	inTx(t, store, func(tx brokerage.Tx) {
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsured, "Acme"))

		_, found, err := tx.LookupDimension(ctx, brokerage.DimInsured, "acme")
		require.NoError(t, err)
		assert.False(t, found, "lookup must not fold case")

		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsured, "acme"))
	})

	rows, err := store.ListDimension(ctx, brokerage.DimInsured)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDimension_EachKindHasItsOwnTable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	inTx(t, store, func(tx brokerage.Tx) {
		for _, d := range brokerage.Dimensions() {
			require.NoError(t, tx.InsertDimension(ctx, d, "Same"))
		}
	})

	for _, d := range brokerage.Dimensions() {
		rows, err := store.ListDimension(ctx, d)
		require.NoError(t, err, d.String())
		assert.Len(t, rows, 1, d.String())
	}
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicy_RoundTripKeepsNulls(t *testing.T) {
	// GIVEN: A policy with no amounts, no expiry and no references
	store := newStore(t)
	ctx := context.Background()

	var got *brokerage.PolicyRecord
	inTx(t, store, func(tx brokerage.Tx) {
		id, err := tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("P-1")})
		require.NoError(t, err)

		// WHEN: It is read back
		got, err = tx.GetPolicy(ctx, id)
		require.NoError(t, err)
	})

	// THEN: Missing values stay missing instead of becoming zero
	require.NotNil(t, got)
	assert.Equal(t, "P-1", *got.PolicyNumber)
	assert.Nil(t, got.InsuredID)
	assert.Nil(t, got.ExpireDate)
	assert.False(t, got.Premium.Valid)
	assert.False(t, got.Commission.Valid)
	assert.False(t, got.Provisional)
}

func TestPolicy_RoundTripKeepsValues(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	expire := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)

	var got *brokerage.PolicyRecord
	inTx(t, store, func(tx brokerage.Tx) {
		id, err := tx.InsertPolicy(ctx, brokerage.PolicyRecord{
			PolicyNumber: ptr("P-2"),
			ExpireDate:   &expire,
			Premium:      amount("1250.50"),
			Commission:   amount("125.05"),
			Provisional:  true,
		})
		require.NoError(t, err)
		got, err = tx.GetPolicy(ctx, id)
		require.NoError(t, err)
	})

	require.NotNil(t, got)
	require.NotNil(t, got.ExpireDate)
	assert.True(t, expire.Equal(*got.ExpireDate))
	assert.True(t, got.Premium.Decimal.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, got.Commission.Decimal.Equal(decimal.RequireFromString("125.05")))
	assert.True(t, got.Provisional)
}

func TestPolicy_GetMissingReturnsNil(t *testing.T) {
	store := newStore(t)
	inTx(t, store, func(tx brokerage.Tx) {
		got, err := tx.GetPolicy(context.Background(), 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestListPolicies_AggregatesPlatesNewestFirst(t *testing.T) {
	// GIVEN: Two policies, the second with two plates
	store := newStore(t)
	ctx := context.Background()

	var first, second brokerage.PolicyID
	inTx(t, store, func(tx brokerage.Tx) {
		var err error
		first, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("A")})
		require.NoError(t, err)
		second, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("B")})
		require.NoError(t, err)
		for _, plate := range []string{"1AB-2345", "9ZZ-0001"} {
			_, err := tx.InsertVehicle(ctx, brokerage.VehicleRecord{PolicyID: &second, PlateNumber: plate})
			require.NoError(t, err)
		}
	})

	// WHEN: The list is read
	views, err := store.ListPolicies(ctx)
	require.NoError(t, err)

	// THEN: Newest first, plates in insertion order, empty set as []
	require.Len(t, views, 2)
	assert.Equal(t, second, views[0].ID)
	assert.Equal(t, []string{"1AB-2345", "9ZZ-0001"}, views[0].Plates)
	assert.Equal(t, first, views[1].ID)
	assert.NotNil(t, views[1].Plates)
	assert.Empty(t, views[1].Plates)
	assert.Equal(t, brokerage.CommissionUnpaid, views[1].CommissionStatus)
}

func TestListExpiringPolicies_InclusiveWindow(t *testing.T) {
	// GIVEN: Policies expiring yesterday, today, at the window edge and after it
	store := newStore(t)
	ctx := context.Background()

	today, err := store.CurrentDate(ctx)
	require.NoError(t, err)
	at := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}

	inTx(t, store, func(tx brokerage.Tx) {
		for number, expire := range map[string]*time.Time{
			"past":   at(-1),
			"today":  at(0),
			"edge":   at(30),
			"beyond": at(31),
			"none":   nil,
		} {
			_, err := tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr(number), ExpireDate: expire})
			require.NoError(t, err)
		}
	})

	// WHEN: The 30-day report is read
	views, err := store.ListExpiringPolicies(ctx, 30)
	require.NoError(t, err)

	// THEN: Both window ends are included, ascending by expiry
	require.Len(t, views, 2)
	assert.Equal(t, "today", views[0].PolicyNumber)
	assert.Equal(t, 0, views[0].DaysRemaining)
	assert.Equal(t, "edge", views[1].PolicyNumber)
	assert.Equal(t, 30, views[1].DaysRemaining)
}

func TestFindPolicyByNumber(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	inTx(t, store, func(tx brokerage.Tx) {
		id, err := tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("POL-7")})
		require.NoError(t, err)

		got, found, err := tx.FindPolicyByNumber(ctx, "POL-7")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id, got)

		_, found, err = tx.FindPolicyByNumber(ctx, "pol-7")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

// =============================================================================
// CLAIMS
// =============================================================================

func TestClaim_SurvivesPolicyAndVehicleDeletion(t *testing.T) {
	// GIVEN: A claim referencing a policy and one of its vehicles
	store := newStore(t)
	ctx := context.Background()

	var policyID brokerage.PolicyID
	var claimID brokerage.ClaimID
	inTx(t, store, func(tx brokerage.Tx) {
		var err error
		policyID, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("P-9")})
		require.NoError(t, err)
		vehicleID, err := tx.InsertVehicle(ctx, brokerage.VehicleRecord{PolicyID: &policyID, PlateNumber: "7XY-1111"})
		require.NoError(t, err)
		claimID, err = tx.InsertClaim(ctx, brokerage.ClaimRecord{PolicyID: &policyID, VehicleID: &vehicleID})
		require.NoError(t, err)
	})

	// WHEN: The policy's vehicles and the policy are deleted
	inTx(t, store, func(tx brokerage.Tx) {
		_, err := tx.DeleteVehiclesByPolicy(ctx, policyID)
		require.NoError(t, err)
		n, err := tx.DeletePolicy(ctx, policyID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	// THEN: The claim remains with its references cleared
	inTx(t, store, func(tx brokerage.Tx) {
		c, err := tx.GetClaim(ctx, claimID)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Nil(t, c.PolicyID)
		assert.Nil(t, c.VehicleID)
	})
}

func TestClaimPlatesByPolicy_AndRepoint(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var policyID brokerage.PolicyID
	var claimID brokerage.ClaimID
	inTx(t, store, func(tx brokerage.Tx) {
		var err error
		policyID, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("P-3")})
		require.NoError(t, err)
		vehicleID, err := tx.InsertVehicle(ctx, brokerage.VehicleRecord{PolicyID: &policyID, PlateNumber: "5K-5555"})
		require.NoError(t, err)
		claimID, err = tx.InsertClaim(ctx, brokerage.ClaimRecord{PolicyID: &policyID, VehicleID: &vehicleID})
		require.NoError(t, err)
	})

	inTx(t, store, func(tx brokerage.Tx) {
		plates, err := tx.ClaimPlatesByPolicy(ctx, policyID)
		require.NoError(t, err)
		assert.Equal(t, map[brokerage.ClaimID]string{claimID: "5K-5555"}, plates)

		_, err = tx.DeleteVehiclesByPolicy(ctx, policyID)
		require.NoError(t, err)
		vehicleID, err := tx.InsertVehicle(ctx, brokerage.VehicleRecord{PolicyID: &policyID, PlateNumber: "5K-5555"})
		require.NoError(t, err)
		require.NoError(t, tx.SetClaimVehicle(ctx, claimID, &vehicleID))

		c, err := tx.GetClaim(ctx, claimID)
		require.NoError(t, err)
		require.NotNil(t, c.VehicleID)
		assert.Equal(t, vehicleID, *c.VehicleID)
	})
}

func TestListClaimsByInsured(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var acme int64
	inTx(t, store, func(tx brokerage.Tx) {
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsured, "Acme"))
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsured, "Other"))
		var err error
		acme, _, err = tx.LookupDimension(ctx, brokerage.DimInsured, "Acme")
		require.NoError(t, err)
		other, _, err := tx.LookupDimension(ctx, brokerage.DimInsured, "Other")
		require.NoError(t, err)

		_, err = tx.InsertClaim(ctx, brokerage.ClaimRecord{InsuredID: &acme, AccidentPlace: ptr("Yangon")})
		require.NoError(t, err)
		_, err = tx.InsertClaim(ctx, brokerage.ClaimRecord{InsuredID: &other})
		require.NoError(t, err)
	})

	views, err := store.ListClaimsByInsured(ctx, acme)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Acme", views[0].InsuredName)
	assert.Equal(t, "Yangon", views[0].AccidentPlace)

	all, err := store.ListClaims(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// COMMISSIONS
// =============================================================================

func TestCommissions_SumPaymentsPerPolicy(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var id brokerage.PolicyID
	inTx(t, store, func(tx brokerage.Tx) {
		var err error
		id, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("C-1"), Commission: amount("300")})
		require.NoError(t, err)
		_, err = tx.InsertPolicy(ctx, brokerage.PolicyRecord{PolicyNumber: ptr("C-2")})
		require.NoError(t, err)
		_, err = tx.InsertCommissionPayment(ctx, id, decimal.NewFromInt(100), "Kyaw")
		require.NoError(t, err)
		_, err = tx.InsertCommissionPayment(ctx, id, decimal.NewFromInt(50), "System")
		require.NoError(t, err)
		require.NoError(t, tx.UpdateCommissionStatus(ctx, id, brokerage.CommissionPaid))
	})

	views, err := store.ListCommissions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2, "policies without parties are still listed")

	paid := views[1]
	assert.Equal(t, id, paid.PolicyID)
	assert.True(t, paid.AmountPaid.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, brokerage.CommissionPaid, paid.Status)
	assert.True(t, views[0].AmountPaid.IsZero())

	payments, err := store.ListCommissionPayments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.False(t, payments[0].PaidAt.IsZero())
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_NewestFirstWithEmployeeName(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, 7, "Aye"))

	_, err := store.AppendAudit(ctx, brokerage.AuditEntry{
		Action: brokerage.AuditCreate, Entity: brokerage.EntityPolicy, EntityID: 1, Description: "first",
	})
	require.NoError(t, err)
	_, err = store.AppendAudit(ctx, brokerage.AuditEntry{
		EmployeeID: ptr(int64(7)), Action: brokerage.AuditUpdate, Entity: brokerage.EntityPolicy, EntityID: 1, Description: "second",
	})
	require.NoError(t, err)

	entries, err := store.ListAudit(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Description)
	assert.Equal(t, "Aye", entries[0].ActorName)
	assert.Nil(t, entries[1].EmployeeID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a dimension and then fails
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx brokerage.Tx) error {
		require.NoError(t, tx.InsertDimension(ctx, brokerage.DimInsured, "Ghost"))
		return boom
	})

	// THEN: The error is returned as-is and nothing was kept
	assert.ErrorIs(t, err, boom)
	rows, err := store.ListDimension(ctx, brokerage.DimInsured)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := sqlstore.Open("oracle", "x")
	assert.Error(t, err)
}
