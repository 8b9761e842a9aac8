package brokerage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/store/sqlstore"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store    *sqlstore.Store
	services *brokerage.Services
	logs     *logtest.Hook
	observer *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newFixtureWithStore(t, store, store)
}

// newFixtureWithStore wires the services to svcStore while keeping the
// underlying SQLite store around for direct assertions.
func newFixtureWithStore(t *testing.T, db *sqlstore.Store, svcStore brokerage.Store) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	obs := &recordingObserver{}
	return &fixture{
		store:    db,
		services: brokerage.NewServices(svcStore, logger, obs),
		logs:     hook,
		observer: obs,
	}
}

// failingAuditStore commits business writes normally but cannot append audit
// entries.
type failingAuditStore struct {
	*sqlstore.Store
}

var errAuditDown = errors.New("audit table locked")

func (failingAuditStore) AppendAudit(context.Context, brokerage.AuditEntry) (int64, error) {
	return 0, errAuditDown
}

type recordingObserver struct {
	writes       int
	failures     int
	auditFailed  int
	lastFailedOn brokerage.AuditEntity
}

func (o *recordingObserver) ObserveWrite(_ brokerage.AuditEntity, _ brokerage.AuditAction, _ time.Time, err error) {
	o.writes++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) AuditWriteFailed(entity brokerage.AuditEntity, _ brokerage.AuditAction) {
	o.auditFailed++
	o.lastFailedOn = entity
}

func auditEntries(t *testing.T, f *fixture, action brokerage.AuditAction, entity brokerage.AuditEntity, id int64) []brokerage.AuditEntry {
	t.Helper()
	entries, err := f.services.Audit.List(context.Background())
	require.NoError(t, err)
	var out []brokerage.AuditEntry
	for _, e := range entries {
		if e.Action == action && e.Entity == entity && e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

func dimensionNames(t *testing.T, f *fixture, d brokerage.Dimension) []string {
	t.Helper()
	rows, err := f.store.ListDimension(context.Background(), d)
	require.NoError(t, err)
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}

func findPolicy(t *testing.T, f *fixture, id int64) brokerage.PolicyView {
	t.Helper()
	views, err := f.services.Policies.List(context.Background())
	require.NoError(t, err)
	for _, v := range views {
		if int64(v.ID) == id {
			return v
		}
	}
	t.Fatalf("policy %d not in list", id)
	return brokerage.PolicyView{}
}

var system = brokerage.SystemActor()
