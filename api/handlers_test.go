/*
handlers_test.go - Tests for the HTTP layer

Tests for:
- Authentication (missing, forged and valid tokens)
- Status mapping of the error taxonomy (400/404/422/500)
- Audit warnings surfacing on successful writes
- Import upload, lookups, scenarios, health and metrics routes
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/importer"
	"github.com/warp/brokerdesk/metrics"
	"github.com/warp/brokerdesk/store/sqlstore"
)

const testSecret = "test-secret"

// =============================================================================
// TEST HELPERS
// =============================================================================

type testAPI struct {
	router  http.Handler
	store   *sqlstore.Store
	handler *Handler
	token   string
	logs    *logtest.Hook
}

type apiOption func(*apiConfig)

type apiConfig struct {
	scenarios  bool
	failAudits bool
}

func withScenarios() apiOption    { return func(c *apiConfig) { c.scenarios = true } }
func withFailingAudit() apiOption { return func(c *apiConfig) { c.failAudits = true } }

// failingAudit commits business writes but never writes audit entries.
type failingAudit struct {
	*sqlstore.Store
}

func (failingAudit) AppendAudit(context.Context, brokerage.AuditEntry) (int64, error) {
	return 0, errors.New("audit table locked")
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	var cfg apiConfig
	for _, o := range opts {
		o(&cfg)
	}

	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, hook := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	var svcStore brokerage.Store = store
	if cfg.failAudits {
		svcStore = failingAudit{store}
	}
	services := brokerage.NewServices(svcStore, logger, m)
	h := NewHandler(services, importer.New(services.Policies, logger, m), store, logger)
	router := NewRouter(h, RouterOptions{
		Auth:            NewAuthenticator(testSecret, logger),
		CORSOrigins:     []string{"http://localhost:5173"},
		EnableScenarios: cfg.scenarios,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	token, err := IssueToken(testSecret, 7, 2, time.Hour)
	require.NoError(t, err)
	return &testAPI{router: router, store: store, handler: h, token: token, logs: hook}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_RejectsMissingAndForgedTokens(t *testing.T) {
	a := newTestAPI(t)

	// No header
	req := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signed with another secret
	forged, err := IssueToken("other-secret", 7, 2, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Expired
	expired, err := IssueToken(testSecret, 7, 2, -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_RejectsNonHMACAlgorithm(t *testing.T) {
	auth := NewAuthenticator(testSecret, nil)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{EmployeeID: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.Parse(token)

	assert.Error(t, err)
}

func TestAuth_ActorRecordedInAudit(t *testing.T) {
	// GIVEN: A token for employee 7
	a := newTestAPI(t)

	// WHEN: A policy is created
	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "P-1", "insured_name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The audit entry names employee 7
	entries := decodeBody[[]brokerage.AuditEntry](t, a.do(t, http.MethodGet, "/api/audits", nil))
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].EmployeeID)
	assert.Equal(t, int64(7), *entries[0].EmployeeID)
	assert.Equal(t, brokerage.AuditCreate, entries[0].Action)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicyLifecycle(t *testing.T) {
	a := newTestAPI(t)

	// Numbers are accepted where the form sends them
	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{
		"policy_number": 1001,
		"insured_name":  "Golden Star",
		"insurer_name":  "AYA",
		"policy_type":   "Motor",
		"expire_date":   "2030-06-30",
		"premium":       1500.5,
		"commission":    "150",
		"plates":        []string{"1A-1", "2B-2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[WriteResponse](t, rec)
	assert.Empty(t, created.Warning)

	policies := decodeBody[[]brokerage.PolicyView](t, a.do(t, http.MethodGet, "/api/policies", nil))
	require.Len(t, policies, 1)
	assert.Equal(t, "1001", policies[0].PolicyNumber)
	assert.Equal(t, "1500.5", policies[0].Premium.Decimal.String())
	assert.Equal(t, []string{"1A-1", "2B-2"}, policies[0].Plates)

	rec = a.do(t, http.MethodPost, "/api/policy/"+itoa(created.ID)+"/plates", PlatesRequest{Plates: []string{"3C-3"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPut, "/api/policy/"+itoa(created.ID), map[string]any{"policy_number": "1001", "insured_name": "Golden Star", "plates": []string{"9Z-9"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	policies = decodeBody[[]brokerage.PolicyView](t, a.do(t, http.MethodGet, "/api/policies", nil))
	assert.Equal(t, []string{"9Z-9"}, policies[0].Plates)

	rec = a.do(t, http.MethodDelete, "/api/policy/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodDelete, "/api/policy/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePolicy_ValidationMapsTo400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "P-1", "insured_name": "Acme", "expire_date": "31/12/2030"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Fields, "expire_date")
}

func TestCreatePolicy_RequiresInsuredName(t *testing.T) {
	// GIVEN: A create with no insured party, or only whitespace
	a := newTestAPI(t)

	for _, body := range []map[string]any{
		{"policy_number": "P-9"},
		{"policy_number": "P-9", "insured_name": "   "},
	} {
		// WHEN: It is posted
		rec := a.do(t, http.MethodPost, "/api/policy", body)

		// THEN: 400 names the field and nothing is written
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		resp := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "required", resp.Fields["insured_name"])
	}
	policies := decodeBody[[]brokerage.PolicyView](t, a.do(t, http.MethodGet, "/api/policies", nil))
	assert.Empty(t, policies)
}

func TestUpdatePolicy_InsuredNameStaysOptional(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "P-1", "insured_name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[WriteResponse](t, rec)

	rec = a.do(t, http.MethodPut, "/api/policy/"+itoa(created.ID), map[string]any{"policy_number": "P-1"})

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreatePolicy_BadJSONAndBadID(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/policy", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/policy/abc", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExpiring_DaysParameter(t *testing.T) {
	a := newTestAPI(t)
	today := time.Now().UTC()
	for i, days := range []int{5, 40} {
		rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{
			"policy_number": "E-" + itoa(int64(i)),
			"insured_name":  "Acme",
			"expire_date":   today.AddDate(0, 0, days).Format(brokerage.DateLayout),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	defaultWindow := decodeBody[[]brokerage.ExpiringPolicyView](t, a.do(t, http.MethodGet, "/api/policies/expiring", nil))
	wide := decodeBody[[]brokerage.ExpiringPolicyView](t, a.do(t, http.MethodGet, "/api/policies/expiring?days=60", nil))

	assert.Len(t, defaultWindow, 1)
	assert.Len(t, wide, 2)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/policies/expiring?days=-3", nil).Code)
}

func TestImportPolicies_Multipart(t *testing.T) {
	a := newTestAPI(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Policy Number", "Insured Name", "Expire Date"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"X-1", "Acme", "2030-01-01"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"X-2", "Acme", "not a date"}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "register.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/policies/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[importer.Report](t, rec)
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 3, report.Failed[0].Row)
}

// =============================================================================
// CLAIMS
// =============================================================================

func TestClaims_ProvisionalPolicyAndListByInsured(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/claim", map[string]any{
		"insured_name":  "U Tun",
		"policy_number": 9001,
		"plate_number":  "YGN-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	claimID := decodeBody[WriteResponse](t, rec).ID

	claims := decodeBody[[]brokerage.ClaimView](t, a.do(t, http.MethodGet, "/api/claims", nil))
	require.Len(t, claims, 1)
	assert.True(t, claims[0].Provisional)
	assert.Equal(t, "Open", claims[0].StatusName)
	require.NotNil(t, claims[0].InsuredID)

	byInsured := decodeBody[[]brokerage.ClaimView](t, a.do(t, http.MethodGet, "/api/claims/insured/"+itoa(*claims[0].InsuredID), nil))
	assert.Len(t, byInsured, 1)

	rec = a.do(t, http.MethodPut, "/api/claim/"+itoa(claimID), map[string]any{"status_name": "Closed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claims = decodeBody[[]brokerage.ClaimView](t, a.do(t, http.MethodGet, "/api/claims", nil))
	assert.Equal(t, "Closed", claims[0].StatusName)
	assert.Equal(t, "YGN-1", claims[0].PlateNumber, "fields absent from the update are kept")

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/claim/"+itoa(claimID), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPut, "/api/claim/"+itoa(claimID), map[string]any{}).Code)
}

// =============================================================================
// COMMISSION
// =============================================================================

func TestCommission_PaymentsAndStatus(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "C-1", "insured_name": "Acme", "commission": "1000"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[WriteResponse](t, rec).ID

	rec = a.do(t, http.MethodPost, "/api/commission/add", map[string]any{"policy_id": itoa(id), "payment_amount": 400, "paid_by": "AYA"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodPost, "/api/commission/add", map[string]any{"policy_id": id, "payment_amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/commission/add", map[string]any{"policy_id": 999, "payment_amount": "10"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/commission/"+itoa(id)+"/status", map[string]any{"commission_status": "Paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodPut, "/api/commission/"+itoa(id)+"/status", map[string]any{"commission_status": "Settled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/commission/"+itoa(id), map[string]any{"policy_number": "C-1", "insurer_name": "GGI", "total_commission": 1200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows := decodeBody[[]brokerage.CommissionView](t, a.do(t, http.MethodGet, "/api/commission/status", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, brokerage.CommissionPaid, rows[0].Status)
	assert.Equal(t, "400", rows[0].AmountPaid.String())
	assert.Equal(t, "1200", rows[0].TotalCommission.Decimal.String())
	assert.Equal(t, "GGI", rows[0].InsurerName)

	payments := decodeBody[[]brokerage.CommissionPayment](t, a.do(t, http.MethodGet, "/api/commission/"+itoa(id)+"/payments", nil))
	require.Len(t, payments, 1)
	assert.Equal(t, "AYA", payments[0].PaidBy)
}

// =============================================================================
// AUDIT WARNING
// =============================================================================

func TestAuditWarning_SuccessWithWarning(t *testing.T) {
	// GIVEN: An audit store that always fails
	a := newTestAPI(t, withFailingAudit())

	// WHEN: A policy is created
	rec := a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "W-1", "insured_name": "Acme"})

	// THEN: The write succeeded, carries a warning, and the policy exists
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[WriteResponse](t, rec)
	assert.NotZero(t, resp.ID)
	assert.Contains(t, resp.Warning, "audit")

	policies := decodeBody[[]brokerage.PolicyView](t, a.do(t, http.MethodGet, "/api/policies", nil))
	assert.Len(t, policies, 1)

	var logged []string
	for _, e := range a.logs.AllEntries() {
		logged = append(logged, e.Message)
	}
	assert.Contains(t, logged, "committed change has no audit entry")
	assert.Contains(t, logged, "write committed with audit warning")

	// The handler's warning carries the caller from the token
	for _, e := range a.logs.AllEntries() {
		if e.Message == "write committed with audit warning" {
			assert.Equal(t, int64(7), e.Data["employee_id"])
			assert.Equal(t, 2, e.Data["role_id"])
		}
	}
}

// =============================================================================
// LOOKUPS, SCENARIOS, OPS
// =============================================================================

func TestLookups(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/policy", map[string]any{"insured_name": "Acme", "policy_type": "Motor"})

	types := decodeBody[[]brokerage.DimensionRow](t, a.do(t, http.MethodGet, "/api/lookups/policy-types", nil))
	require.Len(t, types, 1)
	assert.Equal(t, "Motor", types[0].Name)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/lookups/cars", nil).Code)
}

func TestScenarios_DisabledByDefault(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/scenarios", nil).Code)
}

func TestScenarios_LoadEach(t *testing.T) {
	a := newTestAPI(t, withScenarios())

	listed := decodeBody[[]ScenarioDTO](t, a.do(t, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, listed, len(scenarioLoaders))

	for _, s := range listed {
		rec := a.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", s.ID, rec.Body.String())

		current := decodeBody[ScenarioDTO](t, a.do(t, http.MethodGet, "/api/scenarios/current", nil))
		assert.Equal(t, s.ID, current.ID)
	}

	// Each load resets first, so only the last scenario's data remains
	policies := decodeBody[[]brokerage.PolicyView](t, a.do(t, http.MethodGet, "/api/policies", nil))
	assert.Len(t, policies, 3)
	entries := decodeBody[[]brokerage.AuditEntry](t, a.do(t, http.MethodGet, "/api/audits", nil))
	require.NotEmpty(t, entries)
	assert.Equal(t, "Aye", entries[0].ActorName)

	assert.Equal(t, http.StatusBadRequest,
		a.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/policy", map[string]any{"policy_number": "M-1", "insured_name": "Acme"})

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `brokerdesk_writes_total{action="CREATE",entity="Policy",outcome="ok"} 1`)
}

// =============================================================================
// DTO
// =============================================================================

func TestLoose_AcceptsStringNumberNull(t *testing.T) {
	var v struct {
		A Loose `json:"a"`
		B Loose `json:"b"`
		C Loose `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1,200","b":1500.50,"c":null}`), &v))

	assert.Equal(t, Loose("1,200"), v.A)
	assert.Equal(t, Loose("1500.50"), v.B)
	assert.Equal(t, Loose(""), v.C)
	assert.Error(t, json.Unmarshal([]byte(`{"a":[1]}`), &v))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
