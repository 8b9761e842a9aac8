/*
handlers.go - HTTP API handlers for the brokerage back office

PURPOSE:
  Exposes the brokerage services via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the services.

ENDPOINTS:
  Policies:
    POST   /api/policy                  Create policy
    GET    /api/policies                List policies with plates
    GET    /api/policies/expiring       Expiry report (?days=)
    POST   /api/policies/import         Import a .xlsx register
    PUT    /api/policy/{id}             Update policy
    DELETE /api/policy/{id}             Delete policy
    POST   /api/policy/{id}/plates      Add plates

  Claims:
    POST   /api/claim                   Create claim
    GET    /api/claims                  List claims
    GET    /api/claims/insured/{id}     Claims of one insured party
    PUT    /api/claim/{id}              Partial update
    DELETE /api/claim/{id}              Delete claim

  Commission:
    GET    /api/commission/status       Commission list
    GET    /api/commission/{id}/payments Payments of a policy
    POST   /api/commission/add          Record payment
    PUT    /api/commission/{id}/status  Set Paid/Unpaid
    PUT    /api/commission/{id}         Inline edit

  Other:
    GET    /api/audits                  Audit log, newest first
    GET    /api/lookups/{kind}          Dimension dropdown values

REQUEST FLOW:
  1. Parse HTTP request (JSON body, path id)
  2. Take the actor from the request context (auth.go)
  3. Call the service
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with the HTTP status of their category:
  - 400: ValidationError, malformed body or id
  - 404: NotFoundError
  - 422: ResolutionError
  - 500: StorageError and anything unexpected
  A committed write whose audit entry failed still answers 200/201, with
  the warning field set.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/importer"
)

// maxUploadBytes bounds the size of an imported workbook.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the store surface the handlers need beyond the services.
type Backend interface {
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveEmployee(ctx context.Context, id int64, firstName string) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services         *brokerage.Services
	Importer         *importer.Importer
	Store            Backend
	Logger           logrus.FieldLogger
	ExpiryWindowDays int

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over services and store.
func NewHandler(services *brokerage.Services, imp *importer.Importer, store Backend, logger logrus.FieldLogger) *Handler {
	return &Handler{
		Services:         services,
		Importer:         imp,
		Store:            store,
		Logger:           logger,
		ExpiryWindowDays: brokerage.DefaultExpiryWindowDays,
	}
}

func (h *Handler) log(r *http.Request) logrus.FieldLogger {
	fields := logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}
	if actor := ActorFrom(r.Context()); !actor.IsSystem() {
		fields["employee_id"] = *actor.EmployeeID
		fields["role_id"] = actor.Role
	}
	return h.Logger.WithFields(fields)
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// CreatePolicy creates a policy. Unlike an update, a create must name the
// insured party.
// POST /api/policy
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := brokerage.ValidateStruct(createPolicyFields{InsuredName: strings.TrimSpace(req.InsuredName)}); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Services.Policies.Create(r.Context(), req.input(), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusCreated, res, err)
}

// ListPolicies returns every policy, newest first.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Services.Policies.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

// ListExpiringPolicies returns the expiry report.
// GET /api/policies/expiring?days=30
func (h *Handler) ListExpiringPolicies(w http.ResponseWriter, r *http.Request) {
	days := h.ExpiryWindowDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer", nil)
			return
		}
		days = n
	}
	policies, err := h.Services.Policies.ListExpiring(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

// UpdatePolicy overwrites a policy.
// PUT /api/policy/{id}
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PolicyRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Policies.Update(r.Context(), brokerage.PolicyID(id), req.input(), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// DeletePolicy deletes a policy and its plates.
// DELETE /api/policy/{id}
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Services.Policies.Delete(r.Context(), brokerage.PolicyID(id), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// AddPlates appends plates to a policy.
// POST /api/policy/{id}/plates
func (h *Handler) AddPlates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PlatesRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Plates.AddPlates(r.Context(), brokerage.PolicyID(id), req.Plates, ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// ImportPolicies imports a workbook uploaded as the "file" form field.
// POST /api/policies/import
func (h *Handler) ImportPolicies(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	report, err := h.Importer.ImportXLSX(r.Context(), file, ActorFrom(r.Context()))
	if err != nil {
		if report == nil {
			writeError(w, http.StatusBadRequest, "Unable to import workbook", err)
			return
		}
		h.log(r).WithError(err).Warn("import interrupted")
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// CreateClaim creates a claim.
// POST /api/claim
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Claims.Create(r.Context(), req.input(), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusCreated, res, err)
}

// ListClaims returns every claim, newest first.
// GET /api/claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Services.Claims.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// ListClaimsByInsured returns the claims of one insured party.
// GET /api/claims/insured/{insuredId}
func (h *Handler) ListClaimsByInsured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "insuredId")
	if !ok {
		return
	}
	claims, err := h.Services.Claims.ListByInsured(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// UpdateClaim changes the supplied fields of a claim.
// PUT /api/claim/{id}
func (h *Handler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req brokerage.ClaimUpdate
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Claims.Update(r.Context(), brokerage.ClaimID(id), req, ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// DeleteClaim deletes a claim.
// DELETE /api/claim/{id}
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Services.Claims.Delete(r.Context(), brokerage.ClaimID(id), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns the commission list.
// GET /api/commission/status
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Services.Commissions.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListCommissionPayments returns the payments of a policy.
// GET /api/commission/{policyId}/payments
func (h *Handler) ListCommissionPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "policyId")
	if !ok {
		return
	}
	payments, err := h.Services.Commissions.Payments(r.Context(), brokerage.PolicyID(id))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// AddCommissionPayment records a payment.
// POST /api/commission/add
func (h *Handler) AddCommissionPayment(w http.ResponseWriter, r *http.Request) {
	var req CommissionPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	policyID, err := strconv.ParseInt(string(req.PolicyID), 10, 64)
	if err != nil || policyID <= 0 {
		h.writeServiceError(w, r, brokerage.NewValidationError("policy_id", "required"))
		return
	}
	amount, err := decimal.NewFromString(string(req.PaymentAmount))
	if err != nil {
		h.writeServiceError(w, r, brokerage.NewValidationError("payment_amount", "numeric"))
		return
	}
	res, err := h.Services.Commissions.AddPayment(r.Context(), brokerage.PolicyID(policyID), amount, req.PaidBy, ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusCreated, res, err)
}

// UpdateCommissionStatus sets Paid or Unpaid.
// PUT /api/commission/{policyId}/status
func (h *Handler) UpdateCommissionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "policyId")
	if !ok {
		return
	}
	var req CommissionStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Commissions.UpdateStatus(r.Context(), brokerage.PolicyID(id), req.Status, ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// UpdateCommissionDetails applies an inline edit.
// PUT /api/commission/{policyId}
func (h *Handler) UpdateCommissionDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "policyId")
	if !ok {
		return
	}
	var req CommissionDetailsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Services.Commissions.UpdateDetails(r.Context(), brokerage.PolicyID(id), req.input(), ActorFrom(r.Context()))
	h.writeResult(w, r, http.StatusOK, res, err)
}

// =============================================================================
// AUDIT AND LOOKUP HANDLERS
// =============================================================================

// ListAudit returns the audit log, newest first.
// GET /api/audits
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Services.Audit.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListLookup returns the values of one dimension.
// GET /api/lookups/{kind}
func (h *Handler) ListLookup(w http.ResponseWriter, r *http.Request) {
	d, ok := brokerage.ParseDimension(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown lookup", nil)
		return
	}
	rows, err := h.Services.Lookups.List(r.Context(), d)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Health reports whether the database answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
		return
	}
	today, err := h.Services.Lookups.Today(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"db_today": today.Format(brokerage.DateLayout),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// writeResult answers a mutation. An audit warning is logged here as well
// so the request id ties it to the access log line.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, status int, res brokerage.WriteResult, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.HasWarning() {
		h.log(r).WithField("entity_id", res.ID).Warn("write committed with audit warning")
	}
	writeJSON(w, status, toWriteResponse(res))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *brokerage.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Fields: verr.Fields})
	case brokerage.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, brokerage.ErrResolution):
		h.log(r).WithError(err).Warn("reference resolution failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		h.log(r).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
