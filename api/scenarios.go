/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  brokerage data for demos and frontend development. Every scenario writes
  through the services, so dimension rows, plates and audit entries are
  produced exactly as they would be by staff.

AVAILABLE SCENARIOS:
  motor-book:     Motor and fire policies, some expiring within the window
  claims-desk:    Claims against known policies, unknown policy numbers and
                  unregistered plates
  commissions:    Policies with partial and full commission payments

HOW SCENARIOS WORK:
  1. Reset database (clear all data, employees are kept)
  2. Register demo employees
  3. Create records through the services as one of those employees

NOTE:
  Scenarios reset the database. Routes are only mounted when
  ENABLE_SCENARIOS is set.

SEE ALSO:
  - handlers.go: Handler struct
  - server.go: RouterOptions.EnableScenarios
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/brokerdesk/brokerage"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "motor-book",
		Name:        "Motor Book",
		Description: "Motor and fire policies with plates, several expiring this month",
	},
	{
		ID:          "claims-desk",
		Name:        "Claims Desk",
		Description: "Claims on known policies, unknown policy numbers and unregistered plates",
	},
	{
		ID:          "commissions",
		Name:        "Commissions",
		Description: "Partially and fully paid commissions",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context, brokerage.Actor) error{
	"motor-book":  (*Handler).loadMotorBookScenario,
	"claims-desk": (*Handler).loadClaimsDeskScenario,
	"commissions": (*Handler).loadCommissionsScenario,
}

// demo employees, by id
var demoEmployees = map[int64]string{
	1: "Aye",
	2: "Min",
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.resetData(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	for id, name := range demoEmployees {
		if err := h.Store.SaveEmployee(ctx, id, name); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create employees", err)
			return
		}
	}

	if err := load(h, ctx, brokerage.EmployeeActor(1)); err != nil {
		h.log(r).WithError(err).WithField("scenario", req.ScenarioID).Error("scenario load failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), nil)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase deletes all brokerage data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.resetData(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) resetData(ctx context.Context) error {
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return h.Store.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// inDays formats the database date today+n for expiry fields.
func (h *Handler) inDays(ctx context.Context, n int) (string, error) {
	today, err := h.Services.Lookups.Today(ctx)
	if err != nil {
		return "", err
	}
	return today.AddDate(0, 0, n).Format(brokerage.DateLayout), nil
}

func (h *Handler) createPolicies(ctx context.Context, actor brokerage.Actor, inputs []brokerage.PolicyInput, expiryDays []int) ([]brokerage.PolicyID, error) {
	ids := make([]brokerage.PolicyID, 0, len(inputs))
	for i, in := range inputs {
		if i < len(expiryDays) {
			d, err := h.inDays(ctx, expiryDays[i])
			if err != nil {
				return nil, err
			}
			in.ExpireDate = d
		}
		res, err := h.Services.Policies.Create(ctx, in, actor)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", in.PolicyNumber, err)
		}
		ids = append(ids, brokerage.PolicyID(res.ID))
	}
	return ids, nil
}

func (h *Handler) loadMotorBookScenario(ctx context.Context, actor brokerage.Actor) error {
	_, err := h.createPolicies(ctx, actor, []brokerage.PolicyInput{
		{PolicyNumber: "MC-2401", InsuredName: "Golden Star Trading", InsurerName: "AYA", PolicyType: "Motor", Premium: "450000", Commission: "45000", Plates: []string{"YGN-1A-2345", "YGN-2B-7788"}},
		{PolicyNumber: "MC-2402", InsuredName: "Shwe Taung Logistics", InsurerName: "GGI", PolicyType: "Motor", Premium: "1200000", Commission: "120000", Plates: []string{"MDY-5C-1100"}},
		{PolicyNumber: "FI-2403", InsuredName: "Golden Star Trading", InsurerName: "AYA", PolicyType: "Fire", Premium: "300000", Commission: "45000"},
		{PolicyNumber: "MC-2404", InsuredName: "Daw Khin Khin", InsurerName: "Capital Life", PolicyType: "Motor", Premium: "180000", Commission: "18000", Plates: []string{"YGN-9K-4321"}},
	}, []int{3, 14, 29, 90})
	return err
}

func (h *Handler) loadClaimsDeskScenario(ctx context.Context, actor brokerage.Actor) error {
	if err := h.loadMotorBookScenario(ctx, actor); err != nil {
		return err
	}
	accident := time.Now().AddDate(0, 0, -5).Format(brokerage.DateLayout)
	claims := []brokerage.ClaimInput{
		{InsuredName: "Golden Star Trading", PolicyNumber: "MC-2401", PlateNumber: "YGN-1A-2345", AccidentDate: accident, AccidentTime: "08:30", AccidentPlace: "Pyay Road", AccidentReason: "Rear-end collision"},
		{InsuredName: "Shwe Taung Logistics", PolicyNumber: "MC-2402", PlateNumber: "MDY-5C-9999", AccidentDate: accident, AccidentPlace: "Mandalay-Lashio highway", AccidentReason: "Skid on wet road", StatusName: "Under Review"},
		{InsuredName: "U Tun Lin", PolicyNumber: "MC-9001", PlateNumber: "YGN-3F-0001", AccidentReason: "Windscreen damage", SubjectTypeName: "Third Party", SubjectDetail: "Parked taxi"},
	}
	for _, c := range claims {
		if _, err := h.Services.Claims.Create(ctx, c, actor); err != nil {
			return fmt.Errorf("claim for %s: %w", c.InsuredName, err)
		}
	}
	return nil
}

func (h *Handler) loadCommissionsScenario(ctx context.Context, actor brokerage.Actor) error {
	ids, err := h.createPolicies(ctx, actor, []brokerage.PolicyInput{
		{PolicyNumber: "MC-2501", InsuredName: "Golden Star Trading", InsurerName: "AYA", PolicyType: "Motor", Premium: "450000", Commission: "45000"},
		{PolicyNumber: "MC-2502", InsuredName: "Shwe Taung Logistics", InsurerName: "GGI", PolicyType: "Motor", Premium: "1200000", Commission: "120000"},
		{PolicyNumber: "LI-2503", InsuredName: "Daw Khin Khin", InsurerName: "Capital Life", PolicyType: "Life", Premium: "600000"},
	}, []int{60, 120, 365})
	if err != nil {
		return err
	}

	payments := []struct {
		policy brokerage.PolicyID
		amount int64
		by     string
	}{
		{ids[0], 45000, "AYA Finance"},
		{ids[1], 50000, "GGI Finance"},
	}
	for _, p := range payments {
		if _, err := h.Services.Commissions.AddPayment(ctx, p.policy, decimal.NewFromInt(p.amount), p.by, actor); err != nil {
			return fmt.Errorf("payment for policy %d: %w", p.policy, err)
		}
	}
	_, err = h.Services.Commissions.UpdateStatus(ctx, ids[0], brokerage.CommissionPaid, actor)
	return err
}
