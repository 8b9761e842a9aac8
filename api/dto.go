/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Read projections from
  the brokerage package already carry json tags and are returned as-is;
  this file holds what the browser sends and the write/error envelopes.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

LOOSE VALUES:
  The back-office forms post amounts and ids sometimes as JSON strings and
  sometimes as numbers. Loose accepts both (and null) and hands the
  service a string, which the service parses leniently.

VALIDATION:
  Field rules live on the brokerage input types and run in the services.
  Handlers only reject bodies that are not JSON.

SEE ALSO:
  - handlers.go: Uses these types
  - brokerage/types.go: Input and view types
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/warp/brokerdesk/brokerage"
)

// =============================================================================
// LOOSE SCALARS
// =============================================================================

// Loose is a JSON scalar accepted as string, number or null.
type Loose string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Loose) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Loose(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*l = Loose(n.String())
	}
	return nil
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PolicyRequest is the body of POST /api/policy and PUT /api/policy/{id}.
type PolicyRequest struct {
	PolicyNumber Loose    `json:"policy_number"`
	InsuredName  string   `json:"insured_name"`
	InsurerName  string   `json:"insurer_name"`
	PolicyType   string   `json:"policy_type"`
	ExpireDate   string   `json:"expire_date"`
	Premium      Loose    `json:"premium"`
	Commission   Loose    `json:"commission"`
	Plates       []string `json:"plates"`
}

func (r PolicyRequest) input() brokerage.PolicyInput {
	return brokerage.PolicyInput{
		PolicyNumber: string(r.PolicyNumber),
		InsuredName:  r.InsuredName,
		InsurerName:  r.InsurerName,
		PolicyType:   r.PolicyType,
		ExpireDate:   r.ExpireDate,
		Premium:      string(r.Premium),
		Commission:   string(r.Commission),
		Plates:       r.Plates,
	}
}

// createPolicyFields carries the fields POST /api/policy requires on top of
// the service's own rules.
type createPolicyFields struct {
	InsuredName string `json:"insured_name" validate:"required"`
}

// ClaimRequest is the body of POST /api/claim.
type ClaimRequest struct {
	InsuredName     string `json:"insured_name"`
	PolicyNumber    Loose  `json:"policy_number"`
	PlateNumber     string `json:"plate_number"`
	AccidentDate    string `json:"accident_date"`
	AccidentTime    string `json:"accident_time"`
	AccidentPlace   string `json:"accident_place"`
	AccidentReason  string `json:"accident_reason"`
	StatusName      string `json:"status_name"`
	SubjectTypeName string `json:"subject_type_name"`
	SubjectDetail   string `json:"subject_detail"`
}

func (r ClaimRequest) input() brokerage.ClaimInput {
	return brokerage.ClaimInput{
		InsuredName:     r.InsuredName,
		PolicyNumber:    string(r.PolicyNumber),
		PlateNumber:     r.PlateNumber,
		AccidentDate:    r.AccidentDate,
		AccidentTime:    r.AccidentTime,
		AccidentPlace:   r.AccidentPlace,
		AccidentReason:  r.AccidentReason,
		StatusName:      r.StatusName,
		SubjectTypeName: r.SubjectTypeName,
		SubjectDetail:   r.SubjectDetail,
	}
}

// CommissionStatusRequest is the body of PUT /api/commission/{policyId}/status.
type CommissionStatusRequest struct {
	Status brokerage.CommissionStatus `json:"commission_status"`
}

// CommissionDetailsRequest is the body of PUT /api/commission/{policyId}.
type CommissionDetailsRequest struct {
	PolicyNumber    Loose  `json:"policy_number"`
	InsuredName     string `json:"insured_name"`
	InsurerName     string `json:"insurer_name"`
	Premium         Loose  `json:"premium"`
	TotalCommission Loose  `json:"total_commission"`
}

func (r CommissionDetailsRequest) input() brokerage.CommissionDetails {
	return brokerage.CommissionDetails{
		PolicyNumber:    string(r.PolicyNumber),
		InsuredName:     r.InsuredName,
		InsurerName:     r.InsurerName,
		Premium:         string(r.Premium),
		TotalCommission: string(r.TotalCommission),
	}
}

// CommissionPaymentRequest is the body of POST /api/commission/add.
type CommissionPaymentRequest struct {
	PolicyID      Loose  `json:"policy_id"`
	PaymentAmount Loose  `json:"payment_amount"`
	PaidBy        string `json:"paid_by"`
}

// PlatesRequest is the body of POST /api/policy/{id}/plates.
type PlatesRequest struct {
	Plates []string `json:"plates"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// WriteResponse is returned by every successful mutation. Warning is set
// when the change committed but its audit entry could not be written.
type WriteResponse struct {
	ID      int64  `json:"id"`
	Warning string `json:"warning,omitempty"`
}

func toWriteResponse(res brokerage.WriteResult) WriteResponse {
	resp := WriteResponse{ID: res.ID}
	if res.HasWarning() {
		resp.Warning = res.Warning.Error()
	}
	return resp
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
