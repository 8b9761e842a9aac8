/*
types.go - Core domain types for the brokerage back office

PURPOSE:
  Defines the entities the write path mutates (Policy, Claim, Vehicle,
  CommissionPayment), the dimension references they point at, the loosely
  structured inputs callers hand in, and the read-side views.

KEY CONCEPTS:
  Primary records:  Policy, Claim
  Dimensions:       insured party, insurer, policy type, claim status,
                    claim subject type (see dimension.go)
  Inputs:           *Input types carry names, not foreign keys
  Records:          *Record types carry resolved ids, ready for the store
  Views:            *View types are read projections with joined names

MONEY:
  Premium, commission and payments use decimal.Decimal. A missing or
  unparsable amount is stored as NULL (decimal.NullDecimal), never as zero.

DATES:
  Calendar dates (expiry, accident date) travel as time.Time truncated to
  the day in UTC, and are written to the store as YYYY-MM-DD.

SEE ALSO:
  - store.go: Persistence interfaces using these types
  - policy.go, claim.go, commission.go: Services
*/
package brokerage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// PolicyID identifies a policy row.
type PolicyID int64

// ClaimID identifies a claim row.
type ClaimID int64

// =============================================================================
// ACTOR
// =============================================================================

// Actor identifies who performs a mutation. A nil EmployeeID means the change
// was initiated by the system (imports, scenarios, scheduled jobs).
type Actor struct {
	EmployeeID *int64
	Role       int
}

// SystemActor returns the actor used for system-initiated changes.
func SystemActor() Actor {
	return Actor{}
}

// EmployeeActor returns an actor for the given employee id.
func EmployeeActor(id int64) Actor {
	return Actor{EmployeeID: &id}
}

// IsSystem reports whether the actor is the system.
func (a Actor) IsSystem() bool {
	return a.EmployeeID == nil
}

// =============================================================================
// COMMISSION STATUS
// =============================================================================

// CommissionStatus is the settlement state of a policy's commission.
type CommissionStatus string

const (
	CommissionPaid   CommissionStatus = "Paid"
	CommissionUnpaid CommissionStatus = "Unpaid"
)

// Valid reports whether s is one of the known statuses.
func (s CommissionStatus) Valid() bool {
	return s == CommissionPaid || s == CommissionUnpaid
}

// =============================================================================
// POLICY
// =============================================================================

// PolicyInput is the loosely structured payload for policy create/update.
// Names are resolved to dimension rows; amounts are parsed leniently.
type PolicyInput struct {
	PolicyNumber string   `json:"policy_number" validate:"max=100"`
	InsuredName  string   `json:"insured_name" validate:"max=255"`
	InsurerName  string   `json:"insurer_name" validate:"max=255"`
	PolicyType   string   `json:"policy_type" validate:"max=255"`
	ExpireDate   string   `json:"expire_date" validate:"omitempty,datetime=2006-01-02"`
	Premium      string   `json:"premium"`
	Commission   string   `json:"commission"`
	Plates       []string `json:"plates" validate:"dive,max=32"`
}

// PolicyRecord is a policy row with all references resolved.
type PolicyRecord struct {
	ID           PolicyID
	PolicyNumber *string
	InsuredID    *int64
	InsurerID    *int64
	PolicyTypeID *int64
	ExpireDate   *time.Time
	Premium      decimal.NullDecimal
	Commission   decimal.NullDecimal
	Provisional  bool
}

// PolicyView is the list projection of a policy.
type PolicyView struct {
	ID               PolicyID            `json:"policy_id"`
	PolicyNumber     string              `json:"policy_number"`
	InsuredName      string              `json:"insured_name"`
	InsurerName      string              `json:"insurer_name"`
	PolicyType       string              `json:"policy_type"`
	ExpireDate       *time.Time          `json:"expire_date"`
	Premium          decimal.NullDecimal `json:"premium"`
	Commission       decimal.NullDecimal `json:"commission"`
	CommissionStatus CommissionStatus    `json:"commission_status"`
	Provisional      bool                `json:"provisional"`
	Plates           []string            `json:"plates"`
}

// ExpiringPolicyView is a row of the expiry report.
type ExpiringPolicyView struct {
	ID            PolicyID            `json:"policy_id"`
	PolicyNumber  string              `json:"policy_number"`
	InsuredName   string              `json:"insured_name"`
	InsurerName   string              `json:"insurer_name"`
	PolicyType    string              `json:"policy_type"`
	ExpireDate    time.Time           `json:"expire_date"`
	DaysRemaining int                 `json:"days_remaining"`
	Premium       decimal.NullDecimal `json:"premium"`
	Commission    decimal.NullDecimal `json:"commission"`
}

// =============================================================================
// VEHICLE
// =============================================================================

// VehicleRecord is a plate owned by a policy, an insured party, or both.
type VehicleRecord struct {
	ID          int64
	InsuredID   *int64
	PolicyID    *PolicyID
	PlateNumber string
}

// =============================================================================
// CLAIM
// =============================================================================

// Defaults applied when a claim is created without a status or subject type.
const (
	DefaultClaimStatus      = "Open"
	DefaultClaimSubjectType = "Vehicle"
)

// ClaimInput is the payload for claim creation.
type ClaimInput struct {
	InsuredName     string `json:"insured_name" validate:"max=255"`
	PolicyNumber    string `json:"policy_number" validate:"max=100"`
	PlateNumber     string `json:"plate_number" validate:"max=32"`
	AccidentDate    string `json:"accident_date" validate:"omitempty,datetime=2006-01-02"`
	AccidentTime    string `json:"accident_time" validate:"max=16"`
	AccidentPlace   string `json:"accident_place" validate:"max=255"`
	AccidentReason  string `json:"accident_reason"`
	StatusName      string `json:"status_name" validate:"max=100"`
	SubjectTypeName string `json:"subject_type_name" validate:"max=100"`
	SubjectDetail   string `json:"subject_detail"`
}

// ClaimUpdate carries the fields to change on an existing claim. Nil fields
// are left untouched; a pointer to "" clears the field.
type ClaimUpdate struct {
	InsuredName     *string `json:"insured_name" validate:"omitempty,max=255"`
	PolicyNumber    *string `json:"policy_number" validate:"omitempty,max=100"`
	PlateNumber     *string `json:"plate_number" validate:"omitempty,max=32"`
	AccidentDate    *string `json:"accident_date" validate:"omitempty,datetime=2006-01-02"`
	AccidentTime    *string `json:"accident_time" validate:"omitempty,max=16"`
	AccidentPlace   *string `json:"accident_place" validate:"omitempty,max=255"`
	AccidentReason  *string `json:"accident_reason"`
	StatusName      *string `json:"status_name" validate:"omitempty,max=100"`
	SubjectTypeName *string `json:"subject_type_name" validate:"omitempty,max=100"`
	SubjectDetail   *string `json:"subject_detail"`
}

// ClaimRecord is a claim row with all references resolved.
type ClaimRecord struct {
	ID             ClaimID
	PolicyID       *PolicyID
	InsuredID      *int64
	VehicleID      *int64
	AccidentDate   *time.Time
	AccidentTime   *string
	AccidentPlace  *string
	AccidentReason *string
	StatusID       *int64
	SubjectTypeID  *int64
	SubjectDetail  *string
}

// ClaimView is the list projection of a claim.
type ClaimView struct {
	ID              ClaimID    `json:"claim_id"`
	AccidentDate    *time.Time `json:"accident_date"`
	AccidentTime    string     `json:"accident_time"`
	AccidentPlace   string     `json:"accident_place"`
	AccidentReason  string     `json:"accident_reason"`
	SubjectDetail   string     `json:"subject_detail"`
	InsuredID       *int64     `json:"insured_id"`
	InsuredName     string     `json:"insured_name"`
	PolicyID        *PolicyID  `json:"policy_id"`
	PolicyNumber    string     `json:"policy_number"`
	Provisional     bool       `json:"provisional_policy"`
	PlateNumber     string     `json:"plate_number"`
	StatusName      string     `json:"status_name"`
	SubjectTypeName string     `json:"subject_type_name"`
}

// =============================================================================
// COMMISSION
// =============================================================================

// CommissionView is a row of the commission status list.
type CommissionView struct {
	PolicyID        PolicyID            `json:"policy_id"`
	PolicyNumber    string              `json:"policy_number"`
	InsuredName     string              `json:"insured_name"`
	InsurerName     string              `json:"insurer_name"`
	Premium         decimal.NullDecimal `json:"premium"`
	TotalCommission decimal.NullDecimal `json:"total_commission"`
	AmountPaid      decimal.Decimal     `json:"amount_paid"`
	Status          CommissionStatus    `json:"commission_status"`
}

// CommissionDetails is the inline-edit payload of the commission list.
type CommissionDetails struct {
	PolicyNumber    string `json:"policy_number" validate:"max=100"`
	InsuredName     string `json:"insured_name" validate:"max=255"`
	InsurerName     string `json:"insurer_name" validate:"max=255"`
	Premium         string `json:"premium"`
	TotalCommission string `json:"total_commission"`
}

// CommissionPayment is a recorded commission receipt against a policy.
type CommissionPayment struct {
	ID       int64           `json:"payment_id"`
	PolicyID PolicyID        `json:"policy_id"`
	Amount   decimal.Decimal `json:"payment_amount"`
	PaidBy   string          `json:"paid_by"`
	PaidAt   time.Time       `json:"paid_at"`
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseAmount converts a loosely formatted amount to a decimal. Blank or
// unparsable input yields an invalid (NULL) amount rather than an error.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseDate parses a YYYY-MM-DD date. Blank input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
