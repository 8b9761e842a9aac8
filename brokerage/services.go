package brokerage

import "github.com/sirupsen/logrus"

// Services bundles the write-path services over one store.
type Services struct {
	Policies    *PolicyService
	Claims      *ClaimService
	Commissions *CommissionService
	Plates      *PlateRegistry
	Lookups     *LookupService
	Audit       *AuditLog
}

// NewServices wires every service to store. observer may be nil.
func NewServices(store Store, logger logrus.FieldLogger, observer Observer) *Services {
	audit := NewAuditLog(store, logger, observer)
	return &Services{
		Policies:    NewPolicyService(store, audit, observer),
		Claims:      NewClaimService(store, audit, observer),
		Commissions: NewCommissionService(store, audit, observer),
		Plates:      NewPlateRegistry(store, audit, observer),
		Lookups:     NewLookupService(store),
		Audit:       audit,
	}
}
