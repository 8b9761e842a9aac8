/*
audit.go - Append-only audit trail of who changed what

PURPOSE:
  Every successful create/update/delete of a primary record produces one
  AuditEntry: actor, action, entity kind, entity id, description.

TWO-PHASE WRITE:
  1. Business transaction commits (policy/claim/commission row)
  2. Audit entry is appended

  The append happens after commit because it records data produced by the
  commit (the new row id). If phase 2 fails, the business change stands and
  the failure is reported through WriteResult.Warning, logged at error
  level, and counted by the Observer. It is never folded into the
  operation's error.

DISPLAY:
  List returns newest first. A nil actor renders as "System".
*/
package brokerage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditAction is the kind of change recorded.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditEntity names the kind of record an entry refers to.
type AuditEntity string

const (
	EntityPolicy            AuditEntity = "Policy"
	EntityClaim             AuditEntity = "Claim"
	EntityCommission        AuditEntity = "Commission"
	EntityCommissionPayment AuditEntity = "CommissionPayment"
)

// SystemActorName is shown for entries without an employee.
const SystemActorName = "System"

// AuditEntry records who did what when.
type AuditEntry struct {
	ID          int64       `json:"log_id"`
	EmployeeID  *int64      `json:"employee_id"`
	ActorName   string      `json:"employee_name"`
	Action      AuditAction `json:"action"`
	Entity      AuditEntity `json:"entity"`
	EntityID    int64       `json:"entity_id"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}

// WriteResult is the outcome of a committed mutation. Warning is set when
// the change committed but its audit entry could not be written.
type WriteResult struct {
	ID      int64
	Warning *AuditWriteError
}

// HasWarning reports whether the audit phase failed.
func (r WriteResult) HasWarning() bool {
	return r.Warning != nil
}

// Observer receives write-path events for metrics.
type Observer interface {
	ObserveWrite(entity AuditEntity, action AuditAction, start time.Time, err error)
	AuditWriteFailed(entity AuditEntity, action AuditAction)
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(AuditEntity, AuditAction, time.Time, error) {}
func (nopObserver) AuditWriteFailed(AuditEntity, AuditAction)               {}

// AuditLog appends and lists audit entries.
type AuditLog struct {
	store    AuditStore
	logger   logrus.FieldLogger
	observer Observer
}

// NewAuditLog creates an audit log over store. A nil observer is allowed.
func NewAuditLog(store AuditStore, logger logrus.FieldLogger, observer Observer) *AuditLog {
	if observer == nil {
		observer = nopObserver{}
	}
	return &AuditLog{store: store, logger: logger, observer: observer}
}

// Append writes one entry. The returned error, if any, is an *AuditWriteError.
func (a *AuditLog) Append(ctx context.Context, actor Actor, action AuditAction, entity AuditEntity, entityID int64, description string) error {
	if w := a.append(ctx, actor, action, entity, entityID, description); w != nil {
		return w
	}
	return nil
}

// List returns all entries, newest first.
func (a *AuditLog) List(ctx context.Context) ([]AuditEntry, error) {
	entries, err := a.store.ListAudit(ctx)
	if err != nil {
		return nil, storageErr("list audit log", err)
	}
	for i := range entries {
		if entries[i].EmployeeID == nil {
			entries[i].ActorName = SystemActorName
		}
	}
	return entries, nil
}

func (a *AuditLog) append(ctx context.Context, actor Actor, action AuditAction, entity AuditEntity, entityID int64, description string) *AuditWriteError {
	entry := AuditEntry{
		EmployeeID:  actor.EmployeeID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		Description: description,
	}
	// The business change is already committed; a caller that went away
	// must not cost it its audit entry.
	if _, err := a.store.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		w := &AuditWriteError{Action: action, Entity: entity, EntityID: entityID, Err: err}
		a.observer.AuditWriteFailed(entity, action)
		a.logger.WithFields(logrus.Fields{
			"module":    "audit",
			"action":    action,
			"entity":    entity,
			"entity_id": entityID,
		}).WithError(err).Error("committed change has no audit entry")
		return w
	}
	return nil
}

// record finishes a committed mutation: appends the audit entry and builds
// the WriteResult.
func (a *AuditLog) record(ctx context.Context, actor Actor, action AuditAction, entity AuditEntity, entityID int64, description string) WriteResult {
	return WriteResult{
		ID:      entityID,
		Warning: a.append(ctx, actor, action, entity, entityID, description),
	}
}
