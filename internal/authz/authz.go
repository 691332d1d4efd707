// Package authz is the access control decision point for CRM records.
// Every function here is a pure decision over the principal and the record's
// ownership; nothing is cached between calls.
package authz

import "github.com/google/uuid"

// Roles understood by the decision point. A principal may hold both; manager
// supersedes representative wherever both would apply.
const (
	RoleRepresentative = "representative"
	RoleManager        = "manager"
)

// RecordKind identifies the category of record a decision applies to.
type RecordKind string

const (
	KindContact  RecordKind = "contact"
	KindCompany  RecordKind = "company"
	KindDeal     RecordKind = "deal"
	KindActivity RecordKind = "activity"
)

// MetricsScope is the breadth of metrics a principal asks to see.
type MetricsScope string

const (
	ScopePersonal MetricsScope = "personal"
	ScopeAll      MetricsScope = "all"
)

// Principal is the authenticated caller as seen by the decision point.
type Principal struct {
	ID    uuid.UUID
	Roles []string
}

// IsManager reports whether the principal holds the manager role.
func (p Principal) IsManager() bool {
	return p.hasRole(RoleManager)
}

// IsRepresentative reports whether the principal holds the representative role.
func (p Principal) IsRepresentative() bool {
	return p.hasRole(RoleRepresentative)
}

func (p Principal) hasRole(target string) bool {
	for _, role := range p.Roles {
		if role == target {
			return true
		}
	}
	return false
}

// CanRead decides whether the principal may read a record with the given
// owner. Company records are globally readable; everything else is scoped to
// the owning representative unless the principal is a manager.
func CanRead(p Principal, ownerID *uuid.UUID, kind RecordKind) bool {
	if p.IsManager() {
		return true
	}
	if !p.IsRepresentative() {
		return false
	}
	if kind == KindCompany {
		return true
	}
	return ownerID != nil && *ownerID == p.ID
}

// CanWrite decides whether the principal may write a record with the given
// owner. A nil owner means the record is being created by the principal.
func CanWrite(p Principal, ownerID *uuid.UUID) bool {
	if p.IsManager() {
		return true
	}
	if !p.IsRepresentative() {
		return false
	}
	if ownerID == nil {
		return true
	}
	return *ownerID == p.ID
}

// CanDelete gates every delete operation. The gate is deliberately coarse:
// it takes no ownership parameter, so a representative passes for records it
// does not own. This mirrors the upstream policy placeholder; tightening it
// to ownership-scoped deletes is a product decision, not a bug fix.
func CanDelete(p Principal) bool {
	return p.IsManager() || p.IsRepresentative()
}

// CanAccessMetrics decides whether the principal may view metrics at the
// requested scope.
func CanAccessMetrics(p Principal, scope MetricsScope) bool {
	if p.IsManager() {
		return true
	}
	return p.IsRepresentative() && scope == ScopePersonal
}

// Filter is an equality predicate a repository applies to list queries.
type Filter struct {
	Field string
	Value uuid.UUID
}

// RecordFilter returns the list filter for the principal, or nil when the
// principal may list without restriction. The same policy that drives
// CanRead drives the bulk path, so single-record and list decisions cannot
// drift apart.
func RecordFilter(p Principal, kind RecordKind, ownerField string) *Filter {
	if p.IsManager() {
		return nil
	}
	if kind == KindCompany {
		return nil
	}
	return &Filter{Field: ownerField, Value: p.ID}
}
