// Package policy holds the per-operation authorization rules. Authorize is a
// pure function: it is re-evaluated on every call and nothing here caches a
// decision.
package policy

import "github.com/JeffCSZ/vms/internal/model"

// Operation names an action an authenticated actor can attempt.
type Operation int

const (
	// OpCreateRequest creates a visitor request.
	OpCreateRequest Operation = iota
	// OpListOwnRequests lists the actor's own requests.
	OpListOwnRequests
	// OpListAllRequests lists every request, unfiltered.
	OpListAllRequests
	// OpReadRequest reads a single request by internal ID.
	OpReadRequest
	// OpReadByCode resolves a scanned public code. The code itself is the
	// presented credential, so there is no ownership filter on this path.
	OpReadByCode
	// OpUpdateRequest replaces the editable fields of a request.
	OpUpdateRequest
	// OpDeleteRequest hard-deletes a request.
	OpDeleteRequest
)

// DenyReason distinguishes "your role can never do this" from "you don't own
// this particular record".
type DenyReason string

const (
	DenyWrongRole DenyReason = "wrong_role"
	DenyNotOwner  DenyReason = "not_owner"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason // set only when denied
}

// Allow is the permissive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is a refusal carrying its structured reason.
func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Authorize decides whether the actor may perform op. record is required for
// the operations that target an existing request (update, delete) and
// ignored otherwise.
func Authorize(role model.Role, actorID string, op Operation, record *model.VisitorRequest) Decision {
	switch op {
	case OpCreateRequest, OpListOwnRequests:
		if role != model.RoleIssuer {
			return Deny(DenyWrongRole)
		}
		return Allow()

	case OpListAllRequests:
		if role != model.RoleVerifier {
			return Deny(DenyWrongRole)
		}
		return Allow()

	case OpReadRequest, OpReadByCode:
		// Any authenticated actor.
		return Allow()

	case OpUpdateRequest, OpDeleteRequest:
		if role != model.RoleIssuer {
			return Deny(DenyWrongRole)
		}
		if record == nil || record.OwnerID != actorID {
			return Deny(DenyNotOwner)
		}
		return Allow()
	}
	return Deny(DenyWrongRole)
}
