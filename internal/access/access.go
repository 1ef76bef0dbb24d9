// Package access is the role model: which capability each role holds and
// whether a given actor may see or change a given complaint.
package access

import (
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"
)

// Capability is a single permitted action.
type Capability string

const (
	ViewOwn           Capability = "complaint:view_own"
	CreateComplaint   Capability = "complaint:create"
	AttachOwnEvidence Capability = "evidence:attach_own"
	SubmitFeedback    Capability = "feedback:submit"

	ViewAssigned   Capability = "complaint:view_assigned"
	UpdateAssigned Capability = "complaint:update_assigned"

	ViewAll       Capability = "complaint:view_all"
	Assign        Capability = "complaint:assign"
	UpdateAny     Capability = "complaint:update_any"
	Categorize    Capability = "complaint:categorize"
	ManageUsers   Capability = "users:manage"
	ViewAnalytics Capability = "analytics:view"

	CreateSuperAdmin Capability = "users:create_super_admin"
)

var (
	userCaps  = []Capability{ViewOwn, CreateComplaint, AttachOwnEvidence, SubmitFeedback}
	staffCaps = append(append([]Capability{}, userCaps...), ViewAssigned, UpdateAssigned)
	adminCaps = append(append([]Capability{}, staffCaps...),
		ViewAll, Assign, UpdateAny, Categorize, ManageUsers, ViewAnalytics)
	superCaps = append(append([]Capability{}, adminCaps...), CreateSuperAdmin)
)

// table is the single source of truth for role rights. Each role includes
// every capability of the role below it.
var table = map[models.Role]map[Capability]bool{
	models.RoleUser:       set(userCaps),
	models.RoleStaff:      set(staffCaps),
	models.RoleAdmin:      set(adminCaps),
	models.RoleSuperAdmin: set(superCaps),
}

func set(caps []Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Can reports whether role holds capability c. Unknown roles hold nothing.
func Can(role models.Role, c Capability) bool {
	return table[role][c]
}

// Actor is the authenticated caller as resolved by the identity provider.
// The role always comes from storage, never from the client.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorOf builds an Actor from a stored user.
func ActorOf(u models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Require fails with an authorization error when the actor lacks c.
func Require(a Actor, c Capability) error {
	if !Can(a.Role, c) {
		return apperr.Authorization("missing capability " + string(c))
	}
	return nil
}

// CanView reports whether the actor may read the complaint, its timeline,
// its evidence and its feedback.
func CanView(a Actor, c *models.Complaint) bool {
	switch {
	case Can(a.Role, ViewAll):
		return true
	case Can(a.Role, ViewAssigned) && c.IsAssignedTo(a.ID):
		return true
	default:
		return Can(a.Role, ViewOwn) && c.CreatorID == a.ID
	}
}

// CanEdit reports whether the actor may change status, priority or
// escalation of the complaint: the assigned staff member or any admin.
func CanEdit(a Actor, c *models.Complaint) bool {
	if Can(a.Role, UpdateAny) {
		return true
	}
	return Can(a.Role, UpdateAssigned) && c.IsAssignedTo(a.ID)
}

// CanAttachEvidence is CanEdit widened to the complaint's creator.
func CanAttachEvidence(a Actor, c *models.Complaint) bool {
	if Can(a.Role, AttachOwnEvidence) && c.CreatorID == a.ID {
		return true
	}
	return CanEdit(a, c)
}

// CanCreateRole reports whether the actor may create an account with the
// target role. Admins create staff and admins; only super admins create
// super admins. Plain user accounts come from self-registration.
func CanCreateRole(a Actor, target models.Role) bool {
	switch target {
	case models.RoleStaff, models.RoleAdmin:
		return Can(a.Role, ManageUsers)
	case models.RoleSuperAdmin:
		return Can(a.Role, CreateSuperAdmin)
	case models.RoleUser:
		return Can(a.Role, ManageUsers)
	default:
		return false
	}
}
