package service

import (
	"context"
	"strings"

	"waterdash/internal/model"
)

// Feature permissions gated on role level. Names are stable strings so
// they can appear in audit details and API responses.
const (
	PermViewDashboard   = "view_dashboard"
	PermExportData      = "export_data"
	PermGenerateReports = "generate_reports"
	PermUseAssistant    = "use_assistant"
	PermManageUsers     = "manage_users"
	PermViewAuditLog    = "view_audit_log"
	PermAdminPanel      = "admin_panel"
)

var permissionFloor = map[string]model.Role{
	PermViewDashboard:   model.RoleViewer,
	PermExportData:      model.RoleAnalyst,
	PermUseAssistant:    model.RoleAnalyst,
	PermGenerateReports: model.RoleCountryAdmin,
	PermManageUsers:     model.RoleCountryAdmin,
	PermAdminPanel:      model.RoleCountryAdmin,
	PermViewAuditLog:    model.RoleMasterUser,
}

// HasPermission reports whether the user's role meets the permission's
// minimum level. Unknown permissions are denied.
func HasPermission(u model.User, permission string) bool {
	floor, ok := permissionFloor[permission]
	if !ok {
		return false
	}
	return u.Active && u.Role.Level() >= floor.Level()
}

// CanManage reports whether actor may administer target: strictly higher
// privilege, and for scoped admins only inside their own country. Master
// accounts are never managed by anyone.
func CanManage(actor, target model.User) bool {
	if !actor.Active {
		return false
	}
	if target.Role == model.RoleMasterUser {
		return false
	}
	if actor.Role.Level() <= target.Role.Level() {
		return false
	}
	if actor.Unscoped() {
		return true
	}
	return strings.EqualFold(actor.AssignedCountry, target.AssignedCountry)
}

// CanViewCountry reports whether the user may see data for the country.
func CanViewCountry(u model.User, country string) bool {
	if !u.Active {
		return false
	}
	if u.Unscoped() {
		return true
	}
	return strings.EqualFold(u.AssignedCountry, country)
}

// RBACService answers permission questions and audits every denial.
type RBACService struct {
	audit *AuditService
}

func NewRBACService(audit *AuditService) *RBACService {
	return &RBACService{audit: audit}
}

// Require returns ErrPermissionDenied and records it when the user lacks
// the permission.
func (s *RBACService) Require(ctx context.Context, u model.User, permission string) error {
	if HasPermission(u, permission) {
		return nil
	}
	s.audit.Record(ctx, model.AuditPermissionDenied, model.OutcomeDenied, u.ID, permission,
		map[string]string{"role": string(u.Role)})
	return model.ErrPermissionDenied
}

// RequireManage returns ErrPermissionDenied and records it when actor
// may not administer target.
func (s *RBACService) RequireManage(ctx context.Context, actor, target model.User) error {
	if CanManage(actor, target) {
		return nil
	}
	s.audit.Record(ctx, model.AuditPermissionDenied, model.OutcomeDenied, actor.ID, target.ID,
		map[string]string{"permission": PermManageUsers, "target_username": target.Username})
	return model.ErrPermissionDenied
}

// ManagedUsers filters the listing down to accounts the actor may
// administer.
func ManagedUsers(actor model.User, users []model.User) []model.User {
	managed := make([]model.User, 0, len(users))
	for _, u := range users {
		if CanManage(actor, u) {
			managed = append(managed, u)
		}
	}
	return managed
}

// Permissions lists the named permissions the user holds, for the
// session bootstrap response.
func Permissions(u model.User) []string {
	all := []string{
		PermViewDashboard, PermExportData, PermUseAssistant,
		PermGenerateReports, PermManageUsers, PermAdminPanel, PermViewAuditLog,
	}
	granted := make([]string, 0, len(all))
	for _, p := range all {
		if HasPermission(u, p) {
			granted = append(granted, p)
		}
	}
	return granted
}
