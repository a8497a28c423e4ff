package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waterdash/internal/model"
)

func user(role model.Role, country string) model.User {
	return model.User{ID: "id-" + string(role), Role: role, AssignedCountry: country, Active: true}
}

func TestHasPermissionFloors(t *testing.T) {
	viewer := user(model.RoleViewer, "Malawi")
	analyst := user(model.RoleAnalyst, "Uganda")
	admin := user(model.RoleCountryAdmin, "Uganda")
	master := user(model.RoleMasterUser, "")

	assert.True(t, HasPermission(viewer, PermViewDashboard))
	assert.False(t, HasPermission(viewer, PermExportData))

	assert.True(t, HasPermission(analyst, PermExportData))
	assert.True(t, HasPermission(analyst, PermUseAssistant))
	assert.False(t, HasPermission(analyst, PermGenerateReports))

	assert.True(t, HasPermission(admin, PermGenerateReports))
	assert.True(t, HasPermission(admin, PermManageUsers))
	assert.False(t, HasPermission(admin, PermViewAuditLog))

	assert.True(t, HasPermission(master, PermViewAuditLog))

	assert.False(t, HasPermission(master, "made_up"))

	inactive := user(model.RoleMasterUser, "")
	inactive.Active = false
	assert.False(t, HasPermission(inactive, PermViewDashboard))
}

func TestCanManage(t *testing.T) {
	master := user(model.RoleMasterUser, "")
	adminUG := user(model.RoleCountryAdmin, "Uganda")
	adminCM := user(model.RoleCountryAdmin, "Cameroon")
	analystUG := user(model.RoleAnalyst, "Uganda")
	viewerUG := user(model.RoleViewer, "Uganda")

	// Master manages everyone except other masters.
	assert.True(t, CanManage(master, adminUG))
	assert.True(t, CanManage(master, viewerUG))
	assert.False(t, CanManage(master, user(model.RoleMasterUser, "")))

	// Scoped admins manage strictly lower roles in their own country.
	assert.True(t, CanManage(adminUG, analystUG))
	assert.True(t, CanManage(adminUG, viewerUG))
	assert.False(t, CanManage(adminUG, adminCM))
	assert.False(t, CanManage(adminCM, analystUG))

	// Never upward, never sideways.
	assert.False(t, CanManage(adminUG, adminUG))
	assert.False(t, CanManage(analystUG, adminUG))
	assert.False(t, CanManage(viewerUG, analystUG))
}

func TestCanViewCountry(t *testing.T) {
	assert.True(t, CanViewCountry(user(model.RoleMasterUser, ""), "Lesotho"))
	assert.True(t, CanViewCountry(user(model.RoleViewer, "Malawi"), "malawi"))
	assert.False(t, CanViewCountry(user(model.RoleViewer, "Malawi"), "Uganda"))
}

func TestPermissionsListing(t *testing.T) {
	got := Permissions(user(model.RoleAnalyst, "Uganda"))
	assert.ElementsMatch(t, []string{PermViewDashboard, PermExportData, PermUseAssistant}, got)
}
