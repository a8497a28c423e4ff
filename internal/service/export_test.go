package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterdash/internal/model"
)

func newExportFixture(t *testing.T) (*fixture, *ExportService) {
	f := newFixture(t)
	export := NewExportService("test-secret", 5*time.Minute, f.audit, f.rbac,
		WithExportClock(f.clock.Now))
	return f, export
}

func TestExportIssueAndVerify(t *testing.T) {
	f, export := newExportFixture(t)
	analyst := user(model.RoleAnalyst, "Uganda")

	token, expiresAt, err := export.Issue(context.Background(), analyst, "coverage")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), expiresAt)

	grant, err := export.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, analyst.ID, grant.UserID)
	assert.Equal(t, "coverage", grant.Dataset)
	assert.Equal(t, "Uganda", grant.Country)
	assert.Contains(t, f.auditActions(t), model.AuditExportIssued)
}

func TestExportDeniedBelowAnalyst(t *testing.T) {
	f, export := newExportFixture(t)

	_, _, err := export.Issue(context.Background(), user(model.RoleViewer, "Malawi"), "coverage")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Contains(t, f.auditActions(t), model.AuditPermissionDenied)
}

func TestExportTokenExpires(t *testing.T) {
	f, export := newExportFixture(t)

	token, _, err := export.Issue(context.Background(), user(model.RoleAnalyst, "Uganda"), "coverage")
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	_, err = export.Verify(token)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestExportRejectsForeignTokens(t *testing.T) {
	f, export := newExportFixture(t)

	_, err := export.Verify("not-a-token")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	// Token signed with a different secret.
	other := NewExportService("other-secret", time.Minute, f.audit, f.rbac, WithExportClock(f.clock.Now))
	token, _, err := other.Issue(context.Background(), user(model.RoleAnalyst, "Uganda"), "coverage")
	require.NoError(t, err)
	_, err = export.Verify(token)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}
