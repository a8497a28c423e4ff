package model

import "time"

// Audit actions recorded by the security core.
const (
	AuditLoginSuccess     = "login.success"
	AuditLoginFailure     = "login.failure"
	AuditLoginBlocked     = "login.blocked"
	AuditPasswordChanged  = "password.changed"
	AuditUserCreated      = "user.created"
	AuditUserDeactivated  = "user.deactivated"
	AuditPermissionDenied = "permission.denied"
	AuditSessionExpired   = "session.expired"
	AuditLogout           = "logout"
	AuditScopeGap         = "scope.column_missing"
	AuditExportIssued     = "export.issued"
)

// Audit outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// AuditEvent is one append-only record of a security-relevant action.
// ActorID is empty for pre-authentication events such as failed logins.
type AuditEvent struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    string            `json:"actor_id,omitempty"`
	Action     string            `json:"action"`
	Outcome    string            `json:"outcome"`
	Target     string            `json:"target,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// AuditQuery filters the audit listing endpoint.
type AuditQuery struct {
	Action  string
	ActorID string
	Outcome string
	Page    int
	Limit   int
}
