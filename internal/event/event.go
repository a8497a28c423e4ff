package event

type Type string

const (
	TypeLoginSucceeded   Type = "auth.login_succeeded"
	TypeLoginFailed      Type = "auth.login_failed"
	TypeLoginBlocked     Type = "auth.login_blocked"
	TypeLogout           Type = "auth.logout"
	TypeSessionExpired   Type = "auth.session_expired"
	TypePasswordChanged  Type = "account.password_changed"
	TypeUserDeactivated  Type = "account.deactivated"
	TypePermissionDenied Type = "access.permission_denied"
	TypeScopeGap         Type = "access.scope_gap"
	TypeExportIssued     Type = "data.export_issued"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"` // Who triggered the event
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
