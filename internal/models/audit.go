package models

import "time"

// AuditLog represents a record of account activity
type AuditLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"` // JSON string
	IPAddress string    `json:"ip_address"`
}

// Account audit actions
const (
	ActionRegister   = "user.register"
	ActionLogin      = "user.login"
	ActionLoginOIDC  = "user.login_oidc"
	ActionLogout     = "user.logout"
	ActionUserUpdate = "user.update"
)
