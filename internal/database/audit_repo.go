package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"conduit-backend/internal/models"
)

// AuditRepo handles audit log database operations
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new audit repository
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	userID := sql.NullInt64{Int64: log.UserID, Valid: log.UserID != 0}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (timestamp, user_id, action, target, details, ip_address)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.Timestamp, userID, log.Action, log.Target, log.Details, log.IPAddress)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

// Log is a convenience method to create an audit log entry with current timestamp
func (r *AuditRepo) Log(ctx context.Context, userID int64, action, target string, details any, ipAddress string) error {
	detailsJSON := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}

	return r.Create(ctx, &models.AuditLog{
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Target:    target,
		Details:   detailsJSON,
		IPAddress: ipAddress,
	})
}

// ListByUser returns a user's audit trail, newest first
func (r *AuditRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, user_id, action, target, details, ip_address
		FROM audit_logs WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		var uid sql.NullInt64
		var target, details, ipAddress sql.NullString

		if err := rows.Scan(&log.ID, &log.Timestamp, &uid, &log.Action, &target, &details, &ipAddress); err != nil {
			return nil, err
		}
		log.UserID = uid.Int64
		log.Target = target.String
		log.Details = details.String
		log.IPAddress = ipAddress.String

		logs = append(logs, log)
	}

	return logs, rows.Err()
}
