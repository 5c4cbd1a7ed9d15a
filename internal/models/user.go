package models

import "time"

// User represents a registered Conduit author
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Author is the slice of a user shown next to articles and comments
type Author struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	IsFollowing bool   `json:"isFollowing,omitempty"`
}

// Profile is a user as seen by another (possibly anonymous) visitor
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Avatar      string `json:"avatar"`
	IsFollowing bool   `json:"isFollowing"`
}

// UserSettings is the subset of fields editable from the settings page
type UserSettings struct {
	Name     string
	Email    string
	Bio      string
	Avatar   string
	Password string // plain text; empty keeps the current password
}
