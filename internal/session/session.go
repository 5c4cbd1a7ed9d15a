// Package session keeps per-visitor state across requests. A session holds
// durable string values (such as the signed-in user id) and one-shot flash
// messages. The payload either travels in a signed cookie or lives in a
// server-side Store keyed by an id carried in the cookie.
package session

import (
	"strconv"
	"time"
)

// FlashKind names a flash message slot
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

const userIDKey = "userId"

// Data is the serialized session payload
type Data struct {
	Values map[string]string    `json:"values,omitempty"`
	Flash  map[FlashKind]string `json:"flash,omitempty"`
}

func (d *Data) normalize() {
	if d.Values == nil {
		d.Values = map[string]string{}
	}
	if d.Flash == nil {
		d.Flash = map[FlashKind]string{}
	}
}

// Session is one visitor's state for the duration of a request. It is not
// safe for concurrent use; each request resolves its own copy.
type Session struct {
	// ID is empty until the first commit
	ID        string
	ExpiresAt time.Time

	data Data
}

func newSession() *Session {
	s := &Session{}
	s.data.normalize()
	return s
}

// IsNew reports whether the session has never been committed
func (s *Session) IsNew() bool {
	return s.ID == ""
}

// Get returns a durable value, or a still-pending flash message of the same
// name. It has no side effects.
func (s *Session) Get(key string) (string, bool) {
	if v, ok := s.data.Values[key]; ok {
		return v, true
	}
	v, ok := s.data.Flash[FlashKind(key)]
	return v, ok
}

// Set stores a durable value
func (s *Session) Set(key, value string) {
	s.data.Values[key] = value
}

// Unset removes a durable value
func (s *Session) Unset(key string) {
	delete(s.data.Values, key)
}

// Flash stores a message that is delivered once
func (s *Session) Flash(kind FlashKind, message string) {
	s.data.Flash[kind] = message
}

// PopFlash returns the pending message of kind and marks it consumed. The
// next commit persists the session without it.
func (s *Session) PopFlash(kind FlashKind) (string, bool) {
	v, ok := s.data.Flash[kind]
	if ok {
		delete(s.data.Flash, kind)
	}
	return v, ok
}

// Messages pops every pending flash message
func (s *Session) Messages() map[FlashKind]string {
	out := make(map[FlashKind]string, len(s.data.Flash))
	for kind, msg := range s.data.Flash {
		out[kind] = msg
	}
	s.data.Flash = map[FlashKind]string{}
	return out
}

// UserID returns the signed-in user, if any
func (s *Session) UserID() (int64, bool) {
	v, ok := s.data.Values[userIDKey]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetUserID marks the session as signed in as id
func (s *Session) SetUserID(id int64) {
	s.Set(userIDKey, strconv.FormatInt(id, 10))
}

// ClearUserID signs the session out without touching other values
func (s *Session) ClearUserID() {
	s.Unset(userIDKey)
}

// Values returns a copy of the durable values
func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.data.Values))
	for k, v := range s.data.Values {
		out[k] = v
	}
	return out
}
