package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("session key is incomplete")

// Key identifies one conversation. All three parts are required.
type Key struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func NewKey(tenantID, userID, sessionID string) Key {
	return Key{
		TenantID:  strings.TrimSpace(tenantID),
		UserID:    strings.TrimSpace(userID),
		SessionID: strings.TrimSpace(sessionID),
	}
}

func (k Key) Validate() error {
	switch {
	case k.TenantID == "":
		return fmt.Errorf("%w: tenant id is empty", ErrInvalidKey)
	case k.UserID == "":
		return fmt.Errorf("%w: user id is empty", ErrInvalidKey)
	case k.SessionID == "":
		return fmt.Errorf("%w: session id is empty", ErrInvalidKey)
	}
	return nil
}

func (k Key) String() string {
	return k.TenantID + "/" + k.UserID + "/" + k.SessionID
}

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

const defaultTitle = "New Conversation"

// Session is the per-conversation record the router reads at every turn.
// ActiveWorker holds the canonical worker name, or "" when unknown.
type Session struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	ActiveWorker   string    `json:"active_worker,omitempty"`
	MessageCount   int       `json:"message_count"`
	CompactionMark int64     `json:"compaction_mark,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func NewSession(key Key, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:             key.SessionID,
		TenantID:       key.TenantID,
		UserID:         key.UserID,
		SessionID:      key.SessionID,
		Title:          defaultTitle,
		Status:         StatusActive,
		MessageCount:   0,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (s *Session) Key() Key {
	return Key{TenantID: s.TenantID, UserID: s.UserID, SessionID: s.SessionID}
}

func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now.UTC()
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if err := s.Key().Validate(); err != nil {
		return err
	}
	if s.MessageCount < 0 {
		return fmt.Errorf("message count must be >= 0, got %d", s.MessageCount)
	}
	return nil
}
