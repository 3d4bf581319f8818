// Package models defines the core data structures for Iris.
//
// It includes users, conversation sessions, collected requests, per-user
// dialog state, and the channel-agnostic outbound payload variants shared
// across modules.
package models

import (
	"errors"
	"time"
)

// Channel identifies a messaging surface behind a channel adapter.
type Channel string

const (
	// ChannelWhatsApp delivers through the Twilio WhatsApp API.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelSlack delivers through the Slack Web API.
	ChannelSlack Channel = "slack"
	// ChannelDiscord delivers through the Discord bot API.
	ChannelDiscord Channel = "discord"
)

// IsValidChannel checks if the given channel is supported.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelWhatsApp, ChannelSlack, ChannelDiscord:
		return true
	default:
		return false
	}
}

// Language is a resolved conversation language. The empty value means the
// language is not yet known for a user.
type Language string

const (
	LangUnknown Language = ""
	LangEnglish Language = "en"
	LangSpanish Language = "es"
)

// DialogState is the conversation-flow position for a user. It is distinct
// from a Session, which is a booking-inquiry record.
type DialogState string

const (
	// StateIdle is the initial state; every other state returns to it.
	StateIdle DialogState = "IDLE"
	// StateWaitFirstRequest collects the first free-text request of a flow.
	StateWaitFirstRequest DialogState = "WAIT_FIRST_REQUEST"
	// StateWaitSecondRequest collects a follow-up free-text request.
	StateWaitSecondRequest DialogState = "WAIT_SECOND_REQUEST"
	// StateWaitConfirmationNumber collects a booking confirmation number.
	StateWaitConfirmationNumber DialogState = "WAIT_CONFIRMATION_NUMBER"
)

// IsCollecting reports whether the state short-circuits intent
// classification and treats any inbound text as collected input.
func (s DialogState) IsCollecting() bool {
	switch s {
	case StateWaitFirstRequest, StateWaitSecondRequest, StateWaitConfirmationNumber:
		return true
	default:
		return false
	}
}

// Department identifies which booking desk a session belongs to.
type Department string

const (
	DepartmentHotel       Department = "Hotel"
	DepartmentFlight      Department = "Flight"
	DepartmentFlightHotel Department = "Flight+Hotel"
)

// User maps a channel-native identity to an internal user ID. Created on
// first contact and immutable afterwards.
type User struct {
	ID        int64     `json:"id"`
	Channel   Channel   `json:"channel"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserState is the single live per-user dialog state record. Exactly one
// exists per user; it is mutated in place and never deleted.
type UserState struct {
	UserID    int64       `json:"user_id"`
	State     DialogState `json:"state"`
	Language  Language    `json:"language,omitempty"`
	TaskID    string      `json:"task_id,omitempty"` // pending deferred-task handle, empty if none
	UpdatedAt time.Time   `json:"updated_at"`
}

// Session is a booking-inquiry record. The most recent session by creation
// time is the authoritative "latest" session for a user.
type Session struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	Department         Department `json:"department"`
	ConfirmationNumber string     `json:"confirmation_number,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Request is an append-only free-text request collected from a user. The
// session reference may be zero when a request arrives before any session
// exists.
type Request struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	SessionID int64     `json:"session_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Report carries a snapshot of a session and its requests for asynchronous
// delivery to a booking agent. The snapshot is captured at enqueue time.
type Report struct {
	RecipientID string          `json:"recipient_id"`
	Channel     Channel         `json:"channel"`
	Language    Language        `json:"language"`
	DisplayName string          `json:"display_name"`
	Session     SessionExport   `json:"session"`
	Requests    []RequestExport `json:"requests"`
}

// SessionExport is the serialized form of a Session.
type SessionExport struct {
	ID                 int64      `json:"id"`
	Department         Department `json:"department"`
	ConfirmationNumber string     `json:"confirmation_number,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// RequestExport is the serialized form of a Request, ordered by creation.
type RequestExport struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Export converts a session and its requests into the snapshot form used by
// report delivery.
func Export(s Session, requests []Request) (SessionExport, []RequestExport) {
	se := SessionExport{
		ID:                 s.ID,
		Department:         s.Department,
		ConfirmationNumber: s.ConfirmationNumber,
		CreatedAt:          s.CreatedAt,
	}
	re := make([]RequestExport, 0, len(requests))
	for _, r := range requests {
		re = append(re, RequestExport{ID: r.ID, Body: r.Body, CreatedAt: r.CreatedAt})
	}
	return se, re
}

// Error variables for better error handling and testability.
var (
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrNoAdapter         = errors.New("no adapter registered for channel")
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidStatePatch = errors.New("state patch must set at least one field")
)
