// Package domain defines the entities shared by the reminder store, the
// dispatch components, and the conversation memory. Types carrying GORM tags
// are also mapped by the SQLite backends in package repo.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Reminder is a pending or fired notification owned by an identity.
//
// Fields:
//   - ID: opaque unique token assigned at creation.
//   - Identity: owning recipient key (phone address, declared name, or anon tag).
//   - Text: human-readable payload delivered on fire.
//   - DueAt: epoch milliseconds at which the reminder becomes deliverable.
//   - Done: false at creation; flipped to true exactly once when delivery is attempted.
//   - Seq: storage position, only used by the SQLite snapshot backend to
//     restore insertion order.
type Reminder struct {
	ID       string `json:"id"       gorm:"type:varchar(40);primaryKey"`
	Identity string `json:"identity" gorm:"type:varchar(128);not null;index:idx_reminders_identity"`
	Text     string `json:"text"     gorm:"type:text;not null"`
	DueAt    int64  `json:"dueAt"    gorm:"not null;index:idx_reminders_due"`
	Done     bool   `json:"done"     gorm:"not null;default:false"`
	Seq      int    `json:"-"        gorm:"not null;default:0"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// IsDue reports whether r is unfired and its due time is at or before now (ms).
func (r Reminder) IsDue(nowMS int64) bool {
	return !r.Done && r.DueAt <= nowMS
}

// DueTime returns DueAt as a time.Time in UTC.
func (r Reminder) DueTime() time.Time {
	return time.UnixMilli(r.DueAt).UTC()
}

// UserRecord holds the open preference map for one identity. It is created
// lazily on first contact and merged shallowly on updates.
type UserRecord struct {
	Prefs map[string]any `json:"prefs"`
}

// Snapshot is the whole persisted document: every user and every reminder.
// It is always written as a complete replacement of the previous one.
type Snapshot struct {
	Users     map[string]*UserRecord `json:"users"`
	Reminders []Reminder             `json:"reminders"`
}

// NewSnapshot returns an empty, ready-to-use snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:     make(map[string]*UserRecord),
		Reminders: []Reminder{},
	}
}

// Normalize replaces nil collections with empty ones so that decoded
// documents missing a key behave like fresh ones.
func (s *Snapshot) Normalize() {
	if s.Users == nil {
		s.Users = make(map[string]*UserRecord)
	}
	for id, u := range s.Users {
		if u == nil {
			u = &UserRecord{}
			s.Users[id] = u
		}
		if u.Prefs == nil {
			u.Prefs = make(map[string]any)
		}
	}
	if s.Reminders == nil {
		s.Reminders = []Reminder{}
	}
}

// Conversation groups the chat turns exchanged with one identity.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Identity  string         `json:"identity"   gorm:"type:varchar(128);not null;uniqueIndex:ux_conversation_identity"`
	Channel   string         `json:"channel"    gorm:"type:varchar(16);not null;default:'web'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Turn is one message of a conversation, authored by the user or the assistant.
type Turn struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_turns,priority:1"`
	Role           string    `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_conversation_turns,priority:2"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Turn.
func (Turn) TableName() string { return "turns" }
