package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Reminder{}.TableName():     "reminders",
		Conversation{}.TableName(): "conversations",
		Turn{}.TableName():         "turns",
		Idempotency{}.TableName():  "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestReminder_IsDue(t *testing.T) {
	r := Reminder{DueAt: 1000}
	if !r.IsDue(1000) {
		t.Fatalf("due exactly at dueAt should be due")
	}
	if r.IsDue(999) {
		t.Fatalf("before dueAt must not be due")
	}
	r.Done = true
	if r.IsDue(5000) {
		t.Fatalf("fired reminder must never be due")
	}
	if got := (Reminder{DueAt: 0}).DueTime(); !got.Equal(time.Unix(0, 0)) {
		t.Fatalf("DueTime epoch = %v", got)
	}
}

func TestReminder_JSONShape(t *testing.T) {
	b, err := json.Marshal(Reminder{ID: "r1", Identity: "u1", Text: "call mom", DueAt: 42, Seq: 7})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"r1","identity":"u1","text":"call mom","dueAt":42,"done":false}`
	if string(b) != want {
		t.Fatalf("json = %s; want %s", b, want)
	}
}

func TestSnapshot_Normalize(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"users":{"u1":null,"u2":{}}}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s.Normalize()
	if s.Reminders == nil {
		t.Fatalf("reminders should be non-nil after Normalize")
	}
	for id, u := range s.Users {
		if u == nil || u.Prefs == nil {
			t.Fatalf("user %q not normalized: %+v", id, u)
		}
	}

	fresh := NewSnapshot()
	b, _ := json.Marshal(fresh)
	if string(b) != `{"users":{},"reminders":[]}` {
		t.Fatalf("empty snapshot json = %s", b)
	}
}

func TestMigrations_IndexesAndCascade(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Reminder{}, &Conversation{}, &Turn{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, idx := range []struct {
		model any
		name  string
	}{
		{&Reminder{}, "idx_reminders_identity"},
		{&Reminder{}, "idx_reminders_due"},
		{&Conversation{}, "ux_conversation_identity"},
		{&Turn{}, "idx_conversation_turns"},
	} {
		if !m.HasIndex(idx.model, idx.name) {
			t.Fatalf("expected index %s on %T", idx.name, idx.model)
		}
	}

	conv := Conversation{ID: uuid.NewString(), Identity: "u1", Channel: "web"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := db.Create(&Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: "user", Content: "hola"}).Error; err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if err := db.Create(&Turn{ID: uuid.NewString(), ConversationID: conv.ID, Role: "system", Content: "x"}).Error; err == nil {
		t.Fatalf("role check constraint should reject 'system'")
	}

	if err := db.Unscoped().Delete(&Conversation{}, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("hard delete conversation: %v", err)
	}
	var n int64
	db.Model(&Turn{}).Where("conversation_id = ?", conv.ID).Count(&n)
	if n != 0 {
		t.Fatalf("turns should cascade on conversation delete, left %d", n)
	}
}

func TestFireNotification(t *testing.T) {
	n := FireNotification(Reminder{ID: "r1", Text: "x"})
	if n.Event != EventReminderFire || n.Data.ID != "r1" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}
