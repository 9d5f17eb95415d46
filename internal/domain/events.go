package domain

// Realtime event names exchanged with interactive sessions.
const (
	EventWhoAmI          = "whoami"
	EventReminderCreate  = "reminder:create"
	EventReminderCreated = "reminder:created"
	EventReminderList    = "reminder:list"
	EventReminderFire    = "reminder:fire"
	EventSendMessage     = "send_message"
	EventMessageResponse = "message_response"
	EventError           = "error"
)

// Notification is what a delivery target receives when a reminder fires.
// Data carries the full reminder record (id and text at minimum).
type Notification struct {
	Event string   `json:"event"`
	Data  Reminder `json:"data"`
}

// FireNotification builds the reminder:fire notification for r.
func FireNotification(r Reminder) Notification {
	return Notification{Event: EventReminderFire, Data: r}
}
