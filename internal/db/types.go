package db

import "time"

// NotificationLogSize is how many notifications are kept when the log is
// pruned on exit.
const NotificationLogSize = 500

// Notification is a toast that was actually shown to the user.
type Notification struct {
	ID         string `db:"id"`
	Message    string `db:"message"`
	Actor      string `db:"actor"`
	Entity     string `db:"entity"`
	ChangeType string `db:"change_type"`
	CreatedAt  int64  `db:"created_at"` // unix ms
}

func (n Notification) Time() time.Time {
	return time.UnixMilli(n.CreatedAt)
}

// Metadata keys.
const (
	MetaWeekStart = "week_start"
	MetaLastSync  = "last_sync"
)
