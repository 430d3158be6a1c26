package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sqlx.DB
}

func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id          TEXT PRIMARY KEY,
			message     TEXT NOT NULL,
			actor       TEXT NOT NULL DEFAULT '',
			entity      TEXT NOT NULL DEFAULT '',
			change_type TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}

	_, err = d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at)`)
	if err != nil {
		return fmt.Errorf("create notifications index: %w", err)
	}
	return nil
}

// InsertNotification stores n, assigning an ID and timestamp when missing.
func (d *DB) InsertNotification(n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	_, err := d.sql.NamedExec(`
		INSERT INTO notifications (id, message, actor, entity, change_type, created_at)
		VALUES (:id, :message, :actor, :entity, :change_type, :created_at)
	`, n)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// RecentNotifications returns up to limit notifications, newest first.
func (d *DB) RecentNotifications(limit int) ([]Notification, error) {
	var out []Notification
	err := d.sql.Select(&out, `
		SELECT id, message, actor, entity, change_type, created_at
		FROM notifications
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	return out, nil
}

// PruneNotifications deletes everything but the newest keep rows.
func (d *DB) PruneNotifications(keep int) (int64, error) {
	res, err := d.sql.Exec(`
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.sql.Get(&value, "SELECT value FROM metadata WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Touch stamps the last successful agenda sync.
func (d *DB) Touch() error {
	return d.SetMeta(MetaLastSync, fmt.Sprintf("%d", time.Now().UnixMilli()))
}

func (d *DB) LastSync() time.Time {
	v, _ := d.GetMeta(MetaLastSync)
	if v == "" {
		return time.Time{}
	}
	var ts int64
	fmt.Sscanf(v, "%d", &ts)
	return time.UnixMilli(ts)
}
