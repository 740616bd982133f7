package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Archive is the sqlite-backed local message log. It persists every
// message the cache sees so history survives restarts and can be
// searched locally. The in-memory cache remains the source of truth
// for the UI; the archive is write-behind and best-effort.
type Archive struct {
	*sql.DB
}

// OpenArchive opens the sqlite archive with WAL mode and runs
// pending migrations.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	a := &Archive{db}
	if _, err := a.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// InsertMessage persists one message. Messages that carry a server id
// are idempotent on it, so redelivered frames do not duplicate rows;
// unacknowledged drafts are keyed by their temp id.
func (a *Archive) InsertMessage(sessionID string, m Message) error {
	now := time.Now().UnixMilli()
	if m.ID > 0 {
		_, err := a.Exec(`
			INSERT INTO messages (server_id, temp_id, session_id, sender_id, content, message_type, chat_type, status, create_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id > 0 DO UPDATE SET
				status = excluded.status`,
			m.ID, m.TempID, sessionID, m.SenderID, m.Content, string(m.MessageType), string(m.ChatType), string(m.Status), m.CreateTime, now)
		return err
	}
	_, err := a.Exec(`
		INSERT INTO messages (server_id, temp_id, session_id, sender_id, content, message_type, chat_type, status, create_time, created_at)
		VALUES (0, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TempID, sessionID, m.SenderID, m.Content, string(m.MessageType), string(m.ChatType), string(m.Status), m.CreateTime, now)
	return err
}

// SessionMessages returns archived messages for a session, oldest
// first, up to limit.
func (a *Archive) SessionMessages(sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.Query(`
		SELECT server_id, temp_id, sender_id, content, message_type, chat_type, status, create_time
		FROM messages
		WHERE session_id = ?
		ORDER BY create_time ASC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// SearchMessages returns messages whose content matches the query,
// newest first, optionally restricted to one session.
func (a *Archive) SearchMessages(query, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.Query(`
		SELECT server_id, temp_id, sender_id, content, message_type, chat_type, status, create_time
		FROM messages
		WHERE content LIKE '%' || ? || '%' AND (? = '' OR session_id = ?)
		ORDER BY create_time DESC
		LIMIT ?`, query, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// MessageCount returns the total number of archived messages.
func (a *Archive) MessageCount() (int64, error) {
	var count int64
	err := a.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		var msgType, chatType, status string
		if err := rows.Scan(&m.ID, &m.TempID, &m.SenderID, &m.Content, &msgType, &chatType, &status, &m.CreateTime); err != nil {
			return nil, err
		}
		m.MessageType = MessageType(msgType)
		m.ChatType = ChatKind(chatType)
		m.Status = Status(status)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
