package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// SQLiteNotifier persists channel messages in the shared database.
type SQLiteNotifier struct {
	db     *sql.DB
	logger *logx.Logger
	now    func() time.Time
}

// NewSQLiteNotifier wraps a database opened with persistence.Open.
func NewSQLiteNotifier(db *sql.DB) *SQLiteNotifier {
	return &SQLiteNotifier{
		db:     db,
		logger: logx.NewLogger("slack-sqlite"),
		now:    time.Now,
	}
}

// Send stores the message.
func (n *SQLiteNotifier) Send(ctx context.Context, channel, text string) (*SendResult, error) {
	msg := newMessage(channel, text, n.now())
	if err := n.Record(ctx, msg); err != nil {
		return nil, err
	}
	n.logger.Debug("Posted message id=%s channel=%s length=%d", msg.MessageID, msg.Channel, len(text))
	return msg.result(), nil
}

// Record stores an already-built message.
func (n *SQLiteNotifier) Record(ctx context.Context, msg Message) error {
	_, err := n.db.ExecContext(ctx,
		`INSERT INTO channel_messages (message_id, channel, text, created_at) VALUES (?, ?, ?, ?)`,
		msg.MessageID, msg.Channel, msg.Text, msg.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to persist message to %s: %w", msg.Channel, err)
	}
	return nil
}

// History returns the last limit messages of the channel, oldest first.
func (n *SQLiteNotifier) History(ctx context.Context, channel string, limit int) ([]Message, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	rows, err := n.db.QueryContext(ctx, `
		SELECT message_id, channel, text, created_at FROM (
			SELECT id, message_id, channel, text, created_at FROM channel_messages
			WHERE channel = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, channel, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for %s: %w", channel, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m       Message
			created string
		)
		if err := rows.Scan(&m.MessageID, &m.Channel, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.User = Sender
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.Timestamp = ts
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}
