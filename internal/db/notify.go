package db

import (
	"context"
	"database/sql"
	"errors"
)

// Notifier announces archived reports on a PostgreSQL NOTIFY channel. The
// payload is the session id.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier. The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends sessionID on the channel. pg_notify is used because NOTIFY
// itself does not accept bind parameters.
func (n *Notifier) Notify(ctx context.Context, sessionID string) error {
	if n.Channel == "" {
		return errors.New("notify: empty channel")
	}
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, sessionID)
	return err
}
