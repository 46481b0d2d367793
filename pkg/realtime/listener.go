package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the NOTIFY channel the change triggers publish on
const DefaultChannel = "table_changes"

// Conn is the part of a pgx connection the listener needs
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// DialFunc opens a dedicated connection for LISTEN
type DialFunc func(ctx context.Context) (Conn, error)

// PgxDialer returns a DialFunc connecting to databaseURL with pgx
func PgxDialer(databaseURL string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Listener holds one connection in LISTEN and forwards each payload
// (a table name) to the hub. It reconnects after RetryDelay on any error.
// Notifications sent while disconnected are lost, so every reconnect tells
// all subscribers to refetch.
type Listener struct {
	dial       DialFunc
	hub        *Hub
	channel    string
	retryDelay time.Duration
	logger     logrus.FieldLogger
}

// NewListener creates a listener; an empty channel means DefaultChannel
func NewListener(dial DialFunc, hub *Hub, channel string, retryDelay time.Duration, logger logrus.FieldLogger) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &Listener{
		dial:       dial,
		hub:        hub,
		channel:    channel,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled
func (l *Listener) Run(ctx context.Context) {
	l.logger.WithField("channel", l.channel).Info("Starting change listener")

	for attempt := 0; ; attempt++ {
		err := l.listen(ctx, attempt > 0)
		if ctx.Err() != nil {
			l.logger.Info("Change listener stopped")
			return
		}
		l.logger.WithError(err).WithField("retry_in", l.retryDelay.String()).Warn("Change listener disconnected")

		select {
		case <-ctx.Done():
			l.logger.Info("Change listener stopped")
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context, resync bool) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	if resync {
		l.logger.Info("Change listener reconnected, refreshing subscribers")
		l.hub.NotifyAll()
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n == nil || n.Payload == "" {
			continue
		}
		l.logger.WithFields(logrus.Fields{
			"table":       n.Payload,
			"subscribers": l.hub.Subscribers(n.Payload),
		}).Debug("Table changed")
		l.hub.Notify(n.Payload)
	}
}
