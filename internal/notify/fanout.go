// Package notify delivers appointment notifications. The scheduling service
// sees a single scheduling.Notifier; Fanout spreads each message over the
// configured sinks.
package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// Fanout sends every notification to all sinks. Each sink is tried even when
// an earlier one fails; the failures are joined.
type Fanout struct {
	sinks []scheduling.Notifier
}

var _ scheduling.Notifier = (*Fanout)(nil)

func NewFanout(sinks ...scheduling.Notifier) *Fanout {
	kept := make([]scheduling.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept}
}

func (f *Fanout) Notify(ctx context.Context, userID uuid.UUID, kind scheduling.NotificationKind, message string) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, userID, kind, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the application log. It is the fallback
// in development.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (l *LogSink) Notify(_ context.Context, userID uuid.UUID, kind scheduling.NotificationKind, message string) error {
	l.log.Info("notification",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.String("message", message),
	)
	return nil
}

// FromConfig builds the notifier the binaries use: the notifications table,
// plus the RabbitMQ exchange when RABBITMQ_URL is set. A broker that cannot
// be reached is logged and skipped. The returned func closes the broker
// connection.
func FromConfig(cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (*Fanout, func()) {
	sinks := []scheduling.Notifier{NewStore(pool)}
	closeFn := func() {}

	if cfg.RabbitMQURL != "" {
		pub, err := NewPublisher(cfg.RabbitMQURL, cfg.NotifyExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, notifications are only stored", zap.Error(err))
		} else {
			sinks = append(sinks, pub)
			closeFn = func() {
				if err := pub.Close(); err != nil {
					log.Warn("error closing rabbitmq", zap.Error(err))
				}
			}
			log.Info("publishing notifications", zap.String("exchange", cfg.NotifyExchange))
		}
	}

	if cfg.Env == "dev" {
		sinks = append(sinks, NewLogSink(log))
	}
	return NewFanout(sinks...), closeFn
}
