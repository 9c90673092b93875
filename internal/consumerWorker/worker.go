package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/Match-Score-project/Match-Score/internal/notify"
	"github.com/Match-Score-project/Match-Score/internal/rabbit"
	"github.com/Match-Score-project/Match-Score/internal/repo"
)

type Mailer interface {
	SendNotificationEmail(ctx context.Context, recipientEmail, recipientName, message string) error
}

// Presence reports whether a user currently has a live realtime connection.
type Presence interface {
	Online(userID string) bool
}

// Reader delivers queued notification events by e-mail. Users who are online
// already got the realtime push and are skipped, as are notifications read or
// deleted before the event came due.
type Reader struct {
	RMQ      rabbit.Rabbiter
	repo     repo.Repository
	mail     Mailer
	presence Presence
	done     chan struct{}
	cancel   context.CancelFunc
}

func NewReader(rmq rabbit.Rabbiter, repo repo.Repository, mail Mailer, presence Presence) *Reader {
	return &Reader{
		RMQ:      rmq,
		repo:     repo,
		mail:     mail,
		presence: presence,
		done:     make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("🐇 RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(cctx, func(body []byte) error { return r.Handle(cctx, body) }); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("🛑 RabbitMQ Reader stopped by context")
	}()
}

// Handle processes one queued event. It is also the in-process delivery path.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var ev notify.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		return fmt.Errorf("%w: %v", rabbit.ErrDrop, err)
	}

	zlog.Logger.Info().
		Str("notification_id", ev.NotificationID).
		Str("user_id", ev.UserID).
		Msg("📩 Received notification event")

	n, err := r.repo.GetNotification(ctx, ev.NotificationID)
	if errors.Is(err, repo.ErrNotificationNotFound) {
		zlog.Logger.Info().Str("notification_id", ev.NotificationID).Msg("notification deleted, skipping email")
		return nil
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", ev.NotificationID).Msg("Failed to get notification in worker")
		return err
	}
	if n.IsRead {
		zlog.Logger.Info().Str("notification_id", ev.NotificationID).Msg("notification already read, skipping email")
		return nil
	}
	if r.presence != nil && r.presence.Online(n.UserID) {
		zlog.Logger.Debug().Str("user_id", n.UserID).Msg("user online, skipping email")
		return nil
	}

	user, err := r.repo.GetUser(ctx, n.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", n.UserID).Msg("Failed to get user in worker")
		return err
	}
	if user.Email == "" {
		return nil
	}

	if err := r.mail.SendNotificationEmail(ctx, user.Email, user.Name, n.Message); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Msg("Failed to send notification on e-mail")
		return nil
	}
	zlog.Logger.Info().
		Str("email", user.Email).
		Str("notification_id", n.ID).
		Msg("📧 Notification email sent successfully")
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
