// Package notify fans stored notifications out to connected clients and to the
// delivery queue.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/model"
)

// PushEvent is the realtime event name carrying a notification.
const PushEvent = "notification"

// Event is the queued form of a stored notification.
type Event struct {
	NotificationID string    `json:"notificationId"`
	UserID         string    `json:"userId"`
	Message        string    `json:"message"`
	Type           string    `json:"type,omitempty"`
	MatchID        string    `json:"matchId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func FromNotification(n model.Notification) Event {
	return Event{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Message:        n.Message,
		Type:           n.Type,
		MatchID:        n.MatchID,
		Timestamp:      n.Timestamp,
	}
}

type Pusher interface {
	Push(userID, event string, payload any)
}

// Publisher matches the broker client's publish call.
type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

type Notifier struct {
	pusher Pusher
	pub    Publisher
	delay  int
	log    *zerolog.Logger
}

// NewNotifier builds a notifier. Either side may be nil. delaySeconds holds
// e-mail delivery back so notifications read in the meantime are not mailed.
func NewNotifier(pusher Pusher, pub Publisher, delaySeconds int, log *zerolog.Logger) *Notifier {
	return &Notifier{pusher: pusher, pub: pub, delay: delaySeconds, log: log}
}

// Notify never fails the caller; the notifications are already stored.
func (n *Notifier) Notify(_ context.Context, notes ...model.Notification) {
	for _, note := range notes {
		ev := FromNotification(note)
		if n.pusher != nil {
			n.pusher.Push(ev.UserID, PushEvent, ev)
		}
		if n.pub == nil {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			n.log.Error().Err(err).Str("notification_id", ev.NotificationID).Msg("failed to marshal notification event")
			continue
		}
		if err := n.pub.Publish(payload, n.delay); err != nil {
			n.log.Warn().Err(err).Str("notification_id", ev.NotificationID).Msg("failed to publish notification event")
		}
	}
}

// Inline delivers published events in-process after the requested delay.
// It stands in for the broker when none is configured.
type Inline struct {
	handle  func(ctx context.Context, body []byte) error
	log     *zerolog.Logger
	mu      sync.Mutex
	pending map[*time.Timer][]byte
	wg      sync.WaitGroup
}

func NewInline(handle func(ctx context.Context, body []byte) error, log *zerolog.Logger) *Inline {
	return &Inline{handle: handle, log: log, pending: make(map[*time.Timer][]byte)}
}

func (i *Inline) Publish(message []byte, delaySeconds int) error {
	i.wg.Add(1)
	body := append([]byte(nil), message...)

	i.mu.Lock()
	defer i.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(time.Duration(delaySeconds)*time.Second, func() {
		if i.claim(t) {
			i.deliver(context.Background(), body)
		}
	})
	i.pending[t] = body
	return nil
}

// claim removes t from the pending set; only the caller that removed it delivers.
func (i *Inline) claim(t *time.Timer) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.pending[t]; !ok {
		return false
	}
	delete(i.pending, t)
	return true
}

func (i *Inline) deliver(ctx context.Context, body []byte) {
	defer i.wg.Done()
	if err := i.handle(ctx, body); err != nil {
		i.log.Warn().Err(err).Msg("inline notification delivery failed")
	}
}

// Wait blocks until every scheduled delivery has run.
func (i *Inline) Wait() {
	i.wg.Wait()
}

// Drain runs every delivery still waiting on its delay right away and waits
// for all of them, giving up when ctx ends.
func (i *Inline) Drain(ctx context.Context) error {
	i.mu.Lock()
	due := make([][]byte, 0, len(i.pending))
	for t, body := range i.pending {
		t.Stop()
		delete(i.pending, t)
		due = append(due, body)
	}
	i.mu.Unlock()
	if len(due) > 0 {
		i.log.Info().Int("pending", len(due)).Msg("delivering queued notifications before shutdown")
	}
	for _, body := range due {
		go i.deliver(ctx, body)
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
