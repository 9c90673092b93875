package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/memstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/notify"
	"github.com/Match-Score-project/Match-Score/internal/rabbit"
	"github.com/Match-Score-project/Match-Score/internal/repo"
)

type sentMail struct {
	to, name, message string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendNotificationEmail(_ context.Context, to, name, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, name, message})
	return nil
}

type onlineSet map[string]bool

func (o onlineSet) Online(uid string) bool { return o[uid] }

type fakeRabbit struct {
	bodies [][]byte
	errs   chan error
}

func (f *fakeRabbit) Close() {}
func (f *fakeRabbit) Publish([]byte, int) error { return nil }
func (f *fakeRabbit) Consume(_ context.Context, handler func([]byte) error) error {
	go func() {
		for _, b := range f.bodies {
			f.errs <- handler(b)
		}
	}()
	return nil
}

func setup(t *testing.T) (repo.Repository, string) {
	t.Helper()
	log := zerolog.Nop()
	r, err := repo.NewRepository(memstore.New(&log), &log)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	ctx := context.Background()
	if err := r.MergeUser(ctx, "u1", docstore.Fields{"name": "Ana", "email": "ana@example.com"}); err != nil {
		t.Fatalf("user: %v", err)
	}
	n := &model.Notification{UserID: "u1", Message: "Bia te enviou um pedido de amizade."}
	w, err := r.NewNotification(n)
	if err != nil {
		t.Fatalf("notification: %v", err)
	}
	if err := r.Commit(ctx, w); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return r, n.ID
}

func event(t *testing.T, id string) []byte {
	t.Helper()
	b, err := json.Marshal(notify.Event{NotificationID: id, UserID: "u1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleSendsEmail(t *testing.T) {
	r, id := setup(t)
	mail := &fakeMailer{}
	reader := NewReader(nil, r, mail, onlineSet{})

	if err := reader.Handle(context.Background(), event(t, id)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].to != "ana@example.com" || mail.sent[0].name != "Ana" {
		t.Fatalf("unexpected mail %+v", mail.sent)
	}
}

func TestHandleSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		r, id := setup(t)
		_ = r.Commit(ctx, r.MarkNotificationRead(id))
		mail := &fakeMailer{}
		if err := NewReader(nil, r, mail, nil).Handle(ctx, event(t, id)); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if len(mail.sent) != 0 {
			t.Fatal("read notification mailed")
		}
	})

	t.Run("deleted", func(t *testing.T) {
		r, id := setup(t)
		_ = r.Commit(ctx, r.DeleteNotification(id))
		mail := &fakeMailer{}
		if err := NewReader(nil, r, mail, nil).Handle(ctx, event(t, id)); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if len(mail.sent) != 0 {
			t.Fatal("deleted notification mailed")
		}
	})

	t.Run("online", func(t *testing.T) {
		r, id := setup(t)
		mail := &fakeMailer{}
		if err := NewReader(nil, r, mail, onlineSet{"u1": true}).Handle(ctx, event(t, id)); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if len(mail.sent) != 0 {
			t.Fatal("online user mailed")
		}
	})
}

func TestHandleDropsGarbage(t *testing.T) {
	r, _ := setup(t)
	err := NewReader(nil, r, &fakeMailer{}, nil).Handle(context.Background(), []byte("{not json"))
	if !errors.Is(err, rabbit.ErrDrop) {
		t.Fatalf("expected ErrDrop, got %v", err)
	}
}

func TestStartConsumesUntilStopped(t *testing.T) {
	r, id := setup(t)
	mail := &fakeMailer{}
	rmq := &fakeRabbit{bodies: [][]byte{event(t, id)}, errs: make(chan error, 1)}
	reader := NewReader(rmq, r, mail, nil)

	reader.Start(context.Background())
	if err := <-rmq.errs; err != nil {
		t.Fatalf("handler: %v", err)
	}
	reader.Stop()

	mail.mu.Lock()
	defer mail.mu.Unlock()
	if len(mail.sent) != 1 {
		t.Fatalf("expected one e-mail, got %d", len(mail.sent))
	}
}
