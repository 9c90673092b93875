package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/dynamostore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/dynamostore/dynamotest"
	"github.com/Match-Score-project/Match-Score/internal/docstore/memstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/sqlstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/slots"
)

var testNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, notes ...model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
}

func (r *recordingNotifier) last() model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return model.Notification{}
	}
	return r.notes[len(r.notes)-1]
}

type onlineSet map[string]bool

func (o onlineSet) Online(id string) bool { return o[id] }

type fixture struct {
	svc      *Service
	repo     repo.Repository
	notifier *recordingNotifier
}

// backends builds one fresh store per document store implementation.
var backends = []struct {
	name string
	open func(t *testing.T) docstore.Store
}{
	{"memory", func(t *testing.T) docstore.Store {
		log := zerolog.Nop()
		return memstore.New(&log)
	}},
	{"sqlite", func(t *testing.T) docstore.Store {
		log := zerolog.Nop()
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
		s, err := sqlstore.OpenSQLite(dsn, &log)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if err := s.MigrateUp(filepath.Join("..", "..", "migrations", "sqlite")); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return s
	}},
	{"dynamodb", func(t *testing.T) docstore.Store {
		log := zerolog.Nop()
		s := dynamostore.New(dynamotest.New(), "matchscore", &log)
		if err := s.EnsureTable(context.Background()); err != nil {
			t.Fatalf("ensure table: %v", err)
		}
		return s
	}},
}

func newFixture(t *testing.T, guard GuardMode, online onlineSet) *fixture {
	t.Helper()
	log := zerolog.Nop()
	return newFixtureWith(t, memstore.New(&log), guard, online)
}

func newFixtureWith(t *testing.T, store docstore.Store, guard GuardMode, online onlineSet) *fixture {
	t.Helper()
	log := zerolog.Nop()
	r, err := repo.NewRepository(store, &log)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	n := &recordingNotifier{}
	s, err := New(Deps{
		Repo:     r,
		Log:      &log,
		Notifier: n,
		Presence: online,
		Guard:    guard,
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &fixture{svc: s, repo: r, notifier: n}
}

func (f *fixture) user(t *testing.T, id, name string) {
	t.Helper()
	err := f.repo.MergeUser(context.Background(), id, docstore.Fields{
		"name":      name,
		"nameLower": strings.ToLower(name),
		"birthDate": "2000-01-01",
		"email":     id + "@example.com",
	})
	if err != nil {
		t.Fatalf("user %s: %v", id, err)
	}
}

func (f *fixture) match(t *testing.T, creator string, slots int) *model.Match {
	t.Helper()
	m, err := f.svc.Matches.Create(context.Background(), creator, MatchInput{
		Name: "Pelada", Date: "2030-06-10", Time: "20:00", Location: "Quadra Central",
		Sport: model.SportFutsal, Kind: "Amistoso", TotalSlots: slots,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	return m
}

func TestParseGuard(t *testing.T) {
	for in, want := range map[string]GuardMode{"": GuardTransactional, "transactional": GuardTransactional, "best_effort": GuardBestEffort} {
		if got, err := ParseGuard(in); err != nil || got != want {
			t.Fatalf("%q: got %q %v", in, got, err)
		}
	}
	if _, err := ParseGuard("optimistic"); err == nil {
		t.Fatal("expected error for unknown guard")
	}
}

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	base := MatchInput{Name: "Pelada", Date: "2030-06-10", Time: "20:00", Location: "Quadra", Sport: model.SportFutsal, Kind: "Amistoso", TotalSlots: 10}

	cases := []struct {
		name string
		edit func(*MatchInput)
		want error
	}{
		{"past date", func(in *MatchInput) { in.Date = "2030-05-31" }, ErrPastDate},
		{"zero slots", func(in *MatchInput) { in.TotalSlots = 0 }, ErrInvalidMatch},
		{"blank name", func(in *MatchInput) { in.Name = "  " }, ErrInvalidMatch},
		{"bad sport", func(in *MatchInput) { in.Sport = "volei" }, ErrInvalidMatch},
		{"bad time", func(in *MatchInput) { in.Time = "25:00" }, ErrInvalidMatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.edit(&in)
			if _, err := f.svc.Matches.Create(ctx, "u1", in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	m, err := f.svc.Matches.Create(ctx, "ghost", base)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.CreatorName != AnonymousName || m.ID == "" {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestMatchOwnership(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "boss", "Chefe")
	m := f.match(t, "boss", 10)

	in := MatchInput{Name: "Pelada 2", Date: "2030-06-11", Time: "19:00", Location: "Quadra", Sport: model.SportFutsal, Kind: "Amistoso", TotalSlots: 12}
	if _, err := f.svc.Matches.Update(ctx, "intruder", m.ID, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden update, got %v", err)
	}
	if err := f.svc.Matches.Delete(ctx, "intruder", m.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}

	updated, err := f.svc.Matches.Update(ctx, "boss", m.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Pelada 2" || !updated.UpdatedAt.Equal(testNow) {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "boss", MatchID: m.ID, Position: "Goleiro"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "p1", MatchID: m.ID, Position: "Fixo"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	in.TotalSlots = 1
	if _, err := f.svc.Matches.Update(ctx, "boss", m.ID, in); !errors.Is(err, ErrSlotsBelowRoster) {
		t.Fatalf("expected slots below roster, got %v", err)
	}

	if err := f.svc.Matches.Delete(ctx, "boss", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.repo.GetRegistration(ctx, m.ID, "p1"); !errors.Is(err, repo.ErrRegistrationNotFound) {
		t.Fatalf("players must go with the match, got %v", err)
	}
}

func TestListMatchesFilters(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	mk := func(date, location, kind string) string {
		m, err := f.svc.Matches.Create(ctx, "c", MatchInput{
			Name: "M", Date: date, Time: "20:00", Location: location, Sport: model.SportSociety, Kind: kind, TotalSlots: 12,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return m.ID
	}
	a := mk("2030-06-01", "Arena Norte", "Amistoso")
	b := mk("2030-06-05", "arena sul", "Campeonato")
	c := mk("2030-06-03", "Clube", "Amistoso")

	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "v", MatchID: c, Position: "Goleiro"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	all, err := f.svc.Matches.List(ctx, "v", Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all.Matches) != 3 || all.Matches[0].ID != a || all.Matches[1].ID != c || all.Matches[2].ID != b {
		t.Fatalf("unexpected order %+v", all.Matches)
	}
	if len(all.Carousel) != 3 {
		t.Fatalf("carousel expected without filters, got %d", len(all.Carousel))
	}
	if !all.Matches[1].Registered || all.Matches[1].Action.Label != "Inscrito" {
		t.Fatalf("registered card not flagged: %+v", all.Matches[1])
	}

	byLoc, _ := f.svc.Matches.List(ctx, "v", Filter{Location: "ARENA"})
	if len(byLoc.Matches) != 2 || byLoc.Carousel != nil {
		t.Fatalf("location filter: %+v", byLoc)
	}
	byKind, _ := f.svc.Matches.List(ctx, "v", Filter{Kind: "Campeonato"})
	if len(byKind.Matches) != 1 || byKind.Matches[0].ID != b {
		t.Fatalf("kind filter: %+v", byKind)
	}
	byDate, _ := f.svc.Matches.List(ctx, "v", Filter{Date: "2030-06-04"})
	if len(byDate.Matches) != 1 || byDate.Matches[0].ID != b {
		t.Fatalf("date filter: %+v", byDate)
	}
	past, _ := f.svc.Matches.List(ctx, "v", Filter{Date: "2020-01-01"})
	if len(past.Matches) != 3 {
		t.Fatalf("past date filter must clamp to today, got %d", len(past.Matches))
	}
}

func TestRegisterLifecycle(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana")
	m := f.match(t, "boss", 10)

	sub := Submission{UserID: "ana", MatchID: m.ID, Nickname: "Aninha", Position: "Goleiro"}
	reg, name, err := f.svc.Registrations.Register(ctx, sub)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if name != "Pelada" || reg.Name != "Ana" || reg.Age != 30 || !reg.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected registration %+v %s", reg, name)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, sub); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	sub.Edit, sub.Position, sub.Nickname, sub.Name = true, "Pivô", "Ana P", "Outro Nome"
	if _, _, err := f.svc.Registrations.Register(ctx, sub); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, _ := f.repo.GetRegistration(ctx, m.ID, "ana")
	if got.Position != "Pivô" || got.Nickname != "Ana P" || got.Name != "Ana" {
		t.Fatalf("edit must change only nickname and position: %+v", got)
	}

	form, err := f.svc.Registrations.Form(ctx, "ana", m.ID, true)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if form.Position != "Pivô" || !form.CanSubmit {
		t.Fatalf("unexpected form %+v", form)
	}

	regs, err := f.svc.Registrations.RegisteredMatches(ctx, "ana")
	if err != nil || len(regs) != 1 || regs[0].Position != "Pivô" {
		t.Fatalf("registered matches: %+v %v", regs, err)
	}

	if err := f.svc.Registrations.Cancel(ctx, "ana", m.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.svc.Registrations.Cancel(ctx, "ana", m.ID); !errors.Is(err, repo.ErrRegistrationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "ana", MatchID: m.ID, Edit: true, Position: "Fixo"}); !errors.Is(err, repo.ErrRegistrationNotFound) {
		t.Fatalf("edit without registration: %v", err)
	}
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	m := f.match(t, "boss", 5)

	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "a", MatchID: m.ID}); !errors.Is(err, slots.ErrPositionRequired) {
		t.Fatalf("expected position required, got %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "a", MatchID: m.ID, Position: "Zagueiro"}); err == nil {
		t.Fatal("expected unknown position error")
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "a", MatchID: m.ID, Position: "Goleiro"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "b", MatchID: m.ID, Position: "Goleiro"}); !errors.Is(err, slots.ErrPositionFull) {
		t.Fatalf("expected position full, got %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "a", MatchID: m.ID, Edit: true, Position: "Goleiro"}); err != nil {
		t.Fatalf("keeping own position in edit: %v", err)
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "x", MatchID: "missing", Position: "Goleiro"}); !errors.Is(err, repo.ErrMatchNotFound) {
		t.Fatalf("expected match not found, got %v", err)
	}
}

func TestRemovePlayer(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	m := f.match(t, "boss", 10)
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "p1", MatchID: m.ID, Position: "Fixo"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := f.svc.Registrations.RemovePlayer(ctx, "boss", m.ID, "boss"); !errors.Is(err, ErrCannotRemoveSelf) {
		t.Fatalf("expected self removal error, got %v", err)
	}
	if err := f.svc.Registrations.RemovePlayer(ctx, "p2", m.ID, "p1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Registrations.RemovePlayer(ctx, "boss", m.ID, "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	n := f.notifier.last()
	if n.UserID != "p1" || n.Message != "Você foi removido da partida \"Pelada\" pelo organizador." || n.ID == "" {
		t.Fatalf("unexpected notification %+v", n)
	}
	stored, err := f.repo.ListNotifications(ctx, "p1", 10)
	if err != nil || len(stored) != 1 {
		t.Fatalf("notification not stored: %v %v", stored, err)
	}
}

func TestTransactionalGuardHoldsLimit(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			f := newFixtureWith(t, b.open(t), GuardTransactional, nil)
			ctx := context.Background()
			m := f.match(t, "boss", 10)
			limit := slots.PositionLimit(model.SportFutsal, 10)

			const workers = 12
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ok  int
				bad []error
			)
			for i := 0; i < workers; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, err := f.svc.Registrations.Register(ctx, Submission{
						UserID: fmt.Sprintf("u%02d", i), MatchID: m.ID, Position: "Goleiro",
					})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						ok++
						return
					}
					bad = append(bad, err)
				}()
			}
			wg.Wait()

			if ok != limit {
				t.Fatalf("expected exactly %d goalkeepers, got %d", limit, ok)
			}
			for _, err := range bad {
				if !errors.Is(err, slots.ErrPositionFull) && !errors.Is(err, slots.ErrSlotTaken) {
					t.Fatalf("unexpected rejection %v", err)
				}
			}
			players, err := f.repo.ListRegistrations(ctx, m.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(players) != limit {
				t.Fatalf("stored roster has %d players, want %d", len(players), limit)
			}
		})
	}
}

func TestMatchEditsSerializeWithRegistrations(t *testing.T) {
	positions := model.SportFutsal.Positions()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			f := newFixtureWith(t, b.open(t), GuardTransactional, nil)
			ctx := context.Background()
			m := f.match(t, "boss", 10)
			shrunk := MatchInput{Name: "Pelada", Date: "2030-06-10", Time: "20:00", Location: "Quadra Central", Sport: model.SportFutsal, Kind: "Amistoso", TotalSlots: 3}

			var wg sync.WaitGroup
			for i := 0; i < 6; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, _ = f.svc.Registrations.Register(ctx, Submission{
						UserID: fmt.Sprintf("p%d", i), MatchID: m.ID, Position: positions[i%len(positions)],
					})
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.svc.Matches.Update(ctx, "boss", m.ID, shrunk)
			}()
			wg.Wait()

			got, err := f.repo.GetMatch(ctx, m.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			players, err := f.repo.ListRegistrations(ctx, m.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(players) > got.TotalSlots {
				t.Fatalf("%d players stored for %d slots", len(players), got.TotalSlots)
			}

			m2 := f.match(t, "boss", 10)
			for i := 0; i < 6; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, err := f.svc.Registrations.Register(ctx, Submission{
						UserID: fmt.Sprintf("q%d", i), MatchID: m2.ID, Position: positions[i%len(positions)],
					})
					if err != nil && !errors.Is(err, repo.ErrMatchNotFound) && !errors.Is(err, slots.ErrSlotTaken) {
						t.Errorf("unexpected register error: %v", err)
					}
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := f.svc.Matches.Delete(ctx, "boss", m2.ID); err != nil {
					t.Errorf("delete: %v", err)
				}
			}()
			wg.Wait()

			left, err := f.repo.ListRegistrations(ctx, m2.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(left) != 0 {
				t.Fatalf("%d registrations outlived their match", len(left))
			}
		})
	}
}

func TestBestEffortGuardCanOverbook(t *testing.T) {
	f := newFixture(t, GuardBestEffort, nil)
	ctx := context.Background()
	m := f.match(t, "boss", 5)
	r := f.svc.Registrations

	// Both registrants read the roster before either writes.
	var regA, regB model.Registration
	wa, err := r.prepare(ctx, m.ID, "a", r.decideRegister(Submission{UserID: "a", MatchID: m.ID, Position: "Goleiro"}, nil, &regA))
	if err != nil {
		t.Fatalf("prepare a: %v", err)
	}
	wb, err := r.prepare(ctx, m.ID, "b", r.decideRegister(Submission{UserID: "b", MatchID: m.ID, Position: "Goleiro"}, nil, &regB))
	if err != nil {
		t.Fatalf("prepare b: %v", err)
	}
	if err := f.repo.Commit(ctx, wa...); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if err := f.repo.Commit(ctx, wb...); err != nil {
		t.Fatalf("commit b: %v", err)
	}

	players, _ := f.repo.ListRegistrations(ctx, m.ID)
	if len(players) != 2 {
		t.Fatalf("expected the race to over-book to 2 goalkeepers, got %d", len(players))
	}
}

func TestFriendshipProtocol(t *testing.T) {
	f := newFixture(t, GuardTransactional, onlineSet{"bia": true})
	ctx := context.Background()
	f.user(t, "ana", "Ana")
	f.user(t, "bia", "Bia")

	if err := f.svc.Friends.SendRequest(ctx, "ana", "ana"); !errors.Is(err, ErrSelfFriendship) {
		t.Fatalf("expected self friendship error, got %v", err)
	}
	if err := f.svc.Friends.SendRequest(ctx, "ana", "bia"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n := f.notifier.last(); n.UserID != "bia" || n.Message != "Ana te enviou um pedido de amizade." {
		t.Fatalf("unexpected notification %+v", n)
	}
	if err := f.svc.Friends.SendRequest(ctx, "ana", "bia"); !errors.Is(err, ErrFriendshipExists) {
		t.Fatalf("expected existing friendship, got %v", err)
	}
	if err := f.svc.Friends.Accept(ctx, "ana", "bia"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("sender cannot accept own request, got %v", err)
	}

	reqs, err := f.svc.Friends.Requests(ctx, "bia")
	if err != nil || len(reqs) != 1 || reqs[0].UserID != "ana" {
		t.Fatalf("requests: %+v %v", reqs, err)
	}

	if err := f.svc.Friends.Accept(ctx, "bia", "ana"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if n := f.notifier.last(); n.UserID != "ana" || n.Message != "Bia aceitou seu pedido de amizade!" {
		t.Fatalf("unexpected notification %+v", n)
	}
	for _, pair := range [][2]string{{"ana", "bia"}, {"bia", "ana"}} {
		fs, err := f.repo.GetFriendship(ctx, pair[0], pair[1])
		if err != nil || fs.Status != model.FriendAccepted {
			t.Fatalf("%v not mirrored: %+v %v", pair, fs, err)
		}
	}

	online, err := f.svc.Friends.Online(ctx, "ana")
	if err != nil || len(online) != 1 || !online[0].Online {
		t.Fatalf("online friends: %+v %v", online, err)
	}

	if err := f.svc.Friends.Remove(ctx, "ana", "bia"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := f.notifier.last(); n.UserID != "bia" || n.Message != "Ana desfez a amizade com você." {
		t.Fatalf("unexpected notification %+v", n)
	}
	if _, err := f.repo.GetFriendship(ctx, "bia", "ana"); !errors.Is(err, repo.ErrFriendshipNotFound) {
		t.Fatalf("mirrored record must be gone, got %v", err)
	}
}

func TestAcceptKeepsRequestTime(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana")
	f.user(t, "bia", "Bia")
	if err := f.svc.Friends.SendRequest(ctx, "ana", "bia"); err != nil {
		t.Fatalf("send: %v", err)
	}

	f.svc.Friends.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	if err := f.svc.Friends.Accept(ctx, "bia", "ana"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, pair := range [][2]string{{"ana", "bia"}, {"bia", "ana"}} {
		fs, err := f.repo.GetFriendship(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("%v: %v", pair, err)
		}
		if fs.Status != model.FriendAccepted || !fs.Timestamp.Equal(testNow) {
			t.Fatalf("%v: accept must only flip the status, got %+v", pair, fs)
		}
	}
}

func TestDeclineSendsNothing(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana")
	f.user(t, "bia", "Bia")
	if err := f.svc.Friends.SendRequest(ctx, "ana", "bia"); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := len(f.notifier.notes)
	if err := f.svc.Friends.Decline(ctx, "bia", "ana"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if len(f.notifier.notes) != sent {
		t.Fatal("decline must not notify")
	}
	if _, err := f.repo.GetFriendship(ctx, "ana", "bia"); !errors.Is(err, repo.ErrFriendshipNotFound) {
		t.Fatalf("sender record must be gone, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana Souza")
	f.user(t, "ane", "Anelise")
	f.user(t, "bia", "Bia")

	if _, err := f.svc.Friends.Search(ctx, "ana", " an "); !errors.Is(err, ErrSearchTooShort) {
		t.Fatalf("expected short term error, got %v", err)
	}
	if err := f.svc.Friends.SendRequest(ctx, "ana", "ane"); err != nil {
		t.Fatalf("send: %v", err)
	}
	res, err := f.svc.Friends.Search(ctx, "ana", "ANE")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].UserID != "ane" || res[0].Action.Label != "Pendente" {
		t.Fatalf("unexpected results %+v", res)
	}
	self, _ := f.svc.Friends.Search(ctx, "ana", "ana")
	if len(self) != 0 {
		t.Fatalf("caller must be excluded, got %+v", self)
	}
}

func TestNotificationsAndInvites(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana")
	f.user(t, "bia", "Bia")
	f.user(t, "caio", "Caio")
	m := f.match(t, "ana", 10)

	if err := f.svc.Notifications.Invite(ctx, "ana", m.ID, "bia"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("expected not friends, got %v", err)
	}
	for _, id := range []string{"bia", "caio"} {
		if err := f.svc.Friends.SendRequest(ctx, "ana", id); err != nil {
			t.Fatalf("send: %v", err)
		}
		if err := f.svc.Friends.Accept(ctx, id, "ana"); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	if _, _, err := f.svc.Registrations.Register(ctx, Submission{UserID: "caio", MatchID: m.ID, Position: "Fixo"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cands, err := f.svc.Notifications.InviteCandidates(ctx, "ana", m.ID)
	if err != nil || len(cands) != 2 {
		t.Fatalf("candidates: %+v %v", cands, err)
	}
	for _, c := range cands {
		if c.InMatch != (c.UserID == "caio") {
			t.Fatalf("wrong in-match flag %+v", c)
		}
	}

	if err := f.svc.Notifications.Invite(ctx, "ana", m.ID, "caio"); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("expected already in match, got %v", err)
	}
	if err := f.svc.Notifications.Invite(ctx, "ana", m.ID, "bia"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	n := f.notifier.last()
	if n.Type != model.NotificationMatchInvite || n.MatchID != m.ID || n.Message != "Ana te convidou para a partida \"Pelada\"!" {
		t.Fatalf("unexpected invite %+v", n)
	}

	list, err := f.svc.Notifications.List(ctx, "bia")
	if err != nil || !list.HasUnread || list.Items[0].Action == nil {
		t.Fatalf("list: %+v %v", list, err)
	}

	if err := f.svc.Notifications.Delete(ctx, "caio", n.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	ids := make([]string, 0, len(list.Items))
	for _, it := range list.Items {
		ids = append(ids, it.ID)
	}
	if err := f.svc.Notifications.MarkRead(ctx, "bia", append(ids, "missing")); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, _ = f.svc.Notifications.List(ctx, "bia")
	if list.HasUnread {
		t.Fatal("all notifications should be read")
	}
	if err := f.svc.Notifications.Delete(ctx, "bia", n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestProfiles(t *testing.T) {
	f := newFixture(t, GuardTransactional, nil)
	ctx := context.Background()
	f.user(t, "ana", "Ana")

	p, err := f.svc.Profiles.Update(ctx, "ana", ProfileInput{Name: " Ana Lima ", Phone: "11 9999-0000", BirthDate: "1990-06-02", Position: "Pivô"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Name != "Ana Lima" || p.Age != 39 || p.FirstName != "Ana" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if err := f.svc.Profiles.SetTheme(ctx, "ana", "blue"); !errors.Is(err, ErrInvalidTheme) {
		t.Fatalf("expected theme error, got %v", err)
	}
	if err := f.svc.Profiles.SetTheme(ctx, "ana", model.ThemeLight); err != nil {
		t.Fatalf("theme: %v", err)
	}
	if _, err := f.svc.Profiles.Upload(ctx, "ana", "image/png"); err == nil {
		t.Fatal("upload without uploader must fail")
	}

	d, err := f.svc.Dashboard.Load(ctx, "ana")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Profile.Theme != model.ThemeLight || d.Profile.Name != "Ana Lima" {
		t.Fatalf("unexpected dashboard profile %+v", d.Profile)
	}
}
