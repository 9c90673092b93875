// Package service holds the MatchScore use cases: match editing, roster
// registration, friendships, notifications, profiles and the dashboard.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
)

var (
	ErrForbidden         = errors.New("operation not allowed for this user")
	ErrAlreadyRegistered = errors.New("already registered in this match")
	ErrCannotRemoveSelf  = errors.New("the organizer cannot remove themself")
	ErrInvalidMatch      = errors.New("invalid match data")
	ErrPastDate          = errors.New("match date is in the past")
	ErrSlotsBelowRoster  = errors.New("total slots below registered players")
	ErrSearchTooShort    = errors.New("search term must have at least 3 characters")
	ErrSelfFriendship    = errors.New("cannot send a friend request to yourself")
	ErrFriendshipExists  = errors.New("friendship already exists")
	ErrNoPendingRequest  = errors.New("no pending friend request")
	ErrNotFriends        = errors.New("users are not friends")
	ErrAlreadyInMatch    = errors.New("friend already registered in this match")
)

const AnonymousName = "Usuário Anônimo"

// GuardMode selects how roster writes are protected against concurrent registrants.
type GuardMode string

const (
	// GuardTransactional reads, checks and writes the roster in one store transaction.
	GuardTransactional GuardMode = "transactional"
	// GuardBestEffort reads the roster, checks, then writes separately. Concurrent
	// registrants may over-book a position.
	GuardBestEffort GuardMode = "best_effort"
)

func ParseGuard(s string) (GuardMode, error) {
	switch GuardMode(s) {
	case "", GuardTransactional:
		return GuardTransactional, nil
	case GuardBestEffort:
		return GuardBestEffort, nil
	}
	return "", fmt.Errorf("unknown registration guard %q", s)
}

type Notifier interface {
	Notify(ctx context.Context, notes ...model.Notification)
}

type Presence interface {
	Online(userID string) bool
}

type Deps struct {
	Repo     repo.Repository
	Log      *zerolog.Logger
	Notifier Notifier
	Presence Presence
	Media    media.Store
	Uploader media.Uploader
	Guard    GuardMode
	// Location decides what "today" is for date filters. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	Matches       *Matches
	Registrations *Registrations
	Friends       *Friends
	Notifications *Notifications
	Profiles      *Profiles
	Dashboard     *Dashboard
}

func New(d Deps) (*Service, error) {
	if d.Repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if d.Media == nil {
		d.Media = media.NewInline(0)
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	guard, err := ParseGuard(string(d.Guard))
	if err != nil {
		return nil, err
	}

	c := &core{
		repo:     d.Repo,
		log:      d.Log,
		notifier: d.Notifier,
		presence: d.Presence,
		now:      d.Now,
		loc:      d.Location,
	}
	s := &Service{
		Matches:       &Matches{core: c, media: d.Media},
		Registrations: &Registrations{core: c, guard: guard},
		Friends:       &Friends{core: c},
		Notifications: &Notifications{core: c},
		Profiles:      &Profiles{core: c, media: d.Media, uploader: d.Uploader},
	}
	s.Dashboard = &Dashboard{core: c, svc: s}
	return s, nil
}

// maxParallelReads bounds the fan-out of per-item reads.
const maxParallelReads = 8

func newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	return g, gctx
}

type core struct {
	repo     repo.Repository
	log      *zerolog.Logger
	notifier Notifier
	presence Presence
	now      func() time.Time
	loc      *time.Location
}

func (c *core) today() string {
	return c.now().In(c.loc).Format(model.DateLayout)
}

func (c *core) online(userID string) bool {
	return c.presence != nil && c.presence.Online(userID)
}

// displayName falls back to AnonymousName for users without a profile name.
func (c *core) displayName(ctx context.Context, userID string) (string, error) {
	u, err := c.repo.GetUser(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return AnonymousName, nil
	}
	if err != nil {
		return "", err
	}
	if u.Name == "" {
		return AnonymousName, nil
	}
	return u.Name, nil
}

// commitNotifying commits writes together with the notifications and, once
// stored, hands the notifications to the notifier.
func (c *core) commitNotifying(ctx context.Context, writes []docstore.Write, notes ...*model.Notification) error {
	for _, n := range notes {
		w, err := c.repo.NewNotification(n)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	if err := c.repo.Commit(ctx, writes...); err != nil {
		return err
	}
	c.notify(ctx, notes...)
	return nil
}

func (c *core) notify(ctx context.Context, notes ...*model.Notification) {
	if c.notifier == nil || len(notes) == 0 {
		return
	}
	out := make([]model.Notification, 0, len(notes))
	for _, n := range notes {
		out = append(out, *n)
	}
	c.notifier.Notify(ctx, out...)
}

// registeredSet returns the ids of matches the user is registered in.
func (c *core) registeredSet(ctx context.Context, userID string) (map[string]bool, error) {
	regs, err := c.repo.RegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(regs))
	for _, r := range regs {
		set[r.MatchID] = true
	}
	return set, nil
}

// photos loads the profile photo of each user concurrently. Missing profiles map to "".
func (c *core) photos(ctx context.Context, userIDs []string) (map[string]string, error) {
	urls := make([]string, len(userIDs))
	g, gctx := newGroup(ctx)
	for i, id := range userIDs {
		i, id := i, id
		g.Go(func() error {
			u, err := c.repo.GetUser(gctx, id)
			if errors.Is(err, repo.ErrUserNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			urls[i] = u.PhotoURL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(userIDs))
	for i, id := range userIDs {
		out[id] = urls[i]
	}
	return out, nil
}
