package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/slots"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

type Registrations struct {
	*core
	guard GuardMode
}

type Submission struct {
	UserID   string
	MatchID  string
	Edit     bool
	Name     string
	Nickname string
	Position string
}

// Form loads the match, its roster, the profile and, when editing, the user's
// own registration in parallel and renders the registration form.
func (s *Registrations) Form(ctx context.Context, userID, matchID string, edit bool) (view.RegistrationForm, error) {
	var (
		m       *model.Match
		players []model.Registration
		profile *model.UserProfile
		own     *model.Registration
	)
	g, gctx := newGroup(ctx)
	g.Go(func() (err error) {
		m, err = s.repo.GetMatch(gctx, matchID)
		return err
	})
	g.Go(func() (err error) {
		players, err = s.repo.ListRegistrations(gctx, matchID)
		return err
	})
	g.Go(func() (err error) {
		profile, err = s.repo.GetUser(gctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil
		}
		return err
	})
	if edit {
		g.Go(func() (err error) {
			own, err = s.repo.GetRegistration(gctx, matchID, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return view.RegistrationForm{}, err
	}

	a := slots.Evaluate(m, players, userID, edit)
	return view.NewRegistrationForm(m, a, profile, own, s.now().In(s.loc)), nil
}

// mutateRoster runs decide against the current roster and commits its writes,
// guarded according to the configured mode.
func (s *Registrations) mutateRoster(ctx context.Context, matchID, userID string, decide func(ro *repo.Roster) ([]docstore.Write, error)) error {
	if s.guard == GuardBestEffort {
		writes, err := s.prepare(ctx, matchID, userID, decide)
		if err != nil {
			return err
		}
		return s.repo.Commit(ctx, writes...)
	}
	err := s.repo.RosterTx(ctx, matchID, userID, decide)
	if errors.Is(err, docstore.ErrConflict) {
		return fmt.Errorf("%w: %w", slots.ErrSlotTaken, err)
	}
	return err
}

// prepare is the unguarded read-and-check half of a best-effort roster write.
func (s *Registrations) prepare(ctx context.Context, matchID, userID string, decide func(ro *repo.Roster) ([]docstore.Write, error)) ([]docstore.Write, error) {
	ro, err := s.repo.LoadRoster(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	return decide(ro)
}

func (s *Registrations) decideRegister(sub Submission, profile *model.UserProfile, out *model.Registration) func(ro *repo.Roster) ([]docstore.Write, error) {
	return func(ro *repo.Roster) ([]docstore.Write, error) {
		if sub.Edit && ro.Own == nil {
			return nil, repo.ErrRegistrationNotFound
		}
		if !sub.Edit && ro.Own != nil {
			return nil, ErrAlreadyRegistered
		}

		a := slots.Evaluate(ro.Match, ro.Players, sub.UserID, sub.Edit)
		if err := a.Check(sub.Position); err != nil {
			return nil, err
		}

		if sub.Edit {
			*out = *ro.Own
			out.Nickname = sub.Nickname
			out.Position = sub.Position
			return []docstore.Write{s.repo.UpdateRegistration(sub.MatchID, sub.UserID, docstore.Fields{
				"nickname": sub.Nickname,
				"position": sub.Position,
			})}, nil
		}

		*out = model.Registration{
			MatchID:   sub.MatchID,
			UserID:    sub.UserID,
			Name:      strings.TrimSpace(sub.Name),
			Nickname:  sub.Nickname,
			Position:  sub.Position,
			CreatedAt: s.now().UTC(),
		}
		if profile != nil {
			if out.Name == "" {
				out.Name = profile.Name
			}
			out.Age = model.AgeOn(profile.BirthDate, s.now().In(s.loc))
			out.PhotoURL = profile.PhotoURL
		}
		w, err := s.repo.PutRegistration(out)
		if err != nil {
			return nil, err
		}
		return []docstore.Write{w}, nil
	}
}

// Register creates the user's registration, or in edit mode changes only its
// nickname and position. It returns the registration and the match name.
func (s *Registrations) Register(ctx context.Context, sub Submission) (*model.Registration, string, error) {
	profile, err := s.repo.GetUser(ctx, sub.UserID)
	if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
		return nil, "", err
	}

	var (
		reg       model.Registration
		matchName string
	)
	decide := s.decideRegister(sub, profile, &reg)
	err = s.mutateRoster(ctx, sub.MatchID, sub.UserID, func(ro *repo.Roster) ([]docstore.Write, error) {
		matchName = ro.Match.Name
		return decide(ro)
	})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, "", ErrAlreadyRegistered
	}
	if err != nil {
		return nil, "", err
	}

	s.log.Info().
		Str("match_id", sub.MatchID).
		Str("user_id", sub.UserID).
		Str("position", reg.Position).
		Bool("edit", sub.Edit).
		Msg("registration saved")
	return &reg, matchName, nil
}

func (s *Registrations) Cancel(ctx context.Context, userID, matchID string) error {
	err := s.mutateRoster(ctx, matchID, userID, func(ro *repo.Roster) ([]docstore.Write, error) {
		if ro.Own == nil {
			return nil, repo.ErrRegistrationNotFound
		}
		return []docstore.Write{s.repo.DeleteRegistration(matchID, userID)}, nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("match_id", matchID).Str("user_id", userID).Msg("registration canceled")
	return nil
}

// RemovePlayer lets the organizer drop a player, who is notified.
func (s *Registrations) RemovePlayer(ctx context.Context, creatorID, matchID, playerID string) error {
	if playerID == creatorID {
		return ErrCannotRemoveSelf
	}
	var note *model.Notification
	err := s.mutateRoster(ctx, matchID, playerID, func(ro *repo.Roster) ([]docstore.Write, error) {
		if ro.Match.CreatorID != creatorID {
			return nil, ErrForbidden
		}
		if ro.Own == nil {
			return nil, repo.ErrRegistrationNotFound
		}
		note = &model.Notification{
			UserID:  playerID,
			Message: fmt.Sprintf("Você foi removido da partida \"%s\" pelo organizador.", ro.Match.Name),
		}
		w, err := s.repo.NewNotification(note)
		if err != nil {
			return nil, err
		}
		return []docstore.Write{s.repo.DeleteRegistration(matchID, playerID), w}, nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, note)
	s.log.Info().Str("match_id", matchID).Str("player_id", playerID).Msg("player removed by organizer")
	return nil
}

// RegisteredMatches lists the user's registrations in matches dated today or later,
// skipping matches deleted since.
func (s *Registrations) RegisteredMatches(ctx context.Context, userID string) ([]view.RegisteredMatch, error) {
	regs, err := s.repo.RegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := make([]*model.Match, len(regs))
	g, gctx := newGroup(ctx)
	for i, reg := range regs {
		i, reg := i, reg
		g.Go(func() error {
			m, err := s.repo.GetMatch(gctx, reg.MatchID)
			if errors.Is(err, repo.ErrMatchNotFound) {
				return nil
			}
			matches[i] = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	today := s.today()
	out := make([]view.RegisteredMatch, 0, len(regs))
	for i, m := range matches {
		if m == nil || m.Date < today {
			continue
		}
		out = append(out, view.NewRegisteredMatch(*m, regs[i]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Card, out[j].Card
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Time < b.Time
	})
	return out, nil
}
