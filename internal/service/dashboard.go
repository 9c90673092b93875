package service

import (
	"context"
	"errors"

	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

type Dashboard struct {
	*core
	svc *Service
}

// Load gathers everything the home page shows with one parallel read per section.
func (s *Dashboard) Load(ctx context.Context, userID string) (view.Dashboard, error) {
	var d view.Dashboard
	g, gctx := newGroup(ctx)

	g.Go(func() error {
		u, err := s.repo.GetUser(gctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			u = &model.UserProfile{ID: userID, Name: AnonymousName}
		} else if err != nil {
			return err
		}
		d.Profile = view.NewProfile(u, s.now().In(s.loc))
		return nil
	})
	g.Go(func() error {
		l, err := s.svc.Matches.List(gctx, userID, Filter{})
		d.Carousel, d.Matches = l.Carousel, l.Matches
		return err
	})
	g.Go(func() (err error) {
		d.Registered, err = s.svc.Registrations.RegisteredMatches(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.MyMatches, err = s.svc.Matches.Mine(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Notifications, err = s.svc.Notifications.List(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Friends, err = s.svc.Friends.List(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Requests, err = s.svc.Friends.Requests(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return view.Dashboard{}, err
	}
	return d, nil
}
