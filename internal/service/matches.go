package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

type Matches struct {
	*core
	media media.Store
}

type MatchInput struct {
	Name       string
	Date       string
	Time       string
	Location   string
	Sport      model.Sport
	Kind       string
	TotalSlots int
	// Image is an optional data URL or an already hosted image URL.
	Image string
}

type Filter struct {
	Date     string
	Location string
	Kind     string
}

func (f Filter) empty() bool {
	return f.Date == "" && strings.TrimSpace(f.Location) == "" && f.Kind == ""
}

func (s *Matches) validate(in *MatchInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.Kind = strings.TrimSpace(in.Kind)
	if in.Name == "" || in.Location == "" || in.Kind == "" || in.TotalSlots <= 0 || !in.Sport.Valid() {
		return ErrInvalidMatch
	}
	if _, err := time.Parse(model.DateLayout, in.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidMatch, in.Date)
	}
	if _, err := time.Parse(model.TimeLayout, in.Time); err != nil {
		return fmt.Errorf("%w: time %q", ErrInvalidMatch, in.Time)
	}
	if in.Date < s.today() {
		return ErrPastDate
	}
	return nil
}

func (s *Matches) saveImage(ctx context.Context, image string) (string, error) {
	if image == "" {
		return "", nil
	}
	url, err := s.media.Save(ctx, "matches/"+uuid.NewString(), image)
	if err != nil {
		return "", fmt.Errorf("failed to save match image: %w", err)
	}
	return url, nil
}

func (s *Matches) Create(ctx context.Context, creatorID string, in MatchInput) (*model.Match, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	creatorName, err := s.displayName(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	imageURL, err := s.saveImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	m := &model.Match{
		Name:        in.Name,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Sport:       in.Sport,
		Kind:        in.Kind,
		TotalSlots:  in.TotalSlots,
		CreatorID:   creatorID,
		CreatorName: creatorName,
		ImageURL:    imageURL,
	}
	if _, err := s.repo.CreateMatch(ctx, m); err != nil {
		return nil, err
	}
	s.log.Info().Str("match_id", m.ID).Str("creator_id", creatorID).Msg("match created")
	return m, nil
}

// owned loads the match and checks that userID created it.
func (s *Matches) owned(ctx context.Context, userID, matchID string) (*model.Match, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.CreatorID != userID {
		return nil, ErrForbidden
	}
	return m, nil
}

// Update replaces the editable fields of a match. The image is kept when none
// is given. Ownership and the roster size are checked again inside the roster
// transaction so a concurrent registration cannot slip under the new slot count.
func (s *Matches) Update(ctx context.Context, creatorID, matchID string, in MatchInput) (*model.Match, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	m, err := s.owned(ctx, creatorID, matchID)
	if err != nil {
		return nil, err
	}

	fields := docstore.Fields{
		"name":       in.Name,
		"date":       in.Date,
		"time":       in.Time,
		"location":   in.Location,
		"sport":      string(in.Sport),
		"kind":       in.Kind,
		"totalSlots": in.TotalSlots,
		"updatedAt":  s.now().UTC(),
	}
	if in.Image != "" && in.Image != m.ImageURL {
		url, err := s.saveImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		fields["imageUrl"] = url
	}

	err = s.repo.RosterTx(ctx, matchID, creatorID, func(ro *repo.Roster) ([]docstore.Write, error) {
		if ro.Match.CreatorID != creatorID {
			return nil, ErrForbidden
		}
		if in.TotalSlots < len(ro.Players) {
			return nil, fmt.Errorf("%w: %d registered", ErrSlotsBelowRoster, len(ro.Players))
		}
		m = ro.Match
		return []docstore.Write{s.repo.UpdateMatch(matchID, fields)}, nil
	})
	if err != nil {
		return nil, err
	}

	if url, ok := fields["imageUrl"].(string); ok {
		m.ImageURL = url
	}
	m.Name, m.Date, m.Time, m.Location = in.Name, in.Date, in.Time, in.Location
	m.Sport, m.Kind, m.TotalSlots = in.Sport, in.Kind, in.TotalSlots
	m.UpdatedAt = fields["updatedAt"].(time.Time)
	m.RosterRevision++
	s.log.Info().Str("match_id", matchID).Msg("match updated")
	return m, nil
}

// Delete removes the match and its roster in one roster transaction, so a
// registration racing the delete is either removed with it or rejected.
func (s *Matches) Delete(ctx context.Context, creatorID, matchID string) error {
	err := s.repo.RosterTx(ctx, matchID, creatorID, func(ro *repo.Roster) ([]docstore.Write, error) {
		if ro.Match.CreatorID != creatorID {
			return nil, ErrForbidden
		}
		return s.repo.DeleteMatch(ro), nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("match_id", matchID).Msg("match deleted")
	return nil
}

func (s *Matches) Details(ctx context.Context, viewerID, matchID string) (view.MatchDetails, error) {
	var (
		m          *model.Match
		players    []model.Registration
		registered map[string]bool
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
		registered, err = s.registeredSet(gctx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return view.MatchDetails{}, err
	}
	return view.NewMatchDetails(m, players, viewerID, registered), nil
}

// List returns upcoming matches from max(filter date, today) on. The carousel
// is only filled when no filter is applied.
func (s *Matches) List(ctx context.Context, viewerID string, f Filter) (view.MatchList, error) {
	from := s.today()
	if f.Date > from {
		from = f.Date
	}

	var (
		matches    []model.Match
		registered map[string]bool
	)
	g, gctx := newGroup(ctx)
	g.Go(func() (err error) {
		matches, err = s.repo.ListMatchesFrom(gctx, from, f.Kind)
		return err
	})
	g.Go(func() (err error) {
		registered, err = s.registeredSet(gctx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return view.MatchList{}, err
	}

	if loc := strings.ToLower(strings.TrimSpace(f.Location)); loc != "" {
		kept := matches[:0]
		for _, m := range matches {
			if strings.Contains(strings.ToLower(m.Location), loc) {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	l := view.MatchList{Matches: view.MatchCards(matches, registered)}
	if f.empty() {
		l.Carousel = view.Carousel(l.Matches)
	}
	return l, nil
}

// Mine lists the creator's matches dated today or later.
func (s *Matches) Mine(ctx context.Context, creatorID string) ([]view.MatchCard, error) {
	matches, err := s.repo.ListMatchesByCreator(ctx, creatorID, s.today())
	if err != nil {
		return nil, err
	}
	registered, err := s.registeredSet(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	return view.MatchCards(matches, registered), nil
}

