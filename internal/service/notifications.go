package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

const NotificationPageSize = 20

type Notifications struct {
	*core
}

func (s *Notifications) List(ctx context.Context, userID string) (view.NotificationList, error) {
	notes, err := s.repo.ListNotifications(ctx, userID, NotificationPageSize)
	if err != nil {
		return view.NotificationList{}, err
	}
	return view.NewNotificationList(notes, s.loc), nil
}

// MarkRead flags the given notifications as read. Ids that are missing or
// belong to someone else are ignored.
func (s *Notifications) MarkRead(ctx context.Context, userID string, ids []string) error {
	owned := make([]bool, len(ids))
	g, gctx := newGroup(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			n, err := s.repo.GetNotification(gctx, id)
			if errors.Is(err, repo.ErrNotificationNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			owned[i] = n.UserID == userID && !n.IsRead
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	writes := make([]docstore.Write, 0, len(ids))
	for i, id := range ids {
		if owned[i] {
			writes = append(writes, s.repo.MarkNotificationRead(id))
		}
	}
	return s.repo.Commit(ctx, writes...)
}

func (s *Notifications) Delete(ctx context.Context, userID, id string) error {
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Commit(ctx, s.repo.DeleteNotification(id))
}

// InviteCandidates lists the user's friends, flagging those already registered in the match.
func (s *Notifications) InviteCandidates(ctx context.Context, userID, matchID string) ([]view.InviteCandidate, error) {
	var (
		friends []model.Friendship
		players []model.Registration
	)
	g, gctx := newGroup(ctx)
	g.Go(func() error {
		_, err := s.repo.GetMatch(gctx, matchID)
		return err
	})
	g.Go(func() (err error) {
		friends, err = s.repo.ListFriendships(gctx, userID, model.FriendAccepted)
		return err
	})
	g.Go(func() (err error) {
		players, err = s.repo.ListRegistrations(gctx, matchID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inMatch := make(map[string]bool, len(players))
	for _, p := range players {
		inMatch[p.UserID] = true
	}
	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.FriendID)
	}
	photos, err := s.photos(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]view.InviteCandidate, 0, len(friends))
	for _, f := range friends {
		out = append(out, view.NewInviteCandidate(f, photos[f.FriendID], inMatch[f.FriendID]))
	}
	return out, nil
}

// Invite sends a match_invite notification to an accepted friend who is not yet in the match.
func (s *Notifications) Invite(ctx context.Context, senderID, matchID, friendID string) error {
	f, err := s.repo.GetFriendship(ctx, senderID, friendID)
	if errors.Is(err, repo.ErrFriendshipNotFound) {
		return ErrNotFriends
	}
	if err != nil {
		return err
	}
	if f.Status != model.FriendAccepted {
		return ErrNotFriends
	}

	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	_, err = s.repo.GetRegistration(ctx, matchID, friendID)
	if err == nil {
		return ErrAlreadyInMatch
	}
	if !errors.Is(err, repo.ErrRegistrationNotFound) {
		return err
	}

	name, err := s.displayName(ctx, senderID)
	if err != nil {
		return err
	}
	err = s.commitNotifying(ctx, nil, &model.Notification{
		UserID:  friendID,
		Message: fmt.Sprintf("%s te convidou para a partida \"%s\"!", name, m.Name),
		Type:    model.NotificationMatchInvite,
		MatchID: matchID,
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("match_id", matchID).Str("sender_id", senderID).Str("friend_id", friendID).Msg("match invite sent")
	return nil
}
