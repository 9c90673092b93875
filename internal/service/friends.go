package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

const (
	MinSearchLength = 3
	searchLimit     = 10
)

// Friends keeps both sides of every friendship in step: each change writes the
// caller's record and the mirrored record of the other user in one batch.
type Friends struct {
	*core
}

func (s *Friends) Search(ctx context.Context, userID, term string) ([]view.SearchResult, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if utf8.RuneCountInString(term) < MinSearchLength {
		return nil, ErrSearchTooShort
	}
	users, err := s.repo.SearchUsersByPrefix(ctx, term, searchLimit)
	if err != nil {
		return nil, err
	}
	kept := users[:0]
	for _, u := range users {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	users = kept

	relations := make([]model.FriendStatus, len(users))
	g, gctx := newGroup(ctx)
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			f, err := s.repo.GetFriendship(gctx, userID, u.ID)
			if errors.Is(err, repo.ErrFriendshipNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			relations[i] = f.Status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]view.SearchResult, 0, len(users))
	for i, u := range users {
		out = append(out, view.NewSearchResult(u, relations[i]))
	}
	return out, nil
}

// pair loads the caller's side of a friendship; a missing record yields nil.
func (s *Friends) pair(ctx context.Context, userID, friendID string) (*model.Friendship, error) {
	f, err := s.repo.GetFriendship(ctx, userID, friendID)
	if errors.Is(err, repo.ErrFriendshipNotFound) {
		return nil, nil
	}
	return f, err
}

func (s *Friends) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if senderID == receiverID {
		return ErrSelfFriendship
	}
	existing, err := s.pair(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrFriendshipExists, existing.Status)
	}
	receiver, err := s.repo.GetUser(ctx, receiverID)
	if err != nil {
		return err
	}
	senderName, err := s.displayName(ctx, senderID)
	if err != nil {
		return err
	}

	receiverName := receiver.Name
	if receiverName == "" {
		receiverName = AnonymousName
	}
	now := s.now().UTC()
	sent, err := s.repo.PutFriendship(&model.Friendship{
		OwnerID: senderID, FriendID: receiverID,
		Status: model.FriendPendingSent, FriendName: receiverName, Timestamp: now,
	})
	if err != nil {
		return err
	}
	received, err := s.repo.PutFriendship(&model.Friendship{
		OwnerID: receiverID, FriendID: senderID,
		Status: model.FriendPendingReceived, FriendName: senderName, Timestamp: now,
	})
	if err != nil {
		return err
	}

	err = s.commitNotifying(ctx, []docstore.Write{sent, received}, &model.Notification{
		UserID:  receiverID,
		Message: fmt.Sprintf("%s te enviou um pedido de amizade.", senderName),
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("sender_id", senderID).Str("receiver_id", receiverID).Msg("friend request sent")
	return nil
}

// pending returns the caller's received request from friendID.
func (s *Friends) pending(ctx context.Context, userID, friendID string) (*model.Friendship, error) {
	f, err := s.pair(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Status != model.FriendPendingReceived {
		return nil, ErrNoPendingRequest
	}
	return f, nil
}

func (s *Friends) Accept(ctx context.Context, userID, friendID string) error {
	if _, err := s.pending(ctx, userID, friendID); err != nil {
		return err
	}
	name, err := s.displayName(ctx, userID)
	if err != nil {
		return err
	}
	accepted := docstore.Fields{"status": string(model.FriendAccepted)}
	writes := []docstore.Write{
		s.repo.UpdateFriendship(userID, friendID, accepted),
		s.repo.UpdateFriendship(friendID, userID, accepted),
	}
	err = s.commitNotifying(ctx, writes, &model.Notification{
		UserID:  friendID,
		Message: fmt.Sprintf("%s aceitou seu pedido de amizade!", name),
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("friend_id", friendID).Msg("friend request accepted")
	return nil
}

// Decline drops a received request without notifying the sender.
func (s *Friends) Decline(ctx context.Context, userID, friendID string) error {
	if _, err := s.pending(ctx, userID, friendID); err != nil {
		return err
	}
	return s.repo.Commit(ctx,
		s.repo.DeleteFriendship(userID, friendID),
		s.repo.DeleteFriendship(friendID, userID),
	)
}

func (s *Friends) Remove(ctx context.Context, userID, friendID string) error {
	f, err := s.pair(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if f == nil || f.Status != model.FriendAccepted {
		return ErrNotFriends
	}
	name, err := s.displayName(ctx, userID)
	if err != nil {
		return err
	}
	writes := []docstore.Write{
		s.repo.DeleteFriendship(userID, friendID),
		s.repo.DeleteFriendship(friendID, userID),
	}
	err = s.commitNotifying(ctx, writes, &model.Notification{
		UserID:  friendID,
		Message: fmt.Sprintf("%s desfez a amizade com você.", name),
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("friend_id", friendID).Msg("friendship removed")
	return nil
}

func (s *Friends) rows(ctx context.Context, friends []model.Friendship) ([]view.FriendRow, error) {
	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.FriendID)
	}
	photos, err := s.photos(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]view.FriendRow, 0, len(friends))
	for _, f := range friends {
		out = append(out, view.NewFriendRow(f, photos[f.FriendID], s.online(f.FriendID)))
	}
	return out, nil
}

func (s *Friends) List(ctx context.Context, userID string) ([]view.FriendRow, error) {
	friends, err := s.repo.ListFriendships(ctx, userID, model.FriendAccepted)
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, friends)
}

// Requests lists received requests, newest first.
func (s *Friends) Requests(ctx context.Context, userID string) ([]view.FriendRow, error) {
	requests, err := s.repo.ListFriendships(ctx, userID, model.FriendPendingReceived)
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, requests)
}

// Online lists accepted friends with a live realtime connection.
func (s *Friends) Online(ctx context.Context, userID string) ([]view.FriendRow, error) {
	friends, err := s.repo.ListFriendships(ctx, userID, model.FriendAccepted)
	if err != nil {
		return nil, err
	}
	online := friends[:0]
	for _, f := range friends {
		if s.online(f.FriendID) {
			online = append(online, f)
		}
	}
	return s.rows(ctx, online)
}
