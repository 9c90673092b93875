package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/model"
)

const (
	CollMatches       = "matches"
	CollPlayers       = "players"
	CollUsers         = "users"
	CollFriends       = "friends"
	CollNotifications = "notifications"
	CollCredentials   = "credentials"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrFriendshipNotFound   = errors.New("friendship not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrEmailTaken           = errors.New("email already registered")
)

type Repository interface {
	CreateMatch(ctx context.Context, m *model.Match) (string, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	UpdateMatch(id string, fields docstore.Fields) docstore.Write
	DeleteMatch(ro *Roster) []docstore.Write
	ListMatchesFrom(ctx context.Context, fromDate, kind string) ([]model.Match, error)
	ListMatchesByCreator(ctx context.Context, creatorID, fromDate string) ([]model.Match, error)

	GetRegistration(ctx context.Context, matchID, userID string) (*model.Registration, error)
	ListRegistrations(ctx context.Context, matchID string) ([]model.Registration, error)
	RegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error)
	LoadRoster(ctx context.Context, matchID, userID string) (*Roster, error)
	RosterTx(ctx context.Context, matchID, userID string, fn func(r *Roster) ([]docstore.Write, error)) error
	PutRegistration(reg *model.Registration) (docstore.Write, error)
	UpdateRegistration(matchID, userID string, fields docstore.Fields) docstore.Write
	DeleteRegistration(matchID, userID string) docstore.Write

	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
	MergeUser(ctx context.Context, id string, fields docstore.Fields) error
	SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]model.UserProfile, error)

	GetFriendship(ctx context.Context, ownerID, friendID string) (*model.Friendship, error)
	ListFriendships(ctx context.Context, ownerID string, status model.FriendStatus) ([]model.Friendship, error)
	PutFriendship(f *model.Friendship) (docstore.Write, error)
	UpdateFriendship(ownerID, friendID string, fields docstore.Fields) docstore.Write
	DeleteFriendship(ownerID, friendID string) docstore.Write

	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	NewNotification(n *model.Notification) (docstore.Write, error)
	MarkNotificationRead(id string) docstore.Write
	DeleteNotification(id string) docstore.Write

	GetCredential(ctx context.Context, email string) (*model.Credential, error)
	CreateCredential(ctx context.Context, c *model.Credential) error
	UpdatePasswordHash(ctx context.Context, email, hash string) error

	Commit(ctx context.Context, writes ...docstore.Write) error
}

// Roster is a consistent view of a match, its players and the acting user's
// own registration (nil when absent).
type Roster struct {
	Match   *model.Match
	Players []model.Registration
	Own     *model.Registration
}

type repository struct {
	store docstore.Store
	log   *zerolog.Logger
	now   func() time.Time
}

func NewRepository(store docstore.Store, log *zerolog.Logger) (Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &repository{store: store, log: log, now: time.Now}, nil
}

func matchRef(id string) docstore.Ref {
	return docstore.Collection(CollMatches).Doc(id)
}

func playersRef(matchID string) docstore.CollectionRef {
	return matchRef(matchID).Sub(CollPlayers)
}

func userRef(id string) docstore.Ref {
	return docstore.Collection(CollUsers).Doc(id)
}

func friendRef(ownerID, friendID string) docstore.Ref {
	return userRef(ownerID).Sub(CollFriends).Doc(friendID)
}

func notificationRef(id string) docstore.Ref {
	return docstore.Collection(CollNotifications).Doc(id)
}

func credentialRef(email string) docstore.Ref {
	return docstore.Collection(CollCredentials).Doc(email)
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return sentinel
	}
	return err
}

func (r *repository) Commit(ctx context.Context, writes ...docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if err := r.store.Batch(ctx, writes); err != nil {
		return fmt.Errorf("failed to commit %d writes: %w", len(writes), err)
	}
	return nil
}

func (r *repository) CreateMatch(ctx context.Context, m *model.Match) (string, error) {
	m.CreatedAt = r.now().UTC()
	fields, err := docstore.Encode(m)
	if err != nil {
		return "", err
	}
	ref, err := r.store.Add(ctx, docstore.Collection(CollMatches), fields)
	if err != nil {
		return "", fmt.Errorf("failed to insert match: %w", err)
	}
	m.ID = ref.ID
	return ref.ID, nil
}

func decodeMatch(d docstore.Document) (*model.Match, error) {
	var m model.Match
	if err := docstore.Decode(d.Fields, &m); err != nil {
		return nil, err
	}
	m.ID = d.ID()
	return &m, nil
}

func (r *repository) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	d, err := r.store.Get(ctx, matchRef(id))
	if err != nil {
		return nil, notFound(err, ErrMatchNotFound)
	}
	return decodeMatch(d)
}

func (r *repository) UpdateMatch(id string, fields docstore.Fields) docstore.Write {
	return docstore.Update(matchRef(id), fields)
}

// DeleteMatch removes the match together with the player records of ro.
func (r *repository) DeleteMatch(ro *Roster) []docstore.Write {
	writes := make([]docstore.Write, 0, len(ro.Players)+1)
	for _, p := range ro.Players {
		writes = append(writes, docstore.Delete(playersRef(ro.Match.ID).Doc(p.UserID)))
	}
	return append(writes, docstore.Delete(matchRef(ro.Match.ID)))
}

func (r *repository) matches(ctx context.Context, q docstore.Query) ([]model.Match, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	out := make([]model.Match, 0, len(docs))
	for _, d := range docs {
		m, err := decodeMatch(d)
		if err != nil {
			r.log.Warn().Err(err).Str("match_id", d.ID()).Msg("skipping undecodable match")
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *repository) ListMatchesFrom(ctx context.Context, fromDate, kind string) ([]model.Match, error) {
	q := docstore.From(docstore.Collection(CollMatches)).Where("date", docstore.OpGte, fromDate)
	if kind != "" {
		q = q.Where("kind", docstore.OpEq, kind)
	}
	return r.matches(ctx, q.OrderBy("date", false).OrderBy("time", false))
}

func (r *repository) ListMatchesByCreator(ctx context.Context, creatorID, fromDate string) ([]model.Match, error) {
	q := docstore.From(docstore.Collection(CollMatches)).
		Where("creatorId", docstore.OpEq, creatorID).
		Where("date", docstore.OpGte, fromDate).
		OrderBy("date", false)
	return r.matches(ctx, q)
}

func decodeRegistration(d docstore.Document) (*model.Registration, error) {
	var reg model.Registration
	if err := docstore.Decode(d.Fields, &reg); err != nil {
		return nil, err
	}
	if parent, err := docstore.ParseRef(d.Ref.Parent); err == nil {
		reg.MatchID = parent.ID
	}
	if reg.UserID == "" {
		reg.UserID = d.ID()
	}
	return &reg, nil
}

func decodeRegistrations(docs []docstore.Document) ([]model.Registration, error) {
	out := make([]model.Registration, 0, len(docs))
	for _, d := range docs {
		reg, err := decodeRegistration(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, nil
}

func (r *repository) GetRegistration(ctx context.Context, matchID, userID string) (*model.Registration, error) {
	d, err := r.store.Get(ctx, playersRef(matchID).Doc(userID))
	if err != nil {
		return nil, notFound(err, ErrRegistrationNotFound)
	}
	return decodeRegistration(d)
}

func (r *repository) ListRegistrations(ctx context.Context, matchID string) ([]model.Registration, error) {
	docs, err := r.store.Query(ctx, docstore.From(playersRef(matchID)).OrderBy("createdAt", false))
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	return decodeRegistrations(docs)
}

func (r *repository) RegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	docs, err := r.store.Query(ctx, docstore.GroupQuery(CollPlayers).Where("userId", docstore.OpEq, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations of user: %w", err)
	}
	return decodeRegistrations(docs)
}

// LoadRoster reads the roster without isolation; concurrent writers may change
// it before the caller writes.
func (r *repository) LoadRoster(ctx context.Context, matchID, userID string) (*Roster, error) {
	m, err := r.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	players, err := r.ListRegistrations(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return newRoster(m, players, userID), nil
}

func newRoster(m *model.Match, players []model.Registration, userID string) *Roster {
	ro := &Roster{Match: m, Players: players}
	for i := range players {
		if players[i].UserID == userID {
			own := players[i]
			ro.Own = &own
		}
	}
	return ro
}

// RosterTx reads the roster inside a transaction, lets fn decide the writes and
// commits them together with a bump of the match roster revision. Two
// concurrent RosterTx calls on the same match never both commit against the
// same roster. The bump is skipped when fn deletes the match.
func (r *repository) RosterTx(ctx context.Context, matchID, userID string, fn func(ro *Roster) ([]docstore.Write, error)) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		md, err := tx.Get(ctx, matchRef(matchID))
		if err != nil {
			return notFound(err, ErrMatchNotFound)
		}
		m, err := decodeMatch(md)
		if err != nil {
			return err
		}
		docs, err := tx.Query(ctx, docstore.From(playersRef(matchID)).OrderBy("createdAt", false))
		if err != nil {
			return fmt.Errorf("failed to get registrations: %w", err)
		}
		players, err := decodeRegistrations(docs)
		if err != nil {
			return err
		}

		writes, err := fn(newRoster(m, players, userID))
		if err != nil {
			return err
		}
		if len(writes) == 0 {
			return nil
		}
		deleted := false
		for _, w := range writes {
			if err := tx.Write(w); err != nil {
				return err
			}
			if w.Kind == docstore.WriteDelete && w.Ref.Path() == md.Ref.Path() {
				deleted = true
			}
		}
		if deleted {
			return nil
		}
		return tx.Write(docstore.Update(matchRef(matchID), docstore.Fields{"rosterRevision": m.RosterRevision + 1}))
	})
}

func (r *repository) PutRegistration(reg *model.Registration) (docstore.Write, error) {
	fields, err := docstore.Encode(reg)
	if err != nil {
		return docstore.Write{}, err
	}
	return docstore.Create(playersRef(reg.MatchID).Doc(reg.UserID), fields), nil
}

func (r *repository) UpdateRegistration(matchID, userID string, fields docstore.Fields) docstore.Write {
	return docstore.Update(playersRef(matchID).Doc(userID), fields)
}

func (r *repository) DeleteRegistration(matchID, userID string) docstore.Write {
	return docstore.Delete(playersRef(matchID).Doc(userID))
}

func decodeUser(d docstore.Document) (*model.UserProfile, error) {
	var u model.UserProfile
	if err := docstore.Decode(d.Fields, &u); err != nil {
		return nil, err
	}
	u.ID = d.ID()
	return &u, nil
}

func (r *repository) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	d, err := r.store.Get(ctx, userRef(id))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return decodeUser(d)
}

func (r *repository) MergeUser(ctx context.Context, id string, fields docstore.Fields) error {
	if err := r.store.Merge(ctx, userRef(id), fields); err != nil {
		return fmt.Errorf("failed to save user %s: %w", id, err)
	}
	return nil
}

func (r *repository) SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]model.UserProfile, error) {
	q := docstore.From(docstore.Collection(CollUsers)).
		Where("nameLower", docstore.OpGte, prefix).
		Where("nameLower", docstore.OpLte, prefix+"\uf8ff").
		OrderBy("nameLower", false).
		Take(limit)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	out := make([]model.UserProfile, 0, len(docs))
	for _, d := range docs {
		u, err := decodeUser(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func decodeFriendship(d docstore.Document) (*model.Friendship, error) {
	var f model.Friendship
	if err := docstore.Decode(d.Fields, &f); err != nil {
		return nil, err
	}
	f.FriendID = d.ID()
	if owner, err := docstore.ParseRef(d.Ref.Parent); err == nil {
		f.OwnerID = owner.ID
	}
	return &f, nil
}

func (r *repository) GetFriendship(ctx context.Context, ownerID, friendID string) (*model.Friendship, error) {
	d, err := r.store.Get(ctx, friendRef(ownerID, friendID))
	if err != nil {
		return nil, notFound(err, ErrFriendshipNotFound)
	}
	return decodeFriendship(d)
}

func (r *repository) ListFriendships(ctx context.Context, ownerID string, status model.FriendStatus) ([]model.Friendship, error) {
	q := docstore.From(userRef(ownerID).Sub(CollFriends)).
		Where("status", docstore.OpEq, string(status)).
		OrderBy("timestamp", true)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get friendships: %w", err)
	}
	out := make([]model.Friendship, 0, len(docs))
	for _, d := range docs {
		f, err := decodeFriendship(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

func (r *repository) PutFriendship(f *model.Friendship) (docstore.Write, error) {
	fields, err := docstore.Encode(f)
	if err != nil {
		return docstore.Write{}, err
	}
	return docstore.Set(friendRef(f.OwnerID, f.FriendID), fields), nil
}

func (r *repository) UpdateFriendship(ownerID, friendID string, fields docstore.Fields) docstore.Write {
	return docstore.Update(friendRef(ownerID, friendID), fields)
}

func (r *repository) DeleteFriendship(ownerID, friendID string) docstore.Write {
	return docstore.Delete(friendRef(ownerID, friendID))
}

func decodeNotification(d docstore.Document) (*model.Notification, error) {
	var n model.Notification
	if err := docstore.Decode(d.Fields, &n); err != nil {
		return nil, err
	}
	n.ID = d.ID()
	return &n, nil
}

func (r *repository) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	q := docstore.From(docstore.Collection(CollNotifications)).
		Where("userId", docstore.OpEq, userID).
		OrderBy("timestamp", true).
		Take(limit)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		n, err := decodeNotification(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r *repository) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	d, err := r.store.Get(ctx, notificationRef(id))
	if err != nil {
		return nil, notFound(err, ErrNotificationNotFound)
	}
	return decodeNotification(d)
}

// NewNotification assigns an id and timestamp and returns the create write.
func (r *repository) NewNotification(n *model.Notification) (docstore.Write, error) {
	ref := docstore.Collection(CollNotifications).NewDoc()
	n.ID = ref.ID
	if n.Timestamp.IsZero() {
		n.Timestamp = r.now().UTC()
	}
	fields, err := docstore.Encode(n)
	if err != nil {
		return docstore.Write{}, err
	}
	return docstore.Create(ref, fields), nil
}

func (r *repository) MarkNotificationRead(id string) docstore.Write {
	return docstore.Update(notificationRef(id), docstore.Fields{"isRead": true})
}

func (r *repository) DeleteNotification(id string) docstore.Write {
	return docstore.Delete(notificationRef(id))
}

func (r *repository) GetCredential(ctx context.Context, email string) (*model.Credential, error) {
	d, err := r.store.Get(ctx, credentialRef(email))
	if err != nil {
		return nil, notFound(err, ErrCredentialNotFound)
	}
	var c model.Credential
	if err := docstore.Decode(d.Fields, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) CreateCredential(ctx context.Context, c *model.Credential) error {
	fields, err := docstore.Encode(c)
	if err != nil {
		return err
	}
	if err := r.store.Batch(ctx, []docstore.Write{docstore.Create(credentialRef(c.Email), fields)}); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

func (r *repository) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	if err := r.store.Update(ctx, credentialRef(email), docstore.Fields{"passwordHash": hash}); err != nil {
		return notFound(err, ErrCredentialNotFound)
	}
	return nil
}
