// Package view builds the typed view-models the web client renders.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/slots"
)

const (
	DefaultPhoto   = "imagens/perfil.png"
	CarouselSize   = 5
	dateTimeLayout = "02/01/2006 15:04"
)

type Button struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Href    string `json:"href,omitempty"`
}

type MatchCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Sport       string `json:"sport"`
	Kind        string `json:"kind"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatorName string `json:"creatorName"`
	Registered  bool   `json:"registered"`
	Action      Button `json:"action"`
	Details     Button `json:"details"`
}

// NewMatchCard renders one listing card. registered is the viewer's own
// registered-match set for the current request.
func NewMatchCard(m model.Match, registered map[string]bool) MatchCard {
	card := MatchCard{
		ID:          m.ID,
		Name:        m.Name,
		Date:        m.Date,
		Time:        m.Time,
		Location:    m.Location,
		Sport:       string(m.Sport),
		Kind:        m.Kind,
		ImageURL:    m.ImageURL,
		CreatorName: m.CreatorName,
		Registered:  registered[m.ID],
		Details:     Button{Label: "Ver Detalhes", Enabled: true, Href: "/v1/matches/" + m.ID},
	}
	if card.Registered {
		card.Action = Button{Label: "Inscrito", Enabled: false}
	} else {
		card.Action = Button{Label: "Cadastrar", Enabled: true, Href: "cadastrojogador.html?matchId=" + m.ID}
	}
	return card
}

func MatchCards(matches []model.Match, registered map[string]bool) []MatchCard {
	out := make([]MatchCard, 0, len(matches))
	for _, m := range matches {
		out = append(out, NewMatchCard(m, registered))
	}
	return out
}

// Carousel is the first CarouselSize cards.
func Carousel(cards []MatchCard) []MatchCard {
	if len(cards) > CarouselSize {
		return cards[:CarouselSize]
	}
	return cards
}

type MatchList struct {
	Carousel []MatchCard `json:"carousel,omitempty"`
	Matches  []MatchCard `json:"matches"`
}

type CourtPosition struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Selected  bool   `json:"selected"`
	Tooltip   string `json:"tooltip"`
}

func Court(a slots.Availability, selected string) []CourtPosition {
	out := make([]CourtPosition, 0, len(a.Positions))
	for _, p := range a.Positions {
		out = append(out, CourtPosition{
			Name:      p.Name,
			Available: p.Selectable && (!a.Full || a.Edit),
			Selected:  p.Name == selected,
			Tooltip:   fmt.Sprintf("%d vaga(s) de %d", p.Free, p.Limit),
		})
	}
	return out
}

type RegistrationForm struct {
	MatchID     string          `json:"matchId"`
	Header      string          `json:"header"`
	MatchName   string          `json:"matchName"`
	Edit        bool            `json:"edit"`
	Name        string          `json:"name"`
	Nickname    string          `json:"nickname"`
	Age         int             `json:"age"`
	PhotoURL    string          `json:"photoUrl"`
	Position    string          `json:"position"`
	Court       []CourtPosition `json:"court"`
	Warning     string          `json:"warning,omitempty"`
	CanSubmit   bool            `json:"canSubmit"`
	SubmitLabel string          `json:"submitLabel"`
}

func NewRegistrationForm(m *model.Match, a slots.Availability, profile *model.UserProfile, own *model.Registration, now time.Time) RegistrationForm {
	f := RegistrationForm{
		MatchID:     m.ID,
		MatchName:   m.Name,
		Edit:        a.Edit,
		Header:      "Você está se inscrevendo em:",
		CanSubmit:   a.CanSubmit(),
		SubmitLabel: "Confirmar Inscrição",
		PhotoURL:    DefaultPhoto,
	}
	if a.Edit {
		f.Header = "Você está alterando sua inscrição em:"
		f.SubmitLabel = "Salvar Alterações"
	}
	if profile != nil {
		f.Name = profile.Name
		f.Age = model.AgeOn(profile.BirthDate, now)
		if profile.PhotoURL != "" {
			f.PhotoURL = profile.PhotoURL
		}
	}
	if a.Edit && own != nil {
		f.Nickname = own.Nickname
		f.Position = own.Position
	}
	if a.Full && !a.Edit {
		f.Warning = fmt.Sprintf("Partida lotada! Limite de %d jogadores atingido.", a.Capacity)
	}
	f.Court = Court(a, f.Position)
	return f
}

type PlayerRow struct {
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	Nickname string  `json:"nickname,omitempty"`
	Position string  `json:"position"`
	Age      int     `json:"age"`
	PhotoURL string  `json:"photoUrl"`
	Remove   *Button `json:"remove,omitempty"`
}

type MatchDetails struct {
	Card      MatchCard   `json:"match"`
	Counter   string      `json:"counter"`
	IsCreator bool        `json:"isCreator"`
	Players   []PlayerRow `json:"players"`
	Edit      *Button     `json:"edit,omitempty"`
	Delete    *Button     `json:"delete,omitempty"`
	Invite    *Button     `json:"invite,omitempty"`
}

// NewMatchDetails renders the roster. Remove buttons appear only for the
// creator and never on the creator's own row.
func NewMatchDetails(m *model.Match, players []model.Registration, viewerID string, registered map[string]bool) MatchDetails {
	isCreator := m.CreatorID == viewerID
	d := MatchDetails{
		Card:      NewMatchCard(*m, registered),
		Counter:   fmt.Sprintf("%d de %d jogadores", len(players), m.Capacity()),
		IsCreator: isCreator,
		Players:   make([]PlayerRow, 0, len(players)),
		Invite:    &Button{Label: "Convidar Amigos", Enabled: true},
	}
	if isCreator {
		d.Edit = &Button{Label: "Editar", Enabled: true}
		d.Delete = &Button{Label: "Excluir", Enabled: true}
	}
	for _, p := range players {
		row := PlayerRow{
			UserID:   p.UserID,
			Name:     p.Name,
			Nickname: p.Nickname,
			Position: p.Position,
			Age:      p.Age,
			PhotoURL: photoOrDefault(p.PhotoURL),
		}
		if isCreator && p.UserID != viewerID {
			row.Remove = &Button{Label: "Remover", Enabled: true}
		}
		d.Players = append(d.Players, row)
	}
	return d
}

type RegisteredMatch struct {
	Card     MatchCard `json:"match"`
	Position string    `json:"position"`
	Edit     Button    `json:"edit"`
	Cancel   Button    `json:"cancel"`
}

func NewRegisteredMatch(m model.Match, reg model.Registration) RegisteredMatch {
	return RegisteredMatch{
		Card:     NewMatchCard(m, map[string]bool{m.ID: true}),
		Position: reg.Position,
		Edit:     Button{Label: "Alterar", Enabled: true, Href: "cadastrojogador.html?matchId=" + m.ID + "&edit=true"},
		Cancel:   Button{Label: "Cancelar", Enabled: true},
	}
}

type FriendRow struct {
	UserID   string   `json:"userId"`
	Name     string   `json:"name"`
	PhotoURL string   `json:"photoUrl"`
	Status   string   `json:"status"`
	Online   bool     `json:"online"`
	Actions  []Button `json:"actions"`
}

func NewFriendRow(f model.Friendship, photoURL string, online bool) FriendRow {
	row := FriendRow{
		UserID:   f.FriendID,
		Name:     f.FriendName,
		PhotoURL: photoOrDefault(photoURL),
		Status:   string(f.Status),
		Online:   online,
	}
	switch f.Status {
	case model.FriendAccepted:
		row.Actions = []Button{{Label: "Remover", Enabled: true}}
	case model.FriendPendingReceived:
		row.Actions = []Button{{Label: "Aceitar", Enabled: true}, {Label: "Recusar", Enabled: true}}
	case model.FriendPendingSent:
		row.Actions = []Button{{Label: "Pendente", Enabled: false}}
	}
	return row
}

type SearchResult struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
	Relation string `json:"relation,omitempty"`
	Action   Button `json:"action"`
}

// NewSearchResult labels the action by the caller's current relation with the user.
func NewSearchResult(u model.UserProfile, relation model.FriendStatus) SearchResult {
	r := SearchResult{
		UserID:   u.ID,
		Name:     u.Name,
		PhotoURL: photoOrDefault(u.PhotoURL),
		Relation: string(relation),
	}
	switch relation {
	case model.FriendAccepted:
		r.Action = Button{Label: "Amigos", Enabled: false}
	case model.FriendPendingSent:
		r.Action = Button{Label: "Pendente", Enabled: false}
	case model.FriendPendingReceived:
		r.Action = Button{Label: "Aceitar", Enabled: true}
	default:
		r.Action = Button{Label: "Adicionar", Enabled: true}
	}
	return r
}

type InviteCandidate struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
	InMatch  bool   `json:"inMatch"`
	Action   Button `json:"action"`
}

func NewInviteCandidate(f model.Friendship, photoURL string, inMatch bool) InviteCandidate {
	c := InviteCandidate{
		UserID:   f.FriendID,
		Name:     f.FriendName,
		PhotoURL: photoOrDefault(photoURL),
		InMatch:  inMatch,
		Action:   Button{Label: "Convidar", Enabled: true},
	}
	if inMatch {
		c.Action = Button{Label: "Na Partida", Enabled: false}
	}
	return c
}

type NotificationItem struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	IsRead    bool    `json:"isRead"`
	Timestamp string  `json:"timestamp"`
	Action    *Button `json:"action,omitempty"`
}

type NotificationList struct {
	Items     []NotificationItem `json:"items"`
	HasUnread bool               `json:"hasUnread"`
}

func NewNotificationList(notes []model.Notification, loc *time.Location) NotificationList {
	l := NotificationList{Items: make([]NotificationItem, 0, len(notes))}
	for _, n := range notes {
		item := NotificationItem{
			ID:        n.ID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			Timestamp: n.Timestamp.In(loc).Format(dateTimeLayout),
		}
		if n.Type == model.NotificationMatchInvite && n.MatchID != "" {
			item.Action = &Button{Label: "Inscrever-se", Enabled: true, Href: "cadastrojogador.html?matchId=" + n.MatchID}
		}
		if !n.IsRead {
			l.HasUnread = true
		}
		l.Items = append(l.Items, item)
	}
	return l
}

type Profile struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birthDate"`
	Age       int    `json:"age"`
	Position  string `json:"position"`
	PhotoURL  string `json:"photoUrl"`
	Theme     string `json:"theme"`
	FirstName string `json:"firstName"`
}

func NewProfile(u *model.UserProfile, now time.Time) Profile {
	first := u.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	return Profile{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		BirthDate: u.BirthDate,
		Age:       model.AgeOn(u.BirthDate, now),
		Position:  u.Position,
		PhotoURL:  photoOrDefault(u.PhotoURL),
		Theme:     u.EffectiveTheme(),
		FirstName: first,
	}
}

type Dashboard struct {
	Profile       Profile           `json:"profile"`
	Carousel      []MatchCard       `json:"carousel"`
	Matches       []MatchCard       `json:"matches"`
	Registered    []RegisteredMatch `json:"registered"`
	MyMatches     []MatchCard       `json:"myMatches"`
	Notifications NotificationList  `json:"notifications"`
	Friends       []FriendRow       `json:"friends"`
	Requests      []FriendRow       `json:"requests"`
}

func photoOrDefault(url string) string {
	if url == "" {
		return DefaultPhoto
	}
	return url
}
