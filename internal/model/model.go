package model

import "time"

const DefaultTotalSlots = 14

type Match struct {
	ID             string    `json:"-"`
	Name           string    `json:"name"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Location       string    `json:"location"`
	Sport          Sport     `json:"sport"`
	Kind           string    `json:"kind"`
	TotalSlots     int       `json:"totalSlots"`
	CreatorID      string    `json:"creatorId"`
	CreatorName    string    `json:"creatorName"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	RosterRevision int       `json:"rosterRevision"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// Capacity falls back to DefaultTotalSlots for matches saved without a slot count.
func (m *Match) Capacity() int {
	if m.TotalSlots <= 0 {
		return DefaultTotalSlots
	}
	return m.TotalSlots
}

type Registration struct {
	MatchID   string    `json:"-"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname"`
	Age       int       `json:"age"`
	Position  string    `json:"position"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserProfile struct {
	ID        string    `json:"-"`
	Name      string    `json:"name"`
	NameLower string    `json:"nameLower"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	BirthDate string    `json:"birthDate"`
	Position  string    `json:"position"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Theme     string    `json:"theme,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// EffectiveTheme treats anything but an explicit light preference as dark.
func (u *UserProfile) EffectiveTheme() string {
	if u.Theme == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

type FriendStatus string

const (
	FriendPendingSent     FriendStatus = "pending_sent"
	FriendPendingReceived FriendStatus = "pending_received"
	FriendAccepted        FriendStatus = "accepted"
)

type Friendship struct {
	OwnerID    string       `json:"-"`
	FriendID   string       `json:"-"`
	Status     FriendStatus `json:"status"`
	FriendName string       `json:"friendName"`
	Timestamp  time.Time    `json:"timestamp"`
}

const NotificationMatchInvite = "match_invite"

type Notification struct {
	ID        string    `json:"-"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type,omitempty"`
	MatchID   string    `json:"matchId,omitempty"`
}

type Credential struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AgeOn returns the completed years between a YYYY-MM-DD birth date and now.
// An unparsable date yields zero.
func AgeOn(birthDate string, now time.Time) int {
	b, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return 0
	}
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)
