// Package slots decides whether a player may take a court position in a match.
//
// The per-position limit is ceil(capacity / number of positions of the sport),
// applied uniformly to every position of the match.
package slots

import (
	"errors"
	"fmt"

	"github.com/Match-Score-project/Match-Score/internal/model"
)

var (
	ErrPositionRequired = errors.New("position is required")
	ErrUnknownPosition  = errors.New("position does not exist for this sport")
	ErrPositionFull     = errors.New("position esgotado")
	ErrMatchFull        = errors.New("match is full")
	ErrSlotTaken        = errors.New("slot no longer available")
)

// PositionLimit is the maximum number of registrants per position.
func PositionLimit(sport model.Sport, capacity int) int {
	n := len(sport.Positions())
	if n == 0 || capacity <= 0 {
		return 0
	}
	return (capacity + n - 1) / n
}

type Position struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Limit      int    `json:"limit"`
	Free       int    `json:"free"`
	Held       bool   `json:"held"`
	Selectable bool   `json:"selectable"`
}

type Availability struct {
	Capacity   int        `json:"capacity"`
	Registered int        `json:"registered"`
	Limit      int        `json:"limit"`
	Full       bool       `json:"full"`
	Edit       bool       `json:"edit"`
	Positions  []Position `json:"positions"`
}

// Evaluate computes availability for userID against the current roster.
// In edit mode the user's own registration still counts toward its position,
// but that position stays selectable for them.
func Evaluate(match *model.Match, roster []model.Registration, userID string, edit bool) Availability {
	capacity := match.Capacity()
	limit := PositionLimit(match.Sport, capacity)

	counts := make(map[string]int, len(roster))
	held := ""
	for _, r := range roster {
		counts[r.Position]++
		if r.UserID == userID {
			held = r.Position
		}
	}

	a := Availability{
		Capacity:   capacity,
		Registered: len(roster),
		Limit:      limit,
		Full:       len(roster) >= capacity,
		Edit:       edit,
	}
	for _, name := range match.Sport.Positions() {
		p := Position{
			Name:  name,
			Count: counts[name],
			Limit: limit,
			Held:  edit && held == name,
		}
		if p.Free = limit - p.Count; p.Free < 0 {
			p.Free = 0
		}
		p.Selectable = p.Count < limit || p.Held
		a.Positions = append(a.Positions, p)
	}
	return a
}

func (a Availability) Position(name string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Name == name {
			return p, true
		}
	}
	return Position{}, false
}

// Check validates a submission against the availability snapshot.
func (a Availability) Check(position string) error {
	if position == "" {
		return ErrPositionRequired
	}
	p, ok := a.Position(position)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPosition, position)
	}
	if a.Full && !a.Edit {
		return ErrMatchFull
	}
	if !p.Selectable {
		return fmt.Errorf("%w: %s (%d/%d)", ErrPositionFull, position, p.Count, p.Limit)
	}
	return nil
}

// CanSubmit reports whether the form may be submitted at all.
func (a Availability) CanSubmit() bool {
	return !a.Full || a.Edit
}
