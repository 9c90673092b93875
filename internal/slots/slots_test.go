package slots

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Match-Score-project/Match-Score/internal/model"
)

func roster(positions ...string) []model.Registration {
	regs := make([]model.Registration, 0, len(positions))
	for i, p := range positions {
		regs = append(regs, model.Registration{UserID: fmt.Sprintf("u%d", i), Position: p})
	}
	return regs
}

func TestPositionLimit(t *testing.T) {
	tests := []struct {
		sport    model.Sport
		capacity int
		want     int
	}{
		{model.SportFutsal, 14, 3},
		{model.SportFutsal, 10, 2},
		{model.SportFutsal, 11, 3},
		{model.SportFutsal, 1, 1},
		{model.SportSociety, 14, 3},
		{model.SportCampo, 22, 3},
		{model.SportFutsal, 0, 0},
	}
	for _, tt := range tests {
		if got := PositionLimit(tt.sport, tt.capacity); got != tt.want {
			t.Errorf("PositionLimit(%s, %d) = %d, want %d", tt.sport, tt.capacity, got, tt.want)
		}
	}
}

func TestGoalkeeperScenario(t *testing.T) {
	match := &model.Match{Sport: model.SportFutsal, TotalSlots: 14}
	regs := roster("Goleiro", "Goleiro", "Goleiro", "Fixo")

	a := Evaluate(match, regs, "newcomer", false)
	if err := a.Check("Goleiro"); !errors.Is(err, ErrPositionFull) {
		t.Fatalf("expected ErrPositionFull for 4th goalkeeper, got %v", err)
	}
	if err := a.Check("Fixo"); err != nil {
		t.Fatalf("Fixo should be selectable: %v", err)
	}

	// u0 already holds Goleiro and resubmits in edit mode.
	a = Evaluate(match, regs, "u0", true)
	if err := a.Check("Goleiro"); err != nil {
		t.Fatalf("holder should keep Goleiro in edit mode: %v", err)
	}
	// u3 holds Fixo and cannot move into the full goal.
	a = Evaluate(match, regs, "u3", true)
	if err := a.Check("Goleiro"); !errors.Is(err, ErrPositionFull) {
		t.Fatalf("expected ErrPositionFull when switching into a full position, got %v", err)
	}
}

func TestHeldOnlyInEditMode(t *testing.T) {
	match := &model.Match{Sport: model.SportFutsal, TotalSlots: 5}
	regs := roster("Goleiro")
	a := Evaluate(match, regs, "u0", false)
	p, _ := a.Position("Goleiro")
	if p.Held || p.Selectable {
		t.Fatalf("outside edit mode a full held position is not selectable: %+v", p)
	}
}

func TestMatchFull(t *testing.T) {
	match := &model.Match{Sport: model.SportFutsal, TotalSlots: 5}
	regs := roster("Goleiro", "Fixo", "Ala Esquerda", "Ala Direita", "Pivô")

	a := Evaluate(match, regs, "outsider", false)
	if !a.Full || a.CanSubmit() {
		t.Fatalf("match with 5/5 must be full and block submission: %+v", a)
	}
	if err := a.Check("Goleiro"); !errors.Is(err, ErrMatchFull) {
		t.Fatalf("expected ErrMatchFull, got %v", err)
	}

	a = Evaluate(match, regs, "u4", true)
	if !a.CanSubmit() {
		t.Fatal("edit mode must not be blocked by a full match")
	}
	if err := a.Check("Pivô"); err != nil {
		t.Fatalf("edit resubmission on full match failed: %v", err)
	}
}

func TestCheckValidation(t *testing.T) {
	match := &model.Match{Sport: model.SportFutsal}
	a := Evaluate(match, nil, "u", false)
	if err := a.Check(""); !errors.Is(err, ErrPositionRequired) {
		t.Fatalf("expected ErrPositionRequired, got %v", err)
	}
	if err := a.Check("Quarterback"); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
	if a.Capacity != model.DefaultTotalSlots {
		t.Fatalf("missing capacity should default to %d", model.DefaultTotalSlots)
	}
}

func TestFreeNeverNegative(t *testing.T) {
	match := &model.Match{Sport: model.SportFutsal, TotalSlots: 5}
	regs := roster("Goleiro", "Goleiro", "Goleiro")
	a := Evaluate(match, regs, "x", false)
	p, _ := a.Position("Goleiro")
	if p.Free != 0 || p.Count != 3 {
		t.Fatalf("unexpected overbooked position state: %+v", p)
	}
}
