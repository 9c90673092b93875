package docstore

import (
	"errors"
	"testing"
	"time"
)

func TestRefPaths(t *testing.T) {
	match := Collection("matches").Doc("m1")
	player := match.Sub("players").Doc("u1")
	if player.Path() != "matches/m1/players/u1" {
		t.Fatalf("unexpected path %q", player.Path())
	}
	parsed, err := ParseRef(player.Path())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != player {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, player)
	}
	if _, err := ParseRef("matches"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestApplyWrite(t *testing.T) {
	ref := Collection("c").Doc("d")
	cur := Fields{"a": "x", "b": float64(1)}

	got, ok, err := ApplyWrite(cur, true, Merge(ref, Fields{"b": 2}))
	if err != nil || !ok || got["a"] != "x" || got["b"] != float64(2) {
		t.Fatalf("merge: %v %v %#v", err, ok, got)
	}
	if cur["b"] != float64(1) {
		t.Fatal("ApplyWrite must not mutate the current fields")
	}
	if _, _, err := ApplyWrite(nil, false, Update(ref, Fields{"a": 1})); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if _, _, err := ApplyWrite(cur, true, Create(ref, Fields{})); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("create existing: %v", err)
	}
	if _, ok, _ := ApplyWrite(cur, true, Delete(ref)); ok {
		t.Fatal("delete must report non-existence")
	}
}

func TestQueryApplyTimes(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	coll := Collection("notifications")
	var docs []Document
	for i, offset := range []time.Duration{time.Second, 2 * time.Hour, 500 * time.Millisecond} {
		f, err := Encode(struct {
			UserID    string    `json:"userId"`
			Timestamp time.Time `json:"timestamp"`
		}{"u", base.Add(offset)})
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, Document{Ref: coll.Doc(string(rune('a' + i))), Fields: f})
	}
	out := From(coll).Where("userId", OpEq, "u").OrderBy("timestamp", true).Apply(docs)
	if len(out) != 3 || out[0].ID() != "b" || out[1].ID() != "a" || out[2].ID() != "c" {
		t.Fatalf("timestamps must order chronologically, got %v %v %v", out[0].ID(), out[1].ID(), out[2].ID())
	}

	out = From(coll).Where("timestamp", OpGt, base.Add(time.Minute)).Apply(docs)
	if len(out) != 1 || out[0].ID() != "b" {
		t.Fatalf("time range filter failed: %d docs", len(out))
	}
}

func TestPrefixRange(t *testing.T) {
	coll := Collection("users")
	docs := []Document{
		{Ref: coll.Doc("1"), Fields: Fields{"nameLower": "joão silva"}},
		{Ref: coll.Doc("2"), Fields: Fields{"nameLower": "joana"}},
		{Ref: coll.Doc("3"), Fields: Fields{"nameLower": "jose"}},
		{Ref: coll.Doc("4"), Fields: Fields{"nameLower": "maria"}},
	}
	out := From(coll).
		Where("nameLower", OpGte, "jo").
		Where("nameLower", OpLte, "jo\uf8ff").
		Apply(docs)
	if len(out) != 3 {
		t.Fatalf("prefix search expected 3 hits, got %d", len(out))
	}
}

func TestGroupMatching(t *testing.T) {
	a := Collection("matches").Doc("m1").Sub("players").Doc("u")
	b := Collection("players").Doc("u")
	q := GroupQuery("players")
	if !q.MatchesCollection(a) || !q.MatchesCollection(b) {
		t.Fatal("group query must match every players collection")
	}
	if From(Collection("players")).MatchesCollection(a) {
		t.Fatal("plain query must not match nested collections")
	}
}

func TestPushdown(t *testing.T) {
	q := From(Collection("matches")).
		Where("date", OpGte, "2030-01-01").
		Where("kind", OpEq, "amistoso").
		Where("totalSlots", OpGt, 5).
		Where("updatedAt", OpGte, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)).
		Where("status", OpNeq, "x").
		Where("bad'field", OpEq, "x")
	pushed, all := q.Pushdown()
	if all {
		t.Fatal("numeric, timestamp, != and odd field filters must stay client side")
	}
	if len(pushed) != 2 || pushed[0].Field != "date" || pushed[1].Field != "kind" {
		t.Fatalf("unexpected pushed filters %+v", pushed)
	}

	simple := From(Collection("notifications")).Where("userId", OpEq, "u1").Take(5)
	if !simple.PushLimit() {
		t.Fatal("limit should be pushed when every filter is")
	}
	if simple.OrderBy("timestamp", true).PushLimit() {
		t.Fatal("limit must not be pushed ahead of a client-side order")
	}
}
