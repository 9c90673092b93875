// Package storetest holds behaviour checks shared by every docstore backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
)

// Run exercises the docstore contract against a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetMergeUpdate", func(t *testing.T) { testSetGetMergeUpdate(t, newStore(t)) })
	t.Run("AddAndDelete", func(t *testing.T) { testAddAndDelete(t, newStore(t)) })
	t.Run("QueryFiltersOrderLimit", func(t *testing.T) { testQuery(t, newStore(t)) })
	t.Run("QueryMixedTypesAndLimit", func(t *testing.T) { testQueryMixed(t, newStore(t)) })
	t.Run("CollectionGroup", func(t *testing.T) { testCollectionGroup(t, newStore(t)) })
	t.Run("BatchAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("TransactionSerializes", func(t *testing.T) { testTransaction(t, newStore(t)) })
	t.Run("TransactionAbort", func(t *testing.T) { testTransactionAbort(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s docstore.Store) {
	_, err := s.Get(context.Background(), docstore.Collection("things").Doc("nope"))
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSetGetMergeUpdate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("users").Doc("u1")

	if err := s.Set(ctx, ref, docstore.Fields{"name": "Ana", "age": 30}); err != nil {
		t.Fatalf("set: %v", err)
	}
	d, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Fields["name"] != "Ana" || d.Fields["age"] != float64(30) {
		t.Fatalf("unexpected fields after set: %#v", d.Fields)
	}

	if err := s.Merge(ctx, ref, docstore.Fields{"theme": "light"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	d, _ = s.Get(ctx, ref)
	if d.Fields["name"] != "Ana" || d.Fields["theme"] != "light" {
		t.Fatalf("merge lost fields: %#v", d.Fields)
	}

	if err := s.Update(ctx, ref, docstore.Fields{"age": 31}); err != nil {
		t.Fatalf("update: %v", err)
	}
	d, _ = s.Get(ctx, ref)
	if d.Fields["age"] != float64(31) || d.Fields["theme"] != "light" {
		t.Fatalf("update result wrong: %#v", d.Fields)
	}

	err = s.Update(ctx, docstore.Collection("users").Doc("ghost"), docstore.Fields{"a": 1})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("update of missing doc: expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, ref, docstore.Fields{"name": "Bia"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	d, _ = s.Get(ctx, ref)
	if _, ok := d.Fields["theme"]; ok {
		t.Fatalf("set must replace the whole document: %#v", d.Fields)
	}

	if err := s.Merge(ctx, docstore.Collection("users").Doc("fresh"), docstore.Fields{"x": true}); err != nil {
		t.Fatalf("merge into missing doc: %v", err)
	}
}

func testAddAndDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref, err := s.Add(ctx, docstore.Collection("notifications"), docstore.Fields{"message": "hi"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ref.ID == "" {
		t.Fatal("add returned empty id")
	}
	if _, err := s.Get(ctx, ref); err != nil {
		t.Fatalf("get added: %v", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, ref); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("deleting a missing doc must succeed: %v", err)
	}
}

func testQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	matches := docstore.Collection("matches")
	seed := []struct {
		id   string
		date string
		kind string
	}{
		{"a", "2025-01-10", "amistoso"},
		{"b", "2025-01-05", "amistoso"},
		{"c", "2025-01-20", "competitivo"},
		{"d", "2024-12-31", "amistoso"},
	}
	for _, m := range seed {
		if err := s.Set(ctx, matches.Doc(m.id), docstore.Fields{"date": m.date, "kind": m.kind}); err != nil {
			t.Fatalf("seed %s: %v", m.id, err)
		}
	}
	other := docstore.Collection("users")
	if err := s.Set(ctx, other.Doc("a"), docstore.Fields{"date": "2025-01-11", "kind": "amistoso"}); err != nil {
		t.Fatalf("seed other: %v", err)
	}

	q := docstore.From(matches).
		Where("date", docstore.OpGte, "2025-01-01").
		Where("kind", docstore.OpEq, "amistoso").
		OrderBy("date", false)
	docs, err := s.Query(ctx, q)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"b", "a"}) {
		t.Fatalf("unexpected query result %v", got)
	}

	docs, err = s.Query(ctx, docstore.From(matches).OrderBy("date", true).Take(2))
	if err != nil {
		t.Fatalf("query desc: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"c", "a"}) {
		t.Fatalf("unexpected desc result %v", got)
	}

	docs, err = s.Query(ctx, docstore.From(matches).Where("missing", docstore.OpEq, "x"))
	if err != nil {
		t.Fatalf("query missing field: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("documents without the field must not match, got %v", ids(docs))
	}
}

func testQueryMixed(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	users := docstore.Collection("users")
	seed := map[string]any{
		"u1": "ana",
		"u2": "anabela",
		"u3": "bruno",
		"u4": 7,
		"u5": "an",
		"u6": "2025-01-10T12:00:00Z",
	}
	for id, v := range seed {
		if err := s.Set(ctx, users.Doc(id), docstore.Fields{"nameLower": v}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	docs, err := s.Query(ctx, docstore.From(users).
		Where("nameLower", docstore.OpGte, "ana").
		Where("nameLower", docstore.OpLte, "ana\uf8ff").
		OrderBy("nameLower", false))
	if err != nil {
		t.Fatalf("prefix query: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"u1", "u2"}) {
		t.Fatalf("unexpected prefix result %v", got)
	}

	docs, err = s.Query(ctx, docstore.From(users).Where("nameLower", docstore.OpEq, 7))
	if err != nil {
		t.Fatalf("numeric query: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"u4"}) {
		t.Fatalf("unexpected numeric result %v", got)
	}

	docs, err = s.Query(ctx, docstore.From(users).Where("nameLower", docstore.OpGt, "a").Take(2))
	if err != nil {
		t.Fatalf("limited query: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"u1", "u2"}) {
		t.Fatalf("unexpected limited result %v", got)
	}

	docs, err = s.Query(ctx, docstore.From(users).Where("nameLower", docstore.OpEq, "2025-01-10T09:00:00-03:00"))
	if err != nil {
		t.Fatalf("time query: %v", err)
	}
	if got := ids(docs); !equal(got, []string{"u6"}) {
		t.Fatalf("timestamps must compare as instants, got %v", got)
	}
}

func testCollectionGroup(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	m1 := docstore.Collection("matches").Doc("m1")
	m2 := docstore.Collection("matches").Doc("m2")
	writes := []docstore.Write{
		docstore.Set(m1.Sub("players").Doc("u1"), docstore.Fields{"userId": "u1"}),
		docstore.Set(m1.Sub("players").Doc("u2"), docstore.Fields{"userId": "u2"}),
		docstore.Set(m2.Sub("players").Doc("u1"), docstore.Fields{"userId": "u1"}),
	}
	if err := s.Batch(ctx, writes); err != nil {
		t.Fatalf("batch: %v", err)
	}
	docs, err := s.Query(ctx, docstore.GroupQuery("players").Where("userId", docstore.OpEq, "u1"))
	if err != nil {
		t.Fatalf("group query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 registrations for u1, got %d", len(docs))
	}
	for _, d := range docs {
		parent, err := docstore.ParseRef(d.Ref.Parent)
		if err != nil || parent.Collection != "matches" {
			t.Fatalf("bad parent for %s: %v", d.Ref.Path(), err)
		}
	}

	docs, err = s.Query(ctx, docstore.From(m1.Sub("players")))
	if err != nil {
		t.Fatalf("sub query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 players in m1, got %d", len(docs))
	}
}

func testBatchAtomic(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	a := docstore.Collection("users").Doc("a")
	b := docstore.Collection("users").Doc("b")
	if err := s.Set(ctx, a, docstore.Fields{"v": 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := s.Batch(ctx, []docstore.Write{
		docstore.Update(a, docstore.Fields{"v": 2}),
		docstore.Update(b, docstore.Fields{"v": 2}),
	})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from batch, got %v", err)
	}
	d, _ := s.Get(ctx, a)
	if d.Fields["v"] != float64(1) {
		t.Fatalf("failed batch must not apply partial writes: %#v", d.Fields)
	}
}

func testConcurrentCreate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("credentials").Doc("ana@example.com")

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Batch(ctx, []docstore.Write{docstore.Create(ref, docstore.Fields{"worker": i})})
		}(i)
	}
	wg.Wait()

	var created, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, docstore.ErrAlreadyExists):
			taken++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if created != 1 || taken != 1 {
		t.Fatalf("created=%d taken=%d, want exactly one of each", created, taken)
	}

	d, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	winner := -1
	for i, err := range errs {
		if err == nil {
			winner = i
		}
	}
	if d.Fields["worker"] != float64(winner) {
		t.Fatalf("losing create overwrote the document: %#v", d.Fields)
	}
}

func testTransaction(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	counter := docstore.Collection("counters").Doc("c")
	if err := s.Set(ctx, counter, docstore.Fields{"n": 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var failures int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
				d, err := tx.Get(ctx, counter)
				if err != nil {
					return err
				}
				n, _ := d.Fields["n"].(float64)
				time.Sleep(time.Millisecond)
				return tx.Write(docstore.Update(counter, docstore.Fields{"n": n + 1}))
			})
			if err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()
	if failures != 0 {
		t.Fatalf("%d transactions failed", failures)
	}
	d, err := s.Get(ctx, counter)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Fields["n"] != float64(workers) {
		t.Fatalf("lost updates: n = %v, want %d", d.Fields["n"], workers)
	}
}

func testTransactionAbort(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("things").Doc("x")
	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, ref); !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if err := tx.Write(docstore.Set(ref, docstore.Fields{"a": 1})); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, ref); !errors.Is(err, docstore.ErrReadAfterWrite) {
			t.Errorf("expected ErrReadAfterWrite, got %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Get(ctx, ref); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("aborted transaction wrote data: %v", err)
	}
}

func ids(docs []docstore.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
