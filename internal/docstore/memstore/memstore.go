// Package memstore is an in-process document store guarded by a single lock.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]docstore.Document
	log  *zerolog.Logger
}

func New(log *zerolog.Logger) *Store {
	return &Store{docs: make(map[string]docstore.Document), log: log}
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ref)
}

func (s *Store) get(ref docstore.Ref) (docstore.Document, error) {
	d, ok := s.docs[ref.Path()]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, ref.Path())
	}
	return docstore.Document{Ref: d.Ref, Fields: d.Fields.Clone()}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(q), nil
}

func (s *Store) query(q docstore.Query) []docstore.Document {
	candidates := make([]docstore.Document, 0)
	for _, d := range s.docs {
		if q.MatchesCollection(d.Ref) {
			candidates = append(candidates, docstore.Document{Ref: d.Ref, Fields: d.Fields.Clone()})
		}
	}
	return q.Apply(candidates)
}

func (s *Store) Add(ctx context.Context, c docstore.CollectionRef, f docstore.Fields) (docstore.Ref, error) {
	ref := c.NewDoc()
	if err := s.Batch(ctx, []docstore.Write{docstore.Create(ref, f)}); err != nil {
		return docstore.Ref{}, err
	}
	return ref, nil
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Set(ref, f)})
}

func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Merge(ref, f)})
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Update(ref, f)})
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.Batch(ctx, []docstore.Write{docstore.Delete(ref)})
}

func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(writes)
}

// apply stages every write on a copy of the touched documents and commits only
// when all of them succeed.
func (s *Store) apply(writes []docstore.Write) error {
	staged := make(map[string]*docstore.Document)
	for _, w := range writes {
		if !w.Ref.Valid() {
			return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, w.Ref.Path())
		}
		path := w.Ref.Path()
		cur, seen := staged[path]
		if !seen {
			if d, ok := s.docs[path]; ok {
				cur = &docstore.Document{Ref: d.Ref, Fields: d.Fields}
			}
		}
		var fields docstore.Fields
		if cur != nil {
			fields = cur.Fields
		}
		next, exists, err := docstore.ApplyWrite(fields, cur != nil, w)
		if err != nil {
			return err
		}
		if exists {
			staged[path] = &docstore.Document{Ref: w.Ref, Fields: next}
		} else {
			staged[path] = nil
		}
	}
	for path, d := range staged {
		if d == nil {
			delete(s.docs, path)
			continue
		}
		s.docs[path] = *d
	}
	return nil
}

type tx struct {
	docstore.TxWrites
	s *Store
}

func (t *tx) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return docstore.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	return t.s.get(ref)
}

func (t *tx) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.query(q), nil
}

// RunTransaction holds the store lock for the whole transaction, so transactions
// are fully serialized.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.apply(t.Writes)
}

func (s *Store) Close() error {
	if s.log != nil {
		s.log.Debug().Int("documents", s.Len()).Msg("memstore closed")
	}
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
