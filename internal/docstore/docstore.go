// Package docstore defines the document-store contract the application persists through.
//
// Documents live in collections addressed by slash-separated paths. A collection may
// be nested under a document ("matches/m1/players"). Queries are evaluated with the
// shared evaluator in this package so every backend filters and orders identically.
package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrAlreadyExists  = errors.New("document already exists")
	ErrConflict       = errors.New("transaction conflict")
	ErrInvalidPath    = errors.New("invalid document path")
	ErrReadAfterWrite = errors.New("transaction reads must precede writes")
)

type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type CollectionRef struct {
	Parent string
	Name   string
}

func Collection(name string) CollectionRef {
	return CollectionRef{Name: name}
}

// Path returns "parent/name", or just "name" for root collections.
func (c CollectionRef) Path() string {
	if c.Parent == "" {
		return c.Name
	}
	return c.Parent + "/" + c.Name
}

func (c CollectionRef) Doc(id string) Ref {
	return Ref{Parent: c.Parent, Collection: c.Name, ID: id}
}

// NewDoc returns a reference with a fresh random id.
func (c CollectionRef) NewDoc() Ref {
	return c.Doc(uuid.NewString())
}

type Ref struct {
	Parent     string
	Collection string
	ID         string
}

func (r Ref) CollectionPath() string {
	return CollectionRef{Parent: r.Parent, Name: r.Collection}.Path()
}

func (r Ref) Path() string {
	return r.CollectionPath() + "/" + r.ID
}

// Sub addresses a collection nested under this document.
func (r Ref) Sub(name string) CollectionRef {
	return CollectionRef{Parent: r.Path(), Name: name}
}

func (r Ref) Valid() bool {
	return r.Collection != "" && r.ID != "" && !strings.Contains(r.ID, "/")
}

// ParseRef splits a full document path back into a Ref.
func ParseRef(path string) (Ref, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return Ref{}, ErrInvalidPath
	}
	n := len(parts)
	return Ref{
		Parent:     strings.Join(parts[:n-2], "/"),
		Collection: parts[n-2],
		ID:         parts[n-1],
	}, nil
}

type Document struct {
	Ref    Ref
	Fields Fields
}

func (d Document) ID() string { return d.Ref.ID }

type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection, or of every collection with the
// given name when Group is set.
type Query struct {
	Collection CollectionRef
	Group      bool
	Filters    []Filter
	Orders     []Order
	Limit      int
}

func From(c CollectionRef) Query {
	return Query{Collection: c}
}

// GroupQuery matches documents from every collection named name, whatever the parent.
func GroupQuery(name string) Query {
	return Query{Collection: CollectionRef{Name: name}, Group: true}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteMerge
	WriteCreate
	WriteUpdate
	WriteDelete
)

// Write is one mutation of a batch or transaction.
type Write struct {
	Kind   WriteKind
	Ref    Ref
	Fields Fields
}

func Set(ref Ref, f Fields) Write    { return Write{Kind: WriteSet, Ref: ref, Fields: f} }
func Merge(ref Ref, f Fields) Write  { return Write{Kind: WriteMerge, Ref: ref, Fields: f} }
func Create(ref Ref, f Fields) Write { return Write{Kind: WriteCreate, Ref: ref, Fields: f} }
func Update(ref Ref, f Fields) Write { return Write{Kind: WriteUpdate, Ref: ref, Fields: f} }
func Delete(ref Ref) Write           { return Write{Kind: WriteDelete, Ref: ref} }

// Store is implemented by memstore, sqlstore and dynamostore.
//
// Set replaces a document, Merge overlays top-level fields onto it (creating it if
// needed), Update overlays fields and fails with ErrNotFound when the document is
// missing. Batch applies all writes atomically or none of them.
type Store interface {
	Get(ctx context.Context, ref Ref) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Add(ctx context.Context, c CollectionRef, f Fields) (Ref, error)
	Set(ctx context.Context, ref Ref, f Fields) error
	Merge(ctx context.Context, ref Ref, f Fields) error
	Update(ctx context.Context, ref Ref, f Fields) error
	Delete(ctx context.Context, ref Ref) error
	Batch(ctx context.Context, writes []Write) error
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx is a read-then-write transaction. Reads must happen before the first write;
// writes are buffered and applied when the transaction function returns nil.
type Tx interface {
	Get(ctx context.Context, ref Ref) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Write(w Write) error
}

// TxWrites collects buffered writes and enforces read-before-write ordering.
// Backends embed it in their Tx implementations.
type TxWrites struct {
	Writes []Write
}

func (t *TxWrites) CheckRead() error {
	if len(t.Writes) > 0 {
		return ErrReadAfterWrite
	}
	return nil
}

func (t *TxWrites) Write(w Write) error {
	if !w.Ref.Valid() {
		return ErrInvalidPath
	}
	t.Writes = append(t.Writes, w)
	return nil
}
