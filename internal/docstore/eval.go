package docstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Encode converts a struct into document fields through its json tags.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return f, nil
}

// Decode fills dst from document fields through its json tags.
func Decode(f Fields, dst any) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Normalize rewrites fields into their JSON-native representation
// (float64 numbers, RFC 3339 strings for times) so every backend stores
// and compares the same values.
func Normalize(f Fields) (Fields, error) {
	if f == nil {
		return Fields{}, nil
	}
	return Encode(f)
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// ApplyWrite computes the document state after w. exists reports whether the
// document was present before. The returned bool is false when the document
// no longer exists.
func ApplyWrite(current Fields, exists bool, w Write) (Fields, bool, error) {
	switch w.Kind {
	case WriteDelete:
		return nil, false, nil
	case WriteCreate:
		if exists {
			return nil, false, fmt.Errorf("%w: %s", ErrAlreadyExists, w.Ref.Path())
		}
		f, err := Normalize(w.Fields)
		return f, true, err
	case WriteSet:
		f, err := Normalize(w.Fields)
		return f, true, err
	case WriteUpdate:
		if !exists {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, w.Ref.Path())
		}
		fallthrough
	case WriteMerge:
		patch, err := Normalize(w.Fields)
		if err != nil {
			return nil, false, err
		}
		out := current.Clone()
		for k, v := range patch {
			out[k] = v
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("unknown write kind %d", w.Kind)
}

// MatchesCollection reports whether ref belongs to the collection (or group) q targets.
func (q Query) MatchesCollection(ref Ref) bool {
	if q.Group {
		return ref.Collection == q.Collection.Name
	}
	return ref.Collection == q.Collection.Name && ref.Parent == q.Collection.Parent
}

// Matches reports whether the document satisfies every filter of q. A document
// missing a filtered or ordered field never matches.
func (q Query) Matches(d Document) bool {
	if !q.MatchesCollection(d.Ref) {
		return false
	}
	for _, f := range q.Filters {
		v, ok := d.Fields[f.Field]
		if !ok {
			return false
		}
		c, comparable := compare(v, normalizeValue(f.Value))
		switch f.Op {
		case OpEq:
			if !comparable || c != 0 {
				return false
			}
		case OpNeq:
			if comparable && c == 0 {
				return false
			}
		case OpLt:
			if !comparable || c >= 0 {
				return false
			}
		case OpLte:
			if !comparable || c > 0 {
				return false
			}
		case OpGt:
			if !comparable || c <= 0 {
				return false
			}
		case OpGte:
			if !comparable || c < 0 {
				return false
			}
		default:
			return false
		}
	}
	for _, o := range q.Orders {
		if _, ok := d.Fields[o.Field]; !ok {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits candidate documents. Documents are ordered
// by path when no order is given so results are deterministic.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c, _ := compare(out[i].Fields[o.Field], out[j].Fields[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].Ref.Path() < out[j].Ref.Path()
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

var plainField = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Pushdown returns the filters a backend may evaluate natively as byte-wise
// string comparisons: the operand is a string that is not a timestamp and the
// field name is a plain identifier. all reports whether every filter of q
// qualified. Backends still run Apply over what they fetch.
func (q Query) Pushdown() (pushed []Filter, all bool) {
	all = true
	for _, f := range q.Filters {
		if pf, ok := pushable(f); ok {
			pushed = append(pushed, pf)
			continue
		}
		all = false
	}
	return pushed, all
}

// PushLimit reports whether a backend that evaluated every filter natively and
// returns candidates in path order may stop after Limit documents.
func (q Query) PushLimit() bool {
	_, all := q.Pushdown()
	return all && len(q.Orders) == 0 && q.Limit > 0
}

func pushable(f Filter) (Filter, bool) {
	switch f.Op {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
	default:
		return Filter{}, false
	}
	if !plainField.MatchString(f.Field) {
		return Filter{}, false
	}
	s, ok := normalizeValue(f.Value).(string)
	if !ok {
		return Filter{}, false
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Filter{}, false
	}
	return Filter{Field: f.Field, Op: f.Op, Value: s}, true
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

// compare orders two normalized values. The bool is false when the values are
// of different types, in which case the order falls back to type rank.
func compare(a, b any) (int, bool) {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}
	switch x := a.(type) {
	case nil:
		return 0, true
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	case string:
		y := b.(string)
		ta, errA := time.Parse(time.RFC3339Nano, x)
		tb, errB := time.Parse(time.RFC3339Nano, y)
		if errA == nil && errB == nil {
			return ta.Compare(tb), true
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	switch {
	case string(ja) < string(jb):
		return -1, true
	case string(ja) > string(jb):
		return 1, true
	}
	return 0, true
}
