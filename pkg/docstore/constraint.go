package docstore

import (
	"encoding/json"
	"sort"
	"time"
)

// Direction orders a result set.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Where filters documents on a single field.
type Where struct {
	Field string `json:"field"`
	// Op is one of: == != < <= > >= array-contains array-contains-any in not-in
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// OrderBy sorts documents on a single field.
type OrderBy struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Constraint narrows a collection subscription. The zero value is the
// unconstrained super-query: every omitted axis stays unconstrained (no
// default ordering, no implicit limit). Cursors apply to the OrderBy field
// and are ignored without one.
type Constraint struct {
	Where      *Where   `json:"where,omitempty"`
	OrderBy    *OrderBy `json:"order_by,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	StartAt    any      `json:"start_at,omitempty"`
	StartAfter any      `json:"start_after,omitempty"`
	EndBefore  any      `json:"end_before,omitempty"`
}

// Key returns a canonical serialization of the constraint. Two constraints
// with equal field values produce the same key regardless of object identity,
// which is what subscription memoization keys on.
func (c Constraint) Key() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "constraint:unserializable"
	}
	return string(b)
}

// Match reports whether the document passes the Where filter.
func (c Constraint) Match(d Document) bool {
	if c.Where == nil {
		return true
	}
	fv, ok := d.Data[c.Where.Field]
	if !ok {
		return false
	}
	switch c.Where.Op {
	case "==":
		return equalValues(fv, c.Where.Value)
	case "!=":
		return !equalValues(fv, c.Where.Value)
	case "<", "<=", ">", ">=":
		cmp, ok := compareValues(fv, c.Where.Value)
		if !ok {
			return false
		}
		switch c.Where.Op {
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		default:
			return cmp >= 0
		}
	case "array-contains":
		arr, ok := fv.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if equalValues(e, c.Where.Value) {
				return true
			}
		}
		return false
	case "array-contains-any":
		arr, ok := fv.([]any)
		want, ok2 := c.Where.Value.([]any)
		if !ok || !ok2 {
			return false
		}
		for _, e := range arr {
			for _, w := range want {
				if equalValues(e, w) {
					return true
				}
			}
		}
		return false
	case "in":
		want, ok := c.Where.Value.([]any)
		if !ok {
			return false
		}
		for _, w := range want {
			if equalValues(fv, w) {
				return true
			}
		}
		return false
	case "not-in":
		want, ok := c.Where.Value.([]any)
		if !ok {
			return false
		}
		for _, w := range want {
			if equalValues(fv, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Apply composes filter, ordering, cursor, and limit over docs, in that
// order. Building twice from the same constraint value yields the same
// result; input order is preserved when no OrderBy is set.
func (c Constraint) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if c.Match(d) {
			out = append(out, d)
		}
	}

	if c.OrderBy != nil {
		field := c.OrderBy.Field
		desc := c.OrderBy.Direction == Desc
		sort.SliceStable(out, func(i, j int) bool {
			cmp, ok := compareValues(out[i].Data[field], out[j].Data[field])
			if !ok {
				return false
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})

		cursorCmp := func(d Document, v any) (int, bool) {
			cmp, ok := compareValues(d.Data[field], v)
			if desc {
				cmp = -cmp
			}
			return cmp, ok
		}
		if c.StartAt != nil {
			out = trimFront(out, func(d Document) bool {
				cmp, ok := cursorCmp(d, c.StartAt)
				return ok && cmp >= 0
			})
		}
		if c.StartAfter != nil {
			out = trimFront(out, func(d Document) bool {
				cmp, ok := cursorCmp(d, c.StartAfter)
				return ok && cmp > 0
			})
		}
		if c.EndBefore != nil {
			out = trimBack(out, func(d Document) bool {
				cmp, ok := cursorCmp(d, c.EndBefore)
				return ok && cmp < 0
			})
		}
	}

	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out
}

func trimFront(docs []Document, keep func(Document) bool) []Document {
	for i, d := range docs {
		if keep(d) {
			return docs[i:]
		}
	}
	return nil
}

func trimBack(docs []Document, keep func(Document) bool) []Document {
	for i := len(docs) - 1; i >= 0; i-- {
		if keep(docs[i]) {
			return docs[:i+1]
		}
	}
	return nil
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return false
}

// compareValues compares two JSON-ish scalar values. Numbers compare across
// int/int64/float64; strings, bools, and times compare within their kind.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case at < bt:
			return -1, true
		case at > bt:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bt, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case at == bt:
			return 0, true
		case !at:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
