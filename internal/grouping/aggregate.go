package grouping

import (
	"github.com/shopspring/decimal"
)

// Field names a summed numeric member of a record. Value reports an absent
// amount with Valid=false; absent amounts contribute zero.
type Field[T any] struct {
	Name  string
	Value func(T) decimal.NullDecimal
}

// CountWhere is a field contributing one for every record matching pred.
func CountWhere[T any](name string, pred func(T) bool) Field[T] {
	return Field[T]{Name: name, Value: func(rec T) decimal.NullDecimal {
		if pred(rec) {
			return decimal.NullDecimal{Decimal: decimal.NewFromInt(1), Valid: true}
		}
		return decimal.NullDecimal{}
	}}
}

// Derived computes an aggregate from already summed totals.
type Derived struct {
	Name    string
	Compute func(Totals) decimal.Decimal
}

// Difference derives name as minuend minus subtrahend, both summed first.
func Difference(name, minuend, subtrahend string) Derived {
	return Derived{Name: name, Compute: func(t Totals) decimal.Decimal {
		return t.Get(minuend).Sub(t.Get(subtrahend))
	}}
}

// Totals holds the record count and named sums of a group.
type Totals struct {
	Count int                        `json:"count"`
	Sums  map[string]decimal.Decimal `json:"sums"`
}

// Get returns the named sum, zero when unknown.
func (t Totals) Get(name string) decimal.Decimal {
	if v, ok := t.Sums[name]; ok {
		return v
	}
	return decimal.Zero
}

// Add merges other into a copy of t. Derived values are not merged; they are
// recomputed by the caller from the merged sums.
func (t Totals) Add(other Totals) Totals {
	out := Totals{Count: t.Count + other.Count, Sums: make(map[string]decimal.Decimal, len(t.Sums))}
	for k, v := range t.Sums {
		out.Sums[k] = v
	}
	for k, v := range other.Sums {
		out.Sums[k] = out.Get(k).Add(v)
	}
	return out
}

func (t *Totals) derive(derived []Derived) {
	for _, d := range derived {
		if d.Compute == nil {
			continue
		}
		t.Sums[d.Name] = d.Compute(*t)
	}
}

func emptyTotals[T any](fields []Field[T]) Totals {
	t := Totals{Sums: make(map[string]decimal.Decimal, len(fields))}
	for _, f := range fields {
		t.Sums[f.Name] = decimal.Zero
	}
	return t
}

func sumRecords[T any](records []T, fields []Field[T]) Totals {
	t := emptyTotals(fields)
	t.Count = len(records)
	for _, rec := range records {
		for _, f := range fields {
			if f.Value == nil {
				continue
			}
			if v := f.Value(rec); v.Valid {
				t.Sums[f.Name] = t.Sums[f.Name].Add(v.Decimal)
			}
		}
	}
	return t
}

// Aggregate sums fields over records, then computes derived values from the sums.
func Aggregate[T any](records []T, fields []Field[T], derived ...Derived) Totals {
	t := sumRecords(records, fields)
	t.derive(derived)
	return t
}

// Summary mirrors a grouping tree with totals at every node.
type Summary[T any] struct {
	Key      string        `json:"key"`
	Totals   Totals        `json:"totals"`
	Children []*Summary[T] `json:"children,omitempty"`
	Records  []T           `json:"records,omitempty"`
}

// Summarize computes totals for every node of tree. Leaf sums come from their
// records and interior sums from their children; derived values are computed
// per node from that node's sums.
func Summarize[T any](tree *Node[T], fields []Field[T], derived ...Derived) *Summary[T] {
	if tree == nil {
		s := &Summary[T]{Totals: emptyTotals(fields)}
		s.Totals.derive(derived)
		return s
	}
	return summarize(tree, fields, derived)
}

func summarize[T any](n *Node[T], fields []Field[T], derived []Derived) *Summary[T] {
	s := &Summary[T]{Key: n.Key}
	if len(n.Children) == 0 {
		s.Records = n.Records
		s.Totals = sumRecords(n.Records, fields)
		s.Totals.derive(derived)
		return s
	}
	t := emptyTotals(fields)
	s.Children = make([]*Summary[T], 0, len(n.Children))
	for _, c := range n.Children {
		cs := summarize(c, fields, derived)
		s.Children = append(s.Children, cs)
		t = t.Add(withoutDerived(cs.Totals, derived))
	}
	t.derive(derived)
	s.Totals = t
	return s
}

func withoutDerived(t Totals, derived []Derived) Totals {
	if len(derived) == 0 {
		return t
	}
	out := Totals{Count: t.Count, Sums: make(map[string]decimal.Decimal, len(t.Sums))}
	for k, v := range t.Sums {
		out.Sums[k] = v
	}
	for _, d := range derived {
		delete(out.Sums, d.Name)
	}
	return out
}

// Running returns the cumulative balance after each value, starting at opening.
func Running(values []decimal.Decimal, opening decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	balance := opening
	for i, v := range values {
		balance = balance.Add(v)
		out[i] = balance
	}
	return out
}
