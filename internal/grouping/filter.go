package grouping

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Predicate selects records. A nil Predicate matches everything.
type Predicate[T any] func(T) bool

// Filter returns the records matching every non-nil predicate, in input order.
// The input slice is not modified.
func Filter[T any](records []T, preds ...Predicate[T]) []T {
	active := make([]Predicate[T], 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if matchAll(rec, active) {
			out = append(out, rec)
		}
	}
	return out
}

func matchAll[T any](rec T, preds []Predicate[T]) bool {
	for _, p := range preds {
		if !p(rec) {
			return false
		}
	}
	return true
}

// StatusEquals matches records whose status equals status exactly. An empty
// status yields a nil predicate.
func StatusEquals[T any](status string, get func(T) string) Predicate[T] {
	if status == "" {
		return nil
	}
	return func(rec T) bool {
		return get(rec) == status
	}
}

// DateRange matches start <= at(rec) <= end. Either bound may be nil; with
// both nil the predicate is nil. Records without a timestamp never match a
// bounded range.
func DateRange[T any](start, end *time.Time, at func(T) time.Time) Predicate[T] {
	if start == nil && end == nil {
		return nil
	}
	return func(rec T) bool {
		t := at(rec)
		if t.IsZero() {
			return false
		}
		if start != nil && t.Before(*start) {
			return false
		}
		if end != nil && t.After(*end) {
			return false
		}
		return true
	}
}

// Search matches records whose field contains query, ignoring case. An empty
// or blank query yields a nil predicate.
func Search[T any](query string, field func(T) string) Predicate[T] {
	query = strings.TrimSpace(query)
	if query == "" || field == nil {
		return nil
	}
	needle := cases.Fold().String(query)
	return func(rec T) bool {
		// A Caser carries state, so each call folds with its own.
		return strings.Contains(cases.Fold().String(field(rec)), needle)
	}
}

// SearchFields maps a "search by" mode to the text field it reads.
type SearchFields[T any] map[string]func(T) string

// SearchBy searches the field selected by mode, falling back to fallback when
// mode is empty or unknown.
func SearchBy[T any](query, mode string, fields SearchFields[T], fallback string) Predicate[T] {
	field, ok := fields[mode]
	if !ok {
		field = fields[fallback]
	}
	return Search(query, field)
}
