package dashboard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Grouping granularities accepted by the cashflow statement.
const (
	GroupByDay   = "day"
	GroupByMonth = "month"
)

// Query holds the list filters shared by the dashboard screens.
type Query struct {
	Status   string `validate:"omitempty,max=32"`
	From     string `validate:"omitempty,datetime=2006-01-02"`
	To       string `validate:"omitempty,datetime=2006-01-02"`
	Search   string `validate:"max=128"`
	SearchBy string `validate:"omitempty,oneof=name email phone title category"`
	GroupBy  string `validate:"omitempty,oneof=day month"`
}

var validate = validator.New()

// ParseQuery reads and validates the filter parameters of a request.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Status:   strings.TrimSpace(values.Get("status")),
		From:     strings.TrimSpace(values.Get("from")),
		To:       strings.TrimSpace(values.Get("to")),
		Search:   values.Get("search"),
		SearchBy: strings.TrimSpace(values.Get("searchBy")),
		GroupBy:  strings.TrimSpace(values.Get("groupBy")),
	}
	if err := validate.Struct(q); err != nil {
		return Query{}, fmt.Errorf("%w: %s", httpx.ErrValidation, describe(err))
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return Query{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	return q, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// Range returns the inclusive instants covered by From and To in loc. To
// extends to the last instant of its day. Absent bounds are nil.
func (q Query) Range(loc *time.Location) (start, end *time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(dateLayout, q.From, loc); err == nil {
		s, _ := grouping.DayBounds(t, loc)
		start = &s
	}
	if t, err := time.ParseInLocation(dateLayout, q.To, loc); err == nil {
		_, e := grouping.DayBounds(t, loc)
		end = &e
	}
	return start, end
}

// Granularity returns the requested grouping, defaulting to days.
func (q Query) Granularity() string {
	if q.GroupBy == "" {
		return GroupByDay
	}
	return q.GroupBy
}
