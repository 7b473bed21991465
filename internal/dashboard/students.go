package dashboard

import (
	"context"
	"time"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

// StudentsView is the student list, newest enrolment first.
type StudentsView struct {
	Students []records.Student `json:"students"`
	Total    int               `json:"total"`
	Controls authz.Decisions   `json:"controls"`
}

var studentSearch = grouping.SearchFields[records.Student]{
	"name":  func(st records.Student) string { return studentText(&st, records.Name) },
	"email": func(st records.Student) string { return studentText(&st, records.Email) },
	"phone": func(st records.Student) string { return studentText(&st, records.Phone) },
}

func studentCreated(st records.Student) time.Time { return st.CreatedAt }

// Students lists students matching q.
func (s *Service) Students(ctx context.Context, scope Scope, q Query) (*StudentsView, error) {
	items, err := s.students(ctx, scope)
	if err != nil {
		return nil, err
	}
	start, end := q.Range(s.loc)
	items = grouping.Filter(items,
		grouping.StatusEquals(q.Status, func(st records.Student) string { return st.Status }),
		grouping.DateRange(start, end, studentCreated),
		grouping.SearchBy(q.Search, q.SearchBy, studentSearch, "name"),
	)
	items = grouping.SortByTimeDesc(items, studentCreated)
	return &StudentsView{
		Students: items,
		Total:    len(items),
		Controls: authz.Decide(scope.User, authz.CRUDControls(authz.FeatureStudents)),
	}, nil
}
