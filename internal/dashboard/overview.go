package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

// CountGroup is a labelled record count.
type CountGroup struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Overview is the landing screen. Sections the principal may not view are nil.
type Overview struct {
	Month            string           `json:"month"`
	Today            string           `json:"today"`
	StudentTotal     *int             `json:"studentTotal,omitempty"`
	StudentsByShift  []CountGroup     `json:"studentsByShift,omitempty"`
	StudentsByCourse []CountGroup     `json:"studentsByCourse,omitempty"`
	Payments         *grouping.Totals `json:"payments,omitempty"`
	Cashflow         *grouping.Totals `json:"cashflow,omitempty"`
	AttendanceToday  *grouping.Totals `json:"attendanceToday,omitempty"`
	Navigation       authz.Decisions  `json:"navigation"`
}

// Overview assembles the landing screen, loading every permitted dataset
// concurrently. Cashflow covers the current month and attendance covers today.
func (s *Service) Overview(ctx context.Context, scope Scope) (*Overview, error) {
	now := s.now()
	out := &Overview{
		Month:      now.Format("2006-01"),
		Today:      now.Format(dateLayout),
		Navigation: authz.Decide(scope.User, authz.NavigationControls()),
	}

	g, ctx := errgroup.WithContext(ctx)
	if out.Navigation.Allowed(authz.FeatureStudents) {
		g.Go(func() error {
			items, err := s.students(ctx, scope)
			if err != nil {
				return err
			}
			total := len(items)
			out.StudentTotal = &total
			out.StudentsByShift = countBy(items, studentLabel(records.Shift, grouping.UnknownShift))
			out.StudentsByCourse = countBy(items, studentLabel(records.Course, grouping.UnknownCourse))
			return nil
		})
	}
	if out.Navigation.Allowed(authz.FeaturePayment) {
		g.Go(func() error {
			items, err := s.payments(ctx, scope)
			if err != nil {
				return err
			}
			totals := grouping.Aggregate(items, paymentFields(), paymentRemaining)
			out.Payments = &totals
			return nil
		})
	}
	if out.Navigation.Allowed(authz.FeatureCashflow) {
		g.Go(func() error {
			items, err := s.cashflow(ctx, scope)
			if err != nil {
				return err
			}
			start, end := grouping.MonthBounds(now, s.loc)
			items = grouping.Filter(items, grouping.DateRange(&start, &end, cashflowDate))
			totals := grouping.Aggregate(items, cashflowFields(), cashflowDifference)
			out.Cashflow = &totals
			return nil
		})
	}
	if out.Navigation.Allowed(authz.FeatureAttendance) {
		g.Go(func() error {
			items, err := s.attendance(ctx, scope)
			if err != nil {
				return err
			}
			start, end := grouping.DayBounds(now, s.loc)
			items = grouping.Filter(items, grouping.DateRange(&start, &end, func(a records.Attendance) time.Time { return a.Date }))
			totals := grouping.Aggregate(items, attendanceFields())
			out.AttendanceToday = &totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func studentLabel(pick func(*records.Student) *string, sentinel string) grouping.KeyFunc[records.Student] {
	return grouping.Label(func(st records.Student) (string, bool) {
		return records.StudentField(&st, pick)
	}, sentinel)
}

func countBy(items []records.Student, key grouping.KeyFunc[records.Student]) []CountGroup {
	tree := grouping.GroupBy(items, key)
	tree.SortChildren(grouping.Alphabetical)
	out := make([]CountGroup, 0, len(tree.Children))
	for _, c := range tree.Children {
		out = append(out, CountGroup{Key: c.Key, Count: c.Count()})
	}
	return out
}
