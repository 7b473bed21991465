package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
)

func childKeys[T any](s *grouping.Summary[T]) []string {
	keys := make([]string, 0, len(s.Children))
	for _, c := range s.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestAttendanceBoardGroupsDayIntakeShift(t *testing.T) {
	svc := newTestService(sampleSource(), nil)
	user := userWith(authz.FeatureAttendance, authz.ActionView, authz.FeatureAttendance, authz.ActionAttend)

	view, err := svc.AttendanceBoard(context.Background(), Scope{User: user}, Query{})
	require.NoError(t, err)

	root := view.Groups
	require.Equal(t, []string{"2025-03-10", "2025-03-09", grouping.UnknownDate}, childKeys(root))
	require.Equal(t, 5, root.Totals.Count)
	require.Equal(t, "2", root.Totals.Get(SumPresent).String())
	require.Equal(t, "2", root.Totals.Get(SumAbsent).String())
	require.Equal(t, "1", root.Totals.Get(SumLate).String())

	tenth := root.Children[0]
	require.Equal(t, []string{"2024"}, childKeys(tenth))
	require.Equal(t, []string{"Evening", "Morning"}, childKeys(tenth.Children[0]))

	ninth := root.Children[1]
	require.Equal(t, []string{"2024", grouping.UnknownIntake}, childKeys(ninth))
	require.Equal(t, []string{grouping.UnknownShift}, childKeys(ninth.Children[1]))

	unknown := root.Children[2]
	require.Equal(t, []string{"2023"}, childKeys(unknown))
	require.Equal(t, []string{grouping.UnknownShift}, childKeys(unknown.Children[0]))

	require.True(t, view.Controls.Allowed("attend"))
	require.False(t, view.Controls.Allowed("delete"))
	require.False(t, view.Controls.Allowed("export"))
}

func TestAttendanceFilters(t *testing.T) {
	svc := newTestService(sampleSource(), nil)
	scope := Scope{User: userWith()}

	view, err := svc.AttendanceBoard(context.Background(), scope, Query{Status: "absent"})
	require.NoError(t, err)
	require.Equal(t, 2, view.Groups.Totals.Count)

	view, err = svc.AttendanceBoard(context.Background(), scope, Query{From: "2025-03-09", To: "2025-03-09"})
	require.NoError(t, err)
	require.Equal(t, []string{"2025-03-09"}, childKeys(view.Groups))
	require.Equal(t, 2, view.Groups.Totals.Count)

	view, err = svc.AttendanceBoard(context.Background(), scope, Query{Search: "EVEN"})
	require.NoError(t, err)
	require.Equal(t, 1, view.Groups.Totals.Count)

	view, err = svc.AttendanceBoard(context.Background(), scope, Query{Search: "nobody"})
	require.NoError(t, err)
	require.Equal(t, 0, view.Groups.Totals.Count)
	require.Empty(t, view.Groups.Children)
}

func TestAttendanceByShiftSortsShifts(t *testing.T) {
	svc := newTestService(sampleSource(), nil)

	view, err := svc.AttendanceByShift(context.Background(), Scope{}, Query{})
	require.NoError(t, err)
	require.Equal(t, []string{"Evening", "Morning"}, childKeys(view.Groups.Children[0]))
	require.Equal(t, []string{"Morning", grouping.UnknownShift}, childKeys(view.Groups.Children[1]))
	require.False(t, view.Controls.Allowed("attend"))
}

func TestPaymentStatementTotals(t *testing.T) {
	svc := newTestService(sampleSource(), nil)
	user := userWith(authz.FeaturePayment, authz.ActionView, authz.FeaturePayment, authz.ActionCreate)

	view, err := svc.PaymentStatement(context.Background(), Scope{User: user}, Query{})
	require.NoError(t, err)

	root := view.Groups
	require.Equal(t, "3500", root.Totals.Get(SumDue).String())
	require.Equal(t, "2000", root.Totals.Get(SumPaid).String())
	require.Equal(t, "1500", root.Totals.Get(SumRemaining).String())
	require.Equal(t, "100", root.Totals.Get(SumDiscounted).String())
	require.Equal(t, "0", root.Totals.Get(SumExtra).String())

	require.Equal(t, []string{"2023", "2024", grouping.UnknownIntake}, childKeys(root))
	require.Equal(t, "1000", root.Children[0].Totals.Get(SumRemaining).String())
	require.Equal(t, "0", root.Children[1].Totals.Get(SumRemaining).String())
	require.Equal(t, "500", root.Children[2].Totals.Get(SumRemaining).String())

	require.True(t, view.Controls.Allowed("create"))
	require.False(t, view.Controls.Allowed("update"))
}

func TestCashflowStatementByDay(t *testing.T) {
	svc := newTestService(sampleSource(), nil)

	view, err := svc.CashflowStatement(context.Background(), Scope{}, Query{})
	require.NoError(t, err)
	require.Equal(t, GroupByDay, view.Granularity)

	keys := make([]string, 0, len(view.Periods))
	balances := make([]string, 0, len(view.Periods))
	for _, p := range view.Periods {
		keys = append(keys, p.Key)
		balances = append(balances, p.Balance.String())
	}
	require.Equal(t, []string{"2025-03-02", "2025-03-01", "2025-02-20"}, keys)
	require.Equal(t, []string{"-400", "-700", "-1000"}, balances)
	require.Equal(t, "300", view.Periods[1].Totals.Get(SumDifference).String())
	require.Equal(t, 2, view.Periods[1].Totals.Count)

	require.Equal(t, "800", view.Totals.Get(SumIncome).String())
	require.Equal(t, "1200", view.Totals.Get(SumExpense).String())
	require.Equal(t, "-400", view.Totals.Get(SumDifference).String())
}

func TestCashflowStatementByMonthAndType(t *testing.T) {
	svc := newTestService(sampleSource(), nil)

	view, err := svc.CashflowStatement(context.Background(), Scope{}, Query{GroupBy: GroupByMonth})
	require.NoError(t, err)
	require.Len(t, view.Periods, 2)
	require.Equal(t, "2025-03", view.Periods[0].Key)
	require.Equal(t, "600", view.Periods[0].Totals.Get(SumDifference).String())
	require.Equal(t, "-400", view.Periods[0].Balance.String())
	require.Equal(t, "-1000", view.Periods[1].Balance.String())

	view, err = svc.CashflowStatement(context.Background(), Scope{}, Query{Status: "income"})
	require.NoError(t, err)
	require.Equal(t, "800", view.Totals.Get(SumIncome).String())
	require.Equal(t, "0", view.Totals.Get(SumExpense).String())

	view, err = svc.CashflowStatement(context.Background(), Scope{}, Query{Search: "facil", SearchBy: "category"})
	require.NoError(t, err)
	require.Len(t, view.Periods, 1)
	require.Equal(t, "-200", view.Totals.Get(SumDifference).String())
}

func TestWriteCashflowCSV(t *testing.T) {
	svc := newTestService(sampleSource(), nil)
	view, err := svc.CashflowStatement(context.Background(), Scope{}, Query{GroupBy: GroupByMonth})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCashflowCSV(&buf, view))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"Period,Income,Expense,Difference,Balance",
		"2025-03,800,200,600,-400",
		"2025-02,0,1000,-1000,-1000",
		"Total,800,1200,-400,",
	}, lines)
}

func TestOverviewHonoursPermissions(t *testing.T) {
	svc := newTestService(sampleSource(), nil)

	user := userWith(authz.FeatureDashboard, authz.ActionView, authz.FeatureStudents, authz.ActionView)
	view, err := svc.Overview(context.Background(), Scope{User: user})
	require.NoError(t, err)
	require.Equal(t, "2025-03", view.Month)
	require.Equal(t, "2025-03-10", view.Today)
	require.NotNil(t, view.StudentTotal)
	require.Equal(t, 3, *view.StudentTotal)
	require.Equal(t, []CountGroup{{Key: "Evening", Count: 1}, {Key: "Morning", Count: 2}}, view.StudentsByShift)
	require.Equal(t, []CountGroup{{Key: "Web", Count: 2}, {Key: grouping.UnknownCourse, Count: 1}}, view.StudentsByCourse)
	require.Nil(t, view.Payments)
	require.Nil(t, view.Cashflow)
	require.Nil(t, view.AttendanceToday)
	require.True(t, view.Navigation.Allowed(authz.FeatureStudents))
	require.False(t, view.Navigation.Allowed(authz.FeaturePayment))

	user = userWith(authz.FeatureCashflow, authz.ActionView, authz.FeatureAttendance, authz.ActionView, authz.FeaturePayment, authz.ActionView)
	view, err = svc.Overview(context.Background(), Scope{User: user})
	require.NoError(t, err)
	require.Nil(t, view.StudentTotal)
	require.Equal(t, "600", view.Cashflow.Get(SumDifference).String())
	require.Equal(t, "1500", view.Payments.Get(SumRemaining).String())
	require.Equal(t, 2, view.AttendanceToday.Count)
	require.Equal(t, "1", view.AttendanceToday.Get(SumPresent).String())
}

func TestOverviewSurfacesUpstreamErrors(t *testing.T) {
	src := sampleSource()
	src.err = httpx.ErrUpstream
	svc := newTestService(src, nil)

	_, err := svc.Overview(context.Background(), Scope{User: userWith(authz.FeatureStudents, authz.ActionView)})
	require.True(t, errors.Is(err, httpx.ErrUpstream))
}

func TestStudentsList(t *testing.T) {
	svc := newTestService(sampleSource(), nil)
	user := userWith(authz.FeatureStudents, authz.ActionView, authz.FeatureStudents, authz.ActionDelete)

	view, err := svc.Students(context.Background(), Scope{User: user}, Query{Status: "active"})
	require.NoError(t, err)
	require.Equal(t, 2, view.Total)
	require.Equal(t, "s2", view.Students[0].ID)
	require.True(t, view.Controls.Allowed("delete"))
	require.False(t, view.Controls.Allowed("create"))

	view, err = svc.Students(context.Background(), Scope{User: user}, Query{Search: "AMI@", SearchBy: "email"})
	require.NoError(t, err)
	require.Equal(t, 1, view.Total)
	require.Equal(t, "s1", view.Students[0].ID)
}
