package grouping_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

var paymentFields = []grouping.Field[records.Payment]{
	{Name: "totalDue", Value: func(p records.Payment) decimal.NullDecimal { return p.AmountDue }},
	{Name: "totalPaid", Value: func(p records.Payment) decimal.NullDecimal { return p.AmountPaid }},
}

var remaining = grouping.Difference("remaining", "totalDue", "totalPaid")

func requireDecimal(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	require.True(t, decimal.NewFromInt(want).Equal(got), "%s: want %d got %s", msg, want, got)
}

func TestAggregatePayments(t *testing.T) {
	payments := []records.Payment{
		{AmountDue: amount(1000), AmountPaid: amount(1000)},
		{AmountDue: amount(2000), AmountPaid: amount(1000)},
		{AmountDue: amount(500), AmountPaid: amount(0)},
	}
	totals := grouping.Aggregate(payments, paymentFields, remaining)

	assert.Equal(t, 3, totals.Count)
	requireDecimal(t, 3500, totals.Get("totalDue"), "totalDue")
	requireDecimal(t, 2000, totals.Get("totalPaid"), "totalPaid")
	requireDecimal(t, 1500, totals.Get("remaining"), "remaining")
}

func TestAggregateMissingFieldContributesZero(t *testing.T) {
	payments := []records.Payment{
		{AmountDue: amount(800)},
		{AmountDue: amount(200), AmountPaid: amount(150)},
		{},
	}
	totals := grouping.Aggregate(payments, paymentFields, remaining)

	assert.Equal(t, 3, totals.Count)
	requireDecimal(t, 1000, totals.Get("totalDue"), "totalDue")
	requireDecimal(t, 150, totals.Get("totalPaid"), "totalPaid")
	requireDecimal(t, 850, totals.Get("remaining"), "remaining")
	requireDecimal(t, 0, totals.Get("notAField"), "unknown")
}

func TestAggregateEmptyInput(t *testing.T) {
	totals := grouping.Aggregate[records.Payment](nil, paymentFields, remaining)
	assert.Zero(t, totals.Count)
	requireDecimal(t, 0, totals.Get("totalDue"), "totalDue")
	requireDecimal(t, 0, totals.Get("remaining"), "remaining")
}

func TestSummarizeLeavesAddUpToWhole(t *testing.T) {
	jan := &records.Student{ID: "1", Intake: str("January 2024")}
	may := &records.Student{ID: "2", Intake: str("May 2024")}
	payments := []records.Payment{
		{Student: jan, AmountDue: amount(1000), AmountPaid: amount(400)},
		{Student: may, AmountDue: amount(700), AmountPaid: amount(700)},
		{Student: nil, AmountDue: amount(300)},
		{Student: jan, AmountPaid: amount(100)},
	}
	intake := grouping.Label(func(p records.Payment) (string, bool) {
		return records.StudentField(p.Student, records.Intake)
	}, grouping.UnknownIntake)

	tree := grouping.GroupBy(payments, intake)
	summary := grouping.Summarize(tree, paymentFields, remaining)
	whole := grouping.Aggregate(payments, paymentFields, remaining)

	require.Len(t, summary.Children, 3)
	assert.Equal(t, whole.Count, summary.Totals.Count)
	for _, name := range []string{"totalDue", "totalPaid", "remaining"} {
		assert.True(t, whole.Get(name).Equal(summary.Totals.Get(name)), name)
		leafSum := decimal.Zero
		for _, c := range summary.Children {
			leafSum = leafSum.Add(c.Totals.Get(name))
		}
		assert.True(t, whole.Get(name).Equal(leafSum), name)
	}
	assert.Equal(t, grouping.UnknownIntake, summary.Children[2].Key)
	requireDecimal(t, 500, summary.Children[0].Totals.Get("remaining"), "january remaining")
}

func TestSummarizeNilTree(t *testing.T) {
	s := grouping.Summarize[records.Payment](nil, paymentFields, remaining)
	assert.Zero(t, s.Totals.Count)
	requireDecimal(t, 0, s.Totals.Get("remaining"), "remaining")
}

func TestCountWhere(t *testing.T) {
	recs := []records.Attendance{
		{Status: records.StatusPresent},
		{Status: records.StatusAbsent},
		{Status: records.StatusPresent},
		{},
	}
	fields := []grouping.Field[records.Attendance]{
		grouping.CountWhere("present", func(a records.Attendance) bool { return a.Status == records.StatusPresent }),
		grouping.CountWhere("absent", func(a records.Attendance) bool { return a.Status == records.StatusAbsent }),
	}
	totals := grouping.Aggregate(recs, fields)
	requireDecimal(t, 2, totals.Get("present"), "present")
	requireDecimal(t, 1, totals.Get("absent"), "absent")
	assert.Equal(t, 4, totals.Count)
}

func TestRunning(t *testing.T) {
	values := []decimal.Decimal{decimal.NewFromInt(500), decimal.NewFromInt(-200), decimal.NewFromInt(50)}
	balances := grouping.Running(values, decimal.NewFromInt(100))
	require.Len(t, balances, 3)
	requireDecimal(t, 600, balances[0], "first")
	requireDecimal(t, 400, balances[1], "second")
	requireDecimal(t, 450, balances[2], "third")
	assert.Empty(t, grouping.Running(nil, decimal.Zero))
}

func TestDayAndMonthBounds(t *testing.T) {
	at := time.Date(2024, 2, 10, 15, 4, 5, 0, nairobi)
	start, end := grouping.DayBounds(at, nairobi)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, nairobi), start)
	assert.Equal(t, time.Date(2024, 2, 10, 23, 59, 59, 999999999, nairobi), end)

	mStart, mEnd := grouping.MonthBounds(at, nairobi)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, nairobi), mStart)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999999999, nairobi), mEnd)
}
